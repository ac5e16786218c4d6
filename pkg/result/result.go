// Package result defines the value objects produced when a device reply
// is framed and parsed, and the typed failure variants a command can
// end in.
//
// Grounded on original_source's backend/commands/results.py (Result) and
// backend/commands/helpers_exceptions.py (the CommandError hierarchy).
package result

import (
	"fmt"
	"time"
)

// Result is created the instant raw bytes are framed into a line; the
// parser populates Parameters from regex captures, and whoever stores
// the result back-links Command.
type Result struct {
	Line       string
	Time       time.Time
	Parameters map[string]string
	Command    any
}

// New creates a Result stamped with the given time. Callers pass the
// timestamp explicitly (no defaulted-to-construction-time parameter,
// a deliberate choice, not an oversight).
func New(line string, at time.Time) *Result {
	return &Result{Line: line, Time: at, Parameters: map[string]string{}}
}

// String returns the raw reply line.
func (r *Result) String() string {
	if r == nil {
		return ""
	}
	return r.Line
}

// CommandError is implemented by every typed command failure. It both
// carries the originating reply and behaves as a Go error so it can
// flow through a command's result channel unchanged.
type CommandError interface {
	error
	// Reply returns the Result that produced this failure, or nil if
	// none is associated (e.g. a RetryError built when the last temp
	// result was not itself a CommandError). A timeout carries a
	// synthetic Result with an empty line.
	Reply() *Result
	// Code is a short machine-stable failure classification.
	Code() string
}

type baseError struct {
	reply *Result
	code  string
	msg   string
}

func (e *baseError) Reply() *Result { return e.reply }
func (e *baseError) Code() string   { return e.code }
func (e *baseError) Error() string {
	if e.reply != nil {
		return fmt.Sprintf("%s: %s (reply: %q)", e.code, e.msg, e.reply.Line)
	}
	return fmt.Sprintf("%s: %s", e.code, e.msg)
}

// ResponseError indicates a reply did not match the expected pattern,
// or an expected capture/value was absent.
type ResponseError struct{ baseError }

// NewResponseError builds a ResponseError.
func NewResponseError(reply *Result, msg string) *ResponseError {
	return &ResponseError{baseError{reply: reply, code: "ResponseError", msg: msg}}
}

// DeviceError indicates the device replied with a framed error string,
// or an error_pattern matched the reply.
type DeviceError struct {
	baseError
	// Groups holds any regex capture groups from the error pattern match.
	Groups map[string]string
}

// NewDeviceError builds a DeviceError, optionally carrying regex capture
// groups from the matching error_pattern.
func NewDeviceError(reply *Result, msg string, groups map[string]string) *DeviceError {
	return &DeviceError{baseError: baseError{reply: reply, code: "DeviceError", msg: msg}, Groups: groups}
}

// TimeoutError indicates no reply arrived within the command's timeout.
type TimeoutError struct{ baseError }

// NewTimeoutError builds a TimeoutError. reply may be nil: a timeout
// fires with only a synthetic Result carrying no line.
func NewTimeoutError(reply *Result) *TimeoutError {
	return &TimeoutError{baseError{reply: reply, code: "TimeoutError", msg: "no reply within timeout"}}
}

// RetryError indicates a command exhausted its configured retries.
// It is always fatal for the command.
type RetryError struct{ baseError }

// NewRetryError wraps the last failure as a fatal RetryError.
func NewRetryError(reply *Result, last CommandError) *RetryError {
	msg := "retries exhausted"
	if last != nil {
		msg = fmt.Sprintf("retries exhausted, last failure: %s", last.Error())
	}
	return &RetryError{baseError{reply: reply, code: "RetryError", msg: msg}}
}

// SeriesError indicates a child command of a CommandSeries failed. It is
// always fatal for the series.
type SeriesError struct{ baseError }

// NewSeriesError wraps a child failure as a SeriesError for the series.
func NewSeriesError(reply *Result, childErr error) *SeriesError {
	msg := "child command failed"
	if childErr != nil {
		msg = fmt.Sprintf("child command failed: %s", childErr.Error())
	}
	return &SeriesError{baseError{reply: reply, code: "SeriesError", msg: msg}}
}

var (
	_ CommandError = (*ResponseError)(nil)
	_ CommandError = (*DeviceError)(nil)
	_ CommandError = (*TimeoutError)(nil)
	_ CommandError = (*RetryError)(nil)
	_ CommandError = (*SeriesError)(nil)
)
