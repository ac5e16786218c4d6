package command

import (
	"time"

	"github.com/labstation/orchestrator/pkg/devicestate"
)

// Action is what a command does when on_error or on_timeout fires: keep
// retrying (subject to Retries), or fail outright regardless of
// remaining retries. Grounded on commands.py's on_error/on_timeout
// kwargs, each one of {"retry", "fail"}.
type Action int

const (
	ActionRetry Action = iota
	ActionFail
)

// Params collects the per-command configuration the source spreads
// across DeviceCommandParameterFactory and CommandParameterFactory.
// Fields default via DefaultParams; callers override only what they
// need, the idiomatic Go options-struct shape used throughout the
// teacher's config types rather than Python's kwargs-factory pattern.
type Params struct {
	// Retries is how many re-sends are attempted after the first
	// failure before the command gives up with a RetryError.
	Retries int
	// InterCommandTime is the spacing wanted between this command
	// finishing and the next one starting. pkg/device does not wait it
	// out: the next queued command is dispatched as soon as this one
	// settles.
	InterCommandTime time.Duration
	// Timeout is how long Sent waits for a reply before transitioning
	// to Retry with a TimeoutError as temp result.
	Timeout time.Duration
	// CommandExecutionTime is advisory: how long the instrument is
	// expected to take to execute the command's effect once
	// acknowledged. Nothing in this module reads it; the timeout and
	// dispatch timing do not depend on it.
	CommandExecutionTime time.Duration
	// OnError says what Retry does when the temp result is a
	// DeviceError: keep retrying, or fail immediately.
	OnError Action
	// OnTimeout says what Retry does when the temp result is a
	// TimeoutError: keep retrying, or fail immediately.
	OnTimeout Action
	// Urgent lets a Busy or Waiting device accept the command and
	// queues it ahead of every queued non-urgent command, after any
	// urgent ones already queued. It does not preempt or run alongside
	// the command currently in flight: it is dispatched only once that
	// command settles.
	Urgent bool
	// RunWhileDeviceBusy lets a Busy or Waiting device accept the
	// command into the back of its queue instead of rejecting it with
	// ErrDeviceBusy. It is dispatched only once the command in flight
	// settles.
	RunWhileDeviceBusy bool
	// Channel pins the command to one channel of a multichannel
	// device. nil means "whichever channel is currently acting".
	Channel *int
	// Query marks the command as expecting a reply line to parse,
	// versus a fire-and-forget write.
	Query bool
	// DeviceStateWhileExecuting names a device state for the duration
	// this command is in flight. pkg/device does not read it: a device
	// holds Waiting while a WaitCommand is in flight and Busy for any
	// other command.
	DeviceStateWhileExecuting devicestate.Name
	// NextDeviceState is the device state to move to once this
	// command (or the series it belongs to) settles successfully.
	NextDeviceState devicestate.Name
	// CommandValues parameterizes the formatted command string (e.g.
	// {"setpoint": "37.0"}), consumed by a pkg/driver Formatter.
	CommandValues map[string]string
}

// DefaultParams returns the source's documented defaults.
func DefaultParams() Params {
	return Params{
		Retries:               3,
		InterCommandTime:      100 * time.Millisecond,
		Timeout:               2500 * time.Millisecond,
		CommandExecutionTime:  500 * time.Millisecond,
		OnError:               ActionRetry,
		OnTimeout:             ActionRetry,
		DeviceStateWhileExecuting: devicestate.Busy,
		NextDeviceState:           devicestate.Ready,
		CommandValues:             map[string]string{},
	}
}
