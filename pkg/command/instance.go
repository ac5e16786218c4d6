package command

import (
	"github.com/labstation/orchestrator/internal/future"
	"github.com/labstation/orchestrator/pkg/result"
)

// Parser turns a framed reply into either a *result.Result (on
// success) or a result.CommandError (classified failure), plus the
// State the owning command should move to next. Defined here (rather
// than imported from pkg/parser) so pkg/parser can depend on
// pkg/command without a cycle; RegexParser, ReplyStateParser, and
// SuccessParser in pkg/parser satisfy this interface structurally.
type Parser interface {
	Parse(reply *result.Result) (any, State)
}

// Transmitter is the owning device, as seen by a Command: it knows how
// to put the command's wire bytes on the connection. Implemented by
// pkg/device.Device.
type Transmitter interface {
	TransmitCommand(cmd Instance) error
}

// Instance is the capability set common to Command, CommandSeries,
// RepeatedCommand, and WaitCommand. pkg/device holds a queue of
// Instance values and never type-switches on the concrete variant.
type Instance interface {
	// Execute dispatches the command (or, for a series, its current
	// child) for the first time.
	Execute()
	// Cancel aborts the command if it hasn't reached a terminal state.
	Cancel() error
	// State returns the current position in the state machine.
	State() State
	// Params returns the command's configuration.
	Params() *Params
	// Bytestring returns the wire bytes to send (the current child's,
	// for a series).
	Bytestring() []byte
	// SetTempResult records a parsed reply or classified error on the
	// instance (for a series or repeated command, on its current child);
	// the caller applies the next transition separately. Before Execute,
	// a Command returns ErrWrongState and a series or repeated command
	// returns ErrNoCurrentCommand; a WaitCommand always returns
	// ErrNoCurrentCommand.
	SetTempResult(v any) error
	// HandleReply hands a framed device reply to whichever concrete
	// command is currently in flight (the instance itself, or its
	// current child for a series/repeated command). It runs the
	// reply through that command's Parser and applies the resulting
	// transition, then reports whether the reply was consumed. A
	// WaitCommand never consumes a reply (it settles only via an
	// external Fulfil/Fail), so callers should treat an unconsumed
	// reply as an unsolicited event/log line.
	HandleReply(reply *result.Result) bool
	// ExecFuture settles once the instance has been dispatched.
	ExecFuture() *future.Future[struct{}]
	// ResultFuture settles once the instance reaches Success (value,
	// nil error) or Fail/Cancelled (nil value, non-nil error).
	ResultFuture() *future.Future[*result.Result]
}
