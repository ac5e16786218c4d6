package command

import "errors"

var (
	// ErrWrongState is returned by SetTempResult when called on a
	// command that hasn't been sent yet (the source's implicit
	// AttributeError-on-None-timer case, made explicit).
	ErrWrongState = errors.New("command: temp result set before command was sent")

	// ErrAlreadyTerminal is returned by Cancel when the command has
	// already reached Success, Fail, or Cancelled.
	ErrAlreadyTerminal = errors.New("command: already in a terminal state")

	// ErrRepeatedCommandCancelUnsupported is returned by
	// RepeatedCommand.Cancel, matching the source's
	// `raise NotImplementedError` — a RepeatedCommand is stopped via
	// its stop-condition, not cancelled directly (Open Question b).
	ErrRepeatedCommandCancelUnsupported = errors.New("command: RepeatedCommand does not support direct cancellation, use a stop condition")

	// ErrNoCurrentCommand is returned by CommandSeries operations that
	// require a child in flight when none has been added yet.
	ErrNoCurrentCommand = errors.New("command: series has no current command")
)
