// Package command implements the command state machine:
// a single dispatched Command, plus the three composite variants
// CommandSeries, RepeatedCommand, and WaitCommand that all satisfy the
// same Instance capability set.
//
// Grounded on original_source's backend/commands/commandstate.py
// (NotSent/Sent/Retry/Success/Fail/Cancelled) and
// backend/commands/commands.py (Command, CommandSeries, RepeatedCommand,
// WaitCommand).
package command

// State is a command's position in its state machine. Retry is a
// pseudo-state: entering it immediately resolves to either Sent (the
// command re-executes) or Fail (retries exhausted, or on_error/
// on_timeout says to fail outright), mirroring the source's Retry.__new__
// dispatch.
type State int

const (
	NotSent State = iota
	Sent
	Retry
	Success
	Fail
	Cancelled
)

func (s State) String() string {
	switch s {
	case NotSent:
		return "NotSent"
	case Sent:
		return "Sent"
	case Retry:
		return "Retry"
	case Success:
		return "Success"
	case Fail:
		return "Fail"
	case Cancelled:
		return "Cancelled"
	default:
		return "Unknown"
	}
}

// Terminal reports whether the state has no further transitions.
func (s State) Terminal() bool {
	return s == Success || s == Fail || s == Cancelled
}
