// Package devicestate defines the device state identifiers shared by
// pkg/command (a command names the device state to hold while it
// executes, and the state to move to afterward) and pkg/device (which
// implements the actual state machine). Splitting the names out into
// their own package lets both depend on them without an import cycle.
package devicestate

// Name identifies one of the device lifecycle states.
type Name string

const (
	NotReady           Name = "NotReady"
	Initializing       Name = "Initializing"
	Ready              Name = "Ready"
	CollectingCommands Name = "CollectingCommands"
	Busy               Name = "Busy"
	Waiting            Name = "Waiting"
	Stopped            Name = "Stopped"
	Error              Name = "Error"
	Shutdown           Name = "Shutdown"
)
