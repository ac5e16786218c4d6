package device

import (
	"github.com/labstation/orchestrator/pkg/command"
	"github.com/labstation/orchestrator/pkg/devicestate"
)

// state is one node of the device lifecycle state machine.
// Tagged variants instead of the source's class inheritance, per
// DESIGN NOTES §9: each concrete type below is a distinct Go type, and
// Device holds exactly one behind the state field, guarded by
// Device.mu.
type state interface {
	name() devicestate.Name
	// enter runs side effects for becoming the active state (the
	// source's DeviceState.enter).
	enter(d *Device)
	// accept decides whether a new command may be queued for dispatch
	// while this state is active, and if so, whether it should be
	// enqueued (for later) or dispatched immediately.
	accept(d *Device, cmd command.Instance) error
}

var (
	_ state = notReadyState{}
	_ state = initializingState{}
	_ state = readyState{}
	_ state = collectingCommandsState{}
	_ state = busyState{}
	_ state = waitingState{}
	_ state = stoppedState{}
	_ state = errorState{}
	_ state = shutdownState{}
)

type notReadyState struct{}

func (notReadyState) name() devicestate.Name { return devicestate.NotReady }
func (notReadyState) enter(d *Device)        {}
func (notReadyState) accept(d *Device, cmd command.Instance) error {
	return ErrDeviceNotReady
}

// initializingState runs the device's configured initialization
// command series (if any) before moving to Ready. Grounded on the
// source's Initializing(Ready): same queuing behavior as Ready, but
// entered automatically once after Connect.
type initializingState struct{}

func (initializingState) name() devicestate.Name { return devicestate.Initializing }
func (initializingState) enter(d *Device) {
	d.runInitSeriesLocked()
}
func (initializingState) accept(d *Device, cmd command.Instance) error {
	return readyState{}.accept(d, cmd)
}

type readyState struct{}

func (readyState) name() devicestate.Name { return devicestate.Ready }
func (readyState) enter(d *Device)        {}
func (readyState) accept(d *Device, cmd command.Instance) error {
	d.dispatchLocked(cmd)
	return nil
}

// collectingCommandsState exists for API completeness with the
// state table; the source enters it implicitly for the duration of a
// `with CommandSeries():` block so bare device.send_cmd calls made
// inside that block are captured into the series instead of dispatched.
// This repo's CommandSeries.Add is explicit (DESIGN NOTES §9 prefers
// explicit construction over implicit attribute-swap capture), so
// nothing ever drives a Device into this state; it behaves like Ready
// if it is ever entered directly.
type collectingCommandsState struct{}

func (collectingCommandsState) name() devicestate.Name { return devicestate.CollectingCommands }
func (collectingCommandsState) enter(d *Device)         {}
func (collectingCommandsState) accept(d *Device, cmd command.Instance) error {
	return readyState{}.accept(d, cmd)
}

// busyState is active while a command is in flight. A new command with
// neither RunWhileDeviceBusy nor Urgent set is rejected with
// ErrDeviceBusy. Accepted commands are queued: Urgent ones go after the
// urgent commands already queued and ahead of all others, everything
// else goes to the back. Nothing is dispatched until the command in
// flight settles.
type busyState struct{}

func (busyState) name() devicestate.Name { return devicestate.Busy }
func (busyState) enter(d *Device)        {}
func (busyState) accept(d *Device, cmd command.Instance) error {
	if !cmd.Params().RunWhileDeviceBusy && !cmd.Params().Urgent {
		return ErrDeviceBusy
	}
	d.enqueueLocked(cmd)
	return nil
}

// waitingState is Busy specialized for a WaitCommand in flight: no
// wire traffic is expected, only the eventual external Fulfil/Fail
// from the condition handler. Queuing behaves like Busy.
type waitingState struct{}

func (waitingState) name() devicestate.Name { return devicestate.Waiting }
func (waitingState) enter(d *Device)        {}
func (waitingState) accept(d *Device, cmd command.Instance) error {
	return busyState{}.accept(d, cmd)
}

type stoppedState struct{}

func (stoppedState) name() devicestate.Name { return devicestate.Stopped }
func (stoppedState) enter(d *Device)        {}
func (stoppedState) accept(d *Device, cmd command.Instance) error {
	return ErrDeviceStopped
}

type errorState struct{}

func (errorState) name() devicestate.Name { return devicestate.Error }
func (errorState) enter(d *Device)        {}
func (errorState) accept(d *Device, cmd command.Instance) error {
	return ErrDeviceError
}

type shutdownState struct{}

func (shutdownState) name() devicestate.Name { return devicestate.Shutdown }
func (shutdownState) enter(d *Device)        {}
func (shutdownState) accept(d *Device, cmd command.Instance) error {
	return ErrDeviceShutdown
}
