// Package experiment implements the experiment/subexperiment lifecycle
// and multi-experiment scheduler.
//
// Grounded on original_source's backend/experiments/experiment.py and
// experimentstates.py: the Waiting/Running/Finished/Failed/Stopped
// state machine, stop-conditions registered with the condition
// handler, dispatching commands in list order, and waiting for every
// device to reach Waiting before declaring success. Deferred chaining
// becomes explicit callback registration (onDone) since Go has no
// implicit continuation-passing the way Twisted's Deferred does.
package experiment

import (
	"fmt"
	"sync"
	"time"

	"github.com/labstation/orchestrator/internal/clock"
	"github.com/labstation/orchestrator/pkg/command"
	"github.com/labstation/orchestrator/pkg/condition"
	"github.com/labstation/orchestrator/pkg/devicestate"
	"github.com/labstation/orchestrator/pkg/observable"
	"github.com/labstation/orchestrator/pkg/runlog"
)

// Device is the subset of *device.Device an experiment needs. Declared
// locally so pkg/experiment doesn't import pkg/device for its full
// surface; *device.Device satisfies it structurally.
type Device interface {
	condition.StateProvider
	Name() string
	SendCommand(cmd command.Instance) error
	Stop()
}

// Config configures a new Experiment.
type Config struct {
	ID             string
	Name           string
	Devices        map[string]Device
	Steps          []Step
	StopConditions []condition.Condition
	Handler        *condition.Handler
	Clock          clock.Clock
	Recorder       *runlog.Recorder
	Run            *runlog.Run
}

// Experiment runs an ordered list of Steps against a fixed set of
// devices, failing early if any stop-condition latches true.
type Experiment struct {
	mu sync.Mutex

	id      string
	name    string
	devices map[string]Device
	steps   []Step
	stopCds []condition.Condition
	handler *condition.Handler
	clk     clock.Clock
	rec     *runlog.Recorder
	run     *runlog.Run

	state                      State
	cursor                     int
	startingTime, finishingTime time.Time
	failErr                    error

	parent    *Experiment
	callbacks []func(State)
}

// New builds an Experiment in its Waiting state.
func New(cfg Config) *Experiment {
	clk := cfg.Clock
	if clk == nil {
		clk = clock.Real{}
	}
	return &Experiment{
		id:      cfg.ID,
		name:    cfg.Name,
		devices: cfg.Devices,
		steps:   cfg.Steps,
		stopCds: cfg.StopConditions,
		handler: cfg.Handler,
		clk:     clk,
		rec:     cfg.Recorder,
		run:     cfg.Run,
		state:   Waiting,
	}
}

// ID returns the experiment's identifier.
func (e *Experiment) ID() string { return e.id }

// Name returns the experiment's human-readable name.
func (e *Experiment) Name() string { return e.name }

// State returns the experiment's current lifecycle state.
func (e *Experiment) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// onDone registers cb to be called exactly once, when the experiment
// reaches a terminal state; it fires immediately if already terminal.
func (e *Experiment) onDone(cb func(State)) {
	e.mu.Lock()
	if e.state.Terminal() {
		final := e.state
		e.mu.Unlock()
		cb(final)
		return
	}
	e.callbacks = append(e.callbacks, cb)
	e.mu.Unlock()
}

// Start transitions the experiment to Running, subscribes the Recorder
// (if one is set) to every device's observable stream, registers its
// stop-conditions with the Handler (if one is set), and begins
// dispatching commands in order.
func (e *Experiment) Start(at time.Time) {
	e.mu.Lock()
	if e.state != Waiting {
		e.mu.Unlock()
		return
	}
	e.state = Running
	e.startingTime = at
	devices := e.devices
	stopCds := e.stopCds
	e.mu.Unlock()

	if e.rec != nil {
		e.rec.ExperimentPhaseChanged(runlog.ExperimentStarted, "", at)
		for name, d := range devices {
			d.Observable().Subscribe(runlog.NamedObserver{Name: name, Recorder: e.rec})
		}
	}

	if e.handler != nil {
		for _, cond := range stopCds {
			cond := cond
			e.handler.AddCondition(cond, at, func(firedAt time.Time) {
				e.fail(fmt.Errorf("stop-condition %q triggered", cond.Title()), firedAt)
			})
		}
	}

	e.runStep(at)
}

func (e *Experiment) runStep(at time.Time) {
	e.mu.Lock()
	if e.state != Running {
		e.mu.Unlock()
		return
	}
	if e.cursor >= len(e.steps) {
		e.mu.Unlock()
		e.awaitDevicesIdle(at)
		return
	}
	step := e.steps[e.cursor]
	e.cursor++
	e.mu.Unlock()

	step.run(e, func(err error) {
		if err != nil {
			e.fail(err, e.clk.Now())
			return
		}
		e.runStep(e.clk.Now())
	})
}

// awaitDevicesIdle waits for every device to reach Waiting before
// declaring success, mirroring DevicesWaitingCondition plus one
// WaitCommand per device in original_source's _run_command IndexError
// branch.
func (e *Experiment) awaitDevicesIdle(at time.Time) {
	e.mu.Lock()
	devices := e.devices
	e.mu.Unlock()

	if len(devices) == 0 {
		e.succeed(e.clk.Now())
		return
	}

	waiters := make([]condition.StateProvider, 0, len(devices))
	waitCmds := make([]*command.WaitCommand, 0, len(devices))
	for _, d := range devices {
		waiters = append(waiters, d)
	}
	cond := condition.NewDevicesStateEquals(fmt.Sprintf("devices reached last command of %s", e.name), waiters, devicestate.Waiting)

	params := command.DefaultParams()
	params.NextDeviceState = devicestate.Waiting
	params.RunWhileDeviceBusy = true
	for _, d := range devices {
		wc := command.NewWait(params)
		waitCmds = append(waitCmds, wc)
		_ = d.SendCommand(wc)
	}

	if e.handler == nil {
		e.succeed(e.clk.Now())
		return
	}
	e.handler.AddCondition(cond, at, func(firedAt time.Time) {
		for _, wc := range waitCmds {
			wc.Fulfil(nil)
		}
		e.succeed(firedAt)
	})
}

func (e *Experiment) succeed(at time.Time) {
	e.mu.Lock()
	if e.state != Running {
		e.mu.Unlock()
		return
	}
	e.state = Finished
	e.finishingTime = at
	e.mu.Unlock()

	e.stopDevices()
	e.finish(Finished, at)
}

func (e *Experiment) fail(err error, at time.Time) {
	e.mu.Lock()
	if e.state.Terminal() {
		e.mu.Unlock()
		return
	}
	e.state = Failed
	e.finishingTime = at
	e.failErr = err
	e.mu.Unlock()

	e.stopDevices()
	e.finish(Failed, at)
}

// Stop requests an operator-initiated teardown; unlike fail, it is not
// triggered by a stop-condition.
func (e *Experiment) Stop(at time.Time) {
	e.mu.Lock()
	if e.state.Terminal() {
		e.mu.Unlock()
		return
	}
	e.state = Stopped
	e.finishingTime = at
	e.mu.Unlock()

	e.stopDevices()
	e.finish(Stopped, at)
}

// Pause is a no-op retained for API symmetry with Start/Stop (Open
// Question (c)): the source and spec are silent on what pausing an
// in-flight experiment means, so this does nothing: no state
// transition, and nothing is recorded.
func (e *Experiment) Pause(at time.Time) {}

func (e *Experiment) stopDevices() {
	e.mu.Lock()
	devices := e.devices
	e.mu.Unlock()
	for _, d := range devices {
		d.Stop()
	}
}

func (e *Experiment) finish(final State, at time.Time) {
	if e.rec != nil {
		phase := runlog.ExperimentSucceeded
		reason := ""
		switch final {
		case Failed:
			phase = runlog.ExperimentFailed
			if e.failErr != nil {
				reason = e.failErr.Error()
			}
		case Stopped:
			phase = runlog.ExperimentStopped
		}
		e.rec.ExperimentPhaseChanged(phase, reason, at)
	}
	if e.run != nil {
		e.mu.Lock()
		devices := e.devices
		e.mu.Unlock()
		producers := make(map[string]*observable.Substrate, len(devices))
		for name, d := range devices {
			producers[name] = d.Observable()
		}
		_ = e.run.WriteValues(producers)
		_ = e.run.Close()
	}

	e.mu.Lock()
	cbs := e.callbacks
	e.callbacks = nil
	e.mu.Unlock()
	for _, cb := range cbs {
		cb(final)
	}
}

func errFromState(s State) error {
	return fmt.Errorf("sub-experiment ended in state %s", s)
}
