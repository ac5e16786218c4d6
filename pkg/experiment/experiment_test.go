package experiment

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/labstation/orchestrator/internal/clock"
	"github.com/labstation/orchestrator/pkg/command"
	"github.com/labstation/orchestrator/pkg/condition"
	"github.com/labstation/orchestrator/pkg/devicestate"
	"github.com/labstation/orchestrator/pkg/observable"
)

// fakeDevice is a minimal stand-in for *device.Device: commands
// dispatched to it settle immediately and it tracks its own state so
// DevicesStateEqualsCondition can observe it.
type fakeDevice struct {
	name        string
	obs         *observable.Substrate
	state       devicestate.Name
	stateGen    int
	consumedGen int
	stopped     bool
}

func newFakeDevice(name string) *fakeDevice {
	return &fakeDevice{name: name, obs: observable.NewSubstrate(), state: devicestate.Ready, stateGen: 1}
}

func (f *fakeDevice) Name() string                        { return f.name }
func (f *fakeDevice) Observable() *observable.Substrate    { return f.obs }
func (f *fakeDevice) State() devicestate.Name              { return f.state }
func (f *fakeDevice) StateEntryAvailable(target devicestate.Name) bool {
	return f.state == target && f.consumedGen != f.stateGen
}
func (f *fakeDevice) ConsumeStateEntry(target devicestate.Name) bool {
	if f.state != target || f.consumedGen == f.stateGen {
		return false
	}
	f.consumedGen = f.stateGen
	return true
}
func (f *fakeDevice) setState(s devicestate.Name, at time.Time) {
	f.state = s
	f.stateGen++
	f.obs.UpdateOne("state", string(s), at)
}
func (f *fakeDevice) SendCommand(cmd command.Instance) error {
	cmd.Execute()
	if wc, ok := cmd.(*command.WaitCommand); ok {
		f.setState(devicestate.Waiting, time.Unix(0, int64(f.stateGen)))
		_ = wc
	}
	return nil
}
func (f *fakeDevice) Stop() { f.stopped = true }

var _ Device = (*fakeDevice)(nil)

func TestExperiment_RunsStepsThenFinishesOnceDevicesWaiting(t *testing.T) {
	clk := clock.NewVirtual(time.Unix(0, 0))
	d1 := newFakeDevice("pump1")
	handler := condition.NewHandler()

	var dispatched []string
	exp := New(Config{
		ID:   "exp-1",
		Name: "test run",
		Devices: map[string]Device{
			"pump1": d1,
		},
		Steps: []Step{
			CommandStep{Dispatch: func() error { dispatched = append(dispatched, "a"); return nil }},
			CommandStep{Dispatch: func() error { dispatched = append(dispatched, "b"); return nil }},
		},
		Handler: handler,
		Clock:   clk,
	})

	var final State
	exp.onDone(func(s State) { final = s })
	exp.Start(clk.Now())

	require.Equal(t, []string{"a", "b"}, dispatched)
	require.Equal(t, Finished, final)
	require.True(t, d1.stopped)
}

func TestExperiment_StopConditionFailsExperiment(t *testing.T) {
	clk := clock.NewVirtual(time.Unix(0, 0))
	d1 := newFakeDevice("pump1")
	obs := observable.NewSubstrate()
	handler := condition.NewHandler()
	stopCond := condition.NewObservableEquals("abort", obs, "abort", "1")

	exp := New(Config{
		ID:      "exp-2",
		Name:    "aborting run",
		Devices: map[string]Device{"pump1": d1},
		Steps: []Step{
			CommandStep{Dispatch: func() error {
				obs.UpdateOne("abort", "1", clk.Now())
				return nil
			}},
			CommandStep{Dispatch: func() error { return errors.New("should never run") }},
		},
		StopConditions: []condition.Condition{stopCond},
		Handler:        handler,
		Clock:          clk,
	})

	var final State
	exp.onDone(func(s State) { final = s })
	exp.Start(clk.Now())

	require.Equal(t, Failed, final)
	require.True(t, d1.stopped)
}

func TestScheduler_AdvancesToNextOnCompletion(t *testing.T) {
	clk := clock.NewVirtual(time.Unix(0, 0))
	sched := NewScheduler(clk)
	handler := condition.NewHandler()

	var order []string
	makeExp := func(id string) *Experiment {
		d := newFakeDevice(id)
		return New(Config{
			ID:      id,
			Devices: map[string]Device{id: d},
			Steps: []Step{
				CommandStep{Dispatch: func() error { order = append(order, id); return nil }},
			},
			Handler: handler,
			Clock:   clk,
		})
	}

	first := makeExp("exp-a")
	second := makeExp("exp-b")

	sched.Enqueue(first)
	sched.Enqueue(second)

	require.Equal(t, []string{"exp-a", "exp-b"}, order)
	require.Nil(t, sched.Running())
}
