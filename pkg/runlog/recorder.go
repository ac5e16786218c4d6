package runlog

import (
	"time"

	"github.com/labstation/orchestrator/pkg/devicestate"
	"github.com/labstation/orchestrator/pkg/observable"
)

// Recorder fans device, observable, and experiment events into a
// Logger. It structurally satisfies pkg/device.EventSink and
// observable.Observer, so a single Recorder can be wired as both a
// device's event sink and an observable subscriber without either
// package importing pkg/runlog.
type Recorder struct {
	runID string
	sink  Logger
}

// NewRecorder builds a Recorder tagging every event with runID and
// writing to sink.
func NewRecorder(runID string, sink Logger) *Recorder {
	if sink == nil {
		sink = NoopLogger{}
	}
	return &Recorder{runID: runID, sink: sink}
}

// DeviceStateChanged implements device.EventSink.
func (r *Recorder) DeviceStateChanged(device string, from, to devicestate.Name, at time.Time) {
	r.sink.Log(Event{
		Timestamp:   at,
		Category:    CategoryDeviceState,
		RunID:       r.runID,
		Device:      device,
		DeviceState: &DeviceStateEvent{From: string(from), To: string(to)},
	})
}

// CommandDispatched implements device.EventSink.
func (r *Recorder) CommandDispatched(device string, bytestring []byte, at time.Time) {
	r.sink.Log(Event{
		Timestamp:         at,
		Category:          CategoryCommandDispatched,
		RunID:             r.runID,
		Device:            device,
		CommandDispatched: &CommandDispatchedEvent{Bytestring: bytestring},
	})
}

// CommandReplyReceived implements device.EventSink.
func (r *Recorder) CommandReplyReceived(device string, line string, at time.Time) {
	r.sink.Log(Event{
		Timestamp:    at,
		Category:     CategoryCommandReply,
		RunID:        r.runID,
		Device:       device,
		CommandReply: &CommandReplyEvent{Line: line},
	})
}

// Update implements observable.Observer: every sample published by a
// producer this Recorder is subscribed to is logged verbatim. The
// producer is identified to the caller by whatever name they used when
// calling Subscribe (pkg/observable.Substrate carries no name of its
// own), so this logs an empty device name; callers that need one
// subscribe a NamedObserver instead, as pkg/experiment does.
func (r *Recorder) Update(producer *observable.Substrate, key string, value string, at time.Time) {
	r.ObservableUpdatedFor("", producer, key, value, at)
}

// ObservableUpdatedFor logs an observable update, tagging it with a
// caller-supplied producer name (a device or derived-observable name)
// instead of the anonymous *observable.Substrate pointer.
func (r *Recorder) ObservableUpdatedFor(producerName string, producer *observable.Substrate, key string, value string, at time.Time) {
	r.sink.Log(Event{
		Timestamp:  at,
		Category:   CategoryObservable,
		RunID:      r.runID,
		Observable: &ObservableEvent{Producer: producerName, Key: key, Value: value},
	})
}

// NamedObserver adapts a Recorder into an observable.Observer that
// tags every update with a fixed producer name, for subscribing to one
// specific device's or derived observable's substrate.
type NamedObserver struct {
	Name     string
	Recorder *Recorder
}

// Update implements observable.Observer.
func (n NamedObserver) Update(producer *observable.Substrate, key string, value string, at time.Time) {
	n.Recorder.ObservableUpdatedFor(n.Name, producer, key, value, at)
}

var _ observable.Observer = NamedObserver{}

// ExperimentPhaseChanged records an experiment lifecycle transition.
func (r *Recorder) ExperimentPhaseChanged(phase ExperimentPhase, reason string, at time.Time) {
	r.sink.Log(Event{
		Timestamp:  at,
		Category:   CategoryExperiment,
		RunID:      r.runID,
		Experiment: &ExperimentEvent{Phase: phase, Reason: reason},
	})
}
