// Package runlog implements per-run event logging: a domain-specific
// Event type plus three parallel sinks (CBOR file, slog text, slog
// JSON) carrying command dispatch, device state, observable
// updates, and experiment lifecycle events.
//
// Grounded on an equivalent protocol-event logger elsewhere in this
// corpus's stack (the Event/Category shape and CBOR integer-keyed
// tagging, plus its canonical CBOR encoder configuration), adapted
// from wire-protocol events to experiment run events.
package runlog

import "time"

// Category classifies a logged event.
type Category uint8

const (
	// CategoryCommandDispatched is emitted when a device writes a
	// command's bytes to the wire.
	CategoryCommandDispatched Category = 0
	// CategoryCommandReply is emitted when a device receives a framed
	// reply line.
	CategoryCommandReply Category = 1
	// CategoryDeviceState is emitted on every device lifecycle
	// transition.
	CategoryDeviceState Category = 2
	// CategoryObservable is emitted on every observable update an
	// experiment is subscribed to.
	CategoryObservable Category = 3
	// CategoryExperiment is emitted on experiment lifecycle
	// transitions (started, succeeded, failed, stopped).
	CategoryExperiment Category = 4
)

// String returns the category name.
func (c Category) String() string {
	switch c {
	case CategoryCommandDispatched:
		return "COMMAND_DISPATCHED"
	case CategoryCommandReply:
		return "COMMAND_REPLY"
	case CategoryDeviceState:
		return "DEVICE_STATE"
	case CategoryObservable:
		return "OBSERVABLE"
	case CategoryExperiment:
		return "EXPERIMENT"
	default:
		return "UNKNOWN"
	}
}

// Event is one entry in a run's log. Exactly one of the optional
// payload fields is set, matching which Category it carries.
type Event struct {
	Timestamp time.Time `cbor:"1,keyasint"`
	Category  Category  `cbor:"2,keyasint"`
	RunID     string    `cbor:"3,keyasint,omitempty"`
	Device    string    `cbor:"4,keyasint,omitempty"`

	CommandDispatched *CommandDispatchedEvent `cbor:"10,keyasint,omitempty"`
	CommandReply      *CommandReplyEvent      `cbor:"11,keyasint,omitempty"`
	DeviceState       *DeviceStateEvent       `cbor:"12,keyasint,omitempty"`
	Observable        *ObservableEvent        `cbor:"13,keyasint,omitempty"`
	Experiment        *ExperimentEvent        `cbor:"14,keyasint,omitempty"`
}

// CommandDispatchedEvent records the bytes written to a device.
type CommandDispatchedEvent struct {
	Bytestring []byte `cbor:"1,keyasint"`
}

// CommandReplyEvent records a framed reply line as received, before
// parsing.
type CommandReplyEvent struct {
	Line string `cbor:"1,keyasint"`
}

// DeviceStateEvent records a lifecycle transition.
type DeviceStateEvent struct {
	From string `cbor:"1,keyasint"`
	To   string `cbor:"2,keyasint"`
}

// ObservableEvent records a single published sample.
type ObservableEvent struct {
	Producer string `cbor:"1,keyasint"`
	Key      string `cbor:"2,keyasint"`
	Value    string `cbor:"3,keyasint"`
}

// ExperimentPhase distinguishes an experiment lifecycle transition.
type ExperimentPhase uint8

const (
	// ExperimentStarted marks an experiment entering Running.
	ExperimentStarted ExperimentPhase = 0
	// ExperimentSucceeded marks an experiment completing successfully.
	ExperimentSucceeded ExperimentPhase = 1
	// ExperimentFailed marks an experiment failing a stop-condition or
	// erroring out.
	ExperimentFailed ExperimentPhase = 2
	// ExperimentStopped marks an experiment stopped by operator request.
	ExperimentStopped ExperimentPhase = 3
)

// String returns the phase name.
func (p ExperimentPhase) String() string {
	switch p {
	case ExperimentStarted:
		return "STARTED"
	case ExperimentSucceeded:
		return "SUCCEEDED"
	case ExperimentFailed:
		return "FAILED"
	case ExperimentStopped:
		return "STOPPED"
	default:
		return "UNKNOWN"
	}
}

// ExperimentEvent records an experiment lifecycle transition.
type ExperimentEvent struct {
	Phase  ExperimentPhase `cbor:"1,keyasint"`
	Reason string          `cbor:"2,keyasint,omitempty"`
}
