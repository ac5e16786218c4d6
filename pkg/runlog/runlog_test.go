package runlog_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/labstation/orchestrator/pkg/devicestate"
	"github.com/labstation/orchestrator/pkg/runlog"
)

type captureLogger struct{ events []runlog.Event }

func (c *captureLogger) Log(e runlog.Event) { c.events = append(c.events, e) }

func TestRecorder_TagsEventsWithRunID(t *testing.T) {
	cap := &captureLogger{}
	r := runlog.NewRecorder("run-1", cap)
	now := time.Unix(0, 0)

	r.DeviceStateChanged("pump1", devicestate.Ready, devicestate.Busy, now)
	r.CommandDispatched("pump1", []byte("RUN\n"), now)
	r.CommandReplyReceived("pump1", "ok", now)

	require.Len(t, cap.events, 3)
	for _, e := range cap.events {
		require.Equal(t, "run-1", e.RunID)
	}
	require.Equal(t, runlog.CategoryDeviceState, cap.events[0].Category)
	require.Equal(t, "Busy", cap.events[0].DeviceState.To)
}

func TestEvent_CBORRoundTrip(t *testing.T) {
	e := runlog.Event{
		Timestamp:         time.Unix(100, 0).UTC(),
		Category:          runlog.CategoryCommandDispatched,
		RunID:             "run-1",
		Device:            "pump1",
		CommandDispatched: &runlog.CommandDispatchedEvent{Bytestring: []byte("RUN\n")},
	}
	data, err := runlog.EncodeEvent(e)
	require.NoError(t, err)

	decoded, err := runlog.DecodeEvent(data)
	require.NoError(t, err)
	require.Equal(t, e.RunID, decoded.RunID)
	require.Equal(t, e.Category, decoded.Category)
	require.Equal(t, e.CommandDispatched.Bytestring, decoded.CommandDispatched.Bytestring)
}

func TestMultiLogger_FansOutToAllSinks(t *testing.T) {
	a, b := &captureLogger{}, &captureLogger{}
	multi := runlog.MultiLogger{a, b}
	multi.Log(runlog.Event{Category: runlog.CategoryExperiment})

	require.Len(t, a.events, 1)
	require.Len(t, b.events, 1)
}
