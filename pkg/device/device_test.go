package device

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/labstation/orchestrator/internal/clock"
	"github.com/labstation/orchestrator/pkg/command"
	"github.com/labstation/orchestrator/pkg/devicestate"
	"github.com/labstation/orchestrator/pkg/parser"
	"github.com/labstation/orchestrator/pkg/transport"
)

// newTestDevice builds a Device wired directly to an in-memory buffer,
// already Ready, bypassing Connect/dial so tests don't need a real
// listener.
func newTestDevice(t *testing.T) (*Device, *bytes.Buffer, *clock.Virtual) {
	t.Helper()
	clk := clock.NewVirtual(time.Unix(0, 0))
	d := New(Config{Name: "pump1", Clock: clk})
	buf := &bytes.Buffer{}
	d.writer = transport.NewLineWriter(buf)
	d.st = readyState{}
	return d, buf, clk
}

func TestDevice_DispatchesImmediatelyWhenReady(t *testing.T) {
	d, buf, clk := newTestDevice(t)

	cmd := command.New(d, clk, []byte("RUN\n"), command.DefaultParams(), parser.SuccessParser{}, nil)
	require.NoError(t, d.SendCommand(cmd))

	require.Equal(t, "RUN\n", buf.String())
	require.Equal(t, devicestate.Busy, d.State())
}

func TestDevice_QueuesWhileBusyThenDispatchesNext(t *testing.T) {
	d, buf, clk := newTestDevice(t)

	params := command.DefaultParams()
	first := command.New(d, clk, []byte("A\n"), params, parser.SuccessParser{}, nil)
	second := command.New(d, clk, []byte("B\n"), params, parser.SuccessParser{}, nil)

	require.NoError(t, d.SendCommand(first))
	err := d.SendCommand(second)
	require.ErrorIs(t, err, ErrDeviceBusy, "second command has RunWhileDeviceBusy=false by default")

	params.RunWhileDeviceBusy = true
	second2 := command.New(d, clk, []byte("B\n"), params, parser.SuccessParser{}, nil)
	require.NoError(t, d.SendCommand(second2))
	require.Equal(t, "A\n", buf.String(), "second command must not dispatch until the first settles")

	d.handleLine("ok-a")
	require.Equal(t, "A\nB\n", buf.String())
}

func TestDevice_UrgentCommandJumpsQueue(t *testing.T) {
	d, buf, clk := newTestDevice(t)

	base := command.DefaultParams()
	base.RunWhileDeviceBusy = true
	first := command.New(d, clk, []byte("A\n"), base, parser.SuccessParser{}, nil)

	normal := base
	normalCmd := command.New(d, clk, []byte("N\n"), normal, parser.SuccessParser{}, nil)

	urgent := base
	urgent.Urgent = true
	urgentCmd := command.New(d, clk, []byte("U\n"), urgent, parser.SuccessParser{}, nil)

	require.NoError(t, d.SendCommand(first))
	require.NoError(t, d.SendCommand(normalCmd))
	require.NoError(t, d.SendCommand(urgentCmd))

	d.handleLine("ok-a")
	require.Equal(t, "A\nU\n", buf.String(), "urgent command should dispatch before the normal queued one")
}

func TestDevice_UrgentCommandsInsertAfterLastUrgent(t *testing.T) {
	d, buf, clk := newTestDevice(t)

	base := command.DefaultParams()
	base.RunWhileDeviceBusy = true
	first := command.New(d, clk, []byte("A\n"), base, parser.SuccessParser{}, nil)

	urgentParams := base
	urgentParams.Urgent = true
	u1 := command.New(d, clk, []byte("U1\n"), urgentParams, parser.SuccessParser{}, nil)
	u2 := command.New(d, clk, []byte("U2\n"), urgentParams, parser.SuccessParser{}, nil)

	n1 := command.New(d, clk, []byte("N1\n"), base, parser.SuccessParser{}, nil)
	n2 := command.New(d, clk, []byte("N2\n"), base, parser.SuccessParser{}, nil)

	u3 := command.New(d, clk, []byte("U3\n"), urgentParams, parser.SuccessParser{}, nil)

	require.NoError(t, d.SendCommand(first))
	require.NoError(t, d.SendCommand(u1))
	require.NoError(t, d.SendCommand(u2))
	require.NoError(t, d.SendCommand(n1))
	require.NoError(t, d.SendCommand(n2))
	require.NoError(t, d.SendCommand(u3))

	d.handleLine("ok-a")
	d.handleLine("ok-u1")
	d.handleLine("ok-u2")
	d.handleLine("ok-u3")
	d.handleLine("ok-n1")

	require.Equal(t, "A\nU1\nU2\nU3\nN1\nN2\n", buf.String(),
		"u3 must insert after the last already-queued urgent, not jump ahead of u1/u2")
}

func TestDevice_UnconsumedLineBecomesEvent(t *testing.T) {
	d, _, _ := newTestDevice(t)
	d.handleLine("TEMP=23.5")

	latest, err := d.Observable().GetLatest("event")
	require.NoError(t, err)
	require.Equal(t, "TEMP=23.5", latest.Value)
}

func TestDevice_RejectsCommandsWhenNotReady(t *testing.T) {
	clk := clock.NewVirtual(time.Unix(0, 0))
	d := New(Config{Name: "pump1", Clock: clk})
	cmd := command.New(d, clk, []byte("RUN\n"), command.DefaultParams(), parser.SuccessParser{}, nil)
	require.ErrorIs(t, d.SendCommand(cmd), ErrDeviceNotReady)
}

