package command

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/labstation/orchestrator/internal/clock"
	"github.com/labstation/orchestrator/pkg/result"
)

type fakeTransmitter struct {
	writes [][]byte
}

func (f *fakeTransmitter) TransmitCommand(cmd Instance) error {
	f.writes = append(f.writes, cmd.Bytestring())
	return nil
}

func TestCommand_SuccessOnFirstReply(t *testing.T) {
	clk := clock.NewVirtual(time.Unix(0, 0))
	tx := &fakeTransmitter{}
	params := DefaultParams()
	cmd := New(tx, clk, []byte("READ?\n"), params, SuccessParserStub{}, nil)

	cmd.Execute()
	require.Equal(t, Sent, cmd.State())
	require.Len(t, tx.writes, 1)

	reply := result.New("OK", clk.Now())
	require.NoError(t, cmd.SetTempResult(reply))
	cmd.Transition(Success)

	require.Equal(t, Success, cmd.State())
	r, err := awaitResult(t, cmd)
	require.NoError(t, err)
	require.Equal(t, "OK", r.Line)
}

func TestCommand_TimeoutThenRetrySucceeds(t *testing.T) {
	clk := clock.NewVirtual(time.Unix(0, 0))
	tx := &fakeTransmitter{}
	params := DefaultParams()
	params.Retries = 2
	params.Timeout = time.Second
	cmd := New(tx, clk, []byte("READ?\n"), params, SuccessParserStub{}, nil)

	cmd.Execute()
	clk.Advance(2 * time.Second)

	require.Equal(t, Sent, cmd.State())
	require.Len(t, tx.writes, 2, "should have re-sent once after the timeout")

	reply := result.New("OK", clk.Now())
	require.NoError(t, cmd.SetTempResult(reply))
	cmd.Transition(Success)
	require.Equal(t, Success, cmd.State())
}

func TestCommand_RetriesExhaustedFails(t *testing.T) {
	clk := clock.NewVirtual(time.Unix(0, 0))
	tx := &fakeTransmitter{}
	params := DefaultParams()
	params.Retries = 1
	params.Timeout = time.Second
	cmd := New(tx, clk, []byte("READ?\n"), params, SuccessParserStub{}, nil)

	cmd.Execute()
	clk.Advance(2 * time.Second) // 1st timeout -> retry (re-send)
	clk.Advance(2 * time.Second) // 2nd timeout -> retries exhausted -> fail

	require.Equal(t, Fail, cmd.State())
	_, err := awaitResult(t, cmd)
	require.Error(t, err)
	var retryErr *result.RetryError
	require.ErrorAs(t, err, &retryErr)
}

func TestCommand_OnTimeoutFailStopsImmediately(t *testing.T) {
	clk := clock.NewVirtual(time.Unix(0, 0))
	tx := &fakeTransmitter{}
	params := DefaultParams()
	params.Retries = 5
	params.Timeout = time.Second
	params.OnTimeout = ActionFail
	cmd := New(tx, clk, []byte("READ?\n"), params, SuccessParserStub{}, nil)

	cmd.Execute()
	clk.Advance(2 * time.Second)

	require.Equal(t, Fail, cmd.State())
	require.Len(t, tx.writes, 1, "on_timeout=fail must not re-send")
}

func TestCommand_Cancel(t *testing.T) {
	clk := clock.NewVirtual(time.Unix(0, 0))
	tx := &fakeTransmitter{}
	cmd := New(tx, clk, []byte("READ?\n"), DefaultParams(), SuccessParserStub{}, nil)
	cmd.Execute()

	require.NoError(t, cmd.Cancel())
	require.Equal(t, Cancelled, cmd.State())
	require.ErrorIs(t, cmd.Cancel(), ErrAlreadyTerminal)
}

// SuccessParserStub satisfies Command.New's Parser argument. These tests
// drive transitions by hand through SetTempResult/Transition rather than
// HandleReply, so its Parse is not exercised here.
type SuccessParserStub struct{}

func (SuccessParserStub) Parse(reply *result.Result) (any, State) { return reply, Success }

func awaitResult(t *testing.T, cmd *Command) (*result.Result, error) {
	t.Helper()
	var r *result.Result
	var err error
	settled := false
	cmd.ResultFuture().Then(func(v *result.Result, e error) {
		r, err, settled = v, e, true
	})
	require.True(t, settled, "result future should have already settled synchronously")
	return r, err
}
