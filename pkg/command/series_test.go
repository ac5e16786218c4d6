package command

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/labstation/orchestrator/internal/clock"
	"github.com/labstation/orchestrator/pkg/result"
)

func TestCommandSeries_RunsChildrenInOrder(t *testing.T) {
	clk := clock.NewVirtual(time.Unix(0, 0))
	tx := &fakeTransmitter{}

	var a, b *Command
	series := NewSeries(DefaultParams(), nil).
		Add(func() Instance { a = New(tx, clk, []byte("A\n"), DefaultParams(), SuccessParserStub{}, nil); return a }).
		Add(func() Instance { b = New(tx, clk, []byte("B\n"), DefaultParams(), SuccessParserStub{}, nil); return b })

	series.Execute()
	require.Equal(t, Sent, a.State())
	require.Equal(t, NotSent, b.State(), "second child must not dispatch until the first succeeds")

	require.NoError(t, a.SetTempResult(result.New("ok-a", clk.Now())))
	a.Transition(Success)

	require.Equal(t, Sent, b.State())
	require.NoError(t, b.SetTempResult(result.New("ok-b", clk.Now())))
	b.Transition(Success)

	require.Equal(t, Success, series.State())
}

func TestCommandSeries_ChildFailureFailsSeriesAfterItsOwnRetriesExhaust(t *testing.T) {
	clk := clock.NewVirtual(time.Unix(0, 0))
	tx := &fakeTransmitter{}

	childParams := DefaultParams()
	childParams.Retries = 0
	childParams.OnTimeout = ActionFail
	childParams.Timeout = time.Second

	seriesParams := DefaultParams()
	seriesParams.Retries = 0

	attempts := 0
	series := NewSeries(seriesParams, nil).
		Add(func() Instance {
			attempts++
			return New(tx, clk, []byte("A\n"), childParams, SuccessParserStub{}, nil)
		})

	series.Execute()
	clk.Advance(2 * time.Second)

	require.Equal(t, Fail, series.State())
	require.Equal(t, 1, attempts, "series.Retries=0 means the first child failure fails the series outright")
	var seriesErr *result.SeriesError
	settled := false
	series.ResultFuture().Then(func(_ *result.Result, err error) {
		settled = true
		require.ErrorAs(t, err, &seriesErr)
	})
	require.True(t, settled)
}

func TestCommandSeries_RetriesFromFirstChildOnFailure(t *testing.T) {
	clk := clock.NewVirtual(time.Unix(0, 0))
	tx := &fakeTransmitter{}

	childParams := DefaultParams()
	childParams.Retries = 0
	childParams.OnTimeout = ActionFail
	childParams.Timeout = time.Second

	seriesParams := DefaultParams()
	seriesParams.Retries = 1

	var a, b *Command
	aAttempts, bAttempts := 0, 0
	series := NewSeries(seriesParams, nil).
		Add(func() Instance {
			aAttempts++
			a = New(tx, clk, []byte("A\n"), childParams, SuccessParserStub{}, nil)
			return a
		}).
		Add(func() Instance {
			bAttempts++
			b = New(tx, clk, []byte("B\n"), childParams, SuccessParserStub{}, nil)
			return b
		})

	series.Execute()
	require.NoError(t, a.SetTempResult(result.New("ok-a", clk.Now())))
	a.Transition(Success)

	// b's first attempt times out and exhausts its own (zero) retries,
	// which must restart the whole series rather than failing it.
	clk.Advance(2 * time.Second)
	require.Equal(t, Sent, series.State(), "series must have restarted, not failed, since it has a retry left")
	require.Equal(t, 2, aAttempts, "a must have been rebuilt fresh for the series-level retry")

	require.NoError(t, a.SetTempResult(result.New("ok-a-2", clk.Now())))
	a.Transition(Success)
	require.NoError(t, b.SetTempResult(result.New("ok-b-2", clk.Now())))
	b.Transition(Success)

	require.Equal(t, Success, series.State())
	require.Equal(t, 2, bAttempts, "b must have been rebuilt fresh for the series-level retry")
}
