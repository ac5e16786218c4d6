package failsafe_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/labstation/orchestrator/pkg/failsafe"
)

func TestTimer_ReconnectBeforeGraceExpiresNeverTrips(t *testing.T) {
	timer := failsafe.NewTimer(failsafe.Config{GraceBeforeTrip: 20 * time.Millisecond})
	tripped := false
	timer.OnTrip(func() { tripped = true })

	timer.NotifyDisconnected()
	timer.NotifyConnected()

	time.Sleep(40 * time.Millisecond)
	require.False(t, tripped)
	require.Equal(t, failsafe.StateNormal, timer.State())
}

func TestTimer_TripsAfterGraceExpires(t *testing.T) {
	timer := failsafe.NewTimer(failsafe.Config{GraceBeforeTrip: 10 * time.Millisecond})
	tripCh := make(chan struct{}, 1)
	timer.OnTrip(func() { tripCh <- struct{}{} })

	timer.NotifyDisconnected()

	select {
	case <-tripCh:
	case <-time.After(200 * time.Millisecond):
		t.Fatal("timer did not trip")
	}
	require.Equal(t, failsafe.StateTripped, timer.State())
}

func TestTimer_ReconnectAfterTripEntersGracePeriodThenClears(t *testing.T) {
	timer := failsafe.NewTimer(failsafe.Config{
		GraceBeforeTrip: 5 * time.Millisecond,
		GraceAfterClear: 10 * time.Millisecond,
	})
	tripCh := make(chan struct{}, 1)
	clearCh := make(chan struct{}, 1)
	timer.OnTrip(func() { tripCh <- struct{}{} })
	timer.OnClear(func() { clearCh <- struct{}{} })

	timer.NotifyDisconnected()
	<-tripCh

	timer.NotifyConnected()
	require.Equal(t, failsafe.StateGracePeriod, timer.State())

	select {
	case <-clearCh:
	case <-time.After(200 * time.Millisecond):
		t.Fatal("timer did not clear")
	}
	require.Equal(t, failsafe.StateNormal, timer.State())
}

func TestTimer_ResetCancelsPendingTrip(t *testing.T) {
	timer := failsafe.NewTimer(failsafe.Config{GraceBeforeTrip: 10 * time.Millisecond})
	tripped := false
	timer.OnTrip(func() { tripped = true })

	timer.NotifyDisconnected()
	timer.Reset()

	time.Sleep(30 * time.Millisecond)
	require.False(t, tripped)
	require.Equal(t, failsafe.StateNormal, timer.State())
}
