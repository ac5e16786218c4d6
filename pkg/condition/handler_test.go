package condition_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/labstation/orchestrator/pkg/condition"
	"github.com/labstation/orchestrator/pkg/observable"
)

func TestHandler_FiresCallbackWhenConditionLatches(t *testing.T) {
	obs := observable.NewSubstrate()
	c := condition.NewObservableEquals("ready", obs, "state", "ready")
	h := condition.NewHandler()

	fired := false
	now := time.Unix(0, 0)
	h.AddCondition(c, now, func(at time.Time) { fired = true })
	require.False(t, fired)

	obs.UpdateOne("state", "ready", now.Add(time.Second))
	require.True(t, fired)
}

func TestHandler_FiresImmediatelyIfAlreadyTrueOnAdd(t *testing.T) {
	obs := observable.NewSubstrate()
	now := time.Unix(0, 0)
	obs.UpdateOne("state", "ready", now)

	c := condition.NewObservableEquals("ready", obs, "state", "ready")
	h := condition.NewHandler()

	fired := false
	h.AddCondition(c, now, func(at time.Time) { fired = true })
	require.True(t, fired)
}

func TestHandler_FixpointReevaluatesAfterFiring(t *testing.T) {
	// b depends on a side effect performed by a's callback (publishing
	// to obs), mirroring the source's recursion against the full
	// condition dict rather than just the subset that fired.
	obs := observable.NewSubstrate()
	now := time.Unix(0, 0)

	a := condition.NewObservableEquals("a", obs, "a", "1")
	b := condition.NewObservableEquals("b", obs, "b", "1")
	h := condition.NewHandler()

	bFired := false
	h.AddCondition(b, now, func(at time.Time) { bFired = true })
	h.AddCondition(a, now, func(at time.Time) {
		obs.UpdateOne("b", "1", now)
	})

	obs.UpdateOne("a", "1", now)
	require.True(t, bFired, "b's condition should be re-evaluated within the same fixpoint pass")
}

func TestHandler_MultipleCallbacksOnSameCondition(t *testing.T) {
	obs := observable.NewSubstrate()
	now := time.Unix(0, 0)
	c := condition.NewObservableEquals("ready", obs, "state", "ready")
	h := condition.NewHandler()

	var count int
	h.AddCondition(c, now, func(at time.Time) { count++ })
	h.AddCondition(c, now, func(at time.Time) { count++ })

	obs.UpdateOne("state", "ready", now)
	require.Equal(t, 2, count)
}
