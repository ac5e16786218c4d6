package derived_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/labstation/orchestrator/pkg/derived"
	"github.com/labstation/orchestrator/pkg/mathexpr"
	"github.com/labstation/orchestrator/pkg/observable"
)

func TestTimeIntegral_BackfillsThenAdvances(t *testing.T) {
	source := observable.NewSubstrate()
	out := observable.NewSubstrate()
	start := time.Unix(0, 0)

	source.UpdateOne("flow", "0", start)
	source.UpdateOne("flow", "10", start.Add(1*time.Second))

	ti := derived.NewTimeIntegral(source, "flow", out, "volume")
	ti.Start(start)

	latest, err := out.GetLatest("volume")
	require.NoError(t, err)
	require.Equal(t, "10", latest.Value, "rectangular: 1s at the new value 10 adds 10")

	source.UpdateOne("flow", "10", start.Add(2*time.Second))
	latest, err = out.GetLatest("volume")
	require.NoError(t, err)
	require.Equal(t, "20", latest.Value, "adds another 1s*10=10")
}

func TestTimeIntegral_NonNumericContributesZero(t *testing.T) {
	source := observable.NewSubstrate()
	out := observable.NewSubstrate()
	start := time.Unix(0, 0)

	ti := derived.NewTimeIntegral(source, "flow", out, "volume")
	ti.Start(start)

	source.UpdateOne("flow", "garbage", start)
	latest, err := out.GetLatest("volume")
	require.NoError(t, err)
	require.Equal(t, "0", latest.Value)
}

func TestMathExpression_RecomputesWhenAnyVariableUpdates(t *testing.T) {
	source := observable.NewSubstrate()
	out := observable.NewSubstrate()
	start := time.Unix(0, 0)

	expr, err := mathexpr.Parse("a + b")
	require.NoError(t, err)
	me := derived.NewMathExpression(source, out, "sum", expr)
	me.Start()

	source.UpdateOne("a", "1", start)
	_, err = out.GetLatest("sum")
	require.Error(t, err, "b has no sample yet; must skip silently")

	source.UpdateOne("b", "2", start.Add(time.Second))
	latest, err := out.GetLatest("sum")
	require.NoError(t, err)
	require.Equal(t, "3", latest.Value)

	source.UpdateOne("a", "10", start.Add(2*time.Second))
	latest, err = out.GetLatest("sum")
	require.NoError(t, err)
	require.Equal(t, "12", latest.Value)
}
