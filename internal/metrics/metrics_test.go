package metrics

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPercentiles_SortedSnapshot(t *testing.T) {
	a := New("test_percentiles")
	for i := 1; i <= 100; i++ {
		a.RecordDecisionLatency(float64(i))
	}
	p := a.DecisionPercentiles()
	require.InDelta(t, 50, p.P50, 2)
	require.InDelta(t, 95, p.P95, 2)
	require.InDelta(t, 99, p.P99, 2)
}

func TestRing_WrapsAtCapacity(t *testing.T) {
	a := New("test_ring")
	for i := 0; i < ringSize+10; i++ {
		a.RecordDecisionLatency(float64(i))
	}
	sorted := a.decisionLatencyUS.snapshot()
	require.Len(t, sorted, ringSize)
	require.Equal(t, float64(10), sorted[0], "oldest 10 samples should have been overwritten")
}

func TestCounters_RejectsByReason(t *testing.T) {
	a := New("test_counters")
	a.IncIntents()
	a.IncFills()
	a.IncReject("RiskCap")
	a.IncReject("RiskCap")
	a.IncReject("Halted")
	a.IncDropped("ui")

	snap := a.Snapshot()
	require.Equal(t, int64(1), snap.Intents)
	require.Equal(t, int64(1), snap.Fills)
	require.Equal(t, int64(2), snap.RejectsByReason["RiskCap"])
	require.Equal(t, int64(1), snap.RejectsByReason["Halted"])
	require.Equal(t, int64(1), snap.DroppedTelemetry)
}

func TestEmptyRing_PercentilesAreZero(t *testing.T) {
	a := New("test_empty")
	p := a.DecisionPercentiles()
	require.Equal(t, Percentiles{}, p)
}
