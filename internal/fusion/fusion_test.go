package fusion

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFuse_StaleSourcesExcluded(t *testing.T) {
	// spec.md S5: fresh 64100 @ age 500ms, stale 60000 @ age 3000ms,
	// staleness budget 2000ms -> ReferencePrice.Px == 64100, sources_used==1.
	now := int64(10_000)
	predictors := []PredictorTick{
		{Source: "tradingview", Px: 64100, TsMS: now - 500},
		{Source: "cryptoquant", Px: 60000, TsMS: now - 3000},
	}
	ref := Fuse(predictors, now, Config{StalenessBudgetMS: 2000})

	require.True(t, ref.Valid)
	require.Equal(t, 64100.0, ref.Px)
	require.Equal(t, 1, ref.SourcesUsed)
}

func TestFuse_NoFreshSourceIsInvalid(t *testing.T) {
	now := int64(10_000)
	predictors := []PredictorTick{
		{Source: "a", Px: 100, TsMS: now - 5000},
	}
	ref := Fuse(predictors, now, Config{StalenessBudgetMS: 2000})
	require.False(t, ref.Valid)
}

func TestFuse_MedianAndSpread(t *testing.T) {
	now := int64(0)
	predictors := []PredictorTick{
		{Source: "a", Px: 100, TsMS: 0},
		{Source: "b", Px: 102, TsMS: 0},
		{Source: "c", Px: 104, TsMS: 0},
	}
	ref := Fuse(predictors, now, Config{StalenessBudgetMS: 2000})
	require.Equal(t, 102.0, ref.Px)
	require.Equal(t, 3, ref.SourcesUsed)
	require.InDelta(t, 10_000*(104-100)/102.0, ref.SpreadBps, 1e-9)
}

func TestFuse_OutlierClipped(t *testing.T) {
	now := int64(0)
	// median of {100,101,1000} is 101; 1000 is >200bps from 101 and gets
	// dropped, recomputing the median over {100,101}.
	predictors := []PredictorTick{
		{Source: "a", Px: 100, TsMS: 0},
		{Source: "b", Px: 101, TsMS: 0},
		{Source: "c", Px: 1000, TsMS: 0},
	}
	ref := Fuse(predictors, now, Config{StalenessBudgetMS: 2000, OutlierClipBps: 200})
	require.Equal(t, 2, ref.SourcesUsed)
	require.Equal(t, 100.5, ref.Px)
}

func TestDetectLag_BoundaryIsClosed(t *testing.T) {
	// spec.md S4: reference=64200, market=64008 -> 0.2999% at threshold 0.3% -> no trigger.
	noTrigger := DetectLag(ReferencePrice{Valid: true, Px: 64200}, 64008, 0.3)
	require.False(t, noTrigger.Triggered)

	// reference=64200, market=64200/1.003 (~64007.98) -> exactly 0.3% -> trigger Buy.
	market := 64200 / 1.003
	trigger := DetectLag(ReferencePrice{Valid: true, Px: 64200}, market, 0.3)
	require.True(t, trigger.Triggered)
	require.Equal(t, DirectionBuy, trigger.Direction)
}

func TestDetectLag_InvalidReferenceNeverTriggers(t *testing.T) {
	trigger := DetectLag(ReferencePrice{}, 100, 0.3)
	require.False(t, trigger.Triggered)
}

func TestDetectLag_SellDirection(t *testing.T) {
	trigger := DetectLag(ReferencePrice{Valid: true, Px: 99}, 100, 0.5)
	require.True(t, trigger.Triggered)
	require.Equal(t, DirectionSell, trigger.Direction)
}
