package telemetry

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func validSettings() RuntimeSettings {
	return RuntimeSettings{
		Mode:                   ModePaper,
		LiveFeatureEnabled:     false,
		DivergenceThresholdPct: 0.5,
		LagTriggerThresholdPct: 0.3,
		MaxStaleMS:             2000,
		OutlierClipBps:         50,
		RiskCapPct:             2,
		PositionCapQty:         100,
		DailyLossCapPct:        5,
		LotStep:                0.1,
		SlippageBps:            3,
		FeeBps:                 7,
		DecisionIntervalMS:     100,
		MarketLagMS:            250,
	}
}

func TestValidate_RejectsNonFinite(t *testing.T) {
	s := validSettings()
	s.RiskCapPct = math.Inf(1)
	require.Error(t, s.Validate())
}

func TestValidate_RejectsOutOfRangePercent(t *testing.T) {
	s := validSettings()
	s.RiskCapPct = 0
	require.Error(t, s.Validate())

	s2 := validSettings()
	s2.DailyLossCapPct = 150
	require.Error(t, s2.Validate())
}

func TestValidate_RejectsOutOfRangeLagTriggerThreshold(t *testing.T) {
	s := validSettings()
	s.LagTriggerThresholdPct = 0
	require.Error(t, s.Validate())

	s2 := validSettings()
	s2.LagTriggerThresholdPct = 150
	require.Error(t, s2.Validate())
}

func TestValidate_LiveRequiresFeatureFlag(t *testing.T) {
	// spec.md scenario S6.
	s := validSettings()
	s.Mode = ModeLive
	s.LiveFeatureEnabled = false
	require.Error(t, s.Validate())

	s.LiveFeatureEnabled = true
	require.NoError(t, s.Validate())
}

func TestStore_UpdateRejectsInvalidLeavesPriorIntact(t *testing.T) {
	store, err := NewStore(validSettings())
	require.NoError(t, err)

	bad := validSettings()
	bad.LotStep = 0
	_, err = store.Update(bad, 1)
	require.Error(t, err)

	require.Equal(t, validSettings(), store.Load())
}

func TestStore_UpdateAppliesValid(t *testing.T) {
	store, err := NewStore(validSettings())
	require.NoError(t, err)

	next := validSettings()
	next.RiskCapPct = 3
	evt, err := store.Update(next, 42)
	require.NoError(t, err)
	require.Equal(t, 3.0, evt.Settings.RiskCapPct)
	require.Equal(t, 3.0, store.Load().RiskCapPct)
}
