package telemetry

import (
	"fmt"
	"math"
	"sync/atomic"
)

// ExecutionModeSetting mirrors risk.ExecutionMode as a string so the
// settings layer stays decoupled from the risk package (spec.md §3: the
// settings store is a cross-cutting concern consumed by risk, strategy,
// and ticks).
type ExecutionModeSetting string

const (
	ModePaper ExecutionModeSetting = "Paper"
	ModeLive  ExecutionModeSetting = "Live"
)

// RuntimeSettings is the full set of operator-tunable knobs, spec.md §4.10.
type RuntimeSettings struct {
	Mode               ExecutionModeSetting
	LiveFeatureEnabled bool
	TradingPaused      bool

	DivergenceThresholdPct float64
	LagTriggerThresholdPct float64
	MaxStaleMS             int64
	OutlierClipBps         float64

	RiskCapPct     float64
	PositionCapQty float64
	DailyLossCapPct float64

	LotStep     float64
	SlippageBps float64
	FeeBps      float64

	DecisionIntervalMS int64
	MarketLagMS        int64
}

// Validate rejects non-finite values, out-of-range percentages, and the
// Live+disabled combination called out by spec.md scenario S6.
func (s RuntimeSettings) Validate() error {
	fields := map[string]float64{
		"divergence_threshold_pct": s.DivergenceThresholdPct,
		"lag_trigger_threshold_pct": s.LagTriggerThresholdPct,
		"outlier_clip_bps":          s.OutlierClipBps,
		"risk_cap_pct":              s.RiskCapPct,
		"position_cap_qty":          s.PositionCapQty,
		"daily_loss_cap_pct":        s.DailyLossCapPct,
		"lot_step":                  s.LotStep,
		"slippage_bps":              s.SlippageBps,
		"fee_bps":                   s.FeeBps,
	}
	for name, v := range fields {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%s: must be finite, got %v", name, v)
		}
	}
	if s.LagTriggerThresholdPct <= 0 || s.LagTriggerThresholdPct > 100 {
		return fmt.Errorf("lag_trigger_threshold_pct: must be in (0, 100], got %v", s.LagTriggerThresholdPct)
	}
	if s.RiskCapPct <= 0 || s.RiskCapPct > 100 {
		return fmt.Errorf("risk_cap_pct: must be in (0, 100], got %v", s.RiskCapPct)
	}
	if s.DailyLossCapPct <= 0 || s.DailyLossCapPct > 100 {
		return fmt.Errorf("daily_loss_cap_pct: must be in (0, 100], got %v", s.DailyLossCapPct)
	}
	if s.LotStep <= 0 {
		return fmt.Errorf("lot_step: must be positive, got %v", s.LotStep)
	}
	if s.MaxStaleMS <= 0 {
		return fmt.Errorf("max_stale_ms: must be positive, got %v", s.MaxStaleMS)
	}
	if s.DecisionIntervalMS <= 0 {
		return fmt.Errorf("decision_interval_ms: must be positive, got %v", s.DecisionIntervalMS)
	}
	if s.Mode == ModeLive && !s.LiveFeatureEnabled {
		return fmt.Errorf("mode=Live requires live_feature_enabled=true")
	}
	return nil
}

// Store holds the single live RuntimeSettings snapshot. Writers go through
// Update, which validates before swapping; readers call Load and get an
// immutable value, mirroring the teacher's single-writer services.go
// discipline generalized with atomic.Pointer instead of a channel, since
// settings are read far more often than written.
type Store struct {
	ptr atomic.Pointer[RuntimeSettings]
}

// NewStore seeds the store with an already-validated initial snapshot.
func NewStore(initial RuntimeSettings) (*Store, error) {
	if err := initial.Validate(); err != nil {
		return nil, err
	}
	s := &Store{}
	s.ptr.Store(&initial)
	return s, nil
}

// Load returns the current settings snapshot.
func (s *Store) Load() RuntimeSettings {
	return *s.ptr.Load()
}

// Update validates next and, on success, atomically swaps it in and
// returns the SettingsUpdatedEvent to publish. On validation failure the
// store is left unchanged.
func (s *Store) Update(next RuntimeSettings, createdNS int64) (SettingsUpdatedEvent, error) {
	if err := next.Validate(); err != nil {
		return SettingsUpdatedEvent{}, err
	}
	s.ptr.Store(&next)
	return SettingsUpdatedEvent{Meta: NewMeta(createdNS, ""), Settings: next}, nil
}
