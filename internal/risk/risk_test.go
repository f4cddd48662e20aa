package risk

import (
	"testing"

	"github.com/distractedCoding/market-latency-risk-lab/internal/strategy"
	"github.com/stretchr/testify/require"
)

func baseSettings() Settings {
	return Settings{
		ExecutionMode:   ModePaper,
		RiskPerTradePct: 0.5,
		DailyLossCapPct: 2.0,
		MaxPosition:     10,
	}
}

func TestEvaluate_RiskCapRejection(t *testing.T) {
	// spec.md S3: risk_per_trade_pct=0.5, equity=100_000, mark=64_000, qty=1.0
	// -> notional 64_000 is 64% of equity, far over 0.5% -> RejectRiskCap.
	e := NewEngine(100_000)
	intent := strategy.Intent{Side: strategy.SideBuy, Qty: 1.0}
	reason := e.Evaluate(intent, 64_000, baseSettings())
	require.Equal(t, RejectRiskCap, reason)
}

func TestEvaluate_OrderOfGates(t *testing.T) {
	e := NewEngine(100_000)
	e.Halt("test")
	settings := baseSettings()
	settings.TradingPaused = true // halted should still win first

	reason := e.Evaluate(strategy.Intent{Qty: 0.001}, 100, settings)
	require.Equal(t, RejectHalted, reason)
}

func TestEvaluate_PausedBeforeLiveGate(t *testing.T) {
	e := NewEngine(100_000)
	settings := baseSettings()
	settings.TradingPaused = true
	settings.ExecutionMode = ModeLive
	settings.LiveFeatureEnabled = false

	reason := e.Evaluate(strategy.Intent{Qty: 0.001}, 100, settings)
	require.Equal(t, RejectPaused, reason)
}

func TestEvaluate_LiveGateClosed(t *testing.T) {
	e := NewEngine(100_000)
	settings := baseSettings()
	settings.ExecutionMode = ModeLive
	settings.LiveFeatureEnabled = false

	reason := e.Evaluate(strategy.Intent{Qty: 0.001}, 100, settings)
	require.Equal(t, RejectLiveGateClosed, reason)
}

func TestEvaluate_PositionCap(t *testing.T) {
	e := NewEngine(100_000)
	e.ApplyFill(9.5, 0)
	settings := baseSettings()
	settings.RiskPerTradePct = 100 // disable risk cap so position cap is reached first

	reason := e.Evaluate(strategy.Intent{Side: strategy.SideBuy, Qty: 1}, 1, settings)
	require.Equal(t, RejectPositionCap, reason)
}

func TestEvaluate_ApprovedIntent(t *testing.T) {
	e := NewEngine(100_000)
	settings := baseSettings()
	settings.RiskPerTradePct = 100

	reason := e.Evaluate(strategy.Intent{Side: strategy.SideBuy, Qty: 1}, 1, settings)
	require.Equal(t, RejectNone, reason)
}

func TestCheckDailyLoss_HaltsAndStaysHalted(t *testing.T) {
	// spec.md S2: starting_equity=100_000, daily_loss_cap_pct=2.0,
	// realized_pnl=-2_001 -> halt(reason="daily_loss_cap").
	e := NewEngine(100_000)
	e.ApplyFill(0, -2_001)

	justHalted := e.CheckDailyLoss(2.0)
	require.True(t, justHalted)
	require.True(t, e.State().Halted)
	require.Equal(t, "daily_loss_cap", e.State().HaltReason)

	// subsequent intents are rejected with Halted, and the watcher never
	// re-fires once already halted (absorbing state, property 3).
	reason := e.Evaluate(strategy.Intent{Qty: 0.001}, 1, baseSettings())
	require.Equal(t, RejectHalted, reason)
	require.False(t, e.CheckDailyLoss(2.0))
}

func TestCheckDailyLoss_ExactBoundaryHalts(t *testing.T) {
	e := NewEngine(100_000)
	e.ApplyFill(0, -2_000) // exactly at the cap
	require.True(t, e.CheckDailyLoss(2.0))
}

func TestReset_ClearsHaltAndAccumulators(t *testing.T) {
	e := NewEngine(100_000)
	e.ApplyFill(5, -5_000)
	e.Halt("daily_loss_cap")

	e.Reset(100_000)
	s := e.State()
	require.False(t, s.Halted)
	require.Equal(t, 0.0, s.RealizedPnL)
	require.Equal(t, 0.0, s.PositionQty)
}
