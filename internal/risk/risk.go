// Package risk implements the risk engine described in spec.md §4.5: the
// per-trade cap, position cap, live-feature gate, pause gate, and the
// daily-loss kill-switch.
package risk

import "github.com/distractedCoding/market-latency-risk-lab/internal/strategy"

// ExecutionMode mirrors the RuntimeSettings variant from spec.md §3
// without importing the telemetry package, to keep risk a leaf package.
type ExecutionMode int

const (
	ModePaper ExecutionMode = iota
	ModeLive
)

// Settings is the subset of RuntimeSettings the risk engine consults on
// every intent, spec.md §4.5.
type Settings struct {
	ExecutionMode      ExecutionMode
	TradingPaused      bool
	LiveFeatureEnabled bool
	RiskPerTradePct    float64
	DailyLossCapPct    float64
	MaxPosition        float64
}

// RejectReason enumerates the risk engine's typed rejection codes,
// spec.md §4.5 and §7 (RiskReject events).
type RejectReason int

const (
	RejectNone RejectReason = iota
	RejectHalted
	RejectPaused
	RejectLiveGateClosed
	RejectRiskCap
	RejectPositionCap
)

func (r RejectReason) String() string {
	switch r {
	case RejectNone:
		return ""
	case RejectHalted:
		return "Halted"
	case RejectPaused:
		return "Paused"
	case RejectLiveGateClosed:
		return "LiveGateClosed"
	case RejectRiskCap:
		return "RiskCap"
	case RejectPositionCap:
		return "PositionCap"
	default:
		return "Unknown"
	}
}

// State is the persistent, single-writer risk state, spec.md §3. It is
// owned exclusively by the Engine (and, transitively, the lab.Lab that
// holds one) and never mutated from any other goroutine.
type State struct {
	StartingEquity float64
	RealizedPnL    float64
	PositionQty    float64
	Halted         bool
	HaltReason     string
	DayEpoch       int
}

// Engine evaluates intents against Settings+State and runs the daily-loss
// watcher. It holds no locks of its own: spec.md §5 requires risk state to
// be touched only by its single owning stage, so callers (internal/lab)
// are responsible for not sharing an Engine across goroutines.
type Engine struct {
	state State
}

// NewEngine starts a fresh, unhalted risk state for a run, spec.md §4.9
// "start" transition.
func NewEngine(startingEquity float64) *Engine {
	return &Engine{state: State{StartingEquity: startingEquity}}
}

// State returns a read-only copy of the current risk state.
func (e *Engine) State() State {
	return e.state
}

// Reset zeroes accumulators and clears the halt, spec.md §4.9 "reset".
func (e *Engine) Reset(startingEquity float64) {
	e.state = State{StartingEquity: startingEquity}
}

// Evaluate implements spec.md §4.5's ordered gate list. Rules run in order;
// the first failure wins.
func (e *Engine) Evaluate(intent strategy.Intent, markPx float64, settings Settings) RejectReason {
	if e.state.Halted {
		return RejectHalted
	}
	if settings.TradingPaused {
		return RejectPaused
	}
	if settings.ExecutionMode == ModeLive && !settings.LiveFeatureEnabled {
		return RejectLiveGateClosed
	}

	projectedRiskPct := intent.Qty * markPx / e.state.StartingEquity * 100
	if projectedRiskPct > settings.RiskPerTradePct {
		return RejectRiskCap
	}

	projectedPosition := e.state.PositionQty
	if intent.Side == strategy.SideBuy {
		projectedPosition += intent.Qty
	} else {
		projectedPosition -= intent.Qty
	}
	if settings.MaxPosition > 0 && absf(projectedPosition) > settings.MaxPosition {
		return RejectPositionCap
	}

	return RejectNone
}

// ApplyFill updates the position/realized-PnL side of the risk state after
// a fill clears execution. Realized PnL accounting itself lives in
// internal/execution (average-cost accounting owns the actual math); this
// just mirrors the resulting totals so the daily-loss watcher can see them.
func (e *Engine) ApplyFill(newPositionQty, newRealizedPnL float64) {
	e.state.PositionQty = newPositionQty
	e.state.RealizedPnL = newRealizedPnL
}

// CheckDailyLoss runs the daily-loss watcher, spec.md §4.5: if realized
// PnL breaches -starting_equity*daily_loss_cap_pct/100, the engine halts
// and stays halted until Reset. Returns true the instant it transitions.
func (e *Engine) CheckDailyLoss(dailyLossCapPct float64) (justHalted bool) {
	if e.state.Halted {
		return false
	}
	cap := e.state.StartingEquity * dailyLossCapPct / 100
	if e.state.RealizedPnL <= -cap {
		e.state.Halted = true
		e.state.HaltReason = "daily_loss_cap"
		return true
	}
	return false
}

// Halt forces the kill-switch with the given reason (spec.md §4.9 "halt").
// Nothing in the pipeline calls it: on a critical-stage panic internal/lab
// halts the control.Controller, and this engine's state is left unhalted.
func (e *Engine) Halt(reason string) {
	e.state.Halted = true
	e.state.HaltReason = reason
}

func absf(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
