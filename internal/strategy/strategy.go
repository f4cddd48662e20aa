// Package strategy implements the divergence strategy described in
// spec.md §4.4: compute_signal and intent sizing.
package strategy

import "math"

// Action is the strategy's directional verdict.
type Action int

const (
	ActionHold Action = iota
	ActionBuy
	ActionSell
)

// Signal is the divergence-path output, spec.md §3.
type Signal struct {
	Action        Action
	DivergencePct float64
	EmittedTsMS   int64
}

// Config holds the strategy's tunables, spec.md §4.4.
type Config struct {
	ThresholdPct    float64 // strategy divergence threshold (fraction, e.g. 0.003)
	RiskPerTradePct float64 // percent, (0,100]
	LotStep         float64 // minimum/rounding increment, >0
}

// ComputeSignal implements div = (prediction-market)/market; strict
// inequality to threshold, equality yields Hold.
func ComputeSignal(predictionPx, marketPx float64, cfg Config, nowMS int64) Signal {
	div := (predictionPx - marketPx) / marketPx
	action := ActionHold
	switch {
	case div > cfg.ThresholdPct:
		action = ActionBuy
	case div < -cfg.ThresholdPct:
		action = ActionSell
	}
	return Signal{Action: action, DivergencePct: div, EmittedTsMS: nowMS}
}

// Cause distinguishes which path produced an Intent, spec.md §3.
type Cause int

const (
	CauseDivergence Cause = iota
	CauseLagTrigger
)

// Side mirrors book.Side without importing internal/book, keeping this
// package dependency-free of the execution layer.
type Side int

const (
	SideBuy Side = iota
	SideSell
)

// Intent is a proposed trade, pre-risk, spec.md §3.
type Intent struct {
	Side              Side
	Qty               float64
	MarketID          string
	Cause             Cause
	ProjectedRiskPct  float64
}

// SizeIntent implements spec.md §4.4's sizing formula:
//
//	qty = floor((starting_equity * risk_per_trade_pct/100) / mark_px / lot_step) * lot_step
//
// with a floor of one lot; zero qty (insufficient equity for even one lot)
// yields ok=false so the caller emits no intent.
func SizeIntent(startingEquity, markPx float64, cfg Config) (qty float64, ok bool) {
	if markPx <= 0 || cfg.LotStep <= 0 {
		return 0, false
	}
	budget := startingEquity * cfg.RiskPerTradePct / 100
	lots := math.Floor(budget / markPx / cfg.LotStep)
	if lots < 1 {
		return 0, false
	}
	return lots * cfg.LotStep, true
}

// BuildIntent turns a Signal (or a lag trigger, via side/cause directly)
// into a sized Intent, or ok=false if sizing yields zero quantity.
func BuildIntent(side Side, cause Cause, marketID string, startingEquity, markPx float64, cfg Config) (Intent, bool) {
	qty, ok := SizeIntent(startingEquity, markPx, cfg)
	if !ok {
		return Intent{}, false
	}
	projected := qty * markPx / startingEquity * 100
	return Intent{
		Side:             side,
		Qty:              qty,
		MarketID:         marketID,
		Cause:            cause,
		ProjectedRiskPct: projected,
	}, true
}
