// Package telemetry defines the RuntimeEvent tagged-union, the settings
// store, the strategy telemetry snapshot, and the replay/journal row
// contract described in spec.md §3, §4.8-§4.10, and §6.
package telemetry

import "github.com/google/uuid"

// EventType is the exact event_type string enum from spec.md §6.
type EventType string

const (
	EventConnected         EventType = "connected"
	EventRunStarted        EventType = "run_started"
	EventFeedHealth        EventType = "feed_health"
	EventPriceSnapshot     EventType = "price_snapshot"
	EventPaperIntent       EventType = "paper_intent"
	EventPaperFill         EventType = "paper_fill"
	EventRiskReject        EventType = "risk_reject"
	EventPortfolioSnapshot EventType = "portfolio_snapshot"
	EventStrategyPerf      EventType = "strategy_perf"
	EventSettingsUpdated   EventType = "settings_updated"
	EventExecutionLog      EventType = "execution_log"
)

// Meta carries the four causal timestamps (spec.md §2) plus an id and an
// optional upstream-causation id, so the causal-chain invariant
// (spec.md §8 property 6) is checkable without re-deriving channel order.
type Meta struct {
	ID         string
	CausedBy   string
	CreatedNS  int64
	ReceivedNS int64
	ActedNS    int64
	FilledNS   int64
}

// NewMeta stamps a fresh event id at creation time.
func NewMeta(createdNS int64, causedBy string) Meta {
	return Meta{ID: uuid.NewString(), CausedBy: causedBy, CreatedNS: createdNS}
}

// RuntimeEvent is the tagged-union interface every event variant satisfies.
type RuntimeEvent interface {
	EventType() EventType
	EventMeta() Meta
}

// ConnectedEvent marks a consumer's successful attach to the bus.
type ConnectedEvent struct {
	Meta Meta
}

func (e ConnectedEvent) EventType() EventType { return EventConnected }
func (e ConnectedEvent) EventMeta() Meta      { return e.Meta }

// RunStartedEvent marks a `start` transition, spec.md §4.9.
type RunStartedEvent struct {
	Meta           Meta
	Seed           int64
	StartingEquity float64
}

func (e RunStartedEvent) EventType() EventType { return EventRunStarted }
func (e RunStartedEvent) EventMeta() Meta      { return e.Meta }

// FeedHealthEvent is the periodic generator-liveness snapshot
// (SPEC_FULL.md supplemented feature).
type FeedHealthEvent struct {
	Meta          Meta
	TicksEmitted  int64
	LastTickAgeMS int64
}

func (e FeedHealthEvent) EventType() EventType { return EventFeedHealth }
func (e FeedHealthEvent) EventMeta() Meta      { return e.Meta }

// PriceSnapshotEvent carries the fused reference price and observed market
// price for one decision tick.
type PriceSnapshotEvent struct {
	Meta          Meta
	PredictionPx  float64
	MarketPx      float64
	ReferencePx   float64
	SourcesUsed   int
	SpreadBps     float64
	DivergencePct float64
}

func (e PriceSnapshotEvent) EventType() EventType { return EventPriceSnapshot }
func (e PriceSnapshotEvent) EventMeta() Meta      { return e.Meta }

// PaperIntentEvent carries a sized, pre-risk Intent.
type PaperIntentEvent struct {
	Meta             Meta
	Side             string
	Qty              float64
	MarketID         string
	Cause            string
	ProjectedRiskPct float64
}

func (e PaperIntentEvent) EventType() EventType { return EventPaperIntent }
func (e PaperIntentEvent) EventMeta() Meta      { return e.Meta }

// PaperFillEvent carries an accepted, priced Fill.
type PaperFillEvent struct {
	Meta    Meta
	Side    string
	Qty     float64
	FillPx  float64
	FeePaid float64
}

func (e PaperFillEvent) EventType() EventType { return EventPaperFill }
func (e PaperFillEvent) EventMeta() Meta      { return e.Meta }

// RiskRejectEvent carries a typed rejection, spec.md §4.5/§7.
type RiskRejectEvent struct {
	Meta   Meta
	Reason string
}

func (e RiskRejectEvent) EventType() EventType { return EventRiskReject }
func (e RiskRejectEvent) EventMeta() Meta      { return e.Meta }

// PortfolioSnapshotEvent carries the PortfolioSnapshot entity.
type PortfolioSnapshotEvent struct {
	Meta          Meta
	Equity        float64
	Cash          float64
	PositionQty   float64
	RealizedPnL   float64
	UnrealizedPnL float64
	FillsCount    int
}

func (e PortfolioSnapshotEvent) EventType() EventType { return EventPortfolioSnapshot }
func (e PortfolioSnapshotEvent) EventMeta() Meta      { return e.Meta }

// StrategyPerfEvent carries the derived StrategyPerf summary, spec.md
// component #10.
type StrategyPerfEvent struct {
	Meta Meta
	Perf StrategyPerf
}

func (e StrategyPerfEvent) EventType() EventType { return EventStrategyPerf }
func (e StrategyPerfEvent) EventMeta() Meta      { return e.Meta }

// SettingsUpdatedEvent carries the full new RuntimeSettings snapshot,
// spec.md §4.10.
type SettingsUpdatedEvent struct {
	Meta     Meta
	Settings RuntimeSettings
}

func (e SettingsUpdatedEvent) EventType() EventType { return EventSettingsUpdated }
func (e SettingsUpdatedEvent) EventMeta() Meta      { return e.Meta }

// ExecutionLogEvent is a free-form diagnostic line. internal/lab emits one
// when the daily loss cap halts the run; other anomalies (latency-deadline
// violations, supervisor restarts) are not reported through this event.
type ExecutionLogEvent struct {
	Meta    Meta
	Level   string
	Message string
}

func (e ExecutionLogEvent) EventType() EventType { return EventExecutionLog }
func (e ExecutionLogEvent) EventMeta() Meta      { return e.Meta }
