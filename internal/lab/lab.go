// Package lab wires ticks, book, fusion, strategy, risk, execution, bus,
// metrics, control, and telemetry into the single pipeline described in
// spec.md §2: prediction_tick -> market_tick -> predictor_fusion ->
// divergence/lag_trigger -> risk_check -> paper_fill -> portfolio_update
// -> metrics_publish -> telemetry_snapshot.
package lab

import (
	"context"
	"log"
	"time"

	"github.com/distractedCoding/market-latency-risk-lab/internal/book"
	"github.com/distractedCoding/market-latency-risk-lab/internal/bus"
	"github.com/distractedCoding/market-latency-risk-lab/internal/control"
	"github.com/distractedCoding/market-latency-risk-lab/internal/execution"
	"github.com/distractedCoding/market-latency-risk-lab/internal/fusion"
	"github.com/distractedCoding/market-latency-risk-lab/internal/metrics"
	"github.com/distractedCoding/market-latency-risk-lab/internal/risk"
	"github.com/distractedCoding/market-latency-risk-lab/internal/strategy"
	"github.com/distractedCoding/market-latency-risk-lab/internal/telemetry"
	"github.com/distractedCoding/market-latency-risk-lab/internal/ticks"
)

// Config bundles the tunables each sub-package needs, assembled from a
// telemetry.RuntimeSettings snapshot plus the seed/book shape, which stay
// fixed for the Lab's lifetime (Reset does not change them).
type Config struct {
	Seed           int64
	StartingEquity float64
	MarketID       string
	Venue          string

	BookLevels   int
	BookTickSize float64
	BookLevelQty float64

	PredictionStartPx float64
	PredictionSigma   float64
	MicroNoiseSigma   float64

	Settings telemetry.RuntimeSettings
}

// Lab is the glue type that drives one run. Besides what risk.Engine,
// execution.Portfolio, and telemetry.Store own, the only cross-tick state
// it keeps is the simulated clock, the tick counter, and the run journal.
type Lab struct {
	cfg Config

	stream  *ticks.Stream
	book    *book.Book
	risk    *risk.Engine
	port    *execution.Portfolio
	metrics *metrics.Aggregator
	ctrl    *control.Controller
	store   *telemetry.Store
	bus     *bus.Bus
	super   *bus.Supervisor

	nowMS        int64
	ticksEmitted int64
	journal      []telemetry.ReplayRow
}

// Journal returns the deterministic run journal accumulated so far, in
// the exact 9-column order of telemetry.ReplayHeader (spec.md §6). The
// CSV writer that would persist this to disk is a collaborator concern
// out of scope here; callers needing a file call ToCSVRow themselves.
func (l *Lab) Journal() []telemetry.ReplayRow {
	out := make([]telemetry.ReplayRow, len(l.journal))
	copy(out, l.journal)
	return out
}

// New builds a Lab ready to run from Idle, publishing every telemetry
// event it produces onto b.
func New(cfg Config, b *bus.Bus) (*Lab, error) {
	store, err := telemetry.NewStore(cfg.Settings)
	if err != nil {
		return nil, err
	}

	decisionInterval := time.Duration(cfg.Settings.DecisionIntervalMS) * time.Millisecond

	bk := book.New(book.Config{
		Levels: cfg.BookLevels, TickSize: cfg.BookTickSize, LevelQty: cfg.BookLevelQty,
	})
	bk.Reprice(cfg.PredictionStartPx)

	l := &Lab{
		cfg: cfg,
		stream: ticks.NewStream(ticks.GeneratorConfig{
			Seed:               cfg.Seed,
			StartPx:            cfg.PredictionStartPx,
			Sigma:              cfg.PredictionSigma,
			DecisionIntervalMS: cfg.Settings.DecisionIntervalMS,
			MarketLagMS:        cfg.Settings.MarketLagMS,
			MicroNoiseSigma:    cfg.MicroNoiseSigma,
		}, cfg.Venue),
		book:    bk,
		risk:    risk.NewEngine(cfg.StartingEquity),
		port:    execution.NewPortfolio(cfg.StartingEquity),
		metrics: metrics.New("lab"),
		ctrl:    control.New(decisionInterval),
		store:   store,
		bus:     b,
		super:   bus.NewSupervisor(),
	}
	l.bus.Telemetry.Publish(telemetry.ConnectedEvent{Meta: telemetry.NewMeta(0, "")})
	return l, nil
}

func toRiskSettings(s telemetry.RuntimeSettings) risk.Settings {
	mode := risk.ModePaper
	if s.Mode == telemetry.ModeLive {
		mode = risk.ModeLive
	}
	return risk.Settings{
		ExecutionMode:      mode,
		TradingPaused:      s.TradingPaused,
		LiveFeatureEnabled: s.LiveFeatureEnabled,
		RiskPerTradePct:    s.RiskCapPct,
		DailyLossCapPct:    s.DailyLossCapPct,
		MaxPosition:        s.PositionCapQty,
	}
}

// Start transitions Idle -> Running and announces the run on the telemetry
// bus, spec.md §4.9.
func (l *Lab) Start() error {
	if err := l.ctrl.Start(); err != nil {
		return err
	}
	l.bus.Telemetry.Publish(telemetry.RunStartedEvent{
		Meta: telemetry.NewMeta(time.Now().UnixNano(), ""), Seed: l.cfg.Seed, StartingEquity: l.cfg.StartingEquity,
	})
	return nil
}

// Pause/Resume/Stop/Halt delegate straight to the controller.
func (l *Lab) Pause() error  { return l.ctrl.Pause() }
func (l *Lab) Resume() error { return l.ctrl.Resume() }
func (l *Lab) Stop() error   { return l.ctrl.Stop() }
func (l *Lab) Halt() error   { return l.ctrl.Halt() }

// Reset rebuilds risk and portfolio state before dropping the controller
// back to Idle, spec.md §4.9.
func (l *Lab) Reset() error {
	l.risk.Reset(l.cfg.StartingEquity)
	l.port.Reset(l.cfg.StartingEquity)
	l.nowMS = 0
	return l.ctrl.Reset()
}

// State reports the controller's current lifecycle state.
func (l *Lab) State() control.State { return l.ctrl.State() }

// UpdateSettings validates and swaps in new settings, republishing them on
// the causal bus, spec.md §4.10.
func (l *Lab) UpdateSettings(ctx context.Context, next telemetry.RuntimeSettings, nowNS int64) error {
	evt, err := l.store.Update(next, nowNS)
	if err != nil {
		return err
	}
	return l.bus.Causal.Publish(ctx, evt)
}

// Run drives ticks until ctx is cancelled or the controller stops,
// pacing each tick through the controller's rate limiter and routing
// every causal-path event through the lossless bus channel. A critical
// panic anywhere in step halts the run rather than crashing the process,
// spec.md §9.
func (l *Lab) Run(ctx context.Context) error {
	for {
		if err := l.ctrl.WaitTick(ctx); err != nil {
			return nil
		}
		switch l.ctrl.State() {
		case control.StateRunning:
			if err := l.super.RunCritical(func() error {
				l.step(ctx)
				return nil
			}); err != nil {
				log.Printf("critical stage failed, halting: %v", err)
				_ = l.ctrl.Halt()
			}
		case control.StateStopped, control.StateHalted:
			return nil
		default:
			// Idle/Paused: skip this tick's work but keep pacing so a
			// Resume doesn't see a backlog of unpaced ticks.
		}
		if ctx.Err() != nil {
			return nil
		}
	}
}

// step executes exactly one pipeline tick: prediction_tick -> market_tick
// -> predictor_fusion -> divergence/lag_trigger -> risk_check ->
// paper_fill -> portfolio_update -> metrics_publish -> telemetry_snapshot.
func (l *Lab) step(ctx context.Context) {
	start := time.Now()
	settings := l.store.Load()
	l.nowMS += settings.DecisionIntervalMS
	l.ticksEmitted++

	pair := l.stream.Next()
	l.book.Reprice(pair.Market.Px)

	action := "Hold"
	var divPct float64
	defer func() {
		snap := l.port.Snapshot(pair.Market.Px)
		l.journal = append(l.journal, telemetry.ReplayRow{
			TMS: l.nowMS, ExternalPx: pair.Prediction.Px, MarketPx: pair.Market.Px,
			Divergence: divPct, Action: action, Equity: snap.Equity, RealizedPnL: snap.RealizedPnL,
			Position: snap.PositionQty, Halted: l.ctrl.State() == control.StateHalted,
		})
	}()

	l.bus.Telemetry.Publish(telemetry.FeedHealthEvent{
		Meta: telemetry.NewMeta(start.UnixNano(), ""), TicksEmitted: l.ticksEmitted, LastTickAgeMS: 0,
	})

	predictor := fusion.PredictorTick{
		Source: "prediction", Px: pair.Prediction.Px, TsMS: l.nowMS, FreshnessMS: 0,
	}
	ref := fusion.Fuse([]fusion.PredictorTick{predictor}, l.nowMS, fusion.Config{
		StalenessBudgetMS: settings.MaxStaleMS, OutlierClipBps: settings.OutlierClipBps,
	})

	meta := telemetry.NewMeta(start.UnixNano(), "")
	snapEvt := telemetry.PriceSnapshotEvent{
		Meta: meta, PredictionPx: pair.Prediction.Px, MarketPx: pair.Market.Px,
	}
	if ref.Valid {
		snapEvt.ReferencePx = ref.Px
		snapEvt.SourcesUsed = ref.SourcesUsed
		snapEvt.SpreadBps = ref.SpreadBps
		divPct = divergencePct(ref.Px, pair.Market.Px)
		snapEvt.DivergencePct = divPct
	}
	l.publishCausal(ctx, snapEvt)

	elapsedUS := float64(time.Since(start).Microseconds())
	l.metrics.RecordDecisionLatency(elapsedUS)
	if time.Since(start) > time.Duration(settings.DecisionIntervalMS)*time.Millisecond {
		l.metrics.RecordLatencyViolation()
	}

	if !ref.Valid {
		return
	}

	// The lag trigger and the divergence strategy are two independent
	// trigger sources that happen to share the sizing/risk/execution
	// stages (spec.md §4.4); neither gates the other.
	trig := fusion.DetectLag(ref, pair.Market.Px, settings.LagTriggerThresholdPct)
	if trig.Triggered {
		side := strategy.SideBuy
		if trig.Direction == fusion.DirectionSell {
			side = strategy.SideSell
		}
		if a := l.evaluateCause(ctx, settings, meta, start, pair, side, strategy.CauseLagTrigger, "lag_trigger"); a != "" {
			action = a
		}
	}

	sig := strategy.ComputeSignal(ref.Px, pair.Market.Px, strategy.Config{
		ThresholdPct: settings.DivergenceThresholdPct,
	}, l.nowMS)
	if sig.Action != strategy.ActionHold {
		side := strategy.SideBuy
		if sig.Action == strategy.ActionSell {
			side = strategy.SideSell
		}
		if a := l.evaluateCause(ctx, settings, meta, start, pair, side, strategy.CauseDivergence, "divergence"); a != "" {
			action = a
		}
	}
}

// evaluateCause sizes, risk-checks, and (if accepted) executes a single
// trade intent for one trigger source, publishing every causal-path event
// it produces along the way. It returns the journal action label ("Buy",
// "Sell", or "Rejected:<reason>"), or "" if sizing produced no intent.
func (l *Lab) evaluateCause(
	ctx context.Context,
	settings telemetry.RuntimeSettings,
	meta telemetry.Meta,
	start time.Time,
	pair ticks.Pair,
	side strategy.Side,
	cause strategy.Cause,
	causeLabel string,
) string {
	intent, ok := strategy.BuildIntent(side, cause, l.cfg.MarketID,
		l.cfg.StartingEquity, pair.Market.Px, strategy.Config{
			ThresholdPct:    settings.DivergenceThresholdPct,
			RiskPerTradePct: settings.RiskCapPct,
			LotStep:         settings.LotStep,
		})
	if !ok {
		return ""
	}

	l.metrics.IncIntents()
	l.publishCausal(ctx, telemetry.PaperIntentEvent{
		Meta: telemetry.NewMeta(start.UnixNano(), meta.ID), Side: sideString(intent.Side), Qty: intent.Qty,
		MarketID: intent.MarketID, Cause: causeLabel, ProjectedRiskPct: intent.ProjectedRiskPct,
	})

	reject := l.risk.Evaluate(intent, pair.Market.Px, toRiskSettings(settings))
	if reject != risk.RejectNone {
		l.metrics.IncReject(reject.String())
		l.publishCausal(ctx, telemetry.RiskRejectEvent{Meta: telemetry.NewMeta(start.UnixNano(), meta.ID), Reason: reject.String()})
		return "Rejected:" + reject.String()
	}

	fill, ok := execution.Execute(l.book, intent.Side, intent.Qty, execution.Config{
		SlippageBps: settings.SlippageBps, FeeBps: settings.FeeBps,
	}, l.nowMS)
	if !ok {
		return sideString(intent.Side)
	}
	l.port.ApplyFill(fill)
	l.metrics.IncFills()
	l.metrics.RecordFillLatency(float64(time.Since(start).Microseconds()))
	l.publishCausal(ctx, telemetry.PaperFillEvent{
		Meta: telemetry.NewMeta(start.UnixNano(), meta.ID), Side: sideString(fill.Side), Qty: fill.Qty,
		FillPx: fill.FillPx, FeePaid: fill.FeePaid,
	})

	portSnap := l.port.Snapshot(pair.Market.Px)
	l.risk.ApplyFill(portSnap.PositionQty, portSnap.RealizedPnL)
	if l.risk.CheckDailyLoss(settings.DailyLossCapPct) {
		_ = l.ctrl.Halt()
		l.publishCausal(ctx, telemetry.ExecutionLogEvent{
			Meta: telemetry.NewMeta(start.UnixNano(), meta.ID), Level: "warn", Message: "daily loss cap breached, halting",
		})
	}

	l.publishTelemetrySnapshot(start.UnixNano(), portSnap)
	return sideString(intent.Side)
}

func (l *Lab) publishCausal(ctx context.Context, e telemetry.RuntimeEvent) {
	if err := l.bus.Causal.Publish(ctx, e); err != nil {
		log.Printf("causal publish dropped: %v", err)
	}
}

func (l *Lab) publishTelemetrySnapshot(nowNS int64, snap execution.Snapshot) {
	rate, closed := l.port.WinRate()
	dp := l.metrics.DecisionPercentiles()
	fp := l.metrics.FillPercentiles()
	counters := l.metrics.Snapshot()

	l.bus.Telemetry.Publish(telemetry.PortfolioSnapshotEvent{
		Meta: telemetry.NewMeta(nowNS, ""), Equity: snap.Equity, Cash: snap.Cash,
		PositionQty: snap.PositionQty, RealizedPnL: snap.RealizedPnL, UnrealizedPnL: snap.UnrealizedPnL,
		FillsCount: snap.FillsCount,
	})
	l.bus.Telemetry.Publish(telemetry.StrategyPerfEvent{
		Meta: telemetry.NewMeta(nowNS, ""),
		Perf: telemetry.StrategyPerf{
			TotalIntents: counters.Intents, TotalFills: counters.Fills, ClosedTrades: closed,
			WinRate: rate, RealizedPnL: snap.RealizedPnL, UnrealizedPnL: snap.UnrealizedPnL, Equity: snap.Equity,
			DecisionP50MS: dp.P50 / 1000, DecisionP95MS: dp.P95 / 1000, DecisionP99MS: dp.P99 / 1000,
			FillP50MS: fp.P50 / 1000, FillP95MS: fp.P95 / 1000, FillP99MS: fp.P99 / 1000,
			RejectsByReason: counters.RejectsByReason, DroppedTelemetry: counters.DroppedTelemetry,
			Halted: l.ctrl.State() == control.StateHalted,
		},
	})
}

func sideString(s strategy.Side) string {
	if s == strategy.SideSell {
		return "Sell"
	}
	return "Buy"
}

// divergencePct matches the signed, percent-scaled formula spec.md §4.3
// uses for the lag-trigger math: 100*(reference-market)/market.
func divergencePct(reference, market float64) float64 {
	if market == 0 {
		return 0
	}
	return 100 * (reference - market) / market
}
