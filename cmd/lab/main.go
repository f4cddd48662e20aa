// Command lab runs one deterministic market-latency/risk simulation,
// mirroring the teacher's services.go flag-and-signal wiring but driving
// a single in-process pipeline instead of dispatching to a named service.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/distractedCoding/market-latency-risk-lab/internal/bus"
	"github.com/distractedCoding/market-latency-risk-lab/internal/lab"
	"github.com/distractedCoding/market-latency-risk-lab/internal/telemetry"
)

func main() {
	seed := flag.Int64("seed", 1, "deterministic RNG seed")
	equity := flag.Float64("equity", 100_000, "starting equity")
	marketID := flag.String("market", "SIM-PERP", "simulated market identifier")
	decisionMS := flag.Int64("decision-interval-ms", 100, "decision tick interval, milliseconds")
	lagMS := flag.Int64("market-lag-ms", 250, "external-to-market lag, milliseconds")
	riskCapPct := flag.Float64("risk-cap-pct", 2, "per-trade risk cap, percent of equity")
	positionCap := flag.Float64("position-cap-qty", 50, "absolute position cap")
	dailyLossCapPct := flag.Float64("daily-loss-cap-pct", 5, "daily realized-loss kill-switch, percent of starting equity")
	divergencePct := flag.Float64("divergence-threshold-pct", 0.003, "strategy divergence threshold, fraction")
	lagTriggerPct := flag.Float64("lag-trigger-threshold-pct", 0.2, "lag-trigger threshold, percent")
	liveMode := flag.Bool("live", false, "run in Live mode (requires -live-feature-enabled)")
	liveFeatureEnabled := flag.Bool("live-feature-enabled", false, "enable the live execution gate")
	flag.Parse()

	mode := telemetry.ModePaper
	if *liveMode {
		mode = telemetry.ModeLive
	}

	cfg := lab.Config{
		Seed:              *seed,
		StartingEquity:    *equity,
		MarketID:          *marketID,
		Venue:             "sim",
		BookLevels:        20,
		BookTickSize:      0.5,
		BookLevelQty:      25,
		PredictionStartPx: 64_000,
		PredictionSigma:   0.001,
		Settings: telemetry.RuntimeSettings{
			Mode:                   mode,
			LiveFeatureEnabled:     *liveFeatureEnabled,
			DivergenceThresholdPct: *divergencePct,
			LagTriggerThresholdPct: *lagTriggerPct,
			MaxStaleMS:             2000,
			OutlierClipBps:         200,
			RiskCapPct:             *riskCapPct,
			PositionCapQty:         positionCapOrDefault(*positionCap),
			DailyLossCapPct:        *dailyLossCapPct,
			LotStep:                0.001,
			SlippageBps:            3,
			FeeBps:                 7,
			DecisionIntervalMS:     *decisionMS,
			MarketLagMS:            *lagMS,
		},
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Println("received shutdown signal")
		cancel()
	}()

	b := bus.New("market_latency_lab")
	go drainTelemetry(ctx, b)
	go drainCausal(ctx, b)

	l, err := lab.New(cfg, b)
	if err != nil {
		log.Fatalf("failed to build lab: %v", err)
	}
	if err := l.Start(); err != nil {
		log.Fatalf("failed to start lab: %v", err)
	}

	log.Printf("lab running: seed=%d equity=%.2f mode=%s", *seed, *equity, mode)
	if err := l.Run(ctx); err != nil {
		log.Fatalf("lab run error: %v", err)
	}
	log.Println("lab stopped")
}

func positionCapOrDefault(v float64) float64 {
	if v <= 0 {
		return 50
	}
	return v
}

// drainCausal logs causal-path events; a real deployment would forward
// these to a journal writer, which is out of scope (spec.md §1).
func drainCausal(ctx context.Context, b *bus.Bus) {
	for {
		select {
		case e := <-b.Causal.Events():
			switch evt := e.(type) {
			case telemetry.RiskRejectEvent:
				log.Printf("risk_reject reason=%s", evt.Reason)
			case telemetry.PaperFillEvent:
				log.Printf("paper_fill side=%s qty=%.6f px=%.2f", evt.Side, evt.Qty, evt.FillPx)
			case telemetry.ExecutionLogEvent:
				log.Printf("execution_log level=%s msg=%s", evt.Level, evt.Message)
			}
		case <-ctx.Done():
			return
		}
	}
}

// drainTelemetry consumes the lossy broadcast channel so it never fills
// up and starts dropping events it doesn't need to, spec.md §4.7.
func drainTelemetry(ctx context.Context, b *bus.Bus) {
	for {
		e, ok := b.Telemetry.Next(ctx)
		if !ok {
			return
		}
		if perf, ok := e.(telemetry.StrategyPerfEvent); ok {
			log.Printf("strategy_perf equity=%.2f realized_pnl=%.2f win_rate=%.2f",
				perf.Perf.Equity, perf.Perf.RealizedPnL, perf.Perf.WinRate)
		}
	}
}
