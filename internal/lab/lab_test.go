package lab

import (
	"context"
	"testing"

	"github.com/distractedCoding/market-latency-risk-lab/internal/bus"
	"github.com/distractedCoding/market-latency-risk-lab/internal/control"
	"github.com/distractedCoding/market-latency-risk-lab/internal/telemetry"
	"github.com/stretchr/testify/require"
)

func testConfig() Config {
	return Config{
		Seed:              7,
		StartingEquity:    100_000,
		MarketID:          "SIM-PERP",
		Venue:             "sim",
		BookLevels:        10,
		BookTickSize:      0.5,
		BookLevelQty:      50,
		PredictionStartPx: 64_000,
		PredictionSigma:   0.002,
		Settings: telemetry.RuntimeSettings{
			Mode:                   telemetry.ModePaper,
			LiveFeatureEnabled:     false,
			DivergenceThresholdPct: 0.0005,
			LagTriggerThresholdPct: 0.1,
			MaxStaleMS:             5000,
			OutlierClipBps:         200,
			RiskCapPct:             2,
			PositionCapQty:         1000,
			DailyLossCapPct:        5,
			LotStep:                0.001,
			SlippageBps:            3,
			FeeBps:                 7,
			DecisionIntervalMS:     10,
			MarketLagMS:            50,
		},
	}
}

func TestLab_StepIsDeterministicAcrossRunsWithSameSeed(t *testing.T) {
	const ticks = 20
	ctx := context.Background()

	runOnce := func() []float64 {
		b := bus.New("test")
		l, err := New(testConfig(), b)
		require.NoError(t, err)
		require.NoError(t, l.Start())

		for i := 0; i < ticks; i++ {
			l.step(ctx)
		}

		var prices []float64
		for {
			select {
			case e := <-b.Causal.Events():
				if snap, ok := e.(telemetry.PriceSnapshotEvent); ok {
					prices = append(prices, snap.MarketPx)
				}
			default:
				return prices
			}
		}
	}

	a := runOnce()
	bRun := runOnce()
	require.NotEmpty(t, a)
	require.Equal(t, a, bRun)
}

func TestLab_Lifecycle(t *testing.T) {
	b := bus.New("test")
	l, err := New(testConfig(), b)
	require.NoError(t, err)

	require.Equal(t, control.StateIdle, l.State())
	require.NoError(t, l.Start())
	require.NoError(t, l.Pause())
	require.NoError(t, l.Resume())
	require.NoError(t, l.Stop())
	require.NoError(t, l.Reset())
	require.Equal(t, control.StateIdle, l.State())
}

func TestLab_JournalRecordsOneRowPerTick(t *testing.T) {
	b := bus.New("test")
	l, err := New(testConfig(), b)
	require.NoError(t, err)
	require.NoError(t, l.Start())

	ctx := context.Background()
	for i := 0; i < 5; i++ {
		l.step(ctx)
	}

	rows := l.Journal()
	require.Len(t, rows, 5)
	for _, r := range rows {
		require.NotEmpty(t, r.Action)
		require.Len(t, r.ToCSVRow(), len(telemetry.ReplayHeader))
	}
}

func TestLab_TradingPausedRejectsIntentsThroughSettingsStore(t *testing.T) {
	b := bus.New("test")
	cfg := testConfig()
	l, err := New(cfg, b)
	require.NoError(t, err)
	require.NoError(t, l.Start())

	paused := cfg.Settings
	paused.TradingPaused = true
	require.NoError(t, l.UpdateSettings(context.Background(), paused, 1))

	ctx := context.Background()
	for i := 0; i < 20; i++ {
		l.step(ctx)
	}

	var reasons []string
drain:
	for {
		select {
		case e := <-b.Causal.Events():
			if r, ok := e.(telemetry.RiskRejectEvent); ok {
				reasons = append(reasons, r.Reason)
			}
		default:
			break drain
		}
	}
	require.Contains(t, reasons, "Paused")
}

func TestLab_UpdateSettingsRejectsLiveWithoutFlag(t *testing.T) {
	b := bus.New("test")
	l, err := New(testConfig(), b)
	require.NoError(t, err)

	bad := testConfig().Settings
	bad.Mode = telemetry.ModeLive
	bad.LiveFeatureEnabled = false

	err = l.UpdateSettings(context.Background(), bad, 1)
	require.Error(t, err)
}
