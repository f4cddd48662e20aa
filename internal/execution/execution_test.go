package execution

import (
	"testing"

	"github.com/distractedCoding/market-latency-risk-lab/internal/book"
	"github.com/distractedCoding/market-latency-risk-lab/internal/strategy"
	"github.com/stretchr/testify/require"
)

func TestPrice_BuyAndSellSlippageDirection(t *testing.T) {
	cfg := Config{SlippageBps: 10, FeeBps: 7}
	buyPx, feeRate := Price(strategy.SideBuy, 99, 101, cfg)
	require.InDelta(t, 101*1.001, buyPx, 1e-9)
	require.InDelta(t, 0.0007, feeRate, 1e-12)

	sellPx, _ := Price(strategy.SideSell, 99, 101, cfg)
	require.InDelta(t, 99*0.999, sellPx, 1e-9)
}

func TestExecute_PartialFillOnExhaustion(t *testing.T) {
	b := book.New(book.Config{Levels: 2, TickSize: 1, LevelQty: 5})
	b.Reprice(100)

	fill, ok := Execute(b, strategy.SideBuy, 100, Config{SlippageBps: 0, FeeBps: 0}, 0)
	require.True(t, ok)
	require.Equal(t, 10.0, fill.Qty)
}

func TestPortfolio_MonetaryConservation(t *testing.T) {
	// spec.md §8 property 2: |equity - (cash + position*mark)| < tolerance.
	p := NewPortfolio(100_000)
	b := book.New(book.Config{Levels: 10, TickSize: 0.5, LevelQty: 100})
	b.Reprice(64_000)

	fill, ok := Execute(b, strategy.SideBuy, 1, Config{SlippageBps: 3, FeeBps: 7}, 0)
	require.True(t, ok)
	p.ApplyFill(fill)

	snap := p.Snapshot(64_000)
	recomputed := snap.Cash + snap.PositionQty*64_000
	require.InDelta(t, snap.Equity, recomputed, 1e-6*100_000)
}

func TestPortfolio_AverageCostRealizesOnClose(t *testing.T) {
	p := NewPortfolio(100_000)

	p.ApplyFill(Fill{Side: strategy.SideBuy, Qty: 2, FillPx: 100})
	require.Equal(t, 2.0, p.positionQty)
	require.Equal(t, 100.0, p.avgCost)

	p.ApplyFill(Fill{Side: strategy.SideSell, Qty: 1, FillPx: 110})
	require.Equal(t, 1.0, p.positionQty)
	require.InDelta(t, 10.0, p.realizedPnL, 1e-9)

	rate, closed := p.WinRate()
	require.Equal(t, 1, closed)
	require.Equal(t, 1.0, rate)
}

func TestPortfolio_FlipsSideOnOversizedClose(t *testing.T) {
	p := NewPortfolio(100_000)
	p.ApplyFill(Fill{Side: strategy.SideBuy, Qty: 1, FillPx: 100})
	p.ApplyFill(Fill{Side: strategy.SideSell, Qty: 3, FillPx: 90})

	require.Equal(t, -2.0, p.positionQty)
	require.InDelta(t, -10.0, p.realizedPnL, 1e-9)
	require.Equal(t, 90.0, p.avgCost)
}

func TestWinRate_NoClosedTradesIsZeroNotNaN(t *testing.T) {
	p := NewPortfolio(100_000)
	rate, closed := p.WinRate()
	require.Equal(t, 0.0, rate)
	require.Equal(t, 0, closed)
}

func TestPortfolio_Reset(t *testing.T) {
	p := NewPortfolio(100_000)
	p.ApplyFill(Fill{Side: strategy.SideBuy, Qty: 1, FillPx: 100})
	p.Reset(50_000)

	snap := p.Snapshot(100)
	require.Equal(t, 50_000.0, snap.Cash)
	require.Equal(t, 0.0, snap.PositionQty)
	require.Equal(t, 0, snap.FillsCount)
}
