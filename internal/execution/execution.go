// Package execution implements the paper execution model and portfolio
// accounting described in spec.md §4.6: BBO + slippage + fee pricing,
// cash/position updates, and average-cost realized-PnL accounting.
package execution

import (
	"math"

	"github.com/distractedCoding/market-latency-risk-lab/internal/book"
	"github.com/distractedCoding/market-latency-risk-lab/internal/strategy"
)

// Config holds the paper-execution tunables, spec.md §4.6.
type Config struct {
	SlippageBps float64
	FeeBps      float64
}

// Fill is an accepted, priced execution, spec.md §3.
type Fill struct {
	Side     strategy.Side
	Qty      float64
	FillPx   float64
	FeePaid  float64
	TsMS     int64
}

// Snapshot is the PortfolioSnapshot entity, spec.md §3.
type Snapshot struct {
	Equity       float64
	Cash         float64
	PositionQty  float64
	RealizedPnL  float64
	UnrealizedPnL float64
	FillsCount   int
}

// Portfolio is the single-writer cash/position/PnL ledger, spec.md §4.6 and
// §3 ("only RiskState and the portfolio persist across ticks"). It is owned
// exclusively by the run controller's execution stage.
type Portfolio struct {
	cash        float64
	positionQty float64
	avgCost     float64
	realizedPnL float64

	fillsCount int
	buyCount   int
	sellCount  int
	closedPnLs []float64
}

// NewPortfolio starts a portfolio with startingEquity held entirely as cash
// and zero position, spec.md §4.9 "start".
func NewPortfolio(startingEquity float64) *Portfolio {
	return &Portfolio{cash: startingEquity}
}

// Reset zeroes accumulators, spec.md §4.9 "reset".
func (p *Portfolio) Reset(startingEquity float64) {
	*p = Portfolio{cash: startingEquity}
}

// Price implements spec.md §4.6's BBO+slippage+fee pricing: buys cross the
// ask and pay slippage upward, sells cross the bid and pay slippage
// downward; fee is a fraction of notional regardless of side.
func Price(side strategy.Side, bestBid, bestAsk float64, cfg Config) (fillPx, feeRate float64) {
	feeRate = cfg.FeeBps / 10_000
	if side == strategy.SideBuy {
		return bestAsk * (1 + cfg.SlippageBps/10_000), feeRate
	}
	return bestBid * (1 - cfg.SlippageBps/10_000), feeRate
}

// Execute walks the book for qty (respecting partial fills on exhaustion,
// spec.md §4.2), then prices the filled quantity at BBO+slippage+fee
// (spec.md §4.6). ok is false only when the book returns zero fill.
func Execute(b *book.Book, side strategy.Side, qty float64, cfg Config, tsMS int64) (Fill, bool) {
	bookSide := book.SideBuy
	if side == strategy.SideSell {
		bookSide = book.SideSell
	}
	res := b.ExecuteMarket(bookSide, qty)
	if res.FilledQty == 0 {
		return Fill{}, false
	}

	fillPx, feeRate := Price(side, b.BestBid(), b.BestAsk(), cfg)
	notional := fillPx * res.FilledQty
	fee := notional * feeRate

	return Fill{
		Side:    side,
		Qty:     res.FilledQty,
		FillPx:  fillPx,
		FeePaid: fee,
		TsMS:    tsMS,
	}, true
}

// ApplyFill updates cash/position per spec.md §4.6 and realizes PnL on any
// position-closing portion of the fill using average-cost accounting.
func (p *Portfolio) ApplyFill(f Fill) {
	notional := f.Qty * f.FillPx
	sign := 1.0
	if f.Side == strategy.SideSell {
		sign = -1.0
	}

	if f.Side == strategy.SideBuy {
		p.cash -= notional + f.FeePaid
		p.buyCount++
	} else {
		p.cash += notional - f.FeePaid
		p.sellCount++
	}

	realized := p.applyPositionFill(sign, f.Qty, f.FillPx)
	if realized != 0 {
		p.realizedPnL += realized
		p.closedPnLs = append(p.closedPnLs, realized)
	}
	p.fillsCount++
}

// applyPositionFill mirrors the teacher's average-cost position update
// (autovant-trading-bot's applyPositionFill), generalized to the spec's
// field names. sign is +1 for a buy, -1 for a sell.
func (p *Portfolio) applyPositionFill(sign, qty, price float64) (realized float64) {
	size := p.positionQty
	avg := p.avgCost

	if size == 0 || size*sign >= 0 {
		newSize := size + qty*sign
		totalQty := math.Abs(size) + qty
		if totalQty > 0 {
			p.avgCost = (avg*math.Abs(size) + price*qty) / totalQty
		}
		p.positionQty = newSize
		return 0
	}

	closing := math.Min(math.Abs(size), qty)
	if size > 0 {
		realized = (price - avg) * closing
	} else {
		realized = (avg - price) * closing
	}

	remaining := math.Abs(size) - closing
	if remaining > 0 {
		p.positionQty = math.Copysign(remaining, size)
		return realized
	}

	leftover := qty - closing
	if leftover > 0 {
		p.positionQty = leftover * sign
		p.avgCost = price
	} else {
		p.positionQty = 0
		p.avgCost = 0
	}
	return realized
}

// Snapshot computes the current PortfolioSnapshot at markPx, spec.md §3's
// equity invariant: equity = cash + position_qty*mark_px.
func (p *Portfolio) Snapshot(markPx float64) Snapshot {
	unrealized := 0.0
	if p.positionQty != 0 {
		unrealized = (markPx - p.avgCost) * p.positionQty
	}
	return Snapshot{
		Equity:        p.cash + p.positionQty*markPx,
		Cash:          p.cash,
		PositionQty:   p.positionQty,
		RealizedPnL:   p.realizedPnL,
		UnrealizedPnL: unrealized,
		FillsCount:    p.fillsCount,
	}
}

// WinRate returns the fraction of closed trades with positive PnL, and
// closedTrades, the denominator. Per spec.md §9 Open Questions, an empty
// history reports 0.0 with closedTrades==0 rather than NaN.
func (p *Portfolio) WinRate() (rate float64, closedTrades int) {
	if len(p.closedPnLs) == 0 {
		return 0.0, 0
	}
	wins := 0
	for _, pnl := range p.closedPnLs {
		if pnl > 0 {
			wins++
		}
	}
	return float64(wins) / float64(len(p.closedPnLs)), len(p.closedPnLs)
}

// BuySellCounts returns the per-side fill counters, spec.md §4.6.
func (p *Portfolio) BuySellCounts() (buys, sells int) {
	return p.buyCount, p.sellCount
}
