// Package book implements the simple discrete order book and market-order
// fill model described in spec.md §4.2.
package book

import "math"

// Side is a book side / order direction.
type Side int

const (
	SideBuy Side = iota
	SideSell
)

// Level is one price rung of the book.
type Level struct {
	Px  float64
	Qty float64
}

// Config controls how a Book is built around a mid price.
type Config struct {
	Levels   int     // N levels per side, default 20
	TickSize float64 // Delta
	LevelQty float64 // quantity placed at each level, >0
}

// Book is a synthetic multi-level book rebuilt around a mid price every
// time the caller calls Reprice; it does not track real resting orders,
// only the depth profile used to price market-order fills.
type Book struct {
	cfg  Config
	bids []Level // best first (highest px)
	asks []Level // best first (lowest px)
}

func New(cfg Config) *Book {
	if cfg.Levels <= 0 {
		cfg.Levels = 20
	}
	if cfg.TickSize <= 0 {
		panic("book: Config.TickSize must be > 0")
	}
	if cfg.LevelQty <= 0 {
		panic("book: Config.LevelQty must be > 0")
	}
	return &Book{cfg: cfg}
}

// Reprice rebuilds the book's levels around mid.
func (b *Book) Reprice(mid float64) {
	n := b.cfg.Levels
	b.bids = make([]Level, n)
	b.asks = make([]Level, n)
	for i := 0; i < n; i++ {
		offset := float64(i+1) * b.cfg.TickSize
		b.bids[i] = Level{Px: mid - offset, Qty: b.cfg.LevelQty}
		b.asks[i] = Level{Px: mid + offset, Qty: b.cfg.LevelQty}
	}
}

// BestBid/BestAsk return the top of book, or 0 if the book is empty.
func (b *Book) BestBid() float64 {
	if len(b.bids) == 0 {
		return 0
	}
	return b.bids[0].Px
}

func (b *Book) BestAsk() float64 {
	if len(b.asks) == 0 {
		return 0
	}
	return b.asks[0].Px
}

// FillResult is the outcome of walking the book for a market order.
type FillResult struct {
	FilledQty float64
	AvgPrice  float64
}

// ExecuteMarket walks levels from best inward, accumulating volume until
// qty is satisfied or the book is exhausted. Buys cross the ask book,
// sells cross the bid book. On exhaustion FilledQty < qty and the caller
// decides acceptance (spec.md §4.2).
func (b *Book) ExecuteMarket(side Side, qty float64) FillResult {
	if qty <= 0 {
		return FillResult{}
	}
	var levels []Level
	if side == SideBuy {
		levels = b.asks
	} else {
		levels = b.bids
	}

	remaining := qty
	var notional float64
	var filled float64
	for _, lvl := range levels {
		if remaining <= 0 {
			break
		}
		take := math.Min(remaining, lvl.Qty)
		notional += take * lvl.Px
		filled += take
		remaining -= take
	}
	if filled == 0 {
		return FillResult{}
	}
	return FillResult{FilledQty: filled, AvgPrice: notional / filled}
}
