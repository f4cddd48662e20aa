// Package fusion normalizes >=0 external predictor streams into a single
// fair-value reference price and computes the lag-trigger divergence
// against the observed market price, per spec.md §4.3.
package fusion

import (
	"math"
	"sort"
)

// PredictorTick is one sample from an external predictor source, spec.md §3.
type PredictorTick struct {
	Source      string
	Px          float64
	TsMS        int64
	FreshnessMS int32
}

// IsStale reports whether the sample is older than budgetMS as of nowMS.
func (p PredictorTick) IsStale(nowMS int64, budgetMS int64) bool {
	return nowMS-p.TsMS > budgetMS
}

// Config controls fusion behavior, spec.md §4.3.
type Config struct {
	StalenessBudgetMS int64   // default 2000
	OutlierClipBps    float64 // default 200
}

func (c Config) withDefaults() Config {
	if c.StalenessBudgetMS == 0 {
		c.StalenessBudgetMS = 2000
	}
	if c.OutlierClipBps == 0 {
		c.OutlierClipBps = 200
	}
	return c
}

// ReferencePrice is the fused fair value, spec.md §3. Valid reports whether
// at least one fresh source contributed; an invalid ReferencePrice carries
// no meaningful Px (spec: "Undefined if no fresh source").
type ReferencePrice struct {
	Valid       bool
	Px          float64
	SourcesUsed int
	SpreadBps   float64
	TsMS        int64
}

// Fuse implements spec.md §4.3 steps 1-4: filter fresh, median, spread,
// outlier-clip-and-recompute.
func Fuse(predictors []PredictorTick, nowMS int64, cfg Config) ReferencePrice {
	cfg = cfg.withDefaults()

	fresh := make([]PredictorTick, 0, len(predictors))
	for _, p := range predictors {
		if !p.IsStale(nowMS, cfg.StalenessBudgetMS) {
			fresh = append(fresh, p)
		}
	}
	if len(fresh) == 0 {
		return ReferencePrice{TsMS: nowMS}
	}

	prices := pricesOf(fresh)
	med := median(prices)

	kept := fresh
	keptPrices := prices
	if cfg.OutlierClipBps > 0 && med > 0 {
		clipped := make([]PredictorTick, 0, len(fresh))
		for _, p := range fresh {
			bps := math.Abs(p.Px-med) / med * 10_000
			if bps <= cfg.OutlierClipBps {
				clipped = append(clipped, p)
			}
		}
		if len(clipped) > 0 && len(clipped) != len(fresh) {
			kept = clipped
			keptPrices = pricesOf(clipped)
			med = median(keptPrices)
		}
	}

	minPx, maxPx := keptPrices[0], keptPrices[0]
	for _, px := range keptPrices {
		if px < minPx {
			minPx = px
		}
		if px > maxPx {
			maxPx = px
		}
	}
	spreadBps := 0.0
	if med != 0 {
		spreadBps = 10_000 * (maxPx - minPx) / med
	}

	return ReferencePrice{
		Valid:       true,
		Px:          med,
		SourcesUsed: len(kept),
		SpreadBps:   spreadBps,
		TsMS:        nowMS,
	}
}

func pricesOf(ticks []PredictorTick) []float64 {
	out := make([]float64, len(ticks))
	for i, t := range ticks {
		out[i] = t.Px
	}
	return out
}

// median returns the median of a (possibly unsorted) slice without
// mutating the caller's backing array.
func median(values []float64) float64 {
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

// Direction is the lag-trigger's side.
type Direction int

const (
	DirectionNone Direction = iota
	DirectionBuy
	DirectionSell
)

// LagTrigger is emitted when |divergence_pct| crosses lag_threshold_pct.
type LagTrigger struct {
	Triggered      bool
	Direction      Direction
	DivergencePct  float64
}

// DetectLag implements spec.md §4.3's lag detector and boundary rule
// (property 7): equality to the threshold triggers (>=, closed boundary).
func DetectLag(ref ReferencePrice, marketPx float64, lagThresholdPct float64) LagTrigger {
	if !ref.Valid || marketPx <= 0 {
		return LagTrigger{}
	}
	divPct := 100 * (ref.Px - marketPx) / marketPx
	if math.Abs(divPct) < lagThresholdPct {
		return LagTrigger{DivergencePct: divPct}
	}
	dir := DirectionBuy
	if divPct < 0 {
		dir = DirectionSell
	}
	return LagTrigger{Triggered: true, Direction: dir, DivergencePct: divPct}
}
