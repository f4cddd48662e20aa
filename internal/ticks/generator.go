package ticks

import "fmt"

// Kind distinguishes a Tick's origin, per spec.md §3.
type Kind int

const (
	KindPrediction Kind = iota
	KindMarket
)

func (k Kind) String() string {
	if k == KindPrediction {
		return "prediction"
	}
	return "market"
}

// Tick is an immutable discrete price sample, spec.md §3.
type Tick struct {
	TsMonotonicNS int64
	TsWallMS      int64
	Kind          Kind
	Venue         string
	Px            float64
}

// GeneratorConfig configures both producers, spec.md §4.1.
type GeneratorConfig struct {
	Seed              int64
	StartPx           float64
	Sigma             float64 // default 0.001
	DecisionIntervalMS int64
	MarketLagMS       int64
	MicroNoiseSigma   float64 // 0 disables market-side perturbation
}

// PredictionGenerator drives a geometric-Brownian-style process:
// px_{t+1} = px_t * (1 + sigma*N(0,1)).
type PredictionGenerator struct {
	rng   *Rand
	px    float64
	sigma float64
	stepNS int64
	nowNS int64
}

func NewPredictionGenerator(cfg GeneratorConfig) *PredictionGenerator {
	if cfg.StartPx <= 0 {
		panic("ticks: GeneratorConfig.StartPx must be > 0")
	}
	sigma := cfg.Sigma
	if sigma == 0 {
		sigma = 0.001
	}
	return &PredictionGenerator{
		rng:    NewRand(cfg.Seed, "prediction"),
		px:     cfg.StartPx,
		sigma:  sigma,
		stepNS: cfg.DecisionIntervalMS * int64(1e6),
	}
}

// Next advances the process by one decision step and returns the tick.
func (g *PredictionGenerator) Next() Tick {
	g.px = g.px * (1 + g.sigma*g.rng.NormFloat64())
	if g.px <= 0 {
		// A GBM process with sane sigma essentially never hits this; guard it
		// anyway so downstream invariants (px > 0) can never be violated.
		g.px = 1e-9
	}
	g.nowNS += g.stepNS
	return Tick{
		TsMonotonicNS: g.nowNS,
		TsWallMS:      g.nowNS / int64(1e6),
		Kind:          KindPrediction,
		Px:            g.px,
	}
}

// MarketGenerator consumes prediction ticks through a FIFO delay line of
// length ceil(market_lag_ms / decision_interval_ms), optionally perturbed
// by an independent RNG stream for micro-noise, spec.md §4.1.
type MarketGenerator struct {
	rng       *Rand
	delay     []float64
	noiseSigma float64
	venue     string
}

func delayLen(marketLagMS, decisionIntervalMS int64) int {
	if decisionIntervalMS <= 0 {
		panic("ticks: GeneratorConfig.DecisionIntervalMS must be > 0")
	}
	if marketLagMS <= 0 {
		return 0
	}
	n := marketLagMS / decisionIntervalMS
	if marketLagMS%decisionIntervalMS != 0 {
		n++
	}
	return int(n)
}

// NewMarketGenerator builds the delay line. seed and the decisionInterval
// must match the PredictionGenerator's for the delay line to represent a
// real lag in wall-clock time.
func NewMarketGenerator(cfg GeneratorConfig, venue string) *MarketGenerator {
	n := delayLen(cfg.MarketLagMS, cfg.DecisionIntervalMS)
	delay := make([]float64, n)
	for i := range delay {
		delay[i] = cfg.StartPx
	}
	return &MarketGenerator{
		rng:        NewRand(cfg.Seed, "market-noise"),
		delay:      delay,
		noiseSigma: cfg.MicroNoiseSigma,
		venue:      venue,
	}
}

// Next pushes predictionPx into the delay line and pops the lagged value,
// applying micro-noise if configured. With an empty delay line (lag <
// decision interval) the prediction tick passes through immediately.
func (g *MarketGenerator) Next(predictionTick Tick) Tick {
	px := predictionTick.Px
	if len(g.delay) > 0 {
		px = g.delay[0]
		copy(g.delay, g.delay[1:])
		g.delay[len(g.delay)-1] = predictionTick.Px
	}
	if g.noiseSigma != 0 {
		px = px * (1 + g.noiseSigma*g.rng.NormFloat64())
		if px <= 0 {
			px = 1e-9
		}
	}
	return Tick{
		TsMonotonicNS: predictionTick.TsMonotonicNS,
		TsWallMS:      predictionTick.TsWallMS,
		Kind:          KindMarket,
		Venue:         g.venue,
		Px:            px,
	}
}

// Pair is one synchronized (prediction, market) sample.
type Pair struct {
	Prediction Tick
	Market     Tick
}

func (p Pair) String() string {
	return fmt.Sprintf("t=%d pred=%.6f mkt=%.6f", p.Prediction.TsMonotonicNS, p.Prediction.Px, p.Market.Px)
}

// Stream glues the two generators together and emits synchronized pairs,
// one per decision tick, which is the unit of replay determinism
// (spec.md §4.1's "identical sequence of emitted pairs").
type Stream struct {
	prediction *PredictionGenerator
	market     *MarketGenerator
}

func NewStream(cfg GeneratorConfig, venue string) *Stream {
	return &Stream{
		prediction: NewPredictionGenerator(cfg),
		market:     NewMarketGenerator(cfg, venue),
	}
}

func (s *Stream) Next() Pair {
	p := s.prediction.Next()
	m := s.market.Next(p)
	return Pair{Prediction: p, Market: m}
}
