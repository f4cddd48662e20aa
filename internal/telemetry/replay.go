package telemetry

import "strconv"

// ReplayHeader is the exact 9-column CSV header contract from spec.md §6.
var ReplayHeader = []string{
	"t", "external_px", "market_px", "divergence", "action",
	"equity", "realized_pnl", "position", "halted",
}

// ReplayRow is one line of the deterministic run journal, spec.md §6.
type ReplayRow struct {
	TMS          int64
	ExternalPx   float64
	MarketPx     float64
	Divergence   float64
	Action       string
	Equity       float64
	RealizedPnL  float64
	Position     float64
	Halted       bool
}

// ToCSVRow renders the row in ReplayHeader's column order.
func (r ReplayRow) ToCSVRow() []string {
	return []string{
		strconv.FormatInt(r.TMS, 10),
		strconv.FormatFloat(r.ExternalPx, 'f', -1, 64),
		strconv.FormatFloat(r.MarketPx, 'f', -1, 64),
		strconv.FormatFloat(r.Divergence, 'f', -1, 64),
		r.Action,
		strconv.FormatFloat(r.Equity, 'f', -1, 64),
		strconv.FormatFloat(r.RealizedPnL, 'f', -1, 64),
		strconv.FormatFloat(r.Position, 'f', -1, 64),
		strconv.FormatBool(r.Halted),
	}
}

// Sink is implemented by the out-of-scope broadcast/export consumer that
// drains the lossy telemetry channel, spec.md §1 ("a UI or external
// dashboard consuming these is a separate concern").
type Sink interface {
	Publish(RuntimeEvent)
}

// SinkFunc adapts a plain function to Sink.
type SinkFunc func(RuntimeEvent)

func (f SinkFunc) Publish(e RuntimeEvent) { f(e) }
