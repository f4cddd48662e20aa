package telemetry

// StrategyPerf is the derived performance summary periodically published
// alongside PortfolioSnapshot, spec.md component #10.
type StrategyPerf struct {
	TotalIntents  int64
	TotalFills    int64
	ClosedTrades  int
	WinRate       float64
	RealizedPnL   float64
	UnrealizedPnL float64
	Equity        float64

	DecisionP50MS float64
	DecisionP95MS float64
	DecisionP99MS float64
	FillP50MS     float64
	FillP95MS     float64
	FillP99MS     float64

	RejectsByReason  map[string]int64
	DroppedTelemetry int64
	Halted           bool
}
