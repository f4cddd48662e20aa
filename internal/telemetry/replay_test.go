package telemetry

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestReplayRow_ColumnOrderMatchesHeader(t *testing.T) {
	row := ReplayRow{
		TMS: 1000, ExternalPx: 101.5, MarketPx: 100.9,
		Divergence: 0.0059, Action: "Buy",
		Equity: 100_250, RealizedPnL: 250, Position: 1.2, Halted: false,
	}
	out := row.ToCSVRow()
	require.Len(t, out, len(ReplayHeader))
	require.Equal(t, "1000", out[0])
	require.Equal(t, "Buy", out[4])
	require.Equal(t, "false", out[8])
}

func TestEventType_StringValuesMatchWireContract(t *testing.T) {
	require.Equal(t, EventType("paper_fill"), PaperFillEvent{}.EventType())
	require.Equal(t, EventType("risk_reject"), RiskRejectEvent{}.EventType())
	require.Equal(t, EventType("settings_updated"), SettingsUpdatedEvent{}.EventType())
}
