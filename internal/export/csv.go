package export

import (
	"encoding/csv"
	"io"
	"strconv"
	"time"

	"arbsim/internal/model"
)

// PendingAnalysis fills the analysis column of trades with no rationale yet.
const PendingAnalysis = "Awaiting analysis"

var header = []string{
	"ID", "Scope", "Timestamp", "Pair", "Status", "Profit (USDT)",
	"Entry Exchange", "Exit Exchange", "Entry Price", "Exit Price", "Analysis Summary",
}

// WriteCSV renders trades as CSV, one row per trade in the given order.
func WriteCSV(w io.Writer, trades []model.TradeRecord) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return err
	}
	for _, t := range trades {
		if err := cw.Write(row(t)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func row(t model.TradeRecord) []string {
	scope := "LIVE"
	if t.IsBacktest {
		scope = "SIM"
	}
	analysis := t.Reasoning
	if analysis == "" {
		analysis = PendingAnalysis
	}
	return []string{
		t.ID,
		scope,
		t.Timestamp.UTC().Format(time.RFC3339),
		t.Pair,
		string(t.Status),
		strconv.FormatFloat(t.Profit, 'f', 4, 64),
		t.EntryExchange,
		t.ExitExchange,
		strconv.FormatFloat(t.EntryPrice, 'f', 4, 64),
		strconv.FormatFloat(t.ExitPrice, 'f', 4, 64),
		analysis,
	}
}
