package ledger

import "arbsim/internal/model"

// Summary aggregates session performance over a trade history.
type Summary struct {
	Trades      int           `json:"trades"`
	Wins        int           `json:"wins"`
	WinRate     float64       `json:"win_rate"`
	TotalProfit float64       `json:"total_profit"`
	ROI         float64       `json:"roi"`
	EquityCurve []EquityPoint `json:"equity_curve"`
}

// EquityPoint is the balance after one trade.
type EquityPoint struct {
	TradeID string  `json:"trade_id"`
	Equity  float64 `json:"equity"`
}

// Summarize computes win rate, total profit, ROI against initialCapital
// and the equity curve. Win rate and ROI are percentages.
func Summarize(trades []model.TradeRecord, initialCapital float64) Summary {
	s := Summary{
		Trades:      len(trades),
		EquityCurve: make([]EquityPoint, 0, len(trades)),
	}
	balance := initialCapital
	for _, t := range trades {
		if t.Profit > 0 {
			s.Wins++
		}
		s.TotalProfit += t.Profit
		balance += t.Profit
		s.EquityCurve = append(s.EquityCurve, EquityPoint{TradeID: t.ID, Equity: balance})
	}
	if s.Trades > 0 {
		s.WinRate = float64(s.Wins) / float64(s.Trades) * 100
	}
	if initialCapital > 0 {
		s.ROI = s.TotalProfit / initialCapital * 100
	}
	return s
}
