package model

import "time"

// Trend is an informational market direction label.
type Trend string

const (
	TrendBullish Trend = "BULLISH"
	TrendBearish Trend = "BEARISH"
	TrendNeutral Trend = "NEUTRAL"
)

// PriceMatrix maps exchange -> pair -> price.
type PriceMatrix map[string]map[string]float64

// Clone returns a deep copy of the matrix.
func (m PriceMatrix) Clone() PriceMatrix {
	out := make(PriceMatrix, len(m))
	for exchange, pairs := range m {
		cp := make(map[string]float64, len(pairs))
		for pair, price := range pairs {
			cp[pair] = price
		}
		out[exchange] = cp
	}
	return out
}

// MarketState is the simulated market at one tick.
// Volatility is a percentage; the per-tick price fraction is Volatility/100.
type MarketState struct {
	Prices     PriceMatrix `json:"prices"`
	Volatility float64     `json:"volatility"`
	Trend      Trend       `json:"trend"`
}

// Clone returns a copy that shares no maps with s.
func (s MarketState) Clone() MarketState {
	s.Prices = s.Prices.Clone()
	return s
}

// Opportunity is one detected cross-exchange spread. Never mutated after a scan.
type Opportunity struct {
	ID               string    `json:"id"`
	Pair             string    `json:"pair"`
	BuyExchange      string    `json:"buy_exchange"`
	SellExchange     string    `json:"sell_exchange"`
	BuyPrice         float64   `json:"buy_price"`
	SellPrice        float64   `json:"sell_price"`
	Spread           float64   `json:"spread"`
	SpreadPercentage float64   `json:"spread_percentage"`
	SignalStrength   float64   `json:"signal_strength"`
	CompositeScore   float64   `json:"composite_score"`
	RiskScore        int       `json:"risk_score"`
	Timestamp        time.Time `json:"timestamp"`
}

// TradeStatus is how a simulated position was resolved.
type TradeStatus string

const (
	StatusTakeProfit TradeStatus = "TAKE_PROFIT"
	StatusStopLoss   TradeStatus = "STOP_LOSS"
	StatusCompleted  TradeStatus = "COMPLETED"
)

// AnalysisLayers is the five-step breakdown attached with a trade rationale.
type AnalysisLayers struct {
	Sensory         string `json:"l1"`
	Pattern         string `json:"l2"`
	Risk            string `json:"l3"`
	Strategic       string `json:"l4"`
	Crystallization string `json:"l5"`
}

// TradeRecord is the settled result of one simulated execution.
// Only Reasoning and Layers may be set after creation.
type TradeRecord struct {
	ID            string          `json:"id"`
	Pair          string          `json:"pair"`
	EntryExchange string          `json:"entry_exchange"`
	ExitExchange  string          `json:"exit_exchange"`
	EntryPrice    float64         `json:"entry_price"`
	ExitPrice     float64         `json:"exit_price"`
	TakeProfit    float64         `json:"take_profit"`
	StopLoss      float64         `json:"stop_loss"`
	Amount        float64         `json:"amount"`
	Allocation    float64         `json:"allocation"`
	Fees          float64         `json:"fees"`
	Profit        float64         `json:"profit"`
	Status        TradeStatus     `json:"status"`
	Timestamp     time.Time       `json:"timestamp"`
	IsBacktest    bool            `json:"is_backtest"`
	Reasoning     string          `json:"reasoning,omitempty"`
	Layers        *AnalysisLayers `json:"layers,omitempty"`
}

// Lesson is a short retention card derived from a notable trade outcome.
type Lesson struct {
	ID        string    `json:"id"`
	Topic     string    `json:"topic"`
	Content   string    `json:"content"`
	Reasoning string    `json:"reasoning"`
	Retention float64   `json:"retention"`
	Timestamp time.Time `json:"timestamp"`
}
