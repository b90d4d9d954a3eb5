package execution

import (
	"log/slog"
	"time"

	"arbsim/internal/config"
	"arbsim/internal/metrics"
	"arbsim/internal/model"
	"arbsim/internal/random"
)

// Mode says how a settled trade is announced.
type Mode int

const (
	// ModeLive settles against live equity and notifies the Notifier.
	ModeLive Mode = iota
	// ModeSilent settles without notification.
	ModeSilent
	// ModeBacktest is silent and marks the record as a backtest trade.
	ModeBacktest
)

func (m Mode) String() string {
	switch m {
	case ModeLive:
		return "live"
	case ModeSilent:
		return "silent"
	case ModeBacktest:
		return "backtest"
	default:
		return "unknown"
	}
}

// Book is the equity ledger and trade history a settlement is applied to.
type Book interface {
	Equity() float64
	Apply(trade model.TradeRecord)
}

// Notifier receives live trades after they are settled. It must not block.
type Notifier interface {
	TradeSettled(trade model.TradeRecord)
}

// Engine simulates fills for arbitrage opportunities.
type Engine struct {
	logger   *slog.Logger
	cfg      config.ExecutionConfig
	notifier Notifier
}

// NewEngine creates a new instance of the Engine. notifier may be nil.
func NewEngine(logger *slog.Logger, cfg config.ExecutionConfig, notifier Notifier) *Engine {
	return &Engine{
		logger:   logger,
		cfg:      cfg,
		notifier: notifier,
	}
}

// SetNotifier replaces the notifier used for live settlements.
func (e *Engine) SetNotifier(n Notifier) {
	e.notifier = n
}

// Execute computes a simulated fill for opp. It returns zero profit and a nil
// record when equity is not positive. volatility is the market's stored
// percentage value.
func (e *Engine) Execute(src random.Source, opp model.Opportunity, equity, volatility float64) (float64, *model.TradeRecord) {
	if equity <= 0 {
		return 0, nil
	}

	allocation := min(equity*e.cfg.AllocationFraction, e.cfg.AllocationCap)

	takeProfit := opp.SellPrice * (1 - random.Uniform(src, 0, e.cfg.TakeProfitSlippage))
	stopLoss := opp.BuyPrice * (1 - volatility*e.cfg.StopLossFactor)

	noise := random.Uniform(src, -0.5, 0.5) * volatility * e.cfg.NoiseFactor
	status, realized := Resolve(takeProfit*(1+noise), takeProfit, stopLoss)

	tokens := allocation / opp.BuyPrice
	gross := tokens * realized
	fees := (allocation + gross) * e.cfg.FeeRate
	net := (gross - allocation) - fees

	return net, &model.TradeRecord{
		ID:            random.ID(src),
		Pair:          opp.Pair,
		EntryExchange: opp.BuyExchange,
		ExitExchange:  opp.SellExchange,
		EntryPrice:    opp.BuyPrice,
		ExitPrice:     realized,
		TakeProfit:    takeProfit,
		StopLoss:      stopLoss,
		Amount:        tokens,
		Allocation:    allocation,
		Fees:          fees,
		Profit:        net,
		Status:        status,
		Timestamp:     time.Now(),
	}
}

// Resolve picks the exit for a realized price candidate. Take-profit is
// checked before stop-loss, so when both hold take-profit wins.
func Resolve(candidate, takeProfit, stopLoss float64) (model.TradeStatus, float64) {
	switch {
	case candidate >= takeProfit:
		return model.StatusTakeProfit, takeProfit
	case candidate <= stopLoss:
		return model.StatusStopLoss, stopLoss
	default:
		return model.StatusCompleted, candidate
	}
}

// Settle executes opp against the book's equity and applies the result to the
// book. The caller must hold whatever lock guards book for the whole call.
// It returns nil when the book has no equity.
func (e *Engine) Settle(src random.Source, book Book, opp model.Opportunity, volatility float64, mode Mode) *model.TradeRecord {
	_, trade := e.Execute(src, opp, book.Equity(), volatility)
	if trade == nil {
		e.logger.Debug("Engine: no equity, execution skipped", "pair", opp.Pair, "mode", mode)
		return nil
	}
	trade.IsBacktest = mode == ModeBacktest

	book.Apply(*trade)
	metrics.RecordTrade(string(trade.Status), trade.IsBacktest, trade.Profit)

	e.logger.Debug("Engine: trade settled",
		"id", trade.ID,
		"pair", trade.Pair,
		"buyExchange", trade.EntryExchange,
		"sellExchange", trade.ExitExchange,
		"status", trade.Status,
		"netProfit", trade.Profit,
		"mode", mode,
	)

	if mode == ModeLive && e.notifier != nil {
		e.notifier.TradeSettled(*trade)
	}
	return trade
}
