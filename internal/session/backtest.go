package session

import (
	"context"
	"fmt"
	"strings"
	"time"

	"arbsim/internal/execution"
	"arbsim/internal/feed"
	"arbsim/internal/ledger"
	"arbsim/internal/metrics"
	"arbsim/internal/model"
	"arbsim/internal/random"
)

// Scenario selects the market conditions a backtest replays.
type Scenario string

const (
	ScenarioBull     Scenario = "bull"
	ScenarioBear     Scenario = "bear"
	ScenarioVolatile Scenario = "volatile"
)

// ParseScenario accepts a scenario name in any case.
func ParseScenario(s string) (Scenario, error) {
	switch sc := Scenario(strings.ToLower(strings.TrimSpace(s))); sc {
	case ScenarioBull, ScenarioBear, ScenarioVolatile:
		return sc, nil
	default:
		return "", fmt.Errorf("unknown backtest scenario: %q", s)
	}
}

// BacktestReport summarizes a finished backtest. NetYield is always
// FinalEquity minus StartEquity.
type BacktestReport struct {
	Scenario    Scenario            `json:"scenario"`
	Ticks       int                 `json:"ticks"`
	Trades      []model.TradeRecord `json:"trades"`
	StartEquity float64             `json:"start_equity"`
	FinalEquity float64             `json:"final_equity"`
	NetYield    float64             `json:"net_yield"`
	Cancelled   bool                `json:"cancelled"`
	StartedAt   time.Time           `json:"started_at"`
	FinishedAt  time.Time           `json:"finished_at"`
}

// arena is the private working state of one backtest. Nothing in it is
// shared with the live session.
type arena struct {
	src    random.Source
	market model.MarketState
	book   *ledger.Ledger
	drift  float64
}

func (c *Controller) newArenaLocked(scenario Scenario) *arena {
	a := &arena{
		src:    random.Fork(c.src),
		market: c.market.Clone(),
		book:   ledger.New(c.book.Equity()),
	}
	switch scenario {
	case ScenarioBull:
		a.drift = c.cfg.Session.BullDrift
		a.market.Trend = model.TrendBullish
	case ScenarioBear:
		a.drift = c.cfg.Session.BearDrift
		a.market.Trend = model.TrendBearish
	case ScenarioVolatile:
		a.market.Volatility *= c.cfg.Session.VolatileMultiplier
	}
	return a
}

// RunBacktest starts a backtest of the scenario against a private copy of
// the current prices and equity. Scheduled ticking is suspended until it
// finishes. The returned channel receives the report once.
func (c *Controller) RunBacktest(scenario Scenario) (<-chan BacktestReport, error) {
	scenario, err := ParseScenario(string(scenario))
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	next, ok := c.mode.BeginBacktest()
	if !ok {
		c.mu.Unlock()
		metrics.RecordRejected("backtest", "backtest")
		return nil, ErrBacktestRunning
	}
	c.mode = next

	a := c.newArenaLocked(scenario)
	ctx, cancel := context.WithCancel(c.baseCtx)
	c.cancelBT = cancel
	c.view = &backtestView{market: a.market.Clone(), equity: a.book.Equity()}
	c.mu.Unlock()

	c.logger.Info("Controller: backtest started",
		"scenario", scenario,
		"ticks", c.cfg.Session.BacktestTicks,
		"equity", a.book.Equity(),
	)
	c.publish()

	done := make(chan BacktestReport, 1)
	go func() {
		defer cancel()
		report := c.backtest(ctx, scenario, a)
		c.finishBacktest(report)
		done <- report
		close(done)
	}()
	return done, nil
}

// CancelBacktest stops a running backtest after its current tick.
func (c *Controller) CancelBacktest() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancelBT == nil {
		return ErrNoBacktest
	}
	c.cancelBT()
	return nil
}

func (c *Controller) backtest(ctx context.Context, scenario Scenario, a *arena) BacktestReport {
	report := BacktestReport{
		Scenario:    scenario,
		StartEquity: a.book.Equity(),
		StartedAt:   time.Now(),
	}
	ticks := c.cfg.Session.BacktestTicks
	pacing := c.cfg.Session.BacktestPacing()
	volatility := a.market.Volatility / 100

	for i := range ticks {
		if ctx.Err() != nil {
			report.Cancelled = true
			break
		}

		a.market = feed.Advance(a.src, a.market, a.drift, &volatility)
		opps := c.scanner.Scan(a.src, a.market.Prices)
		if len(opps) > 0 && opps[0].CompositeScore > c.cfg.Arbitrage.ScoreThreshold {
			if trade := c.engine.Settle(a.src, a.book, opps[0], a.market.Volatility, execution.ModeBacktest); trade != nil {
				report.Trades = append(report.Trades, *trade)
			}
		}
		metrics.RecordTick(true)
		report.Ticks = i + 1

		c.publishBacktestTick(a, opps, float64(i+1)/float64(ticks)*100)

		if pacing > 0 {
			select {
			case <-ctx.Done():
			case <-time.After(pacing):
			}
		}
	}

	report.FinalEquity = a.book.Equity()
	report.NetYield = report.FinalEquity - report.StartEquity
	report.FinishedAt = time.Now()
	return report
}

// publishBacktestTick exposes one backtest tick and the arena's running
// equity for display. Live state is not touched.
func (c *Controller) publishBacktestTick(a *arena, opps []model.Opportunity, progress float64) {
	c.mu.Lock()
	c.view = &backtestView{
		market:   a.market.Clone(),
		opps:     opps,
		progress: progress,
		equity:   a.book.Equity(),
		trades:   a.book.Len(),
	}
	c.mu.Unlock()

	c.publish()
}

func (c *Controller) finishBacktest(report BacktestReport) {
	c.mu.Lock()
	c.mode = c.mode.EndBacktest()
	c.view = nil
	c.cancelBT = nil
	c.last = &report
	mode := c.mode
	c.mu.Unlock()

	metrics.RecordBacktest(string(report.Scenario), report.Cancelled)
	c.logger.Info("Controller: backtest finished",
		"scenario", report.Scenario,
		"ticks", report.Ticks,
		"trades", len(report.Trades),
		"netYield", report.NetYield,
		"cancelled", report.Cancelled,
		"mode", mode,
	)
	c.publish()
}
