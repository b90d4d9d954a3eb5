package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"arbsim/internal/arbitrage"
	"arbsim/internal/config"
	"arbsim/internal/execution"
	"arbsim/internal/feed"
	"arbsim/internal/ledger"
	"arbsim/internal/metrics"
	"arbsim/internal/model"
	"arbsim/internal/random"
)

var (
	ErrBacktestRunning     = errors.New("backtest is running")
	ErrAutonomousActive    = errors.New("autonomous trading owns the opportunity set")
	ErrOpportunityNotFound = errors.New("opportunity not found in current scan")
	ErrNoBacktest          = errors.New("no backtest is running")
)

// Snapshot is the published state of a session.
type Snapshot struct {
	Mode          Mode                `json:"mode"`
	Autonomous    bool                `json:"autonomous"`
	Backtesting   bool                `json:"backtesting"`
	Progress      float64             `json:"progress"`
	Market        model.MarketState   `json:"market"`
	Opportunities []model.Opportunity `json:"opportunities"`
	Equity        float64             `json:"equity"`
	Trades        []model.TradeRecord `json:"trades"`
	Lessons       []model.Lesson      `json:"lessons"`
	Stats         ledger.Summary      `json:"stats"`
	LastBacktest  *BacktestReport     `json:"last_backtest,omitempty"`
	Timestamp     time.Time           `json:"timestamp"`

	// Running backtest arena, zero when no backtest is running.
	BacktestEquity float64 `json:"backtest_equity,omitempty"`
	BacktestTrades int     `json:"backtest_trades,omitempty"`
}

// backtestView is what a running backtest has published for display.
type backtestView struct {
	market   model.MarketState
	opps     []model.Opportunity
	progress float64
	equity   float64
	trades   int
}

// Controller owns the live market, equity and trade history, and drives
// the scanner and engine on a schedule. All mutations happen under mu.
type Controller struct {
	logger  *slog.Logger
	cfg     config.Config
	scanner *arbitrage.Scanner
	engine  *execution.Engine

	mu       sync.Mutex
	mode     Mode
	src      random.Source
	market   model.MarketState
	opps     []model.Opportunity
	book     *ledger.Ledger
	lessons  []model.Lesson
	view     *backtestView
	last     *BacktestReport
	baseCtx  context.Context
	cancelBT context.CancelFunc

	subsMu sync.Mutex
	subs   map[int]chan Snapshot
	nextID int
}

// NewController creates a controller in passive mode over the configured
// initial market, with an initial scan already published.
func NewController(logger *slog.Logger, cfg config.Config, scanner *arbitrage.Scanner, engine *execution.Engine) *Controller {
	seed := cfg.Session.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	c := &Controller{
		logger:  logger,
		cfg:     cfg,
		scanner: scanner,
		engine:  engine,
		mode:    Passive,
		src:     random.New(seed),
		market:  cfg.Market.InitialMarket(),
		book:    ledger.New(cfg.Market.InitialCapital),
		baseCtx: context.Background(),
		subs:    make(map[int]chan Snapshot),
	}
	c.opps = scanner.Scan(c.src, c.market.Prices)
	metrics.SetEquity(c.book.Equity())
	return c
}

// Run ticks the passive scan and the autonomous trader until ctx is done.
// Tearing down cancels a running backtest but does not wait for enrichment.
func (c *Controller) Run(ctx context.Context) error {
	c.mu.Lock()
	c.baseCtx = ctx
	c.mu.Unlock()

	passive := time.NewTicker(c.cfg.Session.PassiveInterval())
	defer passive.Stop()
	autonomous := time.NewTicker(c.cfg.Session.AutonomousInterval())
	defer autonomous.Stop()

	c.logger.Info("Controller: started",
		"passiveInterval", c.cfg.Session.PassiveInterval(),
		"autonomousInterval", c.cfg.Session.AutonomousInterval(),
	)
	for {
		select {
		case <-ctx.Done():
			c.logger.Info("Controller: context cancelled, shutting down")
			c.CancelBacktest()
			return nil
		case <-passive.C:
			c.passiveTick()
		case <-autonomous.C:
			c.autonomousTick()
		}
	}
}

func (c *Controller) passiveTick() {
	c.mu.Lock()
	if c.mode.Backtesting() {
		c.mu.Unlock()
		return
	}
	c.market = feed.Advance(c.src, c.market, 0, nil)
	c.opps = c.scanner.Scan(c.src, c.market.Prices)
	metrics.RecordTick(false)
	metrics.SetOpportunities(len(c.opps))
	c.mu.Unlock()

	c.publish()
}

func (c *Controller) autonomousTick() {
	c.mu.Lock()
	if !c.mode.Autonomous() || c.mode.Backtesting() || len(c.opps) == 0 {
		c.mu.Unlock()
		return
	}
	best := c.opps[0]
	if best.CompositeScore <= c.cfg.Arbitrage.ScoreThreshold {
		c.mu.Unlock()
		return
	}
	trade := c.engine.Settle(c.src, c.book, best, c.market.Volatility, execution.ModeLive)
	if trade != nil {
		metrics.SetEquity(c.book.Equity())
	}
	c.mu.Unlock()

	if trade != nil {
		c.logger.Info("Controller: autonomous trade",
			"id", trade.ID,
			"pair", trade.Pair,
			"status", trade.Status,
			"netProfit", trade.Profit,
		)
		c.publish()
	}
}

// ExecuteOpportunity settles the opportunity with the given id from the
// current scan. It returns a nil trade and no error when equity is exhausted.
func (c *Controller) ExecuteOpportunity(id string) (*model.TradeRecord, error) {
	c.mu.Lock()
	switch {
	case c.mode.Backtesting():
		c.mu.Unlock()
		metrics.RecordRejected("execute", "backtest")
		return nil, ErrBacktestRunning
	case c.mode.Autonomous():
		c.mu.Unlock()
		metrics.RecordRejected("execute", "autonomous")
		return nil, ErrAutonomousActive
	}

	var (
		opp   model.Opportunity
		found bool
	)
	for _, o := range c.opps {
		if o.ID == id {
			opp, found = o, true
			break
		}
	}
	if !found {
		c.mu.Unlock()
		return nil, ErrOpportunityNotFound
	}

	trade := c.engine.Settle(c.src, c.book, opp, c.market.Volatility, execution.ModeLive)
	if trade != nil {
		metrics.SetEquity(c.book.Equity())
	}
	c.mu.Unlock()

	if trade != nil {
		c.logger.Info("Controller: manual trade",
			"id", trade.ID,
			"pair", trade.Pair,
			"status", trade.Status,
			"netProfit", trade.Profit,
		)
		c.publish()
	}
	return trade, nil
}

// SetAutonomous enables or disables autonomous trading. The setting is kept
// across a running backtest and takes effect when it finishes.
func (c *Controller) SetAutonomous(enabled bool) {
	c.mu.Lock()
	c.mode = c.mode.WithAutonomous(enabled)
	mode := c.mode
	c.mu.Unlock()

	c.logger.Info("Controller: autonomous mode changed", "enabled", enabled, "mode", mode)
	c.publish()
}

// ResetSession restores the starting capital and clears history and lessons.
// Rationales that arrive later for cleared trades are dropped.
func (c *Controller) ResetSession() {
	c.mu.Lock()
	c.book.Reset(c.cfg.Market.InitialCapital)
	c.lessons = nil
	metrics.SetEquity(c.book.Equity())
	c.mu.Unlock()

	c.logger.Info("Controller: session reset", "equity", c.cfg.Market.InitialCapital)
	c.publish()
}

// AttachAnalysis sets the rationale of a live trade. Unknown ids and trades
// that already carry a rationale are left unchanged.
func (c *Controller) AttachAnalysis(id, reasoning string, layers *model.AnalysisLayers) bool {
	c.mu.Lock()
	ok := c.book.Attach(id, reasoning, layers)
	c.mu.Unlock()

	if !ok {
		c.logger.Debug("Controller: analysis dropped", "tradeID", id)
		return false
	}
	c.publish()
	return true
}

// AddLesson stores a lesson, keeping the newest MaxLessons.
func (c *Controller) AddLesson(lesson model.Lesson) {
	c.mu.Lock()
	c.lessons = append([]model.Lesson{lesson}, c.lessons...)
	if limit := c.cfg.Session.MaxLessons; limit > 0 && len(c.lessons) > limit {
		c.lessons = c.lessons[:limit]
	}
	c.mu.Unlock()

	c.publish()
}

// Mode returns the current scheduling state.
func (c *Controller) Mode() Mode {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mode
}

// Snapshot returns a copy of the published state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *Controller) snapshotLocked() Snapshot {
	trades := c.book.History()
	s := Snapshot{
		Mode:          c.mode,
		Autonomous:    c.mode.Autonomous(),
		Backtesting:   c.mode.Backtesting(),
		Market:        c.market.Clone(),
		Opportunities: append([]model.Opportunity(nil), c.opps...),
		Equity:        c.book.Equity(),
		Trades:        trades,
		Lessons:       append([]model.Lesson(nil), c.lessons...),
		Stats:         ledger.Summarize(trades, c.cfg.Market.InitialCapital),
		Timestamp:     time.Now(),
	}
	if c.view != nil {
		s.Market = c.view.market.Clone()
		s.Opportunities = append([]model.Opportunity(nil), c.view.opps...)
		s.Progress = c.view.progress
		s.BacktestEquity = c.view.equity
		s.BacktestTrades = c.view.trades
	}
	if c.last != nil {
		last := *c.last
		last.Trades = append([]model.TradeRecord(nil), c.last.Trades...)
		s.LastBacktest = &last
	}
	return s
}

// Subscribe returns a channel that receives the published state after every
// change. Slow readers only see the latest snapshot. Call cancel to stop.
func (c *Controller) Subscribe() (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, 1)

	c.subsMu.Lock()
	id := c.nextID
	c.nextID++
	c.subs[id] = ch
	c.subsMu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			c.subsMu.Lock()
			delete(c.subs, id)
			c.subsMu.Unlock()
		})
	}
	return ch, cancel
}

// publish sends the current state to subscribers. Snapshots are taken under
// subsMu so concurrent publishers deliver them in order.
func (c *Controller) publish() {
	c.subsMu.Lock()
	defer c.subsMu.Unlock()
	if len(c.subs) == 0 {
		return
	}

	snap := c.Snapshot()
	for _, ch := range c.subs {
		select {
		case ch <- snap:
			continue
		default:
		}
		// Drop the stale snapshot the reader has not taken yet.
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- snap:
		default:
		}
	}
}
