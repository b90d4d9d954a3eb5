package execution

import (
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"arbsim/internal/config"
	"arbsim/internal/ledger"
	"arbsim/internal/model"
	"arbsim/internal/random"
)

// seqSource replays fixed Float64 draws and fills Read deterministically.
type seqSource struct {
	draws []float64
	next  int
}

func (s *seqSource) Float64() float64 {
	v := s.draws[s.next%len(s.draws)]
	s.next++
	return v
}
func (s *seqSource) Intn(n int) int { return 0 }
func (s *seqSource) Int63() int64   { return int64(s.next) }
func (s *seqSource) Read(p []byte) (int, error) {
	for i := range p {
		p[i] = byte(s.next + i)
	}
	s.next++
	return len(p), nil
}

type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) TradeSettled(trade model.TradeRecord) {
	m.Called(trade)
}

const vol = 0.12

func newTestEngine(n Notifier) *Engine {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelWarn}))
	return NewEngine(logger, config.Default().Execution, n)
}

func opportunity(buy, sell float64) model.Opportunity {
	return model.Opportunity{
		ID:           "opp-1",
		Pair:         "BTC/USDT",
		BuyExchange:  "Coinbase",
		SellExchange: "Bybit",
		BuyPrice:     buy,
		SellPrice:    sell,
	}
}

func TestResolve(t *testing.T) {
	status, price := Resolve(105, 104, 99)
	assert.Equal(t, model.StatusTakeProfit, status)
	assert.Equal(t, 104.0, price)

	status, price = Resolve(98, 104, 99)
	assert.Equal(t, model.StatusStopLoss, status)
	assert.Equal(t, 99.0, price)

	status, price = Resolve(101.5, 104, 99)
	assert.Equal(t, model.StatusCompleted, status)
	assert.Equal(t, 101.5, price)

	// Take-profit below stop-loss: the take-profit branch is checked first.
	status, price = Resolve(95, 95, 100)
	assert.Equal(t, model.StatusTakeProfit, status)
	assert.Equal(t, 95.0, price)
}

func TestEngine_Execute(t *testing.T) {
	engine := newTestEngine(nil)

	t.Run("no equity", func(t *testing.T) {
		profit, trade := engine.Execute(random.New(1), opportunity(100, 102), 0, vol)
		assert.Zero(t, profit)
		assert.Nil(t, trade)

		profit, trade = engine.Execute(random.New(1), opportunity(100, 102), -5, vol)
		assert.Zero(t, profit)
		assert.Nil(t, trade)
	})

	t.Run("take profit", func(t *testing.T) {
		// slippage draw 0 keeps TP at the sell price, noise draw 1 pushes above it.
		profit, trade := engine.Execute(&seqSource{draws: []float64{0, 1}}, opportunity(100, 102), 10000, vol)
		require.NotNil(t, trade)

		assert.Equal(t, model.StatusTakeProfit, trade.Status)
		assert.Equal(t, 102.0, trade.TakeProfit)
		assert.Equal(t, 102.0, trade.ExitPrice)
		assert.InDelta(t, 100*(1-vol*0.003), trade.StopLoss, 1e-12)
		assert.Equal(t, 2000.0, trade.Allocation)
		assert.Equal(t, 20.0, trade.Amount)

		gross := 20.0 * 102
		want := (gross - 2000) - (2000+gross)*0.0006
		assert.InDelta(t, want, profit, 1e-9)
		assert.Equal(t, profit, trade.Profit)
	})

	t.Run("stop loss", func(t *testing.T) {
		// Narrow spread with the most negative noise falls through the stop.
		_, trade := engine.Execute(&seqSource{draws: []float64{0, 0}}, opportunity(100, 100.05), 10000, vol)
		require.NotNil(t, trade)

		assert.Equal(t, model.StatusStopLoss, trade.Status)
		assert.Equal(t, trade.StopLoss, trade.ExitPrice)
		assert.Less(t, trade.ExitPrice, trade.EntryPrice)
	})

	t.Run("completed at market", func(t *testing.T) {
		_, trade := engine.Execute(&seqSource{draws: []float64{0, 0.4}}, opportunity(100, 102), 10000, vol)
		require.NotNil(t, trade)

		assert.Equal(t, model.StatusCompleted, trade.Status)
		assert.Less(t, trade.ExitPrice, trade.TakeProfit)
		assert.Greater(t, trade.ExitPrice, trade.StopLoss)
		assert.InDelta(t, 102*(1-0.1*vol*0.03), trade.ExitPrice, 1e-9)
	})

	t.Run("allocation cap", func(t *testing.T) {
		_, trade := engine.Execute(random.New(3), opportunity(100, 102), 1_000_000, vol)
		require.NotNil(t, trade)
		assert.Equal(t, 5000.0, trade.Allocation)
		assert.Equal(t, 5000.0/100, trade.Amount)
	})
}

func TestEngine_ExecuteInvariants(t *testing.T) {
	engine := newTestEngine(nil)
	src := random.New(99)
	statuses := map[model.TradeStatus]bool{
		model.StatusTakeProfit: true,
		model.StatusStopLoss:   true,
		model.StatusCompleted:  true,
	}

	for i := range 1000 {
		equity := float64(i*37%50000) + 1
		opp := opportunity(100+src.Float64(), 101+src.Float64())

		_, trade := engine.Execute(src, opp, equity, vol*(1+src.Float64()))
		require.NotNil(t, trade)

		assert.LessOrEqual(t, trade.Allocation, min(0.2*equity, 5000))
		assert.Equal(t, trade.Allocation/opp.BuyPrice, trade.Amount)
		assert.True(t, statuses[trade.Status], trade.Status)
		assert.LessOrEqual(t, trade.TakeProfit, opp.SellPrice)
	}
}

func TestEngine_Settle(t *testing.T) {
	t.Run("live notifies", func(t *testing.T) {
		n := new(MockNotifier)
		n.On("TradeSettled", mock.MatchedBy(func(tr model.TradeRecord) bool { return !tr.IsBacktest })).Once()
		engine := newTestEngine(n)
		book := ledger.New(10000)

		trade := engine.Settle(random.New(1), book, opportunity(100, 102), vol, ModeLive)

		require.NotNil(t, trade)
		assert.Equal(t, 1, book.Len())
		assert.InDelta(t, 10000+trade.Profit, book.Equity(), 1e-9)
		n.AssertExpectations(t)
	})

	t.Run("silent and backtest do not notify", func(t *testing.T) {
		n := new(MockNotifier)
		engine := newTestEngine(n)
		book := ledger.New(10000)

		engine.Settle(random.New(1), book, opportunity(100, 102), vol, ModeSilent)
		trade := engine.Settle(random.New(2), book, opportunity(100, 102), vol, ModeBacktest)

		require.NotNil(t, trade)
		assert.True(t, trade.IsBacktest)
		assert.Equal(t, 2, book.Len())
		n.AssertNotCalled(t, "TradeSettled", mock.Anything)
	})

	t.Run("empty book is a no-op", func(t *testing.T) {
		n := new(MockNotifier)
		engine := newTestEngine(n)
		book := ledger.New(0)

		trade := engine.Settle(random.New(1), book, opportunity(100, 102), vol, ModeLive)

		assert.Nil(t, trade)
		assert.Zero(t, book.Len())
		assert.Zero(t, book.Equity())
		n.AssertNotCalled(t, "TradeSettled", mock.Anything)
	})

	t.Run("equity is initial capital plus net profits", func(t *testing.T) {
		engine := newTestEngine(nil)
		book := ledger.New(10000)
		src := random.New(5)

		sum := 0.0
		for range 50 {
			trade := engine.Settle(src, book, opportunity(100, 100.3), vol, ModeSilent)
			require.NotNil(t, trade)
			sum += trade.Profit
		}
		assert.InDelta(t, 10000+sum, book.Equity(), 1e-6)
	})
}
