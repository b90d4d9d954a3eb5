package arbitrage

import (
	"log/slog"
	"math/rand"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"arbsim/internal/config"
	"arbsim/internal/model"
	"arbsim/internal/random"
)

var exchanges = []string{"Binance", "Kraken", "Coinbase", "Bybit"}

func newTestScanner(pairs ...string) *Scanner {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelWarn}))
	return NewScanner(logger, config.Default().Arbitrage, exchanges, pairs)
}

func matrix(pair string, prices ...float64) model.PriceMatrix {
	m := make(model.PriceMatrix)
	for i, exchange := range exchanges {
		m[exchange] = map[string]float64{pair: prices[i]}
	}
	return m
}

func TestMedian(t *testing.T) {
	assert.Equal(t, 101.0, Median([]float64{100, 101, 99, 102}))
	assert.Equal(t, 2.0, Median([]float64{3, 1, 2}))
	assert.Equal(t, 5.0, Median([]float64{5}))
}

func TestScanner_Scan(t *testing.T) {
	scanner := newTestScanner("BTC/USDT")

	t.Run("reference quotes", func(t *testing.T) {
		opps := scanner.Scan(random.New(1), matrix("BTC/USDT", 100, 101, 99, 102))
		require.Len(t, opps, 1)

		opp := opps[0]
		assert.Equal(t, "Coinbase", opp.BuyExchange)
		assert.Equal(t, "Bybit", opp.SellExchange)
		assert.Equal(t, 99.0, opp.BuyPrice)
		assert.Equal(t, 102.0, opp.SellPrice)
		assert.InDelta(t, 3.0, opp.Spread, 1e-12)
		assert.InDelta(t, 3.0303, opp.SpreadPercentage, 1e-4)
		// (2/101 + 1/101) * 100 exceeds 1 and is capped.
		assert.Equal(t, 1.0, opp.SignalStrength)
		assert.InDelta(t, 3.0/99*100*40+60, opp.CompositeScore, 1e-9)
		assert.GreaterOrEqual(t, opp.RiskScore, 1)
		assert.LessOrEqual(t, opp.RiskScore, 8)
		assert.NotEmpty(t, opp.ID)
	})

	t.Run("spread below minimum", func(t *testing.T) {
		opps := scanner.Scan(random.New(1), matrix("BTC/USDT", 100, 100.02, 100.03, 100.01))
		assert.Empty(t, opps)
	})

	t.Run("flat market", func(t *testing.T) {
		opps := scanner.Scan(random.New(1), matrix("BTC/USDT", 50, 50, 50, 50))
		assert.Empty(t, opps)
	})

	t.Run("ties go to the last exchange", func(t *testing.T) {
		opps := scanner.Scan(random.New(1), matrix("BTC/USDT", 99, 102, 99, 102))
		require.Len(t, opps, 1)
		assert.Equal(t, "Coinbase", opps[0].BuyExchange)
		assert.Equal(t, "Bybit", opps[0].SellExchange)
	})

	t.Run("weak signal below cap", func(t *testing.T) {
		opps := scanner.Scan(random.New(1), matrix("BTC/USDT", 1000, 1000.3, 1000, 1000.6))
		require.Len(t, opps, 1)
		// median is 1000.3; divergences 0.3/1000.3 each side.
		want := (0.3/1000.3 + 0.3/1000.3) * 100
		assert.InDelta(t, want, opps[0].SignalStrength, 1e-12)
		assert.Less(t, opps[0].SignalStrength, 1.0)
	})
}

func TestScanner_EmitsIffSpreadClearsMinimumAndSortsDescending(t *testing.T) {
	pairs := []string{"BTC/USDT", "ETH/USDT", "SOL/USDT", "LINK/USDT"}
	scanner := newTestScanner(pairs...)
	gen := rand.New(rand.NewSource(42))

	for range 200 {
		prices := make(model.PriceMatrix)
		for _, exchange := range exchanges {
			prices[exchange] = make(map[string]float64)
			for _, pair := range pairs {
				prices[exchange][pair] = 100 * (1 + (gen.Float64()-0.5)*0.002)
			}
		}

		opps := scanner.Scan(random.New(gen.Int63()), prices)

		emitted := make(map[string]bool)
		for _, opp := range opps {
			emitted[opp.Pair] = true
		}
		for _, pair := range pairs {
			lo, hi := prices[exchanges[0]][pair], prices[exchanges[0]][pair]
			for _, exchange := range exchanges {
				lo = min(lo, prices[exchange][pair])
				hi = max(hi, prices[exchange][pair])
			}
			assert.Equal(t, (hi-lo)/lo*100 > 0.04, emitted[pair], pair)
		}
		for i := 1; i < len(opps); i++ {
			require.GreaterOrEqual(t, opps[i-1].CompositeScore, opps[i].CompositeScore)
		}
	}
}

func TestScanner_RescanIsStable(t *testing.T) {
	pairs := []string{"BTC/USDT", "ETH/USDT"}
	scanner := newTestScanner(pairs...)
	prices := model.PriceMatrix{
		"Binance":  {"BTC/USDT": 65000, "ETH/USDT": 3500},
		"Kraken":   {"BTC/USDT": 65050, "ETH/USDT": 3490},
		"Coinbase": {"BTC/USDT": 64980, "ETH/USDT": 3510},
		"Bybit":    {"BTC/USDT": 65120, "ETH/USDT": 3520},
	}

	first := scanner.Scan(random.New(1), prices)
	second := scanner.Scan(random.New(2), prices)

	require.Len(t, second, len(first))
	for i := range first {
		assert.Equal(t, first[i].Pair, second[i].Pair)
		assert.Equal(t, first[i].BuyPrice, second[i].BuyPrice)
		assert.Equal(t, first[i].SellPrice, second[i].SellPrice)
		assert.Equal(t, first[i].CompositeScore, second[i].CompositeScore)
		assert.NotEqual(t, first[i].ID, second[i].ID)
	}
}
