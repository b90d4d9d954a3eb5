package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, []string{"Binance", "Kraken", "Coinbase", "Bybit"}, cfg.Market.Exchanges)
	assert.Equal(t, 10000.0, cfg.Market.InitialCapital)
	assert.Equal(t, 400*time.Millisecond, cfg.Session.PassiveInterval())
	assert.Equal(t, 250*time.Millisecond, cfg.Session.AutonomousInterval())
	assert.Equal(t, 45*time.Millisecond, cfg.Session.BacktestPacing())

	market := cfg.Market.InitialMarket()
	assert.Equal(t, 17.5, market.Prices["Kraken"]["LINK/USDT"])
	assert.Equal(t, 0.12, market.Volatility)
}

func TestLoadConfig(t *testing.T) {
	t.Run("missing file falls back to defaults", func(t *testing.T) {
		cfg, err := LoadConfig(t.TempDir())
		require.NoError(t, err)
		assert.Equal(t, ":8080", cfg.Server.Addr)
	})

	t.Run("file and environment", func(t *testing.T) {
		dir := t.TempDir()
		yaml := `
market:
  exchanges: [Alpha, Beta]
  pairs: [BTC/USDT]
  initial_prices:
    - {exchange: Alpha, pair: BTC/USDT, price: 100}
    - {exchange: Beta, pair: BTC/USDT, price: 101}
arbitrage:
  score_threshold: 35
`
		require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644))
		t.Setenv("SESSION_BACKTEST_TICKS", "12")

		cfg, err := LoadConfig(dir)
		require.NoError(t, err)
		assert.Equal(t, []string{"Alpha", "Beta"}, cfg.Market.Exchanges)
		assert.Equal(t, 35.0, cfg.Arbitrage.ScoreThreshold)
		assert.Equal(t, 40.0, cfg.Arbitrage.SpreadWeight)
		assert.Equal(t, 12, cfg.Session.BacktestTicks)
		assert.Equal(t, 101.0, cfg.Market.InitialMarket().Prices["Beta"]["BTC/USDT"])
	})

	t.Run("missing price is rejected", func(t *testing.T) {
		dir := t.TempDir()
		yaml := `
market:
  exchanges: [Alpha, Beta]
  pairs: [BTC/USDT]
  initial_prices:
    - {exchange: Alpha, pair: BTC/USDT, price: 100}
`
		require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644))

		_, err := LoadConfig(dir)
		assert.ErrorContains(t, err, "Beta BTC/USDT")
	})
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
		msg    string
	}{
		{"no exchanges", func(c *Config) { c.Market.Exchanges = nil }, "market.exchanges"},
		{"no pairs", func(c *Config) { c.Market.Pairs = nil }, "market.pairs"},
		{"negative volatility", func(c *Config) { c.Market.VolatilityPct = -1 }, "volatility_pct"},
		{"no capital", func(c *Config) { c.Market.InitialCapital = 0 }, "initial_capital"},
		{"webhook without url", func(c *Config) { c.Enrichment.Mode = "webhook" }, "enrichment.url"},
		{"unknown enrichment", func(c *Config) { c.Enrichment.Mode = "oracle" }, "enrichment.mode"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(&cfg)
			assert.ErrorContains(t, cfg.Validate(), tc.msg)
		})
	}
}
