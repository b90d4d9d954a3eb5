package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"arbsim/internal/model"
)

// Config stores all configuration for the application.
// The values are read by viper from a config file or environment variables.
type Config struct {
	Market     MarketConfig
	Arbitrage  ArbitrageConfig
	Execution  ExecutionConfig
	Session    SessionConfig
	Enrichment EnrichmentConfig
	Server     ServerConfig
	Log        LogConfig
}

// MarketConfig defines the simulated venues and their starting prices.
type MarketConfig struct {
	Exchanges      []string    `mapstructure:"exchanges"`
	Pairs          []string    `mapstructure:"pairs"`
	InitialPrices  []PriceSeed `mapstructure:"initial_prices"`
	VolatilityPct  float64     `mapstructure:"volatility_pct"`
	InitialCapital float64     `mapstructure:"initial_capital"`
}

// PriceSeed is the starting price of one pair on one exchange.
type PriceSeed struct {
	Exchange string  `mapstructure:"exchange"`
	Pair     string  `mapstructure:"pair"`
	Price    float64 `mapstructure:"price"`
}

// ArbitrageConfig defines how spreads are filtered and scored.
type ArbitrageConfig struct {
	MinSpreadPct   float64 `mapstructure:"min_spread_pct"`
	SpreadWeight   float64 `mapstructure:"spread_weight"`
	SignalWeight   float64 `mapstructure:"signal_weight"`
	ScoreThreshold float64 `mapstructure:"score_threshold"`
}

// ExecutionConfig defines position sizing and fill simulation.
type ExecutionConfig struct {
	FeeRate            float64 `mapstructure:"fee_rate"`
	AllocationFraction float64 `mapstructure:"allocation_fraction"`
	AllocationCap      float64 `mapstructure:"allocation_cap"`
	TakeProfitSlippage float64 `mapstructure:"take_profit_slippage"`
	StopLossFactor     float64 `mapstructure:"stop_loss_factor"`
	NoiseFactor        float64 `mapstructure:"noise_factor"`
}

// SessionConfig defines tick scheduling and backtest scenarios.
type SessionConfig struct {
	PassiveIntervalMS    int     `mapstructure:"passive_interval_ms"`
	AutonomousIntervalMS int     `mapstructure:"autonomous_interval_ms"`
	BacktestTicks        int     `mapstructure:"backtest_ticks"`
	BacktestPacingMS     int     `mapstructure:"backtest_pacing_ms"`
	BullDrift            float64 `mapstructure:"bull_drift"`
	BearDrift            float64 `mapstructure:"bear_drift"`
	VolatileMultiplier   float64 `mapstructure:"volatile_multiplier"`
	MaxLessons           int     `mapstructure:"max_lessons"`
	LessonThreshold      float64 `mapstructure:"lesson_threshold"`
	Seed                 int64   `mapstructure:"seed"`
}

// EnrichmentConfig defines the trade rationale collaborator.
type EnrichmentConfig struct {
	Mode       string  `mapstructure:"mode"`
	URL        string  `mapstructure:"url"`
	TimeoutMS  int     `mapstructure:"timeout_ms"`
	RatePerSec float64 `mapstructure:"rate_per_sec"`
	Burst      int     `mapstructure:"burst"`
}

// ServerConfig defines the HTTP command and state surface.
type ServerConfig struct {
	Addr           string   `mapstructure:"addr"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// LogConfig defines the slog handler.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// PassiveInterval is the live price tick period.
func (s SessionConfig) PassiveInterval() time.Duration {
	return time.Duration(s.PassiveIntervalMS) * time.Millisecond
}

// AutonomousInterval is the period of autonomous execution checks.
func (s SessionConfig) AutonomousInterval() time.Duration {
	return time.Duration(s.AutonomousIntervalMS) * time.Millisecond
}

// BacktestPacing is the delay between backtest ticks. Zero runs unpaced.
func (s SessionConfig) BacktestPacing() time.Duration {
	return time.Duration(s.BacktestPacingMS) * time.Millisecond
}

// Timeout bounds one enrichment request.
func (e EnrichmentConfig) Timeout() time.Duration {
	return time.Duration(e.TimeoutMS) * time.Millisecond
}

// InitialMarket builds the starting market state from the price seeds.
func (m MarketConfig) InitialMarket() model.MarketState {
	prices := make(model.PriceMatrix, len(m.Exchanges))
	for _, exchange := range m.Exchanges {
		prices[exchange] = make(map[string]float64, len(m.Pairs))
	}
	for _, seed := range m.InitialPrices {
		if pairs, ok := prices[seed.Exchange]; ok {
			pairs[seed.Pair] = seed.Price
		}
	}
	return model.MarketState{
		Prices:     prices,
		Volatility: m.VolatilityPct,
		Trend:      model.TrendNeutral,
	}
}

// Validate checks that every exchange has a positive starting price for every pair.
func (c Config) Validate() error {
	if len(c.Market.Exchanges) == 0 {
		return errors.New("market.exchanges must not be empty")
	}
	if len(c.Market.Pairs) == 0 {
		return errors.New("market.pairs must not be empty")
	}
	if c.Market.VolatilityPct < 0 {
		return fmt.Errorf("market.volatility_pct must be non-negative, got %v", c.Market.VolatilityPct)
	}
	if c.Market.InitialCapital <= 0 {
		return fmt.Errorf("market.initial_capital must be positive, got %v", c.Market.InitialCapital)
	}
	prices := c.Market.InitialMarket().Prices
	for _, exchange := range c.Market.Exchanges {
		for _, pair := range c.Market.Pairs {
			if p := prices[exchange][pair]; p <= 0 {
				return fmt.Errorf("market.initial_prices: %s %s must be positive, got %v", exchange, pair, p)
			}
		}
	}
	switch c.Enrichment.Mode {
	case "off", "template":
	case "webhook":
		if c.Enrichment.URL == "" {
			return errors.New("enrichment.url is required in webhook mode")
		}
	default:
		return fmt.Errorf("unknown enrichment.mode: %s", c.Enrichment.Mode)
	}
	return nil
}

// LoadConfig reads configuration from file or environment variables.
// A missing config file is not an error; defaults apply.
func LoadConfig(path string) (config Config, err error) {
	v := newViper()
	v.AddConfigPath(path)
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	if err = v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return config, fmt.Errorf("read config: %w", err)
		}
	}

	if err = v.Unmarshal(&config); err != nil {
		return config, fmt.Errorf("unmarshal config: %w", err)
	}
	err = config.Validate()
	return
}

// Default returns the configuration with no file or environment applied.
func Default() Config {
	var config Config
	// Defaults are plain values; decoding them cannot fail.
	_ = newViper().Unmarshal(&config)
	return config
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)
	return v
}

var (
	defaultExchanges = []string{"Binance", "Kraken", "Coinbase", "Bybit"}
	defaultPairs     = []string{"BTC/USDT", "ETH/USDT", "SOL/USDT", "LINK/USDT"}
	defaultPrices    = map[string][]float64{
		"Binance":  {65000, 3500, 145, 18},
		"Kraken":   {65050, 3490, 146, 17.5},
		"Coinbase": {64980, 3510, 144, 18.2},
		"Bybit":    {65120, 3520, 147, 17.8},
	}
)

func setDefaults(v *viper.Viper) {
	seeds := make([]map[string]any, 0, len(defaultExchanges)*len(defaultPairs))
	for _, exchange := range defaultExchanges {
		for i, pair := range defaultPairs {
			seeds = append(seeds, map[string]any{
				"exchange": exchange,
				"pair":     pair,
				"price":    defaultPrices[exchange][i],
			})
		}
	}

	v.SetDefault("market.exchanges", defaultExchanges)
	v.SetDefault("market.pairs", defaultPairs)
	v.SetDefault("market.initial_prices", seeds)
	v.SetDefault("market.volatility_pct", 0.12)
	v.SetDefault("market.initial_capital", 10000.0)

	v.SetDefault("arbitrage.min_spread_pct", 0.04)
	v.SetDefault("arbitrage.spread_weight", 40.0)
	v.SetDefault("arbitrage.signal_weight", 60.0)
	v.SetDefault("arbitrage.score_threshold", 20.0)

	v.SetDefault("execution.fee_rate", 0.0006)
	v.SetDefault("execution.allocation_fraction", 0.2)
	v.SetDefault("execution.allocation_cap", 5000.0)
	v.SetDefault("execution.take_profit_slippage", 0.00005)
	v.SetDefault("execution.stop_loss_factor", 0.003)
	v.SetDefault("execution.noise_factor", 0.03)

	v.SetDefault("session.passive_interval_ms", 400)
	v.SetDefault("session.autonomous_interval_ms", 250)
	v.SetDefault("session.backtest_ticks", 100)
	v.SetDefault("session.backtest_pacing_ms", 45)
	v.SetDefault("session.bull_drift", 0.0006)
	v.SetDefault("session.bear_drift", -0.0006)
	v.SetDefault("session.volatile_multiplier", 2.5)
	v.SetDefault("session.max_lessons", 15)
	v.SetDefault("session.lesson_threshold", 25.0)
	v.SetDefault("session.seed", 0)

	v.SetDefault("enrichment.mode", "template")
	v.SetDefault("enrichment.url", "")
	v.SetDefault("enrichment.timeout_ms", 5000)
	v.SetDefault("enrichment.rate_per_sec", 2.0)
	v.SetDefault("enrichment.burst", 4)

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.allowed_origins", []string{"http://localhost:5173"})

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
}
