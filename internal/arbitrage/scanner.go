package arbitrage

import (
	"log/slog"
	"math"
	"sort"
	"time"

	"arbsim/internal/config"
	"arbsim/internal/model"
	"arbsim/internal/random"
)

// Scanner finds cross-exchange spreads in a price snapshot and ranks them.
type Scanner struct {
	logger    *slog.Logger
	cfg       config.ArbitrageConfig
	exchanges []string
	pairs     []string
}

// NewScanner creates a scanner over the given exchanges and pairs.
// Exchange order decides ties between equal prices.
func NewScanner(logger *slog.Logger, cfg config.ArbitrageConfig, exchanges, pairs []string) *Scanner {
	return &Scanner{
		logger:    logger,
		cfg:       cfg,
		exchanges: append([]string(nil), exchanges...),
		pairs:     append([]string(nil), pairs...),
	}
}

// Scan evaluates one candidate per pair and returns the emitted opportunities
// sorted by descending composite score. Apart from ID and RiskScore the result
// depends only on prices.
func (s *Scanner) Scan(src random.Source, prices model.PriceMatrix) []model.Opportunity {
	now := time.Now()
	opps := make([]model.Opportunity, 0, len(s.pairs))

	for _, pair := range s.pairs {
		opp, ok := s.evaluate(prices, pair)
		if !ok {
			continue
		}
		opp.ID = random.ID(src)
		opp.RiskScore = src.Intn(8) + 1
		opp.Timestamp = now
		opps = append(opps, opp)
	}

	sort.SliceStable(opps, func(i, j int) bool {
		return opps[i].CompositeScore > opps[j].CompositeScore
	})

	if len(opps) > 0 {
		s.logger.Debug("Scanner: opportunities found",
			"count", len(opps),
			"bestPair", opps[0].Pair,
			"bestScore", opps[0].CompositeScore,
		)
	}
	return opps
}

// evaluate computes the spread candidate for one pair. It reports false when
// the spread does not clear the minimum.
func (s *Scanner) evaluate(prices model.PriceMatrix, pair string) (model.Opportunity, bool) {
	quotes := make([]float64, 0, len(s.exchanges))
	minPrice, maxPrice := math.Inf(1), math.Inf(-1)
	var buyExchange, sellExchange string

	for _, exchange := range s.exchanges {
		price := prices[exchange][pair]
		quotes = append(quotes, price)
		// Ties go to the last exchange in iteration order.
		if price <= minPrice {
			minPrice, buyExchange = price, exchange
		}
		if price >= maxPrice {
			maxPrice, sellExchange = price, exchange
		}
	}
	if len(quotes) == 0 {
		return model.Opportunity{}, false
	}

	median := Median(quotes)
	spread := maxPrice - minPrice
	spreadPct := spread / minPrice * 100
	if spreadPct <= s.cfg.MinSpreadPct {
		return model.Opportunity{}, false
	}

	buyDivergence := math.Abs(minPrice-median) / median
	sellDivergence := math.Abs(maxPrice-median) / median
	signal := math.Min(1.0, (buyDivergence+sellDivergence)*100)

	return model.Opportunity{
		Pair:             pair,
		BuyExchange:      buyExchange,
		SellExchange:     sellExchange,
		BuyPrice:         minPrice,
		SellPrice:        maxPrice,
		Spread:           spread,
		SpreadPercentage: spreadPct,
		SignalStrength:   signal,
		CompositeScore:   spreadPct*s.cfg.SpreadWeight + signal*s.cfg.SignalWeight,
	}, true
}

// Median returns the element at index len/2 of the ascending sort. For an even
// count that is the upper-middle value, not the mean of the two middle values.
func Median(values []float64) float64 {
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	return sorted[len(sorted)/2]
}
