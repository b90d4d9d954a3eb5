package feed

import (
	"maps"
	"slices"

	"arbsim/internal/model"
	"arbsim/internal/random"
)

// Advance returns the next market state. Every price is multiplied by
// 1 + U(-1.25v, 1.25v) + drift, where v is volatilityOverride when non-nil
// and state.Volatility/100 otherwise. The input state is not modified.
// Draws are taken in sorted exchange then pair order, so a seeded source
// gives the same result on every run.
//
// Prices are not clamped. At the configured volatilities no single factor
// can reach zero, so non-positive prices are accepted as unreachable.
func Advance(src random.Source, state model.MarketState, drift float64, volatilityOverride *float64) model.MarketState {
	v := state.Volatility / 100
	if volatilityOverride != nil {
		v = *volatilityOverride
	}

	next := state.Clone()
	for _, exchange := range slices.Sorted(maps.Keys(next.Prices)) {
		pairs := next.Prices[exchange]
		for _, pair := range slices.Sorted(maps.Keys(pairs)) {
			pairs[pair] *= 1 + random.Uniform(src, -1.25*v, 1.25*v) + drift
		}
	}
	return next
}
