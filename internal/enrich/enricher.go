package enrich

import (
	"context"
	"errors"
	"fmt"
	"math"

	"arbsim/internal/model"
)

// ErrNoContent is returned when a collaborator answers with nothing usable.
var ErrNoContent = errors.New("enrichment returned no content")

// Analysis is a rationale for one settled trade.
type Analysis struct {
	Summary string               `json:"summary"`
	Layers  model.AnalysisLayers `json:"layers"`
}

// Enricher produces optional commentary for live trades. Implementations may
// be slow or fail; callers never let that affect settlement.
type Enricher interface {
	Analyze(ctx context.Context, trade model.TradeRecord) (*Analysis, error)
	Lesson(ctx context.Context, trade model.TradeRecord) (*model.Lesson, error)
}

// Template builds commentary locally from the trade's own numbers.
type Template struct{}

// Analyze summarizes the trade and fills all five analysis layers.
func (Template) Analyze(ctx context.Context, trade model.TradeRecord) (*Analysis, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	edge := (trade.TakeProfit - trade.EntryPrice) / trade.EntryPrice * 100
	return &Analysis{
		Summary: fmt.Sprintf("%s %s via %s -> %s, net %+.2f",
			trade.Pair, outcome(trade.Status), trade.EntryExchange, trade.ExitExchange, trade.Profit),
		Layers: model.AnalysisLayers{
			Sensory: fmt.Sprintf("Bought %.6f units on %s at %.4f.",
				trade.Amount, trade.EntryExchange, trade.EntryPrice),
			Pattern: fmt.Sprintf("Exit target on %s was %.4f, an edge of %.4f%%.",
				trade.ExitExchange, trade.TakeProfit, edge),
			Risk: fmt.Sprintf("Corridor between stop %.4f and target %.4f.",
				trade.StopLoss, trade.TakeProfit),
			Strategic: fmt.Sprintf("Allocated %.2f with %.4f in fees.",
				trade.Allocation, trade.Fees),
			Crystallization: fmt.Sprintf("Exited at %.4f (%s).", trade.ExitPrice, trade.Status),
		},
	}, nil
}

// Lesson returns a card for the trade outcome. Retention grows with |profit|.
func (Template) Lesson(ctx context.Context, trade model.TradeRecord) (*model.Lesson, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	lesson := &model.Lesson{
		Topic:     fmt.Sprintf("%s %s", trade.Pair, outcome(trade.Status)),
		Retention: math.Min(100, 50+math.Abs(trade.Profit)),
	}
	switch trade.Status {
	case model.StatusTakeProfit:
		lesson.Content = "The spread held long enough to fill at the target."
		lesson.Reasoning = "Targets just under the observed sell quote absorb small slippage."
	case model.StatusStopLoss:
		lesson.Content = "The exit quote fell through the stop before the spread closed."
		lesson.Reasoning = "Stops tighten as volatility rises, so noisy markets cut more trades."
	default:
		lesson.Content = "The position closed at market between stop and target."
		lesson.Reasoning = "Fees on both legs decide whether a narrow fill is still profitable."
	}
	return lesson, nil
}

func outcome(status model.TradeStatus) string {
	switch status {
	case model.StatusTakeProfit:
		return "take-profit"
	case model.StatusStopLoss:
		return "stop-loss"
	default:
		return "closed at market"
	}
}
