package enrich

import (
	"context"
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"arbsim/internal/config"
	"arbsim/internal/metrics"
	"arbsim/internal/model"
)

// Sink receives enrichment results. Unknown trade ids must be ignored.
type Sink interface {
	AttachAnalysis(id, reasoning string, layers *model.AnalysisLayers) bool
	AddLesson(lesson model.Lesson)
}

// Dispatcher runs the enricher for each live trade in the background and
// hands results to the sink. It implements execution.Notifier.
type Dispatcher struct {
	ctx             context.Context
	logger          *slog.Logger
	enricher        Enricher
	sink            Sink
	limiter         *rate.Limiter
	timeout         time.Duration
	lessonThreshold float64
}

// NewDispatcher creates a dispatcher. Work still in flight when ctx is done
// is abandoned.
func NewDispatcher(ctx context.Context, logger *slog.Logger, enricher Enricher, sink Sink, cfg config.EnrichmentConfig, lessonThreshold float64) *Dispatcher {
	limit := rate.Inf
	if cfg.RatePerSec > 0 {
		limit = rate.Limit(cfg.RatePerSec)
	}
	return &Dispatcher{
		ctx:             ctx,
		logger:          logger,
		enricher:        enricher,
		sink:            sink,
		limiter:         rate.NewLimiter(limit, max(cfg.Burst, 1)),
		timeout:         cfg.Timeout(),
		lessonThreshold: lessonThreshold,
	}
}

// TradeSettled starts enrichment for trade and returns immediately.
func (d *Dispatcher) TradeSettled(trade model.TradeRecord) {
	if trade.IsBacktest {
		return
	}
	go d.enrich(trade)
}

func (d *Dispatcher) enrich(trade model.TradeRecord) {
	ctx := d.ctx
	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	if err := d.limiter.Wait(ctx); err != nil {
		d.logger.Debug("Dispatcher: enrichment skipped", "tradeID", trade.ID, "error", err)
		metrics.RecordEnrichmentFailure("throttled")
		return
	}

	analysis, err := d.enricher.Analyze(ctx, trade)
	switch {
	case err != nil:
		d.logger.Warn("Dispatcher: analysis failed", "tradeID", trade.ID, "error", err)
		metrics.RecordEnrichmentFailure("analysis")
	case analysis == nil || analysis.Summary == "":
		metrics.RecordEnrichmentFailure("analysis")
	default:
		layers := analysis.Layers
		d.sink.AttachAnalysis(trade.ID, analysis.Summary, &layers)
	}

	if math.Abs(trade.Profit) <= d.lessonThreshold {
		return
	}
	lesson, err := d.enricher.Lesson(ctx, trade)
	if err != nil || lesson == nil {
		d.logger.Warn("Dispatcher: lesson failed", "tradeID", trade.ID, "error", err)
		metrics.RecordEnrichmentFailure("lesson")
		return
	}
	lesson.ID = uuid.NewString()
	lesson.Retention = math.Max(0, math.Min(100, lesson.Retention))
	lesson.Timestamp = time.Now()
	d.sink.AddLesson(*lesson)
}
