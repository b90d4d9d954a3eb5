package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"arbsim/internal/api"
	"arbsim/internal/arbitrage"
	"arbsim/internal/config"
	"arbsim/internal/enrich"
	"arbsim/internal/execution"
	"arbsim/internal/session"
)

func main() {
	cfg, err := config.LoadConfig(".")
	if err != nil {
		log.Fatalf("cannot load config: %v", err)
	}

	logger := newLogger(cfg.Log)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, logger, cfg); err != nil {
		logger.Error("arbsim: exited with error", "error", err)
		os.Exit(1)
	}
	logger.Info("arbsim: stopped")
}

func run(ctx context.Context, logger *slog.Logger, cfg config.Config) error {
	scanner := arbitrage.NewScanner(logger, cfg.Arbitrage, cfg.Market.Exchanges, cfg.Market.Pairs)
	engine := execution.NewEngine(logger, cfg.Execution, nil)
	controller := session.NewController(logger, cfg, scanner, engine)

	if enricher := newEnricher(cfg.Enrichment); enricher != nil {
		dispatcher := enrich.NewDispatcher(ctx, logger, enricher, controller, cfg.Enrichment, cfg.Session.LessonThreshold)
		engine.SetNotifier(dispatcher)
		logger.Info("arbsim: enrichment enabled", "mode", cfg.Enrichment.Mode)
	}

	server := api.NewServer(logger, cfg.Server, controller)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return controller.Run(ctx)
	})
	g.Go(server.Start)
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	logger.Info("arbsim: started",
		"exchanges", cfg.Market.Exchanges,
		"pairs", cfg.Market.Pairs,
		"capital", cfg.Market.InitialCapital,
	)
	return g.Wait()
}

func newEnricher(cfg config.EnrichmentConfig) enrich.Enricher {
	switch cfg.Mode {
	case "template":
		return enrich.Template{}
	case "webhook":
		return enrich.NewWebhook(cfg.URL, &http.Client{Timeout: cfg.Timeout()})
	default:
		return nil
	}
}

func newLogger(cfg config.LogConfig) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}

	if strings.EqualFold(cfg.Format, "text") {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}
