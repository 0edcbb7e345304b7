// Package main provides the worker application entry point.
// The worker drains the search-history topic into Postgres.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/fairyhunter13/ai-talent-ranker/internal/adapter/observability"
	"github.com/fairyhunter13/ai-talent-ranker/internal/adapter/queue/redpanda"
	"github.com/fairyhunter13/ai-talent-ranker/internal/adapter/repo/postgres"
	"github.com/fairyhunter13/ai-talent-ranker/internal/config"
)

const metricsAddr = ":9090"

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", slog.Any("error", err))
		os.Exit(1)
	}

	logger := observability.SetupLogger(cfg)
	slog.SetDefault(logger)

	// The worker exposes its own /metrics endpoint for history write counters.
	observability.InitMetrics()
	metricsSrv := &http.Server{Addr: metricsAddr, Handler: promhttp.Handler(), ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("worker metrics server error", slog.Any("error", err))
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracer, err := observability.SetupTracing(ctx, cfg)
	if err != nil {
		slog.Error("failed to setup tracing", slog.Any("error", err))
	}

	code := 0
	if err := run(ctx, cfg); err != nil {
		slog.Error("worker exited", slog.Any("error", err))
		code = 1
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ServerShutdownTimeout)
	_ = metricsSrv.Shutdown(shutdownCtx)
	if shutdownTracer != nil {
		_ = shutdownTracer(shutdownCtx)
	}
	cancel()
	os.Exit(code)
}

func run(ctx context.Context, cfg config.Config) error {
	if !cfg.KafkaEnabled() {
		return errors.New("op=worker.run: KAFKA_BROKERS is required")
	}
	pool, err := postgres.NewPool(ctx, cfg.DBURL)
	if err != nil {
		return err
	}
	defer pool.Close()

	if cfg.HistoryRetentionDays > 0 {
		go postgres.NewCleanupService(pool, cfg.HistoryRetentionDays).RunPeriodic(ctx, cfg.CleanupInterval)
	}

	consumer, err := redpanda.NewHistoryConsumer(ctx, cfg.KafkaBrokers, cfg.KafkaGroupID, postgres.NewHistoryRepo(pool))
	if err != nil {
		return err
	}
	defer consumer.Close()

	slog.Info("history worker started", slog.Any("brokers", cfg.KafkaBrokers), slog.String("group", cfg.KafkaGroupID))
	return consumer.Run(ctx)
}
