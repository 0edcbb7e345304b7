// Command server starts the talent ranker HTTP API.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/fairyhunter13/ai-talent-ranker/internal/adapter/ai/gemini"
	httpserver "github.com/fairyhunter13/ai-talent-ranker/internal/adapter/httpserver"
	"github.com/fairyhunter13/ai-talent-ranker/internal/adapter/observability"
	"github.com/fairyhunter13/ai-talent-ranker/internal/adapter/queue/redpanda"
	"github.com/fairyhunter13/ai-talent-ranker/internal/adapter/repo/postgres"
	"github.com/fairyhunter13/ai-talent-ranker/internal/adapter/repo/snapshot"
	qdrantcli "github.com/fairyhunter13/ai-talent-ranker/internal/adapter/vector/qdrant"
	"github.com/fairyhunter13/ai-talent-ranker/internal/app"
	"github.com/fairyhunter13/ai-talent-ranker/internal/config"
	"github.com/fairyhunter13/ai-talent-ranker/internal/domain"
	"github.com/fairyhunter13/ai-talent-ranker/internal/service/ratelimiter"
	"github.com/fairyhunter13/ai-talent-ranker/internal/usecase"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", slog.Any("error", err))
		os.Exit(1)
	}

	logger := observability.SetupLogger(cfg)
	slog.SetDefault(logger)

	// Register all Prometheus metrics once per process so that /metrics
	// exposes HTTP, LLM and pipeline instrumentation.
	observability.InitMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		slog.Error("server exited", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config) error {
	shutdownTracer, err := observability.SetupTracing(ctx, cfg)
	if err != nil {
		slog.Error("failed to setup tracing", slog.Any("error", err))
	}
	defer func() {
		if shutdownTracer != nil {
			_ = shutdownTracer(context.Background())
		}
	}()

	pool, err := postgres.NewPool(ctx, cfg.DBURL)
	if err != nil {
		return err
	}
	defer pool.Close()

	resumes := snapshot.New(postgres.NewResumeRepo(pool))
	if err := resumes.Load(ctx); err != nil {
		// The snapshot reloads lazily on the first search.
		slog.Warn("resume snapshot load failed", slog.Any("error", err))
	} else {
		slog.Info("resume snapshot loaded", slog.Int("candidates", resumes.Len()))
	}
	historyRepo := postgres.NewHistoryRepo(pool)

	if cfg.HistoryRetentionDays > 0 {
		cleanupSvc := postgres.NewCleanupService(pool, cfg.HistoryRetentionDays)
		go cleanupSvc.RunPeriodic(ctx, cfg.CleanupInterval)
		slog.Info("cleanup service started", slog.Int("retention_days", cfg.HistoryRetentionDays), slog.Duration("interval", cfg.CleanupInterval))
	}

	models, err := gemini.NewModels(ctx, cfg.GeminiAPIKey)
	if err != nil {
		return err
	}
	caller := app.NewCaller(cfg, models)
	embedder, err := app.NewEmbedder(cfg, models)
	if err != nil {
		return err
	}

	qcli := qdrantcli.New(cfg.QdrantURL, cfg.QdrantAPIKey)
	index := qdrantcli.NewIndex(qcli, cfg.QdrantCollection, cfg.EmbeddingDim)
	app.EnsureIndex(ctx, index)

	var recorder domain.HistoryRecorder = usecase.DirectRecorder{Store: historyRepo}
	if cfg.KafkaEnabled() {
		pub, err := redpanda.NewHistoryPublisher(ctx, cfg.KafkaBrokers, 3)
		if err != nil {
			return err
		}
		defer pub.Close()
		recorder = pub
		slog.Info("search history is written behind through kafka")
	}

	pipeline := usecase.NewPipeline(caller, embedder, index, resumes, cfg)
	searchSvc := usecase.NewSearchService(pipeline, recorder, cfg.HistoryWriteTimeout)
	historySvc := usecase.NewHistoryService(historyRepo, cfg.HistoryLimit)

	var (
		rdb     *redis.Client
		limiter ratelimiter.Limiter
	)
	if cfg.RedisURL != "" {
		opt, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("op=server.redis: %w", err)
		}
		rdb = redis.NewClient(opt)
		defer func() { _ = rdb.Close() }()
		if l := ratelimiter.NewRedisLuaLimiter(rdb, "search", ratelimiter.NewBucketConfigFromPerMinute(cfg.SearchRatePerMin)); l != nil {
			limiter = l
		}
	}

	var checks []httpserver.Check
	if rdb != nil {
		checks = app.BuildReadinessChecks(pool, qcli, rdb)
	} else {
		checks = app.BuildReadinessChecks(pool, qcli, nil)
	}
	srv := httpserver.NewServer(cfg, searchSvc, historySvc, checks...)
	handler := app.BuildRouter(cfg, srv, limiter)

	srvHTTP := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           handler,
		ReadTimeout:       cfg.HTTPReadTimeout,
		WriteTimeout:      cfg.HTTPWriteTimeout,
		IdleTimeout:       cfg.HTTPIdleTimeout,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("http server starting", slog.Int("port", cfg.Port))
		errCh <- srvHTTP.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		slog.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("op=server.listen: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ServerShutdownTimeout)
	defer cancel()
	return srvHTTP.Shutdown(shutdownCtx)
}
