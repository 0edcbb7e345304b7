package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"google.golang.org/genai"

	"github.com/fairyhunter13/ai-talent-ranker/internal/adapter/ai/gemini"
	"github.com/fairyhunter13/ai-talent-ranker/internal/adapter/observability"
	"github.com/fairyhunter13/ai-talent-ranker/internal/adapter/repo/postgres"
	qdrantcli "github.com/fairyhunter13/ai-talent-ranker/internal/adapter/vector/qdrant"
	"github.com/fairyhunter13/ai-talent-ranker/internal/app"
	"github.com/fairyhunter13/ai-talent-ranker/internal/config"
	"github.com/fairyhunter13/ai-talent-ranker/internal/indexsync"
)

var (
	syncBatchSize  int
	syncFixture    string
	syncCollection string
	syncDryRun     bool
)

func init() {
	rootCmd.Flags().IntVarP(&syncBatchSize, "batch-size", "b", 0, "Texts per embedding request (default INDEX_BATCH_SIZE)")
	rootCmd.Flags().StringVarP(&syncFixture, "file", "f", "", "Read candidates from a YAML fixture instead of the database")
	rootCmd.Flags().StringVarP(&syncCollection, "collection", "c", "", "Target collection (default QDRANT_COLLECTION)")
	rootCmd.Flags().BoolVar(&syncDryRun, "dry-run", false, "Load and count candidates without embedding or writing")
}

func runSync(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	slog.SetDefault(observability.SetupLogger(cfg))

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	src, closeSrc, err := openSource(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeSrc()

	var models *genai.Models
	if !syncDryRun && cfg.GeminiAPIKey != "" {
		if models, err = gemini.NewModels(ctx, cfg.GeminiAPIKey); err != nil {
			return err
		}
	}
	syncer := indexsync.Syncer{
		Source:    src,
		BatchSize: firstPositive(syncBatchSize, cfg.IndexBatchSize),
		DryRun:    syncDryRun,
	}
	if !syncDryRun {
		if syncer.Embedder, err = app.NewEmbedder(cfg, models); err != nil {
			return err
		}
		collection := cfg.QdrantCollection
		if syncCollection != "" {
			collection = syncCollection
		}
		syncer.Index = qdrantcli.NewIndex(qdrantcli.New(cfg.QdrantURL, cfg.QdrantAPIKey), collection, cfg.EmbeddingDim)
	}

	rep, err := syncer.Run(ctx)
	if err != nil {
		return fmt.Errorf("index sync failed after %d candidates: %w", rep.Indexed, err)
	}
	out, err := json.MarshalIndent(rep, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), string(out))
	return err
}

func openSource(ctx context.Context, cfg config.Config) (indexsync.Source, func(), error) {
	if syncFixture != "" {
		return indexsync.FileSource{Path: syncFixture}, func() {}, nil
	}
	pool, err := postgres.NewPool(ctx, cfg.DBURL)
	if err != nil {
		return nil, nil, err
	}
	return postgres.NewResumeRepo(pool), pool.Close, nil
}

func firstPositive(vs ...int) int {
	for _, v := range vs {
		if v > 0 {
			return v
		}
	}
	return indexsync.DefaultBatchSize
}
