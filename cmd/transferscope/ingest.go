package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"transferScope/internal/config"
	"transferScope/internal/cursor"
	"transferScope/internal/explorer"
	"transferScope/internal/ingest"
	"transferScope/internal/storage"
)

func runIngest(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadIngest(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.ExplorerURL == "" {
		return fmt.Errorf("explorer url is required")
	}

	tokens, err := config.LoadTokens(cfg.Tokens)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	source, err := explorer.NewClient(explorer.Config{
		BaseURL:   cfg.ExplorerURL,
		APIKey:    cfg.APIKey,
		PageSize:  cfg.PageSize,
		Timeout:   cfg.HTTPTimeout,
		RateLimit: cfg.RateLimit,
	}, logger)
	if err != nil {
		return err
	}

	var cursors cursor.Store
	if cfg.PGDSN != "" {
		pgStore, err := cursor.NewPostgresStore(ctx, cfg.PGDSN)
		if err != nil {
			return fmt.Errorf("connect cursor store: %w", err)
		}
		defer pgStore.Close()
		cursors = pgStore
	} else {
		cursors = cursor.NewFileStore(cfg.StateDir)
	}

	bronze := storage.NewBronzeStore(cfg.BronzeDir)

	runner := ingest.NewRunner(ingest.RunConfig{
		BatchesPerRun: cfg.BatchesPerRun,
		MaxRetries:    cfg.MaxRetries,
		RetryBackoff:  cfg.RetryBackoff,
		SkipSelectors: cfg.SkipSelectors,
	}, source, bronze, cursors, logger)

	logger.Info("ingest start",
		zap.String("explorer", cfg.ExplorerURL),
		zap.Int("tokens", len(tokens)),
		zap.Int("page_size", cfg.PageSize),
		zap.Int("batches_per_run", cfg.BatchesPerRun),
		zap.String("bronze_dir", cfg.BronzeDir),
		zap.Bool("pg_cursors", cfg.PGDSN != ""),
	)

	return runner.RunAll(ctx, tokens)
}
