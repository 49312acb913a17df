package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"transferScope/internal/config"
	"transferScope/internal/decode"
	"transferScope/internal/storage"
	"transferScope/internal/transform"
)

func runTransform(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadTransform(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	tokens, err := config.LoadTokens(cfg.Tokens)
	if err != nil {
		return err
	}

	registry, err := config.LoadRules(cfg.Rules)
	if err != nil {
		return err
	}
	for _, token := range tokens {
		if token.RuleSet != "" && !registry.HasSet(token.RuleSet) {
			logger.Warn("unknown rule set, records will decode as unknown",
				zap.String("token", token.Symbol),
				zap.String("rule_set", token.RuleSet),
			)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	stage := transform.NewStage(
		storage.NewBronzeStore(cfg.BronzeDir),
		storage.NewSilverStore(cfg.SilverDir),
		decode.NewDecoder(registry),
		logger,
	)

	logger.Info("transform start",
		zap.Int("tokens", len(tokens)),
		zap.String("bronze_dir", cfg.BronzeDir),
		zap.String("silver_dir", cfg.SilverDir),
	)

	return stage.RunAll(ctx, tokens)
}
