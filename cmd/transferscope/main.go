package main

import (
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	root := &cobra.Command{
		Use:          "transferscope",
		Short:        "Token transfer ingestion and decoding pipeline",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")

	ingestCmd := &cobra.Command{
		Use:   "ingest",
		Short: "Run the dual-cursor ingestion for all configured tokens",
		RunE:  runIngest,
	}

	ingestCmd.Flags().String("explorer-url", "", "block explorer API base URL")
	ingestCmd.Flags().String("api-key", "", "block explorer API key")
	ingestCmd.Flags().String("tokens", "./config/tokens.yaml", "token table YAML path")
	ingestCmd.Flags().String("state-dir", "./data/state", "cursor state directory")
	ingestCmd.Flags().String("pg-dsn", "", "Postgres DSN for cursor state (overrides state-dir)")
	ingestCmd.Flags().String("bronze-dir", "./data/bronze", "bronze store root")
	ingestCmd.Flags().Int("page-size", 10000, "explorer page cap")
	ingestCmd.Flags().Int("batches-per-run", 10, "max pages per cycle per run")
	ingestCmd.Flags().Int("max-retries", 5, "maximum retry attempts")
	ingestCmd.Flags().Duration("retry-backoff", 500*time.Millisecond, "initial retry backoff")
	ingestCmd.Flags().Duration("http-timeout", 10*time.Second, "explorer request timeout")
	ingestCmd.Flags().Duration("rate-limit", 210*time.Millisecond, "pause between explorer calls")
	ingestCmd.Flags().StringSlice("skip-selector", []string{"0x095ea7b3"}, "method selectors dropped at ingest (comma-separated)")
	ingestCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(ingestCmd)

	transformCmd := &cobra.Command{
		Use:   "transform",
		Short: "Decode raw records into partitioned silver output",
		RunE:  runTransform,
	}

	transformCmd.Flags().String("tokens", "./config/tokens.yaml", "token table YAML path")
	transformCmd.Flags().String("rules", "./config/rules.yaml", "decode rules YAML path")
	transformCmd.Flags().String("bronze-dir", "./data/bronze", "bronze store root")
	transformCmd.Flags().String("silver-dir", "./data/silver", "silver store root")
	transformCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(transformCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}
