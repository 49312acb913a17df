package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// IngestConfig holds configuration for the ingest command, merged from
// flags, environment variables, and an optional config file.
type IngestConfig struct {
	ExplorerURL   string
	APIKey        string
	Tokens        string
	StateDir      string
	PGDSN         string
	BronzeDir     string
	PageSize      int
	BatchesPerRun int
	MaxRetries    int
	RetryBackoff  time.Duration
	HTTPTimeout   time.Duration
	RateLimit     time.Duration
	SkipSelectors []string
	LogLevel      string
}

// LoadIngest merges config file, environment variables, and flags.
func LoadIngest(cfgFile string, flags *pflag.FlagSet) (IngestConfig, error) {
	v, err := newViper(cfgFile, flags, map[string]interface{}{
		"tokens":          "./config/tokens.yaml",
		"state-dir":       "./data/state",
		"bronze-dir":      "./data/bronze",
		"page-size":       10000,
		"batches-per-run": 10,
		"max-retries":     5,
		"retry-backoff":   500 * time.Millisecond,
		"http-timeout":    10 * time.Second,
		"rate-limit":      210 * time.Millisecond,
		"skip-selector":   []string{"0x095ea7b3"},
		"log-level":       "info",
	})
	if err != nil {
		return IngestConfig{}, err
	}

	cfg := IngestConfig{
		ExplorerURL:   v.GetString("explorer-url"),
		APIKey:        v.GetString("api-key"),
		Tokens:        v.GetString("tokens"),
		StateDir:      v.GetString("state-dir"),
		PGDSN:         v.GetString("pg-dsn"),
		BronzeDir:     v.GetString("bronze-dir"),
		PageSize:      v.GetInt("page-size"),
		BatchesPerRun: v.GetInt("batches-per-run"),
		MaxRetries:    v.GetInt("max-retries"),
		RetryBackoff:  v.GetDuration("retry-backoff"),
		HTTPTimeout:   v.GetDuration("http-timeout"),
		RateLimit:     v.GetDuration("rate-limit"),
		SkipSelectors: getStringSlice(v, "skip-selector"),
		LogLevel:      v.GetString("log-level"),
	}

	return cfg, nil
}

func newViper(cfgFile string, flags *pflag.FlagSet, defaults map[string]interface{}) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix("TRANSFERSCOPE")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return nil, fmt.Errorf("bind flags: %w", err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	return v, nil
}

func getStringSlice(v *viper.Viper, key string) []string {
	if !v.IsSet(key) {
		return nil
	}

	val := v.Get(key)
	switch typed := val.(type) {
	case []string:
		return cleanStrings(typed)
	case string:
		return splitAndClean(typed)
	case []interface{}:
		items := make([]string, 0, len(typed))
		for _, item := range typed {
			items = append(items, fmt.Sprintf("%v", item))
		}
		return cleanStrings(items)
	default:
		return nil
	}
}

func splitAndClean(input string) []string {
	if input == "" {
		return nil
	}
	parts := strings.Split(input, ",")
	return cleanStrings(parts)
}

func cleanStrings(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		out = append(out, item)
	}
	return out
}
