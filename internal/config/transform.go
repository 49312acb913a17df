package config

import (
	"github.com/spf13/pflag"
)

// TransformConfig holds configuration for the transform command.
type TransformConfig struct {
	Tokens    string
	Rules     string
	BronzeDir string
	SilverDir string
	LogLevel  string
}

// LoadTransform merges config file, environment variables, and flags.
func LoadTransform(cfgFile string, flags *pflag.FlagSet) (TransformConfig, error) {
	v, err := newViper(cfgFile, flags, map[string]interface{}{
		"tokens":     "./config/tokens.yaml",
		"rules":      "./config/rules.yaml",
		"bronze-dir": "./data/bronze",
		"silver-dir": "./data/silver",
		"log-level":  "info",
	})
	if err != nil {
		return TransformConfig{}, err
	}

	cfg := TransformConfig{
		Tokens:    v.GetString("tokens"),
		Rules:     v.GetString("rules"),
		BronzeDir: v.GetString("bronze-dir"),
		SilverDir: v.GetString("silver-dir"),
		LogLevel:  v.GetString("log-level"),
	}

	return cfg, nil
}
