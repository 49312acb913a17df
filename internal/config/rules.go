package config

import (
	"fmt"

	"github.com/spf13/viper"

	"transferScope/internal/decode"
)

// LoadRules reads the decode rule sets from a YAML file and indexes them
// into a registry. Rules are read-only data for the run's duration.
func LoadRules(path string) (*decode.Registry, error) {
	if path == "" {
		return nil, fmt.Errorf("rules file path is required")
	}

	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read rules file: %w", err)
	}

	var sets map[string][]decode.Rule
	if err := v.UnmarshalKey("rule-sets", &sets); err != nil {
		return nil, fmt.Errorf("parse rules file: %w", err)
	}

	registry, err := decode.NewRegistry(sets)
	if err != nil {
		return nil, fmt.Errorf("build rule registry: %w", err)
	}
	return registry, nil
}
