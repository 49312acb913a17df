package config

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/viper"

	"transferScope/internal/model"
)

// LoadTokens reads the token table from a YAML file. The table is immutable
// for the run's duration.
func LoadTokens(path string) ([]model.TokenConfig, error) {
	if path == "" {
		return nil, fmt.Errorf("tokens file path is required")
	}

	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read tokens file: %w", err)
	}

	var tokens []model.TokenConfig
	if err := v.UnmarshalKey("tokens", &tokens); err != nil {
		return nil, fmt.Errorf("parse tokens file: %w", err)
	}
	if len(tokens) == 0 {
		return nil, fmt.Errorf("tokens file %s defines no tokens", path)
	}

	seen := make(map[string]struct{}, len(tokens))
	for i := range tokens {
		token := &tokens[i]
		token.Symbol = strings.TrimSpace(token.Symbol)
		if token.Symbol == "" {
			return nil, fmt.Errorf("token %d: symbol is required", i)
		}
		if _, dup := seen[token.Symbol]; dup {
			return nil, fmt.Errorf("duplicate token symbol %s", token.Symbol)
		}
		seen[token.Symbol] = struct{}{}

		if !common.IsHexAddress(token.Address) {
			return nil, fmt.Errorf("token %s: invalid address %q", token.Symbol, token.Address)
		}
		token.Address = strings.ToLower(common.HexToAddress(token.Address).Hex())
	}

	return tokens, nil
}
