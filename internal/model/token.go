package model

// TokenConfig describes a tracked token contract. Immutable once loaded.
type TokenConfig struct {
	Symbol        string `mapstructure:"symbol" json:"symbol"`
	Address       string `mapstructure:"address" json:"address"`
	CreationBlock uint64 `mapstructure:"creation-block" json:"creation_block"`
	Decimals      uint8  `mapstructure:"decimals" json:"decimals"`
	RuleSet       string `mapstructure:"rule-set" json:"rule_set"`
}
