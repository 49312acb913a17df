package model

import "fmt"

// CursorState tracks per-token ingestion progress. MinIngestedBlock moves
// down toward the contract creation block, MaxIngestedBlock moves up with
// the chain tip. Version guards against concurrent writers.
type CursorState struct {
	MinIngestedBlock uint64 `json:"min_ingested_block"`
	MaxIngestedBlock uint64 `json:"max_ingested_block"`
	Bootstrapped     bool   `json:"bootstrapped"`
	BackfillComplete bool   `json:"backfill_complete"`
	LastUpdated      string `json:"last_updated"`
	Version          uint64 `json:"version"`
}

// Validate checks the cursor invariants.
func (c CursorState) Validate() error {
	if c.Bootstrapped && c.MinIngestedBlock > c.MaxIngestedBlock {
		return fmt.Errorf("cursor min %d above max %d", c.MinIngestedBlock, c.MaxIngestedBlock)
	}
	return nil
}
