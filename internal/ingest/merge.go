package ingest

import (
	"errors"
	"fmt"
	"sort"

	"transferScope/internal/model"
)

// ErrRangeGap signals a hole between the previously ingested boundary block
// and the newly fetched range. A gap is a fetch-cycle failure, never a
// silent skip.
var ErrRangeGap = errors.New("gap in merged block range")

// Merge combines overlapping fetched pages into one ascending, deduplicated
// sequence. existing holds the already-persisted records of the boundary
// block; they seed the dedup set and never reappear in the output. The same
// algorithm serves both cursor directions.
//
// Contiguity is checked on the raw fetched range, before dedup, and only when
// the boundary block holds persisted records: the overlap re-fetch must then
// return them, so a page that neither includes nor abuts the boundary block
// means the upstream dropped data. Blocks without transactions inside an
// anchored fetch range are ordinary for low-activity tokens, not a gap.
func Merge(boundaryBlock uint64, existing []model.RawTransactionRecord, pages ...[]model.RawTransactionRecord) ([]model.RawTransactionRecord, error) {
	var rawMin, rawMax uint64
	fetched := false
	for _, page := range pages {
		for _, record := range page {
			if !fetched {
				rawMin, rawMax = record.BlockNumber, record.BlockNumber
				fetched = true
				continue
			}
			if record.BlockNumber < rawMin {
				rawMin = record.BlockNumber
			}
			if record.BlockNumber > rawMax {
				rawMax = record.BlockNumber
			}
		}
	}

	if fetched && len(existing) > 0 {
		if rawMin > boundaryBlock && rawMin-boundaryBlock > 1 {
			return nil, fmt.Errorf("boundary %d, fetched range starts at %d: %w", boundaryBlock, rawMin, ErrRangeGap)
		}
		if rawMax < boundaryBlock && boundaryBlock-rawMax > 1 {
			return nil, fmt.Errorf("boundary %d, fetched range ends at %d: %w", boundaryBlock, rawMax, ErrRangeGap)
		}
	}

	seen := make(map[string]struct{}, len(existing))
	for _, record := range existing {
		seen[record.Key()] = struct{}{}
	}

	var merged []model.RawTransactionRecord
	for _, page := range pages {
		for _, record := range page {
			key := record.Key()
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			merged = append(merged, record)
		}
	}

	if len(merged) == 0 {
		return nil, nil
	}

	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].BlockNumber < merged[j].BlockNumber
	})

	return merged, nil
}
