package transform

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"transferScope/internal/decode"
	"transferScope/internal/model"
	"transferScope/internal/storage"
)

// Stage reads the full bronze store for each token, dedups across
// overlapping ingestion batches, decodes calldata, and rewrites the silver
// month partitions. It shares no mutable state with the ingestion
// controller: bronze is read-only here, silver partitions are exclusively
// owned.
type Stage struct {
	bronze  storage.BronzeReader
	silver  storage.SilverWriter
	decoder *decode.Decoder
	logger  *zap.Logger
}

// NewStage builds a Stage with its dependencies.
func NewStage(bronze storage.BronzeReader, silver storage.SilverWriter, decoder *decode.Decoder, logger *zap.Logger) *Stage {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Stage{
		bronze:  bronze,
		silver:  silver,
		decoder: decoder,
		logger:  logger,
	}
}

// RunAll transforms every configured token. A failing token does not stop
// the others.
func (s *Stage) RunAll(ctx context.Context, tokens []model.TokenConfig) error {
	var errs []error
	for _, token := range tokens {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := s.RunToken(ctx, token); err != nil {
			s.logger.Error("transform failed", zap.String("token", token.Symbol), zap.Error(err))
			errs = append(errs, fmt.Errorf("token %s: %w", token.Symbol, err))
		}
	}
	return errors.Join(errs...)
}

// RunToken decodes one token's raw records and replaces its silver
// partitions wholesale.
func (s *Stage) RunToken(ctx context.Context, token model.TokenConfig) error {
	// Storage-level dedup: overlapping ingestion runs can leave the same
	// record in more than one bronze file.
	seen := make(map[string]struct{})
	byMonth := make(map[string][]model.DecodedTransaction)
	var total, duplicates, unknown int

	err := s.bronze.Scan(token.Symbol, func(record model.RawTransactionRecord) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		total++
		key := record.Key()
		if _, dup := seen[key]; dup {
			duplicates++
			return nil
		}
		seen[key] = struct{}{}

		decoded := s.decoder.Decode(record, token)
		if decoded.Method == model.MethodUnknown {
			unknown++
		}
		byMonth[decoded.Month] = append(byMonth[decoded.Month], decoded)
		return nil
	})
	if err != nil {
		return fmt.Errorf("scan bronze: %w", err)
	}

	if total == 0 {
		s.logger.Info("no raw records", zap.String("token", token.Symbol))
		return nil
	}

	months := make([]string, 0, len(byMonth))
	for month := range byMonth {
		months = append(months, month)
	}
	sort.Strings(months)

	for _, month := range months {
		records := byMonth[month]
		sort.SliceStable(records, func(i, j int) bool {
			if records[i].BlockNumber != records[j].BlockNumber {
				return records[i].BlockNumber < records[j].BlockNumber
			}
			if records[i].Hash != records[j].Hash {
				return records[i].Hash < records[j].Hash
			}
			return records[i].InternalIndex < records[j].InternalIndex
		})
		if err := s.silver.WritePartition(token.Symbol, month, records); err != nil {
			return fmt.Errorf("write partition %s: %w", month, err)
		}
	}

	s.logger.Info("transform complete",
		zap.String("token", token.Symbol),
		zap.Int("total", total),
		zap.Int("duplicates", duplicates),
		zap.Int("unknown", unknown),
		zap.Int("partitions", len(months)),
	)
	return nil
}
