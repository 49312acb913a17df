package ingest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"transferScope/internal/cursor"
	"transferScope/internal/explorer"
	"transferScope/internal/model"
	"transferScope/internal/storage"
)

// Bronze batch prefixes by fetch cycle.
const (
	prefixBootstrap   = "init"
	prefixIncremental = "inc"
	prefixBackfill    = "bf"
)

// RunConfig holds runtime settings for the ingestion controller.
type RunConfig struct {
	BatchesPerRun int
	MaxRetries    int
	RetryBackoff  time.Duration
	SkipSelectors []string
}

// BronzeStore is the raw-layer access the controller needs: append batches
// and re-read the boundary block for overlap dedup.
type BronzeStore interface {
	storage.BronzeWriter
	storage.BronzeReader
}

// Runner drives the per-token dual-cursor ingestion state machine:
// bootstrap on first sight, then concurrent incremental and backfill cycles
// merged into one atomic cursor commit.
type Runner struct {
	cfg     RunConfig
	source  explorer.Source
	bronze  BronzeStore
	cursors cursor.Store
	logger  *zap.Logger
	skip    map[string]struct{}
}

// NewRunner builds a Runner with its dependencies.
func NewRunner(cfg RunConfig, source explorer.Source, bronze BronzeStore, cursors cursor.Store, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.BatchesPerRun <= 0 {
		cfg.BatchesPerRun = 10
	}
	skip := make(map[string]struct{}, len(cfg.SkipSelectors))
	for _, selector := range cfg.SkipSelectors {
		skip[normalizeHex(selector)] = struct{}{}
	}
	return &Runner{
		cfg:     cfg,
		source:  source,
		bronze:  bronze,
		cursors: cursors,
		logger:  logger,
		skip:    skip,
	}
}

// RunAll processes every configured token. A failing token does not stop the
// others; failures are joined and surfaced at the end.
func (r *Runner) RunAll(ctx context.Context, tokens []model.TokenConfig) error {
	var errs []error
	for _, token := range tokens {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := r.RunToken(ctx, token); err != nil {
			r.logger.Error("token ingestion failed", zap.String("token", token.Symbol), zap.Error(err))
			errs = append(errs, fmt.Errorf("token %s: %w", token.Symbol, err))
		}
	}
	return errors.Join(errs...)
}

// RunToken executes one full ingestion invocation for a token.
func (r *Runner) RunToken(ctx context.Context, token model.TokenConfig) error {
	if r.source == nil {
		return fmt.Errorf("source is nil")
	}
	if r.bronze == nil {
		return fmt.Errorf("bronze store is nil")
	}
	if r.cursors == nil {
		return fmt.Errorf("cursor store is nil")
	}

	state, found, err := r.cursors.Load(ctx, token.Symbol)
	if err != nil {
		return fmt.Errorf("load cursor: %w", err)
	}

	if !found || !state.Bootstrapped {
		return r.bootstrap(ctx, token, state)
	}
	return r.steady(ctx, token, state)
}

// bootstrap seeds a new token's cursors from its most recent transactions.
func (r *Runner) bootstrap(ctx context.Context, token model.TokenConfig, state model.CursorState) error {
	tip, err := r.chainTipWithRetry(ctx)
	if err != nil {
		return fmt.Errorf("chain tip: %w", err)
	}

	creation, err := r.resolveCreationBlock(ctx, token)
	if err != nil {
		return err
	}

	r.logger.Info("bootstrap start",
		zap.String("token", token.Symbol),
		zap.Uint64("tip", tip),
		zap.Uint64("creation_block", creation),
	)

	page, err := r.fetchPageWithRetry(ctx, token.Address, 0, tip, explorer.SortDesc)
	if err != nil {
		return fmt.Errorf("bootstrap fetch: %w", err)
	}

	next := state
	next.Bootstrapped = true

	if len(page) == 0 {
		// Range confirmed empty: both cursors land on the queried boundary.
		next.MinIngestedBlock = creation
		next.MaxIngestedBlock = tip
		next.BackfillComplete = true
		r.logger.Info("bootstrap empty", zap.String("token", token.Symbol), zap.Uint64("tip", tip))
		return r.commit(ctx, token.Symbol, next)
	}

	if err := r.persistBatch(token, prefixBootstrap, page); err != nil {
		return err
	}

	next.MaxIngestedBlock = maxBlock(page)
	next.MinIngestedBlock = minBlock(page)
	if creation > 0 && next.MinIngestedBlock <= creation {
		next.BackfillComplete = true
	}

	r.logger.Info("bootstrap complete",
		zap.String("token", token.Symbol),
		zap.Int("records", len(page)),
		zap.Uint64("max_block", next.MaxIngestedBlock),
		zap.Uint64("min_block", next.MinIngestedBlock),
		zap.Bool("backfill_complete", next.BackfillComplete),
	)
	return r.commit(ctx, token.Symbol, next)
}

type incrementalResult struct {
	newMax   uint64
	advanced bool
	err      error
}

type backfillResult struct {
	newMin   uint64
	complete bool
	advanced bool
	err      error
}

// steady runs the incremental and backfill cycles concurrently. They read
// disjoint upstream ranges and write disjoint bronze batches; their cursor
// deltas merge into one state committed atomically. A failed cycle
// contributes no delta but does not block the other's commit.
func (r *Runner) steady(ctx context.Context, token model.TokenConfig, state model.CursorState) error {
	tip, err := r.chainTipWithRetry(ctx)
	if err != nil {
		return fmt.Errorf("chain tip: %w", err)
	}

	creation := token.CreationBlock
	if creation == 0 && !state.BackfillComplete {
		creation, err = r.resolveCreationBlock(ctx, token)
		if err != nil {
			return err
		}
	}

	var (
		wg  sync.WaitGroup
		inc incrementalResult
		bf  backfillResult
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		inc = r.runIncremental(ctx, token, state, tip)
	}()
	go func() {
		defer wg.Done()
		bf = r.runBackfill(ctx, token, state, creation)
	}()
	wg.Wait()

	next := state
	changed := false
	if inc.err == nil && inc.advanced {
		next.MaxIngestedBlock = inc.newMax
		changed = true
	}
	if bf.err == nil && (bf.advanced || bf.complete) {
		if bf.newMin < next.MinIngestedBlock {
			next.MinIngestedBlock = bf.newMin
		}
		if bf.complete {
			next.BackfillComplete = true
		}
		changed = true
	}

	if changed {
		if err := r.commit(ctx, token.Symbol, next); err != nil {
			return errors.Join(inc.err, bf.err, err)
		}
	}
	return errors.Join(inc.err, bf.err)
}

// runIncremental extends the high cursor from max_ingested_block toward the
// chain tip, re-fetching the boundary block inclusively.
func (r *Runner) runIncremental(ctx context.Context, token model.TokenConfig, state model.CursorState, tip uint64) incrementalResult {
	start := state.MaxIngestedBlock
	if start > tip {
		return incrementalResult{}
	}

	boundary := state.MaxIngestedBlock
	existing, err := r.boundaryRecords(token.Symbol, boundary)
	if err != nil {
		return incrementalResult{err: err}
	}

	result := incrementalResult{newMax: state.MaxIngestedBlock}
	total := 0

	for i := 0; i < r.cfg.BatchesPerRun; i++ {
		r.logger.Info("incremental fetch",
			zap.String("token", token.Symbol),
			zap.Uint64("from", start),
			zap.Uint64("to", tip),
		)

		page, err := r.fetchPageWithRetry(ctx, token.Address, start, tip, explorer.SortAsc)
		if err != nil {
			result.err = fmt.Errorf("incremental fetch: %w", err)
			return result
		}

		if len(page) == 0 {
			// Range confirmed empty, not an error: advance to the queried tip.
			result.newMax = tip
			result.advanced = true
			break
		}

		merged, err := Merge(boundary, existing, page)
		if err != nil {
			result.err = fmt.Errorf("incremental merge: %w", err)
			return result
		}

		if err := r.persistBatch(token, prefixIncremental, merged); err != nil {
			result.err = err
			return result
		}
		total += len(merged)

		pageMax := maxBlock(page)
		result.newMax = pageMax
		result.advanced = true

		if len(page) < r.source.PageSize() {
			break
		}

		// Overlap: re-fetch the boundary block and rely on dedup. Stuck
		// guard: a full page inside one block steps past it instead; that
		// fetch skips the boundary block, so no overlap seed applies.
		boundary = pageMax
		if start == pageMax {
			start = pageMax + 1
			existing = nil
		} else {
			start = pageMax
			existing = recordsAtBlock(page, pageMax)
		}
		if start > tip {
			break
		}
	}

	if total > 0 {
		r.logger.Info("incremental complete",
			zap.String("token", token.Symbol),
			zap.Int("records", total),
			zap.Uint64("new_max", result.newMax),
		)
	}
	return result
}

// runBackfill extends the low cursor from min_ingested_block down toward the
// contract creation block. A no-op once backfill_complete.
func (r *Runner) runBackfill(ctx context.Context, token model.TokenConfig, state model.CursorState, creation uint64) backfillResult {
	if state.BackfillComplete {
		return backfillResult{}
	}

	floor := state.MinIngestedBlock
	if creation > 0 && floor <= creation {
		return backfillResult{newMin: floor, complete: true}
	}

	boundary := floor
	existing, err := r.boundaryRecords(token.Symbol, boundary)
	if err != nil {
		return backfillResult{err: err}
	}

	result := backfillResult{newMin: floor}
	total := 0

	for i := 0; i < r.cfg.BatchesPerRun; i++ {
		r.logger.Info("backfill fetch",
			zap.String("token", token.Symbol),
			zap.Uint64("from", floor),
			zap.Uint64("target", creation),
		)

		page, err := r.fetchPageWithRetry(ctx, token.Address, creation, floor, explorer.SortDesc)
		if err != nil {
			result.err = fmt.Errorf("backfill fetch: %w", err)
			return result
		}

		if len(page) == 0 {
			if creation == 0 {
				// Unknown creation block: nothing left to fetch, but the
				// floor cannot be confirmed yet.
				break
			}
			// Range confirmed empty down to the queried creation boundary.
			if creation < result.newMin {
				result.newMin = creation
			}
			result.complete = true
			result.advanced = true
			break
		}

		merged, err := Merge(boundary, existing, page)
		if err != nil {
			result.err = fmt.Errorf("backfill merge: %w", err)
			return result
		}

		if err := r.persistBatch(token, prefixBackfill, merged); err != nil {
			result.err = err
			return result
		}
		total += len(merged)

		pageMin := minBlock(page)
		if pageMin < result.newMin {
			result.newMin = pageMin
		}
		result.advanced = true

		if len(page) < r.source.PageSize() {
			// Partial page: the whole remaining history arrived, so the
			// range down to the creation block is confirmed empty.
			if creation > 0 && creation < result.newMin {
				result.newMin = creation
			}
			result.complete = true
			break
		}

		next := pageMin
		existing = recordsAtBlock(page, pageMin)
		if floor == pageMin {
			// Stuck guard: the entire page sat inside one block; the next
			// fetch skips it, so no overlap seed applies.
			next = pageMin - 1
			existing = nil
		}
		if creation > 0 && next <= creation {
			if creation < result.newMin {
				result.newMin = creation
			}
			result.complete = true
			break
		}
		floor = next
		boundary = pageMin
	}

	if total > 0 || result.complete {
		r.logger.Info("backfill progress",
			zap.String("token", token.Symbol),
			zap.Int("records", total),
			zap.Uint64("new_min", result.newMin),
			zap.Bool("complete", result.complete),
		)
	}
	return result
}

// persistBatch trims and writes one fetch batch to the bronze store.
// Ordering is fetch, persist raw, then commit cursor; a crash in between
// re-fetches an overlapping range on retry and dedup absorbs it.
func (r *Runner) persistBatch(token model.TokenConfig, prefix string, records []model.RawTransactionRecord) error {
	trimmed := r.trim(token.Symbol, records)
	if len(trimmed) == 0 {
		return nil
	}
	if err := r.bronze.WriteBatch(token.Symbol, prefix, trimmed); err != nil {
		return fmt.Errorf("persist %s batch: %w", prefix, err)
	}
	return nil
}

// trim drops failed transactions and records whose selector is on the skip
// list. A pure filter; it never fails a cycle.
func (r *Runner) trim(token string, records []model.RawTransactionRecord) []model.RawTransactionRecord {
	kept := make([]model.RawTransactionRecord, 0, len(records))
	droppedErrors := 0
	droppedSkipped := 0
	for _, record := range records {
		if record.IsError == "1" {
			droppedErrors++
			continue
		}
		if _, skip := r.skip[normalizeHex(record.MethodID)]; skip {
			droppedSkipped++
			continue
		}
		kept = append(kept, record)
	}
	if droppedErrors > 0 || droppedSkipped > 0 {
		r.logger.Info("trimmed batch",
			zap.String("token", token),
			zap.Int("failed_txs", droppedErrors),
			zap.Int("skipped_selectors", droppedSkipped),
		)
	}
	return kept
}

// boundaryRecords re-reads the already-persisted records of the boundary
// block so the overlap re-fetch never duplicates them in the raw store.
func (r *Runner) boundaryRecords(token string, block uint64) ([]model.RawTransactionRecord, error) {
	var out []model.RawTransactionRecord
	err := r.bronze.Scan(token, func(record model.RawTransactionRecord) error {
		if record.BlockNumber == block {
			out = append(out, record)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("read boundary block %d: %w", block, err)
	}
	return out, nil
}

func (r *Runner) commit(ctx context.Context, token string, state model.CursorState) error {
	if err := r.cursors.Commit(ctx, token, state); err != nil {
		return fmt.Errorf("commit cursor: %w", err)
	}
	return nil
}

func (r *Runner) resolveCreationBlock(ctx context.Context, token model.TokenConfig) (uint64, error) {
	if token.CreationBlock > 0 {
		return token.CreationBlock, nil
	}
	var creation uint64
	err := withRetry(ctx, r.cfg.MaxRetries, r.cfg.RetryBackoff, func(ctx context.Context) error {
		var err error
		creation, err = r.source.ContractCreationBlock(ctx, token.Address)
		if err != nil {
			r.logger.Warn("creation block lookup failed", zap.String("token", token.Symbol), zap.Error(err))
		}
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("creation block: %w", err)
	}
	if creation == 0 {
		r.logger.Warn("creation block unresolved", zap.String("token", token.Symbol))
	}
	return creation, nil
}

func (r *Runner) fetchPageWithRetry(ctx context.Context, address string, startBlock, endBlock uint64, dir explorer.SortDir) ([]model.RawTransactionRecord, error) {
	var page []model.RawTransactionRecord
	err := withRetry(ctx, r.cfg.MaxRetries, r.cfg.RetryBackoff, func(ctx context.Context) error {
		var err error
		page, err = r.source.FetchPage(ctx, address, startBlock, endBlock, dir)
		if err != nil {
			r.logger.Warn("fetch page failed",
				zap.Error(err),
				zap.Uint64("from", startBlock),
				zap.Uint64("to", endBlock),
				zap.String("dir", string(dir)),
			)
		}
		return err
	})
	return page, err
}

func (r *Runner) chainTipWithRetry(ctx context.Context) (uint64, error) {
	var tip uint64
	err := withRetry(ctx, r.cfg.MaxRetries, r.cfg.RetryBackoff, func(ctx context.Context) error {
		var err error
		tip, err = r.source.ChainTip(ctx)
		if err != nil {
			r.logger.Warn("chain tip fetch failed", zap.Error(err))
		}
		return err
	})
	return tip, err
}

func maxBlock(records []model.RawTransactionRecord) uint64 {
	var max uint64
	for _, record := range records {
		if record.BlockNumber > max {
			max = record.BlockNumber
		}
	}
	return max
}

func minBlock(records []model.RawTransactionRecord) uint64 {
	if len(records) == 0 {
		return 0
	}
	min := records[0].BlockNumber
	for _, record := range records[1:] {
		if record.BlockNumber < min {
			min = record.BlockNumber
		}
	}
	return min
}

func recordsAtBlock(records []model.RawTransactionRecord, block uint64) []model.RawTransactionRecord {
	var out []model.RawTransactionRecord
	for _, record := range records {
		if record.BlockNumber == block {
			out = append(out, record)
		}
	}
	return out
}

func normalizeHex(input string) string {
	return strings.ToLower(strings.TrimSpace(input))
}
