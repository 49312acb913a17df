package cursor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"transferScope/internal/model"
)

// PostgresStore persists cursors in the ingest_cursors table. The version
// column in the UPDATE predicate makes concurrent commits for one token
// mutually exclusive.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// Load reads the cursor row for a token.
func (s *PostgresStore) Load(ctx context.Context, token string) (model.CursorState, bool, error) {
	if token == "" {
		return model.CursorState{}, false, fmt.Errorf("token is required")
	}

	var state model.CursorState
	var updatedAt time.Time
	row := s.pool.QueryRow(ctx, `
		SELECT min_block, max_block, bootstrapped, backfill_complete, version, updated_at
		FROM ingest_cursors WHERE token=$1
	`, token)
	err := row.Scan(&state.MinIngestedBlock, &state.MaxIngestedBlock,
		&state.Bootstrapped, &state.BackfillComplete, &state.Version, &updatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.CursorState{}, false, nil
		}
		return model.CursorState{}, false, err
	}
	state.LastUpdated = updatedAt.UTC().Format(time.RFC3339Nano)
	return state, true, nil
}

// Commit upserts the cursor row, guarded by the loaded version.
func (s *PostgresStore) Commit(ctx context.Context, token string, state model.CursorState) error {
	if token == "" {
		return fmt.Errorf("token is required")
	}
	if err := state.Validate(); err != nil {
		return err
	}

	tag, err := s.pool.Exec(ctx, `
		INSERT INTO ingest_cursors (
			token, min_block, max_block, bootstrapped, backfill_complete, version, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6 + 1, now())
		ON CONFLICT (token) DO UPDATE SET
			min_block = EXCLUDED.min_block,
			max_block = EXCLUDED.max_block,
			bootstrapped = EXCLUDED.bootstrapped,
			backfill_complete = EXCLUDED.backfill_complete,
			version = ingest_cursors.version + 1,
			updated_at = now()
		WHERE ingest_cursors.version = $6
	`, token,
		state.MinIngestedBlock,
		state.MaxIngestedBlock,
		state.Bootstrapped,
		state.BackfillComplete,
		state.Version,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("token %s at version %d: %w", token, state.Version, ErrVersionConflict)
	}
	return nil
}
