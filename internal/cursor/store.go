package cursor

import (
	"context"
	"errors"

	"transferScope/internal/model"
)

// ErrVersionConflict signals a lost-update race: another writer committed
// the token's cursor since it was loaded. The cycle must fail, not retry
// blindly over stale state.
var ErrVersionConflict = errors.New("cursor version conflict")

// Store persists per-token cursor state. Commit is atomic and only valid
// after the raw data for the committed range is durably written. Commits for
// the same token are serialized through the version check; different tokens
// are independent.
type Store interface {
	Load(ctx context.Context, token string) (model.CursorState, bool, error)
	Commit(ctx context.Context, token string, state model.CursorState) error
}
