package cursor

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"transferScope/internal/model"
)

// FileStore keeps one JSON cursor file per token under a state directory.
// Writes go through a tmp file and rename, so a crash never leaves a
// partial cursor on disk.
type FileStore struct {
	dir string
}

func NewFileStore(dir string) *FileStore {
	return &FileStore{dir: dir}
}

func (s *FileStore) path(token string) string {
	return filepath.Join(s.dir, strings.ToLower(token)+".json")
}

// Load reads the cursor for a token, reporting absence without error.
func (s *FileStore) Load(_ context.Context, token string) (model.CursorState, bool, error) {
	data, err := os.ReadFile(s.path(token))
	if err != nil {
		if os.IsNotExist(err) {
			return model.CursorState{}, false, nil
		}
		return model.CursorState{}, false, fmt.Errorf("read cursor: %w", err)
	}

	var state model.CursorState
	if err := json.Unmarshal(data, &state); err != nil {
		return model.CursorState{}, false, fmt.Errorf("parse cursor: %w", err)
	}
	return state, true, nil
}

// Commit atomically replaces the cursor file. The incoming state carries the
// version it was loaded at; a mismatch with the stored version means another
// writer got there first.
func (s *FileStore) Commit(ctx context.Context, token string, state model.CursorState) error {
	if err := state.Validate(); err != nil {
		return err
	}

	current, found, err := s.Load(ctx, token)
	if err != nil {
		return err
	}
	if found && current.Version != state.Version {
		return fmt.Errorf("token %s: stored version %d, loaded version %d: %w",
			token, current.Version, state.Version, ErrVersionConflict)
	}

	state.Version++
	state.LastUpdated = time.Now().UTC().Format(time.RFC3339Nano)

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}

	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal cursor: %w", err)
	}

	path := s.path(token)
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return fmt.Errorf("write cursor tmp: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("rename cursor: %w", err)
	}
	return nil
}
