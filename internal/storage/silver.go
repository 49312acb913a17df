package storage

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"transferScope/internal/model"
)

// SilverStore writes one compacted file per (token, month) partition:
// token=SYM/month=YYYY-MM/data.jsonl. Partitions are replaced wholesale via
// tmp+rename, never appended, so the stage is idempotent.
type SilverStore struct {
	root string
}

func NewSilverStore(root string) *SilverStore {
	return &SilverStore{root: root}
}

// WritePartition replaces the partition file for a token and month.
func (s *SilverStore) WritePartition(token, month string, records []model.DecodedTransaction) error {
	dir := filepath.Join(s.root, "token="+token, "month="+month)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create silver dir: %w", err)
	}

	path := filepath.Join(dir, "data.jsonl")
	tmpPath := path + ".tmp"

	file, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("open silver tmp: %w", err)
	}

	writer := bufio.NewWriter(file)
	for _, record := range records {
		line, err := json.Marshal(record)
		if err != nil {
			file.Close()
			return fmt.Errorf("marshal decoded record: %w", err)
		}
		if _, err := writer.Write(line); err != nil {
			file.Close()
			return fmt.Errorf("write decoded record: %w", err)
		}
		if err := writer.WriteByte('\n'); err != nil {
			file.Close()
			return fmt.Errorf("write newline: %w", err)
		}
	}
	if err := writer.Flush(); err != nil {
		file.Close()
		return fmt.Errorf("flush silver tmp: %w", err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("close silver tmp: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("replace silver partition: %w", err)
	}
	return nil
}
