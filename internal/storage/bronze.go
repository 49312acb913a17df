package storage

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"transferScope/internal/model"
)

// BronzeStore lays out raw transaction batches as
// token=SYM/month=YYYY-MM/<prefix>_<unixts>_<seq>.jsonl under the root.
// Files are write-once; merge and dedup happen downstream.
type BronzeStore struct {
	root string

	mu  sync.Mutex
	seq int
}

func NewBronzeStore(root string) *BronzeStore {
	return &BronzeStore{root: root}
}

// WriteBatch persists one fetch batch, split across month partitions.
func (s *BronzeStore) WriteBatch(token, prefix string, records []model.RawTransactionRecord) error {
	if len(records) == 0 {
		return nil
	}

	byMonth := make(map[string][]model.RawTransactionRecord)
	for _, record := range records {
		month := model.MonthKey(record.Timestamp)
		byMonth[month] = append(byMonth[month], record)
	}

	months := make([]string, 0, len(byMonth))
	for month := range byMonth {
		months = append(months, month)
	}
	sort.Strings(months)

	runTS := time.Now().UTC().Unix()
	for _, month := range months {
		s.mu.Lock()
		s.seq++
		name := fmt.Sprintf("%s_%d_%d.jsonl", prefix, runTS, s.seq)
		s.mu.Unlock()

		dir := filepath.Join(s.root, "token="+token, "month="+month)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create bronze dir: %w", err)
		}
		if err := writeJSONLFile(filepath.Join(dir, name), byMonth[month]); err != nil {
			return err
		}
	}
	return nil
}

// Scan walks every raw file under the token's prefix and yields each record.
// Decoding is drift tolerant: old files with explorer-native field names or
// missing fields still parse, absent fields default to zero values.
func (s *BronzeStore) Scan(token string, fn func(model.RawTransactionRecord) error) error {
	tokenDir := filepath.Join(s.root, "token="+token)
	if _, err := os.Stat(tokenDir); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("stat bronze dir: %w", err)
	}

	return filepath.WalkDir(tokenDir, func(path string, entry os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".jsonl") {
			return nil
		}
		return scanJSONLFile(path, fn)
	})
}

func scanJSONLFile(path string, fn func(model.RawTransactionRecord) error) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open bronze file: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 10*1024*1024)

	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var record model.RawTransactionRecord
		if err := json.Unmarshal(line, &record); err != nil {
			return fmt.Errorf("parse bronze record in %s: %w", path, err)
		}
		if err := fn(record); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("scan %s: %w", path, err)
	}
	return nil
}

func writeJSONLFile(path string, records []model.RawTransactionRecord) error {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0o644)
	if err != nil {
		return fmt.Errorf("open bronze file: %w", err)
	}

	writer := bufio.NewWriter(file)
	for _, record := range records {
		line, err := json.Marshal(record)
		if err != nil {
			file.Close()
			return fmt.Errorf("marshal record: %w", err)
		}
		if _, err := writer.Write(line); err != nil {
			file.Close()
			return fmt.Errorf("write record: %w", err)
		}
		if err := writer.WriteByte('\n'); err != nil {
			file.Close()
			return fmt.Errorf("write newline: %w", err)
		}
	}
	if err := writer.Flush(); err != nil {
		file.Close()
		return fmt.Errorf("flush bronze file: %w", err)
	}
	return file.Close()
}
