// Package history stores one summary record per handled request, in SQLite or as a
// JSON-lines file.
package history

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/doeshing/nixsay/internal/domain"
	"github.com/doeshing/nixsay/internal/pkg/filesystem"
	"github.com/doeshing/nixsay/internal/ports"
)

// FileStore appends history records to a jsonl file.
type FileStore struct {
	path string
	mu   sync.Mutex
}

// NewFileStore creates a store backed by path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Record implements ports.HistoryRepository.
func (f *FileStore) Record(_ context.Context, record domain.HistoryRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := os.MkdirAll(filepath.Dir(f.path), domain.DirectoryPermissions); err != nil {
		return err
	}
	file, err := os.OpenFile(f.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, domain.SecureFilePermissions)
	if err != nil {
		return err
	}
	defer file.Close()
	data, err := json.Marshal(record)
	if err != nil {
		return err
	}
	data = append(data, '\n')
	_, err = file.Write(data)
	return err
}

// Recent implements ports.HistoryRepository, newest first.
func (f *FileStore) Recent(_ context.Context, limit int) ([]domain.HistoryRecord, error) {
	records, err := f.records()
	if err != nil {
		return nil, err
	}
	return truncate(records, limit), nil
}

// LastForSession implements ports.HistoryRepository.
func (f *FileStore) LastForSession(_ context.Context, sessionID string) (domain.HistoryRecord, bool, error) {
	records, err := f.records()
	if err != nil {
		return domain.HistoryRecord{}, false, err
	}
	for _, rec := range records {
		if rec.SessionID == sessionID {
			return rec, true, nil
		}
	}
	return domain.HistoryRecord{}, false, nil
}

// Search implements ports.HistoryRepository.
func (f *FileStore) Search(_ context.Context, term string, limit int) ([]domain.HistoryRecord, error) {
	records, err := f.records()
	if err != nil {
		return nil, err
	}
	term = strings.ToLower(term)
	var matched []domain.HistoryRecord
	for _, rec := range records {
		haystack := strings.ToLower(rec.Text + " " + string(rec.Kind) + " " + strings.Join(rec.CommandsRun, " "))
		if strings.Contains(haystack, term) {
			matched = append(matched, rec)
		}
	}
	return truncate(matched, limit), nil
}

// Clear removes the history file.
func (f *FileStore) Clear(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := os.Remove(f.path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// Retain rewrites the file without entries older than olderThan.
func (f *FileStore) Retain(_ context.Context, olderThan time.Duration) (int, error) {
	if olderThan <= 0 {
		return 0, errors.New("retention must be positive")
	}
	records, err := f.records()
	if err != nil {
		return 0, err
	}
	cutoff := time.Now().Add(-olderThan)
	var kept bytes.Buffer
	removed := 0
	// records is newest first; the file is written oldest first.
	for i := len(records) - 1; i >= 0; i-- {
		if records[i].Timestamp.Before(cutoff) {
			removed++
			continue
		}
		line, err := json.Marshal(records[i])
		if err != nil {
			return 0, err
		}
		kept.Write(append(line, '\n'))
	}
	if removed == 0 {
		return 0, nil
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := filesystem.WriteFileAtomic(f.path, kept.Bytes(), domain.SecureFilePermissions); err != nil {
		return 0, fmt.Errorf("rewrite history: %w", err)
	}
	return removed, nil
}

// Path returns the backing file path.
func (f *FileStore) Path() string {
	return f.path
}

// Close implements ports.HistoryRepository.
func (f *FileStore) Close() error {
	return nil
}

// records loads all entries newest first. Lines that fail to decode are skipped.
func (f *FileStore) records() ([]domain.HistoryRecord, error) {
	f.mu.Lock()
	data, err := os.ReadFile(f.path)
	f.mu.Unlock()
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	lines := bytes.Split(bytes.TrimSpace(data), []byte("\n"))
	var records []domain.HistoryRecord
	for _, line := range lines {
		if len(line) == 0 {
			continue
		}
		var rec domain.HistoryRecord
		if err := json.Unmarshal(line, &rec); err == nil {
			records = append(records, rec)
		}
	}
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].Timestamp.After(records[j].Timestamp)
	})
	return records, nil
}

func truncate(records []domain.HistoryRecord, limit int) []domain.HistoryRecord {
	if limit > 0 && len(records) > limit {
		return records[:limit]
	}
	return records
}

// Open returns the store for backend under dir.
func Open(backend, dir string) (ports.HistoryRepository, error) {
	switch backend {
	case "", domain.CacheBackendSQLite:
		return OpenSQLiteStore(filepath.Join(dir, "history.db"))
	case domain.CacheBackendFile:
		return NewFileStore(filepath.Join(dir, "history.jsonl")), nil
	}
	return nil, fmt.Errorf("unknown history backend %q", backend)
}

var _ ports.HistoryRepository = (*FileStore)(nil)
