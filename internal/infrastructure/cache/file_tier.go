package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/doeshing/nixsay/internal/domain"
	"github.com/doeshing/nixsay/internal/pkg/filesystem"
	"github.com/doeshing/nixsay/internal/ports"
)

// FileTier stores each cache entry as a JSON file under entries/<kk>/<key>.json.
type FileTier struct {
	dir string
}

// NewFileTier returns a tier rooted at dir/entries.
func NewFileTier(dir string) *FileTier {
	return &FileTier{dir: filepath.Join(dir, "entries")}
}

// Name implements ports.CacheTier.
func (c *FileTier) Name() string {
	return domain.CacheBackendFile
}

// Dir exposes the cache directory path.
func (c *FileTier) Dir() string {
	return c.dir
}

// Get implements ports.CacheTier. Files that do not decode are removed and reported as
// misses.
func (c *FileTier) Get(_ context.Context, key string) (domain.CacheEntry, bool, error) {
	if key == "" {
		return domain.CacheEntry{}, false, nil
	}
	path := c.pathFor(key)
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return domain.CacheEntry{}, false, nil
		}
		return domain.CacheEntry{}, false, err
	}
	var entry domain.CacheEntry
	if err := json.Unmarshal(data, &entry); err != nil || entry.Key != key {
		_ = os.Remove(path)
		return domain.CacheEntry{}, false, nil
	}
	return entry, true, nil
}

// Put implements ports.CacheTier with an atomic rename.
func (c *FileTier) Put(_ context.Context, entry domain.CacheEntry) error {
	if entry.Key == "" {
		return nil
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encode cache entry: %w", err)
	}
	return filesystem.WriteFileAtomic(c.pathFor(entry.Key), data, domain.SecureFilePermissions)
}

// Delete implements ports.CacheTier.
func (c *FileTier) Delete(_ context.Context, keys ...string) error {
	for _, key := range keys {
		if err := os.Remove(c.pathFor(key)); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
	}
	return nil
}

// List implements ports.CacheTier (best-effort).
func (c *FileTier) List(_ context.Context) ([]domain.CacheEntry, error) {
	var entries []domain.CacheEntry
	err := filepath.WalkDir(c.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return filepath.SkipDir
			}
			return err
		}
		if d.IsDir() || !strings.HasSuffix(d.Name(), ".json") {
			return nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return nil
		}
		var entry domain.CacheEntry
		if err := json.Unmarshal(data, &entry); err == nil && entry.Key != "" {
			entries = append(entries, entry)
		}
		return nil
	})
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}
	return entries, nil
}

// Clear implements ports.CacheTier.
func (c *FileTier) Clear(context.Context) error {
	return os.RemoveAll(c.dir)
}

// Close implements ports.CacheTier.
func (c *FileTier) Close() error {
	return nil
}

func (c *FileTier) pathFor(key string) string {
	name := strings.ReplaceAll(key, ":", "_")
	shard := key
	if i := strings.LastIndexByte(key, ':'); i >= 0 && i+1 < len(key) {
		shard = key[i+1:]
	}
	if len(shard) > 2 {
		shard = shard[:2]
	}
	return filepath.Join(c.dir, shard, name+".json")
}

var _ ports.CacheTier = (*FileTier)(nil)
