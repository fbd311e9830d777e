package cache

import (
	"fmt"
	"path/filepath"

	"github.com/doeshing/nixsay/internal/domain"
	"github.com/doeshing/nixsay/internal/ports"
)

// OpenTier builds the persistent tier named by backend under dir. The memory backend
// has no persistent tier and returns nil.
func OpenTier(backend, dir string) (ports.CacheTier, error) {
	switch backend {
	case domain.CacheBackendSQLite, "":
		tier, err := OpenSQLiteTier(filepath.Join(dir, "cache.db"))
		if err != nil {
			return nil, err
		}
		return tier, nil
	case domain.CacheBackendFile:
		return NewFileTier(dir), nil
	case domain.CacheBackendMemory:
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown cache backend %q", backend)
	}
}
