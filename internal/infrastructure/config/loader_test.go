package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/doeshing/nixsay/internal/domain"
)

func TestLoadCreatesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	loader := NewFileLoader(path)

	cfg, err := loader.Load(context.Background())
	require.NoError(t, err)
	require.Equal(t, domain.ModeDryRun, cfg.GetDefaultMode())
	require.Equal(t, 300*time.Second, cfg.GetTimeout())
	require.True(t, cfg.IsCacheEnabled())
	require.Equal(t, domain.CacheBackendSQLite, cfg.GetCacheBackend())
	require.True(t, cfg.ShouldConfirmMutations())
	require.Equal(t, []string{"sudo", "-n"}, cfg.GetPrivilegeCommand())
	require.NoError(t, cfg.ValidateConsistency())

	info, err := os.Stat(path)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(domain.SecureFilePermissions), info.Mode().Perm())
}

func TestLoadKeepsDefaultsForMissingKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("preferences:\n  default_mode: explain\ncache:\n  backend: file\n"), 0o600))

	cfg, err := NewFileLoader(path).Load(context.Background())
	require.NoError(t, err)
	require.Equal(t, domain.ModeExplain, cfg.GetDefaultMode())
	require.Equal(t, domain.CacheBackendFile, cfg.GetCacheBackend())
	require.True(t, cfg.IsCacheEnabled(), "cache.enabled must keep its default")
	require.True(t, cfg.IsHistoryEnabled())
	require.Equal(t, 256, cfg.GetMaxMemoryEntries())
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("preferences: [unclosed"), 0o600))

	_, err := NewFileLoader(path).Load(context.Background())
	require.Error(t, err)
}

func TestPathHonoursEnvironment(t *testing.T) {
	path := filepath.Join(t.TempDir(), "custom.yaml")
	t.Setenv(EnvConfigPath, path)
	require.Equal(t, path, NewFileLoader("").Path())
}

func TestSaveAndReset(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	loader := NewFileLoader(path)
	cfg, err := loader.Load(context.Background())
	require.NoError(t, err)

	cfg.Preferences.TimeoutSeconds = 42
	require.NoError(t, loader.Save(cfg))
	reloaded, err := loader.Load(context.Background())
	require.NoError(t, err)
	require.Equal(t, 42*time.Second, reloaded.GetTimeout())

	require.NoError(t, loader.Reset())
	reset, err := loader.Load(context.Background())
	require.NoError(t, err)
	require.Equal(t, 300*time.Second, reset.GetTimeout())
}

func TestGetAndSet(t *testing.T) {
	cfg, err := NewFileLoader(filepath.Join(t.TempDir(), "c.yaml")).Defaults()
	require.NoError(t, err)

	got, err := Get(cfg, "cache.backend")
	require.NoError(t, err)
	require.Equal(t, "sqlite", got)

	section, err := Get(cfg, "history")
	require.NoError(t, err)
	require.Contains(t, section, "retention_days: 30")

	updated, err := Set(cfg, "preferences.timeout", "60")
	require.NoError(t, err)
	require.Equal(t, 60*time.Second, updated.GetTimeout())
	require.Equal(t, 300*time.Second, cfg.GetTimeout(), "Set must not modify its input")

	updated, err = Set(updated, "cache.enabled", "false")
	require.NoError(t, err)
	require.False(t, updated.IsCacheEnabled())

	updated, err = Set(updated, "recognizer.min_confidence", "0.7")
	require.NoError(t, err)
	require.InDelta(t, 0.7, updated.GetMinConfidence(), 1e-9)

	_, err = Set(cfg, "preferences.timeout", "soon")
	require.Error(t, err)
	_, err = Set(cfg, "cache", "x")
	require.Error(t, err)
	_, err = Get(cfg, "cache.nope")
	require.Error(t, err)
}
