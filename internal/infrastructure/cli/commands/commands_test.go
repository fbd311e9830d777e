package commands

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"

	"github.com/doeshing/nixsay/assets"
	"github.com/doeshing/nixsay/internal/app"
	"github.com/doeshing/nixsay/internal/application/doctor"
	"github.com/doeshing/nixsay/internal/domain"
	"github.com/doeshing/nixsay/internal/infrastructure/cache"
	configinfra "github.com/doeshing/nixsay/internal/infrastructure/config"
	"github.com/doeshing/nixsay/internal/infrastructure/history"
	"github.com/doeshing/nixsay/internal/infrastructure/knowledge"
)

func testContainer(t *testing.T) *app.Container {
	t.Helper()
	kb, err := knowledge.Load(assets.DefaultKnowledgeYAML)
	require.NoError(t, err)
	loader := configinfra.NewFileLoader(filepath.Join(t.TempDir(), "config.yaml"))
	return &app.Container{
		ConfigProvider: loader,
		ConfigLoader:   loader,
		KnowledgeBase:  kb,
		Cache:          cache.New(cache.Options{}),
		HistoryStore:   history.NewFileStore(filepath.Join(t.TempDir(), "history.jsonl")),
	}
}

func execute(t *testing.T, cmd *cobra.Command, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{}, args...))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func seedCache(t *testing.T, c *cache.Cache) {
	t.Helper()
	entries := []domain.CacheEntry{
		{Key: "aaaaaaaaaaaaaaaaaaaa", Kind: "search_package", Value: []byte("firefox-130"), TTL: time.Hour,
			Dependencies: []string{domain.TagPackageSearch}, Entities: map[string]string{"package": "firefox"}},
		{Key: "bbbbbbbbbbbbbbbbbbbb", Kind: "list_installed", Value: []byte("git\nvim"), TTL: time.Hour,
			Dependencies: []string{domain.TagInstalledPackages}},
	}
	for _, entry := range entries {
		entry.CreatedAt = time.Now()
		require.True(t, c.Put(context.Background(), entry, c.Token()))
	}
}

func TestCacheListAndStats(t *testing.T) {
	container := testContainer(t)

	out, err := execute(t, NewCacheCommand(container), "list")
	require.NoError(t, err)
	require.Contains(t, out, MsgNoCachedResults)

	seedCache(t, container.Cache)
	out, err = execute(t, NewCacheCommand(container), "list")
	require.NoError(t, err)
	require.Contains(t, out, "aaaaaaaaaaaa | search_package | package=firefox")
	require.NotContains(t, out, "aaaaaaaaaaaaa ")

	out, err = execute(t, NewCacheCommand(container), "stats")
	require.NoError(t, err)
	require.Contains(t, out, "Persistent tier: memory")
	require.Contains(t, out, "2 in memory")
}

func TestCacheInvalidate(t *testing.T) {
	container := testContainer(t)
	seedCache(t, container.Cache)

	_, err := execute(t, NewCacheCommand(container), "invalidate")
	require.EqualError(t, err, ErrInvalidatePatternEmpty)

	out, err := execute(t, NewCacheCommand(container), "invalidate", "--tag", domain.TagInstalledPackages)
	require.NoError(t, err)
	require.Contains(t, out, "Invalidated 1 entry")
	require.Len(t, container.Cache.Entries(context.Background()), 1)

	_, err = execute(t, NewCacheCommand(container), "invalidate", "--all")
	require.NoError(t, err)
	require.Empty(t, container.Cache.Entries(context.Background()))
}

func TestHistoryCommands(t *testing.T) {
	container := testContainer(t)
	ctx := context.Background()

	out, err := execute(t, NewHistoryCommand(container), "list")
	require.NoError(t, err)
	require.Contains(t, out, MsgNoHistoryRecorded)

	now := time.Now()
	require.NoError(t, container.HistoryStore.Record(ctx, domain.HistoryRecord{
		ID: "1", Timestamp: now.Add(-90 * 24 * time.Hour), Text: "install firefox", Kind: "install_package",
		Mode: domain.ModeDryRun, Success: true,
	}))
	require.NoError(t, container.HistoryStore.Record(ctx, domain.HistoryRecord{
		ID: "2", Timestamp: now, Text: "remove vim", Kind: "remove_package",
		Mode: domain.ModeExecute, Error: domain.ErrConflict,
	}))

	out, err = execute(t, NewHistoryCommand(container), "list")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	require.Contains(t, lines[0], "remove_package | CONFLICT | remove vim")

	out, err = execute(t, NewHistoryCommand(container), "search", "firefox")
	require.NoError(t, err)
	require.Contains(t, out, "install firefox")
	require.NotContains(t, out, "remove vim")

	_, err = execute(t, NewHistoryCommand(container), "retain", "--days", "0")
	require.EqualError(t, err, ErrInvalidRetainDays)

	out, err = execute(t, NewHistoryCommand(container), "retain", "--days", "30")
	require.NoError(t, err)
	require.Contains(t, out, "Removed 1 entry")
}

func TestHistoryDisabled(t *testing.T) {
	container := testContainer(t)
	container.HistoryStore = nil

	_, err := execute(t, NewHistoryCommand(container), "list")
	require.EqualError(t, err, ErrHistoryStoreUnavailable)
}

func TestConfigGetSetValidate(t *testing.T) {
	container := testContainer(t)

	out, err := execute(t, NewConfigCommand(container), "get", "cache.backend")
	require.NoError(t, err)
	require.Equal(t, "sqlite\n", out)

	_, err = execute(t, NewConfigCommand(container), "set", "cache.backend", "file")
	require.NoError(t, err)
	out, err = execute(t, NewConfigCommand(container), "get", "cache.backend")
	require.NoError(t, err)
	require.Equal(t, "file\n", out)

	_, err = execute(t, NewConfigCommand(container), "set", "cache.backend", "redis")
	require.ErrorContains(t, err, "refusing to save")

	out, err = execute(t, NewConfigCommand(container), "validate")
	require.NoError(t, err)
	require.Contains(t, out, MsgConfigurationValid)

	out, err = execute(t, NewConfigCommand(container), "reset")
	require.NoError(t, err)
	require.Contains(t, out, "Configuration reset")
	out, err = execute(t, NewConfigCommand(container), "get", "cache.backend")
	require.NoError(t, err)
	require.Equal(t, "sqlite\n", out)
}

func TestKindsListsCatalogue(t *testing.T) {
	container := testContainer(t)

	out, err := execute(t, NewKindsCommand(container))
	require.NoError(t, err)
	require.Contains(t, out, "install_package")
	require.Contains(t, out, "mutating")
	require.Contains(t, out, "builtin")
}

func TestVersion(t *testing.T) {
	container := testContainer(t)
	out, err := execute(t, NewVersionCommand(container))
	require.NoError(t, err)
	require.Contains(t, out, "nixsay version ")
	require.Contains(t, out, "Operations: ")
	require.NotContains(t, out, "Backends:")
}

func TestDoctorReportsWarnings(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("StoreDir: /nix/store\nWantMassQuery: 1\n"))
	}))
	defer server.Close()

	container := testContainer(t)
	container.DoctorService = &doctor.Service{
		ConfigProvider: container.ConfigProvider,
		KnowledgeBase:  container.KnowledgeBase,
		Cache:          container.Cache,
		HTTPClient:     resty.New(),
		SubstituterURL: server.URL,
		LookPath:       func(name string) (string, error) { return "/run/current-system/sw/bin/" + name, nil },
	}

	out, err := execute(t, NewDoctorCommand(container))
	require.NoError(t, err)
	require.Contains(t, out, "[OK   ] Binary cache: reachable")
	require.Contains(t, out, "[WARN ] Guardrail: security service not initialized")
	require.Contains(t, out, MsgDoctorWarnings)
}

func TestDoctorWithoutService(t *testing.T) {
	_, err := execute(t, NewDoctorCommand(testContainer(t)))
	require.EqualError(t, err, ErrDoctorServiceUnavailable)
}
