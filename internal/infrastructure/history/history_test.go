package history

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/doeshing/nixsay/internal/domain"
	"github.com/doeshing/nixsay/internal/ports"
)

func stores(t *testing.T) map[string]ports.HistoryRepository {
	t.Helper()
	dir := t.TempDir()
	sqliteStore, err := Open(domain.CacheBackendSQLite, dir)
	require.NoError(t, err)
	fileStore, err := Open(domain.CacheBackendFile, dir)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = sqliteStore.Close()
		_ = fileStore.Close()
	})
	return map[string]ports.HistoryRepository{"sqlite": sqliteStore, "file": fileStore}
}

func record(id, session, text string, at time.Time) domain.HistoryRecord {
	return domain.HistoryRecord{
		ID:          id,
		SessionID:   session,
		Timestamp:   at,
		Text:        text,
		Kind:        "install_package",
		Mode:        domain.ModeExecute,
		Success:     true,
		CommandsRun: []string{"nix-env -iA nixos." + text},
		Explanation: "installed " + text,
		DurationMS:  12,
	}
}

func TestStoresRoundTrip(t *testing.T) {
	ctx := context.Background()
	base := time.Now().Add(-time.Hour).Truncate(time.Millisecond)
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, store.Record(ctx, record("1", "s1", "firefox", base)))
			require.NoError(t, store.Record(ctx, record("2", "s2", "vim", base.Add(time.Minute))))
			require.NoError(t, store.Record(ctx, record("3", "s1", "emacs", base.Add(2*time.Minute))))

			recent, err := store.Recent(ctx, 2)
			require.NoError(t, err)
			require.Len(t, recent, 2)
			require.Equal(t, "3", recent[0].ID)
			require.Equal(t, "2", recent[1].ID)
			require.Equal(t, []string{"nix-env -iA nixos.emacs"}, recent[0].CommandsRun)
			require.True(t, recent[0].Timestamp.Equal(base.Add(2*time.Minute)))

			last, ok, err := store.LastForSession(ctx, "s1")
			require.NoError(t, err)
			require.True(t, ok)
			require.Equal(t, "installed emacs", last.Explanation)

			_, ok, err = store.LastForSession(ctx, "missing")
			require.NoError(t, err)
			require.False(t, ok)

			found, err := store.Search(ctx, "vim", 10)
			require.NoError(t, err)
			require.Len(t, found, 1)
			require.Equal(t, "2", found[0].ID)

			require.NoError(t, store.Clear(ctx))
			recent, err = store.Recent(ctx, 0)
			require.NoError(t, err)
			require.Empty(t, recent)
		})
	}
}

func TestStoresRetain(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, store.Record(ctx, record("old", "s", "firefox", now.Add(-48*time.Hour))))
			require.NoError(t, store.Record(ctx, record("new", "s", "vim", now.Add(-time.Minute))))

			removed, err := store.Retain(ctx, 24*time.Hour)
			require.NoError(t, err)
			require.Equal(t, 1, removed)

			left, err := store.Recent(ctx, 0)
			require.NoError(t, err)
			require.Len(t, left, 1)
			require.Equal(t, "new", left[0].ID)

			_, err = store.Retain(ctx, 0)
			require.Error(t, err)
		})
	}
}

func TestFileStoreSkipsCorruptLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.jsonl")
	store := NewFileStore(path)
	require.NoError(t, store.Record(context.Background(), record("1", "s", "firefox", time.Now())))

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o600)
	require.NoError(t, err)
	_, err = f.WriteString("{not json\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	records, err := store.Recent(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, records, 1)
}

func TestOpenRejectsUnknownBackend(t *testing.T) {
	_, err := Open("redis", t.TempDir())
	require.Error(t, err)
}
