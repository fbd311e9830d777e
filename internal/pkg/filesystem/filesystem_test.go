package filesystem

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStateDirHonorsEnv(t *testing.T) {
	dir := t.TempDir()
	t.Setenv(StateDirEnv, dir)

	require.Equal(t, filepath.Clean(dir), StateDir())
	require.Equal(t, filepath.Join(dir, "cache", "cache.db"), StatePath("cache", "cache.db"))
}

func TestExpandPath(t *testing.T) {
	home := UserHomeDir()
	require.Equal(t, "", ExpandPath(""))
	require.Equal(t, home, ExpandPath("~"))
	require.Equal(t, filepath.Join(home, ".nixsay", "x.yaml"), ExpandPath("~/.nixsay/x.yaml"))
	require.Equal(t, "/etc/nixos", ExpandPath("/etc/nixos/"))
}

func TestWriteFileAtomicReplacesContent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "entry.json")

	require.NoError(t, WriteFileAtomic(path, []byte("first"), 0o600))
	require.NoError(t, WriteFileAtomic(path, []byte("second"), 0o600))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "second", string(data))

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	require.Len(t, entries, 1, "temp files must not be left behind")
}
