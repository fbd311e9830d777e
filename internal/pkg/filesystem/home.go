// Package filesystem holds path and file helpers shared by the infrastructure adapters.
package filesystem

import (
	"os"
	"path/filepath"
	"strings"
)

// StateDirEnv overrides the per-user state directory.
const StateDirEnv = "NIXSAY_HOME"

// UserHomeDir returns the current user's home directory.
// If the home directory cannot be determined, it returns "." as a fallback.
func UserHomeDir() string {
	if home, err := os.UserHomeDir(); err == nil {
		return home
	}
	return "."
}

// StateDir returns ~/.nixsay unless NIXSAY_HOME is set.
func StateDir() string {
	if custom := os.Getenv(StateDirEnv); custom != "" {
		return ExpandPath(custom)
	}
	return filepath.Join(UserHomeDir(), ".nixsay")
}

// StatePath joins elements onto the state directory.
func StatePath(elem ...string) string {
	return filepath.Join(append([]string{StateDir()}, elem...)...)
}

// ExpandPath resolves a leading "~/" and cleans the result. Relative paths stay relative.
func ExpandPath(path string) string {
	if path == "" {
		return ""
	}
	if path == "~" {
		return UserHomeDir()
	}
	if strings.HasPrefix(path, "~/") {
		return filepath.Join(UserHomeDir(), path[2:])
	}
	return filepath.Clean(path)
}
