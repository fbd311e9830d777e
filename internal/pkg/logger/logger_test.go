package logger

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestZapLoggerForwardsFields(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	log := NewWithCore(core)

	log.Info("request handled", map[string]interface{}{"kind": "install_package", "cached": false})
	log.Error("run failed", errors.New("boom"), map[string]interface{}{"attempt": 2})

	entries := logs.All()
	require.Len(t, entries, 2)
	require.Equal(t, "request handled", entries[0].Message)
	require.Equal(t, "install_package", entries[0].ContextMap()["kind"])
	require.Equal(t, zapcore.ErrorLevel, entries[1].Level)
	require.Equal(t, "boom", entries[1].ContextMap()["error"])
}

func TestNewWithoutOutputsIsNop(t *testing.T) {
	log, err := New(Options{})
	require.NoError(t, err)
	log.Warn("ignored", nil)
}

func TestNewWritesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "nixsay.log")
	log, err := New(Options{Level: "debug", File: path})
	require.NoError(t, err)

	log.Debug("probe", map[string]interface{}{"backend": "native"})
	_ = log.Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.True(t, strings.Contains(string(data), `"backend":"native"`), string(data))
}
