// Package logger adapts go.uber.org/zap to the ports.Logger interface.
package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/doeshing/nixsay/internal/ports"
)

// Options configures the zap logger.
type Options struct {
	// Level is one of debug, info, warn, error.
	Level string
	// File receives JSON logs when set.
	File string
	// Verbose adds human-readable debug output on stderr.
	Verbose bool
}

// ZapLogger implements ports.Logger on top of a zap.Logger.
type ZapLogger struct {
	base *zap.Logger
}

// New builds a logger from opts. With no file and no verbose flag the result discards
// everything.
func New(opts Options) (*ZapLogger, error) {
	var outputs []string
	if opts.File != "" {
		if err := os.MkdirAll(filepath.Dir(opts.File), 0o755); err != nil {
			return nil, fmt.Errorf("create log dir: %w", err)
		}
		outputs = append(outputs, opts.File)
	}
	if opts.Verbose {
		outputs = append(outputs, "stderr")
	}
	if len(outputs) == 0 {
		return NewNop(), nil
	}

	level, err := zapcore.ParseLevel(opts.Level)
	if err != nil || opts.Level == "" {
		level = zapcore.InfoLevel
	}
	if opts.Verbose {
		level = zapcore.DebugLevel
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(level)
	cfg.OutputPaths = outputs
	cfg.ErrorOutputPaths = []string{"stderr"}
	cfg.DisableStacktrace = true
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	if opts.Verbose {
		cfg.Encoding = "console"
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	}

	base, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	return &ZapLogger{base: base.Named("nixsay")}, nil
}

// NewNop returns a logger that drops every entry.
func NewNop() *ZapLogger {
	return &ZapLogger{base: zap.NewNop()}
}

// NewWithCore wraps an existing zap core, mainly for tests.
func NewWithCore(core zapcore.Core) *ZapLogger {
	return &ZapLogger{base: zap.New(core)}
}

func (l *ZapLogger) Debug(msg string, fields map[string]interface{}) {
	l.base.Debug(msg, toZapFields(fields)...)
}

func (l *ZapLogger) Info(msg string, fields map[string]interface{}) {
	l.base.Info(msg, toZapFields(fields)...)
}

func (l *ZapLogger) Warn(msg string, fields map[string]interface{}) {
	l.base.Warn(msg, toZapFields(fields)...)
}

func (l *ZapLogger) Error(msg string, err error, fields map[string]interface{}) {
	zf := toZapFields(fields)
	if err != nil {
		zf = append(zf, zap.Error(err))
	}
	l.base.Error(msg, zf...)
}

// Sync flushes buffered entries.
func (l *ZapLogger) Sync() error {
	return l.base.Sync()
}

func toZapFields(fields map[string]interface{}) []zap.Field {
	if len(fields) == 0 {
		return nil
	}
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]zap.Field, 0, len(keys))
	for _, k := range keys {
		out = append(out, zap.Any(k, fields[k]))
	}
	return out
}

var _ ports.Logger = (*ZapLogger)(nil)
