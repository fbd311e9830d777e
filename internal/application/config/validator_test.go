package config

import (
	"path/filepath"
	"testing"

	"github.com/doeshing/nixsay/internal/domain"
)

func validConfig() domain.Config {
	return domain.Config{
		ConfigFormatVersion: "1",
		Preferences:         domain.Preferences{DefaultMode: "DRY_RUN", TimeoutSeconds: 300},
		Recognizer:          domain.RecognizerSettings{MinConfidence: 0.5},
		Cache:               domain.CacheSettings{Enabled: true, Backend: "sqlite"},
		Execution:           domain.ExecutionSettings{Native: "auto", PrivilegeCommand: "sudo -n", MaxAttempts: 3},
		History:             domain.HistorySettings{Enabled: true, Backend: "sqlite", RetentionDays: 30},
		Logging:             domain.LoggingSettings{Level: "info"},
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*domain.Config)
		wantErr bool
	}{
		{name: "valid", mutate: func(*domain.Config) {}},
		{name: "bad mode", mutate: func(c *domain.Config) { c.Preferences.DefaultMode = "YOLO" }, wantErr: true},
		{name: "negative timeout", mutate: func(c *domain.Config) { c.Preferences.TimeoutSeconds = -1 }, wantErr: true},
		{name: "confidence out of range", mutate: func(c *domain.Config) { c.Recognizer.MinConfidence = 1.5 }, wantErr: true},
		{name: "missing knowledge file", mutate: func(c *domain.Config) {
			c.Recognizer.KnowledgeFile = filepath.Join(t.TempDir(), "missing.yaml")
		}, wantErr: true},
		{name: "unknown cache backend", mutate: func(c *domain.Config) { c.Cache.Backend = "redis" }, wantErr: true},
		{name: "unknown history backend", mutate: func(c *domain.Config) { c.History.Backend = "redis" }, wantErr: true},
		{name: "negative backoff", mutate: func(c *domain.Config) { c.Execution.RetryBackoffMS = -5 }, wantErr: true},
		{name: "bad log level", mutate: func(c *domain.Config) { c.Logging.Level = "loud" }, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := Validate(cfg)
			if tt.wantErr && err == nil {
				t.Fatalf("expected error")
			}
			if !tt.wantErr && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}
