package domain

import (
	"fmt"
	"strings"
	"time"
)

// GetDefaultMode returns the configured mode, DRY_RUN when unset or invalid.
func (c *Config) GetDefaultMode() Mode {
	mode, err := ParseMode(c.Preferences.DefaultMode)
	if err != nil {
		return ModeDryRun
	}
	return mode
}

// GetTimeout returns the per-request execution timeout.
func (c *Config) GetTimeout() time.Duration {
	if c.Preferences.TimeoutSeconds <= 0 {
		return DefaultRequestTimeout
	}
	return time.Duration(c.Preferences.TimeoutSeconds) * time.Second
}

// ShouldConfirmMutations reports whether the CLI asks before running mutating commands.
func (c *Config) ShouldConfirmMutations() bool {
	return c.Preferences.ConfirmMutations
}

// GetMinConfidence returns the recognizer acceptance threshold.
func (c *Config) GetMinConfidence() float64 {
	if c.Recognizer.MinConfidence <= 0 || c.Recognizer.MinConfidence > 1 {
		return DefaultMinConfidence
	}
	return c.Recognizer.MinConfidence
}

// IsCacheEnabled checks whether results are cached at all.
func (c *Config) IsCacheEnabled() bool {
	return c.Cache.Enabled
}

// GetCacheBackend returns the persistent tier backend name.
func (c *Config) GetCacheBackend() string {
	switch strings.ToLower(c.Cache.Backend) {
	case CacheBackendFile:
		return CacheBackendFile
	case CacheBackendMemory, "none":
		return CacheBackendMemory
	default:
		return CacheBackendSQLite
	}
}

// GetMaxMemoryEntries returns the LRU capacity.
func (c *Config) GetMaxMemoryEntries() int {
	if c.Cache.MaxMemoryEntries <= 0 {
		return DefaultMaxMemoryEntries
	}
	return c.Cache.MaxMemoryEntries
}

// IsNativeEnabled reports whether the native backend may be probed.
func (c *Config) IsNativeEnabled() bool {
	switch strings.ToLower(c.Execution.Native) {
	case "off", "false", "no", "disabled":
		return false
	}
	return true
}

// GetPrivilegeCommand returns the prefix used for privileged commands.
func (c *Config) GetPrivilegeCommand() []string {
	fields := strings.Fields(c.Execution.PrivilegeCommand)
	if len(fields) == 0 {
		return []string{"sudo", "-n"}
	}
	return fields
}

// GetMaxAttempts returns the subprocess attempt ceiling for lock contention.
func (c *Config) GetMaxAttempts() int {
	if c.Execution.MaxAttempts <= 0 {
		return DefaultMaxAttempts
	}
	return c.Execution.MaxAttempts
}

// GetRetryBackoff returns the first retry delay.
func (c *Config) GetRetryBackoff() time.Duration {
	if c.Execution.RetryBackoffMS <= 0 {
		return DefaultRetryBackoff
	}
	return time.Duration(c.Execution.RetryBackoffMS) * time.Millisecond
}

// IsSecurityEnabled checks if security guardrails are enabled
func (c *Config) IsSecurityEnabled() bool {
	return c.Security.Enabled
}

// IsHistoryEnabled checks whether request summaries are recorded.
func (c *Config) IsHistoryEnabled() bool {
	return c.History.Enabled
}

// GetHistoryRetentionDays returns the number of days to retain history
func (c *Config) GetHistoryRetentionDays() int {
	if c.History.RetentionDays <= 0 {
		return DefaultHistoryRetainDays
	}
	return c.History.RetentionDays
}

// GetLogLevel returns the configured log level, "info" when unset.
func (c *Config) GetLogLevel() string {
	if c.Logging.Level == "" {
		return "info"
	}
	return strings.ToLower(c.Logging.Level)
}

// ValidateConsistency checks the internal consistency of the configuration.
func (c *Config) ValidateConsistency() error {
	if c.Preferences.DefaultMode != "" {
		if _, err := ParseMode(c.Preferences.DefaultMode); err != nil {
			return fmt.Errorf("preferences.default_mode: %w", err)
		}
	}
	if c.Recognizer.MinConfidence < 0 || c.Recognizer.MinConfidence > 1 {
		return fmt.Errorf("recognizer.min_confidence must be within [0,1], got %v", c.Recognizer.MinConfidence)
	}
	switch strings.ToLower(c.Cache.Backend) {
	case "", CacheBackendSQLite, CacheBackendFile, CacheBackendMemory, "none":
	default:
		return fmt.Errorf("cache.backend %q is not one of sqlite, file, memory", c.Cache.Backend)
	}
	switch strings.ToLower(c.Execution.Native) {
	case "", "auto", "on", "off", "false", "no", "disabled":
	default:
		return fmt.Errorf("execution.native %q is not one of auto, off", c.Execution.Native)
	}
	if c.Execution.MaxAttempts < 0 {
		return fmt.Errorf("execution.max_attempts must not be negative")
	}
	switch c.GetLogLevel() {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level %q is not one of debug, info, warn, error", c.Logging.Level)
	}
	return nil
}
