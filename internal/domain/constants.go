package domain

import "time"

// File permissions constants
const (
	// DirectoryPermissions is the default permission for directories (rwxr-xr-x)
	DirectoryPermissions = 0o755
	// SecureFilePermissions is the permission for sensitive files (rw-------)
	SecureFilePermissions = 0o600
)

// Timeout and duration constants
const (
	// DefaultRequestTimeout bounds a single adapter run
	DefaultRequestTimeout = 5 * time.Minute
	// DefaultRetryBackoff is the first delay between lock-contention retries
	DefaultRetryBackoff = 200 * time.Millisecond
	// DefaultHTTPClientTimeout is the timeout for doctor HTTP probes
	DefaultHTTPClientTimeout = 10 * time.Second
	// DefaultWaitDelay bounds pipe draining after a subprocess is killed
	DefaultWaitDelay = 2 * time.Second
)

// Recognizer constants
const (
	// DefaultMinConfidence is the fallback acceptance threshold
	DefaultMinConfidence = 0.5
	// PatternShortCircuitConfidence ends recognition on the first pattern at or above it
	PatternShortCircuitConfidence = 0.85
	// VagueEntityConfidence is assigned to patterns whose entity is a filler word
	VagueEntityConfidence = 0.6
	// DefaultSuggestionCount is how many nearest aliases accompany NO_MATCH
	DefaultSuggestionCount = 3
)

// Cache and execution limits
const (
	// DefaultMaxMemoryEntries caps the in-memory LRU tier
	DefaultMaxMemoryEntries = 256
	// PersistentFailureLimit disables the persistent tier after this many consecutive errors
	PersistentFailureLimit = 3
	// DefaultMaxAttempts is the subprocess attempt ceiling for lock contention
	DefaultMaxAttempts = 3
)

// Cache backends
const (
	CacheBackendSQLite = "sqlite"
	CacheBackendFile   = "file"
	CacheBackendMemory = "memory"
)

// History constants
const (
	// DefaultHistoryLimit is the default number of history records to display
	DefaultHistoryLimit = 20
	// DefaultHistorySearchLimit is the default number of search results to return
	DefaultHistorySearchLimit = 50
	// DefaultHistoryRetainDays is the default number of days to retain history
	DefaultHistoryRetainDays = 30
)

// Time formats
const (
	// TimestampFormat is the standard timestamp format
	TimestampFormat = time.RFC3339
)
