package domain

// Config mirrors ~/.nixsay/config.yaml.
type Config struct {
	ConfigFormatVersion string             `yaml:"config_format_version"`
	Preferences         Preferences        `yaml:"preferences"`
	Recognizer          RecognizerSettings `yaml:"recognizer"`
	Cache               CacheSettings      `yaml:"cache"`
	Execution           ExecutionSettings  `yaml:"execution"`
	Security            SecuritySettings   `yaml:"security"`
	History             HistorySettings    `yaml:"history"`
	Logging             LoggingSettings    `yaml:"logging"`
}

// Preferences captures user level toggles.
type Preferences struct {
	DefaultMode      string `yaml:"default_mode"`
	TimeoutSeconds   int    `yaml:"timeout"`
	SessionID        string `yaml:"session_id"`
	ConfirmMutations bool   `yaml:"confirm_mutations"`
}

// RecognizerSettings tunes intent recognition.
type RecognizerSettings struct {
	MinConfidence float64 `yaml:"min_confidence"`
	KnowledgeFile string  `yaml:"knowledge_file"`
}

// CacheSettings configures the two cache tiers.
type CacheSettings struct {
	Enabled          bool   `yaml:"enabled"`
	Backend          string `yaml:"backend"`
	Dir              string `yaml:"dir"`
	MaxMemoryEntries int    `yaml:"max_memory_entries"`
}

// ExecutionSettings controls how commands reach Nix.
type ExecutionSettings struct {
	Native           string `yaml:"native"`
	ProfilesDir      string `yaml:"profiles_dir"`
	UserProfile      string `yaml:"user_profile"`
	CurrentSystem    string `yaml:"current_system"`
	PrivilegeCommand string `yaml:"privilege_command"`
	MaxAttempts      int    `yaml:"max_attempts"`
	RetryBackoffMS   int    `yaml:"retry_backoff_ms"`
	WatchProfiles    bool   `yaml:"watch_profiles"`
}

// SecuritySettings defines guardrail behavior.
type SecuritySettings struct {
	Enabled   bool   `yaml:"enabled"`
	RulesFile string `yaml:"rules_file"`
}

// HistorySettings controls the request log.
type HistorySettings struct {
	Enabled       bool   `yaml:"enabled"`
	Backend       string `yaml:"backend"`
	RetentionDays int    `yaml:"retention_days"`
}

// LoggingSettings controls diagnostic output.
type LoggingSettings struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}
