package commands

// Error messages
const (
	ErrConfigLoaderUnavailable  = "config loader unavailable"
	ErrDoctorServiceUnavailable = "doctor service unavailable"
	ErrHistoryStoreUnavailable  = "history is disabled (history.enabled: false)"
	ErrCacheUnavailable         = "cache unavailable"
	ErrKnowledgeUnavailable     = "knowledge base unavailable"
	ErrInvalidRetainDays        = "--days must be > 0"
	ErrInvalidatePatternEmpty   = "give --tag, --term or --kind, or --all to drop everything"
)

// Success messages
const (
	MsgConfigurationValid = "Configuration valid"
	MsgNoHistoryRecorded  = "No history recorded yet."
	MsgNoCachedResults    = "No cached results."
	MsgNoMatches          = "No matching history entries."
	MsgDoctorHealthy      = "Everything looks good."
	MsgDoctorWarnings     = "Some checks need attention; nixsay will still work."
	MsgDoctorErrors       = "Some checks failed; see above."
)

// cacheKeyWidth is how much of a fingerprint `cache list` shows.
const cacheKeyWidth = 12
