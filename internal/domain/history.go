package domain

import "time"

// HistoryRecord is the summary kept for each handled request.
type HistoryRecord struct {
	ID          string        `json:"id"`
	SessionID   string        `json:"session_id"`
	Timestamp   time.Time     `json:"timestamp"`
	Text        string        `json:"text"`
	Kind        OperationKind `json:"kind"`
	Mode        Mode          `json:"mode"`
	Success     bool          `json:"success"`
	Error       ErrorKind     `json:"error,omitempty"`
	FromCache   bool          `json:"from_cache"`
	CommandsRun []string      `json:"commands_run,omitempty"`
	Explanation string        `json:"explanation"`
	DurationMS  int64         `json:"duration_ms"`
}

// ExitCode returns the exit status the request produced.
func (r HistoryRecord) ExitCode() int {
	if r.Success {
		return ExitSuccess
	}
	return r.Error.ExitCode()
}
