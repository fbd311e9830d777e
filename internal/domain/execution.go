package domain

import (
	"fmt"
	"strings"
	"time"
)

// Mode selects how far the executor goes with a request.
type Mode string

const (
	ModeDryRun       Mode = "DRY_RUN"
	ModeExecute      Mode = "EXECUTE"
	ModeExplain      Mode = "EXPLAIN"
	ModeExecuteForce Mode = "EXECUTE_FORCE"
)

// ParseMode accepts the canonical names and their lowercase/dashed spellings.
func ParseMode(value string) (Mode, error) {
	normalized := strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(value), "-", "_"))
	switch Mode(normalized) {
	case ModeDryRun, ModeExecute, ModeExplain, ModeExecuteForce:
		return Mode(normalized), nil
	case "":
		return ModeDryRun, nil
	case "FORCE":
		return ModeExecuteForce, nil
	}
	return "", fmt.Errorf("unknown mode %q", value)
}

// Executes reports whether mutating or privileged operations may run in this mode.
func (m Mode) Executes() bool {
	return m == ModeExecute || m == ModeExecuteForce
}

// ReadsCache reports whether cached results may satisfy a read-only request.
// EXPLAIN always answers with a rationale instead.
func (m Mode) ReadsCache() bool {
	return m != ModeExecuteForce && m != ModeExplain
}

// ExecutionContext carries per-request execution settings.
type ExecutionContext struct {
	Mode      Mode
	Timeout   time.Duration
	SessionID string
}

// Backend names reported in RawResult.
const (
	BackendNative     = "native"
	BackendSubprocess = "subprocess"
	BackendBuiltin    = "builtin"
)

// RawResult is what an adapter backend produced for a single CommandSpec.
type RawResult struct {
	ExitOK   bool
	Stdout   string
	Stderr   string
	Backend  string
	Attempts int
}

// Stage is a step of the executor's per-request state machine.
type Stage string

const (
	StageReceived  Stage = "RECEIVED"
	StageResolved  Stage = "RESOLVED"
	StageCacheHit  Stage = "CACHE_HIT"
	StageValidated Stage = "VALIDATED"
	StageExecuted  Stage = "EXECUTED"
	StageCached    Stage = "CACHED"
	StageSkipped   Stage = "SKIPPED"
	StageDone      Stage = "DONE"
	StageError     Stage = "ERROR"
)

// Terminal reports whether no further transition is allowed.
func (s Stage) Terminal() bool {
	return s == StageDone || s == StageError
}

var stageTransitions = map[Stage][]Stage{
	StageReceived:  {StageResolved},
	StageResolved:  {StageCacheHit, StageValidated},
	StageCacheHit:  {StageDone},
	StageValidated: {StageExecuted, StageSkipped},
	StageExecuted:  {StageCached, StageSkipped},
	StageCached:    {StageDone},
	StageSkipped:   {StageDone},
}

// CanTransition reports whether moving from s to next is a legal step.
// ERROR is reachable from every non-terminal stage.
func (s Stage) CanTransition(next Stage) bool {
	if s.Terminal() {
		return false
	}
	if next == StageError {
		return true
	}
	for _, allowed := range stageTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}
