package domain

import (
	"fmt"
	"time"
)

// ErrorKind is the closed taxonomy of expected failures. The empty kind means success.
type ErrorKind string

const (
	ErrNone              ErrorKind = ""
	ErrNoMatch           ErrorKind = "NO_MATCH"
	ErrMissingEntity     ErrorKind = "MISSING_ENTITY"
	ErrTimeout           ErrorKind = "TIMEOUT"
	ErrPrivilegeRequired ErrorKind = "PRIVILEGE_REQUIRED"
	ErrConflict          ErrorKind = "CONFLICT"
	ErrUnknownFailure    ErrorKind = "UNKNOWN_FAILURE"
)

// CLI exit codes.
const (
	ExitSuccess           = 0
	ExitNoMatch           = 1
	ExitMissingEntity     = 2
	ExitTimeout           = 3
	ExitPrivilegeRequired = 4
	ExitUnknownFailure    = 5
	ExitConflict          = 6
)

// ExitCode maps the error kind to the process exit status.
func (k ErrorKind) ExitCode() int {
	switch k {
	case ErrNone:
		return ExitSuccess
	case ErrNoMatch:
		return ExitNoMatch
	case ErrMissingEntity:
		return ExitMissingEntity
	case ErrTimeout:
		return ExitTimeout
	case ErrPrivilegeRequired:
		return ExitPrivilegeRequired
	case ErrConflict:
		return ExitConflict
	default:
		return ExitUnknownFailure
	}
}

// Describe returns a short non-technical explanation of the failure class.
func (k ErrorKind) Describe() string {
	switch k {
	case ErrNoMatch:
		return "I couldn't work out what you want to do."
	case ErrMissingEntity:
		return "I understood the request, but something it needs is missing or malformed."
	case ErrTimeout:
		return "The operation took too long and was stopped."
	case ErrPrivilegeRequired:
		return "This needs administrator rights or is not allowed."
	case ErrConflict:
		return "The system is not in a state where this can be done."
	case ErrUnknownFailure:
		return "Something went wrong while running the command."
	}
	return ""
}

// OperationError is returned by adapter backends for classified failures.
type OperationError struct {
	Kind    ErrorKind
	Message string
	Stderr  string
}

func (e *OperationError) Error() string {
	if e.Message == "" {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// NewOperationError builds an OperationError with a formatted message.
func NewOperationError(kind ErrorKind, stderr string, format string, args ...any) *OperationError {
	return &OperationError{Kind: kind, Message: fmt.Sprintf(format, args...), Stderr: stderr}
}

// Result is the single value handed back for every request.
type Result struct {
	Success     bool
	Output      string
	CommandsRun []string
	Error       ErrorKind
	Explanation string

	Kind        OperationKind
	Intent      Intent
	FromCache   bool
	Suggestions []string
	Backend     string
	Stage       Stage
	Duration    time.Duration
}

// ExitCode returns the process exit status for the result.
func (r Result) ExitCode() int {
	if r.Success {
		return ExitSuccess
	}
	if r.Error == ErrNone {
		return ExitUnknownFailure
	}
	return r.Error.ExitCode()
}
