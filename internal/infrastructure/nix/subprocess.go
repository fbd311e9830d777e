package nix

import (
	"bytes"
	"context"
	"errors"
	"os"
	"os/exec"
	"time"

	"github.com/doeshing/nixsay/internal/domain"
	"github.com/doeshing/nixsay/internal/ports"
)

// SubprocessOptions configures the CLI backend.
type SubprocessOptions struct {
	// PrivilegeCommand prefixes privileged commands, e.g. ["sudo", "-n"].
	PrivilegeCommand []string
	MaxAttempts      int
	Backoff          time.Duration
	Logger           ports.Logger
}

// SubprocessBackend runs commands with os/exec. It serves every CommandSpec.
type SubprocessBackend struct {
	privilege   []string
	maxAttempts int
	backoff     time.Duration
	logger      ports.Logger
	geteuid     func() int
}

// NewSubprocessBackend builds the fallback backend.
func NewSubprocessBackend(opts SubprocessOptions) *SubprocessBackend {
	maxAttempts := opts.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = domain.DefaultMaxAttempts
	}
	backoff := opts.Backoff
	if backoff <= 0 {
		backoff = domain.DefaultRetryBackoff
	}
	return &SubprocessBackend{
		privilege:   opts.PrivilegeCommand,
		maxAttempts: maxAttempts,
		backoff:     backoff,
		logger:      opts.Logger,
		geteuid:     os.Geteuid,
	}
}

// Name implements ports.Backend.
func (s *SubprocessBackend) Name() string {
	return domain.BackendSubprocess
}

// Supports implements ports.Backend.
func (s *SubprocessBackend) Supports(domain.CommandSpec) bool {
	return true
}

// Argv returns the process arguments for spec, privilege prefix included.
func (s *SubprocessBackend) Argv(spec domain.CommandSpec) []string {
	argv := spec.Argv()
	if spec.RequiresPrivilege && len(s.privilege) > 0 && s.geteuid() != 0 {
		argv = append(append([]string(nil), s.privilege...), argv...)
	}
	return argv
}

// Run implements ports.Backend. ctx's deadline is a hard kill deadline. Lock contention
// is retried with exponential backoff; timeouts never are.
func (s *SubprocessBackend) Run(ctx context.Context, spec domain.CommandSpec) (domain.RawResult, error) {
	argv := s.Argv(spec)
	delay := s.backoff

	var (
		raw domain.RawResult
		err *domain.OperationError
	)
	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		raw, err = s.runOnce(ctx, argv)
		raw.Attempts = attempt
		if err == nil {
			return raw, nil
		}
		if err.Kind == domain.ErrTimeout || !isLockContention(raw.Stderr) || attempt == s.maxAttempts {
			break
		}
		s.warn("nix store is locked, retrying", map[string]interface{}{
			"command": spec.String(),
			"attempt": attempt,
			"delay":   delay.String(),
		})
		select {
		case <-ctx.Done():
			return raw, timeoutError(ctx, raw.Stderr)
		case <-time.After(delay):
		}
		delay *= 2
	}
	return raw, err
}

func (s *SubprocessBackend) runOnce(ctx context.Context, argv []string) (domain.RawResult, *domain.OperationError) {
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.WaitDelay = domain.DefaultWaitDelay
	cmd.Env = append(os.Environ(), "LC_ALL=C", "NIX_PAGER=cat")
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()
	raw := domain.RawResult{
		ExitOK:  runErr == nil,
		Stdout:  stdout.String(),
		Stderr:  stderr.String(),
		Backend: domain.BackendSubprocess,
	}
	if runErr == nil {
		return raw, nil
	}
	if ctx.Err() != nil {
		return raw, timeoutError(ctx, raw.Stderr)
	}
	if errors.Is(runErr, exec.ErrNotFound) {
		return raw, domain.NewOperationError(domain.ErrUnknownFailure, raw.Stderr, "%s is not installed or not on PATH", argv[0])
	}
	var exitErr *exec.ExitError
	if !errors.As(runErr, &exitErr) {
		return raw, domain.NewOperationError(domain.ErrUnknownFailure, raw.Stderr, "run %s: %v", argv[0], runErr)
	}
	return raw, classify(raw.Stderr)
}

func timeoutError(ctx context.Context, stderr string) *domain.OperationError {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return domain.NewOperationError(domain.ErrTimeout, stderr, "the command did not finish in time")
	}
	return domain.NewOperationError(domain.ErrUnknownFailure, stderr, "the command was cancelled")
}

func (s *SubprocessBackend) warn(msg string, fields map[string]interface{}) {
	if s.logger != nil {
		s.logger.Warn(msg, fields)
	}
}

var _ ports.Backend = (*SubprocessBackend)(nil)
