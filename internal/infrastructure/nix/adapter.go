package nix

import (
	"context"
	"errors"
	"sync"

	"github.com/doeshing/nixsay/internal/domain"
	"github.com/doeshing/nixsay/internal/ports"
)

// NativeProber is a backend whose availability is detected once.
type NativeProber interface {
	ports.Backend
	Probe() error
}

// Adapter implements ports.PackageManager. The native capability is probed once per
// Adapter; a failed probe is permanent for its lifetime.
type Adapter struct {
	native     NativeProber
	subprocess ports.Backend
	logger     ports.Logger

	probeOnce sync.Once
	nativeOK  bool
}

// NewAdapter builds an adapter. native may be nil to disable the in-process backend.
func NewAdapter(native NativeProber, subprocess ports.Backend, logger ports.Logger) *Adapter {
	return &Adapter{native: native, subprocess: subprocess, logger: logger}
}

// IsNativeAvailable implements ports.PackageManager.
func (a *Adapter) IsNativeAvailable() bool {
	a.probeOnce.Do(func() {
		if a.native == nil {
			return
		}
		if err := a.native.Probe(); err != nil {
			a.debug("native backend unavailable", map[string]interface{}{"error": err.Error()})
			return
		}
		a.nativeOK = true
	})
	return a.nativeOK
}

// Run implements ports.PackageManager. execCtx.Timeout bounds the whole call.
func (a *Adapter) Run(ctx context.Context, spec domain.CommandSpec, execCtx domain.ExecutionContext) (domain.RawResult, error) {
	if execCtx.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, execCtx.Timeout)
		defer cancel()
	}

	if a.IsNativeAvailable() && a.native.Supports(spec) {
		raw, err := a.native.Run(ctx, spec)
		if !errors.Is(err, errNotServed) {
			a.debug("native run", map[string]interface{}{"kind": string(spec.Kind), "ok": err == nil})
			return raw, checkExit(raw, err)
		}
		a.debug("native backend deferred to subprocess", map[string]interface{}{"kind": string(spec.Kind)})
	}

	if a.subprocess == nil {
		return domain.RawResult{}, domain.NewOperationError(domain.ErrUnknownFailure, "", "no backend can run %s", spec.Verb)
	}
	raw, err := a.subprocess.Run(ctx, spec)
	a.debug("subprocess run", map[string]interface{}{
		"command":  spec.String(),
		"ok":       err == nil,
		"attempts": raw.Attempts,
	})
	return raw, checkExit(raw, err)
}

// checkExit classifies a failed run that a backend reported without an error.
func checkExit(raw domain.RawResult, err error) error {
	if err == nil && !raw.ExitOK {
		return classify(raw.Stderr)
	}
	return err
}

func (a *Adapter) debug(msg string, fields map[string]interface{}) {
	if a.logger != nil {
		a.logger.Debug(msg, fields)
	}
}

var _ ports.PackageManager = (*Adapter)(nil)
