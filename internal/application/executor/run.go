package executor

import (
	"strings"

	"github.com/doeshing/nixsay/internal/domain"
	"github.com/doeshing/nixsay/internal/ports"
)

// run tracks one request through the stage machine.
type run struct {
	stage  domain.Stage
	path   []domain.Stage
	result domain.Result
	logger ports.Logger
}

// advance moves to next. An illegal step is a programming error; it is logged and the
// request ends in ERROR instead of continuing in an undefined stage.
func (r *run) advance(next domain.Stage) bool {
	if !r.stage.CanTransition(next) {
		if r.logger != nil {
			r.logger.Error("illegal stage transition", nil, map[string]interface{}{
				"from": string(r.stage),
				"to":   string(next),
			})
		}
		r.result.Success = false
		r.result.Error = domain.ErrUnknownFailure
		r.stage = domain.StageError
		r.path = append(r.path, r.stage)
		return false
	}
	r.stage = next
	r.path = append(r.path, next)
	return true
}

// trail renders the stages visited so far, e.g. "RECEIVED>RESOLVED>VALIDATED".
func (r *run) trail() string {
	parts := make([]string, len(r.path))
	for i, stage := range r.path {
		parts[i] = string(stage)
	}
	return strings.Join(parts, ">")
}

// fail ends the request with kind.
func (r *run) fail(kind domain.ErrorKind, explanation string) {
	r.advance(domain.StageError)
	r.result.Success = false
	r.result.Error = kind
	r.result.Explanation = explanation
}

// skip finishes without caching: dry-run previews, explanations, builtins and mutations.
func (r *run) skip(explanation string) {
	if !r.advance(domain.StageSkipped) {
		return
	}
	if r.result.Explanation == "" {
		r.result.Explanation = explanation
	}
	if r.result.Error == domain.ErrNone && !r.result.Success {
		// Nothing ran and nothing failed.
		r.result.Success = true
	}
	r.advance(domain.StageDone)
}
