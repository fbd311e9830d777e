// Package executor drives a recognized Intent through resolution, caching, validation
// and execution, and turns every outcome into a domain.Result.
package executor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/doeshing/nixsay/internal/domain"
	"github.com/doeshing/nixsay/internal/ports"
)

// Options wires the executor's collaborators. Cache, Security and Prompter are optional.
type Options struct {
	KnowledgeBase ports.AliasMatcher
	Cache         ports.Cache
	Adapter       ports.PackageManager
	Security      ports.SecurityService
	// Prompter, when set, is asked before mutating commands run.
	Prompter ports.ConfirmationPrompter
	Logger   ports.Logger
	Now      func() time.Time
}

// Executor implements ports.OperationExecutor.
type Executor struct {
	kb       ports.AliasMatcher
	cache    ports.Cache
	adapter  ports.PackageManager
	security ports.SecurityService
	prompter ports.ConfirmationPrompter
	logger   ports.Logger
	now      func() time.Time

	reads singleflight.Group
}

// New builds an executor.
func New(opts Options) *Executor {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Executor{
		kb:       opts.KnowledgeBase,
		cache:    opts.Cache,
		adapter:  opts.Adapter,
		security: opts.Security,
		prompter: opts.Prompter,
		logger:   opts.Logger,
		now:      now,
	}
}

// Execute implements ports.OperationExecutor. Expected failures are reported in the
// Result; it never panics on request input.
func (e *Executor) Execute(ctx context.Context, intent domain.Intent, execCtx domain.ExecutionContext) domain.Result {
	started := e.now()
	if execCtx.Mode == "" {
		execCtx.Mode = domain.ModeDryRun
	}
	r := &run{
		stage:  domain.StageReceived,
		path:   []domain.Stage{domain.StageReceived},
		result: domain.Result{Kind: intent.Kind, Intent: intent},
		logger: e.logger,
	}
	e.execute(ctx, r, intent, execCtx)
	r.result.Stage = r.stage
	r.result.Duration = e.now().Sub(started)
	e.info("request finished", map[string]interface{}{
		"kind":       string(intent.Kind),
		"mode":       string(execCtx.Mode),
		"session_id": execCtx.SessionID,
		"stage":      string(r.stage),
		"path":       r.trail(),
		"success":    r.result.Success,
		"error":      string(r.result.Error),
		"from_cache": r.result.FromCache,
		"backend":    r.result.Backend,
	})
	return r.result
}

func (e *Executor) execute(ctx context.Context, r *run, intent domain.Intent, execCtx domain.ExecutionContext) {
	tmpl, ok := e.resolve(intent)
	if !ok {
		r.result.Suggestions = e.kb.Suggest(intent.RawText, domain.DefaultSuggestionCount)
		r.fail(domain.ErrNoMatch, noMatchExplanation(r.result.Suggestions))
		return
	}
	r.advance(domain.StageResolved)

	entities := slotValues(tmpl, intent)
	key := domain.Fingerprint(tmpl.Kind, entities)
	if tmpl.Cacheable() && execCtx.Mode.ReadsCache() && e.cache != nil {
		if entry, hit := e.cache.Get(ctx, key); hit {
			r.advance(domain.StageCacheHit)
			r.result.Success = true
			r.result.FromCache = true
			r.result.Output = string(entry.Value)
			r.result.Explanation = withAmbiguity(intent, fmt.Sprintf(
				"%s. Served from cache (stored %s ago).",
				tmpl.Description, e.now().Sub(entry.CreatedAt).Round(time.Second)))
			r.advance(domain.StageDone)
			return
		}
	}

	if missing := tmpl.MissingEntities(entities); len(missing) > 0 {
		r.fail(domain.ErrMissingEntity, missingExplanation(tmpl, missing))
		return
	}
	if slot, value, bad := tmpl.InvalidEntity(entities); bad {
		r.fail(domain.ErrMissingEntity, fmt.Sprintf("%s %q does not look like a valid %s name.",
			domain.ErrMissingEntity.Describe(), value, slotLabel(slot)))
		return
	}

	spec := tmpl.Build(entities)
	assessment := domain.RiskAssessment{Level: domain.RiskSafe, Action: domain.ActionAllow}
	if e.security != nil && !tmpl.Builtin() {
		var err error
		assessment, err = e.security.Evaluate(spec)
		if err != nil {
			r.fail(domain.ErrUnknownFailure, fmt.Sprintf("%s Guardrail evaluation failed: %v", domain.ErrUnknownFailure.Describe(), err))
			return
		}
		if assessment.Blocked() {
			r.fail(domain.ErrPrivilegeRequired, fmt.Sprintf("%s The command was blocked by policy: %s.",
				domain.ErrPrivilegeRequired.Describe(), strings.Join(assessment.Reasons, "; ")))
			return
		}
	}
	r.advance(domain.StageValidated)

	switch {
	case execCtx.Mode == domain.ModeExplain:
		// The rationale is the product of the EXECUTED step; nothing is invoked.
		r.advance(domain.StageExecuted)
		r.skip(rationale(tmpl, spec, intent))
		return
	case tmpl.Builtin():
		r.advance(domain.StageExecuted)
		r.result.Success = true
		r.result.Backend = domain.BackendBuiltin
		r.result.Output = e.catalogue()
		r.skip(tmpl.Description + ".")
		return
	case !execCtx.Mode.Executes() && (tmpl.Mutating || spec.RequiresPrivilege):
		r.result.Output = "Would run: " + spec.String()
		r.skip(withAmbiguity(intent, preview(tmpl, spec)))
		return
	}

	if needsConfirmation(tmpl, assessment) && e.prompter != nil {
		if !e.prompter.Enabled() {
			r.result.Output = "Would run: " + spec.String()
			r.skip(withAmbiguity(intent, preview(tmpl, spec)+" Confirmation is required and no terminal is attached; rerun with --yes to proceed."))
			return
		}
		approved, err := e.prompter.Confirm(withAmbiguity(intent, preview(tmpl, spec)), spec.RequiresPrivilege)
		if err != nil {
			r.fail(domain.ErrUnknownFailure, fmt.Sprintf("%s Confirmation failed: %v", domain.ErrUnknownFailure.Describe(), err))
			return
		}
		if !approved {
			r.result.Output = "Cancelled: " + spec.String()
			r.skip("Nothing was run.")
			return
		}
	}

	if e.adapter == nil {
		r.fail(domain.ErrUnknownFailure, domain.ErrUnknownFailure.Describe()+" No package manager backend is configured.")
		return
	}

	var (
		raw   domain.RawResult
		err   error
		token uint64
	)
	if tmpl.Mutating {
		raw, err = e.adapter.Run(ctx, spec, execCtx)
	} else {
		if e.cache != nil {
			token = e.cache.Token()
		}
		raw, err = e.runShared(ctx, key, token, spec, execCtx)
	}
	r.result.CommandsRun = []string{spec.String()}
	r.result.Backend = raw.Backend
	r.result.Output = raw.Stdout
	if err == nil && !raw.ExitOK {
		err = domain.NewOperationError(domain.ErrUnknownFailure, raw.Stderr, "command reported failure")
	}
	if err != nil {
		kind, detail := classifyError(err)
		r.fail(kind, failureExplanation(kind, detail))
		return
	}
	r.advance(domain.StageExecuted)
	r.result.Success = true

	if tmpl.Mutating {
		removed := e.invalidate(ctx, tmpl, entities)
		r.skip(withAmbiguity(intent, fmt.Sprintf("%s: ran %s.", tmpl.Description, spec.String())))
		e.debug("dependent cache entries invalidated", map[string]interface{}{"kind": string(tmpl.Kind), "removed": removed})
		return
	}

	explanation := withAmbiguity(intent, fmt.Sprintf("%s: ran %s.", tmpl.Description, spec.String()))
	if tmpl.Cacheable() && e.cache != nil {
		stored := e.cache.Put(ctx, domain.CacheEntry{
			Key:          key,
			Kind:         tmpl.Kind,
			Value:        []byte(raw.Stdout),
			CreatedAt:    e.now(),
			TTL:          tmpl.DefaultCacheTTL,
			Dependencies: append([]string(nil), tmpl.DependsOn...),
			Entities:     entities,
		}, token)
		if stored {
			r.advance(domain.StageCached)
			r.result.Explanation = explanation
			r.advance(domain.StageDone)
			return
		}
	}
	r.skip(explanation)
}

func (e *Executor) resolve(intent domain.Intent) (domain.OperationTemplate, bool) {
	if intent.Kind.IsUnknown() {
		return domain.OperationTemplate{}, false
	}
	return e.kb.Lookup(intent.Kind)
}

type sharedRead struct {
	raw domain.RawResult
	err error
}

// runShared collapses concurrent identical reads. The key includes the invalidation
// token so a read started after a mutation never joins one started before it.
func (e *Executor) runShared(ctx context.Context, key string, token uint64, spec domain.CommandSpec, execCtx domain.ExecutionContext) (domain.RawResult, error) {
	v, _, shared := e.reads.Do(fmt.Sprintf("%s@%d", key, token), func() (interface{}, error) {
		raw, err := e.adapter.Run(ctx, spec, execCtx)
		return sharedRead{raw: raw, err: err}, nil
	})
	if shared {
		e.debug("joined in-flight read", map[string]interface{}{"key": key})
	}
	read := v.(sharedRead)
	return read.raw, read.err
}

// invalidate applies the template's invalidation rules. It returns once every rule has
// been applied, before the mutating Result is handed back.
func (e *Executor) invalidate(ctx context.Context, tmpl domain.OperationTemplate, entities map[string]string) int {
	if e.cache == nil {
		return 0
	}
	removed := 0
	for _, rule := range tmpl.Invalidates {
		pattern := domain.Pattern{Tag: rule.Tag}
		if rule.MatchEntity != "" {
			pattern.Term = entities[rule.MatchEntity]
		}
		removed += e.cache.Invalidate(ctx, pattern)
	}
	return removed
}

// catalogue renders the help builtin.
func (e *Executor) catalogue() string {
	var b strings.Builder
	b.WriteString("Things you can ask for:\n")
	for _, kind := range e.kb.AllKinds() {
		tmpl, ok := e.kb.Lookup(kind)
		if !ok {
			continue
		}
		fmt.Fprintf(&b, "  %-18s %s", kind, tmpl.Description)
		if len(tmpl.Examples) > 0 {
			fmt.Fprintf(&b, " (e.g. %q)", tmpl.Examples[0])
		}
		b.WriteByte('\n')
	}
	return b.String()
}

func (e *Executor) info(msg string, fields map[string]interface{}) {
	if e.logger != nil {
		e.logger.Info(msg, fields)
	}
}

func (e *Executor) debug(msg string, fields map[string]interface{}) {
	if e.logger != nil {
		e.logger.Debug(msg, fields)
	}
}

// slotValues keeps the entities the template declares and fills optional defaults, so
// "rebuild" and "rebuild switch" share a fingerprint.
func slotValues(tmpl domain.OperationTemplate, intent domain.Intent) map[string]string {
	out := map[string]string{}
	for _, slot := range tmpl.RequiredEntities {
		if v, ok := intent.Entity(slot); ok {
			out[slot] = strings.TrimSpace(v)
		}
	}
	for slot, def := range tmpl.OptionalEntities {
		if v, ok := intent.Entity(slot); ok {
			out[slot] = strings.TrimSpace(v)
		} else if def != "" {
			out[slot] = def
		}
	}
	return out
}

func needsConfirmation(tmpl domain.OperationTemplate, assessment domain.RiskAssessment) bool {
	return tmpl.Mutating || assessment.Action == domain.ActionConfirm
}

func classifyError(err error) (domain.ErrorKind, string) {
	var opErr *domain.OperationError
	if errors.As(err, &opErr) {
		detail := opErr.Message
		if line := firstLine(opErr.Stderr); line != "" && line != detail {
			detail = strings.TrimSpace(detail + " (" + line + ")")
		}
		return opErr.Kind, detail
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return domain.ErrTimeout, err.Error()
	}
	return domain.ErrUnknownFailure, err.Error()
}

func firstLine(text string) string {
	text = strings.TrimSpace(text)
	if i := strings.IndexByte(text, '\n'); i >= 0 {
		return text[:i]
	}
	return text
}

var _ ports.OperationExecutor = (*Executor)(nil)
