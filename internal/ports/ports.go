// Package ports defines the interfaces (ports) for the hexagonal architecture.
//
// This package establishes the contract between the request pipeline and external
// adapters (infrastructure). The recognizer, executor and request service depend only on
// these interfaces, so the knowledge base, cache tiers, Nix backends and presentation
// layer can be swapped or faked in tests.
//
// Key architectural concepts:
//   - Ports: Interfaces defined here (e.g., KnowledgeBase, Cache, PackageManager)
//   - Adapters: Concrete implementations in the infrastructure layer
//   - Dependency inversion: Application depends on abstractions, not implementations
package ports

import (
	"context"
	"time"

	"github.com/doeshing/nixsay/internal/domain"
)

// ConfigProvider loads the latest configuration from persistent storage.
// Implementations typically read from ~/.nixsay/config.yaml.
type ConfigProvider interface {
	Load(context.Context) (domain.Config, error)
}

// KnowledgeBase maps operation kinds and aliases to templates.
// It is loaded once at startup and read-only afterwards.
type KnowledgeBase interface {
	Lookup(kind domain.OperationKind) (domain.OperationTemplate, bool)
	ResolveAlias(token string) (domain.OperationKind, bool)
	AllKinds() []domain.OperationKind
}

// AliasMatcher is the richer knowledge base surface used by the recognizer and the
// executor for scoring and suggestions.
type AliasMatcher interface {
	KnowledgeBase
	// MatchAlias resolves token and reports the edit distance of the match (0 = exact).
	MatchAlias(token string) (domain.OperationKind, int, bool)
	// ResolvePackage maps a package nickname to its attribute name.
	ResolvePackage(token string) (string, bool)
	// Suggest returns up to n aliases closest to text.
	Suggest(text string, n int) []string
	// PatternRules returns the ordered exact-pattern rules.
	PatternRules() []domain.PatternRule
	// Stopwords returns words ignored by alias matching.
	Stopwords() map[string]struct{}
	// VagueWords returns filler words that weaken an entity match.
	VagueWords() map[string]struct{}
	// Negations returns words that make the alias tier give up on the text.
	Negations() map[string]struct{}
}

// IntentRecognizer turns free text into exactly one Intent. It never fails.
type IntentRecognizer interface {
	Recognize(ctx context.Context, text string) domain.Intent
}

// Cache is the two-tier store for read-only results.
type Cache interface {
	Get(ctx context.Context, key string) (domain.CacheEntry, bool)
	// Put stores entry unless one of its dependencies was invalidated after token.
	Put(ctx context.Context, entry domain.CacheEntry, token uint64) bool
	Invalidate(ctx context.Context, pattern domain.Pattern) int
	InvalidateAll(ctx context.Context)
	// Token snapshots the invalidation sequence before a read-only execution.
	Token() uint64
	Stats() domain.CacheStats
	Entries(ctx context.Context) []domain.CacheEntry
}

// CacheTier is a persistent backing store behind the memory tier.
type CacheTier interface {
	Name() string
	Get(ctx context.Context, key string) (domain.CacheEntry, bool, error)
	Put(ctx context.Context, entry domain.CacheEntry) error
	Delete(ctx context.Context, keys ...string) error
	List(ctx context.Context) ([]domain.CacheEntry, error)
	Clear(ctx context.Context) error
	Close() error
}

// PackageManager runs CommandSpecs against Nix, natively when possible.
type PackageManager interface {
	IsNativeAvailable() bool
	Run(ctx context.Context, spec domain.CommandSpec, execCtx domain.ExecutionContext) (domain.RawResult, error)
}

// Backend is one way of running a CommandSpec.
type Backend interface {
	Name() string
	Supports(spec domain.CommandSpec) bool
	Run(ctx context.Context, spec domain.CommandSpec) (domain.RawResult, error)
}

// OperationExecutor drives an Intent through validation, caching and execution.
type OperationExecutor interface {
	Execute(ctx context.Context, intent domain.Intent, execCtx domain.ExecutionContext) domain.Result
}

// SecurityService evaluates commands against guardrail rules before they reach Nix.
type SecurityService interface {
	Evaluate(spec domain.CommandSpec) (domain.RiskAssessment, error)
}

// ConfirmationPrompter handles interactive confirmation before mutating commands run.
type ConfirmationPrompter interface {
	Confirm(preview string, privileged bool) (bool, error)
	Enabled() bool
}

// HistoryRepository persists request summaries.
type HistoryRepository interface {
	Record(ctx context.Context, record domain.HistoryRecord) error
	Recent(ctx context.Context, limit int) ([]domain.HistoryRecord, error)
	LastForSession(ctx context.Context, sessionID string) (domain.HistoryRecord, bool, error)
	Search(ctx context.Context, term string, limit int) ([]domain.HistoryRecord, error)
	Clear(ctx context.Context) error
	Retain(ctx context.Context, olderThan time.Duration) (int, error)
	Close() error
}

// Logger provides structured logging abstraction for the application layer.
// Implementations can route to different backends (stdout, files, external services).
type Logger interface {
	Debug(msg string, fields map[string]interface{})
	Info(msg string, fields map[string]interface{})
	Warn(msg string, fields map[string]interface{})
	Error(msg string, err error, fields map[string]interface{})
}
