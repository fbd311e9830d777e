package app

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/doeshing/nixsay/assets"
	"github.com/doeshing/nixsay/internal/application/doctor"
	"github.com/doeshing/nixsay/internal/application/executor"
	"github.com/doeshing/nixsay/internal/application/intent"
	"github.com/doeshing/nixsay/internal/application/request"
	"github.com/doeshing/nixsay/internal/domain"
	"github.com/doeshing/nixsay/internal/infrastructure/cache"
	"github.com/doeshing/nixsay/internal/infrastructure/config"
	"github.com/doeshing/nixsay/internal/infrastructure/history"
	"github.com/doeshing/nixsay/internal/infrastructure/knowledge"
	"github.com/doeshing/nixsay/internal/infrastructure/nix"
	"github.com/doeshing/nixsay/internal/infrastructure/security"
	"github.com/doeshing/nixsay/internal/infrastructure/watch"
	"github.com/doeshing/nixsay/internal/pkg/filesystem"
	"github.com/doeshing/nixsay/internal/pkg/logger"
	"github.com/doeshing/nixsay/internal/ports"
)

// Options tunes container construction.
type Options struct {
	Verbose bool
	// ConfigPath overrides the config file location.
	ConfigPath string
	// Prompter confirms mutating commands; nil disables confirmation.
	Prompter ports.ConfirmationPrompter
}

// Container wires up application services with infrastructure adapters.
type Container struct {
	Config         domain.Config
	ConfigProvider ports.ConfigProvider
	ConfigLoader   *config.FileLoader
	Logger         *logger.ZapLogger
	KnowledgeBase  *knowledge.Base
	Cache          *cache.Cache
	Adapter        *nix.Adapter
	RequestService *request.Service
	DoctorService  *doctor.Service
	HistoryStore   ports.HistoryRepository
	// Watcher is nil when profile watching is disabled.
	Watcher *watch.ProfileWatcher
}

// BuildContainer constructs the dependency graph. Knowledge base and guardrail errors
// abort startup; persistent cache and history failures degrade to memory-only and no
// history.
func BuildContainer(ctx context.Context, opts Options) (*Container, error) {
	cfgLoader := config.NewFileLoader(opts.ConfigPath)
	cfg, err := cfgLoader.Load(ctx)
	if err != nil {
		return nil, err
	}

	log, err := logger.New(logger.Options{
		Level:   cfg.GetLogLevel(),
		File:    filesystem.ExpandPath(cfg.Logging.File),
		Verbose: opts.Verbose,
	})
	if err != nil {
		return nil, err
	}

	kb, err := knowledge.LoadFile(cfg.Recognizer.KnowledgeFile, assets.DefaultKnowledgeYAML)
	if err != nil {
		return nil, fmt.Errorf("knowledge base: %w", err)
	}

	var guard ports.SecurityService
	if cfg.IsSecurityEnabled() {
		guardrail, err := security.NewGuardrail(filesystem.ExpandPath(cfg.Security.RulesFile), assets.DefaultGuardrailYAML)
		if err != nil {
			return nil, fmt.Errorf("guardrail: %w", err)
		}
		guard = guardrail
	}

	resultCache := buildCache(cfg, log)
	adapter := buildAdapter(cfg, log)
	historyStore := buildHistory(ctx, cfg, log)

	var prompter ports.ConfirmationPrompter
	if cfg.ShouldConfirmMutations() {
		prompter = opts.Prompter
	}
	exec := executor.New(executor.Options{
		KnowledgeBase: kb,
		Cache:         resultCache,
		Adapter:       adapter,
		Security:      guard,
		Prompter:      prompter,
		Logger:        log,
	})

	requestService := &request.Service{
		Recognizer:     intent.NewRecognizer(kb, cfg.GetMinConfidence(), log),
		Executor:       exec,
		History:        historyStore,
		Logger:         log,
		DefaultTimeout: cfg.GetTimeout(),
	}

	doctorService := &doctor.Service{
		ConfigProvider:  cfgLoader,
		KnowledgeBase:   kb,
		SecurityService: guard,
		PackageManager:  adapter,
		Cache:           resultCache,
	}

	container := &Container{
		Config:         cfg,
		ConfigProvider: cfgLoader,
		ConfigLoader:   cfgLoader,
		Logger:         log,
		KnowledgeBase:  kb,
		Cache:          resultCache,
		Adapter:        adapter,
		RequestService: requestService,
		DoctorService:  doctorService,
		HistoryStore:   historyStore,
	}

	if cfg.Execution.WatchProfiles {
		watcher, err := watch.New(resultCache, watch.Options{Dirs: profileDirs(cfg), Logger: log})
		if err != nil {
			log.Warn("profile watcher unavailable", map[string]interface{}{"error": err.Error()})
		} else {
			container.Watcher = watcher
		}
	}
	return container, nil
}

// Close releases stores and flushes logs.
func (c *Container) Close() error {
	if c.Watcher != nil {
		c.Watcher.Stop()
	}
	var firstErr error
	if c.HistoryStore != nil {
		firstErr = c.HistoryStore.Close()
	}
	if c.Cache != nil {
		if err := c.Cache.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	_ = c.Logger.Sync()
	return firstErr
}

func buildCache(cfg domain.Config, log ports.Logger) *cache.Cache {
	opts := cache.Options{MaxMemoryEntries: cfg.GetMaxMemoryEntries(), Logger: log}
	if !cfg.IsCacheEnabled() {
		return cache.New(opts)
	}
	dir := filesystem.ExpandPath(cfg.Cache.Dir)
	if dir == "" {
		dir = filesystem.StatePath("cache")
	}
	tier, err := cache.OpenTier(cfg.GetCacheBackend(), dir)
	if err != nil {
		log.Warn("persistent cache unavailable, using memory only", map[string]interface{}{"error": err.Error()})
	} else if tier != nil {
		opts.Persistent = tier
	}
	return cache.New(opts)
}

func buildAdapter(cfg domain.Config, log ports.Logger) *nix.Adapter {
	subprocess := nix.NewSubprocessBackend(nix.SubprocessOptions{
		PrivilegeCommand: cfg.GetPrivilegeCommand(),
		MaxAttempts:      cfg.GetMaxAttempts(),
		Backoff:          cfg.GetRetryBackoff(),
		Logger:           log,
	})
	var native nix.NativeProber
	if cfg.IsNativeEnabled() {
		native = nix.NewNativeBackend(nix.NativeOptions{
			ProfilesDir:   cfg.Execution.ProfilesDir,
			UserProfile:   cfg.Execution.UserProfile,
			CurrentSystem: cfg.Execution.CurrentSystem,
		})
	}
	return nix.NewAdapter(native, subprocess, log)
}

func buildHistory(ctx context.Context, cfg domain.Config, log ports.Logger) ports.HistoryRepository {
	if !cfg.IsHistoryEnabled() {
		return nil
	}
	store, err := history.Open(cfg.History.Backend, filesystem.StateDir())
	if err != nil {
		log.Warn("history unavailable", map[string]interface{}{"error": err.Error()})
		return nil
	}
	retention := time.Duration(cfg.GetHistoryRetentionDays()) * 24 * time.Hour
	if removed, err := store.Retain(ctx, retention); err != nil {
		log.Warn("history retention failed", map[string]interface{}{"error": err.Error()})
	} else if removed > 0 {
		log.Debug("history pruned", map[string]interface{}{"removed": removed})
	}
	return store
}

func profileDirs(cfg domain.Config) []string {
	profiles := filesystem.ExpandPath(cfg.Execution.ProfilesDir)
	if profiles == "" {
		profiles = "/nix/var/nix/profiles"
	}
	userProfiles := filepath.Join(filesystem.UserHomeDir(), ".local", "state", "nix", "profiles")
	return []string{profiles, filepath.Join(profiles, "per-user", "root"), userProfiles}
}
