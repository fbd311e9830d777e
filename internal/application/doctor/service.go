// Package doctor runs environment diagnostics for `nixsay doctor`.
package doctor

import (
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/go-resty/resty/v2"
	"golang.org/x/sync/errgroup"

	appconfig "github.com/doeshing/nixsay/internal/application/config"
	"github.com/doeshing/nixsay/internal/domain"
	"github.com/doeshing/nixsay/internal/ports"
)

// DefaultSubstituterURL is probed to confirm the binary cache is reachable.
const DefaultSubstituterURL = "https://cache.nixos.org/nix-cache-info"

var defaultBinaries = []string{"nix", "nix-env", "nix-channel", "nixos-rebuild"}

// Service runs environment diagnostics. Nil collaborators are reported as warnings.
type Service struct {
	ConfigProvider  ports.ConfigProvider
	KnowledgeBase   ports.KnowledgeBase
	SecurityService ports.SecurityService
	PackageManager  ports.PackageManager
	Cache           ports.Cache

	HTTPClient     *resty.Client
	SubstituterURL string
	// LookPath and Binaries are overridable for tests.
	LookPath func(string) (string, error)
	Binaries []string
}

// Run executes checks and returns a report. Checks after the config load run
// concurrently; their order in the report is fixed.
func (s *Service) Run(ctx context.Context) (domain.HealthReport, error) {
	cfg, err := s.ConfigProvider.Load(ctx)
	if err != nil {
		return domain.HealthReport{Checks: []domain.HealthCheck{fail("Config file", fmt.Sprintf("load failed: %v", err))}}, err
	}
	configCheck := ok("Config file", fmt.Sprintf("format %s", cfg.ConfigFormatVersion))
	if err := appconfig.Validate(cfg); err != nil {
		configCheck = fail("Config file", err.Error())
	}

	probes := []func(context.Context) domain.HealthCheck{
		s.knowledgeCheck,
		s.guardrailCheck,
		s.nativeCheck,
		s.cacheCheck,
		s.binariesCheck,
		s.substituterCheck,
	}
	checks := make([]domain.HealthCheck, len(probes))
	g, gctx := errgroup.WithContext(ctx)
	for i, probe := range probes {
		i, probe := i, probe
		g.Go(func() error {
			checks[i] = probe(gctx)
			return nil
		})
	}
	_ = g.Wait()

	return domain.HealthReport{Checks: append([]domain.HealthCheck{configCheck}, checks...)}, nil
}

func (s *Service) knowledgeCheck(context.Context) domain.HealthCheck {
	if s.KnowledgeBase == nil {
		return warn("Knowledge base", "not initialized")
	}
	kinds := s.KnowledgeBase.AllKinds()
	if len(kinds) == 0 {
		return fail("Knowledge base", "no operations loaded")
	}
	return ok("Knowledge base", fmt.Sprintf("%d operations", len(kinds)))
}

func (s *Service) guardrailCheck(context.Context) domain.HealthCheck {
	if s.SecurityService == nil {
		return warn("Guardrail", "security service not initialized")
	}
	assessment, err := s.SecurityService.Evaluate(domain.CommandSpec{Verb: "nix-env", Args: []string{"-q"}})
	if err != nil {
		return fail("Guardrail", err.Error())
	}
	if assessment.Blocked() {
		return warn("Guardrail", "rules block a plain `nix-env -q`")
	}
	return ok("Guardrail", "rules loaded")
}

func (s *Service) nativeCheck(context.Context) domain.HealthCheck {
	if s.PackageManager == nil {
		return warn("Native backend", "adapter not initialized")
	}
	if s.PackageManager.IsNativeAvailable() {
		return ok("Native backend", "reading Nix state in-process")
	}
	return warn("Native backend", "unavailable, every command runs through the Nix CLI")
}

func (s *Service) cacheCheck(context.Context) domain.HealthCheck {
	if s.Cache == nil {
		return warn("Cache", "disabled")
	}
	stats := s.Cache.Stats()
	switch {
	case stats.PersistentDisabled:
		return warn("Cache", fmt.Sprintf("%s tier disabled after errors, memory only", stats.PersistentBackend))
	case stats.PersistentBackend == "":
		return ok("Cache", "memory only")
	}
	return ok("Cache", fmt.Sprintf("%s tier, %d entries", stats.PersistentBackend, stats.PersistentEntries))
}

func (s *Service) binariesCheck(context.Context) domain.HealthCheck {
	lookPath := s.LookPath
	if lookPath == nil {
		lookPath = exec.LookPath
	}
	binaries := s.Binaries
	if binaries == nil {
		binaries = defaultBinaries
	}
	var missing []string
	for _, bin := range binaries {
		if _, err := lookPath(bin); err != nil {
			missing = append(missing, bin)
		}
	}
	if len(missing) > 0 {
		return warn("Nix tools", "not on PATH: "+strings.Join(missing, ", "))
	}
	return ok("Nix tools", fmt.Sprintf("%d found", len(binaries)))
}

func (s *Service) substituterCheck(ctx context.Context) domain.HealthCheck {
	client := s.HTTPClient
	if client == nil {
		client = resty.New().SetTimeout(domain.DefaultHTTPClientTimeout)
	}
	url := s.SubstituterURL
	if url == "" {
		url = DefaultSubstituterURL
	}
	resp, err := client.R().SetContext(ctx).Get(url)
	if err != nil {
		return warn("Binary cache", fmt.Sprintf("unreachable: %v", err))
	}
	if !resp.IsSuccess() {
		return warn("Binary cache", fmt.Sprintf("%s answered %d", url, resp.StatusCode()))
	}
	if !strings.Contains(resp.String(), "StoreDir:") {
		return warn("Binary cache", "response is not a nix-cache-info document")
	}
	return ok("Binary cache", "reachable")
}

func ok(name, details string) domain.HealthCheck {
	return domain.HealthCheck{Name: name, Status: domain.HealthOK, Details: details}
}

func warn(name, details string) domain.HealthCheck {
	return domain.HealthCheck{Name: name, Status: domain.HealthWarn, Details: details}
}

func fail(name, details string) domain.HealthCheck {
	return domain.HealthCheck{Name: name, Status: domain.HealthError, Details: details}
}
