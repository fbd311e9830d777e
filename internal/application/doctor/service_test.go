package doctor

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/doeshing/nixsay/assets"
	"github.com/doeshing/nixsay/internal/domain"
	"github.com/doeshing/nixsay/internal/infrastructure/cache"
	"github.com/doeshing/nixsay/internal/infrastructure/knowledge"
)

type staticConfig struct {
	cfg domain.Config
	err error
}

func (s staticConfig) Load(context.Context) (domain.Config, error) { return s.cfg, s.err }

type allowAll struct{}

func (allowAll) Evaluate(domain.CommandSpec) (domain.RiskAssessment, error) {
	return domain.RiskAssessment{Level: domain.RiskSafe, Action: domain.ActionAllow}, nil
}

type nativeFlag bool

func (n nativeFlag) IsNativeAvailable() bool { return bool(n) }
func (nativeFlag) Run(context.Context, domain.CommandSpec, domain.ExecutionContext) (domain.RawResult, error) {
	return domain.RawResult{}, nil
}

func statusOf(report domain.HealthReport, name string) domain.HealthStatus {
	for _, check := range report.Checks {
		if check.Name == name {
			return check.Status
		}
	}
	return ""
}

func TestDoctorHealthyEnvironment(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("StoreDir: /nix/store\nWantMassQuery: 1\nPriority: 40\n"))
	}))
	defer server.Close()

	kb, err := knowledge.Load(assets.DefaultKnowledgeYAML)
	require.NoError(t, err)
	svc := &Service{
		ConfigProvider:  staticConfig{cfg: domain.Config{ConfigFormatVersion: "1"}},
		KnowledgeBase:   kb,
		SecurityService: allowAll{},
		PackageManager:  nativeFlag(true),
		Cache:           cache.New(cache.Options{}),
		SubstituterURL:  server.URL,
		LookPath:        func(bin string) (string, error) { return "/run/current-system/sw/bin/" + bin, nil },
	}

	report, err := svc.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, report.Checks, 7)
	require.Equal(t, "Config file", report.Checks[0].Name)
	for _, check := range report.Checks {
		require.Equal(t, domain.HealthOK, check.Status, "%s: %s", check.Name, check.Details)
	}
}

func TestDoctorDegradedEnvironment(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	svc := &Service{
		ConfigProvider: staticConfig{cfg: domain.Config{Logging: domain.LoggingSettings{Level: "loud"}}},
		PackageManager: nativeFlag(false),
		SubstituterURL: server.URL,
		LookPath: func(bin string) (string, error) {
			if bin == "nixos-rebuild" {
				return "", errors.New("not found")
			}
			return "/usr/bin/" + bin, nil
		},
	}

	report, err := svc.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, domain.HealthError, statusOf(report, "Config file"))
	require.Equal(t, domain.HealthWarn, statusOf(report, "Knowledge base"))
	require.Equal(t, domain.HealthWarn, statusOf(report, "Native backend"))
	require.Equal(t, domain.HealthWarn, statusOf(report, "Nix tools"))
	require.Equal(t, domain.HealthWarn, statusOf(report, "Binary cache"))
	require.Equal(t, domain.HealthWarn, statusOf(report, "Cache"))
}

func TestDoctorConfigLoadFailure(t *testing.T) {
	svc := &Service{ConfigProvider: staticConfig{err: errors.New("permission denied")}}

	report, err := svc.Run(context.Background())
	require.Error(t, err)
	require.Len(t, report.Checks, 1)
	require.Equal(t, domain.HealthError, report.Checks[0].Status)
}
