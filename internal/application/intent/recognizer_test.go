package intent

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/doeshing/nixsay/assets"
	"github.com/doeshing/nixsay/internal/domain"
	"github.com/doeshing/nixsay/internal/infrastructure/knowledge"
)

func newRecognizer(t *testing.T) *Recognizer {
	t.Helper()
	kb, err := knowledge.Load(assets.DefaultKnowledgeYAML)
	require.NoError(t, err)
	return NewRecognizer(kb, 0, nil)
}

func TestRecognize(t *testing.T) {
	r := newRecognizer(t)

	tests := []struct {
		text         string
		wantKind     domain.OperationKind
		wantEntities map[string]string
		wantTier     string
		minConf      float64
	}{
		{text: "install firefox", wantKind: "install_package", wantEntities: map[string]string{"package": "firefox"}, wantTier: domain.TierPattern, minConf: 0.85},
		{text: "Please install Firefox!", wantKind: "install_package", wantEntities: map[string]string{"package": "firefox"}, wantTier: domain.TierPattern, minConf: 0.85},
		{text: "isntall FireFox", wantKind: "install_package", wantEntities: map[string]string{"package": "firefox"}, wantTier: domain.TierAlias, minConf: 0.5},
		{text: "install code", wantKind: "install_package", wantEntities: map[string]string{"package": "vscode"}, wantTier: domain.TierPattern, minConf: 0.85},
		{text: "firefox install", wantKind: "install_package", wantEntities: map[string]string{"package": "firefox"}, wantTier: domain.TierAlias, minConf: 0.5},
		{text: "remove vim", wantKind: "remove_package", wantEntities: map[string]string{"package": "vim"}, wantTier: domain.TierPattern, minConf: 0.85},
		{text: "get rid of emacs", wantKind: "remove_package", wantEntities: map[string]string{"package": "emacs"}, wantTier: domain.TierPattern, minConf: 0.85},
		{text: "search for a markdown editor", wantKind: "search_package", wantTier: domain.TierAlias, minConf: 0.5},
		{text: "update my system", wantKind: "update_system", wantEntities: map[string]string{}, wantTier: domain.TierPattern, minConf: 0.85},
		{text: "roll back", wantKind: "rollback", wantEntities: map[string]string{}, wantTier: domain.TierPattern, minConf: 0.85},
		{text: "rebuild boot", wantKind: "rebuild", wantEntities: map[string]string{"rebuild_type": "boot"}, wantTier: domain.TierPattern, minConf: 0.85},
		{text: "switch to generation 42", wantKind: "switch_generation", wantEntities: map[string]string{"generation": "42"}, wantTier: domain.TierPattern, minConf: 0.85},
		{text: "list installed packages", wantKind: "list_installed", wantEntities: map[string]string{}, wantTier: domain.TierPattern, minConf: 0.85},
		{text: "what's installed?", wantKind: "list_installed", wantEntities: map[string]string{}, wantTier: domain.TierPattern, minConf: 0.85},
		{text: "show my generations", wantKind: "list_generations", wantEntities: map[string]string{}, wantTier: domain.TierPattern, minConf: 0.85},
		{text: "restart nginx", wantKind: "restart_service", wantEntities: map[string]string{"service": "nginx"}, wantTier: domain.TierPattern, minConf: 0.85},
		{text: "start nginx", wantKind: "start_service", wantEntities: map[string]string{"service": "nginx"}, wantTier: domain.TierPattern, minConf: 0.85},
		{text: "turn off the sshd service", wantKind: "stop_service", wantEntities: map[string]string{"service": "sshd"}, wantTier: domain.TierPattern, minConf: 0.85},
		{text: "stop nginx", wantKind: "stop_service", wantEntities: map[string]string{"service": "nginx"}, wantTier: domain.TierPattern, minConf: 0.85},
		{text: "list all services", wantKind: "list_services", wantEntities: map[string]string{}, wantTier: domain.TierPattern, minConf: 0.85},
		{text: "what services are running", wantKind: "list_services", wantEntities: map[string]string{}, wantTier: domain.TierPattern, minConf: 0.85},
		{text: "show logs for nginx", wantKind: "service_logs", wantEntities: map[string]string{"service": "nginx"}, wantTier: domain.TierPattern, minConf: 0.85},
		{text: "sshd logs", wantKind: "service_logs", wantEntities: map[string]string{"service": "sshd"}, wantTier: domain.TierPattern, minConf: 0.85},
		{text: "clean up", wantKind: "garbage_collect", wantEntities: map[string]string{}, wantTier: domain.TierPattern, minConf: 0.85},
		{text: "help", wantKind: "help", wantEntities: map[string]string{}, wantTier: domain.TierPattern, minConf: 0.85},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			got := r.Recognize(context.Background(), tt.text)
			require.Equal(t, tt.wantKind, got.Kind)
			require.Equal(t, tt.wantTier, got.Tier)
			require.GreaterOrEqual(t, got.Confidence, tt.minConf)
			require.Equal(t, tt.text, got.RawText)
			if tt.wantEntities != nil {
				require.Equal(t, tt.wantEntities, got.Entities)
			}
		})
	}
}

func TestRecognizeTypoMatchesExactRequest(t *testing.T) {
	r := newRecognizer(t)
	exact := r.Recognize(context.Background(), "install firefox")
	typo := r.Recognize(context.Background(), "isntall FireFox")

	require.Equal(t, exact.Kind, typo.Kind)
	require.Equal(t, exact.Entities, typo.Entities)
	require.GreaterOrEqual(t, typo.Confidence, 0.5)
}

func TestRecognizeUnknown(t *testing.T) {
	r := newRecognizer(t)
	for _, text := range []string{"frobnicate the quux", "", "   ", "the my a", "!!!"} {
		got := r.Recognize(context.Background(), text)
		require.True(t, got.Kind.IsUnknown(), "%q -> %s", text, got.Kind)
		require.Zero(t, got.Confidence)
		require.Equal(t, text, got.RawText)
	}
}

func TestRecognizeVagueEntity(t *testing.T) {
	r := newRecognizer(t)
	got := r.Recognize(context.Background(), "install something")

	require.Equal(t, domain.OperationKind("install_package"), got.Kind)
	require.InDelta(t, domain.VagueEntityConfidence, got.Confidence, 1e-9)
	_, ok := got.Entity("package")
	require.False(t, ok, "vague words must not become entities")
}

func TestRecognizeAmbiguousSlot(t *testing.T) {
	r := newRecognizer(t)
	got := r.Recognize(context.Background(), "install firefox vim")

	require.Equal(t, domain.OperationKind("install_package"), got.Kind)
	require.Equal(t, "firefox", got.Entities["package"])
	require.Equal(t, []string{"vim"}, got.Ambiguous["package"])
	require.True(t, got.HasAmbiguity())
}

func TestRecognizeRejectsStrayWordsForSystemOperations(t *testing.T) {
	r := newRecognizer(t)
	for _, text := range []string{"update firefox", "rollback firefox", "clean firefox", "firefox upgrade", "gc gc"} {
		got := r.Recognize(context.Background(), text)
		require.True(t, got.Kind.IsUnknown(), "%q -> %s", text, got.Kind)
		require.Zero(t, got.Confidence)
	}

	got := r.Recognize(context.Background(), "update my system")
	require.Equal(t, domain.OperationKind("update_system"), got.Kind)
}

func TestRecognizeRecordsIgnoredWordsForReads(t *testing.T) {
	r := newRecognizer(t)
	got := r.Recognize(context.Background(), "status firefox")

	require.Equal(t, domain.OperationKind("check_status"), got.Kind)
	require.Equal(t, domain.TierAlias, got.Tier)
	require.Equal(t, []string{"firefox"}, got.Ignored)
}

func TestRecognizeNegatedRequest(t *testing.T) {
	r := newRecognizer(t)
	for _, text := range []string{"don't install firefox", "do not update", "never remove vim", "Don’t install vim"} {
		got := r.Recognize(context.Background(), text)
		require.True(t, got.Kind.IsUnknown(), "%q -> %s", text, got.Kind)
	}
}

func TestRecognizeIsTotal(t *testing.T) {
	r := newRecognizer(t)
	inputs := []string{
		"install", "INSTALL INSTALL INSTALL", "rebuild rebuild", "日本語のテキスト",
		"install ../../etc/passwd", "search ;rm -rf /", "\x00\x01", "gc gc gc gc",
		"switch to generation", "a b c d e f g h i j k l m n o p",
	}
	for _, text := range inputs {
		got := r.Recognize(context.Background(), text)
		require.GreaterOrEqual(t, got.Confidence, 0.0, text)
		require.LessOrEqual(t, got.Confidence, 1.0, text)
		require.NotNil(t, got.Entities, text)
		require.Equal(t, text, got.RawText)
	}
}

func TestRecognizeRespectsThreshold(t *testing.T) {
	kb, err := knowledge.Load(assets.DefaultKnowledgeYAML)
	require.NoError(t, err)
	strict := NewRecognizer(kb, 0.95, nil)

	got := strict.Recognize(context.Background(), "isntall firefox")
	require.True(t, got.Kind.IsUnknown())
}

func TestNormalize(t *testing.T) {
	require.Equal(t, "install firefox", Normalize("  Install   FIREFOX?! "))
	require.Equal(t, "", Normalize(" ... "))
}
