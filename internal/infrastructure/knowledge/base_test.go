package knowledge

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/doeshing/nixsay/assets"
	"github.com/doeshing/nixsay/internal/domain"
)

func loadDefault(t *testing.T) *Base {
	t.Helper()
	base, err := Load(assets.DefaultKnowledgeYAML)
	require.NoError(t, err)
	return base
}

func TestDefaultCatalogueInvariants(t *testing.T) {
	base := loadDefault(t)

	kinds := base.AllKinds()
	require.NotEmpty(t, kinds)
	for _, kind := range kinds {
		tmpl, ok := base.Lookup(kind)
		require.True(t, ok, kind)
		if tmpl.Privileged {
			require.True(t, tmpl.Mutating, "%s is privileged but not mutating", kind)
		}
		if tmpl.Mutating {
			require.Zero(t, tmpl.DefaultCacheTTL, "%s is mutating but cacheable", kind)
		}
	}

	search, ok := base.Lookup("search_package")
	require.True(t, ok)
	require.Equal(t, 24*time.Hour, search.DefaultCacheTTL)
	installed, _ := base.Lookup("list_installed")
	require.Equal(t, 5*time.Minute, installed.DefaultCacheTTL)
	require.Contains(t, installed.DependsOn, domain.TagInstalledPackages)
}

func TestLookupUnknownKind(t *testing.T) {
	base := loadDefault(t)
	_, ok := base.Lookup("frobnicate")
	require.False(t, ok)
}

func TestMatchAlias(t *testing.T) {
	base := loadDefault(t)

	tests := []struct {
		token    string
		wantKind domain.OperationKind
		wantDist int
		wantOK   bool
	}{
		{token: "install", wantKind: "install_package", wantDist: 0, wantOK: true},
		{token: "INSTALL", wantKind: "install_package", wantDist: 0, wantOK: true},
		{token: "isntall", wantKind: "install_package", wantDist: 2, wantOK: true},
		{token: "uninstall", wantKind: "remove_package", wantDist: 0, wantOK: true},
		{token: "rollbak", wantKind: "rollback", wantDist: 1, wantOK: true},
		{token: "undoo", wantKind: "rollback", wantDist: 1, wantOK: true},
		{token: "ad", wantOK: false},
		{token: "adt", wantOK: false},
		{token: "frobnicate", wantOK: false},
		{token: "", wantOK: false},
	}
	for _, tt := range tests {
		t.Run(tt.token, func(t *testing.T) {
			kind, dist, ok := base.MatchAlias(tt.token)
			require.Equal(t, tt.wantOK, ok)
			if !tt.wantOK {
				return
			}
			require.Equal(t, tt.wantKind, kind)
			require.Equal(t, tt.wantDist, dist)
		})
	}
}

func TestMatchAliasTieBreaksByDeclarationOrder(t *testing.T) {
	base, err := Load([]byte(`
operations:
  - kind: first
    aliases: [abcdef]
  - kind: second
    aliases: [abcdeg]
`))
	require.NoError(t, err)

	kind, dist, ok := base.MatchAlias("abcdex")
	require.True(t, ok)
	require.Equal(t, 1, dist)
	require.Equal(t, domain.OperationKind("first"), kind)
}

func TestResolvePackage(t *testing.T) {
	base := loadDefault(t)

	name, ok := base.ResolvePackage("code")
	require.True(t, ok)
	require.Equal(t, "vscode", name)

	name, ok = base.ResolvePackage("Firefox")
	require.True(t, ok)
	require.Equal(t, "firefox", name)

	name, ok = base.ResolvePackage("obscure-tool")
	require.False(t, ok)
	require.Equal(t, "obscure-tool", name)
}

func TestSuggest(t *testing.T) {
	base := loadDefault(t)

	got := base.Suggest("instal firefox", 3)
	require.NotEmpty(t, got)
	require.Equal(t, "install", got[0])
	require.LessOrEqual(t, len(got), 3)

	require.Empty(t, base.Suggest("", 3))
}

func TestPatternRulesSortedBySpecificity(t *testing.T) {
	base := loadDefault(t)
	rules := base.PatternRules()
	require.NotEmpty(t, rules)
	for i := 1; i < len(rules); i++ {
		prev, cur := rules[i-1], rules[i]
		require.GreaterOrEqual(t, prev.Specificity, cur.Specificity)
		if prev.Specificity == cur.Specificity {
			require.Less(t, prev.Order, cur.Order, "declaration order must break ties")
		}
	}
}

func TestSpecificity(t *testing.T) {
	tests := []struct {
		expr string
		want int
	}{
		{expr: `^rebuild$`, want: 7},
		{expr: `^(?:install|add)\s+(?P<package>\S+)$`, want: 3},
		{expr: `^rollback(?: my)?$`, want: 8},
		{expr: `^go to generation (?P<generation>\d+)$`, want: 17},
	}
	for _, tt := range tests {
		got, err := specificity(tt.expr)
		require.NoError(t, err)
		require.Equal(t, tt.want, got, tt.expr)
	}
}

func TestLoadRejectsInconsistentCatalogue(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{
			name: "privileged read-only",
			yaml: "operations:\n  - kind: peek\n    command: [cat]\n    privileged: true\n",
			want: "privileged operations must be mutating",
		},
		{
			name: "cacheable mutation",
			yaml: "operations:\n  - kind: poke\n    command: [nix-env]\n    mutating: true\n    cache_ttl: 1m\n",
			want: "cannot be cached",
		},
		{
			name: "duplicate alias",
			yaml: "operations:\n  - kind: a\n    aliases: [go]\n  - kind: b\n    aliases: [go]\n",
			want: "alias \"go\"",
		},
		{
			name: "pattern group without slot",
			yaml: "operations:\n  - kind: a\npatterns:\n  - name: p\n    kind: a\n    expr: '^(?P<package>x)$'\n    confidence: 0.9\n",
			want: "not a slot",
		},
		{
			name: "pattern for unknown kind",
			yaml: "operations:\n  - kind: a\npatterns:\n  - name: p\n    kind: b\n    expr: '^x$'\n    confidence: 0.9\n",
			want: "unknown kind",
		},
		{
			name: "empty",
			yaml: "version: 1\n",
			want: "no operations",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load([]byte(tt.yaml))
			require.Error(t, err)
			require.True(t, strings.Contains(err.Error(), tt.want), err.Error())
		})
	}
}

func TestLoadFileFallsBackToDefaults(t *testing.T) {
	base, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml"), assets.DefaultKnowledgeYAML)
	require.NoError(t, err)
	require.NotEmpty(t, base.AllKinds())

	path := filepath.Join(t.TempDir(), "knowledge.yaml")
	require.NoError(t, os.WriteFile(path, []byte("operations:\n  - kind: only\n    aliases: [solo]\n"), 0o600))
	custom, err := LoadFile(path, assets.DefaultKnowledgeYAML)
	require.NoError(t, err)
	if diff := cmp.Diff([]domain.OperationKind{"only"}, custom.AllKinds()); diff != "" {
		t.Fatalf("AllKinds mismatch (-want +got):\n%s", diff)
	}
}

func TestLevenshtein(t *testing.T) {
	require.Equal(t, 0, levenshtein("nix", "nix"))
	require.Equal(t, 3, levenshtein("", "nix"))
	require.Equal(t, 2, levenshtein("isntall", "install"))
	require.Equal(t, 1, levenshtein("héllo", "hello"))
}
