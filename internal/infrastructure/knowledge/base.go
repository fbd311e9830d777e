// Package knowledge loads the operation catalogue, alias vocabulary and recognizer
// rules, and answers lookups against them.
package knowledge

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/doeshing/nixsay/internal/domain"
	"github.com/doeshing/nixsay/internal/pkg/filesystem"
	"github.com/doeshing/nixsay/internal/ports"
)

// Base is an immutable knowledge base. It is safe for concurrent use.
type Base struct {
	templates map[domain.OperationKind]domain.OperationTemplate
	order     []domain.OperationKind

	aliases    []aliasEntry
	aliasIndex map[string]domain.OperationKind

	packages     map[string]string
	packageNames []string

	rules      []domain.PatternRule
	stopwords  map[string]struct{}
	vagueWords map[string]struct{}
	negations  map[string]struct{}
}

type aliasEntry struct {
	alias string
	kind  domain.OperationKind
}

// Load builds a Base from YAML. Any inconsistency is a startup error.
func Load(data []byte) (*Base, error) {
	file, err := parseFile(data)
	if err != nil {
		return nil, err
	}

	shapes := make(map[string]*regexp.Regexp, len(file.EntityPatterns))
	for slot, expr := range file.EntityPatterns {
		re, err := regexp.Compile(expr)
		if err != nil {
			return nil, fmt.Errorf("entity pattern %s: %w", slot, err)
		}
		shapes[slot] = re
	}

	b := &Base{
		templates:  make(map[domain.OperationKind]domain.OperationTemplate, len(file.Operations)),
		aliasIndex: map[string]domain.OperationKind{},
		packages:   map[string]string{},
		stopwords:  toSet(file.Stopwords),
		vagueWords: toSet(file.VagueWords),
		negations:  toSet(file.Negations),
	}

	for _, def := range file.Operations {
		tmpl, err := compileTemplate(def, shapes)
		if err != nil {
			return nil, err
		}
		if _, dup := b.templates[tmpl.Kind]; dup {
			return nil, fmt.Errorf("operation %s defined twice", tmpl.Kind)
		}
		b.templates[tmpl.Kind] = tmpl
		b.order = append(b.order, tmpl.Kind)

		for _, alias := range tmpl.Aliases {
			if owner, dup := b.aliasIndex[alias]; dup {
				return nil, fmt.Errorf("alias %q used by both %s and %s", alias, owner, tmpl.Kind)
			}
			b.aliasIndex[alias] = tmpl.Kind
			b.aliases = append(b.aliases, aliasEntry{alias: alias, kind: tmpl.Kind})
		}
	}

	for _, pkg := range file.Packages {
		name := strings.ToLower(strings.TrimSpace(pkg.Name))
		if name == "" {
			return nil, errors.New("package entry without name")
		}
		b.packageNames = append(b.packageNames, name)
		b.packages[name] = name
		for _, alias := range lowerAll(pkg.Aliases) {
			b.packages[alias] = name
		}
	}

	for i, def := range file.Patterns {
		rule, err := compilePattern(def, i, b.templates)
		if err != nil {
			return nil, err
		}
		b.rules = append(b.rules, rule)
	}
	sort.SliceStable(b.rules, func(i, j int) bool {
		return b.rules[i].Specificity > b.rules[j].Specificity
	})

	return b, nil
}

// LoadFile loads the knowledge base from path, or from defaults when path is empty or
// missing.
func LoadFile(path string, defaults []byte) (*Base, error) {
	if path == "" {
		return Load(defaults)
	}
	data, err := os.ReadFile(filesystem.ExpandPath(path))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Load(defaults)
		}
		return nil, fmt.Errorf("read knowledge file: %w", err)
	}
	return Load(data)
}

// Lookup implements ports.KnowledgeBase.
func (b *Base) Lookup(kind domain.OperationKind) (domain.OperationTemplate, bool) {
	tmpl, ok := b.templates[kind]
	return tmpl, ok
}

// ResolveAlias implements ports.KnowledgeBase.
func (b *Base) ResolveAlias(token string) (domain.OperationKind, bool) {
	kind, _, ok := b.MatchAlias(token)
	if !ok {
		return "", false
	}
	return kind, true
}

// MatchAlias resolves token case-insensitively, exact first, then by edit distance.
// Tokens shorter than four runes must match exactly; four or five runes allow one edit;
// longer tokens allow two. Ties go to the smaller distance, then declaration order.
func (b *Base) MatchAlias(token string) (domain.OperationKind, int, bool) {
	token = strings.ToLower(strings.TrimSpace(token))
	if token == "" {
		return "", 0, false
	}
	if kind, ok := b.aliasIndex[token]; ok {
		return kind, 0, true
	}

	limit := fuzzyLimit(token)
	if limit == 0 {
		return "", 0, false
	}
	best := -1
	var bestKind domain.OperationKind
	for _, entry := range b.aliases {
		d := levenshtein(token, entry.alias)
		if d <= limit && (best < 0 || d < best) {
			best = d
			bestKind = entry.kind
		}
	}
	if best < 0 {
		return "", 0, false
	}
	return bestKind, best, true
}

// AllKinds implements ports.KnowledgeBase, in declaration order.
func (b *Base) AllKinds() []domain.OperationKind {
	return append([]domain.OperationKind(nil), b.order...)
}

// ResolvePackage maps a nickname to its package attribute. Unknown tokens come back
// unchanged with ok=false.
func (b *Base) ResolvePackage(token string) (string, bool) {
	lowered := strings.ToLower(strings.TrimSpace(token))
	if name, ok := b.packages[lowered]; ok {
		return name, true
	}
	return lowered, false
}

// Suggest returns up to n aliases nearest to any word of text.
func (b *Base) Suggest(text string, n int) []string {
	words := strings.Fields(strings.ToLower(text))
	if len(words) == 0 || n <= 0 {
		return nil
	}

	type scored struct {
		alias string
		dist  int
		order int
	}
	var candidates []scored
	for i, entry := range b.aliases {
		best := -1
		for _, w := range words {
			if _, skip := b.stopwords[w]; skip {
				continue
			}
			if d := levenshtein(w, entry.alias); best < 0 || d < best {
				best = d
			}
		}
		if best < 0 {
			continue
		}
		if best <= suggestLimit(entry.alias) {
			candidates = append(candidates, scored{alias: entry.alias, dist: best, order: i})
		}
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].dist != candidates[j].dist {
			return candidates[i].dist < candidates[j].dist
		}
		return candidates[i].order < candidates[j].order
	})

	out := make([]string, 0, n)
	for _, c := range candidates {
		if len(out) == n {
			break
		}
		out = append(out, c.alias)
	}
	return out
}

// Vocabulary lists every operation alias in declaration order.
func (b *Base) Vocabulary() []string {
	out := make([]string, 0, len(b.aliases))
	for _, entry := range b.aliases {
		out = append(out, entry.alias)
	}
	return out
}

// Packages lists known package attribute names.
func (b *Base) Packages() []string {
	return append([]string(nil), b.packageNames...)
}

// PatternRules returns the recognizer rules, most specific first.
func (b *Base) PatternRules() []domain.PatternRule {
	return append([]domain.PatternRule(nil), b.rules...)
}

// Stopwords returns words the alias tier ignores.
func (b *Base) Stopwords() map[string]struct{} {
	return b.stopwords
}

// VagueWords returns filler words that weaken an entity match.
func (b *Base) VagueWords() map[string]struct{} {
	return b.vagueWords
}

// Negations returns words that turn a request into its opposite ("don't", "never").
func (b *Base) Negations() map[string]struct{} {
	return b.negations
}

func fuzzyLimit(token string) int {
	switch n := utf8.RuneCountInString(token); {
	case n < 4:
		return 0
	case n <= 5:
		return 1
	default:
		return 2
	}
}

func suggestLimit(alias string) int {
	limit := utf8.RuneCountInString(alias) / 2
	if limit < 2 {
		return 2
	}
	if limit > 3 {
		return 3
	}
	return limit
}

func toSet(values []string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, v := range lowerAll(values) {
		set[v] = struct{}{}
	}
	return set
}

var _ ports.AliasMatcher = (*Base)(nil)
