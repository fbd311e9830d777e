package knowledge

import (
	"fmt"
	"regexp"
	"regexp/syntax"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/doeshing/nixsay/internal/domain"
)

// File is the YAML schema root of a knowledge definition set.
type File struct {
	Version        int               `yaml:"version"`
	Stopwords      []string          `yaml:"stopwords"`
	VagueWords     []string          `yaml:"vague_words"`
	Negations      []string          `yaml:"negations"`
	Packages       []PackageDef      `yaml:"packages"`
	EntityPatterns map[string]string `yaml:"entity_patterns"`
	Operations     []OperationDef    `yaml:"operations"`
	Patterns       []PatternDef      `yaml:"patterns"`
}

// PackageDef names a package attribute and the nicknames users type for it.
type PackageDef struct {
	Name    string   `yaml:"name"`
	Aliases []string `yaml:"aliases"`
}

// OperationDef is the YAML form of an OperationTemplate.
type OperationDef struct {
	Kind        string            `yaml:"kind"`
	Description string            `yaml:"description"`
	Aliases     []string          `yaml:"aliases"`
	Examples    []string          `yaml:"examples"`
	Required    []string          `yaml:"required"`
	Optional    map[string]string `yaml:"optional"`
	Command     []string          `yaml:"command"`
	Mutating    bool              `yaml:"mutating"`
	Privileged  bool              `yaml:"privileged"`
	CacheTTL    string            `yaml:"cache_ttl"`
	DependsOn   []string          `yaml:"depends_on"`
	Invalidates []struct {
		Tag         string `yaml:"tag"`
		MatchEntity string `yaml:"match_entity"`
	} `yaml:"invalidates"`
}

// PatternDef is one exact-pattern recognizer rule.
type PatternDef struct {
	Name       string            `yaml:"name"`
	Kind       string            `yaml:"kind"`
	Expr       string            `yaml:"expr"`
	Confidence float64           `yaml:"confidence"`
	Defaults   map[string]string `yaml:"defaults"`
}

func parseFile(data []byte) (File, error) {
	var file File
	if err := yaml.Unmarshal(data, &file); err != nil {
		return File{}, fmt.Errorf("parse knowledge base: %w", err)
	}
	if len(file.Operations) == 0 {
		return File{}, fmt.Errorf("knowledge base defines no operations")
	}
	return file, nil
}

func compileTemplate(def OperationDef, shapes map[string]*regexp.Regexp) (domain.OperationTemplate, error) {
	kind := domain.OperationKind(strings.TrimSpace(def.Kind))
	if kind.IsUnknown() {
		return domain.OperationTemplate{}, fmt.Errorf("operation without kind")
	}
	if def.Privileged && !def.Mutating {
		return domain.OperationTemplate{}, fmt.Errorf("operation %s: privileged operations must be mutating", kind)
	}

	var ttl time.Duration
	if def.CacheTTL != "" {
		parsed, err := time.ParseDuration(def.CacheTTL)
		if err != nil {
			return domain.OperationTemplate{}, fmt.Errorf("operation %s: cache_ttl: %w", kind, err)
		}
		ttl = parsed
	}
	if def.Mutating && ttl > 0 {
		return domain.OperationTemplate{}, fmt.Errorf("operation %s: mutating operations cannot be cached", kind)
	}
	if def.Mutating && len(def.Command) == 0 {
		return domain.OperationTemplate{}, fmt.Errorf("operation %s: mutating operations need a command", kind)
	}

	tmpl := domain.OperationTemplate{
		Kind:             kind,
		Description:      def.Description,
		Aliases:          lowerAll(def.Aliases),
		Examples:         def.Examples,
		RequiredEntities: def.Required,
		OptionalEntities: def.Optional,
		Mutating:         def.Mutating,
		Privileged:       def.Privileged,
		DefaultCacheTTL:  ttl,
		DependsOn:        def.DependsOn,
		EntityPatterns:   map[string]*regexp.Regexp{},
	}
	if len(def.Command) > 0 {
		tmpl.Verb = def.Command[0]
		tmpl.Args = append([]string(nil), def.Command[1:]...)
	}
	for _, rule := range def.Invalidates {
		if rule.MatchEntity != "" && !hasSlot(tmpl, rule.MatchEntity) {
			return domain.OperationTemplate{}, fmt.Errorf("operation %s: invalidation matches unknown slot %q", kind, rule.MatchEntity)
		}
		tmpl.Invalidates = append(tmpl.Invalidates, domain.InvalidationRule{Tag: rule.Tag, MatchEntity: rule.MatchEntity})
	}
	for _, slot := range slots(tmpl) {
		if re, ok := shapes[slot]; ok {
			tmpl.EntityPatterns[slot] = re
		}
	}
	return tmpl, nil
}

func compilePattern(def PatternDef, order int, templates map[domain.OperationKind]domain.OperationTemplate) (domain.PatternRule, error) {
	kind := domain.OperationKind(def.Kind)
	tmpl, ok := templates[kind]
	if !ok {
		return domain.PatternRule{}, fmt.Errorf("pattern %s: unknown kind %q", def.Name, def.Kind)
	}
	re, err := regexp.Compile(def.Expr)
	if err != nil {
		return domain.PatternRule{}, fmt.Errorf("pattern %s: %w", def.Name, err)
	}
	for _, group := range re.SubexpNames() {
		if group != "" && !hasSlot(tmpl, group) {
			return domain.PatternRule{}, fmt.Errorf("pattern %s: group %q is not a slot of %s", def.Name, group, kind)
		}
	}
	if def.Confidence <= 0 || def.Confidence > 1 {
		return domain.PatternRule{}, fmt.Errorf("pattern %s: confidence must be within (0,1]", def.Name)
	}
	weight, err := specificity(def.Expr)
	if err != nil {
		return domain.PatternRule{}, fmt.Errorf("pattern %s: %w", def.Name, err)
	}
	return domain.PatternRule{
		Name:        def.Name,
		Expr:        re,
		Kind:        kind,
		Confidence:  def.Confidence,
		Defaults:    def.Defaults,
		Specificity: weight,
		Order:       order,
	}, nil
}

// specificity counts the literal runes a match must contain. Alternations count their
// shortest branch and optional or starred parts count nothing.
func specificity(expr string) (int, error) {
	parsed, err := syntax.Parse(expr, syntax.Perl)
	if err != nil {
		return 0, err
	}
	return literalWeight(parsed), nil
}

func literalWeight(re *syntax.Regexp) int {
	switch re.Op {
	case syntax.OpLiteral:
		return len(re.Rune)
	case syntax.OpCharClass, syntax.OpAnyChar, syntax.OpAnyCharNotNL:
		return 0
	case syntax.OpCapture, syntax.OpPlus:
		return literalWeight(re.Sub[0])
	case syntax.OpRepeat:
		return re.Min * literalWeight(re.Sub[0])
	case syntax.OpConcat:
		total := 0
		for _, sub := range re.Sub {
			total += literalWeight(sub)
		}
		return total
	case syntax.OpAlternate:
		shortest := -1
		for _, sub := range re.Sub {
			if w := literalWeight(sub); shortest < 0 || w < shortest {
				shortest = w
			}
		}
		if shortest < 0 {
			return 0
		}
		return shortest
	default:
		return 0
	}
}

func slots(tmpl domain.OperationTemplate) []string {
	out := append([]string(nil), tmpl.RequiredEntities...)
	for slot := range tmpl.OptionalEntities {
		out = append(out, slot)
	}
	return out
}

func hasSlot(tmpl domain.OperationTemplate, name string) bool {
	for _, slot := range slots(tmpl) {
		if slot == name {
			return true
		}
	}
	return false
}

func lowerAll(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.ToLower(strings.TrimSpace(v)); v != "" {
			out = append(out, v)
		}
	}
	return out
}
