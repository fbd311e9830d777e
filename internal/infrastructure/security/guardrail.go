// Package security checks generated CommandSpecs against YAML guardrail rules before
// they reach a Nix backend.
package security

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"

	"gopkg.in/yaml.v3"

	"github.com/doeshing/nixsay/internal/domain"
	"github.com/doeshing/nixsay/internal/pkg/filesystem"
	"github.com/doeshing/nixsay/internal/ports"
)

const ruleAllowedBinaries = "allowed_binaries"

// ArgumentRule flags CommandSpec arguments matching Pattern. Binaries, when set,
// limits the rule to those executables.
type ArgumentRule struct {
	Name     string   `yaml:"name"`
	Pattern  string   `yaml:"pattern"`
	Binaries []string `yaml:"binaries,omitempty"`
	Level    string   `yaml:"level"`
	Message  string   `yaml:"message"`
	Action   string   `yaml:"action"`
}

// RuleSet is the guardrail YAML document.
type RuleSet struct {
	Rules struct {
		AllowedBinaries []string       `yaml:"allowed_binaries"`
		DangerPatterns  []ArgumentRule `yaml:"danger_patterns"`
	} `yaml:"rules"`
}

type argumentMatcher struct {
	rule     ArgumentRule
	re       *regexp.Regexp
	level    domain.RiskLevel
	action   domain.GuardrailAction
	binaries map[string]struct{}
}

func (m argumentMatcher) appliesTo(binary string) bool {
	if len(m.binaries) == 0 {
		return true
	}
	_, ok := m.binaries[binary]
	return ok
}

// Guardrail implements ports.SecurityService.
type Guardrail struct {
	allowed  map[string]struct{}
	matchers []argumentMatcher
}

// NewGuardrail reads rules from path. A missing file, or a section the file leaves
// empty, falls back to defaults.
func NewGuardrail(path string, defaults []byte) (*Guardrail, error) {
	set, err := readRuleSet(path, defaults)
	if err != nil {
		return nil, err
	}

	g := &Guardrail{allowed: toSet(set.Rules.AllowedBinaries)}
	for i, rule := range set.Rules.DangerPatterns {
		re, err := regexp.Compile(rule.Pattern)
		if err != nil {
			return nil, fmt.Errorf("guardrail rule %d (%s): %w", i, rule.Name, err)
		}
		if rule.Name == "" {
			rule.Name = rule.Pattern
		}
		level := domain.ParseRiskLevel(rule.Level)
		g.matchers = append(g.matchers, argumentMatcher{
			rule:     rule,
			re:       re,
			level:    level,
			action:   domain.ParseGuardrailAction(rule.Action, level),
			binaries: toSet(rule.Binaries),
		})
	}
	return g, nil
}

// Evaluate blocks binaries outside the allow list and otherwise reports every argument
// rule that fires. The most severe rule decides the action.
func (g *Guardrail) Evaluate(spec domain.CommandSpec) (domain.RiskAssessment, error) {
	if g == nil {
		return domain.RiskAssessment{}, errors.New("guardrail not loaded")
	}
	binary := filepath.Base(spec.Verb)
	if _, ok := g.allowed[binary]; !ok || spec.Verb == "" {
		return domain.RiskAssessment{
			Level:        domain.RiskCritical,
			Action:       domain.ActionBlock,
			Reasons:      []string{fmt.Sprintf("%q is not an allowed Nix tool", spec.Verb)},
			MatchedRules: []string{ruleAllowedBinaries},
		}, nil
	}

	assessment := domain.RiskAssessment{Level: domain.RiskSafe, Action: domain.ActionAllow}
	for _, m := range g.matchers {
		if !m.appliesTo(binary) || !anyMatch(m.re, spec.Args) {
			continue
		}
		if m.level.Exceeds(assessment.Level) {
			assessment.Level = m.level
			assessment.Action = m.action
		}
		assessment.Reasons = append(assessment.Reasons, m.rule.Message)
		assessment.MatchedRules = append(assessment.MatchedRules, m.rule.Name)
	}
	return assessment, nil
}

func anyMatch(re *regexp.Regexp, args []string) bool {
	for _, arg := range args {
		if re.MatchString(arg) {
			return true
		}
	}
	return false
}

func readRuleSet(path string, defaults []byte) (RuleSet, error) {
	var fallback RuleSet
	if err := yaml.Unmarshal(defaults, &fallback); err != nil {
		return RuleSet{}, fmt.Errorf("parse default guardrail rules: %w", err)
	}

	if path == "" {
		path = filesystem.StatePath("guardrail.yaml")
	}
	data, err := os.ReadFile(filesystem.ExpandPath(path))
	if errors.Is(err, fs.ErrNotExist) {
		return fallback, nil
	}
	if err != nil {
		return RuleSet{}, fmt.Errorf("read guardrail rules: %w", err)
	}

	var set RuleSet
	if err := yaml.Unmarshal(data, &set); err != nil {
		return RuleSet{}, fmt.Errorf("parse guardrail rules %s: %w", path, err)
	}
	if len(set.Rules.AllowedBinaries) == 0 {
		set.Rules.AllowedBinaries = fallback.Rules.AllowedBinaries
	}
	if len(set.Rules.DangerPatterns) == 0 {
		set.Rules.DangerPatterns = fallback.Rules.DangerPatterns
	}
	return set, nil
}

func toSet(items []string) map[string]struct{} {
	set := make(map[string]struct{}, len(items))
	for _, item := range items {
		set[item] = struct{}{}
	}
	return set
}

var _ ports.SecurityService = (*Guardrail)(nil)
