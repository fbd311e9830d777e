// Package intent turns free text into a typed Intent using the knowledge base's
// pattern rules and alias vocabulary.
package intent

import (
	"context"
	"sort"
	"strings"

	"github.com/doeshing/nixsay/internal/domain"
	"github.com/doeshing/nixsay/internal/ports"
)

const (
	knownEntityScore = 1.0
	otherEntityScore = 0.8
	vagueTokenScore  = 0.2
	fuzzyPenalty     = 0.15
)

// Recognizer implements ports.IntentRecognizer.
type Recognizer struct {
	kb            ports.AliasMatcher
	minConfidence float64
	logger        ports.Logger
}

// NewRecognizer builds a recognizer. minConfidence <= 0 selects the default threshold.
func NewRecognizer(kb ports.AliasMatcher, minConfidence float64, logger ports.Logger) *Recognizer {
	if minConfidence <= 0 {
		minConfidence = domain.DefaultMinConfidence
	}
	return &Recognizer{kb: kb, minConfidence: minConfidence, logger: logger}
}

// Recognize always returns exactly one Intent; text it cannot classify yields the
// unknown intent with zero confidence.
func (r *Recognizer) Recognize(_ context.Context, text string) domain.Intent {
	normalized := Normalize(text)
	if normalized == "" {
		return domain.UnknownIntent(text)
	}

	var candidates []domain.Intent
	for _, rule := range r.kb.PatternRules() {
		match := rule.Expr.FindStringSubmatch(normalized)
		if match == nil {
			continue
		}
		candidate := r.fromPattern(rule, match, text)
		if candidate.Confidence >= domain.PatternShortCircuitConfidence {
			r.debug("pattern matched", candidate, map[string]interface{}{"rule": rule.Name})
			return candidate
		}
		candidates = append(candidates, candidate)
	}

	if candidate, ok := r.fromAliases(normalized, text); ok {
		candidates = append(candidates, candidate)
	}

	best := -1
	for i, c := range candidates {
		if best < 0 || c.Confidence > candidates[best].Confidence {
			best = i
		}
	}
	if best >= 0 && candidates[best].Confidence >= r.minConfidence {
		r.debug("candidate accepted", candidates[best], nil)
		return candidates[best]
	}

	r.debug("no confident match", domain.UnknownIntent(text), map[string]interface{}{"candidates": len(candidates)})
	return domain.UnknownIntent(text)
}

func (r *Recognizer) fromPattern(rule domain.PatternRule, match []string, raw string) domain.Intent {
	entities := make(map[string]string, len(rule.Defaults))
	for slot, value := range rule.Defaults {
		entities[slot] = value
	}

	confidence := rule.Confidence
	vague := r.kb.VagueWords()
	for i, name := range rule.Expr.SubexpNames() {
		if name == "" || i >= len(match) || match[i] == "" {
			continue
		}
		value := match[i]
		if _, isVague := vague[value]; isVague {
			confidence = min(confidence, domain.VagueEntityConfidence)
			continue
		}
		entities[name] = r.canonical(name, value)
	}

	return domain.Intent{
		Kind:       rule.Kind,
		Entities:   entities,
		Confidence: confidence,
		RawText:    raw,
		Tier:       domain.TierPattern,
	}
}

// fromAliases scores the text token by token. The first token that resolves to an
// operation alias is the verb; entity slots are filled from the tokens after it, or
// from the tokens before it when the verb ends the sentence.
func (r *Recognizer) fromAliases(normalized, raw string) (domain.Intent, bool) {
	stop := r.kb.Stopwords()
	negations := r.kb.Negations()
	var content []string
	for _, token := range strings.Fields(normalized) {
		token = strings.Trim(token, `,;:!?"'()`)
		if token == "" {
			continue
		}
		if _, negated := negations[token]; negated {
			return domain.Intent{}, false
		}
		if _, skip := stop[token]; skip {
			continue
		}
		content = append(content, token)
	}
	if len(content) == 0 {
		return domain.Intent{}, false
	}

	verbIdx := -1
	var kind domain.OperationKind
	var verbScore float64
	for i, token := range content {
		k, dist, ok := r.kb.MatchAlias(token)
		if !ok {
			continue
		}
		if _, isPackage := r.kb.ResolvePackage(token); isPackage && dist > 0 {
			continue
		}
		verbIdx, kind = i, k
		verbScore = 1 - fuzzyPenalty*float64(dist)
		break
	}
	if verbIdx < 0 {
		return domain.Intent{}, false
	}
	tmpl, ok := r.kb.Lookup(kind)
	if !ok {
		return domain.Intent{}, false
	}

	var objects []string
	if verbIdx == len(content)-1 && verbIdx > 0 {
		objects = content[:verbIdx]
	} else {
		objects = content[verbIdx+1:]
	}

	slots := slotOrder(tmpl)
	entities := map[string]string{}
	ambiguous := map[string][]string{}
	vague := r.kb.VagueWords()
	total := verbScore
	filled := 0
	var ignored []string
	for _, token := range objects {
		if _, isVague := vague[token]; isVague {
			total += vagueTokenScore
			continue
		}
		if len(slots) == 0 {
			ignored = append(ignored, token)
			continue
		}
		slot := slots[min(filled, len(slots)-1)]
		value := r.canonical(slot, token)
		if slot == "package" {
			if _, known := r.kb.ResolvePackage(token); known {
				total += knownEntityScore
			} else {
				total += otherEntityScore
			}
		} else {
			total += otherEntityScore
		}
		if filled < len(slots) {
			entities[slot] = value
		} else {
			ambiguous[slot] = append(ambiguous[slot], value)
		}
		filled++
	}

	// "update firefox" must not turn into a system upgrade.
	if len(ignored) > 0 && tmpl.Mutating {
		r.debug("alias match rejected", domain.Intent{Kind: kind, Tier: domain.TierAlias},
			map[string]interface{}{"ignored": strings.Join(ignored, " ")})
		return domain.Intent{}, false
	}

	confidence := total / float64(len(content))
	if confidence > 1 {
		confidence = 1
	}
	intent := domain.Intent{
		Kind:       kind,
		Entities:   entities,
		Confidence: confidence,
		RawText:    raw,
		Tier:       domain.TierAlias,
	}
	if len(ambiguous) > 0 {
		intent.Ambiguous = ambiguous
	}
	if len(ignored) > 0 {
		intent.Ignored = ignored
	}
	return intent, true
}

func (r *Recognizer) canonical(slot, value string) string {
	if slot != "package" {
		return value
	}
	name, _ := r.kb.ResolvePackage(value)
	return name
}

func (r *Recognizer) debug(msg string, intent domain.Intent, extra map[string]interface{}) {
	if r.logger == nil {
		return
	}
	fields := map[string]interface{}{
		"kind":       string(intent.Kind),
		"confidence": intent.Confidence,
		"tier":       intent.Tier,
	}
	for k, v := range extra {
		fields[k] = v
	}
	r.logger.Debug(msg, fields)
}

// Normalize lowercases text, straightens apostrophes, collapses whitespace and trims
// trailing punctuation.
func Normalize(text string) string {
	text = strings.ReplaceAll(text, "’", "'")
	collapsed := strings.Join(strings.Fields(strings.ToLower(text)), " ")
	return strings.TrimRight(collapsed, ".,!?;: ")
}

func slotOrder(tmpl domain.OperationTemplate) []string {
	slots := append([]string(nil), tmpl.RequiredEntities...)
	optional := make([]string, 0, len(tmpl.OptionalEntities))
	for slot := range tmpl.OptionalEntities {
		optional = append(optional, slot)
	}
	sort.Strings(optional)
	return append(slots, optional...)
}

var _ ports.IntentRecognizer = (*Recognizer)(nil)
