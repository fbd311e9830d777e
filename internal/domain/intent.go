// Package domain defines core business entities and value objects for nixsay.
//
// The domain layer is independent of infrastructure concerns: it describes what a
// recognized request looks like, how an operation is templated and executed, and the
// shape of the result handed back to presentation collaborators.
package domain

import (
	"regexp"
	"sort"
)

// OperationKind names an abstract package-manager capability (install, rollback, ...).
type OperationKind string

// KindUnknown is the universal "I don't know" signal produced by the recognizer.
const KindUnknown OperationKind = "unknown"

// IsUnknown reports whether the kind carries no operation.
func (k OperationKind) IsUnknown() bool {
	return k == "" || k == KindUnknown
}

// Recognizer tiers recorded on an Intent.
const (
	TierNone    = "none"
	TierPattern = "pattern"
	TierAlias   = "alias"
)

// Intent is the typed classification of a single user request.
// It is a value: callers receive copies and never mutate shared state.
type Intent struct {
	Kind       OperationKind
	Entities   map[string]string
	Confidence float64
	RawText    string

	// Ambiguous holds extra candidate values per entity slot that were not used.
	Ambiguous map[string][]string
	// Ignored holds words that fit no entity slot of the operation.
	Ignored []string
	// Tier records which recognizer tier produced the intent.
	Tier string
}

// UnknownIntent builds the fallback intent for text that could not be classified.
func UnknownIntent(text string) Intent {
	return Intent{
		Kind:       KindUnknown,
		Entities:   map[string]string{},
		Confidence: 0,
		RawText:    text,
		Tier:       TierNone,
	}
}

// Entity returns the value for slot name, if present and non-empty.
func (i Intent) Entity(name string) (string, bool) {
	v, ok := i.Entities[name]
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

// HasAmbiguity reports whether any slot had more than one candidate.
func (i Intent) HasAmbiguity() bool {
	for _, alts := range i.Ambiguous {
		if len(alts) > 0 {
			return true
		}
	}
	return false
}

// AmbiguousSlots returns slot names with alternatives, sorted for stable output.
func (i Intent) AmbiguousSlots() []string {
	var slots []string
	for slot, alts := range i.Ambiguous {
		if len(alts) > 0 {
			slots = append(slots, slot)
		}
	}
	sort.Strings(slots)
	return slots
}

// PatternRule is one exact-pattern recognizer rule. Named capture groups become
// entities; Defaults fills slots the expression does not capture.
type PatternRule struct {
	Name        string
	Expr        *regexp.Regexp
	Kind        OperationKind
	Confidence  float64
	Defaults    map[string]string
	Specificity int
	Order       int
}
