package executor

import (
	"fmt"
	"strings"

	"github.com/doeshing/nixsay/internal/domain"
)

var slotLabels = map[string]string{
	"package":      "package",
	"service":      "service",
	"generation":   "generation number",
	"rebuild_type": "rebuild mode",
}

func slotLabel(slot string) string {
	if label, ok := slotLabels[slot]; ok {
		return label
	}
	return strings.ReplaceAll(slot, "_", " ")
}

func noMatchExplanation(suggestions []string) string {
	text := domain.ErrNoMatch.Describe()
	if len(suggestions) == 0 {
		return text + ` Try "help" to see what I can do.`
	}
	return fmt.Sprintf("%s Did you mean: %s?", text, strings.Join(suggestions, ", "))
}

func missingExplanation(tmpl domain.OperationTemplate, missing []string) string {
	labels := make([]string, 0, len(missing))
	for _, slot := range missing {
		labels = append(labels, slotLabel(slot))
	}
	text := fmt.Sprintf("%s Which %s?", domain.ErrMissingEntity.Describe(), strings.Join(labels, " and "))
	if len(tmpl.Examples) > 0 {
		text += fmt.Sprintf(" For example: %q.", tmpl.Examples[0])
	}
	return text
}

func failureExplanation(kind domain.ErrorKind, detail string) string {
	text := kind.Describe()
	if detail != "" {
		text += " " + detail
	}
	switch kind {
	case domain.ErrTimeout:
		text += " Retry with a longer --timeout."
	case domain.ErrPrivilegeRequired:
		text += " Make sure sudo works without a password prompt, or run nixsay as root."
	}
	return text
}

// preview describes what a mutating or privileged command would do.
func preview(tmpl domain.OperationTemplate, spec domain.CommandSpec) string {
	text := fmt.Sprintf("%s. Would run: %s.", tmpl.Description, spec.String())
	if spec.RequiresPrivilege {
		text += " This needs administrator rights."
	}
	if tmpl.Mutating {
		text += " It changes your system; NixOS keeps the previous generation so it can be rolled back."
	}
	return text
}

// rationale answers EXPLAIN requests without running anything.
func rationale(tmpl domain.OperationTemplate, spec domain.CommandSpec, intent domain.Intent) string {
	var b strings.Builder
	fmt.Fprintf(&b, "I read %q as %s", intent.RawText, tmpl.Kind)
	if intent.Confidence > 0 {
		fmt.Fprintf(&b, " (confidence %.2f, %s match)", intent.Confidence, intent.Tier)
	}
	b.WriteString(". ")
	b.WriteString(tmpl.Description)
	b.WriteString(".")
	if tmpl.Builtin() {
		b.WriteString(" It is answered by nixsay itself; no command runs.")
		return withAmbiguity(intent, b.String())
	}
	fmt.Fprintf(&b, " The command is: %s.", spec.String())
	if spec.RequiresPrivilege {
		b.WriteString(" It needs administrator rights.")
	}
	if tmpl.Mutating {
		b.WriteString(" It changes system state and its results are never cached.")
	} else if tmpl.Cacheable() {
		fmt.Fprintf(&b, " It only reads state; results are reused for %s.", tmpl.DefaultCacheTTL)
	} else {
		b.WriteString(" It only reads state.")
	}
	return withAmbiguity(intent, b.String())
}

// withAmbiguity appends the unused candidates and ignored words the recognizer saw, so
// the choice it made is visible to the user.
func withAmbiguity(intent domain.Intent, text string) string {
	var notes []string
	for _, slot := range intent.AmbiguousSlots() {
		used, _ := intent.Entity(slot)
		notes = append(notes, fmt.Sprintf("for %s I used %q but also saw %s",
			slotLabel(slot), used, quoteAll(intent.Ambiguous[slot])))
	}
	if len(intent.Ignored) > 0 {
		notes = append(notes, fmt.Sprintf("I ignored %s, which this operation does not take", quoteAll(intent.Ignored)))
	}
	if len(notes) == 0 {
		return text
	}
	return fmt.Sprintf("%s Note: %s. Ask again more precisely if that is not what you meant.", text, strings.Join(notes, "; "))
}

func quoteAll(values []string) string {
	quoted := make([]string, len(values))
	for i, v := range values {
		quoted[i] = fmt.Sprintf("%q", v)
	}
	return strings.Join(quoted, ", ")
}
