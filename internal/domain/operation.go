package domain

import (
	"regexp"
	"sort"
	"strings"
	"time"
)

// State tags shared between read-only results and the mutations that change them.
const (
	TagInstalledPackages = "installed_packages"
	TagGenerations       = "generations"
	TagSystemStatus      = "system_status"
	TagSystemConfig      = "system_config"
	TagPackageSearch     = "package_search"
	TagSearchIndex       = "search_index"
	TagServices          = "services"
)

// InvalidationRule names a state tag a successful mutation invalidates. When
// MatchEntity is set, only entries whose entities contain the value of that slot
// are dropped.
type InvalidationRule struct {
	Tag         string
	MatchEntity string
}

// OperationTemplate describes one operation kind: how to build its command, whether it
// mutates system state, and how its results are cached and invalidated.
type OperationTemplate struct {
	Kind             OperationKind
	Description      string
	Aliases          []string
	Examples         []string
	RequiredEntities []string
	// OptionalEntities maps optional slots to their default value.
	OptionalEntities map[string]string
	Verb             string
	Args             []string
	Mutating         bool
	Privileged       bool
	DefaultCacheTTL  time.Duration
	DependsOn        []string
	Invalidates      []InvalidationRule
	EntityPatterns   map[string]*regexp.Regexp
}

// Cacheable reports whether successful results of this template may be cached.
func (t OperationTemplate) Cacheable() bool {
	return !t.Mutating && t.DefaultCacheTTL > 0
}

// Builtin reports whether the operation is answered without running a command.
func (t OperationTemplate) Builtin() bool {
	return t.Verb == ""
}

// MissingEntities lists required slots that are absent or empty.
func (t OperationTemplate) MissingEntities(entities map[string]string) []string {
	var missing []string
	for _, name := range t.RequiredEntities {
		if strings.TrimSpace(entities[name]) == "" {
			missing = append(missing, name)
		}
	}
	return missing
}

// InvalidEntity returns the first slot whose value does not match its shape pattern.
// Slots are checked in sorted order so the report is deterministic.
func (t OperationTemplate) InvalidEntity(entities map[string]string) (string, string, bool) {
	names := make([]string, 0, len(t.EntityPatterns))
	for name := range t.EntityPatterns {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		value, ok := entities[name]
		if !ok || value == "" {
			continue
		}
		if !t.EntityPatterns[name].MatchString(value) {
			return name, value, true
		}
	}
	return "", "", false
}

// Build expands the template's argument placeholders ("{slot}") with entity values.
// Optional slots fall back to their default; an argument whose placeholder resolves to
// an empty value is dropped. The returned spec shares no state with the template.
func (t OperationTemplate) Build(entities map[string]string) CommandSpec {
	args := make([]string, 0, len(t.Args))
	for _, arg := range t.Args {
		expanded, keep := expandArg(arg, func(slot string) string {
			if v := strings.TrimSpace(entities[slot]); v != "" {
				return v
			}
			return t.OptionalEntities[slot]
		})
		if keep {
			args = append(args, expanded)
		}
	}
	return CommandSpec{
		Kind:              t.Kind,
		Verb:              t.Verb,
		Args:              args,
		RequiresPrivilege: t.Privileged,
	}
}

func expandArg(arg string, lookup func(string) string) (string, bool) {
	if !strings.Contains(arg, "{") {
		return arg, true
	}
	var b strings.Builder
	empty := false
	rest := arg
	for {
		open := strings.IndexByte(rest, '{')
		if open < 0 {
			b.WriteString(rest)
			break
		}
		closing := strings.IndexByte(rest[open:], '}')
		if closing < 0 {
			b.WriteString(rest)
			break
		}
		b.WriteString(rest[:open])
		value := lookup(rest[open+1 : open+closing])
		if value == "" {
			empty = true
		}
		b.WriteString(value)
		rest = rest[open+closing+1:]
	}
	if empty && strings.TrimSpace(b.String()) == "" {
		return "", false
	}
	return b.String(), true
}

// CommandSpec is a concrete invocation built fresh for each request.
type CommandSpec struct {
	Kind              OperationKind
	Verb              string
	Args              []string
	RequiresPrivilege bool
}

// Argv returns the verb followed by its arguments.
func (c CommandSpec) Argv() []string {
	argv := make([]string, 0, len(c.Args)+1)
	argv = append(argv, c.Verb)
	return append(argv, c.Args...)
}

// String renders the command for display and for Result.CommandsRun.
func (c CommandSpec) String() string {
	return strings.Join(c.Argv(), " ")
}
