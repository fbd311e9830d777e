// Package nix runs CommandSpecs against the Nix package manager, reading on-disk Nix
// state in-process where it can and spawning the Nix CLI otherwise.
package nix

import (
	"regexp"
	"strings"

	"github.com/doeshing/nixsay/internal/domain"
)

type stderrRule struct {
	kind    domain.ErrorKind
	re      *regexp.Regexp
	message string
}

// Rules are checked in order; privilege problems win over everything else because the
// other messages are often side effects of them.
var stderrRules = []stderrRule{
	{domain.ErrPrivilegeRequired, regexp.MustCompile(`(?i)permission denied|a password is required|must be (run as )?root|operation not permitted|^sudo:|\nsudo:|are you root`), "administrator rights are required"},
	{domain.ErrConflict, regexp.MustCompile(`(?i)is not installed|not installed|matches no derivations|already installed|collision between|conflicts? with|conflicting`), "the system state conflicts with this request"},
	{domain.ErrNoMatch, regexp.MustCompile(`(?i)attribute '[^']*' (in selection path '[^']*' )?(not found|missing)|does not provide attribute|undefined variable '[^']*'|no results (found|for)|package '[^']*' not found`), "no package with that name was found"},
}

var lockContention = regexp.MustCompile(`(?i)could not acquire lock|waiting for (the big garbage collector )?lock|database is locked|resource temporarily unavailable|lock on '[^']*' is held`)

// classify maps a failed command's stderr to the error taxonomy.
func classify(stderr string) *domain.OperationError {
	for _, rule := range stderrRules {
		if rule.re.MatchString(stderr) {
			return &domain.OperationError{Kind: rule.kind, Message: rule.message, Stderr: stderr}
		}
	}
	return &domain.OperationError{
		Kind:    domain.ErrUnknownFailure,
		Message: firstLine(stderr),
		Stderr:  stderr,
	}
}

// isLockContention reports whether a failure is worth retrying.
func isLockContention(stderr string) bool {
	return lockContention.MatchString(stderr)
}

func firstLine(text string) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return "command failed without output"
	}
	if i := strings.IndexByte(text, '\n'); i >= 0 {
		return text[:i]
	}
	return text
}
