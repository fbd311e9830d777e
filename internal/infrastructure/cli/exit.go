package cli

import (
	"errors"
	"fmt"

	"github.com/doeshing/nixsay/internal/domain"
)

// ExitError carries a request's non-zero exit status through cobra. The result has
// already been rendered, so main prints nothing for it.
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("exit status %d", e.Code)
}

// ExitCode maps an error returned by the root command to a process exit status.
func ExitCode(err error) int {
	if err == nil {
		return domain.ExitSuccess
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return domain.ExitUnknownFailure
}

// IsReported reports whether err was already shown to the user.
func IsReported(err error) bool {
	var exitErr *ExitError
	return errors.As(err, &exitErr)
}
