package cli

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/doeshing/nixsay/internal/domain"
)

// RenderResult prints a request result in a friendly, ASCII-only format. Command
// output and explanations go to out; failures go to errOut.
func RenderResult(out, errOut io.Writer, result domain.Result, verbose bool) {
	if output := strings.TrimRight(result.Output, "\n"); output != "" {
		fmt.Fprintln(out, output)
	}

	if result.Success {
		if result.Explanation != "" {
			fmt.Fprintln(out, result.Explanation)
		}
	} else {
		fmt.Fprintf(errOut, "Error (%s): %s\n", result.Error, result.Explanation)
	}

	if verbose {
		backend := result.Backend
		if backend == "" {
			backend = "-"
		}
		fmt.Fprintf(errOut, "kind=%s stage=%s backend=%s cached=%t took=%s\n",
			result.Kind, result.Stage, backend, result.FromCache, result.Duration.Round(time.Millisecond))
	}
}
