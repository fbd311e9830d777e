package commands

import (
	"fmt"
	"io"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/doeshing/nixsay/internal/app"
	"github.com/doeshing/nixsay/internal/version"
)

// NewVersionCommand prints build metadata and which backends this build can use.
func NewVersionCommand(container *app.Container) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show nixsay version information",
		RunE: func(cmd *cobra.Command, args []string) error {
			printVersion(cmd.OutOrStdout(), container)
			return nil
		},
	}
}

func printVersion(out io.Writer, container *app.Container) {
	fmt.Fprintf(out, "nixsay version %s (%s, %s/%s)\n", version.Resolved(), runtime.Version(), runtime.GOOS, runtime.GOARCH)
	if version.Commit != "" {
		fmt.Fprintf(out, "Commit: %s\n", version.Commit)
	}
	if version.BuildDate != "" {
		fmt.Fprintf(out, "Built: %s\n", version.BuildDate)
	}
	if container == nil {
		return
	}
	if container.KnowledgeBase != nil {
		fmt.Fprintf(out, "Operations: %d\n", len(container.KnowledgeBase.AllKinds()))
	}
	if container.Adapter != nil {
		backend := "subprocess only"
		if container.Adapter.IsNativeAvailable() {
			backend = "native + subprocess"
		}
		fmt.Fprintf(out, "Backends: %s\n", backend)
	}
}
