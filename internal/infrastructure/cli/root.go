package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/doeshing/nixsay/internal/app"
	"github.com/doeshing/nixsay/internal/application/request"
	"github.com/doeshing/nixsay/internal/domain"
	"github.com/doeshing/nixsay/internal/infrastructure/cli/commands"
)

// Options holds CLI-level configuration.
type Options struct {
	Verbose    bool
	ConfigPath string
}

// NewRootCmd builds the container and wires the cobra root command. The returned
// cleanup releases stores and flushes logs.
func NewRootCmd(ctx context.Context, opts Options) (*cobra.Command, func() error, error) {
	prompter := NewPrompter(nil, nil)
	container, err := app.BuildContainer(ctx, app.Options{
		Verbose:    opts.Verbose,
		ConfigPath: opts.ConfigPath,
		Prompter:   prompter,
	})
	if err != nil {
		return nil, nil, err
	}
	return newRootCommand(container, prompter, opts.Verbose), container.Close, nil
}

func newRootCommand(container *app.Container, prompter *Prompter, verbose bool) *cobra.Command {
	var flags requestFlags

	root := &cobra.Command{
		Use:   "nixsay [request...]",
		Short: "nixsay - manage NixOS packages and system state in plain English",
		Long: "nixsay turns requests like \"install firefox\" or \"roll back\" into Nix commands.\n" +
			"Requests are dry runs unless --execute is given.",
		Args: cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return cmd.Help()
			}
			return runRequest(cmd, container, prompter, flags, strings.Join(args, " "), verbose)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	flags.bind(root)

	root.AddCommand(
		newRunCommand(container, prompter, verbose),
		newExplainLastCommand(container),
		newShellCommand(container, prompter, verbose),
		commands.NewKindsCommand(container),
		commands.NewCacheCommand(container),
		commands.NewHistoryCommand(container),
		commands.NewConfigCommand(container),
		commands.NewDoctorCommand(container),
		commands.NewVersionCommand(container),
	)
	return root
}

type requestFlags struct {
	execute bool
	explain bool
	force   bool
	yes     bool
	timeout time.Duration
	session string
}

func (f *requestFlags) bind(cmd *cobra.Command) {
	cmd.Flags().BoolVarP(&f.execute, "execute", "x", false, "Run mutating commands instead of previewing them")
	cmd.Flags().BoolVar(&f.explain, "explain", false, "Explain how the request was understood without running anything")
	cmd.Flags().BoolVar(&f.force, "force", false, "Execute and bypass cached results")
	cmd.Flags().BoolVarP(&f.yes, "yes", "y", false, "Skip the confirmation prompt")
	cmd.Flags().DurationVar(&f.timeout, "timeout", 0, "Override the per-request timeout (e.g. 90s)")
	cmd.Flags().StringVar(&f.session, "session", "", "Session id used by explain-last")
	cmd.MarkFlagsMutuallyExclusive("explain", "execute")
	cmd.MarkFlagsMutuallyExclusive("explain", "force")
}

func (f requestFlags) mode(fallback domain.Mode) domain.Mode {
	switch {
	case f.force:
		return domain.ModeExecuteForce
	case f.explain:
		return domain.ModeExplain
	case f.execute:
		return domain.ModeExecute
	}
	return fallback
}

func sessionID(container *app.Container, flag string) string {
	if flag != "" {
		return flag
	}
	return container.Config.Preferences.SessionID
}

func newRunCommand(container *app.Container, prompter *Prompter, verbose bool) *cobra.Command {
	var flags requestFlags

	cmd := &cobra.Command{
		Use:   "run <request...>",
		Short: "Handle a plain-English request",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRequest(cmd, container, prompter, flags, strings.Join(args, " "), verbose)
		},
	}
	flags.bind(cmd)
	return cmd
}

func newExplainLastCommand(container *app.Container) *cobra.Command {
	var session string

	cmd := &cobra.Command{
		Use:   "explain-last",
		Short: "Explain what the previous request in this session did",
		RunE: func(cmd *cobra.Command, args []string) error {
			text, ok := container.RequestService.ExplainLast(cmd.Context(), sessionID(container, session))
			if !ok {
				fmt.Fprintln(cmd.OutOrStdout(), "Nothing to explain yet.")
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), text)
			return nil
		},
	}
	cmd.Flags().StringVar(&session, "session", "", "Session id to look up")
	return cmd
}

func runRequest(cmd *cobra.Command, container *app.Container, prompter *Prompter, flags requestFlags, text string, verbose bool) error {
	prompter.AssumeYes(flags.yes)
	result, err := container.RequestService.ExecuteRequest(cmd.Context(), request.Request{
		Text:      text,
		Mode:      flags.mode(container.Config.GetDefaultMode()),
		SessionID: sessionID(container, flags.session),
		Timeout:   flags.timeout,
	})
	if err != nil {
		return err
	}
	RenderResult(cmd.OutOrStdout(), cmd.ErrOrStderr(), result, verbose)
	if code := result.ExitCode(); code != domain.ExitSuccess {
		return &ExitError{Code: code}
	}
	return nil
}
