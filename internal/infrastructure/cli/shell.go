package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/chzyer/readline"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/doeshing/nixsay/internal/app"
	"github.com/doeshing/nixsay/internal/application/request"
	"github.com/doeshing/nixsay/internal/domain"
	"github.com/doeshing/nixsay/internal/pkg/filesystem"
)

const shellHelp = `Type a request such as "install firefox" or "show generations".
  :dry-run, :execute, :force, :explain   switch mode
  :why                                   explain the previous request
  :help                                  show this help
  exit                                   leave the shell`

var shellDirectives = []string{":dry-run", ":execute", ":force", ":explain", ":why", ":help", "exit"}

func newShellCommand(container *app.Container, prompter *Prompter, verbose bool) *cobra.Command {
	return &cobra.Command{
		Use:   "shell",
		Short: "Start an interactive session",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runShell(cmd, container, prompter, verbose)
		},
	}
}

// shellSession holds the state of one interactive session.
type shellSession struct {
	container *app.Container
	mode      domain.Mode
	sessionID string
	verbose   bool
}

func newShellSession(container *app.Container, verbose bool) *shellSession {
	return &shellSession{
		container: container,
		mode:      container.Config.GetDefaultMode(),
		sessionID: uuid.NewString(),
		verbose:   verbose,
	}
}

func (s *shellSession) prompt() string {
	return fmt.Sprintf("nixsay (%s)> ", strings.ToLower(strings.ReplaceAll(string(s.mode), "_", "-")))
}

// handle processes one input line and reports whether the session should end.
func (s *shellSession) handle(ctx context.Context, line string, out, errOut io.Writer) bool {
	line = strings.TrimSpace(line)
	switch {
	case line == "":
		return false
	case line == "exit" || line == "quit":
		return true
	case line == ":help":
		fmt.Fprintln(out, shellHelp)
		return false
	case line == ":why":
		if text, ok := s.container.RequestService.ExplainLast(ctx, s.sessionID); ok {
			fmt.Fprintln(out, text)
		} else {
			fmt.Fprintln(out, "Nothing to explain yet.")
		}
		return false
	case strings.HasPrefix(line, ":"):
		mode, err := domain.ParseMode(strings.TrimPrefix(line, ":"))
		if err != nil {
			fmt.Fprintf(errOut, "unknown directive %s (try :help)\n", line)
			return false
		}
		s.mode = mode
		fmt.Fprintf(out, "Mode: %s\n", mode)
		return false
	}

	result, err := s.container.RequestService.ExecuteRequest(ctx, request.Request{
		Text:      line,
		Mode:      s.mode,
		SessionID: s.sessionID,
	})
	if err != nil {
		fmt.Fprintf(errOut, "error: %v\n", err)
		return false
	}
	RenderResult(out, errOut, result, s.verbose)
	return false
}

func runShell(cmd *cobra.Command, container *app.Container, prompter *Prompter, verbose bool) error {
	ctx := cmd.Context()
	session := newShellSession(container, verbose)

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          session.prompt(),
		HistoryFile:     filesystem.StatePath("shell_history"),
		AutoComplete:    shellCompleter(container),
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
		Stdout:          cmd.OutOrStdout(),
		Stderr:          cmd.ErrOrStderr(),
	})
	if err != nil {
		return fmt.Errorf("start shell: %w", err)
	}
	defer rl.Close()

	prompter.UseLineReader(func(prompt string) (string, error) {
		rl.SetPrompt(prompt)
		defer rl.SetPrompt(session.prompt())
		return rl.Readline()
	})
	defer prompter.UseLineReader(nil)

	if container.Watcher != nil {
		watched := container.Watcher.Start(ctx)
		container.Logger.Debug("watching nix profiles", map[string]interface{}{"dirs": watched})
	}

	fmt.Fprintln(cmd.OutOrStdout(), "nixsay shell. Type :help for commands, exit to leave.")
	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			if line == "" {
				return nil
			}
			continue
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		if session.handle(ctx, line, cmd.OutOrStdout(), cmd.ErrOrStderr()) {
			return nil
		}
		rl.SetPrompt(session.prompt())
	}
}

func shellCompleter(container *app.Container) readline.AutoCompleter {
	var items []readline.PrefixCompleterInterface
	for _, directive := range shellDirectives {
		items = append(items, readline.PcItem(directive))
	}
	kb := container.KnowledgeBase
	if kb == nil {
		return readline.NewPrefixCompleter(items...)
	}
	var packages []readline.PrefixCompleterInterface
	for _, name := range kb.Packages() {
		packages = append(packages, readline.PcItem(name))
	}
	for _, word := range kb.Vocabulary() {
		if takesPackage(container, word) {
			items = append(items, readline.PcItem(word, packages...))
			continue
		}
		items = append(items, readline.PcItem(word))
	}
	return readline.NewPrefixCompleter(items...)
}

func takesPackage(container *app.Container, alias string) bool {
	kind, ok := container.KnowledgeBase.ResolveAlias(alias)
	if !ok {
		return false
	}
	tmpl, ok := container.KnowledgeBase.Lookup(kind)
	if !ok {
		return false
	}
	for _, slot := range tmpl.RequiredEntities {
		if slot == "package" {
			return true
		}
	}
	return false
}
