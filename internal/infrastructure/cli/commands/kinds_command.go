package commands

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/doeshing/nixsay/internal/app"
	"github.com/doeshing/nixsay/internal/ports"
)

// NewKindsCommand lists the operations the knowledge base knows about.
func NewKindsCommand(container *app.Container) *cobra.Command {
	return &cobra.Command{
		Use:   "kinds",
		Short: "List supported operations, their aliases and cache policy",
		RunE: func(cmd *cobra.Command, args []string) error {
			if container.KnowledgeBase == nil {
				return errors.New(ErrKnowledgeUnavailable)
			}
			listKinds(cmd.OutOrStdout(), container.KnowledgeBase)
			return nil
		},
	}
}

func listKinds(out io.Writer, kb ports.KnowledgeBase) {
	for _, kind := range kb.AllKinds() {
		tmpl, ok := kb.Lookup(kind)
		if !ok {
			continue
		}
		var traits []string
		switch {
		case tmpl.Builtin():
			traits = append(traits, "builtin")
		case tmpl.Mutating:
			traits = append(traits, "mutating")
		case tmpl.Cacheable():
			traits = append(traits, "cached "+tmpl.DefaultCacheTTL.String())
		default:
			traits = append(traits, "read-only")
		}
		if tmpl.Privileged {
			traits = append(traits, "privileged")
		}
		fmt.Fprintf(out, "%-18s %s [%s]\n", kind, tmpl.Description, strings.Join(traits, ", "))
		if len(tmpl.Aliases) > 0 {
			fmt.Fprintf(out, "%-18s aliases: %s\n", "", strings.Join(tmpl.Aliases, ", "))
		}
	}
}
