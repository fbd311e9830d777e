package commands

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/doeshing/nixsay/internal/app"
	"github.com/doeshing/nixsay/internal/domain"
	"github.com/doeshing/nixsay/internal/infrastructure/cli/helpers"
)

// NewDoctorCommand checks config, knowledge base, backends and the binary cache.
func NewDoctorCommand(container *app.Container) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check that nixsay and Nix are set up correctly",
		RunE: func(cmd *cobra.Command, args []string) error {
			if container.DoctorService == nil {
				return errors.New(ErrDoctorServiceUnavailable)
			}

			spinner := helpers.NewSpinner(cmd.ErrOrStderr(), "checking nix environment")
			spinner.Start()
			report, err := container.DoctorService.Run(cmd.Context())
			spinner.Stop()

			// The partial report is still useful when the config cannot be loaded.
			printHealthReport(cmd.OutOrStdout(), report)
			if err != nil {
				return fmt.Errorf("doctor: %w", err)
			}
			return nil
		},
	}
}

func printHealthReport(out io.Writer, report domain.HealthReport) {
	for _, check := range report.Checks {
		fmt.Fprintf(out, "[%-5s] %s: %s\n", strings.ToUpper(string(check.Status)), check.Name, check.Details)
	}
	switch report.Worst() {
	case domain.HealthOK:
		fmt.Fprintln(out, MsgDoctorHealthy)
	case domain.HealthWarn:
		fmt.Fprintln(out, MsgDoctorWarnings)
	default:
		fmt.Fprintln(out, MsgDoctorErrors)
	}
}
