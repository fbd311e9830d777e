package commands

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/doeshing/nixsay/internal/app"
	appconfig "github.com/doeshing/nixsay/internal/application/config"
	configinfra "github.com/doeshing/nixsay/internal/infrastructure/config"
)

// NewConfigCommand creates the config command with all subcommands
func NewConfigCommand(container *app.Container) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect or change nixsay configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			return showConfig(cmd.Context(), cmd.OutOrStdout(), container)
		},
	}

	configCmd.AddCommand(
		&cobra.Command{
			Use:   "show",
			Short: "Show full configuration",
			RunE: func(cmd *cobra.Command, args []string) error {
				return showConfig(cmd.Context(), cmd.OutOrStdout(), container)
			},
		},
		&cobra.Command{
			Use:   "get <key>",
			Short: "Get a configuration value (e.g. cache.backend)",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return getConfigValue(cmd.Context(), cmd.OutOrStdout(), container, args[0])
			},
		},
		&cobra.Command{
			Use:   "set <key> <value>",
			Short: "Set a configuration value (value accepts YAML scalars)",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				return setConfigValue(cmd.Context(), cmd.OutOrStdout(), container, args[0], args[1])
			},
		},
		&cobra.Command{
			Use:   "validate",
			Short: "Validate configuration file",
			RunE: func(cmd *cobra.Command, args []string) error {
				cfg, err := container.ConfigProvider.Load(cmd.Context())
				if err != nil {
					return err
				}
				if err := appconfig.Validate(cfg); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), MsgConfigurationValid)
				return nil
			},
		},
		&cobra.Command{
			Use:   "reset",
			Short: "Reset configuration to defaults",
			RunE: func(cmd *cobra.Command, args []string) error {
				loader, err := configLoader(container)
				if err != nil {
					return err
				}
				if err := loader.Reset(); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Configuration reset at %s\n", loader.Path())
				return nil
			},
		},
	)
	return configCmd
}

func configLoader(container *app.Container) (*configinfra.FileLoader, error) {
	if container.ConfigLoader == nil {
		return nil, errors.New(ErrConfigLoaderUnavailable)
	}
	return container.ConfigLoader, nil
}

func showConfig(ctx context.Context, out io.Writer, container *app.Container) error {
	cfg, err := container.ConfigProvider.Load(ctx)
	if err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	fmt.Fprint(out, string(data))
	return nil
}

func getConfigValue(ctx context.Context, out io.Writer, container *app.Container, key string) error {
	cfg, err := container.ConfigProvider.Load(ctx)
	if err != nil {
		return err
	}
	value, err := configinfra.Get(cfg, key)
	if err != nil {
		return err
	}
	fmt.Fprintln(out, value)
	return nil
}

// setConfigValue validates the updated config before saving it.
func setConfigValue(ctx context.Context, out io.Writer, container *app.Container, key, value string) error {
	loader, err := configLoader(container)
	if err != nil {
		return err
	}
	cfg, err := loader.Load(ctx)
	if err != nil {
		return err
	}
	updated, err := configinfra.Set(cfg, key, value)
	if err != nil {
		return err
	}
	if err := appconfig.Validate(updated); err != nil {
		return fmt.Errorf("refusing to save: %w", err)
	}
	if err := loader.Save(updated); err != nil {
		return err
	}
	fmt.Fprintf(out, "%s = %s\n", key, value)
	return nil
}
