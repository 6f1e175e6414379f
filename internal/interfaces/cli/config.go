package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"devassist.dev/cli/internal/infrastructure/config"
	"devassist.dev/cli/internal/infrastructure/plugins"
	"devassist.dev/cli/internal/plugins/builtin"
)

// NewConfigCommand creates the config command
func NewConfigCommand(container *CLIContainer) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage configuration settings",
		Long: `Manage configuration settings for devassist.

Settings are merged from built-in defaults, the config file (YAML, TOML or JSON,
chosen by extension) and DEVASSIST_* environment variables, in that order.`,
	}

	configCmd.AddCommand(NewConfigShowCommand(container))
	configCmd.AddCommand(NewConfigPathCommand(container))
	configCmd.AddCommand(NewConfigInitCommand(container))

	return configCmd
}

// NewConfigShowCommand creates the show subcommand
func NewConfigShowCommand(container *CLIContainer) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			printConfig(cmd, container.Main.Config)
			return nil
		},
	}
}

func printConfig(cmd *cobra.Command, cfg *config.Configuration) {
	out := cmd.OutOrStdout()
	printTitle(out, "Current Configuration")

	rows := [][]string{
		{"stateDir", cfg.ResolvedStateDir()},
		{"projectDir", cfg.ProjectDir},
		{"logLevel", cfg.LogLevel},
		{"logFormat", cfg.LogFormat},
		{"maxStateAge", cfg.MaxStateAge.String()},
		{"discoveryWorkers", strconv.Itoa(cfg.DiscoveryWorkers)},
	}
	for _, scope := range []string{plugins.ScopeProject, plugins.ScopeUser, plugins.ScopeBuiltin, plugins.ScopeSystem} {
		rows = append(rows, []string{"pluginDirs." + scope, cfg.PluginDirs.Dir(scope)})
	}
	for k, v := range cfg.Shared {
		rows = append(rows, []string{"shared." + k, fmt.Sprint(v)})
	}
	renderTable(out, []string{"SETTING", "VALUE"}, rows)
}

// NewConfigPathCommand creates the path subcommand
func NewConfigPathCommand(container *CLIContainer) *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Show configuration file path",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintln(cmd.OutOrStdout(), container.Main.ConfigRepo.GetConfigPath())
			return nil
		},
	}
}

// NewConfigInitCommand creates the init subcommand
func NewConfigInitCommand(container *CLIContainer) *cobra.Command {
	var force, seed bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write the effective configuration and install the built-in plugin manifests",
		RunE: func(cmd *cobra.Command, args []string) error {
			c := container.Main
			out := cmd.OutOrStdout()
			path := c.ConfigRepo.GetConfigPath()

			_, err := os.Stat(path)
			switch {
			case err == nil && !force:
				fmt.Fprintln(out, mutedStyle.Render(fmt.Sprintf("%s already exists, use --force to overwrite", path)))
			case err == nil || errors.Is(err, fs.ErrNotExist):
				if err := c.ConfigRepo.Save(c.Config); err != nil {
					return err
				}
				fmt.Fprintln(out, successStyle.Render("Wrote "+path))
			default:
				return err
			}

			if !seed {
				return nil
			}
			root := c.Config.PluginDirs.Dir(plugins.ScopeUser)
			written, err := builtin.Seed(root)
			if err != nil {
				return err
			}
			for _, dir := range written {
				fmt.Fprintln(out, successStyle.Render("Installed built-in manifest in "+dir))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing config file")
	cmd.Flags().BoolVar(&seed, "builtins", true, "Install the built-in plugin manifests into the user plugin directory")
	return cmd
}
