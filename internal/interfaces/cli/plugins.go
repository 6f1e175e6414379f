package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"devassist.dev/cli/internal/core/plugin"
	"devassist.dev/cli/internal/infrastructure/plugins"
)

// NewPluginsCommand creates the plugins command
func NewPluginsCommand(container *CLIContainer) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plugins",
		Short: "Discover, load and install plugins",
		Long: `Manage devassist plugins.

Plugins are searched in the project directory, the user directory, the built-in
directory next to the executable and the system directory, in that order. The
first plugin found for a type and name wins.`,
		Example: `  # List every discovered plugin
  devassist plugins list

  # Load and validate a fixer
  devassist plugins load fixer write-file

  # Install a plugin archive for the current project
  devassist plugins install ./lint-1.0.0.tar.gz --type analyzer --to project`,
	}

	cmd.AddCommand(newPluginsListCommand(container))
	cmd.AddCommand(newPluginsLoadCommand(container))
	cmd.AddCommand(newPluginsInstallCommand(container))
	cmd.AddCommand(newPluginsUninstallCommand(container))

	return cmd
}

func newPluginsListCommand(container *CLIContainer) *cobra.Command {
	var typeFlag string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List discovered plugins",
		RunE: func(cmd *cobra.Command, args []string) error {
			c := container.Main
			result, err := c.Discover(cmd.Context())
			if err != nil {
				return err
			}

			descriptors := c.Registry.List()
			if typeFlag != "" {
				category, err := plugin.ParseCategory(typeFlag)
				if err != nil {
					return err
				}
				descriptors = c.Registry.ByType(category)
			}

			out := cmd.OutOrStdout()
			if len(descriptors) == 0 {
				fmt.Fprintln(out, mutedStyle.Render("No plugins found."))
			} else {
				rows := make([][]string, 0, len(descriptors))
				for _, d := range descriptors {
					rows = append(rows, []string{
						string(d.Type), d.Name, d.Manifest.Version,
						strconv.Itoa(d.Manifest.Priority), d.Path,
					})
				}
				renderTable(out, []string{"TYPE", "NAME", "VERSION", "PRIORITY", "PATH"}, rows)
			}

			for _, s := range result.Shadowed {
				fmt.Fprintln(out, mutedStyle.Render(fmt.Sprintf("shadowed: %s at %s (using %s)", s.Key, s.Path, s.ShadowedBy)))
			}
			for _, w := range result.Warnings {
				fmt.Fprintln(out, warnStyle.Render("warning: "+w.String()))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&typeFlag, "type", "", "Only list plugins of this type")
	return cmd
}

func newPluginsLoadCommand(container *CLIContainer) *cobra.Command {
	return &cobra.Command{
		Use:   "load <type> <name>",
		Short: "Load a plugin and validate its contract",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := container.Main
			category, err := plugin.ParseCategory(args[0])
			if err != nil {
				return err
			}
			if _, err := c.Discover(cmd.Context()); err != nil {
				return err
			}

			if _, err := c.Loader.Load(cmd.Context(), category, args[1]); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), successStyle.Render(fmt.Sprintf("Loaded %s", plugin.Key(category, args[1]))))
			return nil
		},
	}
}

func newPluginsInstallCommand(container *CLIContainer) *cobra.Command {
	var typeFlag, destination string

	cmd := &cobra.Command{
		Use:   "install <source>",
		Short: "Install a plugin directory or .tar.gz archive",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			category, err := plugin.ParseCategory(typeFlag)
			if err != nil {
				return err
			}

			record, err := container.Main.Installer.Install(cmd.Context(), args[0], category, destination)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), successStyle.Render(
				fmt.Sprintf("Installed %s v%s to %s", record.Key, record.Version, record.Path)))
			return nil
		},
	}

	cmd.Flags().StringVar(&typeFlag, "type", "", "Plugin type (analyzer, provider, fixer, quality, integration)")
	cmd.Flags().StringVar(&destination, "to", plugins.DestinationProject, "Destination: project or user")
	_ = cmd.MarkFlagRequired("type")
	return cmd
}

func newPluginsUninstallCommand(container *CLIContainer) *cobra.Command {
	var destination string

	cmd := &cobra.Command{
		Use:   "uninstall <type> <name>",
		Short: "Remove an installed plugin",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			category, err := plugin.ParseCategory(args[0])
			if err != nil {
				return err
			}
			if err := container.Main.Installer.Uninstall(cmd.Context(), category, args[1], destination); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), successStyle.Render(fmt.Sprintf("Uninstalled %s", plugin.Key(category, args[1]))))
			return nil
		},
	}

	cmd.Flags().StringVar(&destination, "from", plugins.DestinationProject, "Destination the plugin was installed to: project or user")
	return cmd
}
