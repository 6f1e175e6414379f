package cli

import (
	"github.com/spf13/cobra"
)

// NewDebugCommand creates the debug command
func NewDebugCommand(container *CLIContainer) *cobra.Command {
	cmd := &cobra.Command{
		Use:    "debug",
		Short:  "Diagnostics",
		Hidden: true,
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "metrics",
		Short: "Run discovery and print the core metrics in Prometheus text format",
		RunE: func(cmd *cobra.Command, args []string) error {
			c := container.Main
			if _, err := c.Discover(cmd.Context()); err != nil {
				return err
			}
			return c.Metrics.WriteText(cmd.OutOrStdout())
		},
	})

	return cmd
}
