package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

// NewStateCommand creates the state command
func NewStateCommand(container *CLIContainer) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "state",
		Short: "Maintain the state directory",
	}
	cmd.AddCommand(newStateCleanupCommand(container))
	return cmd
}

func newStateCleanupCommand(container *CLIContainer) *cobra.Command {
	var maxAge time.Duration

	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Remove state documents older than --max-age",
		RunE: func(cmd *cobra.Command, args []string) error {
			c := container.Main
			age := c.Config.MaxStateAge.Duration
			if cmd.Flags().Changed("max-age") {
				age = maxAge
			}
			if age <= 0 {
				return fmt.Errorf("max age must be positive, got %s", age)
			}

			removed, err := c.Tracker.Cleanup(age)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %d documents older than %s from %s\n", removed, age, c.Store.Root())
			return nil
		},
	}

	cmd.Flags().DurationVar(&maxAge, "max-age", 0, "Maximum document age (default is the configured maxStateAge)")
	return cmd
}
