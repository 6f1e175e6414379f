package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"devassist.dev/cli/internal/core/plugin"
)

// NewValidateCommand creates the validate command
func NewValidateCommand(container *CLIContainer) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate configuration, state directory and every discovered plugin",
		Long: `Validate the devassist setup.

This command will:
- Check the configuration
- Check that the state directory is writable
- Discover plugins and report skipped candidates
- Load every discovered plugin and report contract failures`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(cmd, container)
		},
	}
}

// runValidate handles the validation process
func runValidate(cmd *cobra.Command, container *CLIContainer) error {
	c := container.Main
	ctx := cmd.Context()
	out := cmd.OutOrStdout()
	failures := 0

	printTitle(out, "devassist validation")
	fmt.Fprintf(out, "Configuration: %s\n", successStyle.Render("valid ("+c.ConfigRepo.GetConfigPath()+")"))

	if err := checkWritable(c.Store.Root()); err != nil {
		failures++
		fmt.Fprintf(out, "State directory: %s\n", errorStyle.Render(err.Error()))
	} else {
		fmt.Fprintf(out, "State directory: %s\n", successStyle.Render(c.Store.Root()))
	}

	roots := c.Discoverer.Roots()
	fmt.Fprintf(out, "Search roots: %d\n", len(roots))
	for _, root := range roots {
		fmt.Fprintf(out, "  %-8s %s\n", root.Scope, root.Dir)
	}

	result, err := c.Discover(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Plugins discovered: %d\n", result.Discovered)
	for _, w := range result.Warnings {
		fmt.Fprintln(out, warnStyle.Render("  skipped: "+w.String()))
	}

	var rows [][]string
	for _, category := range plugin.Categories {
		loaded, skipped := c.Loader.LoadAllOfType(ctx, category)
		for _, l := range loaded {
			rows = append(rows, []string{l.Descriptor.Key(), successStyle.Render("ok"), ""})
		}
		for _, s := range skipped {
			failures++
			rows = append(rows, []string{s.Key, errorStyle.Render("failed"), s.Err.Error()})
		}
	}
	if len(rows) > 0 {
		fmt.Fprintln(out)
		renderTable(out, []string{"PLUGIN", "LOAD", "ERROR"}, rows)
	}

	fmt.Fprintln(out)
	if failures > 0 {
		return fmt.Errorf("validation found %d problem(s)", failures)
	}
	fmt.Fprintln(out, successStyle.Render("Validation completed successfully"))
	return nil
}

// checkWritable creates dir if needed and probes it with a temporary file
func checkWritable(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	f, err := os.CreateTemp(dir, ".probe-*")
	if err != nil {
		return err
	}
	name := f.Name()
	f.Close()
	return os.Remove(name)
}
