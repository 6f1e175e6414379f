package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"devassist.dev/cli/internal/application/services"
	"devassist.dev/cli/internal/core/plugin"
	"devassist.dev/cli/internal/core/session"
)

// NewFixCommand creates the fix command
func NewFixCommand(container *CLIContainer) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fix",
		Short: "Apply, update and roll back fixes",
	}

	cmd.AddCommand(newFixApplyCommand(container))
	cmd.AddCommand(newFixStatusCommand(container))
	cmd.AddCommand(newFixRollbackCommand(container))

	return cmd
}

func newFixApplyCommand(container *CLIContainer) *cobra.Command {
	var (
		fixType         string
		sets            []string
		files           []string
		rollbackCommand string
		sessionID       string
	)

	cmd := &cobra.Command{
		Use:   "apply <fixer>",
		Short: "Run a fixer plugin and record the fix in the active session",
		Long: `Run a fixer plugin and record the fix.

For file fixes the listed files (or the spec's path) are captured before the fixer
runs, so the fix can be rolled back. Command fixes only record the rollback command.`,
		Example: `  devassist fix apply write-file --set path=README.md --set content="# Demo"`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := container.Main
			ctx := cmd.Context()

			spec, err := parseKeyValues(sets)
			if err != nil {
				return err
			}
			spec["type"] = fixType

			if err := activeSession(c, sessionID); err != nil {
				return err
			}
			if _, err := c.Discover(ctx); err != nil {
				return err
			}
			instance, err := c.Loader.Load(ctx, plugin.CategoryFixer, args[0])
			if err != nil {
				return err
			}
			fixer := instance.(plugin.Fixer)

			actx := plugin.Context{"projectDir": c.Config.ProjectDir}
			if !fixer.CanFix(fixType, actx) {
				return fmt.Errorf("fixer %s cannot apply %s fixes", args[0], fixType)
			}

			var data session.RollbackData
			switch session.FixType(fixType) {
			case session.FixTypeFile:
				if len(files) == 0 {
					if path, ok := spec["path"].(string); ok {
						files = []string{path}
					}
				}
				if data, err = services.CaptureFiles(c.Config.ProjectDir, files...); err != nil {
					return err
				}
			case session.FixTypeCommand:
				data.Command = rollbackCommand
			}
			data.Details = map[string]any{"fixer": args[0]}

			fix, err := c.Tracker.RecordFix(spec)
			if err != nil {
				return err
			}
			if _, err := c.Tracker.PrepareRollback(fix.ID, data); err != nil {
				return err
			}

			result, fixErr := fixer.Fix(ctx, plugin.FixSpec(spec), actx)
			if fixErr != nil {
				if _, err := c.Tracker.UpdateFixStatus(fix.ID, session.FixStatusFailed, map[string]any{"error": fixErr.Error()}); err != nil {
					return err
				}
				return fmt.Errorf("fix %s failed: %w", fix.ID, fixErr)
			}
			if _, err := c.Tracker.UpdateFixStatus(fix.ID, session.FixStatusApplied, map[string]any{"result": map[string]any(result)}); err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), fix.ID)
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&fixType, "type", string(session.FixTypeFile), "Fix type: file or command")
	flags.StringArrayVar(&sets, "set", nil, "Fix spec field as key=value (repeatable)")
	flags.StringArrayVar(&files, "file", nil, "File the fix touches, captured for rollback (repeatable)")
	flags.StringVar(&rollbackCommand, "rollback-command", "", "Command that undoes a command fix")
	flags.StringVar(&sessionID, "session", "", "Session to record into (default is the newest active session)")
	return cmd
}

func newFixStatusCommand(container *CLIContainer) *cobra.Command {
	var details []string

	cmd := &cobra.Command{
		Use:   "status <id> <status>",
		Short: "Move a fix to pending, applied, failed or rolled_back",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			status, err := session.ParseFixStatus(args[1])
			if err != nil {
				return err
			}
			extra, err := parseKeyValues(details)
			if err != nil {
				return err
			}

			fix, err := container.Main.Tracker.UpdateFixStatus(args[0], status, extra)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", fix.ID, statusLabel(fix.Status))
			return nil
		},
	}

	cmd.Flags().StringArrayVar(&details, "detail", nil, "Detail merged into the fix as key=value (repeatable)")
	return cmd
}

func newFixRollbackCommand(container *CLIContainer) *cobra.Command {
	return &cobra.Command{
		Use:   "rollback <id>",
		Short: "Roll back an applied fix",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := container.Main.Tracker.RollbackFix(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if !result.Supported {
				fmt.Fprintln(out, warnStyle.Render(result.Message))
				if result.Command != "" {
					fmt.Fprintf(out, "Rollback command: %s\n", result.Command)
				}
				return nil
			}

			printTitle(out, result.Message)
			rows := make([][]string, 0, len(result.Files))
			for _, f := range result.Files {
				rows = append(rows, []string{f.Path, f.Status, f.Error})
			}
			renderTable(out, []string{"PATH", "RESULT", "ERROR"}, rows)
			return nil
		},
	}
}
