package cli

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"github.com/tidwall/gjson"

	"devassist.dev/cli/internal/core/session"
	"devassist.dev/cli/internal/interfaces/di"
)

// NewSessionCommand creates the session command
func NewSessionCommand(container *CLIContainer) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "session",
		Short: "Start, end and inspect sessions",
		Long: `A session groups the analyses and fixes of one unit of work. Sessions are
persisted, so a session started by one command stays active for the next until
it is ended.`,
	}

	cmd.AddCommand(newSessionStartCommand(container))
	cmd.AddCommand(newSessionEndCommand(container))
	cmd.AddCommand(newSessionListCommand(container))
	cmd.AddCommand(newSessionShowCommand(container))
	cmd.AddCommand(newSessionExportCommand(container))

	return cmd
}

func newSessionStartCommand(container *CLIContainer) *cobra.Command {
	var contextPairs []string

	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start a new session",
		RunE: func(cmd *cobra.Command, args []string) error {
			sctx, err := parseKeyValues(contextPairs)
			if err != nil {
				return err
			}
			s, err := container.Main.Tracker.Start(sctx)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), s.ID)
			return nil
		},
	}

	cmd.Flags().StringArrayVar(&contextPairs, "context", nil, "Session context as key=value (repeatable)")
	return cmd
}

func newSessionEndCommand(container *CLIContainer) *cobra.Command {
	return &cobra.Command{
		Use:   "end <id>",
		Short: "End an active session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tracker := container.Main.Tracker
			if _, err := tracker.Resume(args[0]); err != nil {
				return err
			}
			summary, err := tracker.End()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			printTitle(out, "Session ended")
			renderTable(out, []string{"ID", "DURATION", "FIXES APPLIED", "ANALYSES"}, [][]string{{
				summary.ID,
				summary.Duration.Round(time.Millisecond).String(),
				strconv.Itoa(summary.FixesApplied),
				strconv.Itoa(summary.AnalysesPerformed),
			}})
			return nil
		},
	}
}

func newSessionListCommand(container *CLIContainer) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List sessions, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			sessions, err := container.Main.Tracker.ListSessions()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(sessions) == 0 {
				fmt.Fprintln(out, mutedStyle.Render("No sessions recorded."))
				return nil
			}

			rows := make([][]string, 0, len(sessions))
			for _, s := range sessions {
				rows = append(rows, []string{
					s.ID,
					string(s.Status),
					s.StartTime.Local().Format(time.DateTime),
					strconv.Itoa(len(s.FixIDs)),
					strconv.Itoa(len(s.AnalysisIDs)),
				})
			}
			renderTable(out, []string{"ID", "STATUS", "STARTED", "FIXES", "ANALYSES"}, rows)
			return nil
		},
	}
}

func newSessionShowCommand(container *CLIContainer) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show a session and its fixes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := container.Main.Tracker.Session(args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			printTitle(out, "Session "+s.ID)
			fmt.Fprintf(out, "Status:   %s\n", s.Status)
			fmt.Fprintf(out, "Started:  %s\n", s.StartTime.Local().Format(time.DateTime))
			if s.EndTime != nil {
				fmt.Fprintf(out, "Ended:    %s\n", s.EndTime.Local().Format(time.DateTime))
			}
			fmt.Fprintf(out, "Analyses: %d\n", len(s.AnalysisIDs))
			for k, v := range s.Context {
				fmt.Fprintf(out, "Context:  %s=%v\n", k, v)
			}

			if len(s.Fixes) == 0 {
				fmt.Fprintln(out, mutedStyle.Render("No fixes recorded."))
				return nil
			}
			fmt.Fprintln(out)
			rows := make([][]string, 0, len(s.Fixes))
			for _, f := range s.Fixes {
				rows = append(rows, []string{f.ID, string(f.Type), statusLabel(f.Status), strconv.FormatBool(f.RollbackData != nil)})
			}
			renderTable(out, []string{"FIX", "TYPE", "STATUS", "ROLLBACK DATA"}, rows)
			return nil
		},
	}
}

func newSessionExportCommand(container *CLIContainer) *cobra.Command {
	var query string

	cmd := &cobra.Command{
		Use:     "export <id>",
		Short:   "Export a session with its fixes and analyses as JSON",
		Example: `  devassist session export 0190f6c2-... --query 'fixes.#(status=="applied")#.id'`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			export, err := container.Main.Tracker.Export(args[0])
			if err != nil {
				return err
			}
			if query == "" {
				return printJSON(cmd.OutOrStdout(), export)
			}

			data, err := json.Marshal(export)
			if err != nil {
				return fmt.Errorf("failed to encode export: %w", err)
			}
			result := gjson.GetBytes(data, query)
			if !result.Exists() {
				return fmt.Errorf("query %q matched nothing", query)
			}
			fmt.Fprintln(cmd.OutOrStdout(), result.String())
			return nil
		},
	}

	cmd.Flags().StringVar(&query, "query", "", "gjson path to extract from the export")
	return cmd
}

// activeSession makes the session named by id, or else the newest active session,
// current. With neither, recording auto-starts a new session.
func activeSession(c *di.Container, id string) error {
	if id != "" {
		_, err := c.Tracker.Resume(id)
		return err
	}

	sessions, err := c.Tracker.ListSessions()
	if err != nil {
		return err
	}
	for _, s := range sessions {
		if s.IsActive() {
			_, err := c.Tracker.Resume(s.ID)
			return err
		}
	}
	return nil
}

func statusLabel(status session.FixStatus) string {
	switch status {
	case session.FixStatusApplied:
		return successStyle.Render(string(status))
	case session.FixStatusFailed:
		return errorStyle.Render(string(status))
	case session.FixStatusRolledBack:
		return warnStyle.Render(string(status))
	}
	return string(status)
}
