package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"devassist.dev/cli/internal/core/plugin"
)

// NewCheckCommand creates the check command
func NewCheckCommand(container *CLIContainer) *cobra.Command {
	var sessionID string

	cmd := &cobra.Command{
		Use:   "check <quality-plugin> <file>...",
		Short: "Run a quality plugin over files and record the analysis",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := container.Main
			ctx := cmd.Context()
			name, files := args[0], args[1:]

			if err := activeSession(c, sessionID); err != nil {
				return err
			}
			if _, err := c.Discover(ctx); err != nil {
				return err
			}
			instance, err := c.Loader.Load(ctx, plugin.CategoryQuality, name)
			if err != nil {
				return err
			}
			check := instance.(plugin.QualityCheck)

			report, err := check.Check(ctx, files, plugin.Options{})
			if err != nil {
				return fmt.Errorf("%s check failed: %w", name, err)
			}
			metrics, err := check.Metrics(ctx, files)
			if err != nil {
				return fmt.Errorf("%s metrics failed: %w", name, err)
			}

			payload := map[string]any{
				"plugin":  plugin.Key(plugin.CategoryQuality, name),
				"files":   files,
				"report":  map[string]any(report),
				"metrics": map[string]any(metrics),
			}
			record, err := c.Tracker.RecordAnalysis(payload)
			if err != nil {
				return err
			}

			payload["analysisId"] = record.ID
			payload["sessionId"] = record.SessionID
			return printJSON(cmd.OutOrStdout(), payload)
		},
	}

	cmd.Flags().StringVar(&sessionID, "session", "", "Session to record into (default is the newest active session)")
	return cmd
}

// NewAnalyzeCommand creates the analyze command
func NewAnalyzeCommand(container *CLIContainer) *cobra.Command {
	var (
		sessionID    string
		input        string
		contextPairs []string
	)

	cmd := &cobra.Command{
		Use:   "analyze <analyzer>",
		Short: "Explain tool output with an analyzer plugin and record the analysis",
		Long: `Feed tool output to an analyzer plugin. The output is read from --input,
or from stdin when --input is "-" or empty.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := container.Main
			ctx := cmd.Context()

			actx, err := parseKeyValues(contextPairs)
			if err != nil {
				return err
			}
			output, err := readInput(cmd.InOrStdin(), input)
			if err != nil {
				return err
			}

			if err := activeSession(c, sessionID); err != nil {
				return err
			}
			if _, err := c.Discover(ctx); err != nil {
				return err
			}
			instance, err := c.Loader.Load(ctx, plugin.CategoryAnalyzer, args[0])
			if err != nil {
				return err
			}
			analyzer := instance.(plugin.Analyzer)
			if !analyzer.Supports(actx) {
				return fmt.Errorf("analyzer %s does not support this context", args[0])
			}

			result, err := analyzer.Analyze(ctx, output, actx)
			if err != nil {
				return fmt.Errorf("%s analysis failed: %w", args[0], err)
			}
			record, err := c.Tracker.RecordAnalysis(map[string]any{
				"plugin": plugin.Key(plugin.CategoryAnalyzer, args[0]),
				"result": map[string]any(result),
			})
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), record)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&input, "input", "", "File holding the tool output (default is stdin)")
	flags.StringArrayVar(&contextPairs, "context", nil, "Analysis context as key=value (repeatable)")
	flags.StringVar(&sessionID, "session", "", "Session to record into (default is the newest active session)")
	return cmd
}

func readInput(stdin io.Reader, path string) (string, error) {
	var (
		data []byte
		err  error
	)
	if path == "" || path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return "", fmt.Errorf("failed to read input: %w", err)
	}
	return string(data), nil
}
