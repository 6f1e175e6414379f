package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"runtime"
	"runtime/debug"

	"github.com/spf13/cobra"

	"devassist.dev/cli/internal/interfaces/di"
)

var (
	Version   = "dev"     // Overridden by ldflags
	BuildTime = "unknown" // Overridden by ldflags
)

// CLIContainer holds the dependencies for CLI commands. The DI container is built
// after flag parsing so --config, --state-dir and --debug can shape it.
type CLIContainer struct {
	Main *di.Container

	build func(di.Options) (*di.Container, error)
}

// NewCLIContainer returns a container that wires dependencies with di.NewContainer
func NewCLIContainer() *CLIContainer {
	return &CLIContainer{build: di.NewContainer}
}

// NewRootCommand creates the devassist root command
func NewRootCommand(container *CLIContainer) *cobra.Command {
	var opts di.Options

	rootCmd := &cobra.Command{
		Use:   "devassist",
		Short: "devassist - plugin-driven developer assistant core",
		Long: `devassist discovers and loads analyzer, provider, fixer, quality and
integration plugins, and tracks the analyses and fixes made during a session so
every file fix can be rolled back later.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if container.Main != nil {
				return nil
			}
			opts.LogWriter = cmd.ErrOrStderr()
			built, err := container.build(opts)
			if err != nil {
				return err
			}
			container.Main = built
			return nil
		},
	}

	rootCmd.SetVersionTemplate(fmt.Sprintf("{{.Name}} version {{.Version}}\nBuild time: %s\nGo version: %s\nPlatform: %s/%s\n",
		BuildTime, goVersion(), runtime.GOOS, runtime.GOARCH))

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&opts.ConfigPath, "config", "", "Config file path (default is $HOME/.devassist/config.yaml)")
	flags.StringVar(&opts.StateDir, "state-dir", "", "State directory (overrides configuration)")
	flags.StringVar(&opts.WorkDir, "project-dir", "", "Project directory (default is the working directory)")
	flags.BoolVar(&opts.Debug, "debug", false, "Enable debug logging")

	rootCmd.AddCommand(NewPluginsCommand(container))
	rootCmd.AddCommand(NewSessionCommand(container))
	rootCmd.AddCommand(NewFixCommand(container))
	rootCmd.AddCommand(NewCheckCommand(container))
	rootCmd.AddCommand(NewAnalyzeCommand(container))
	rootCmd.AddCommand(NewStateCommand(container))
	rootCmd.AddCommand(NewDebugCommand(container))
	rootCmd.AddCommand(NewConfigCommand(container))
	rootCmd.AddCommand(NewValidateCommand(container))

	return rootCmd
}

// goVersion returns the Go version used to build the binary
func goVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok {
		return info.GoVersion
	}
	return "unknown"
}

// Execute runs the root command and returns the process exit code.
func Execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	container := NewCLIContainer()
	rootCmd := NewRootCommand(container)
	rootCmd.SetArgs(args)
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)

	err := rootCmd.ExecuteContext(ctx)
	if container.Main != nil {
		err = errors.Join(err, container.Main.Shutdown(context.WithoutCancel(ctx)))
	}
	if err != nil {
		fmt.Fprintf(stderr, "%s %v\n", errorStyle.Render("Error:"), err)
		if errors.Is(err, context.Canceled) {
			return 130
		}
		return 1
	}
	return 0
}
