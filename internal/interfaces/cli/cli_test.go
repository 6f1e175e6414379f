package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type cliEnv struct {
	configPath string
	stateDir   string
	projectDir string
}

func newCLIEnv(t *testing.T) *cliEnv {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)

	env := &cliEnv{
		configPath: filepath.Join(home, ".devassist", "config.yaml"),
		stateDir:   filepath.Join(home, "state"),
		projectDir: filepath.Join(home, "project"),
	}
	require.NoError(t, os.MkdirAll(env.projectDir, 0o755))
	return env
}

// run executes one command in a fresh container, the way separate processes would.
func (e *cliEnv) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	container := NewCLIContainer()
	root := NewRootCommand(container)

	var stdout, stderr bytes.Buffer
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetArgs(append([]string{
		"--config", e.configPath,
		"--state-dir", e.stateDir,
		"--project-dir", e.projectDir,
	}, args...))

	err := root.ExecuteContext(context.Background())
	if container.Main != nil {
		require.NoError(t, container.Main.Shutdown(context.Background()))
	}
	return stdout.String(), err
}

func (e *cliEnv) mustRun(t *testing.T, args ...string) string {
	t.Helper()
	out, err := e.run(t, args...)
	require.NoError(t, err, "devassist %s", strings.Join(args, " "))
	return out
}

func TestCLI_FixLifecycle(t *testing.T) {
	env := newCLIEnv(t)

	out := env.mustRun(t, "config", "init")
	assert.Contains(t, out, "Wrote "+env.configPath)
	assert.FileExists(t, env.configPath)

	out = env.mustRun(t, "plugins", "list")
	assert.Contains(t, out, "write-file")
	assert.Contains(t, out, "line-count")

	out = env.mustRun(t, "plugins", "list", "--type", "quality")
	assert.NotContains(t, out, "write-file")

	sessionID := strings.TrimSpace(env.mustRun(t, "session", "start", "--context", "ticket=DEV-1"))
	require.NotEmpty(t, sessionID)

	target := filepath.Join(env.projectDir, "notes.txt")
	fixID := strings.TrimSpace(env.mustRun(t, "fix", "apply", "write-file", "--set", "path=notes.txt", "--set", "content=hello"))
	require.NotEmpty(t, fixID)
	data, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))

	out = env.mustRun(t, "session", "show", sessionID)
	assert.Contains(t, out, fixID)
	assert.Contains(t, out, "applied")

	out = env.mustRun(t, "fix", "rollback", fixID)
	assert.Contains(t, out, "rolled back 1 of 1 files")
	assert.NoFileExists(t, target)

	_, err = env.run(t, "fix", "rollback", fixID)
	require.Error(t, err, "a rolled back fix cannot be rolled back again")

	out = env.mustRun(t, "session", "export", sessionID, "--query", "fixes.0.status")
	assert.Equal(t, "rolled_back", strings.TrimSpace(out))

	out = env.mustRun(t, "session", "export", sessionID, "--query", "session.context.ticket")
	assert.Equal(t, "DEV-1", strings.TrimSpace(out))

	_, err = env.run(t, "session", "export", sessionID, "--query", "nothing.here")
	assert.Error(t, err)

	out = env.mustRun(t, "session", "end", sessionID)
	assert.Contains(t, out, sessionID)

	_, err = env.run(t, "session", "end", sessionID)
	assert.Error(t, err, "a completed session cannot be ended twice")

	out = env.mustRun(t, "session", "list")
	assert.Contains(t, out, "completed")
}

func TestCLI_FixApplyRestoresExistingFile(t *testing.T) {
	env := newCLIEnv(t)
	env.mustRun(t, "config", "init")

	target := filepath.Join(env.projectDir, "a.txt")
	require.NoError(t, os.WriteFile(target, []byte("before"), 0o644))

	fixID := strings.TrimSpace(env.mustRun(t, "fix", "apply", "write-file", "--set", "path=a.txt", "--set", "content=after"))
	data, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, "after", string(data))

	env.mustRun(t, "fix", "rollback", fixID)
	data, err = os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, "before", string(data))
}

func TestCLI_CheckRecordsAnalysis(t *testing.T) {
	env := newCLIEnv(t)
	env.mustRun(t, "config", "init")

	file := filepath.Join(env.projectDir, "main.go")
	require.NoError(t, os.WriteFile(file, []byte("package main\n\nfunc main() {}\n"), 0o644))

	sessionID := strings.TrimSpace(env.mustRun(t, "session", "start"))
	out := env.mustRun(t, "check", "line-count", file)
	assert.Contains(t, out, `"nonBlank": 2`)
	assert.Contains(t, out, sessionID)

	out = env.mustRun(t, "session", "export", sessionID, "--query", "analyses.#")
	assert.Equal(t, "1", strings.TrimSpace(out))
}

func TestCLI_FixStatus(t *testing.T) {
	env := newCLIEnv(t)
	env.mustRun(t, "config", "init")

	fixID := strings.TrimSpace(env.mustRun(t, "fix", "apply", "write-file",
		"--type", "file", "--set", "path=x.txt", "--set", "content=x"))

	_, err := env.run(t, "fix", "status", fixID, "pending")
	assert.Error(t, err, "applied cannot go back to pending")

	out := env.mustRun(t, "fix", "status", fixID, "applied", "--detail", "reviewer=sam")
	assert.Contains(t, out, "applied")

	_, err = env.run(t, "fix", "status", fixID, "done")
	assert.Error(t, err)
}

func TestCLI_Errors(t *testing.T) {
	env := newCLIEnv(t)

	_, err := env.run(t, "fix", "rollback", "missing-fix")
	assert.Error(t, err)

	_, err = env.run(t, "plugins", "load", "fixer", "nope")
	assert.Error(t, err)

	_, err = env.run(t, "plugins", "load", "widget", "nope")
	assert.Error(t, err)

	src := filepath.Join(env.projectDir, "src-plugin")
	_, err = env.run(t, "plugins", "install", src, "--type", "fixer", "--to", "system")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "system")

	_, err = env.run(t, "session", "start", "--context", "novalue")
	assert.Error(t, err)
}

func TestCLI_StateCleanup(t *testing.T) {
	env := newCLIEnv(t)
	env.mustRun(t, "session", "start")
	env.mustRun(t, "session", "start")
	time.Sleep(20 * time.Millisecond)

	out := env.mustRun(t, "state", "cleanup", "--max-age", "10ms")
	assert.Contains(t, out, "Removed 2 documents")

	out = env.mustRun(t, "session", "list")
	assert.Contains(t, out, "No sessions recorded.")
}

func TestCLI_DebugMetricsAndValidate(t *testing.T) {
	env := newCLIEnv(t)
	env.mustRun(t, "config", "init")

	out := env.mustRun(t, "debug", "metrics")
	assert.Contains(t, out, "devassist_plugins_discovered_total")

	out = env.mustRun(t, "validate")
	assert.Contains(t, out, "fixer:write-file")
	assert.Contains(t, out, "Validation completed successfully")
}
