package services

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"devassist.dev/cli/internal/core/domain"
	"devassist.dev/cli/internal/core/session"
	"devassist.dev/cli/internal/core/testfixtures"
)

func fixWith(fixType session.FixType, data *session.RollbackData) *session.FixRecord {
	return &session.FixRecord{ID: "fix-1", Type: fixType, Status: session.FixStatusApplied, RollbackData: data}
}

func TestRollbackEngine_FileStrategy(t *testing.T) {
	dir := t.TempDir()
	engine := NewRollbackEngine(dir, nil)

	restored := filepath.Join(dir, "nested", "restored.txt")
	require.NoError(t, os.MkdirAll(filepath.Dir(restored), 0o755))
	require.NoError(t, os.WriteFile(restored, []byte("new"), 0o600))

	data := testfixtures.NewRollbackDataBuilder().
		WithOriginal("nested/restored.txt", "old").
		WithOriginal("deleted-by-fix.txt", "").
		WithCreated("never-existed.txt").
		Build()
	data.Files = append(data.Files, session.FileSnapshot{Path: "untracked.txt"})

	result, err := engine.Rollback(context.Background(), fixWith(session.FixTypeFile, &data))
	require.NoError(t, err)

	require.Len(t, result.Files, 4)
	assert.Equal(t, FileRestored, result.Files[0].Status)
	assert.Equal(t, FileRestored, result.Files[1].Status, "an empty original is still captured content")
	assert.Equal(t, FileRemoved, result.Files[2].Status, "removing a missing file is not an error")
	assert.Equal(t, FileSkipped, result.Files[3].Status)
	assert.True(t, result.Success)
	assert.True(t, result.Reverted())
	assert.Equal(t, "rolled back 3 of 4 files", result.Message)

	content, err := os.ReadFile(restored)
	require.NoError(t, err)
	assert.Equal(t, "old", string(content))
	info, err := os.Stat(restored)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm(), "existing permissions are kept")

	recreated, err := os.ReadFile(filepath.Join(dir, "deleted-by-fix.txt"))
	require.NoError(t, err)
	assert.Empty(t, recreated)
}

func TestRollbackEngine_CommandStrategy(t *testing.T) {
	engine := NewRollbackEngine(t.TempDir(), nil)
	data := testfixtures.NewRollbackDataBuilder().WithCommand("npm uninstall left-pad").Build()

	result, err := engine.Rollback(context.Background(), fixWith(session.FixTypeCommand, &data))
	require.NoError(t, err)

	assert.False(t, result.Supported)
	assert.False(t, result.Reverted())
	assert.Equal(t, "npm uninstall left-pad", result.Command)
}

func TestRollbackEngine_Errors(t *testing.T) {
	engine := NewRollbackEngine(t.TempDir(), nil)

	_, err := engine.Rollback(context.Background(), fixWith(session.FixTypeFile, nil))
	var re *domain.RollbackError
	require.ErrorAs(t, err, &re)

	_, err = engine.Rollback(context.Background(), fixWith("registry", &session.RollbackData{}))
	var ut *domain.UnsupportedRollbackTypeError
	require.ErrorAs(t, err, &ut)
	assert.Equal(t, "registry", ut.Type)
}

type recordingStrategy struct {
	calls int
}

func (s *recordingStrategy) Rollback(_ context.Context, fix *session.FixRecord) (*RollbackResult, error) {
	s.calls++
	return &RollbackResult{FixID: fix.ID, Type: string(fix.Type), Supported: true, Success: true}, nil
}

func TestRollbackEngine_Register(t *testing.T) {
	engine := NewRollbackEngine(t.TempDir(), nil)
	strategy := &recordingStrategy{}
	engine.Register("registry", strategy)

	result, err := engine.Rollback(context.Background(), fixWith("registry", &session.RollbackData{}))
	require.NoError(t, err)
	assert.Equal(t, 1, strategy.calls)
	assert.True(t, result.Reverted(), "no files means nothing left to undo")
}
