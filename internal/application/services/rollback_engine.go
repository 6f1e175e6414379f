package services

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"devassist.dev/cli/internal/core/domain"
	"devassist.dev/cli/internal/core/session"
)

// Per-file rollback outcomes.
const (
	FileRestored = "restored"
	FileRemoved  = "removed"
	FileSkipped  = "skipped"
	FileError    = "error"
)

// FileRollback is the outcome for one captured file.
type FileRollback struct {
	Path   string `json:"path"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// RollbackResult reports what a rollback strategy did.
// Supported is false when the fix type has no generic undo; nothing was changed then.
type RollbackResult struct {
	FixID     string         `json:"fixId"`
	Type      string         `json:"type"`
	Supported bool           `json:"supported"`
	Success   bool           `json:"success"`
	Message   string         `json:"message"`
	Command   string         `json:"command,omitempty"`
	Files     []FileRollback `json:"files,omitempty"`
}

// Reverted reports whether at least part of the fix was undone, or there was nothing to undo.
func (r *RollbackResult) Reverted() bool {
	if !r.Supported {
		return false
	}
	if len(r.Files) == 0 {
		return true
	}
	for _, f := range r.Files {
		if f.Status == FileRestored || f.Status == FileRemoved {
			return true
		}
	}
	return false
}

// RollbackStrategy undoes one type of fix from its captured rollback data.
type RollbackStrategy interface {
	Rollback(ctx context.Context, fix *session.FixRecord) (*RollbackResult, error)
}

// RollbackEngine dispatches rollbacks by fix type.
type RollbackEngine struct {
	strategies map[session.FixType]RollbackStrategy
	logger     *slog.Logger
}

// NewRollbackEngine creates an engine with the file and command strategies.
// Relative file paths are resolved against projectDir.
func NewRollbackEngine(projectDir string, logger *slog.Logger) *RollbackEngine {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "rollback")
	return &RollbackEngine{
		strategies: map[session.FixType]RollbackStrategy{
			session.FixTypeFile:    &fileRollback{projectDir: projectDir, logger: logger},
			session.FixTypeCommand: commandRollback{},
		},
		logger: logger,
	}
}

// Register adds or replaces the strategy for a fix type.
func (e *RollbackEngine) Register(fixType session.FixType, strategy RollbackStrategy) {
	e.strategies[fixType] = strategy
}

// Rollback runs the strategy for the fix's type. It does not change the fix.
func (e *RollbackEngine) Rollback(ctx context.Context, fix *session.FixRecord) (*RollbackResult, error) {
	if fix.RollbackData == nil {
		return nil, &domain.RollbackError{FixID: fix.ID, Reason: "no rollback data captured"}
	}
	strategy, ok := e.strategies[fix.Type]
	if !ok {
		return nil, &domain.RollbackError{
			FixID:  fix.ID,
			Reason: "no rollback strategy",
			Err:    &domain.UnsupportedRollbackTypeError{Type: string(fix.Type)},
		}
	}
	return strategy.Rollback(ctx, fix)
}

type fileRollback struct {
	projectDir string
	logger     *slog.Logger
}

func (s *fileRollback) Rollback(ctx context.Context, fix *session.FixRecord) (*RollbackResult, error) {
	result := &RollbackResult{
		FixID:     fix.ID,
		Type:      string(session.FixTypeFile),
		Supported: true,
		Success:   true,
	}

	for _, snapshot := range fix.RollbackData.Files {
		outcome := s.restore(snapshot)
		if outcome.Status == FileError {
			result.Success = false
			s.logger.Warn("failed to roll back file", "fix", fix.ID, "path", snapshot.Path, "error", outcome.Error)
		}
		result.Files = append(result.Files, outcome)
	}

	restored := 0
	for _, f := range result.Files {
		if f.Status == FileRestored || f.Status == FileRemoved {
			restored++
		}
	}
	result.Message = fmt.Sprintf("rolled back %d of %d files", restored, len(result.Files))
	return result, nil
}

func (s *fileRollback) restore(snapshot session.FileSnapshot) FileRollback {
	path := snapshot.Path
	if !filepath.IsAbs(path) && s.projectDir != "" {
		path = filepath.Join(s.projectDir, path)
	}
	outcome := FileRollback{Path: snapshot.Path}

	switch {
	case snapshot.OriginalContent != nil:
		mode := os.FileMode(0o644)
		if info, err := os.Stat(path); err == nil {
			mode = info.Mode().Perm()
		}
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			outcome.Status, outcome.Error = FileError, err.Error()
			return outcome
		}
		if err := os.WriteFile(path, []byte(*snapshot.OriginalContent), mode); err != nil {
			outcome.Status, outcome.Error = FileError, err.Error()
			return outcome
		}
		outcome.Status = FileRestored

	case snapshot.WasCreated:
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			outcome.Status, outcome.Error = FileError, err.Error()
			return outcome
		}
		outcome.Status = FileRemoved

	default:
		outcome.Status = FileSkipped
	}
	return outcome
}

type commandRollback struct{}

func (commandRollback) Rollback(_ context.Context, fix *session.FixRecord) (*RollbackResult, error) {
	result := &RollbackResult{
		FixID:     fix.ID,
		Type:      string(session.FixTypeCommand),
		Supported: false,
		Message:   "rollback is not supported for command fixes",
		Command:   fix.RollbackData.Command,
	}
	if result.Command != "" {
		result.Message += "; run the rollback command manually"
	}
	return result, nil
}
