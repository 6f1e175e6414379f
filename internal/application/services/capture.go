package services

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"devassist.dev/cli/internal/core/session"
)

// CaptureFiles snapshots paths before a file fix runs. Existing files keep their
// content; missing files are marked as created so rollback removes them.
// Relative paths are recorded as given and resolve against projectDir.
func CaptureFiles(projectDir string, paths ...string) (session.RollbackData, error) {
	data := session.RollbackData{Files: make([]session.FileSnapshot, 0, len(paths))}

	for _, path := range paths {
		abs := path
		if !filepath.IsAbs(abs) {
			abs = filepath.Join(projectDir, path)
		}

		content, err := os.ReadFile(abs)
		switch {
		case err == nil:
			original := string(content)
			data.Files = append(data.Files, session.FileSnapshot{Path: path, OriginalContent: &original})
		case errors.Is(err, fs.ErrNotExist):
			data.Files = append(data.Files, session.FileSnapshot{Path: path, WasCreated: true})
		default:
			return session.RollbackData{}, fmt.Errorf("failed to capture %s: %w", path, err)
		}
	}

	return data, nil
}
