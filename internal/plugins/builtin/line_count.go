package builtin

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os"

	"devassist.dev/cli/internal/core/plugin"
	"devassist.dev/cli/internal/infrastructure/plugins"
)

// LineCount is a quality check reporting line counts.
type LineCount struct {
	manifest *plugin.Manifest
	maxLines int
}

func newLineCount(m *plugin.Manifest, shared plugins.SharedConfig) (any, error) {
	lc := &LineCount{manifest: m}
	switch v := shared["maxLines"].(type) {
	case int:
		lc.maxLines = v
	case int64:
		lc.maxLines = int(v)
	case float64:
		lc.maxLines = int(v)
	}
	return lc, nil
}

type fileLines struct {
	Total    int `json:"total"`
	Blank    int `json:"blank"`
	NonBlank int `json:"nonBlank"`
}

// Check counts lines per file. With opts["maxLines"] (or the shared maxLines) set,
// files above the limit are reported as violations and passed is false.
func (l *LineCount) Check(ctx context.Context, files []string, opts plugin.Options) (plugin.Result, error) {
	limit := l.maxLines
	if v, ok := opts["maxLines"].(int); ok {
		limit = v
	}

	perFile := make(map[string]any, len(files))
	var violations []string
	for _, file := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		counts, err := countLines(file)
		if err != nil {
			return nil, err
		}
		perFile[file] = counts
		if limit > 0 && counts.Total > limit {
			violations = append(violations, fmt.Sprintf("%s has %d lines, limit is %d", file, counts.Total, limit))
		}
	}

	return plugin.Result{
		"files":      perFile,
		"violations": violations,
		"passed":     len(violations) == 0,
	}, nil
}

// Metrics returns line totals over all files.
func (l *LineCount) Metrics(ctx context.Context, files []string) (plugin.Result, error) {
	var sum fileLines
	for _, file := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		counts, err := countLines(file)
		if err != nil {
			return nil, err
		}
		sum.Total += counts.Total
		sum.Blank += counts.Blank
		sum.NonBlank += counts.NonBlank
	}

	return plugin.Result{
		"files":    len(files),
		"total":    sum.Total,
		"blank":    sum.Blank,
		"nonBlank": sum.NonBlank,
	}, nil
}

func countLines(path string) (fileLines, error) {
	f, err := os.Open(path)
	if err != nil {
		return fileLines{}, fmt.Errorf("line-count: %w", err)
	}
	defer f.Close()

	var counts fileLines
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		counts.Total++
		if len(bytes.TrimSpace(scanner.Bytes())) == 0 {
			counts.Blank++
		} else {
			counts.NonBlank++
		}
	}
	if err := scanner.Err(); err != nil {
		return fileLines{}, fmt.Errorf("line-count: %s: %w", path, err)
	}
	return counts, nil
}
