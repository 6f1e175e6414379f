package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86"))
	headerStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86"))
	mutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("46"))
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	errorStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("196"))
)

// printTitle writes a styled section title
func printTitle(w io.Writer, title string) {
	fmt.Fprintln(w, titleStyle.Render(title))
}

// renderTable lays out rows in padded columns under a styled header
func renderTable(w io.Writer, headers []string, rows [][]string) {
	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = lipgloss.Width(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			if i < len(widths) && lipgloss.Width(cell) > widths[i] {
				widths[i] = lipgloss.Width(cell)
			}
		}
	}

	line := func(cells []string, style *lipgloss.Style) string {
		parts := make([]string, len(cells))
		for i, cell := range cells {
			padded := cell + strings.Repeat(" ", widths[i]-lipgloss.Width(cell))
			if style != nil {
				padded = style.Render(padded)
			}
			parts[i] = padded
		}
		return strings.TrimRight(strings.Join(parts, "  "), " ")
	}

	fmt.Fprintln(w, line(headers, &headerStyle))
	for _, row := range rows {
		fmt.Fprintln(w, line(row, nil))
	}
}

// printJSON writes v as indented JSON
func printJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

// parseKeyValues turns repeated key=value flags into a map
func parseKeyValues(pairs []string) (map[string]any, error) {
	out := make(map[string]any, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("expected key=value, got %q", pair)
		}
		out[key] = value
	}
	return out, nil
}

// shortID trims an id for table display
func shortID(id string) string {
	if len(id) <= 13 {
		return id
	}
	return id[:13]
}
