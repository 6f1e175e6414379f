package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input       string
		expected    slog.Level
		expectError bool
	}{
		{"debug", slog.LevelDebug, false},
		{"", slog.LevelInfo, false},
		{"WARNING", slog.LevelWarn, false},
		{"error", slog.LevelError, false},
		{"verbose", slog.LevelInfo, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseLevel(tt.input)
			if tt.expectError {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestNewConsoleLogger_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewConsoleLogger(Options{Level: "info", Format: "json", Writer: &buf})
	require.NoError(t, err)

	logger.Debug("hidden")
	logger.Info("plugin loaded", "key", "fixer:write-file")

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "plugin loaded", record["msg"])
	assert.Equal(t, "fixer:write-file", record["key"])
}

func TestNewConsoleLogger_RejectsUnknownFormat(t *testing.T) {
	_, err := NewConsoleLogger(Options{Format: "xml"})
	assert.Error(t, err)
}

func TestDiscard_DropsEverything(t *testing.T) {
	logger := Discard()
	assert.False(t, logger.Enabled(context.Background(), slog.LevelError))
}
