package state

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"devassist.dev/cli/internal/core/session"
)

type payload struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func newTestStore(t *testing.T) (*Store, *bytes.Buffer) {
	t.Helper()
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug}))
	return NewStore(t.TempDir(), logger), &logs
}

func TestStore_SaveLoad_RoundTrip(t *testing.T) {
	store, _ := newTestStore(t)

	require.NoError(t, store.Save(session.TypeFix, "f1", payload{Name: "a", Count: 1}))

	var got payload
	require.True(t, store.Load(session.TypeFix, "f1", &got))
	assert.Equal(t, payload{Name: "a", Count: 1}, got)

	doc, ok := store.LoadDocument(session.TypeFix, "f1")
	require.True(t, ok)
	assert.Equal(t, session.TypeFix, doc.Type)
	assert.Equal(t, "f1", doc.ID)
	assert.Equal(t, DocumentVersion, doc.Version)
	assert.WithinDuration(t, time.Now(), doc.Timestamp, 5*time.Second)
}

func TestStore_Save_OverwritesWithoutMerge(t *testing.T) {
	store, _ := newTestStore(t)

	require.NoError(t, store.Save(session.TypeAnalysis, "a1", map[string]any{"first": true, "shared": 1}))
	require.NoError(t, store.Save(session.TypeAnalysis, "a1", map[string]any{"shared": 2}))

	var got map[string]any
	require.True(t, store.Load(session.TypeAnalysis, "a1", &got))
	assert.Equal(t, map[string]any{"shared": float64(2)}, got, "last write wins with no merge")
}

func TestStore_Load_AbsentNeverErrors(t *testing.T) {
	store, logs := newTestStore(t)

	var got payload
	assert.False(t, store.Load(session.TypeSession, "never-saved", &got))
	assert.Empty(t, logs.String(), "a missing document is not worth a warning")
}

func TestStore_Load_CorruptTreatedAsAbsent(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"Unparsable", "{this is not json"},
		{"WrongEnvelopeID", `{"type":"fix","id":"other","version":1,"data":{"name":"x"}}`},
		{"WrongEnvelopeType", `{"type":"session","id":"f1","version":1,"data":{"name":"x"}}`},
		{"MissingData", `{"type":"fix","id":"f1","version":1}`},
		{"PayloadTypeMismatch", `{"type":"fix","id":"f1","version":1,"data":{"count":"many"}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, logs := newTestStore(t)
			path := filepath.Join(store.Root(), "fix", "f1.json")
			require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0o644))

			var got payload
			assert.False(t, store.Load(session.TypeFix, "f1", &got))
			assert.Contains(t, logs.String(), "level=WARN")
		})
	}
}

func TestStore_RejectsPathLikeIDs(t *testing.T) {
	store, _ := newTestStore(t)

	for _, id := range []string{"", ".", "..", "../escape", `a\b`} {
		assert.Error(t, store.Save(session.TypeFix, id, payload{}), "id %q should be rejected", id)
		assert.False(t, store.Load(session.TypeFix, id, &payload{}))
	}
}

func TestStore_ListAndDelete(t *testing.T) {
	store, _ := newTestStore(t)

	ids, err := store.List(session.TypePlugin)
	require.NoError(t, err)
	assert.Empty(t, ids)

	require.NoError(t, store.Save(session.TypePlugin, "fixer:b", payload{}))
	require.NoError(t, store.Save(session.TypePlugin, "fixer:a", payload{}))

	ids, err = store.List(session.TypePlugin)
	require.NoError(t, err)
	assert.Equal(t, []string{"fixer:a", "fixer:b"}, ids)

	require.NoError(t, store.Delete(session.TypePlugin, "fixer:a"))
	require.NoError(t, store.Delete(session.TypePlugin, "fixer:a"), "deleting twice is fine")
	assert.False(t, store.Exists(session.TypePlugin, "fixer:a"))
	assert.True(t, store.Exists(session.TypePlugin, "fixer:b"))
}

func TestStore_ListSessions_NewestFirst(t *testing.T) {
	store, _ := newTestStore(t)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	for i, offset := range []time.Duration{time.Hour, 3 * time.Hour, 2 * time.Hour} {
		s := session.NewSession(map[string]any{"n": i}, base.Add(offset))
		require.NoError(t, store.Save(session.TypeSession, s.ID, s))
	}
	// a corrupt session is skipped, not fatal
	require.NoError(t, os.WriteFile(filepath.Join(store.Root(), "session", "broken.json"), []byte("nope"), 0o644))

	sessions, err := store.ListSessions()
	require.NoError(t, err)
	require.Len(t, sessions, 3)
	assert.Equal(t, base.Add(3*time.Hour), sessions[0].StartTime)
	assert.Equal(t, base.Add(2*time.Hour), sessions[1].StartTime)
	assert.Equal(t, base.Add(time.Hour), sessions[2].StartTime)
}

func TestStore_Cleanup_RemovesOldDocuments(t *testing.T) {
	store, _ := newTestStore(t)

	require.NoError(t, store.Save(session.TypeSession, "old", payload{}))
	require.NoError(t, store.Save(session.TypeFix, "old-fix", payload{}))
	require.NoError(t, store.Save(session.TypeFix, "fresh", payload{}))

	past := time.Now().Add(-48 * time.Hour)
	require.NoError(t, os.Chtimes(filepath.Join(store.Root(), "session", "old.json"), past, past))
	require.NoError(t, os.Chtimes(filepath.Join(store.Root(), "fix", "old-fix.json"), past, past))

	removed, err := store.Cleanup(24 * time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 2, removed)
	assert.False(t, store.Exists(session.TypeSession, "old"))
	assert.True(t, store.Exists(session.TypeFix, "fresh"))
}

func TestStore_PropertyBased_ReadAfterWrite(t *testing.T) {
	store, _ := newTestStore(t)

	rapid.Check(t, func(t *rapid.T) {
		id := rapid.StringMatching(`[a-zA-Z0-9_-]{1,24}`).Draw(t, "id")
		docType := rapid.SampledFrom(session.DocumentTypes).Draw(t, "type")
		want := payload{
			Name:  rapid.StringMatching(`[ -~]{0,32}`).Draw(t, "name"),
			Count: rapid.IntRange(-1000, 1000).Draw(t, "count"),
		}

		require.NoError(t, store.Save(docType, id, want))

		var got payload
		require.True(t, store.Load(docType, id, &got))
		assert.Equal(t, want, got)

		raw, err := os.ReadFile(filepath.Join(store.Root(), string(docType), id+".json"))
		require.NoError(t, err)
		var doc map[string]json.RawMessage
		require.NoError(t, json.Unmarshal(raw, &doc))
		for _, field := range []string{"type", "id", "version", "timestamp", "data"} {
			assert.Contains(t, doc, field)
		}
	})
}
