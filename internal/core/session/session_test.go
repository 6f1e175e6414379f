package session

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"devassist.dev/cli/internal/core/domain"
)

var allStatuses = []FixStatus{FixStatusPending, FixStatusApplied, FixStatusFailed, FixStatusRolledBack}

// TestGenerateID_IsUniqueAndOrdered tests that generated ids are unique and time ordered
func TestGenerateID_IsUniqueAndOrdered(t *testing.T) {
	const numIDs = 1000
	ids := make(map[string]bool, numIDs)
	prev := ""

	for i := 0; i < numIDs; i++ {
		id := GenerateID()

		require.NotEmpty(t, id, "Generated ID should not be empty")
		require.False(t, ids[id], "Generated ID should be unique, got duplicate: %s", id)
		require.Greater(t, id, prev, "IDs should sort by creation order")

		ids[id] = true
		prev = id
	}
}

// TestSession_Lifecycle_TransitionsCorrectly tests session state transitions
func TestSession_Lifecycle_TransitionsCorrectly(t *testing.T) {
	start := time.Date(2026, 1, 2, 10, 0, 0, 0, time.UTC)
	s := NewSession(map[string]any{"cwd": "/project"}, start)

	assert.True(t, s.IsActive(), "New session should be active")
	assert.Nil(t, s.EndTime, "New session should not have end time")
	assert.Equal(t, 5*time.Minute, s.Duration(start.Add(5*time.Minute)))

	require.NoError(t, s.End(start.Add(time.Hour)))
	assert.Equal(t, SessionStatusCompleted, s.Status)
	assert.Equal(t, time.Hour, s.Duration(start.Add(48*time.Hour)), "Ended session duration is fixed")

	assert.Error(t, s.End(start.Add(2*time.Hour)), "Completed session cannot end again")
}

// TestSession_Summary_CountsAppliedFixesOnly tests the end-of-session summary
func TestSession_Summary_CountsAppliedFixesOnly(t *testing.T) {
	now := time.Now()
	s := NewSession(nil, now)

	applied := NewFixRecord(s.ID, map[string]any{"type": "file"}, now)
	require.NoError(t, applied.Transition(FixStatusApplied, nil, now))
	failed := NewFixRecord(s.ID, map[string]any{"type": "file"}, now)
	require.NoError(t, failed.Transition(FixStatusFailed, map[string]any{"error": "boom"}, now))

	s.AddFix(applied)
	s.AddFix(failed)
	s.AddAnalysis(NewAnalysisRecord(s.ID, map[string]any{"tool": "go vet"}, now))

	summary := s.Summarize(now)
	assert.Equal(t, s.ID, summary.ID)
	assert.Equal(t, 1, summary.FixesApplied)
	assert.Equal(t, 1, summary.AnalysesPerformed)
}

// TestSession_ReplaceFix_KeepsCopyInSync tests that the session copy follows updates
func TestSession_ReplaceFix_KeepsCopyInSync(t *testing.T) {
	now := time.Now()
	s := NewSession(nil, now)
	fix := NewFixRecord(s.ID, map[string]any{"type": "command"}, now)
	s.AddFix(fix)

	require.NoError(t, fix.Transition(FixStatusApplied, map[string]any{"exitCode": 0}, now))
	copyBefore, ok := s.Fix(fix.ID)
	require.True(t, ok)
	assert.Equal(t, FixStatusPending, copyBefore.Status, "AddFix stores a copy, not the pointer")

	s.ReplaceFix(fix)
	copyAfter, ok := s.Fix(fix.ID)
	require.True(t, ok)
	assert.Equal(t, FixStatusApplied, copyAfter.Status)
	assert.Len(t, s.Fixes, 1)
	assert.Equal(t, []string{fix.ID}, s.FixIDs)
}

// TestFixRecord_Transition_Rules tests allowed and rejected status changes
func TestFixRecord_Transition_Rules(t *testing.T) {
	tests := []struct {
		name     string
		path     []FixStatus
		captured bool
		allowed  bool
	}{
		{"PendingToApplied", []FixStatus{FixStatusApplied}, false, true},
		{"PendingToFailed", []FixStatus{FixStatusFailed}, false, true},
		{"AppliedToRolledBack", []FixStatus{FixStatusApplied, FixStatusRolledBack}, true, true},
		{"AppliedToRolledBackWithoutData", []FixStatus{FixStatusApplied, FixStatusRolledBack}, false, false},
		{"PendingToRolledBack", []FixStatus{FixStatusRolledBack}, true, false},
		{"FailedToApplied", []FixStatus{FixStatusFailed, FixStatusApplied}, false, false},
		{"RolledBackToApplied", []FixStatus{FixStatusApplied, FixStatusRolledBack, FixStatusApplied}, true, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fix := NewFixRecord("s1", map[string]any{"type": "file"}, time.Now())
			if tt.captured {
				fix.RollbackData = &RollbackData{Timestamp: time.Now()}
			}
			var err error
			for _, next := range tt.path {
				if err = fix.Transition(next, nil, time.Now()); err != nil {
					break
				}
			}
			if tt.allowed {
				assert.NoError(t, err)
				assert.Equal(t, tt.path[len(tt.path)-1], fix.Status)
			} else {
				assert.True(t, errors.Is(err, domain.ErrInvalidTransition), "expected ErrInvalidTransition, got %v", err)
			}
		})
	}
}

func TestFixRecord_Transition_RolledBackRequiresRollbackData(t *testing.T) {
	fix := NewFixRecord("s1", map[string]any{"type": "file"}, time.Now())
	require.NoError(t, fix.Transition(FixStatusApplied, nil, time.Now()))

	err := fix.Transition(FixStatusRolledBack, map[string]any{"reason": "manual"}, time.Now())
	var rollbackErr *domain.RollbackError
	require.ErrorAs(t, err, &rollbackErr)
	assert.Equal(t, fix.ID, rollbackErr.FixID)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
	assert.Equal(t, FixStatusApplied, fix.Status)
	assert.Nil(t, fix.Extra, "a rejected transition merges nothing")
}

// TestFixRecord_Transition_MergesExtra tests that extra fields accumulate
func TestFixRecord_Transition_MergesExtra(t *testing.T) {
	now := time.Now()
	fix := NewFixRecord("s1", map[string]any{"type": "file", "path": "a.txt"}, now)
	assert.Equal(t, FixTypeFile, fix.Type)

	require.NoError(t, fix.Transition(FixStatusApplied, map[string]any{"a": 1}, now))
	require.NoError(t, fix.Transition(FixStatusApplied, map[string]any{"b": 2}, now))

	assert.Equal(t, map[string]any{"a": 1, "b": 2}, fix.Extra)
	require.NotNil(t, fix.UpdatedAt)
}

func TestParseFixStatus(t *testing.T) {
	for _, s := range allStatuses {
		got, err := ParseFixStatus(string(s))
		require.NoError(t, err)
		assert.Equal(t, s, got)
	}
	_, err := ParseFixStatus("done")
	assert.Error(t, err)
}

// TestFixRecord_PropertyBased_TerminalStatusesStayTerminal checks that once a fix reaches
// rolled_back or failed no sequence of updates can leave it
func TestFixRecord_PropertyBased_TerminalStatusesStayTerminal(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		steps := rapid.SliceOfN(rapid.SampledFrom(allStatuses), 1, 20).Draw(t, "steps")
		fix := NewFixRecord("s", map[string]any{"type": "file"}, time.Now())
		fix.RollbackData = &RollbackData{Timestamp: time.Now()}

		terminal := false
		var terminalStatus FixStatus
		for _, next := range steps {
			before := fix.Status
			err := fix.Transition(next, nil, time.Now())

			if terminal {
				if next != terminalStatus {
					assert.Error(t, err)
				}
				assert.Equal(t, terminalStatus, fix.Status)
				continue
			}
			if err != nil {
				assert.Equal(t, before, fix.Status, "rejected transition must not change status")
			}
			if fix.Status.IsTerminal() {
				terminal = true
				terminalStatus = fix.Status
			}
		}
	})
}

// TestFixRecord_PropertyBased_CloneMatchesJSON checks that clones are independent copies
func TestFixRecord_PropertyBased_CloneMatchesJSON(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		path := rapid.StringMatching(`[a-z]{1,8}\.txt`).Draw(t, "path")
		content := rapid.StringMatching(`[a-zA-Z0-9 \n]{0,40}`).Draw(t, "content")

		fix := NewFixRecord("s", map[string]any{"type": "file"}, time.Now())
		fix.RollbackData = &RollbackData{Files: []FileSnapshot{{Path: path, OriginalContent: &content}}}

		clone := fix.Clone()
		require.NotNil(t, clone.RollbackData)
		assert.Equal(t, path, clone.RollbackData.Files[0].Path)
		assert.Equal(t, content, *clone.RollbackData.Files[0].OriginalContent)

		clone.RollbackData.Files[0].Path = "changed"
		assert.Equal(t, path, fix.RollbackData.Files[0].Path)
	})
}
