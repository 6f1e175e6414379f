package session

import (
	"encoding/json"
	"fmt"
	"time"

	"devassist.dev/cli/internal/core/domain"
)

// FixStatus is the lifecycle state of a fix
type FixStatus string

const (
	FixStatusPending    FixStatus = "pending"
	FixStatusApplied    FixStatus = "applied"
	FixStatusFailed     FixStatus = "failed"
	FixStatusRolledBack FixStatus = "rolled_back"
)

// FixType selects the rollback strategy of a fix
type FixType string

const (
	FixTypeFile    FixType = "file"
	FixTypeCommand FixType = "command"
)

var transitions = map[FixStatus][]FixStatus{
	FixStatusPending: {FixStatusApplied, FixStatusFailed},
	FixStatusApplied: {FixStatusRolledBack},
}

// ParseFixStatus validates a status name
func ParseFixStatus(value string) (FixStatus, error) {
	switch s := FixStatus(value); s {
	case FixStatusPending, FixStatusApplied, FixStatusFailed, FixStatusRolledBack:
		return s, nil
	}
	return "", fmt.Errorf("unknown fix status %q", value)
}

// CanTransitionTo reports whether the lifecycle allows moving to next.
// Staying in the same status is always allowed; it only merges details.
func (s FixStatus) CanTransitionTo(next FixStatus) bool {
	if s == next {
		return true
	}
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// IsTerminal returns true for statuses with no outgoing transitions
func (s FixStatus) IsTerminal() bool {
	return len(transitions[s]) == 0
}

// FileSnapshot is the pre-fix state of one file touched by a fix.
type FileSnapshot struct {
	Path            string  `json:"path"`
	OriginalContent *string `json:"originalContent,omitempty"`
	WasCreated      bool    `json:"wasCreated,omitempty"`
}

// RollbackData is captured before a fix is applied and consumed by rollback.
type RollbackData struct {
	Timestamp time.Time      `json:"timestamp"`
	Files     []FileSnapshot `json:"files,omitempty"`
	Command   string         `json:"command,omitempty"`
	Details   map[string]any `json:"details,omitempty"`
}

// FixRecord tracks one attempt to change project state.
type FixRecord struct {
	ID           string         `json:"id"`
	SessionID    string         `json:"sessionId"`
	Timestamp    time.Time      `json:"timestamp"`
	Status       FixStatus      `json:"status"`
	Type         FixType        `json:"type"`
	RollbackData *RollbackData  `json:"rollbackData"`
	Payload      map[string]any `json:"payload"`
	UpdatedAt    *time.Time     `json:"updatedAt,omitempty"`
	Extra        map[string]any `json:"extra,omitempty"`
}

// NewFixRecord creates a pending fix for a session. The fix type is read from spec["type"].
func NewFixRecord(sessionID string, spec map[string]any, now time.Time) *FixRecord {
	fixType, _ := spec["type"].(string)
	return &FixRecord{
		ID:        GenerateID(),
		SessionID: sessionID,
		Timestamp: now,
		Status:    FixStatusPending,
		Type:      FixType(fixType),
		Payload:   spec,
	}
}

// Transition moves the fix to next, merging extra into its details.
// A fix without rollback data can never become rolled_back.
func (f *FixRecord) Transition(next FixStatus, extra map[string]any, now time.Time) error {
	if !f.Status.CanTransitionTo(next) {
		return fmt.Errorf("%w: %s -> %s", domain.ErrInvalidTransition, f.Status, next)
	}
	if next == FixStatusRolledBack && f.Status != next && f.RollbackData == nil {
		return &domain.RollbackError{FixID: f.ID, Reason: "no rollback data captured", Err: domain.ErrInvalidTransition}
	}
	if len(extra) > 0 {
		if f.Extra == nil {
			f.Extra = make(map[string]any, len(extra))
		}
		for k, v := range extra {
			f.Extra[k] = v
		}
	}
	f.Status = next
	f.UpdatedAt = &now
	return nil
}

// Clone returns a deep copy through the JSON form, which is the form both persisted
// copies share.
func (f *FixRecord) Clone() *FixRecord {
	data, err := json.Marshal(f)
	if err != nil {
		clone := *f
		return &clone
	}
	var clone FixRecord
	if err := json.Unmarshal(data, &clone); err != nil {
		shallow := *f
		return &shallow
	}
	return &clone
}
