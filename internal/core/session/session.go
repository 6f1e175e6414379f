package session

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// SessionStatus represents the lifecycle state of a session
type SessionStatus string

const (
	SessionStatusActive    SessionStatus = "active"
	SessionStatusCompleted SessionStatus = "completed"
)

// GenerateID returns a time-ordered identifier with random entropy, so ids created by
// independent processes never collide and sort by creation time.
func GenerateID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.New().String()
	}
	return id.String()
}

// Session groups the analyses and fixes performed in one unit of work.
// It is persisted as a "session" state document; Fixes holds the session's copy of
// every fix record and must stay identical to the standalone fix documents.
type Session struct {
	ID          string         `json:"id"`
	StartTime   time.Time      `json:"startTime"`
	EndTime     *time.Time     `json:"endTime"`
	Context     map[string]any `json:"context,omitempty"`
	FixIDs      []string       `json:"fixIds"`
	AnalysisIDs []string       `json:"analysisIds"`
	Fixes       []*FixRecord   `json:"fixes"`
	Status      SessionStatus  `json:"status"`
}

// Summary is returned when a session ends.
type Summary struct {
	ID                string        `json:"id"`
	Duration          time.Duration `json:"duration"`
	FixesApplied      int           `json:"fixesApplied"`
	AnalysesPerformed int           `json:"analysesPerformed"`
}

// NewSession creates an active session started at now
func NewSession(ctx map[string]any, now time.Time) *Session {
	return &Session{
		ID:          GenerateID(),
		StartTime:   now,
		Context:     ctx,
		FixIDs:      make([]string, 0),
		AnalysisIDs: make([]string, 0),
		Fixes:       make([]*FixRecord, 0),
		Status:      SessionStatusActive,
	}
}

// IsActive returns true if the session has not ended
func (s *Session) IsActive() bool {
	return s.Status == SessionStatusActive
}

// Duration returns the elapsed time, up to now for active sessions
func (s *Session) Duration(now time.Time) time.Duration {
	if s.EndTime != nil {
		return s.EndTime.Sub(s.StartTime)
	}
	return now.Sub(s.StartTime)
}

// End completes the session
func (s *Session) End(now time.Time) error {
	if !s.IsActive() {
		return fmt.Errorf("session can only be ended from active state, current state: %s", s.Status)
	}
	s.EndTime = &now
	s.Status = SessionStatusCompleted
	return nil
}

// AddFix appends a fix record and its id
func (s *Session) AddFix(fix *FixRecord) {
	s.FixIDs = append(s.FixIDs, fix.ID)
	s.Fixes = append(s.Fixes, fix.Clone())
}

// AddAnalysis appends an analysis id
func (s *Session) AddAnalysis(analysis *AnalysisRecord) {
	s.AnalysisIDs = append(s.AnalysisIDs, analysis.ID)
}

// ReplaceFix overwrites the session's copy of a fix; it appends when the copy is missing.
func (s *Session) ReplaceFix(fix *FixRecord) {
	for i, existing := range s.Fixes {
		if existing.ID == fix.ID {
			s.Fixes[i] = fix.Clone()
			return
		}
	}
	s.Fixes = append(s.Fixes, fix.Clone())
	if !contains(s.FixIDs, fix.ID) {
		s.FixIDs = append(s.FixIDs, fix.ID)
	}
}

// Clone returns a deep copy through the persisted JSON form.
func (s *Session) Clone() *Session {
	var clone Session
	data, err := json.Marshal(s)
	if err == nil {
		err = json.Unmarshal(data, &clone)
	}
	if err != nil {
		shallow := *s
		return &shallow
	}
	return &clone
}

// Fix returns the session's copy of a fix
func (s *Session) Fix(id string) (*FixRecord, bool) {
	for _, fix := range s.Fixes {
		if fix.ID == id {
			return fix, true
		}
	}
	return nil, false
}

// FixesApplied counts fixes whose status is applied
func (s *Session) FixesApplied() int {
	count := 0
	for _, fix := range s.Fixes {
		if fix.Status == FixStatusApplied {
			count++
		}
	}
	return count
}

// Summarize builds the end-of-session summary
func (s *Session) Summarize(now time.Time) Summary {
	return Summary{
		ID:                s.ID,
		Duration:          s.Duration(now),
		FixesApplied:      s.FixesApplied(),
		AnalysesPerformed: len(s.AnalysisIDs),
	}
}

// String returns a string representation of the session
func (s *Session) String() string {
	return fmt.Sprintf("Session{ID: %s, Status: %s, Fixes: %d, Analyses: %d}",
		s.ID, s.Status, len(s.FixIDs), len(s.AnalysisIDs))
}

// AnalysisRecord is an append-only record of one analysis.
type AnalysisRecord struct {
	ID        string         `json:"id"`
	SessionID string         `json:"sessionId"`
	Timestamp time.Time      `json:"timestamp"`
	Payload   map[string]any `json:"payload"`
}

// NewAnalysisRecord creates an analysis record for a session
func NewAnalysisRecord(sessionID string, payload map[string]any, now time.Time) *AnalysisRecord {
	return &AnalysisRecord{
		ID:        GenerateID(),
		SessionID: sessionID,
		Timestamp: now,
		Payload:   payload,
	}
}

// Export is a session resolved together with the records it references.
type Export struct {
	Session  *Session          `json:"session"`
	Fixes    []*FixRecord      `json:"fixes"`
	Analyses []*AnalysisRecord `json:"analyses"`
}

func contains(values []string, v string) bool {
	for _, value := range values {
		if value == v {
			return true
		}
	}
	return false
}
