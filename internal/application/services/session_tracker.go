package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"devassist.dev/cli/internal/application/ports"
	"devassist.dev/cli/internal/core/domain"
	"devassist.dev/cli/internal/core/session"
	"devassist.dev/cli/internal/infrastructure/monitoring"
)

// ExtraSessionMissing is set in a fix's Extra when its session copy could not be updated.
const ExtraSessionMissing = "sessionMissing"

// SessionTracker records analyses and fixes against the current session and persists
// every mutation synchronously. One tracker owns the current session of a process.
type SessionTracker struct {
	mu       sync.Mutex
	store    ports.StateStore
	rollback *RollbackEngine
	current  *session.Session

	logger  *slog.Logger
	metrics *monitoring.Metrics
	tracer  trace.Tracer
	now     func() time.Time
}

// NewSessionTracker creates a tracker with no current session
func NewSessionTracker(store ports.StateStore, rollback *RollbackEngine, logger *slog.Logger, metrics *monitoring.Metrics) *SessionTracker {
	if logger == nil {
		logger = slog.Default()
	}
	if metrics == nil {
		metrics = monitoring.NewMetrics()
	}
	return &SessionTracker{
		store:    store,
		rollback: rollback,
		logger:   logger.With("component", "session"),
		metrics:  metrics,
		tracer:   otel.Tracer("devassist.dev/cli/sessions"),
		now:      time.Now,
	}
}

// Current returns a copy of the current session, or nil.
func (t *SessionTracker) Current() *session.Session {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.current == nil {
		return nil
	}
	return t.current.Clone()
}

// Start begins a new session. A session that is still current is completed first.
func (t *SessionTracker) Start(ctx map[string]any) (*session.Session, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.current != nil {
		t.logger.Info("completing previous session before starting a new one", "session", t.current.ID)
		if _, err := t.endLocked(); err != nil {
			return nil, err
		}
	}
	s, err := t.startLocked(ctx)
	if err != nil {
		return nil, err
	}
	return s.Clone(), nil
}

func (t *SessionTracker) startLocked(ctx map[string]any) (*session.Session, error) {
	s := session.NewSession(ctx, t.now().UTC())
	if err := t.store.Save(session.TypeSession, s.ID, s); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}
	t.current = s
	t.metrics.SessionsStarted.Inc()
	t.logger.Info("session started", "session", s.ID)
	return s, nil
}

// ensureLocked returns the current session, starting an empty one if there is none.
func (t *SessionTracker) ensureLocked() (*session.Session, error) {
	if t.current != nil {
		return t.current, nil
	}
	t.logger.Debug("no active session, starting one")
	return t.startLocked(nil)
}

// Resume makes a persisted active session current again.
func (t *SessionTracker) Resume(id string) (*session.Session, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.current != nil && t.current.ID == id {
		return t.current.Clone(), nil
	}

	var s session.Session
	if !t.store.Load(session.TypeSession, id, &s) {
		return nil, domain.NewNotFound("session", id)
	}
	if !s.IsActive() {
		return nil, fmt.Errorf("%w: %s", domain.ErrSessionCompleted, id)
	}
	t.current = &s
	return s.Clone(), nil
}

// End completes the current session and returns its summary.
func (t *SessionTracker) End() (*session.Summary, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.endLocked()
}

func (t *SessionTracker) endLocked() (*session.Summary, error) {
	if t.current == nil {
		return nil, domain.ErrNoActiveSession
	}

	now := t.now().UTC()
	s := t.current
	if err := s.End(now); err != nil {
		return nil, err
	}
	if err := t.store.Save(session.TypeSession, s.ID, s); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}

	summary := s.Summarize(now)
	t.current = nil
	t.metrics.SessionsEnded.Inc()
	t.logger.Info("session ended",
		"session", summary.ID,
		"duration", summary.Duration,
		"fixesApplied", summary.FixesApplied,
		"analyses", summary.AnalysesPerformed)
	return &summary, nil
}

// RecordAnalysis appends an analysis record to the current session.
func (t *SessionTracker) RecordAnalysis(payload map[string]any) (*session.AnalysisRecord, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	s, err := t.ensureLocked()
	if err != nil {
		return nil, err
	}

	record := session.NewAnalysisRecord(s.ID, payload, t.now().UTC())
	if err := t.store.Save(session.TypeAnalysis, record.ID, record); err != nil {
		return nil, fmt.Errorf("failed to save analysis: %w", err)
	}
	s.AddAnalysis(record)
	if err := t.store.Save(session.TypeSession, s.ID, s); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}

	t.metrics.AnalysesRecorded.Inc()
	t.logger.Debug("analysis recorded", "session", s.ID, "analysis", record.ID)
	return record, nil
}

// RecordFix creates a pending fix in the current session.
func (t *SessionTracker) RecordFix(spec map[string]any) (*session.FixRecord, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	s, err := t.ensureLocked()
	if err != nil {
		return nil, err
	}

	fix := session.NewFixRecord(s.ID, spec, t.now().UTC())
	if err := t.store.Save(session.TypeFix, fix.ID, fix); err != nil {
		return nil, fmt.Errorf("failed to save fix: %w", err)
	}
	s.AddFix(fix)
	if err := t.store.Save(session.TypeSession, s.ID, s); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}

	t.metrics.FixesRecorded.WithLabelValues(string(fix.Type)).Inc()
	t.logger.Info("fix recorded", "session", s.ID, "fix", fix.ID, "type", fix.Type)
	return fix, nil
}

// Fix returns the standalone record of a fix.
func (t *SessionTracker) Fix(id string) (*session.FixRecord, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.loadFix(id)
}

// PrepareRollback attaches rollback data to a fix without changing its status.
func (t *SessionTracker) PrepareRollback(fixID string, data session.RollbackData) (*session.FixRecord, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	fix, err := t.loadFix(fixID)
	if err != nil {
		return nil, err
	}
	data.Timestamp = t.now().UTC()
	fix.RollbackData = &data

	if err := t.persistFix(fix); err != nil {
		return nil, err
	}
	t.logger.Debug("rollback data captured", "fix", fix.ID, "files", len(data.Files))
	return fix, nil
}

// UpdateFixStatus moves a fix to status, merging extra into it. Both persisted copies
// of the fix are identical afterwards.
func (t *SessionTracker) UpdateFixStatus(fixID string, status session.FixStatus, extra map[string]any) (*session.FixRecord, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.updateFixStatusLocked(fixID, status, extra)
}

func (t *SessionTracker) updateFixStatusLocked(fixID string, status session.FixStatus, extra map[string]any) (*session.FixRecord, error) {
	fix, err := t.loadFix(fixID)
	if err != nil {
		return nil, err
	}
	if err := fix.Transition(status, extra, t.now().UTC()); err != nil {
		return nil, err
	}
	if err := t.persistFix(fix); err != nil {
		return nil, err
	}

	t.metrics.FixTransitions.WithLabelValues(string(status)).Inc()
	t.logger.Info("fix status updated", "fix", fix.ID, "status", status)
	return fix, nil
}

// RollbackFix undoes an applied fix from its rollback data. Command fixes are reported
// as unsupported and keep their status.
func (t *SessionTracker) RollbackFix(ctx context.Context, fixID string) (result *RollbackResult, err error) {
	ctx, span := t.tracer.Start(ctx, "sessions.RollbackFix", trace.WithAttributes(attribute.String("fix.id", fixID)))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "rollback failed")
		}
		span.End()
	}()

	t.mu.Lock()
	defer t.mu.Unlock()

	fix, err := t.loadFix(fixID)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.String("fix.type", string(fix.Type)))

	switch {
	case fix.RollbackData == nil:
		return nil, t.rollbackFailed(fix, &domain.RollbackError{FixID: fix.ID, Reason: "no rollback data captured"})
	case fix.Status == session.FixStatusRolledBack:
		return nil, t.rollbackFailed(fix, &domain.RollbackError{FixID: fix.ID, Reason: "fix is already rolled back"})
	case fix.Status != session.FixStatusApplied:
		return nil, t.rollbackFailed(fix, &domain.RollbackError{
			FixID:  fix.ID,
			Reason: fmt.Sprintf("fix is %s, only applied fixes can be rolled back", fix.Status),
		})
	}

	result, err = t.rollback.Rollback(ctx, fix)
	if err != nil {
		return nil, t.rollbackFailed(fix, err)
	}

	if !result.Supported {
		t.metrics.Rollbacks.WithLabelValues(string(fix.Type), "unsupported").Inc()
		t.logger.Info("rollback not supported for fix type", "fix", fix.ID, "type", fix.Type)
		return result, nil
	}
	if !result.Reverted() {
		return result, t.rollbackFailed(fix, &domain.RollbackError{FixID: fix.ID, Reason: "no file could be rolled back"})
	}

	extra := map[string]any{
		"rollbackResult": result,
		"rolledBackAt":   t.now().UTC(),
	}
	if _, err := t.updateFixStatusLocked(fix.ID, session.FixStatusRolledBack, extra); err != nil {
		return result, err
	}

	outcome := "success"
	if !result.Success {
		outcome = "partial"
	}
	t.metrics.Rollbacks.WithLabelValues(string(fix.Type), outcome).Inc()
	t.logger.Info("fix rolled back", "fix", fix.ID, "result", outcome, "files", len(result.Files))
	return result, nil
}

func (t *SessionTracker) rollbackFailed(fix *session.FixRecord, err error) error {
	t.metrics.Rollbacks.WithLabelValues(string(fix.Type), "error").Inc()
	t.logger.Warn("rollback refused", "fix", fix.ID, "error", err)
	return err
}

// Session returns a copy of the current session when id matches it, otherwise the
// persisted one.
func (t *SessionTracker) Session(id string) (*session.Session, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	s, err := t.loadSession(id)
	if err != nil {
		return nil, err
	}
	return s.Clone(), nil
}

// Export resolves a session with its fix and analysis records.
// A missing standalone fix document falls back to the session's embedded copy.
func (t *SessionTracker) Export(id string) (*session.Export, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	s, err := t.loadSession(id)
	if err != nil {
		return nil, err
	}

	export := &session.Export{
		Session:  s.Clone(),
		Fixes:    make([]*session.FixRecord, 0, len(s.FixIDs)),
		Analyses: make([]*session.AnalysisRecord, 0, len(s.AnalysisIDs)),
	}
	for _, fixID := range s.FixIDs {
		var fix session.FixRecord
		if t.store.Load(session.TypeFix, fixID, &fix) {
			export.Fixes = append(export.Fixes, &fix)
		} else if embedded, ok := s.Fix(fixID); ok {
			export.Fixes = append(export.Fixes, embedded)
		}
	}
	for _, analysisID := range s.AnalysisIDs {
		var analysis session.AnalysisRecord
		if t.store.Load(session.TypeAnalysis, analysisID, &analysis) {
			export.Analyses = append(export.Analyses, &analysis)
		}
	}
	return export, nil
}

// ListSessions returns every persisted session, newest first.
func (t *SessionTracker) ListSessions() ([]*session.Session, error) {
	return t.store.ListSessions()
}

// Cleanup removes state documents older than maxAge.
func (t *SessionTracker) Cleanup(maxAge time.Duration) (int, error) {
	removed, err := t.store.Cleanup(maxAge)
	t.metrics.DocumentsCleaned.Add(float64(removed))
	return removed, err
}

func (t *SessionTracker) loadSession(id string) (*session.Session, error) {
	if t.current != nil && t.current.ID == id {
		return t.current, nil
	}
	var s session.Session
	if !t.store.Load(session.TypeSession, id, &s) {
		return nil, domain.NewNotFound("session", id)
	}
	return &s, nil
}

func (t *SessionTracker) loadFix(id string) (*session.FixRecord, error) {
	var fix session.FixRecord
	if !t.store.Load(session.TypeFix, id, &fix) {
		return nil, domain.NewNotFound("fix", id)
	}
	return &fix, nil
}

// persistFix writes the standalone fix document and the owning session's copy.
// When the session document is missing or unreadable only the standalone document is
// written, and the fix is marked with ExtraSessionMissing.
func (t *SessionTracker) persistFix(fix *session.FixRecord) error {
	s, err := t.loadSession(fix.SessionID)
	if err != nil {
		t.logger.Warn("fix belongs to an unknown session, session copy not updated",
			"fix", fix.ID, "session", fix.SessionID)
		if fix.Extra == nil {
			fix.Extra = make(map[string]any, 1)
		}
		fix.Extra[ExtraSessionMissing] = true
	}

	if err := t.store.Save(session.TypeFix, fix.ID, fix); err != nil {
		return fmt.Errorf("failed to save fix: %w", err)
	}
	if s == nil {
		return nil
	}
	s.ReplaceFix(fix)
	if err := t.store.Save(session.TypeSession, s.ID, s); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}
