package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors shared by the session and plugin layers.
var (
	// ErrNoActiveSession is returned when an operation needs the current session but none is active.
	ErrNoActiveSession = errors.New("no active session")

	// ErrInvalidTransition is returned when a fix status change violates the status lifecycle.
	ErrInvalidTransition = errors.New("invalid fix status transition")

	// ErrSessionCompleted is returned when resuming or mutating a completed session.
	ErrSessionCompleted = errors.New("session is completed")
)

// DiscoveryWarning describes a plugin candidate that was skipped during discovery.
// Warnings are never fatal; they are collected and logged.
type DiscoveryWarning struct {
	Type    string
	Path    string
	Message string
}

func (w DiscoveryWarning) String() string {
	return fmt.Sprintf("%s plugin at %s skipped: %s", w.Type, w.Path, w.Message)
}

// NotFoundError reports an unknown plugin key, fix id or session id.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Kind, e.ID)
}

// NewNotFound creates a NotFoundError.
func NewNotFound(kind, id string) *NotFoundError {
	return &NotFoundError{Kind: kind, ID: id}
}

// LoadError is fatal to a single plugin load and never aborts a batch.
type LoadError struct {
	Key    string
	Reason string
	Err    error
}

func (e *LoadError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("failed to load plugin %s: %s: %v", e.Key, e.Reason, e.Err)
	}
	return fmt.Sprintf("failed to load plugin %s: %s", e.Key, e.Reason)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// RollbackError reports a rollback that could not be performed. The fix is left untouched,
// so callers can inspect its current state and decide what to do.
type RollbackError struct {
	FixID  string
	Reason string
	Err    error
}

func (e *RollbackError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("cannot roll back fix %s: %s: %v", e.FixID, e.Reason, e.Err)
	}
	return fmt.Sprintf("cannot roll back fix %s: %s", e.FixID, e.Reason)
}

func (e *RollbackError) Unwrap() error {
	return e.Err
}

// UnsupportedRollbackTypeError is returned for fix types with no rollback strategy.
// It is always wrapped by a RollbackError.
type UnsupportedRollbackTypeError struct {
	Type string
}

func (e *UnsupportedRollbackTypeError) Error() string {
	return fmt.Sprintf("unsupported rollback type %q", e.Type)
}

// UnsupportedDestinationError is returned by the installer for unknown install targets.
type UnsupportedDestinationError struct {
	Destination string
}

func (e *UnsupportedDestinationError) Error() string {
	return fmt.Sprintf("unsupported install destination %q (expected project or user)", e.Destination)
}
