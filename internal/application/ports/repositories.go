package ports

import (
	"time"

	"devassist.dev/cli/internal/core/session"
)

// StateStore defines the document persistence the session tracker needs
type StateStore interface {
	// Save overwrites the document for (docType, id)
	Save(docType session.DocumentType, id string, data any) error

	// Load decodes a document into out and reports whether it was found.
	// Corrupt documents report false.
	Load(docType session.DocumentType, id string, out any) bool

	// ListSessions returns every readable session, newest first
	ListSessions() ([]*session.Session, error)

	// Cleanup removes documents older than maxAge and returns how many were removed
	Cleanup(maxAge time.Duration) (int, error)
}
