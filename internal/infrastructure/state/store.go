package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"devassist.dev/cli/internal/core/session"
)

// DocumentVersion is the envelope format version written by Save.
const DocumentVersion = 1

// Document is the durable envelope around every persisted entity.
type Document struct {
	Type      session.DocumentType `json:"type"`
	ID        string               `json:"id"`
	Version   int                  `json:"version"`
	Timestamp time.Time            `json:"timestamp"`
	Data      json.RawMessage      `json:"data"`
}

// Store persists one JSON document per (type, id) under a root directory:
//
//	<root>/<type>/<id>.json
//
// Writes are atomic at document granularity; the last write wins.
type Store struct {
	root   string
	logger *slog.Logger
	now    func() time.Time
}

// NewStore creates a store rooted at dir. The directory is created on first write.
func NewStore(dir string, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		root:   dir,
		logger: logger.With("component", "state"),
		now:    time.Now,
	}
}

// Root returns the state directory.
func (s *Store) Root() string {
	return s.root
}

// Save overwrites the document for (docType, id) with data.
func (s *Store) Save(docType session.DocumentType, id string, data any) error {
	path, err := s.path(docType, id)
	if err != nil {
		return err
	}

	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal %s %s: %w", docType, id, err)
	}

	doc := Document{
		Type:      docType,
		ID:        id,
		Version:   DocumentVersion,
		Timestamp: s.now().UTC(),
		Data:      payload,
	}
	raw, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal %s %s envelope: %w", docType, id, err)
	}

	if err := writeFileAtomic(path, raw, 0o644); err != nil {
		return fmt.Errorf("failed to save %s %s: %w", docType, id, err)
	}
	return nil
}

// Load decodes the payload of (docType, id) into out and reports whether it was found.
// Missing, unreadable and corrupt documents all report false; corruption is logged
// so callers can proceed as if the key were absent.
func (s *Store) Load(docType session.DocumentType, id string, out any) bool {
	doc, ok := s.LoadDocument(docType, id)
	if !ok {
		return false
	}
	if err := json.Unmarshal(doc.Data, out); err != nil {
		s.logger.Warn("corrupt state document payload, treating as absent",
			"type", docType, "id", id, "error", err)
		return false
	}
	return true
}

// LoadDocument returns the raw envelope of (docType, id).
func (s *Store) LoadDocument(docType session.DocumentType, id string) (*Document, bool) {
	path, err := s.path(docType, id)
	if err != nil {
		s.logger.Warn("invalid state key", "type", docType, "id", id, "error", err)
		return nil, false
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			s.logger.Warn("failed to read state document, treating as absent",
				"type", docType, "id", id, "error", err)
		}
		return nil, false
	}

	var doc Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		s.logger.Warn("corrupt state document, treating as absent",
			"type", docType, "id", id, "path", path, "error", err)
		return nil, false
	}
	if doc.Type != docType || doc.ID != id || len(doc.Data) == 0 {
		s.logger.Warn("state document envelope mismatch, treating as absent",
			"type", docType, "id", id, "envelopeType", doc.Type, "envelopeID", doc.ID)
		return nil, false
	}
	return &doc, true
}

// Exists reports whether a document file is present, without validating it.
func (s *Store) Exists(docType session.DocumentType, id string) bool {
	path, err := s.path(docType, id)
	if err != nil {
		return false
	}
	_, err = os.Stat(path)
	return err == nil
}

// Delete removes (docType, id). Deleting a missing document is not an error.
func (s *Store) Delete(docType session.DocumentType, id string) error {
	path, err := s.path(docType, id)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to delete %s %s: %w", docType, id, err)
	}
	return nil
}

// List returns the ids of every document of docType, sorted.
func (s *Store) List(docType session.DocumentType) ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(s.root, string(docType)))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to list %s documents: %w", docType, err)
	}

	ids := make([]string, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || filepath.Ext(name) != ".json" {
			continue
		}
		ids = append(ids, strings.TrimSuffix(name, ".json"))
	}
	sort.Strings(ids)
	return ids, nil
}

// ListSessions returns every readable session, newest start time first.
func (s *Store) ListSessions() ([]*session.Session, error) {
	ids, err := s.List(session.TypeSession)
	if err != nil {
		return nil, err
	}

	sessions := make([]*session.Session, 0, len(ids))
	for _, id := range ids {
		var sess session.Session
		if s.Load(session.TypeSession, id, &sess) {
			sessions = append(sessions, &sess)
		}
	}

	sort.SliceStable(sessions, func(i, j int) bool {
		return sessions[i].StartTime.After(sessions[j].StartTime)
	})
	return sessions, nil
}

// Cleanup removes documents of every type whose modification time is older than maxAge
// and returns how many were removed.
func (s *Store) Cleanup(maxAge time.Duration) (int, error) {
	cutoff := s.now().Add(-maxAge)
	removed := 0

	for _, docType := range session.DocumentTypes {
		dir := filepath.Join(s.root, string(docType))
		entries, err := os.ReadDir(dir)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return removed, fmt.Errorf("failed to scan %s documents: %w", docType, err)
		}

		for _, entry := range entries {
			if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
				continue
			}
			info, err := entry.Info()
			if err != nil {
				continue
			}
			if !info.ModTime().Before(cutoff) {
				continue
			}
			if err := os.Remove(filepath.Join(dir, entry.Name())); err != nil {
				s.logger.Warn("failed to remove expired document", "type", docType, "file", entry.Name(), "error", err)
				continue
			}
			removed++
		}
	}

	s.logger.Debug("state cleanup finished", "removed", removed, "maxAge", maxAge)
	return removed, nil
}

func (s *Store) path(docType session.DocumentType, id string) (string, error) {
	if docType == "" {
		return "", fmt.Errorf("document type is required")
	}
	if id == "" || id == "." || id == ".." || strings.ContainsAny(id, `/\`) {
		return "", fmt.Errorf("invalid document id %q", id)
	}
	return filepath.Join(s.root, string(docType), id+".json"), nil
}
