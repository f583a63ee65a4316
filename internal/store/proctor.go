package store

import (
	"time"

	"github.com/evalueate/proctor/internal/model"
)

// AppendEvent adds one row to a session's append-only audit log.
// Unknown sessions get ErrNotFound, never an implicit record.
func (s *Store) AppendEvent(sessionID, action, details string) error {
	res, err := s.db.Exec(
		`INSERT INTO proctor_events (session_id, at, action, details)
		 SELECT ?, ?, ?, ? WHERE EXISTS (SELECT 1 FROM sessions WHERE id = ?)`,
		sessionID, time.Now().UTC(), action, details, sessionID,
	)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// AddEvidence appends a proctoring capture to a session.
func (s *Store) AddEvidence(sessionID, violationType, image string) error {
	res, err := s.db.Exec(
		`INSERT INTO evidence (session_id, at, type, image)
		 SELECT ?, ?, ?, ? WHERE EXISTS (SELECT 1 FROM sessions WHERE id = ?)`,
		sessionID, time.Now().UTC(), violationType, image, sessionID,
	)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// ListEvents returns a session's audit log in insertion order.
func (s *Store) ListEvents(sessionID string) ([]model.LogEntry, error) {
	rows, err := s.db.Query(
		`SELECT id, session_id, at, action, details FROM proctor_events WHERE session_id = ? ORDER BY id`,
		sessionID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var entries []model.LogEntry
	for rows.Next() {
		var e model.LogEntry
		if err := rows.Scan(&e.ID, &e.SessionID, &e.At, &e.Action, &e.Details); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// ListEvidence returns a session's captures in insertion order.
func (s *Store) ListEvidence(sessionID string) ([]model.Evidence, error) {
	rows, err := s.db.Query(
		`SELECT id, session_id, at, type, image FROM evidence WHERE session_id = ? ORDER BY id`,
		sessionID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var captures []model.Evidence
	for rows.Next() {
		var e model.Evidence
		if err := rows.Scan(&e.ID, &e.SessionID, &e.At, &e.Type, &e.Image); err != nil {
			return nil, err
		}
		captures = append(captures, e)
	}
	return captures, rows.Err()
}
