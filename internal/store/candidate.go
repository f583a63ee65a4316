package store

import (
	"crypto/subtle"
	"database/sql"
	"log/slog"
	"time"

	"github.com/evalueate/proctor/internal/model"
)

// CreateCandidate provisions (or re-provisions) a directory entry. An
// email maps to at most one access code at a time, so a repeat create
// rotates the code in place.
func (s *Store) CreateCandidate(email, accessCode string) error {
	_, err := s.db.Exec(
		`INSERT INTO candidates (email, access_code, created_at) VALUES (?, ?, ?)
		 ON CONFLICT(email) DO UPDATE SET access_code = excluded.access_code`,
		email, accessCode, time.Now().UTC(),
	)
	if err != nil {
		slog.Error("failed to create candidate", "email", email, "error", err)
		return err
	}
	return nil
}

// ListCandidates returns all directory entries with their lock state.
func (s *Store) ListCandidates() ([]model.DirectoryEntry, error) {
	rows, err := s.db.Query(`SELECT email, access_code, locked, created_at FROM candidates ORDER BY email`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var entries []model.DirectoryEntry
	for rows.Next() {
		var e model.DirectoryEntry
		if err := rows.Scan(&e.Email, &e.AccessCode, &e.Locked, &e.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Authorize reports whether the email exists in the directory and the
// supplied code matches its stored code. The comparison is constant
// time so code probing gains nothing from timing.
func (s *Store) Authorize(email, accessCode string) (bool, error) {
	var stored string
	err := s.db.QueryRow(`SELECT access_code FROM candidates WHERE email = ?`, email).Scan(&stored)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if len(stored) != len(accessCode) {
		return false, nil
	}
	return subtle.ConstantTimeCompare([]byte(stored), []byte(accessCode)) == 1, nil
}

// IsLocked reports whether the candidate has consumed their one attempt.
func (s *Store) IsLocked(email string) (bool, error) {
	var locked bool
	err := s.db.QueryRow(`SELECT locked FROM candidates WHERE email = ?`, email).Scan(&locked)
	if err == sql.ErrNoRows {
		return false, nil
	}
	return locked, err
}

// Lock marks the candidate's one attempt as consumed. Idempotent.
func (s *Store) Lock(email string) error {
	_, err := s.db.Exec(`UPDATE candidates SET locked = 1 WHERE email = ?`, email)
	return err
}

// Unlock reactivates a candidate. It reports whether the candidate was
// actually locked, so admin tooling can distinguish "reactivated" from
// "not locked".
func (s *Store) Unlock(email string) (bool, error) {
	res, err := s.db.Exec(`UPDATE candidates SET locked = 0 WHERE email = ? AND locked = 1`, email)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// CandidateCount returns the number of directory entries.
func (s *Store) CandidateCount() (int, error) {
	var count int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM candidates`).Scan(&count)
	return count, err
}
