// Package store is the authoritative persistence layer: sessions with
// their sections and answers, the candidate directory with its access
// locks, and the append-only proctoring event and evidence streams.
// Every mutation is committed before the call returns.
package store

import (
	"database/sql"
	"errors"
	"fmt"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned for operations against an unknown session or
// candidate. Callers translate it to a 404-equivalent and never create
// records implicitly.
var ErrNotFound = errors.New("not found")

// ErrAlreadyFinalized is returned when a session that already has a
// persisted result is finalized again.
var ErrAlreadyFinalized = errors.New("session already finalized")

type Store struct {
	db *sql.DB
}

func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS candidates (
		email TEXT PRIMARY KEY,
		access_code TEXT NOT NULL,
		locked INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS admins (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		username TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		created_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		candidate_name TEXT NOT NULL,
		candidate_email TEXT NOT NULL,
		job_description TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'ACTIVE',
		answers TEXT NOT NULL DEFAULT '{}',
		final_score INTEGER NOT NULL DEFAULT 0,
		max_score INTEGER NOT NULL DEFAULT 0,
		s1_score INTEGER NOT NULL DEFAULT 0,
		s2_score INTEGER NOT NULL DEFAULT 0,
		s3_score INTEGER NOT NULL DEFAULT 0,
		feedback TEXT NOT NULL DEFAULT '',
		start_time DATETIME NOT NULL,
		end_time DATETIME
	);

	CREATE TABLE IF NOT EXISTS sections (
		session_id TEXT NOT NULL,
		position INTEGER NOT NULL,
		section_id TEXT NOT NULL,
		title TEXT NOT NULL,
		duration_minutes INTEGER NOT NULL,
		kind TEXT NOT NULL,
		pending INTEGER NOT NULL DEFAULT 1,
		questions TEXT NOT NULL DEFAULT '[]',
		PRIMARY KEY (session_id, section_id),
		FOREIGN KEY (session_id) REFERENCES sessions(id)
	);

	CREATE TABLE IF NOT EXISTS proctor_events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id TEXT NOT NULL,
		at DATETIME NOT NULL,
		action TEXT NOT NULL,
		details TEXT NOT NULL DEFAULT '',
		FOREIGN KEY (session_id) REFERENCES sessions(id)
	);

	CREATE TABLE IF NOT EXISTS evidence (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id TEXT NOT NULL,
		at DATETIME NOT NULL,
		type TEXT NOT NULL,
		image TEXT NOT NULL,
		FOREIGN KEY (session_id) REFERENCES sessions(id)
	);
	`
	_, err := s.db.Exec(schema)
	return err
}
