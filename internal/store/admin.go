package store

import (
	"database/sql"
	"log/slog"
	"time"

	"github.com/evalueate/proctor/internal/model"
)

// CreateAdmin inserts a reviewer account.
func (s *Store) CreateAdmin(username, passwordHash string) (int64, error) {
	res, err := s.db.Exec(
		`INSERT INTO admins (username, password_hash, created_at) VALUES (?, ?, ?)`,
		username, passwordHash, time.Now().UTC(),
	)
	if err != nil {
		slog.Error("failed to create admin", "username", username, "error", err)
		return 0, err
	}
	return res.LastInsertId()
}

// GetAdminByUsername returns an admin by username, or nil when absent.
func (s *Store) GetAdminByUsername(username string) (*model.Admin, error) {
	var a model.Admin
	err := s.db.QueryRow(
		`SELECT id, username, password_hash, created_at FROM admins WHERE username = ?`,
		username,
	).Scan(&a.ID, &a.Username, &a.PasswordHash, &a.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// AdminCount returns the number of reviewer accounts.
func (s *Store) AdminCount() (int, error) {
	var count int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM admins`).Scan(&count)
	return count, err
}
