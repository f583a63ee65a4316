package store

import (
	"fmt"

	"github.com/evalueate/proctor/internal/model"
)

// ExportAllSessions builds the full export snapshot: every session with
// its audit log and evidence count. Correct answers are included; this
// is an admin-only artifact produced after sessions end.
func (s *Store) ExportAllSessions() ([]model.ExportEntry, error) {
	summaries, err := s.ListSessions()
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}

	var entries []model.ExportEntry
	for _, sum := range summaries {
		sess, err := s.GetSession(sum.SessionID)
		if err != nil {
			return nil, fmt.Errorf("get session %s: %w", sum.SessionID, err)
		}
		logs, err := s.ListEvents(sum.SessionID)
		if err != nil {
			return nil, fmt.Errorf("list events %s: %w", sum.SessionID, err)
		}
		entries = append(entries, model.ExportEntry{
			Session:       *sess,
			Logs:          logs,
			EvidenceCount: sum.EvidenceCount,
		})
	}
	return entries, nil
}
