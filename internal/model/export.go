package model

import "time"

// ExportFile is the top-level JSON structure for the results export.
type ExportFile struct {
	ExportedAt time.Time     `json:"exportedAt"`
	Sessions   []ExportEntry `json:"sessions"`
}

// ExportEntry holds one session's full record for export, including the
// audit log.
type ExportEntry struct {
	Session       Session    `json:"session"`
	Logs          []LogEntry `json:"logs"`
	EvidenceCount int        `json:"evidenceCount"`
}
