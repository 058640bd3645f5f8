package model

import "time"

// ResultExport is the top-level JSON structure for session result export.
type ResultExport struct {
	GeneratedAt time.Time       `json:"generated_at"`
	BankSource  string          `json:"bank_source,omitempty"`
	Sessions    []SessionExport `json:"sessions"`
}

// SessionExport holds one quiz session's data for export.
type SessionExport struct {
	ID               string           `json:"id"`
	Division         string           `json:"division"`
	Role             string           `json:"role,omitempty"`
	SupervisorStatus SupervisorStatus `json:"supervisor_status"`
	State            SessionState     `json:"state"`
	Score            int              `json:"score"`
	Total            int              `json:"total"`
	Percentage       float64          `json:"percentage"`
	StartedAt        time.Time        `json:"started_at"`
	CompletedAt      *time.Time       `json:"completed_at,omitempty"`
	Responses        []ResponseRecord `json:"responses"`
}
