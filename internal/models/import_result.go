package models

import "time"

// ImportStatus is the outcome class of a single import attempt.
type ImportStatus string

const (
	ImportSuccess  ImportStatus = "success"
	ImportConflict ImportStatus = "conflict"
	ImportError    ImportStatus = "error"
)

// ImportResult is the transient outcome of one archive import attempt.
// It is never persisted. A conflict result carries both last-modified
// timestamps so the caller can present an overwrite/keep decision.
type ImportResult struct {
	Status            ImportStatus `json:"status"`
	TrailID           string       `json:"trailId"`
	TrailName         string       `json:"trailName"`
	POIsImported      int          `json:"poisImported"`
	POIsSkipped       int          `json:"poisSkipped"`
	ImagesFailed      int          `json:"imagesFailed"`
	ExistingUpdatedAt *time.Time   `json:"existingUpdatedAt,omitempty"`
	IncomingUpdatedAt *time.Time   `json:"incomingUpdatedAt,omitempty"`
	ErrorMessage      string       `json:"errorMessage,omitempty"`
}
