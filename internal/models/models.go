package models

import "time"

const (
	RunPending    = "pending"
	RunProcessing = "processing"
	RunCompleted  = "completed"
	RunFailed     = "failed"
)

// ConversionRun tracks one attempt to turn an uploaded document into a
// stored study graph.
type ConversionRun struct {
	RunID      string    `json:"run_id"`
	DocumentID string    `json:"document_id"`
	Filename   string    `json:"filename"`
	WorkflowID string    `json:"workflow_id,omitempty"`
	Status     string    `json:"status"`
	FailReason string    `json:"fail_reason,omitempty"`
	NodeCount  int       `json:"node_count"`
	EdgeCount  int       `json:"edge_count"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// StudySummary is the stored header of a study graph.
type StudySummary struct {
	DocumentID string    `json:"document_id"`
	Name       string    `json:"name"`
	DBID       string    `json:"db_id"`
	RunID      string    `json:"run_id,omitempty"`
	NodeCount  int       `json:"node_count"`
	EdgeCount  int       `json:"edge_count"`
	CreatedAt  time.Time `json:"created_at"`
}
