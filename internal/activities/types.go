package activities

import "magegraph/internal/graph"

type ComputeDocumentIDInput struct {
	DocumentPath string `json:"document_path"`
}

type ComputeDocumentIDOutput struct {
	DocumentID string `json:"document_id"`
}

type BuildStudyInput struct {
	DocumentPath string `json:"document_path"`
}

type BuildStudyOutput struct {
	Study     graph.Study `json:"study"`
	NodeCount int         `json:"node_count"`
	EdgeCount int         `json:"edge_count"`
}

type WriteStudyArtifactsInput struct {
	DocumentID string      `json:"document_id"`
	Study      graph.Study `json:"study"`
	Formats    []string    `json:"formats,omitempty"`
}

type WriteStudyArtifactsOutput struct {
	Paths    []string `json:"paths"`
	Manifest string   `json:"manifest"`
}

type PersistStudyInput struct {
	RunID      string      `json:"run_id"`
	DocumentID string      `json:"document_id"`
	Study      graph.Study `json:"study"`
}

type UpdateRunStatusInput struct {
	RunID      string `json:"run_id"`
	Status     string `json:"status"`
	FailReason string `json:"fail_reason,omitempty"`
	NodeCount  int    `json:"node_count"`
	EdgeCount  int    `json:"edge_count"`
}
