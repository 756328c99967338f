package workflows

type StudyConvertInput struct {
	RunID        string   `json:"run_id"`
	DocumentPath string   `json:"document_path"`
	Formats      []string `json:"formats,omitempty"`
	// ActivityTimeoutSeconds bounds each activity attempt; 0 means five minutes.
	ActivityTimeoutSeconds int `json:"activity_timeout_seconds,omitempty"`
	// SkipPersist leaves the graph on disk only; used by workers without a database.
	SkipPersist bool `json:"skip_persist,omitempty"`
}

type ConvertStatus struct {
	RunID        string            `json:"run_id"`
	DocumentID   string            `json:"document_id,omitempty"`
	DocumentPath string            `json:"document_path"`
	CurrentStep  string            `json:"current_step"`
	Status       string            `json:"status"`
	FailReason   string            `json:"fail_reason,omitempty"`
	NodeCount    int               `json:"node_count"`
	EdgeCount    int               `json:"edge_count"`
	Artifacts    []string          `json:"artifacts,omitempty"`
	Steps        map[string]string `json:"steps"`
}
