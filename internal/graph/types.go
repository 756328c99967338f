package graph

// Study is the graph built from one document: protocol application nodes
// joined by protocol application edges.
type Study struct {
	Name  string `json:"name"`
	DBID  string `json:"db_id"`
	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"edges"`
}

// Node is a biomaterial or data artifact. ID is the join key referenced by
// Edge.From and Edge.To.
type Node struct {
	ID       string `json:"id"`
	DBID     string `json:"db_id"`
	Addition *bool  `json:"addition,omitempty"`
	Label    string `json:"label"`
	Type     string `json:"type"`
	Taxon    string `json:"taxon"`
	URI      string `json:"uri"`
	// Characteristics is nil when the node carries no ontology terms. It is
	// never an empty non-nil slice.
	Characteristics []string `json:"characteristics,omitempty"`
}

// Edge is one input/output pairing of a protocol application.
type Edge struct {
	Addition *bool     `json:"addition,omitempty"`
	DBID     string    `json:"db_id"`
	From     string    `json:"from"`
	To       string    `json:"to"`
	Label    string    `json:"label"`
	Params   *ParamMap `json:"params,omitempty"`
}

// Parameter is a single key/value token from a protocol application's
// parameter string.
type Parameter struct {
	Key   string
	Value string
}
