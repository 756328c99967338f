package render

import (
	"fmt"
	"io"

	"magegraph/internal/graph"

	"gopkg.in/yaml.v3"
)

type yamlStudy struct {
	Name  string     `yaml:"name"`
	DBID  string     `yaml:"db_id"`
	Nodes []yamlNode `yaml:"nodes"`
	Edges []yamlEdge `yaml:"edges"`
}

type yamlNode struct {
	ID              string   `yaml:"id"`
	DBID            string   `yaml:"db_id"`
	Addition        *bool    `yaml:"addition,omitempty"`
	Label           string   `yaml:"label"`
	Type            string   `yaml:"type"`
	Taxon           string   `yaml:"taxon"`
	URI             string   `yaml:"uri"`
	Characteristics []string `yaml:"characteristics,omitempty"`
}

type yamlEdge struct {
	Addition *bool      `yaml:"addition,omitempty"`
	DBID     string     `yaml:"db_id"`
	From     string     `yaml:"from"`
	To       string     `yaml:"to"`
	Label    string     `yaml:"label"`
	Params   *yaml.Node `yaml:"params,omitempty"`
}

// YAML writes study as a YAML document. Parameter keys keep their insertion
// order.
func YAML(w io.Writer, study *graph.Study) error {
	out := yamlStudy{
		Name:  study.Name,
		DBID:  study.DBID,
		Nodes: make([]yamlNode, 0, len(study.Nodes)),
		Edges: make([]yamlEdge, 0, len(study.Edges)),
	}
	for _, n := range study.Nodes {
		out.Nodes = append(out.Nodes, yamlNode(n))
	}
	for _, e := range study.Edges {
		out.Edges = append(out.Edges, yamlEdge{
			Addition: e.Addition,
			DBID:     e.DBID,
			From:     e.From,
			To:       e.To,
			Label:    e.Label,
			Params:   paramsNode(e.Params),
		})
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(out); err != nil {
		return fmt.Errorf("encode study yaml: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("close yaml encoder: %w", err)
	}
	return nil
}

func paramsNode(m *graph.ParamMap) *yaml.Node {
	if m == nil {
		return nil
	}
	node := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	for _, k := range m.Keys() {
		seq := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
		for _, v := range m.Get(k) {
			seq.Content = append(seq.Content, strScalar(v))
		}
		node.Content = append(node.Content, strScalar(k), seq)
	}
	return node
}

func strScalar(s string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: s}
}
