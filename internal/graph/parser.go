package graph

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/beevik/etree"
)

type Option func(*options)

type options struct {
	logger *slog.Logger
}

// WithLogger sets the logger that receives build summaries at debug level.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// Process builds the Study described by doc. The document is only read. A
// *StructureError is returned when the idf/study, sdrf, node id, or edge
// inputs/outputs structure is missing; no partial study is returned.
func Process(doc *etree.Document, opts ...Option) (*Study, error) {
	o := options{logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
	for _, opt := range opts {
		opt(&o)
	}
	if doc == nil {
		return nil, missing("root")
	}
	root := doc.Root()
	if root == nil {
		return nil, missing("root")
	}
	idf := root.SelectElement("idf")
	if idf == nil {
		return nil, missing("idf")
	}
	studyEl := idf.SelectElement("study")
	if studyEl == nil {
		return nil, missing("idf/study")
	}
	sdrf := root.SelectElement("sdrf")
	if sdrf == nil {
		return nil, missing("sdrf")
	}

	study := &Study{
		Name: childText(studyEl, "name"),
		DBID: studyEl.SelectAttrValue("db_id", ""),
	}
	nodes, err := buildNodes(sdrf.SelectElements("protocol_app_node"))
	if err != nil {
		return nil, err
	}
	edges, err := buildEdges(sdrf.SelectElements("protocol_app"), newUnitResolver(idf))
	if err != nil {
		return nil, err
	}
	study.Nodes = nodes
	study.Edges = edges

	o.logger.Debug("study built", "study", study.Name, "db_id", study.DBID, "nodes", len(nodes), "edges", len(edges))
	return study, nil
}

func buildNodes(elements []*etree.Element) ([]Node, error) {
	nodes := make([]Node, 0, len(elements))
	for i, el := range elements {
		id := el.SelectAttr("id")
		if id == nil {
			return nil, &StructureError{Path: fmt.Sprintf("sdrf/protocol_app_node[%d]/@id", i), Reason: "missing"}
		}
		n := Node{
			ID:       id.Value,
			DBID:     el.SelectAttrValue("db_id", ""),
			Addition: optionalBool(el, "addition"),
			Label:    childText(el, "name"),
			Type:     childText(el, "type"),
			Taxon:    childText(el, "taxon"),
			URI:      childText(el, "uri"),
		}
		if nc := el.SelectElement("node_characteristics"); nc != nil {
			n.Characteristics = characteristics(nc)
		}
		nodes = append(nodes, n)
	}
	return nodes, nil
}

// characteristics collects the non-empty ontology terms under a
// node_characteristics element, returning nil when there are none.
func characteristics(nc *etree.Element) []string {
	var terms []string
	for _, c := range nc.SelectElements("characteristic") {
		if term := childText(c, "ontology_term"); term != "" {
			terms = append(terms, term)
		}
	}
	return terms
}

// buildEdges expands each protocol_app into the cross product of its inputs
// and outputs, inputs outermost.
func buildEdges(elements []*etree.Element, units *unitResolver) ([]Edge, error) {
	edges := make([]Edge, 0, len(elements))
	for i, el := range elements {
		inputsEl := el.SelectElement("inputs")
		if inputsEl == nil {
			return nil, &StructureError{Path: fmt.Sprintf("sdrf/protocol_app[%d]/inputs", i), Reason: "missing"}
		}
		outputsEl := el.SelectElement("outputs")
		if outputsEl == nil {
			return nil, &StructureError{Path: fmt.Sprintf("sdrf/protocol_app[%d]/outputs", i), Reason: "missing"}
		}
		inputs := splitIDs(inputsEl.Text())
		outputs := splitIDs(outputsEl.Text())

		label, params := units.resolveShared(el)
		dbID := el.SelectAttrValue("db_id", "")
		for _, in := range inputs {
			for _, out := range outputs {
				edges = append(edges, Edge{
					Addition: optionalBool(el, "addition"),
					DBID:     dbID,
					From:     in,
					To:       out,
					Label:    label,
					Params:   params.Clone(),
				})
			}
		}
	}
	return edges, nil
}
