package graph

import (
	"fmt"

	"github.com/beevik/etree"
)

// Expansion describes how many edges one protocol_app contributes.
type Expansion struct {
	DBID     string `json:"db_id"`
	Protocol string `json:"protocol"`
	Inputs   int    `json:"inputs"`
	Outputs  int    `json:"outputs"`
}

func (e Expansion) Edges() int {
	return e.Inputs * e.Outputs
}

// Expansions lists the input/output fan of every protocol_app in document
// order. The edge counts sum to len(Study.Edges) for the same document.
func Expansions(doc *etree.Document) ([]Expansion, error) {
	if doc == nil || doc.Root() == nil {
		return nil, missing("root")
	}
	sdrf := doc.Root().SelectElement("sdrf")
	if sdrf == nil {
		return nil, missing("sdrf")
	}
	apps := sdrf.SelectElements("protocol_app")
	out := make([]Expansion, 0, len(apps))
	for i, el := range apps {
		inputs := el.SelectElement("inputs")
		if inputs == nil {
			return nil, &StructureError{Path: fmt.Sprintf("sdrf/protocol_app[%d]/inputs", i), Reason: "missing"}
		}
		outputs := el.SelectElement("outputs")
		if outputs == nil {
			return nil, &StructureError{Path: fmt.Sprintf("sdrf/protocol_app[%d]/outputs", i), Reason: "missing"}
		}
		out = append(out, Expansion{
			DBID:     el.SelectAttrValue("db_id", ""),
			Protocol: childText(el, "protocol"),
			Inputs:   len(splitIDs(inputs.Text())),
			Outputs:  len(splitIDs(outputs.Text())),
		})
	}
	return out, nil
}
