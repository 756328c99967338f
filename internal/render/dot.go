package render

import (
	"bufio"
	"fmt"
	"io"
	"net/url"
	"strings"

	"magegraph/internal/graph"
)

// DOTOptions tunes the Graphviz output.
type DOTOptions struct {
	// LinkBase, when set, adds URL attributes pointing at
	// LinkBase?node=<db_id>&type=<kind> for nodes and LinkBase?edge=<db_id>
	// for edges so image maps can resolve the clicked element.
	LinkBase string
}

const (
	materialColor = "#ffd93d"
	dataColor     = "#74b9ff"
)

// DOT writes study as a Graphviz digraph. Nodes and edges flagged as
// additions are drawn dashed.
func DOT(w io.Writer, study *graph.Study, opts DOTOptions) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "digraph %s {\n", quoteDOT(study.Name))
	bw.WriteString("    rankdir=LR;\n")
	bw.WriteString("    node [style=filled];\n\n")

	for _, n := range study.Nodes {
		label := n.Label
		if label == "" {
			label = n.ID
		}
		kind, shape, color := "material", "ellipse", materialColor
		if isDataNode(n) {
			kind, shape, color = "data", "box", dataColor
		}
		attrs := []string{
			"label=" + quoteDOT(label),
			"shape=" + shape,
			"fillcolor=" + quoteDOT(color),
		}
		if isAddition(n.Addition) {
			attrs = append(attrs, `style="filled,dashed"`)
		}
		if opts.LinkBase != "" {
			q := url.Values{"node": {n.DBID}, "type": {kind}}
			attrs = append(attrs, "URL="+quoteDOT(opts.LinkBase+"?"+q.Encode()))
		}
		fmt.Fprintf(bw, "    %s [%s];\n", quoteDOT(n.ID), strings.Join(attrs, ", "))
	}
	if len(study.Nodes) > 0 && len(study.Edges) > 0 {
		bw.WriteString("\n")
	}
	for _, e := range study.Edges {
		attrs := []string{"label=" + quoteDOT(e.Label)}
		if tip := paramsTooltip(e.Params); tip != "" {
			attrs = append(attrs, "tooltip="+quoteDOT(tip))
		}
		if isAddition(e.Addition) {
			attrs = append(attrs, "style=dashed")
		}
		if opts.LinkBase != "" {
			q := url.Values{"edge": {e.DBID}}
			attrs = append(attrs, "URL="+quoteDOT(opts.LinkBase+"?"+q.Encode()))
		}
		fmt.Fprintf(bw, "    %s -> %s [%s];\n", quoteDOT(e.From), quoteDOT(e.To), strings.Join(attrs, ", "))
	}
	bw.WriteString("}\n")
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("write dot: %w", err)
	}
	return nil
}

func isDataNode(n graph.Node) bool {
	return strings.Contains(strings.ToLower(n.Type), "data")
}

func isAddition(b *bool) bool {
	return b != nil && *b
}

// paramsTooltip renders parameters as "key=v1 v2; key2=v3".
func paramsTooltip(m *graph.ParamMap) string {
	if m.Len() == 0 {
		return ""
	}
	parts := make([]string, 0, m.Len())
	for _, k := range m.Keys() {
		parts = append(parts, k+"="+strings.Join(m.Get(k), " "))
	}
	return strings.Join(parts, "; ")
}

func quoteDOT(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", `\n`)
	return `"` + r.Replace(s) + `"`
}
