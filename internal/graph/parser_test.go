package graph

import (
	"errors"
	"strings"
	"testing"

	"github.com/beevik/etree"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func boolPtr(b bool) *bool { return &b }

func mustParse(t *testing.T, xml string) *etree.Document {
	t.Helper()
	doc, err := ParseBytes([]byte(xml))
	require.NoError(t, err)
	return doc
}

func TestProcessFixture(t *testing.T) {
	doc, err := LoadFile("testdata/study.xml")
	require.NoError(t, err)

	study, err := Process(doc)
	require.NoError(t, err)

	params := NewParamMap()
	params.Add("temp", "37")
	params.Add("temp", "degree Celsius")
	params.Add("time", "10")

	want := &Study{
		Name: "Plasmodium liver stage timecourse",
		DBID: "1042",
		Nodes: []Node{
			{
				ID: "S1", DBID: "501", Addition: boolPtr(true),
				Label: "Sporozoite sample 1", Type: "material entity", Taxon: "Plasmodium berghei",
				URI:             "http://purl.obolibrary.org/obo/OBI_0100051",
				Characteristics: []string{"sporozoite", "liver"},
			},
			{
				ID: "S2", DBID: "502", Addition: boolPtr(false),
				Label: "Sporozoite sample 2", Type: "material entity", Taxon: "Plasmodium berghei",
			},
			{ID: "E1", DBID: "503", Label: "RNA extract", Type: "data item"},
		},
		Edges: []Edge{
			{DBID: "9001", From: "S1", To: "E1", Label: "Extraction", Params: params},
			{DBID: "9001", From: "S2", To: "E1", Label: "Extraction", Params: params},
			{DBID: "9002", Addition: boolPtr(true), From: "E1", To: "R1", Label: "Sequencing"},
			{DBID: "9002", Addition: boolPtr(true), From: "E1", To: "R2", Label: "Sequencing"},
		},
	}
	if diff := cmp.Diff(want, study); diff != "" {
		t.Fatalf("study mismatch (-want +got):\n%s", diff)
	}
}

func TestProcessIsIdempotent(t *testing.T) {
	doc, err := LoadFile("testdata/study.xml")
	require.NoError(t, err)

	first, err := Process(doc)
	require.NoError(t, err)
	second, err := Process(doc)
	require.NoError(t, err)

	if diff := cmp.Diff(first, second); diff != "" {
		t.Fatalf("second build differs (-first +second):\n%s", diff)
	}
}

func TestProcessMissingStructure(t *testing.T) {
	cases := map[string]struct {
		xml  string
		path string
	}{
		"no idf": {
			xml:  `<root><sdrf/></root>`,
			path: "idf",
		},
		"no study": {
			xml:  `<root><idf/><sdrf/></root>`,
			path: "idf/study",
		},
		"no sdrf": {
			xml:  `<root><idf><study db_id="1"><name>s</name></study></idf></root>`,
			path: "sdrf",
		},
		"node without id": {
			xml:  `<root><idf><study/></idf><sdrf><protocol_app_node db_id="2"/></sdrf></root>`,
			path: "sdrf/protocol_app_node[0]/@id",
		},
		"edge without inputs": {
			xml:  `<root><idf><study/></idf><sdrf><protocol_app><outputs>X</outputs></protocol_app></sdrf></root>`,
			path: "sdrf/protocol_app[0]/inputs",
		},
		"edge without outputs": {
			xml:  `<root><idf><study/></idf><sdrf><protocol_app><inputs>A</inputs></protocol_app><protocol_app><inputs>A</inputs></protocol_app></sdrf></root>`,
			path: "sdrf/protocol_app[0]/outputs",
		},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			study, err := Process(mustParse(t, tc.xml))
			require.Nil(t, study)
			require.Error(t, err)
			require.True(t, errors.Is(err, ErrStructure))
			var se *StructureError
			require.True(t, errors.As(err, &se))
			require.Equal(t, tc.path, se.Path)
		})
	}
}

func TestProcessEmptyDocument(t *testing.T) {
	_, err := Process(etree.NewDocument())
	require.ErrorIs(t, err, ErrStructure)

	_, err = Process(nil)
	require.ErrorIs(t, err, ErrStructure)
}

func TestNodeAdditionIsLenient(t *testing.T) {
	study, err := Process(mustParse(t, `<root><idf><study/></idf><sdrf>
<protocol_app_node id="a" addition=" TRUE "/>
<protocol_app_node id="b" addition="maybe"/>
<protocol_app_node id="c" addition=""/>
<protocol_app_node id="d"/>
</sdrf></root>`))
	require.NoError(t, err)
	require.Len(t, study.Nodes, 4)
	require.Equal(t, boolPtr(true), study.Nodes[0].Addition)
	require.Equal(t, boolPtr(false), study.Nodes[1].Addition)
	require.Equal(t, boolPtr(false), study.Nodes[2].Addition)
	require.Nil(t, study.Nodes[3].Addition)
}

func TestCharacteristicsAbsentWhenEmpty(t *testing.T) {
	study, err := Process(mustParse(t, `<root><idf><study/></idf><sdrf>
<protocol_app_node id="none"/>
<protocol_app_node id="empty"><node_characteristics/></protocol_app_node>
<protocol_app_node id="blank"><node_characteristics><characteristic><ontology_term></ontology_term></characteristic><characteristic/></node_characteristics></protocol_app_node>
<protocol_app_node id="some"><node_characteristics><characteristic><ontology_term>blood</ontology_term></characteristic></node_characteristics></protocol_app_node>
</sdrf></root>`))
	require.NoError(t, err)
	require.Nil(t, study.Nodes[0].Characteristics)
	require.Nil(t, study.Nodes[1].Characteristics)
	require.Nil(t, study.Nodes[2].Characteristics)
	require.Equal(t, []string{"blood"}, study.Nodes[3].Characteristics)
}

func TestEdgeCrossProductOrder(t *testing.T) {
	study, err := Process(mustParse(t, `<root><idf><study/></idf><sdrf>
<protocol_app db_id="7"><protocol>Labeling</protocol><inputs>A;B;C</inputs><outputs>X;Y</outputs></protocol_app>
</sdrf></root>`))
	require.NoError(t, err)

	pairs := make([]string, 0, len(study.Edges))
	for _, e := range study.Edges {
		require.Equal(t, "7", e.DBID)
		require.Equal(t, "Labeling", e.Label)
		require.Nil(t, e.Addition)
		require.Nil(t, e.Params)
		pairs = append(pairs, e.From+">"+e.To)
	}
	require.Equal(t, []string{"A>X", "A>Y", "B>X", "B>Y", "C>X", "C>Y"}, pairs)
}

func TestEdgesShareParameters(t *testing.T) {
	study, err := Process(mustParse(t, `<root><idf><study/></idf><sdrf>
<protocol_app addition="TRUE"><protocol>Extraction</protocol><inputs>A;B</inputs><outputs>X</outputs>
<protocol_app_parameters>temp|37</protocol_app_parameters>
<protocol_app_parameters>time|10</protocol_app_parameters>
</protocol_app>
</sdrf></root>`))
	require.NoError(t, err)
	require.Len(t, study.Edges, 2)

	a, b := study.Edges[0], study.Edges[1]
	require.Equal(t, "A", a.From)
	require.Equal(t, "B", b.From)
	require.Equal(t, "X", a.To)
	require.Equal(t, "X", b.To)
	require.Equal(t, boolPtr(true), a.Addition)
	require.True(t, a.Params.Equal(b.Params))
	require.Equal(t, []string{"temp", "time"}, a.Params.Keys())

	// each edge owns its map
	a.Params.Add("temp", "changed")
	require.Equal(t, []string{"37"}, b.Params.Get("temp"))
}

func TestEdgeAdditionIsLenient(t *testing.T) {
	study, err := Process(mustParse(t, `<root><idf><study/></idf><sdrf>
<protocol_app addition="maybe"><protocol>P</protocol><inputs>A;B</inputs><outputs>X;Y</outputs></protocol_app>
<protocol_app addition=" TRUE "><protocol>Q</protocol><inputs>X</inputs><outputs>Z</outputs></protocol_app>
<protocol_app addition=""><protocol>R</protocol><inputs>Y</inputs><outputs>Z</outputs></protocol_app>
<protocol_app><protocol>S</protocol><inputs>Z</inputs><outputs>W</outputs></protocol_app>
</sdrf></root>`))
	require.NoError(t, err)
	require.Len(t, study.Edges, 7)
	for _, e := range study.Edges[:4] {
		require.Equal(t, "P", e.Label)
		require.Equal(t, boolPtr(false), e.Addition)
	}
	require.Equal(t, boolPtr(true), study.Edges[4].Addition)
	require.Equal(t, boolPtr(false), study.Edges[5].Addition)
	require.Nil(t, study.Edges[6].Addition)
}

func TestEmptyInputsYieldSingleEmptyEndpoint(t *testing.T) {
	study, err := Process(mustParse(t, `<root><idf><study/></idf><sdrf>
<protocol_app><protocol>P</protocol><inputs></inputs><outputs>X</outputs></protocol_app>
</sdrf></root>`))
	require.NoError(t, err)
	require.Len(t, study.Edges, 1)
	require.Equal(t, "", study.Edges[0].From)
	require.Equal(t, "X", study.Edges[0].To)
}

func TestUnitResolutionFirstProtocolWins(t *testing.T) {
	xml := `<root><idf><study/>
<protocol><name>Growth</name><protocol_parameters><param><name>temp</name><unit_type>kelvin</unit_type></param></protocol_parameters></protocol>
<protocol><name>Cell Growth</name><protocol_parameters><param><name>temp</name><unit_type>degree Celsius</unit_type></param></protocol_parameters></protocol>
</idf><sdrf>
<protocol_app><protocol>Cell Growth</protocol><inputs>A</inputs><outputs>B</outputs><protocol_app_parameters>temp|300</protocol_app_parameters></protocol_app>
</sdrf></root>`
	study, err := Process(mustParse(t, xml))
	require.NoError(t, err)
	require.Equal(t, []string{"300", "kelvin"}, study.Edges[0].Params.Get("temp"))
}

func TestUnitResolutionSkipsProtocolsWithoutUnit(t *testing.T) {
	xml := `<root><idf><study/>
<protocol><name>Hyb</name><protocol_parameters><param><name>temp</name><unit_type></unit_type></param></protocol_parameters></protocol>
<protocol><name>Hyb</name></protocol>
<protocol><name>Hybridization</name><protocol_parameters><param><name>temp</name><unit_type>degree Celsius</unit_type></param></protocol_parameters></protocol>
<protocol><name>Washing</name><protocol_parameters><param><name>volume</name><unit_type>ml</unit_type></param></protocol_parameters></protocol>
</idf><sdrf>
<protocol_app><protocol>Hybridization</protocol><inputs>A</inputs><outputs>B</outputs>
<protocol_app_parameters>temp|42;volume|5;speed|fast</protocol_app_parameters></protocol_app>
</sdrf></root>`
	study, err := Process(mustParse(t, xml))
	require.NoError(t, err)
	p := study.Edges[0].Params
	require.Equal(t, []string{"temp", "volume", "speed"}, p.Keys())
	require.Equal(t, []string{"42", "degree Celsius"}, p.Get("temp"))
	require.Equal(t, []string{"5"}, p.Get("volume"))
	require.Equal(t, []string{"fast"}, p.Get("speed"))
}

func TestUnitAddedPerOccurrence(t *testing.T) {
	xml := `<root><idf><study/>
<protocol><name>Wash</name><protocol_parameters><param><name>temp</name><unit_type>K</unit_type></param></protocol_parameters></protocol>
</idf><sdrf>
<protocol_app><protocol>Wash</protocol><inputs>A</inputs><outputs>B</outputs>
<protocol_app_parameters>temp|1!temp|2</protocol_app_parameters></protocol_app>
</sdrf></root>`
	study, err := Process(mustParse(t, xml))
	require.NoError(t, err)
	require.Equal(t, []string{"1", "K", "2", "K"}, study.Edges[0].Params.Get("temp"))
}

func TestParametersWithoutPipeAreDropped(t *testing.T) {
	study, err := Process(mustParse(t, `<root><idf><study/></idf><sdrf>
<protocol_app><protocol>P</protocol><inputs>A</inputs><outputs>B</outputs>
<protocol_app_parameters>nothing here!still nothing</protocol_app_parameters></protocol_app>
</sdrf></root>`))
	require.NoError(t, err)
	require.Nil(t, study.Edges[0].Params)
}

func TestReadDocumentRejectsMalformedXML(t *testing.T) {
	_, err := ReadDocument(strings.NewReader("<root a=></root>"))
	require.Error(t, err)
	require.False(t, errors.Is(err, ErrStructure))
}
