package graph

import (
	"regexp"
	"strings"

	"github.com/beevik/etree"
)

var paramSep = regexp.MustCompile(`[;!]`)

// ParseAddition reports whether raw reads as "true" once surrounding
// whitespace is removed, ignoring case. Any other value is false.
func ParseAddition(raw string) bool {
	return strings.EqualFold(strings.TrimSpace(raw), "true")
}

// splitParameterTokens splits an assembled parameter string on ';' and '!'.
// An empty string has no tokens.
func splitParameterTokens(s string) []string {
	if s == "" {
		return nil
	}
	return paramSep.Split(s, -1)
}

// TokenizeParameters turns a parameter string such as "temp|37;time|10!unit"
// into key/value pairs.
//
// Tokens are separated by ';' or '!'. A token contributes a pair only when it
// contains '|': the key is the text before the first '|' and the value is
// everything after it, so "a|b|c" yields key "a" and value "b|c". Tokens
// without '|' (including empty ones produced by adjacent separators) are
// dropped.
func TokenizeParameters(s string) []Parameter {
	tokens := splitParameterTokens(s)
	out := make([]Parameter, 0, len(tokens))
	for _, tok := range tokens {
		key, value, ok := strings.Cut(tok, "|")
		if !ok {
			continue
		}
		out = append(out, Parameter{Key: key, Value: value})
	}
	return out
}

// splitIDs splits an inputs/outputs field on ';'. An empty field yields a
// single empty identifier; empty entries after the last separator are
// dropped, so "A;B;" is [A B] and ";" is empty.
func splitIDs(s string) []string {
	if s == "" {
		return []string{""}
	}
	parts := strings.Split(s, ";")
	for len(parts) > 0 && parts[len(parts)-1] == "" {
		parts = parts[:len(parts)-1]
	}
	return parts
}

// parameterString joins the text of every protocol_app_parameters child,
// placing ';' between accumulated content and the next child.
func parameterString(protocolApp *etree.Element) string {
	var sb strings.Builder
	for _, el := range protocolApp.SelectElements("protocol_app_parameters") {
		if sb.Len() > 0 {
			sb.WriteByte(';')
		}
		sb.WriteString(el.Text())
	}
	return sb.String()
}

type paramDef struct {
	name string
	unit string
}

type protocolDef struct {
	name   string
	params []paramDef
}

// unitResolver looks up parameter units declared under idf/protocol.
type unitResolver struct {
	protocols []protocolDef
}

func newUnitResolver(idf *etree.Element) *unitResolver {
	r := &unitResolver{}
	for _, p := range idf.SelectElements("protocol") {
		nameEl := p.SelectElement("name")
		if nameEl == nil {
			continue
		}
		def := protocolDef{name: nameEl.Text()}
		if pp := p.SelectElement("protocol_parameters"); pp != nil {
			for _, param := range pp.SelectElements("param") {
				pn := param.SelectElement("name")
				if pn == nil {
					continue
				}
				def.params = append(def.params, paramDef{name: pn.Text(), unit: childText(param, "unit_type")})
			}
		}
		r.protocols = append(r.protocols, def)
	}
	return r
}

// unit returns the unit type for key on a protocol application labelled
// label. Protocols are matched when label contains the protocol name; the
// first matching protocol that declares key with a non-empty unit wins.
func (r *unitResolver) unit(label, key string) (string, bool) {
	for _, p := range r.protocols {
		if !strings.Contains(label, p.name) {
			continue
		}
		for _, param := range p.params {
			if param.name == key && param.unit != "" {
				return param.unit, true
			}
		}
	}
	return "", false
}

// resolveShared computes the label and parameters common to every edge
// derived from one protocol_app element. The returned map is nil when no
// parameters were found.
func (r *unitResolver) resolveShared(protocolApp *etree.Element) (string, *ParamMap) {
	label := childText(protocolApp, "protocol")
	params := NewParamMap()
	for _, p := range TokenizeParameters(parameterString(protocolApp)) {
		params.Add(p.Key, p.Value)
		if u, ok := r.unit(label, p.Key); ok {
			params.Add(p.Key, u)
		}
	}
	if params.Len() == 0 {
		return label, nil
	}
	return label, params
}
