package render

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"magegraph/internal/graph"
	"magegraph/internal/util"
)

type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
	FormatDOT  Format = "dot"
)

// ParseFormat maps a user supplied name to a Format.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatJSON, FormatYAML, FormatDOT:
		return f, nil
	case "yml":
		return FormatYAML, nil
	case "gv", "graphviz":
		return FormatDOT, nil
	default:
		return "", fmt.Errorf("%w: %q", util.ErrUnknownFormat, s)
	}
}

// ParseFormats parses a comma separated list, skipping blanks and repeats.
func ParseFormats(s string) ([]Format, error) {
	out := make([]Format, 0, 3)
	seen := map[Format]struct{}{}
	for _, part := range strings.Split(s, ",") {
		if strings.TrimSpace(part) == "" {
			continue
		}
		f, err := ParseFormat(part)
		if err != nil {
			return nil, err
		}
		if _, ok := seen[f]; ok {
			continue
		}
		seen[f] = struct{}{}
		out = append(out, f)
	}
	return out, nil
}

// Extension is the file extension used for artifacts of format f.
func (f Format) Extension() string {
	return string(f)
}

// ContentType is the HTTP content type served for format f.
func (f Format) ContentType() string {
	switch f {
	case FormatYAML:
		return "application/yaml"
	case FormatDOT:
		return "text/vnd.graphviz"
	default:
		return "application/json"
	}
}

// Render writes study to w in the given format.
func Render(w io.Writer, f Format, study *graph.Study) error {
	switch f {
	case FormatJSON:
		return JSON(w, study)
	case FormatYAML:
		return YAML(w, study)
	case FormatDOT:
		return DOT(w, study, DOTOptions{})
	default:
		return fmt.Errorf("%w: %q", util.ErrUnknownFormat, string(f))
	}
}

func JSON(w io.Writer, study *graph.Study) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(study); err != nil {
		return fmt.Errorf("encode study json: %w", err)
	}
	return nil
}
