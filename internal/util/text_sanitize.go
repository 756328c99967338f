package util

import "strings"

// SanitizeText removes NUL bytes and non-printing control characters that
// Postgres text columns reject. Tabs, newlines and surrounding whitespace are
// kept so stored labels stay byte-identical to clean input.
func SanitizeText(s string) string {
	if s == "" {
		return s
	}
	if !strings.ContainsFunc(s, isRejectedControl) {
		return s
	}
	r := make([]rune, 0, len(s))
	for _, ch := range s {
		if isRejectedControl(ch) {
			continue
		}
		r = append(r, ch)
	}
	return string(r)
}

func isRejectedControl(ch rune) bool {
	return ch < 0x20 && ch != '\n' && ch != '\r' && ch != '\t'
}
