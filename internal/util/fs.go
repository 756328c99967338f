package util

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

func EnsureDir(path string) error {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", path, err)
	}
	return nil
}

// IsXMLName reports whether name has an .xml extension, ignoring case.
func IsXMLName(name string) bool {
	return strings.EqualFold(filepath.Ext(name), ".xml")
}
