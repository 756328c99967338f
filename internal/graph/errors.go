package graph

import (
	"errors"
	"fmt"
)

// ErrStructure matches every *StructureError via errors.Is.
var ErrStructure = errors.New("invalid document structure")

// StructureError reports a required section, element or attribute that is
// missing from the document.
type StructureError struct {
	Path   string
	Reason string
}

func (e *StructureError) Error() string {
	return fmt.Sprintf("%s: %s: %s", ErrStructure.Error(), e.Path, e.Reason)
}

func (e *StructureError) Is(target error) bool {
	return target == ErrStructure
}

func missing(path string) error {
	return &StructureError{Path: path, Reason: "missing"}
}
