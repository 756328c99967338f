package graph

import (
	"fmt"
	"io"

	"github.com/beevik/etree"
)

// ReadDocument parses an XML document from r.
func ReadDocument(r io.Reader) (*etree.Document, error) {
	doc := etree.NewDocument()
	if _, err := doc.ReadFrom(r); err != nil {
		return nil, fmt.Errorf("parse xml: %w", err)
	}
	return doc, nil
}

// ParseBytes parses an XML document held in memory.
func ParseBytes(b []byte) (*etree.Document, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(b); err != nil {
		return nil, fmt.Errorf("parse xml: %w", err)
	}
	return doc, nil
}

// LoadFile parses the XML document at path.
func LoadFile(path string) (*etree.Document, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromFile(path); err != nil {
		return nil, fmt.Errorf("parse xml %s: %w", path, err)
	}
	return doc, nil
}

// childText returns the text of the first child named tag, or "" when the
// child is absent.
func childText(el *etree.Element, tag string) string {
	c := el.SelectElement(tag)
	if c == nil {
		return ""
	}
	return c.Text()
}

// optionalBool parses the named attribute with ParseAddition. It returns nil
// when the attribute is absent.
func optionalBool(el *etree.Element, key string) *bool {
	a := el.SelectAttr(key)
	if a == nil {
		return nil
	}
	v := ParseAddition(a.Value)
	return &v
}
