package graph

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
)

// ParamMap is a multi-valued map that remembers key insertion order and the
// order of values under each key. A nil *ParamMap behaves as an empty map.
type ParamMap struct {
	keys   []string
	values map[string][]string
}

func NewParamMap() *ParamMap {
	return &ParamMap{values: map[string][]string{}}
}

// Add appends value under key.
func (m *ParamMap) Add(key, value string) {
	if m.values == nil {
		m.values = map[string][]string{}
	}
	if _, ok := m.values[key]; !ok {
		m.keys = append(m.keys, key)
	}
	m.values[key] = append(m.values[key], value)
}

// Get returns a copy of the values stored under key.
func (m *ParamMap) Get(key string) []string {
	if m == nil {
		return nil
	}
	return slices.Clone(m.values[key])
}

func (m *ParamMap) Keys() []string {
	if m == nil {
		return nil
	}
	return slices.Clone(m.keys)
}

// Len reports the number of distinct keys.
func (m *ParamMap) Len() int {
	if m == nil {
		return 0
	}
	return len(m.keys)
}

func (m *ParamMap) Clone() *ParamMap {
	if m == nil {
		return nil
	}
	out := &ParamMap{
		keys:   slices.Clone(m.keys),
		values: make(map[string][]string, len(m.values)),
	}
	for k, v := range m.values {
		out.values[k] = slices.Clone(v)
	}
	return out
}

// Equal reports whether both maps hold the same keys in the same order with
// the same values.
func (m *ParamMap) Equal(o *ParamMap) bool {
	if m.Len() != o.Len() {
		return false
	}
	if m.Len() == 0 {
		return (m == nil) == (o == nil)
	}
	if !slices.Equal(m.keys, o.keys) {
		return false
	}
	for _, k := range m.keys {
		if !slices.Equal(m.values[k], o.values[k]) {
			return false
		}
	}
	return true
}

// MarshalJSON writes an object whose members follow key insertion order.
func (m *ParamMap) MarshalJSON() ([]byte, error) {
	if m == nil {
		return []byte("null"), nil
	}
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range m.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		vb, err := json.Marshal(m.values[k])
		if err != nil {
			return nil, err
		}
		buf.Write(kb)
		buf.WriteByte(':')
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON reads an object of string arrays, keeping member order.
func (m *ParamMap) UnmarshalJSON(b []byte) error {
	dec := json.NewDecoder(bytes.NewReader(b))
	tok, err := dec.Token()
	if err != nil {
		return fmt.Errorf("decode param map: %w", err)
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("decode param map: expected object, got %v", tok)
	}
	*m = ParamMap{values: map[string][]string{}}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return fmt.Errorf("decode param key: %w", err)
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("decode param map: expected string key, got %v", tok)
		}
		var vals []string
		if err := dec.Decode(&vals); err != nil {
			return fmt.Errorf("decode values for %q: %w", key, err)
		}
		for _, v := range vals {
			m.Add(key, v)
		}
	}
	if _, err := dec.Token(); err != nil {
		return fmt.Errorf("decode param map: %w", err)
	}
	return nil
}
