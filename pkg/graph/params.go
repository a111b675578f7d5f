package graph

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// PromptKind is the content type of a PromptBlock.
type PromptKind string

const (
	PromptText  PromptKind = "text"
	PromptImage PromptKind = "image"
)

// PromptBlock is one element of a ModelChat prompt. Block order is the order
// the model receives them in.
type PromptBlock struct {
	Kind    PromptKind `json:"type" yaml:"type"`
	Content string     `json:"content" yaml:"content"`
	// Detailed only applies to image blocks.
	Detailed *bool `json:"detailed,omitempty" yaml:"detailed,omitempty"`
}

// Params is an insertion-ordered mapping from parameter name to value.
// Values are string, int64, float64, bool, []PromptBlock or, for lists that
// are not prompt blocks, []any.
type Params struct {
	keys   []string
	values map[string]any
}

// NewParams returns an empty Params.
func NewParams() *Params {
	return &Params{values: make(map[string]any)}
}

// Set stores value under key. Existing keys keep their position.
func (p *Params) Set(key string, value any) {
	if p.values == nil {
		p.values = make(map[string]any)
	}
	if _, ok := p.values[key]; !ok {
		p.keys = append(p.keys, key)
	}
	p.values[key] = value
}

// Get retrieves a value by key.
func (p *Params) Get(key string) (any, bool) {
	if p == nil {
		return nil, false
	}
	v, ok := p.values[key]
	return v, ok
}

// GetString returns the value under key when it is a string, or "".
func (p *Params) GetString(key string) string {
	v, _ := p.Get(key)
	s, _ := v.(string)
	return s
}

// Delete removes key if present.
func (p *Params) Delete(key string) {
	if p == nil {
		return
	}
	if _, ok := p.values[key]; !ok {
		return
	}
	delete(p.values, key)
	for i, k := range p.keys {
		if k == key {
			p.keys = append(p.keys[:i], p.keys[i+1:]...)
			break
		}
	}
}

// Keys returns parameter names in insertion order.
func (p *Params) Keys() []string {
	if p == nil {
		return nil
	}
	out := make([]string, len(p.keys))
	copy(out, p.keys)
	return out
}

// Len returns the number of parameters.
func (p *Params) Len() int {
	if p == nil {
		return 0
	}
	return len(p.keys)
}

// Clone returns a copy that shares no key order or map state with p.
// Prompt block slices are copied; other list values are shared.
func (p *Params) Clone() *Params {
	out := NewParams()
	for _, k := range p.Keys() {
		v := p.values[k]
		if blocks, ok := v.([]PromptBlock); ok {
			v = append([]PromptBlock(nil), blocks...)
		}
		out.Set(k, v)
	}
	return out
}

// MarshalJSON writes the parameters as a JSON object in insertion order.
func (p *Params) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range p.Keys() {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		vb, err := json.Marshal(p.values[k])
		if err != nil {
			return nil, fmt.Errorf("param %q: %w", k, err)
		}
		buf.Write(kb)
		buf.WriteByte(':')
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON reads a JSON object, keeping the order keys appear in.
func (p *Params) UnmarshalJSON(data []byte) error {
	*p = Params{values: make(map[string]any)}
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		return nil
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("params: expected object, got %v", tok)
	}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("params: expected string key, got %v", tok)
		}
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return fmt.Errorf("param %q: %w", key, err)
		}
		v, err := decodeValue(raw)
		if err != nil {
			return fmt.Errorf("param %q: %w", key, err)
		}
		p.Set(key, v)
	}
	_, err = dec.Token()
	return err
}

// decodeValue converts a raw JSON parameter value into its Params form.
func decodeValue(raw json.RawMessage) (any, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var blocks []PromptBlock
		dec := json.NewDecoder(bytes.NewReader(trimmed))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&blocks); err == nil && allBlocks(blocks) {
			return blocks, nil
		}
	}

	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return normalizeNumber(v), nil
}

// allBlocks reports whether every decoded element carried a type. Objects
// with keys outside the PromptBlock fields never reach here.
func allBlocks(blocks []PromptBlock) bool {
	for _, b := range blocks {
		if b.Kind == "" {
			return false
		}
	}
	return true
}

// normalizeNumber turns json.Number into int64 or float64, recursing into
// lists and objects.
func normalizeNumber(v any) any {
	switch t := v.(type) {
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return i
		}
		f, _ := t.Float64()
		return f
	case []any:
		for i := range t {
			t[i] = normalizeNumber(t[i])
		}
		return t
	case map[string]any:
		for k := range t {
			t[k] = normalizeNumber(t[k])
		}
		return t
	}
	return v
}
