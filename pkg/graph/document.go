package graph

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Document is the saved form of an editing session: the graph plus the
// batch settings that go with it.
type Document struct {
	Nodes           []*Node `json:"nodes"`
	Edges           []Edge  `json:"edges"`
	PlaceholderName string  `json:"placeholderName"`
	// BatchValues is the raw batch input, one value per line.
	BatchValues string `json:"batchValues"`
}

// Graph returns the document's graph. The nodes and edges are shared.
func (d *Document) Graph() *Graph {
	return &Graph{Nodes: d.Nodes, Edges: d.Edges}
}

// Decode parses a Document from JSON.
func Decode(data []byte) (*Document, error) {
	var d Document
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("decode graph document: %w", err)
	}
	if d.Nodes == nil {
		d.Nodes = []*Node{}
	}
	if d.Edges == nil {
		d.Edges = []Edge{}
	}
	return &d, nil
}

// Encode renders d as indented JSON.
func (d *Document) Encode() ([]byte, error) {
	data, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode graph document: %w", err)
	}
	return data, nil
}

// LoadFile reads a Document from a JSON file.
func LoadFile(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read graph document: %w", err)
	}
	return Decode(data)
}

// SaveFile writes d to path, creating parent directories as needed.
func (d *Document) SaveFile(path string) error {
	data, err := d.Encode()
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create dirs %q: %w", dir, err)
		}
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write graph document: %w", err)
	}
	return nil
}
