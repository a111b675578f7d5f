package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ravi-parthasarathy/aigen/pkg/graph"
)

// loadGraphFile reads a graph document from a .json save file or a .dot/.gv
// graph. DOT input carries no batch settings.
func loadGraphFile(path string) (*graph.Document, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".dot", ".gv":
		src, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read file: %w", err)
		}
		g, err := graph.ParseDOT(string(src))
		if err != nil {
			return nil, fmt.Errorf("parse: %w", err)
		}
		return &graph.Document{Nodes: g.Nodes, Edges: g.Edges}, nil
	default:
		return graph.LoadFile(path)
	}
}
