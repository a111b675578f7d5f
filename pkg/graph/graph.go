package graph

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// ErrInvalidConnection is returned by Connect for edges the editor refuses.
var ErrInvalidConnection = errors.New("invalid connection")

// Position is where the editor drew a node. It is carried through
// persistence untouched and never read by the compiler.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Node is a single step in the graph.
type Node struct {
	ID       string    `json:"id"`
	Kind     StepKind  `json:"kind"`
	Params   *Params   `json:"params"`
	Position *Position `json:"position,omitempty"`
}

// UnmarshalJSON accepts both the flat form ({id, kind, params}) and the
// editor's export form ({id, data: {nodeType, params}}).
func (n *Node) UnmarshalJSON(data []byte) error {
	var raw struct {
		ID       string    `json:"id"`
		Kind     string    `json:"kind"`
		Params   *Params   `json:"params"`
		Position *Position `json:"position"`
		Data     *struct {
			NodeType string  `json:"nodeType"`
			Params   *Params `json:"params"`
		} `json:"data"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	kind, params := raw.Kind, raw.Params
	if kind == "" && raw.Data != nil {
		kind, params = raw.Data.NodeType, raw.Data.Params
	}
	k, err := ParseStepKind(kind)
	if err != nil {
		return fmt.Errorf("node %q: %w", raw.ID, err)
	}
	if params == nil {
		params = NewParams()
	}
	*n = Node{ID: raw.ID, Kind: k, Params: params, Position: raw.Position}
	return nil
}

// Edge is a directed connection between two nodes.
type Edge struct {
	Source string `json:"source"`
	Target string `json:"target"`
}

// Graph is a snapshot of the editing surface: nodes in creation order and
// edges in connection order.
type Graph struct {
	Nodes []*Node `json:"nodes"`
	Edges []Edge  `json:"edges"`
}

// New returns an empty Graph.
func New() *Graph {
	return &Graph{}
}

// AddNode appends a node of kind k with a fresh id and the kind's default
// parameters, and returns it.
func (g *Graph) AddNode(k StepKind) *Node {
	n := &Node{
		ID:     uuid.NewString(),
		Kind:   k,
		Params: DefaultParams(k),
	}
	g.Nodes = append(g.Nodes, n)
	return n
}

// Node returns the node with the given id, or nil.
func (g *Graph) Node(id string) *Node {
	for _, n := range g.Nodes {
		if n.ID == id {
			return n
		}
	}
	return nil
}

// Connect adds an edge from source to target. Any existing edge leaving
// source or entering target is dropped first, so every node keeps at most one
// outgoing and one incoming edge.
func (g *Graph) Connect(source, target string) error {
	src, dst := g.Node(source), g.Node(target)
	switch {
	case src == nil:
		return fmt.Errorf("%w: unknown source node %q", ErrInvalidConnection, source)
	case dst == nil:
		return fmt.Errorf("%w: unknown target node %q", ErrInvalidConnection, target)
	case source == target:
		return fmt.Errorf("%w: node %q cannot connect to itself", ErrInvalidConnection, source)
	case src.Kind == KindEnd:
		return fmt.Errorf("%w: End node %q cannot have outgoing edges", ErrInvalidConnection, source)
	case dst.Kind == KindStart:
		return fmt.Errorf("%w: Start node %q cannot have incoming edges", ErrInvalidConnection, target)
	}

	kept := g.Edges[:0]
	for _, e := range g.Edges {
		if e.Source == source || e.Target == target {
			continue
		}
		kept = append(kept, e)
	}
	g.Edges = append(kept, Edge{Source: source, Target: target})
	return nil
}

// Disconnect removes every edge from source to target.
func (g *Graph) Disconnect(source, target string) {
	kept := g.Edges[:0]
	for _, e := range g.Edges {
		if e.Source == source && e.Target == target {
			continue
		}
		kept = append(kept, e)
	}
	g.Edges = kept
}

// RemoveNode deletes a node and every edge touching it.
func (g *Graph) RemoveNode(id string) {
	nodes := g.Nodes[:0]
	for _, n := range g.Nodes {
		if n.ID != id {
			nodes = append(nodes, n)
		}
	}
	g.Nodes = nodes

	edges := g.Edges[:0]
	for _, e := range g.Edges {
		if e.Source != id && e.Target != id {
			edges = append(edges, e)
		}
	}
	g.Edges = edges
}
