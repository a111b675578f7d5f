package pipeline

import (
	"github.com/ravi-parthasarathy/aigen/pkg/graph"
)

// Step is one executable entry of a pipeline: a node without its id or
// position.
type Step struct {
	Kind   graph.StepKind
	Params *graph.Params
}

// Linearize walks the chain from its start to its end and returns the
// interior steps in walk order. Start and End markers are dropped.
//
// When several edges share a source (or a target) the last one wins, which
// mirrors the editor replacing conflicting edges on connect.
func Linearize(nodes []*graph.Node, edges []graph.Edge) ([]Step, error) {
	next := make(map[string]string, len(edges))
	prev := make(map[string]string, len(edges))
	for _, e := range edges {
		next[e.Source] = e.Target
		prev[e.Target] = e.Source
	}

	start := findNode(nodes, func(n *graph.Node) bool { return n.Kind == graph.KindStart })
	if start == nil {
		start = findNode(nodes, func(n *graph.Node) bool { _, ok := prev[n.ID]; return !ok })
	}
	end := findNode(nodes, func(n *graph.Node) bool { return n.Kind == graph.KindEnd })
	if end == nil {
		end = findNode(nodes, func(n *graph.Node) bool { _, ok := next[n.ID]; return !ok })
	}
	if start == nil || end == nil {
		return nil, &ChainError{Reason: ReasonMissingEndpoints}
	}

	// Each id is visited at most once, so the walk ends within len(next)+1
	// steps.
	var order []string
	seen := make(map[string]bool)
	cur := start.ID
	for {
		if seen[cur] {
			return nil, &ChainError{Reason: ReasonCycle, NodeID: cur}
		}
		seen[cur] = true
		order = append(order, cur)
		n, ok := next[cur]
		if !ok {
			break
		}
		cur = n
	}
	if last := order[len(order)-1]; last != end.ID {
		return nil, &ChainError{Reason: ReasonNoEnd, NodeID: last}
	}

	byID := make(map[string]*graph.Node, len(nodes))
	for _, n := range nodes {
		if n != nil {
			byID[n.ID] = n
		}
	}
	var steps []Step
	for _, id := range order {
		n, ok := byID[id]
		if !ok || n.Kind.IsMarker() {
			continue
		}
		params := n.Params
		if params == nil {
			params = graph.NewParams()
		}
		steps = append(steps, Step{Kind: n.Kind, Params: params})
	}
	if len(steps) == 0 {
		return nil, &ChainError{Reason: ReasonEmpty}
	}
	return steps, nil
}

// LinearizeGraph is Linearize over a Graph snapshot.
func LinearizeGraph(g *graph.Graph) ([]Step, error) {
	return Linearize(g.Nodes, g.Edges)
}

func findNode(nodes []*graph.Node, match func(*graph.Node) bool) *graph.Node {
	for _, n := range nodes {
		if n != nil && match(n) {
			return n
		}
	}
	return nil
}
