package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ravi-parthasarathy/aigen/pkg/graph"
)

func graphCmd() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "graph <graph.json|graph.dot>",
		Short: "Print a human-readable summary of a graph",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := loadGraphFile(args[0])
			if err != nil {
				return err
			}
			g := doc.Graph()

			switch strings.ToLower(format) {
			case "dot":
				fmt.Fprint(cmd.OutOrStdout(), graph.RenderDOT("pipeline", g))
			case "text", "":
				fmt.Fprint(cmd.OutOrStdout(), renderText(g))
			default:
				return fmt.Errorf("unknown format %q: use text or dot", format)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&format, "format", "text", "output format: text or dot")
	return cmd
}

// chainOrder returns nodes following edges from the first Start node; nodes
// not reached that way are appended in creation order.
func chainOrder(g *graph.Graph) []*graph.Node {
	next := make(map[string][]string, len(g.Edges))
	for _, e := range g.Edges {
		next[e.Source] = append(next[e.Source], e.Target)
	}

	visited := map[string]bool{}
	var order []*graph.Node
	for _, n := range g.Nodes {
		if n.Kind != graph.KindStart {
			continue
		}
		queue := []string{n.ID}
		for len(queue) > 0 {
			cur := queue[0]
			queue = queue[1:]
			if visited[cur] {
				continue
			}
			node := g.Node(cur)
			if node == nil {
				continue
			}
			visited[cur] = true
			order = append(order, node)
			queue = append(queue, next[cur]...)
		}
		break
	}

	for _, n := range g.Nodes {
		if !visited[n.ID] {
			order = append(order, n)
		}
	}
	return order
}

// truncate shortens s to maxLen runes, appending "…" if needed.
func truncate(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen]) + "…"
}

// renderText produces the human-readable text summary.
func renderText(g *graph.Graph) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "Graph: %d nodes, %d edges\n", len(g.Nodes), len(g.Edges))

	maxIDLen := 4
	for _, n := range g.Nodes {
		if len(n.ID) > maxIDLen {
			maxIDLen = len(n.ID)
		}
	}

	fmt.Fprintf(&sb, "\nNodes:\n")
	for _, n := range chainOrder(g) {
		var parts []string
		for _, k := range n.Params.Keys() {
			v, _ := n.Params.Get(k)
			s := strings.ReplaceAll(graph.FormatValue(v), "\n", `\n`)
			parts = append(parts, k+"="+truncate(s, 60))
		}
		fmt.Fprintf(&sb, "  %-*s  %-14s  %s\n", maxIDLen, n.ID, string(n.Kind), strings.Join(parts, " "))
	}

	fmt.Fprintf(&sb, "\nEdges:\n")
	maxFromLen := 4
	for _, e := range g.Edges {
		if len(e.Source) > maxFromLen {
			maxFromLen = len(e.Source)
		}
	}
	for _, e := range g.Edges {
		fmt.Fprintf(&sb, "  %-*s  →  %s\n", maxFromLen, e.Source, e.Target)
	}

	return sb.String()
}
