package graph

import (
	"fmt"
	"sort"
	"strings"

	gographviz "github.com/awalterschulze/gographviz"
)

// kindAttr is the DOT node attribute that selects a node's step kind. Every
// other attribute becomes a string parameter.
const kindAttr = "kind"

// ParseDOT builds a Graph from a Graphviz DOT digraph. Node ids are the DOT
// node names; edges keep definition order.
//
//	digraph hello {
//	    start [kind=Start]
//	    set   [kind=SetVariable, name="x", value="hi"]
//	    end   [kind=End]
//	    start -> set -> end
//	}
func ParseDOT(src string) (*Graph, error) {
	graphAst, err := gographviz.ParseString(src)
	if err != nil {
		return nil, fmt.Errorf("dot parse error: %w", err)
	}

	collector := newDOTCollector()
	if err := gographviz.Analyse(graphAst, collector); err != nil {
		return nil, fmt.Errorf("dot analyse error: %w", err)
	}

	g := New()
	for _, id := range collector.order {
		attrs := collector.nodes[id]
		k, err := ParseStepKind(attrs[kindAttr])
		if err != nil {
			return nil, fmt.Errorf("node %q: %w", id, err)
		}
		g.Nodes = append(g.Nodes, &Node{ID: id, Kind: k, Params: attrParams(k, attrs)})
	}
	for _, e := range collector.edges {
		g.Edges = append(g.Edges, Edge{Source: e.from, Target: e.to})
	}
	return g, nil
}

// attrParams converts DOT attributes to parameters in sorted key order. A
// ModelChat "prompt" attribute becomes a single text block.
func attrParams(k StepKind, attrs map[string]string) *Params {
	p := NewParams()
	if k.IsMarker() {
		return p
	}
	keys := make([]string, 0, len(attrs))
	for key := range attrs {
		if key != kindAttr {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	for _, key := range keys {
		v := attrs[key]
		if k == KindModelChat && key == "prompt" {
			p.Set(key, []PromptBlock{{Kind: PromptText, Content: v}})
			continue
		}
		p.Set(key, v)
	}
	return p
}

// ─── permissive DOT collector ─────────────────────────────────────────────────

type rawEdge struct {
	from, to string
}

// dotCollector implements gographviz.Interface without attribute validation.
type dotCollector struct {
	name  string
	order []string
	nodes map[string]map[string]string // id → attrs
	edges []rawEdge
}

func newDOTCollector() *dotCollector {
	return &dotCollector{nodes: make(map[string]map[string]string)}
}

func (c *dotCollector) SetStrict(_ bool) error { return nil }
func (c *dotCollector) SetDir(_ bool) error    { return nil }
func (c *dotCollector) SetName(n string) error { c.name = unquote(n); return nil }
func (c *dotCollector) String() string         { return c.name }

func (c *dotCollector) AddNode(_ string, name string, attrs map[string]string) error {
	id := unquote(name)
	if _, ok := c.nodes[id]; !ok {
		c.nodes[id] = make(map[string]string, len(attrs))
		c.order = append(c.order, id)
	}
	for k, v := range attrs {
		c.nodes[id][k] = unquote(v)
	}
	return nil
}

func (c *dotCollector) AddEdge(src, dst string, _ bool, _ map[string]string) error {
	c.edges = append(c.edges, rawEdge{from: unquote(src), to: unquote(dst)})
	return nil
}

func (c *dotCollector) AddPortEdge(src, _, dst, _ string, directed bool, attrs map[string]string) error {
	return c.AddEdge(src, dst, directed, attrs)
}

func (c *dotCollector) AddAttr(_ string, _, _ string) error                  { return nil }
func (c *dotCollector) AddSubGraph(_, _ string, _ map[string]string) error { return nil }

// unquote strips surrounding double-quotes from a DOT attribute value.
func unquote(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		return strings.ReplaceAll(s[1:len(s)-1], `\"`, `"`)
	}
	return s
}

// ─── DOT output ───────────────────────────────────────────────────────────────

// dotQuote returns the value as a DOT-safe string, quoting if necessary.
func dotQuote(s string) string {
	needsQuote := s == "" ||
		strings.ContainsAny(s, " \t\n\\\"{}[]<>=;,-.:/*")
	if needsQuote {
		escaped := strings.ReplaceAll(s, `\`, `\\`)
		escaped = strings.ReplaceAll(escaped, `"`, `\"`)
		return `"` + escaped + `"`
	}
	return s
}

// RenderDOT renders g as a DOT digraph for inspection. Prompt blocks are
// flattened to a one-line summary.
func RenderDOT(name string, g *Graph) string {
	var sb strings.Builder
	if name == "" {
		name = "pipeline"
	}
	fmt.Fprintf(&sb, "digraph %s {\n", dotQuote(name))

	for _, n := range g.Nodes {
		parts := []string{kindAttr + "=" + dotQuote(string(n.Kind))}
		for _, k := range n.Params.Keys() {
			v, _ := n.Params.Get(k)
			parts = append(parts, dotQuote(k)+"="+dotQuote(FormatValue(v)))
		}
		fmt.Fprintf(&sb, "    %s [%s]\n", dotQuote(n.ID), strings.Join(parts, ", "))
	}
	for _, e := range g.Edges {
		fmt.Fprintf(&sb, "    %s -> %s\n", dotQuote(e.Source), dotQuote(e.Target))
	}

	sb.WriteString("}\n")
	return sb.String()
}

// FormatValue renders a parameter value as a single line of text.
func FormatValue(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case []PromptBlock:
		parts := make([]string, len(t))
		for i, b := range t {
			parts[i] = string(b.Kind) + ":" + b.Content
		}
		return strings.Join(parts, " | ")
	default:
		return fmt.Sprint(v)
	}
}
