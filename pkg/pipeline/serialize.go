package pipeline

import (
	"bytes"
	"fmt"

	"go.yaml.in/yaml/v3"

	"github.com/ravi-parthasarathy/aigen/pkg/graph"
)

// Record keys of the pipeline document.
const (
	keyNode   = "node"
	keyParams = "params"
)

// Serialize renders steps as a YAML pipeline document: a list of
// {node: <kind>, params: <mapping>} records. Parameter order and list order
// are kept exactly as given.
func Serialize(steps []Step) (string, error) {
	seq := &yaml.Node{Kind: yaml.SequenceNode}
	for i, s := range steps {
		params := &yaml.Node{Kind: yaml.MappingNode}
		for _, k := range s.Params.Keys() {
			v, _ := s.Params.Get(k)
			var val yaml.Node
			if err := val.Encode(v); err != nil {
				return "", fmt.Errorf("step %d (%s): param %q: %w", i+1, s.Kind, k, err)
			}
			params.Content = append(params.Content, scalar(k), &val)
		}
		seq.Content = append(seq.Content, &yaml.Node{
			Kind: yaml.MappingNode,
			Content: []*yaml.Node{
				scalar(keyNode), scalar(string(s.Kind)),
				scalar(keyParams), params,
			},
		})
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(seq); err != nil {
		return "", fmt.Errorf("encode pipeline document: %w", err)
	}
	if err := enc.Close(); err != nil {
		return "", fmt.Errorf("encode pipeline document: %w", err)
	}
	return buf.String(), nil
}

// Compile linearizes g and serializes the result.
func Compile(g *graph.Graph) (string, error) {
	steps, err := LinearizeGraph(g)
	if err != nil {
		return "", err
	}
	return Serialize(steps)
}

// Parse reads a pipeline document back into steps.
func Parse(text string) ([]Step, error) {
	var root yaml.Node
	if err := yaml.Unmarshal([]byte(text), &root); err != nil {
		return nil, fmt.Errorf("parse pipeline document: %w", err)
	}
	if len(root.Content) == 0 {
		return nil, nil
	}
	seq := root.Content[0]
	if seq.Kind != yaml.SequenceNode {
		return nil, fmt.Errorf("parse pipeline document: line %d: expected a list of steps", seq.Line)
	}

	steps := make([]Step, 0, len(seq.Content))
	for i, rec := range seq.Content {
		if rec.Kind != yaml.MappingNode {
			return nil, fmt.Errorf("step %d: line %d: expected a mapping", i+1, rec.Line)
		}
		step := Step{Params: graph.NewParams()}
		for j := 0; j+1 < len(rec.Content); j += 2 {
			key, val := rec.Content[j].Value, rec.Content[j+1]
			switch key {
			case keyNode:
				k, err := graph.ParseStepKind(val.Value)
				if err != nil {
					return nil, fmt.Errorf("step %d: %w", i+1, err)
				}
				step.Kind = k
			case keyParams:
				p, err := parseParams(val)
				if err != nil {
					return nil, fmt.Errorf("step %d: %w", i+1, err)
				}
				step.Params = p
			}
		}
		if step.Kind == "" {
			return nil, fmt.Errorf("step %d: line %d: missing %q", i+1, rec.Line, keyNode)
		}
		steps = append(steps, step)
	}
	return steps, nil
}

func parseParams(n *yaml.Node) (*graph.Params, error) {
	p := graph.NewParams()
	if n.Kind == yaml.ScalarNode && n.Tag == "!!null" {
		return p, nil
	}
	if n.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("line %d: params must be a mapping", n.Line)
	}
	for i := 0; i+1 < len(n.Content); i += 2 {
		key, val := n.Content[i].Value, n.Content[i+1]
		v, err := parseValue(val)
		if err != nil {
			return nil, fmt.Errorf("param %q: %w", key, err)
		}
		p.Set(key, v)
	}
	return p, nil
}

func parseValue(n *yaml.Node) (any, error) {
	if isPromptList(n) {
		var blocks []graph.PromptBlock
		if err := n.Decode(&blocks); err != nil {
			return nil, err
		}
		return blocks, nil
	}
	var v any
	if err := n.Decode(&v); err != nil {
		return nil, err
	}
	return widenInts(v), nil
}

// promptBlockKeys are the only keys a prompt block mapping may carry. A list
// whose mappings have any other key stays a generic list.
var promptBlockKeys = map[string]bool{"type": true, "content": true, "detailed": true}

// isPromptList reports whether n is a non-empty list of mappings that each
// carry a "type" key and nothing outside promptBlockKeys.
func isPromptList(n *yaml.Node) bool {
	if n.Kind != yaml.SequenceNode || len(n.Content) == 0 {
		return false
	}
	for _, item := range n.Content {
		if item.Kind != yaml.MappingNode {
			return false
		}
		found := false
		for j := 0; j+1 < len(item.Content); j += 2 {
			key := item.Content[j].Value
			if !promptBlockKeys[key] {
				return false
			}
			if key == "type" {
				found = true
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// widenInts converts yaml's int decoding to the int64 form Params uses.
func widenInts(v any) any {
	switch t := v.(type) {
	case int:
		return int64(t)
	case []any:
		for i := range t {
			t[i] = widenInts(t[i])
		}
	case map[string]any:
		for k := range t {
			t[k] = widenInts(t[k])
		}
	}
	return v
}

func scalar(s string) *yaml.Node {
	var n yaml.Node
	_ = n.Encode(s)
	return &n
}
