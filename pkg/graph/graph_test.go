package graph_test

import (
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ravi-parthasarathy/aigen/pkg/graph"
)

// ─── Connect ──────────────────────────────────────────────────────────────────

func TestConnect_ReplacesConflictingEdges(t *testing.T) {
	t.Parallel()
	g := graph.New()
	start := g.AddNode(graph.KindStart)
	a := g.AddNode(graph.KindSetVariable)
	b := g.AddNode(graph.KindPrintVariable)
	end := g.AddNode(graph.KindEnd)

	require.NoError(t, g.Connect(start.ID, a.ID))
	require.NoError(t, g.Connect(a.ID, end.ID))
	// Re-routing a's output drops a -> end.
	require.NoError(t, g.Connect(a.ID, b.ID))
	// Routing into b from start drops start -> a and a -> b.
	require.NoError(t, g.Connect(start.ID, b.ID))

	require.Equal(t, []graph.Edge{{Source: start.ID, Target: b.ID}}, g.Edges)
}

func TestConnect_Rejects(t *testing.T) {
	t.Parallel()
	g := graph.New()
	start := g.AddNode(graph.KindStart)
	a := g.AddNode(graph.KindSetVariable)
	end := g.AddNode(graph.KindEnd)

	tests := []struct {
		name           string
		source, target string
	}{
		{"out of End", end.ID, a.ID},
		{"into Start", a.ID, start.ID},
		{"self loop", a.ID, a.ID},
		{"unknown source", "nope", a.ID},
		{"unknown target", a.ID, "nope"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := g.Connect(tt.source, tt.target)
			require.Error(t, err)
			require.True(t, errors.Is(err, graph.ErrInvalidConnection))
		})
	}
	require.Empty(t, g.Edges)
}

func TestRemoveNode_DropsEdges(t *testing.T) {
	t.Parallel()
	g := graph.New()
	start := g.AddNode(graph.KindStart)
	a := g.AddNode(graph.KindSetVariable)
	end := g.AddNode(graph.KindEnd)
	require.NoError(t, g.Connect(start.ID, a.ID))
	require.NoError(t, g.Connect(a.ID, end.ID))

	g.RemoveNode(a.ID)
	require.Len(t, g.Nodes, 2)
	require.Empty(t, g.Edges)
	require.Nil(t, g.Node(a.ID))
}

func TestAddNode_DefaultParams(t *testing.T) {
	t.Parallel()
	g := graph.New()
	n := g.AddNode(graph.KindSetVariable)
	require.NotEmpty(t, n.ID)
	require.Equal(t, []string{"name", "value", "mode"}, n.Params.Keys())

	marker := g.AddNode(graph.KindStart)
	require.Zero(t, marker.Params.Len())

	// Defaults are independent copies.
	other := g.AddNode(graph.KindSetVariable)
	n.Params.Set("name", "changed")
	require.Equal(t, "temp_string", other.Params.GetString("name"))
}

func TestParseStepKind(t *testing.T) {
	t.Parallel()
	k, err := graph.ParseStepKind("GPTChat")
	require.NoError(t, err)
	require.Equal(t, graph.KindModelChat, k)

	_, err = graph.ParseStepKind("Teleport")
	require.Error(t, err)
}

// ─── Params ───────────────────────────────────────────────────────────────────

func TestParams_JSONKeepsOrder(t *testing.T) {
	t.Parallel()
	src := `{"zeta":"z","alpha":1,"mid":true,"ratio":0.5,"prompt":[{"type":"text","content":"hi"},{"type":"image","content":"a.png","detailed":false}]}`
	var p graph.Params
	require.NoError(t, json.Unmarshal([]byte(src), &p))
	require.Equal(t, []string{"zeta", "alpha", "mid", "ratio", "prompt"}, p.Keys())

	v, _ := p.Get("alpha")
	require.Equal(t, int64(1), v)
	v, _ = p.Get("ratio")
	require.Equal(t, 0.5, v)

	v, _ = p.Get("prompt")
	blocks, ok := v.([]graph.PromptBlock)
	require.True(t, ok)
	require.Len(t, blocks, 2)
	require.Equal(t, graph.PromptImage, blocks[1].Kind)
	require.NotNil(t, blocks[1].Detailed)
	require.False(t, *blocks[1].Detailed)

	out, err := json.Marshal(&p)
	require.NoError(t, err)
	require.JSONEq(t, src, string(out))
	require.Less(t, indexOf(string(out), `"zeta"`), indexOf(string(out), `"alpha"`))
}

func TestParams_ListWithExtraKeysStaysGeneric(t *testing.T) {
	t.Parallel()
	src := `{"items":[{"type":"a","content":"x","extra":1}],"prompt":[{"type":"text","content":"hi"}]}`
	var p graph.Params
	require.NoError(t, json.Unmarshal([]byte(src), &p))

	v, _ := p.Get("items")
	require.Equal(t, []any{map[string]any{"type": "a", "content": "x", "extra": int64(1)}}, v)
	v, _ = p.Get("prompt")
	require.IsType(t, []graph.PromptBlock{}, v)

	out, err := json.Marshal(&p)
	require.NoError(t, err)
	require.JSONEq(t, src, string(out))
}

func TestParams_Delete(t *testing.T) {
	t.Parallel()
	p := graph.NewParams()
	p.Set("a", "1")
	p.Set("b", "2")
	p.Set("c", "3")
	p.Delete("b")
	p.Set("a", "again")
	require.Equal(t, []string{"a", "c"}, p.Keys())
	require.Equal(t, "again", p.GetString("a"))
}

func indexOf(s, sub string) int {
	for i := 0; i+len(sub) <= len(s); i++ {
		if s[i:i+len(sub)] == sub {
			return i
		}
	}
	return -1
}

// ─── Document / Store ─────────────────────────────────────────────────────────

func TestDocument_EditorExportForm(t *testing.T) {
	t.Parallel()
	src := `{
		"nodes": [
			{"id": "n1", "type": "param", "position": {"x": 60, "y": 60}, "data": {"nodeType": "Start", "params": {}}},
			{"id": "n2", "data": {"nodeType": "GPTChat", "params": {"output": "resp"}}},
			{"id": "n3", "kind": "End"}
		],
		"edges": [{"source": "n1", "target": "n2"}, {"source": "n2", "target": "n3"}],
		"placeholderName": "greeting",
		"batchValues": "Hello\nHola"
	}`
	doc, err := graph.Decode([]byte(src))
	require.NoError(t, err)
	require.Len(t, doc.Nodes, 3)
	require.Equal(t, graph.KindModelChat, doc.Nodes[1].Kind)
	require.Equal(t, "resp", doc.Nodes[1].Params.GetString("output"))
	require.NotNil(t, doc.Nodes[0].Position)
	require.Zero(t, doc.Nodes[2].Params.Len())
	require.Equal(t, "greeting", doc.PlaceholderName)
	require.Len(t, doc.Graph().Edges, 2)
}

func TestDocument_UnknownKind(t *testing.T) {
	t.Parallel()
	_, err := graph.Decode([]byte(`{"nodes":[{"id":"x","kind":"Warp"}]}`))
	require.Error(t, err)
}

func TestStore_RoundTrip(t *testing.T) {
	t.Parallel()
	store := graph.NewStore(filepath.Join(t.TempDir(), "graphs"))

	names, err := store.List()
	require.NoError(t, err)
	require.Empty(t, names)

	g := graph.New()
	start := g.AddNode(graph.KindStart)
	set := g.AddNode(graph.KindSetVariable)
	require.NoError(t, g.Connect(start.ID, set.ID))
	doc := &graph.Document{Nodes: g.Nodes, Edges: g.Edges, PlaceholderName: "x", BatchValues: "a\nb"}

	require.NoError(t, store.Put("demo", doc))
	names, err = store.List()
	require.NoError(t, err)
	require.Equal(t, []string{"demo"}, names)

	got, err := store.Get("demo")
	require.NoError(t, err)
	require.Equal(t, doc.PlaceholderName, got.PlaceholderName)
	require.Equal(t, doc.BatchValues, got.BatchValues)
	require.Equal(t, doc.Edges, got.Edges)
	require.Equal(t, set.Params.Keys(), got.Nodes[1].Params.Keys())

	require.NoError(t, store.Delete("demo"))
	_, err = store.Get("demo")
	require.ErrorIs(t, err, graph.ErrNotFound)
	require.NoError(t, store.Delete("demo"))
}

func TestStore_InvalidName(t *testing.T) {
	t.Parallel()
	store := graph.NewStore(t.TempDir())
	require.ErrorIs(t, store.Put("../escape", &graph.Document{}), graph.ErrInvalidName)
	_, err := store.Get("")
	require.Error(t, err)
}

// ─── DOT ──────────────────────────────────────────────────────────────────────

func TestParseDOT_Chain(t *testing.T) {
	t.Parallel()
	src := `digraph hello {
		start [kind=Start]
		set   [kind=SetVariable, value="hi", name="x"]
		chat  [kind=ModelChat, prompt="Say hello", output="resp"]
		end   [kind=End]
		start -> set
		set -> chat
		chat -> end
	}`
	g, err := graph.ParseDOT(src)
	require.NoError(t, err)
	require.Len(t, g.Nodes, 4)
	require.Equal(t, "start", g.Nodes[0].ID)
	require.Equal(t, []string{"name", "value"}, g.Nodes[1].Params.Keys())
	require.Equal(t, []graph.Edge{
		{Source: "start", Target: "set"},
		{Source: "set", Target: "chat"},
		{Source: "chat", Target: "end"},
	}, g.Edges)

	v, _ := g.Nodes[2].Params.Get("prompt")
	require.Equal(t, []graph.PromptBlock{{Kind: graph.PromptText, Content: "Say hello"}}, v)
}

func TestParseDOT_MissingKind(t *testing.T) {
	t.Parallel()
	_, err := graph.ParseDOT(`digraph bad { a [name="x"] }`)
	require.Error(t, err)
}

func TestRenderDOT_ParsesBack(t *testing.T) {
	t.Parallel()
	g := graph.New()
	start := g.AddNode(graph.KindStart)
	set := g.AddNode(graph.KindSetVariable)
	end := g.AddNode(graph.KindEnd)
	require.NoError(t, g.Connect(start.ID, set.ID))
	require.NoError(t, g.Connect(set.ID, end.ID))

	back, err := graph.ParseDOT(graph.RenderDOT("demo", g))
	require.NoError(t, err)
	require.Len(t, back.Nodes, 3)
	require.Equal(t, g.Edges, back.Edges)
	require.Equal(t, "Example variable", back.Nodes[1].Params.GetString("value"))
}
