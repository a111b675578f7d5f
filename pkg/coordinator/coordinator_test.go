package coordinator_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ravi-parthasarathy/aigen/pkg/coordinator"
	"github.com/ravi-parthasarathy/aigen/pkg/executor"
	"github.com/ravi-parthasarathy/aigen/pkg/graph"
)

// fakeExecutor records every submitted document and answers with respond.
type fakeExecutor struct {
	mu       sync.Mutex
	docs     []string
	inFlight int
	maxSeen  int
	respond  func(n int, doc string) (executor.Outcome, error)
}

func (f *fakeExecutor) Run(_ context.Context, doc string) (executor.Outcome, error) {
	f.mu.Lock()
	f.docs = append(f.docs, doc)
	n := len(f.docs)
	f.inFlight++
	if f.inFlight > f.maxSeen {
		f.maxSeen = f.inFlight
	}
	f.mu.Unlock()

	defer func() {
		f.mu.Lock()
		f.inFlight--
		f.mu.Unlock()
	}()
	if f.respond == nil {
		return executor.Outcome{OK: true, Outputs: map[string]any{"doc": doc}}, nil
	}
	return f.respond(n, doc)
}

func (f *fakeExecutor) submitted() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.docs...)
}

const batchDoc = "- node: SetVariable\n  params:\n    name: g\n    value: '{{greeting}}'\n"

// ─── RunOnce ──────────────────────────────────────────────────────────────────

func TestRunOnce_Success(t *testing.T) {
	t.Parallel()
	fx := &fakeExecutor{respond: func(int, string) (executor.Outcome, error) {
		return executor.Outcome{
			OK:      true,
			Outputs: map[string]any{"chat_response": "hi"},
			Logs:    "step 1\n",
			Errors:  "warn\n",
		}, nil
	}}
	c := coordinator.New(fx)

	s, err := c.RunOnce(t.Context(), "doc")
	require.NoError(t, err)
	require.True(t, s.OK)
	require.NotEmpty(t, s.RunID)
	require.Equal(t, map[string]any{"chat_response": "hi"}, s.Result)
	require.Equal(t, "step 1\n\nwarn", s.Logs)
	require.Nil(t, s.Error)
	require.Nil(t, s.Batch)
	require.Len(t, fx.submitted(), 1)
}

func TestRunOnce_RemoteFailure(t *testing.T) {
	t.Parallel()
	fx := &fakeExecutor{respond: func(int, string) (executor.Outcome, error) {
		return executor.Outcome{
			Outputs: map[string]any{"stale": true},
			Error:   &executor.ErrorPayload{Message: "bad step", Logs: "log", Stderr: "trace"},
		}, nil
	}}
	s, err := coordinator.New(fx).RunOnce(t.Context(), "doc")
	require.NoError(t, err)
	require.False(t, s.OK)
	require.Nil(t, s.Result)
	require.Equal(t, "bad step", s.Error.Message)
	require.Equal(t, "log\ntrace", s.Logs)
}

func TestRunOnce_TransportFailure(t *testing.T) {
	t.Parallel()
	fx := &fakeExecutor{respond: func(int, string) (executor.Outcome, error) {
		return executor.Outcome{}, &executor.ExecutionError{Message: "request failed", Cause: errors.New("connection refused")}
	}}
	s, err := coordinator.New(fx).RunOnce(t.Context(), "doc")
	require.NoError(t, err)
	require.False(t, s.OK)
	require.Contains(t, s.Error.Message, "connection refused")
	require.Len(t, fx.submitted(), 1, "no retry")
}

func TestRunOnce_PlaceholderGuard(t *testing.T) {
	t.Parallel()
	for _, doc := range []string{"value: {{greeting}}", "value: ${greeting}"} {
		fx := &fakeExecutor{}
		c := coordinator.New(fx, coordinator.WithPlaceholder("greeting"))
		_, err := c.RunOnce(t.Context(), doc)
		require.ErrorIs(t, err, coordinator.ErrConfig)
		var ce *coordinator.ConfigError
		require.ErrorAs(t, err, &ce)
		require.Equal(t, "placeholder present; use batch mode", ce.Message)
		require.Empty(t, fx.submitted(), "no network call")
	}
}

func TestRunOnce_NoPlaceholderConfigured(t *testing.T) {
	t.Parallel()
	fx := &fakeExecutor{}
	s, err := coordinator.New(fx).RunOnce(t.Context(), "value: {{greeting}}")
	require.NoError(t, err)
	require.True(t, s.OK)
	require.Len(t, fx.submitted(), 1)
}

// ─── RunBatch ─────────────────────────────────────────────────────────────────

func TestRunBatch_SequentialInOrder(t *testing.T) {
	t.Parallel()
	fx := &fakeExecutor{}
	c := coordinator.New(fx, coordinator.WithPlaceholder("greeting"))

	s, err := c.RunBatch(t.Context(), batchDoc, "greeting", []string{"Hello", "Bonjour", "Hola"})
	require.NoError(t, err)
	require.True(t, s.OK)
	require.Nil(t, s.Error)
	require.Equal(t, 3, s.Batch.Count)
	require.Len(t, s.Batch.Items, 3)
	require.False(t, s.Batch.Halted)

	docs := fx.submitted()
	require.Len(t, docs, 3)
	for i, want := range []string{"Hello", "Bonjour", "Hola"} {
		require.Contains(t, docs[i], "value: '"+want+"'")
		require.NotContains(t, docs[i], "{{greeting}}")
		require.Equal(t, want, s.Batch.Items[i].Value)
		require.True(t, s.Batch.Items[i].OK)
		require.Equal(t, docs[i], s.Batch.Items[i].Outputs["doc"])
	}
	require.Equal(t, 1, fx.maxSeen, "one call in flight at a time")
}

func TestRunBatch_FailureDoesNotAbort(t *testing.T) {
	t.Parallel()
	fx := &fakeExecutor{respond: func(n int, doc string) (executor.Outcome, error) {
		if n == 2 {
			return executor.Outcome{Error: &executor.ErrorPayload{Message: "boom", Stderr: "stderr-2", Traceback: "tb-2"}}, nil
		}
		return executor.Outcome{OK: true, Outputs: map[string]any{"n": n}, Logs: "log-" + doc[len(doc)-2:len(doc)-1]}, nil
	}}
	c := coordinator.New(fx)

	s, err := c.RunBatch(t.Context(), "x{{v}}\n", "v", []string{"1", "2", "3"})
	require.NoError(t, err)
	require.False(t, s.OK)
	require.Equal(t, 3, s.Batch.Count)
	require.Len(t, s.Batch.Items, 3)
	require.True(t, s.Batch.Items[0].OK)
	require.False(t, s.Batch.Items[1].OK)
	require.Nil(t, s.Batch.Items[1].Outputs)
	require.True(t, s.Batch.Items[2].OK)
	require.Equal(t, "1 of 3 batch items failed", s.Error.Message)
	require.Equal(t, "log-1\nstderr-2\ntb-2\nlog-3", s.Logs)
}

func TestRunBatch_TransportFailureContinues(t *testing.T) {
	t.Parallel()
	fx := &fakeExecutor{respond: func(n int, _ string) (executor.Outcome, error) {
		if n == 1 {
			return executor.Outcome{}, errors.New("unreachable")
		}
		return executor.Outcome{OK: true}, nil
	}}
	s, err := coordinator.New(fx).RunBatch(t.Context(), "{{v}}", "v", []string{"a", "b"})
	require.NoError(t, err)
	require.False(t, s.OK)
	require.Len(t, s.Batch.Items, 2)
	require.False(t, s.Batch.Items[0].OK)
	require.True(t, s.Batch.Items[1].OK)
}

func TestRunBatch_HaltOnFailure(t *testing.T) {
	t.Parallel()
	fx := &fakeExecutor{respond: func(n int, _ string) (executor.Outcome, error) {
		if n == 2 {
			return executor.Outcome{Error: &executor.ErrorPayload{Message: "boom"}}, nil
		}
		return executor.Outcome{OK: true}, nil
	}}
	c := coordinator.New(fx, coordinator.WithHaltOnFailure(true))

	s, err := c.RunBatch(t.Context(), "{{v}}", "v", []string{"a", "b", "c", "d"})
	require.NoError(t, err)
	require.False(t, s.OK)
	require.True(t, s.Batch.Halted)
	require.Equal(t, 4, s.Batch.Count)
	require.Len(t, s.Batch.Items, 2)
	require.Len(t, fx.submitted(), 2)
	require.Equal(t, "1 of 4 batch items failed", s.Error.Message)
}

func TestRunBatch_ConfigErrors(t *testing.T) {
	t.Parallel()
	fx := &fakeExecutor{}
	c := coordinator.New(fx)

	_, err := c.RunBatch(t.Context(), "{{v}}", "", []string{"a"})
	require.ErrorIs(t, err, coordinator.ErrConfig)
	_, err = c.RunBatch(t.Context(), "{{v}}", "v", nil)
	require.ErrorIs(t, err, coordinator.ErrConfig)
	require.Empty(t, fx.submitted())
}

func TestRunBatch_Canceled(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(t.Context())
	fx := &fakeExecutor{}
	fx.respond = func(n int, _ string) (executor.Outcome, error) {
		if n == 2 {
			cancel()
		}
		return executor.Outcome{OK: true}, nil
	}

	s, err := coordinator.New(fx).RunBatch(ctx, "{{v}}", "v", []string{"a", "b", "c"})
	require.ErrorIs(t, err, context.Canceled)
	require.False(t, s.OK)
	require.True(t, s.Batch.Halted)
	require.Len(t, s.Batch.Items, 2)
	require.Equal(t, 3, s.Batch.Count)
	require.Contains(t, s.Error.Message, "2 of 3")
}

func TestRunBatch_CanceledDuringLastItem(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(t.Context())
	fx := &fakeExecutor{}
	fx.respond = func(n int, _ string) (executor.Outcome, error) {
		if n == 2 {
			cancel()
			return executor.Outcome{}, context.Canceled
		}
		return executor.Outcome{OK: true}, nil
	}

	s, err := coordinator.New(fx).RunBatch(ctx, "{{v}}", "v", []string{"a", "b"})
	require.ErrorIs(t, err, context.Canceled)
	require.False(t, s.OK)
	require.True(t, s.Batch.Halted)
	require.Len(t, s.Batch.Items, 2)
	require.False(t, s.Batch.Items[1].OK)
	require.Contains(t, s.Error.Message, "2 of 2")
}

// ─── Against a stub executor over HTTP ────────────────────────────────────────

func TestRunBatch_EchoExecutor(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			DocumentText string `json:"document_text"`
		}
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &req)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"ok":      true,
			"outputs": map[string]any{"echo": strings.TrimSpace(req.DocumentText)},
			"logs":    "ran " + strings.TrimSpace(req.DocumentText),
			"errors":  "",
			"error":   nil,
		})
	}))
	t.Cleanup(srv.Close)

	client, err := executor.New(srv.URL, 5*time.Second, nil)
	require.NoError(t, err)
	c := coordinator.New(client)

	s, err := c.RunBatch(t.Context(), "say {{v}}\n", "v", []string{"Hello", "Hola"})
	require.NoError(t, err)
	require.True(t, s.OK)
	require.Equal(t, map[string]any{"echo": "say Hello"}, s.Batch.Items[0].Outputs)
	require.Equal(t, map[string]any{"echo": "say Hola"}, s.Batch.Items[1].Outputs)
	require.Equal(t, "ran say Hello\nran say Hola", s.Logs)
}

// ─── Compile / state files ────────────────────────────────────────────────────

func TestCompile(t *testing.T) {
	t.Parallel()
	g := graph.New()
	start := g.AddNode(graph.KindStart)
	p := g.AddNode(graph.KindPrintVariable)
	p.Params.Set("name", "x")
	end := g.AddNode(graph.KindEnd)
	require.NoError(t, g.Connect(start.ID, p.ID))
	require.NoError(t, g.Connect(p.ID, end.ID))

	doc, err := coordinator.Compile(g)
	require.NoError(t, err)
	require.Equal(t, "- node: PrintVariable\n  params:\n    name: x\n", doc)
}

func TestSaveLoadState(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "runs", "last.json")
	want := coordinator.State{
		RunID: "r1",
		Batch: &coordinator.Batch{
			Count: 2,
			Items: []coordinator.BatchItem{{Value: "a", OK: true, Outputs: map[string]any{"x": "y"}}},
		},
		Logs:  "l",
		Error: &executor.ErrorPayload{Message: "1 of 2 batch items failed"},
	}
	require.NoError(t, coordinator.SaveState(path, want))

	got, err := coordinator.LoadState(path)
	require.NoError(t, err)
	require.Equal(t, want, got)

	_, err = coordinator.LoadState(filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)
}
