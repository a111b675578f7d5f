// Package coordinator submits pipeline documents to the remote executor and
// folds the responses into a single State value. Batch runs substitute each
// input value into the document and submit the results one at a time.
package coordinator

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/ravi-parthasarathy/aigen/pkg/executor"
	"github.com/ravi-parthasarathy/aigen/pkg/graph"
	"github.com/ravi-parthasarathy/aigen/pkg/pipeline"
	"github.com/ravi-parthasarathy/aigen/pkg/placeholder"
)

// Executor runs one document remotely. A non-nil error means no response was
// obtained; a failure reported by the executor comes back as an Outcome.
type Executor interface {
	Run(ctx context.Context, document string) (executor.Outcome, error)
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithPlaceholder sets the placeholder name guarded against in single runs.
func WithPlaceholder(name string) Option {
	return func(c *Coordinator) { c.placeholder = name }
}

// WithHaltOnFailure stops a batch at its first failed item.
func WithHaltOnFailure(halt bool) Option {
	return func(c *Coordinator) { c.haltOnFailure = halt }
}

// WithLogger sets the logger; the default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(c *Coordinator) {
		if l != nil {
			c.logger = l
		}
	}
}

// Coordinator drives single and batch runs against one Executor. It is safe
// to share: remote calls are serialised so at most one is in flight.
type Coordinator struct {
	exec          Executor
	placeholder   string
	haltOnFailure bool
	logger        *slog.Logger

	mu sync.Mutex
}

// New creates a Coordinator.
func New(exec Executor, opts ...Option) *Coordinator {
	c := &Coordinator{exec: exec, logger: slog.Default()}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Placeholder returns the configured placeholder name, possibly empty.
func (c *Coordinator) Placeholder() string { return c.placeholder }

// Compile linearizes and serializes g.
func Compile(g *graph.Graph) (string, error) {
	return pipeline.Compile(g)
}

// GuardPlaceholder refuses a single run of a document that still contains
// the named placeholder. An empty name never matches.
func GuardPlaceholder(document, name string) error {
	if placeholder.Contains(document, name) {
		return &ConfigError{Message: msgPlaceholderPresent}
	}
	return nil
}

// submit performs exactly one round trip. Transport failures become a failed
// Outcome carrying the error text.
func (c *Coordinator) submit(ctx context.Context, document string) executor.Outcome {
	c.mu.Lock()
	defer c.mu.Unlock()
	out, err := c.exec.Run(ctx, document)
	if err != nil {
		return executor.Failed(err)
	}
	return out
}

// RunOnce submits document once. The returned error is non-nil only when the
// run was refused before submission; remote and transport failures are
// reported in State.Error.
func (c *Coordinator) RunOnce(ctx context.Context, document string) (State, error) {
	if err := GuardPlaceholder(document, c.placeholder); err != nil {
		return State{}, err
	}

	s := State{RunID: uuid.NewString()}
	log := c.logger.With("run_id", s.RunID)
	log.Info("run started")

	out := c.submit(ctx, document)
	if out.OK {
		s.OK = true
		s.Result = out.Outputs
		s.Logs = strings.TrimSpace(joinNonEmpty(out.Logs, out.Errors))
	} else {
		s.Error = errorPayload(out)
		s.Logs = strings.TrimSpace(joinNonEmpty(s.Error.Logs, s.Error.Stderr))
	}

	log.Info("run finished", "ok", s.OK)
	return s, nil
}

// RunBatch substitutes each value for the placeholder name in document and
// submits the results in order, one after another. A failed item does not
// stop the batch unless halt-on-failure is set. Cancelling ctx stops the
// batch before the next item, and a cancel during the final item is reported
// the same way; the partial State is returned with the error.
func (c *Coordinator) RunBatch(ctx context.Context, document, name string, values []string) (State, error) {
	if name == "" {
		return State{}, &ConfigError{Message: "batch placeholder name is empty"}
	}
	if len(values) == 0 {
		return State{}, &ConfigError{Message: "batch has no values"}
	}

	s := State{RunID: uuid.NewString()}
	batch := &Batch{Count: len(values), Items: make([]BatchItem, 0, len(values))}
	s.Batch = batch
	log := c.logger.With("run_id", s.RunID, "placeholder", name)
	log.Info("batch started", "items", len(values))

	var logs []string
	for i, v := range values {
		if err := ctx.Err(); err != nil {
			return canceled(s, logs, log, err)
		}

		out := c.submit(ctx, placeholder.Substitute(document, name, v))
		item := BatchItem{Value: v, OK: out.OK}
		if out.OK {
			item.Outputs = out.Outputs
		}
		batch.Items = append(batch.Items, item)
		logs = appendItemLogs(logs, out)
		log.Info("batch item finished", "item", i+1, "ok", out.OK)

		if !out.OK && c.haltOnFailure {
			batch.Halted = true
			break
		}
	}

	// A cancel that lands during the last submitted item.
	if err := ctx.Err(); err != nil {
		return canceled(s, logs, log, err)
	}

	s.Logs = strings.Join(logs, "\n")
	if failed := batch.Failed(); failed > 0 {
		s.Error = &executor.ErrorPayload{
			Message: fmt.Sprintf("%d of %d batch items failed", failed, batch.Count),
		}
	} else {
		s.OK = true
	}
	log.Info("batch finished", "ok", s.OK, "executed", len(batch.Items), "halted", batch.Halted)
	return s, nil
}

// canceled marks s as a halted partial batch and wraps the context error.
func canceled(s State, logs []string, log *slog.Logger, err error) (State, error) {
	done := len(s.Batch.Items)
	s.Batch.Halted = true
	s.Logs = strings.Join(logs, "\n")
	s.Error = &executor.ErrorPayload{
		Message: fmt.Sprintf("batch canceled after %d of %d items", done, s.Batch.Count),
	}
	log.Warn("batch canceled", "completed", done)
	return s, fmt.Errorf("batch canceled: %w", err)
}

func errorPayload(out executor.Outcome) *executor.ErrorPayload {
	if out.Error != nil {
		return out.Error
	}
	return &executor.ErrorPayload{Message: "executor reported failure without details"}
}

func appendItemLogs(logs []string, out executor.Outcome) []string {
	fields := []string{out.Logs, out.Errors}
	if out.Error != nil {
		fields = append(fields, out.Error.Logs, out.Error.Stderr, out.Error.Traceback)
	}
	for _, f := range fields {
		if f != "" {
			logs = append(logs, f)
		}
	}
	return logs
}

func joinNonEmpty(parts ...string) string {
	var kept []string
	for _, p := range parts {
		if p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, "\n")
}
