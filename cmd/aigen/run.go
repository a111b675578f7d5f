package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/ravi-parthasarathy/aigen/pkg/coordinator"
	"github.com/ravi-parthasarathy/aigen/pkg/executor"
	"github.com/ravi-parthasarathy/aigen/pkg/placeholder"
)

// errRunFailed marks a run that completed but reported failure; the state has
// already been printed.
var errRunFailed = errors.New("run failed")

// ─── run ──────────────────────────────────────────────────────────────────────

func runCmd(a *app) *cobra.Command {
	var statePath string

	cmd := &cobra.Command{
		Use:   "run <graph.json|graph.dot>",
		Short: "Compile a graph and execute it once on the remote executor",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := loadGraphFile(args[0])
			if err != nil {
				return err
			}
			text, err := coordinator.Compile(doc.Graph())
			if err != nil {
				return err
			}
			if err := coordinator.GuardPlaceholder(text, doc.PlaceholderName); err != nil {
				return err
			}
			coord, err := a.newCoordinator()
			if err != nil {
				return err
			}

			ctx, cancel := signalContext(cmd.Context())
			defer cancel()
			state, err := coord.RunOnce(ctx, text)
			if err != nil {
				return err
			}
			return finish(cmd.OutOrStdout(), statePath, state)
		},
	}

	cmd.Flags().StringVar(&statePath, "state", "", "also write the run state JSON to this file")
	return cmd
}

// ─── batch ────────────────────────────────────────────────────────────────────

func batchCmd(a *app) *cobra.Command {
	var (
		varName       string
		valuesPath    string
		statePath     string
		haltOnFailure bool
	)

	cmd := &cobra.Command{
		Use:   "batch <graph.json|graph.dot>",
		Short: "Execute a graph once per batch value, substituting the placeholder",
		Long: `Execute a graph once per batch value. Each value replaces every {{name}}
and ${name} in the compiled document; runs are strictly sequential.

Values come from --values (one per line, "-" for stdin) or from the graph
file's saved batch input. The placeholder name comes from --var, the graph
file, or the batch.placeholder setting, in that order.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := loadGraphFile(args[0])
			if err != nil {
				return err
			}
			text, err := coordinator.Compile(doc.Graph())
			if err != nil {
				return err
			}

			name := firstNonEmpty(varName, doc.PlaceholderName, a.cfg.Batch.Placeholder)
			raw := doc.BatchValues
			if valuesPath != "" {
				if raw, err = readValues(cmd.InOrStdin(), valuesPath); err != nil {
					return err
				}
			}

			var opts []coordinator.Option
			if cmd.Flags().Changed("halt-on-failure") {
				opts = append(opts, coordinator.WithHaltOnFailure(haltOnFailure))
			}
			coord, err := a.newCoordinator(opts...)
			if err != nil {
				return err
			}

			ctx, cancel := signalContext(cmd.Context())
			defer cancel()
			state, err := coord.RunBatch(ctx, text, name, placeholder.Lines(raw))
			if err != nil && state.Batch == nil {
				return err
			}
			if ferr := finish(cmd.OutOrStdout(), statePath, state); err == nil {
				err = ferr
			}
			return err
		},
	}

	f := cmd.Flags()
	f.StringVar(&varName, "var", "", "placeholder name to substitute")
	f.StringVar(&valuesPath, "values", "", `file of batch values, one per line ("-" for stdin)`)
	f.StringVar(&statePath, "state", "", "also write the batch state JSON to this file")
	f.BoolVar(&haltOnFailure, "halt-on-failure", false, "stop at the first failed item")
	return cmd
}

// ─── health ───────────────────────────────────────────────────────────────────

func healthCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check that the remote executor is reachable",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := a.newExecutor()
			if err != nil {
				return err
			}
			if err := client.Health(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "OK: executor at %s is healthy\n", client.BaseURL())
			return nil
		},
	}
}

// ─── helpers ──────────────────────────────────────────────────────────────────

func (a *app) newExecutor() (*executor.Client, error) {
	return executor.New(a.cfg.Executor.URL, a.cfg.Executor.Timeout, slog.Default())
}

// newCoordinator builds a Coordinator from configuration; opts are applied last.
func (a *app) newCoordinator(opts ...coordinator.Option) (*coordinator.Coordinator, error) {
	client, err := a.newExecutor()
	if err != nil {
		return nil, err
	}
	base := []coordinator.Option{
		coordinator.WithPlaceholder(a.cfg.Batch.Placeholder),
		coordinator.WithHaltOnFailure(a.cfg.Batch.HaltOnFailure),
		coordinator.WithLogger(slog.Default()),
	}
	return coordinator.New(client, append(base, opts...)...), nil
}

// finish prints the state, saves it when statePath is set and turns a failed
// run into errRunFailed so the process exits non-zero.
func finish(w io.Writer, statePath string, state coordinator.State) error {
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}
	fmt.Fprintln(w, string(data))
	if err := writeState(statePath, state); err != nil {
		return err
	}
	if !state.OK {
		if state.Error != nil {
			return fmt.Errorf("%w: %s", errRunFailed, state.Error.Message)
		}
		return errRunFailed
	}
	return nil
}

// writeState saves state to path. An empty path is a no-op.
func writeState(path string, state coordinator.State) error {
	if path == "" {
		return nil
	}
	return coordinator.SaveState(path, state)
}

func readValues(stdin io.Reader, path string) (string, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return "", fmt.Errorf("read batch values: %w", err)
	}
	return string(data), nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
