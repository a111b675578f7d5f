package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/ravi-parthasarathy/aigen/pkg/coordinator"
	"github.com/ravi-parthasarathy/aigen/pkg/pipeline"
)

// ─── compile ──────────────────────────────────────────────────────────────────

func compileCmd() *cobra.Command {
	var (
		out   string
		check bool
	)

	cmd := &cobra.Command{
		Use:   "compile <graph.json|graph.dot>",
		Short: "Print the pipeline document for a graph",
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
			if check {
				if err := checkRoundTrip(text); err != nil {
					return err
				}
			}
			if out == "" {
				fmt.Fprint(cmd.OutOrStdout(), text)
				return nil
			}
			if dir := filepath.Dir(out); dir != "." {
				if err := os.MkdirAll(dir, 0o755); err != nil {
					return fmt.Errorf("create dirs %q: %w", dir, err)
				}
			}
			if err := os.WriteFile(out, []byte(text), 0o600); err != nil {
				return fmt.Errorf("write document: %w", err)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&out, "out", "o", "", "write the document to this file instead of stdout")
	cmd.Flags().BoolVar(&check, "check", false, "parse the document back and fail if it does not reproduce itself")
	return cmd
}

// checkRoundTrip parses text and serializes it again; the result must be
// byte-identical.
func checkRoundTrip(text string) error {
	steps, err := pipeline.Parse(text)
	if err != nil {
		return fmt.Errorf("check: %w", err)
	}
	again, err := pipeline.Serialize(steps)
	if err != nil {
		return fmt.Errorf("check: %w", err)
	}
	if again != text {
		return fmt.Errorf("check: document does not round-trip:\n%s", again)
	}
	return nil
}

// ─── lint ─────────────────────────────────────────────────────────────────────

func lintCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "lint <graph.json|graph.dot>",
		Short: "Check that a graph forms a chain and its steps have the parameters they need",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := loadGraphFile(args[0])
			if err != nil {
				return err
			}
			steps, err := pipeline.LinearizeGraph(doc.Graph())
			if err != nil {
				return err
			}
			if lintErr := pipeline.LintErr(steps); lintErr != nil {
				return lintErr
			}
			fmt.Fprintf(cmd.OutOrStdout(), "OK: %d steps (%d nodes, %d edges)\n",
				len(steps), len(doc.Nodes), len(doc.Edges))
			return nil
		},
	}
}
