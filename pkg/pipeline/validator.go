package pipeline

import (
	"fmt"
	"strings"

	"github.com/ravi-parthasarathy/aigen/pkg/graph"
)

// stepRequiredParams maps each step kind to the parameters that must be
// present and non-empty. Lint reports every missing parameter across all
// steps, not just the first.
var stepRequiredParams = map[graph.StepKind][]string{
	graph.KindSetVariable:   {"name"},
	graph.KindCopyVariable:  {"input", "output"},
	graph.KindPrintVariable: {"name"},
	graph.KindReadFile:      {"file_path", "output"},
	graph.KindSaveFile:      {"file_path", "input"},
	graph.KindModelChat:     {"prompt", "output"},
}

// Lint checks step parameters. It is advisory: the executor owns step
// semantics and may accept documents Lint flags.
func Lint(steps []Step) []LintError {
	var errs []LintError
	for i, s := range steps {
		errs = append(errs, LintStep(i, s)...)
	}
	return errs
}

// LintStep checks a single step's required parameters and prompt blocks.
func LintStep(index int, s Step) []LintError {
	var errs []LintError
	add := func(msg string) {
		errs = append(errs, LintError{Index: index, Kind: string(s.Kind), Message: msg})
	}

	for _, name := range stepRequiredParams[s.Kind] {
		v, ok := s.Params.Get(name)
		if !ok || isEmpty(v) {
			add(fmt.Sprintf("missing required parameter %q", name))
		}
	}

	if s.Kind == graph.KindModelChat {
		if v, ok := s.Params.Get("prompt"); ok && !isEmpty(v) {
			blocks, isBlocks := v.([]graph.PromptBlock)
			if !isBlocks {
				add("parameter \"prompt\" must be a list of prompt blocks")
			}
			for j, b := range blocks {
				switch {
				case b.Kind != graph.PromptText && b.Kind != graph.PromptImage:
					add(fmt.Sprintf("prompt block %d: unknown type %q", j+1, b.Kind))
				case b.Content == "":
					add(fmt.Sprintf("prompt block %d: empty content", j+1))
				case b.Kind == graph.PromptText && b.Detailed != nil:
					add(fmt.Sprintf("prompt block %d: \"detailed\" only applies to image blocks", j+1))
				}
			}
		}
	}
	return errs
}

// LintErr calls Lint and returns nil if there are no errors, or a combined
// error listing all of them.
func LintErr(steps []Step) error {
	errs := Lint(steps)
	if len(errs) == 0 {
		return nil
	}
	msgs := make([]string, len(errs))
	for i, e := range errs {
		msgs[i] = e.Error()
	}
	return fmt.Errorf("pipeline lint failed:\n  %s", strings.Join(msgs, "\n  "))
}

func isEmpty(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(t) == ""
	case []graph.PromptBlock:
		return len(t) == 0
	case []any:
		return len(t) == 0
	}
	return false
}
