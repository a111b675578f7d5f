package pipeline

import (
	"errors"
	"fmt"
)

// ErrChain is the sentinel every ChainError unwraps to.
var ErrChain = errors.New("invalid chain")

// Chain failure reasons reported by Linearize.
const (
	ReasonMissingEndpoints = "missing endpoints"
	ReasonCycle            = "cycle detected"
	ReasonNoEnd            = "does not terminate at End"
	ReasonEmpty            = "empty pipeline"
)

// ChainError describes why a graph is not a single Start-to-End chain.
type ChainError struct {
	Reason string
	// NodeID is the node the walk stopped at, when there is one.
	NodeID string
}

func (e *ChainError) Error() string {
	if e.NodeID != "" {
		return fmt.Sprintf("%s: %s (at node %q)", ErrChain, e.Reason, e.NodeID)
	}
	return fmt.Sprintf("%s: %s", ErrChain, e.Reason)
}

func (e *ChainError) Unwrap() error { return ErrChain }

// LintError describes a problem with one step's parameters.
type LintError struct {
	Index   int // zero-based position in the step sequence
	Kind    string
	Message string
}

func (e LintError) Error() string {
	return fmt.Sprintf("step %d (%s): %s", e.Index+1, e.Kind, e.Message)
}
