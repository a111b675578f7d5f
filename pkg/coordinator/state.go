package coordinator

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ravi-parthasarathy/aigen/pkg/executor"
)

// State is the result of the last run, single or batch. It is a plain value
// owned by whoever renders it.
type State struct {
	RunID  string                 `json:"run_id"`
	OK     bool                   `json:"ok"`
	Result map[string]any         `json:"result,omitempty"`
	Batch  *Batch                 `json:"batch,omitempty"`
	Logs   string                 `json:"logs"`
	Error  *executor.ErrorPayload `json:"error,omitempty"`
}

// Batch aggregates the per-item outcomes of a batch run.
type Batch struct {
	// Count is the number of input values, even when the batch halted early.
	Count  int         `json:"batch_count"`
	Items  []BatchItem `json:"items"`
	Halted bool        `json:"halted,omitempty"`
}

// BatchItem is one value's outcome.
type BatchItem struct {
	Value   string         `json:"value"`
	OK      bool           `json:"ok"`
	Outputs map[string]any `json:"outputs"`
}

// Failed counts the items that did not succeed.
func (b *Batch) Failed() int {
	n := 0
	for _, it := range b.Items {
		if !it.OK {
			n++
		}
	}
	return n
}

// SaveState writes s to path as indented JSON.
func SaveState(path string, s State) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("state marshal: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("state dir: %w", err)
		}
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o600); err != nil {
		return fmt.Errorf("state write: %w", err)
	}
	return nil
}

// LoadState reads a State written by SaveState.
func LoadState(path string) (State, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return State{}, fmt.Errorf("state read: %w", err)
	}
	var s State
	if err := json.Unmarshal(data, &s); err != nil {
		return State{}, fmt.Errorf("state unmarshal: %w", err)
	}
	return s, nil
}
