package executor

import (
	"errors"
	"fmt"
)

// ErrExecution is the sentinel every ExecutionError unwraps to.
var ErrExecution = errors.New("execution failed")

// Outcome is the executor's answer to one submission.
type Outcome struct {
	OK      bool           `json:"ok"`
	Outputs map[string]any `json:"outputs"`
	Logs    string         `json:"logs"`
	Errors  string         `json:"errors"`
	Error   *ErrorPayload  `json:"error"`
}

// ErrorPayload describes a failed run.
type ErrorPayload struct {
	Message   string `json:"message"`
	Logs      string `json:"logs,omitempty"`
	Stderr    string `json:"stderr,omitempty"`
	Traceback string `json:"traceback,omitempty"`
}

// Failed builds the Outcome recorded for a submission that never produced a
// response.
func Failed(err error) Outcome {
	return Outcome{Error: &ErrorPayload{Message: err.Error()}}
}

// ExecutionError reports that a submission failed, either in transport or
// because the executor said so.
type ExecutionError struct {
	Message string
	Payload *ErrorPayload
	Cause   error
}

func (e *ExecutionError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", ErrExecution, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", ErrExecution, e.Message)
}

// Unwrap exposes both the sentinel and the underlying cause.
func (e *ExecutionError) Unwrap() []error {
	if e.Cause != nil {
		return []error{ErrExecution, e.Cause}
	}
	return []error{ErrExecution}
}

// Err returns the outcome's failure as an *ExecutionError, or nil when the
// run succeeded.
func (o Outcome) Err() error {
	if o.OK {
		return nil
	}
	if o.Error == nil {
		return &ExecutionError{Message: "executor reported failure without details"}
	}
	return &ExecutionError{Message: o.Error.Message, Payload: o.Error}
}
