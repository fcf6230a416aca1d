package orchestrator

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyDefinitions is returned when a graph is built from no definitions
	ErrEmptyDefinitions = errors.New("session graph requires at least one agent definition")
	// ErrDuplicateRole is returned when two definitions share a role
	ErrDuplicateRole = errors.New("duplicate agent role")
	// ErrUnresolvedDelegate is returned by strict construction for unknown delegates
	ErrUnresolvedDelegate = errors.New("unresolved delegate")
	// ErrNilInvocation signals a tool or executor that produced no invocation
	ErrNilInvocation = errors.New("invocation contract violated: no tool invocation produced")
	// ErrThreadNotFound is returned by thread stores for unknown ids
	ErrThreadNotFound = errors.New("thread not found")
	// ErrNoExecutor is returned when a run has no component executor
	ErrNoExecutor = errors.New("component executor is required")
)

// WorkflowError signals an expected tool failure. It is a comparable value so
// identical failures are recorded once per thread.
type WorkflowError struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable"`
	Attempt   int    `json:"attempt"`
}

func (e WorkflowError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Payload renders the error as metadata
func (e WorkflowError) Payload() map[string]any {
	return map[string]any{
		"code":      e.Code,
		"message":   e.Message,
		"retryable": e.Retryable,
		"attempt":   e.Attempt,
	}
}

// AsWorkflowError extracts a WorkflowError from err, if one is wrapped
func AsWorkflowError(err error) (WorkflowError, bool) {
	var werr WorkflowError
	if errors.As(err, &werr) {
		return werr, true
	}
	var pwerr *WorkflowError
	if errors.As(err, &pwerr) && pwerr != nil {
		return *pwerr, true
	}
	return WorkflowError{}, false
}

// WorkflowAbort terminates the whole run after bookkeeping
type WorkflowAbort struct {
	Component string
	Err       WorkflowError
}

func (e *WorkflowAbort) Error() string {
	return fmt.Sprintf("workflow aborted in %s: %s", e.Component, e.Err.Error())
}

func (e *WorkflowAbort) Unwrap() error {
	return e.Err
}

// WorkflowException fails a single turn while the run continues
type WorkflowException struct {
	Component string
	Err       WorkflowError
}

func (e *WorkflowException) Error() string {
	return fmt.Sprintf("workflow exception in %s: %s", e.Component, e.Err.Error())
}

func (e *WorkflowException) Unwrap() error {
	return e.Err
}
