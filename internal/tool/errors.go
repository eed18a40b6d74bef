package tool

import (
	"errors"
	"fmt"
)

var (
	ErrToolNotFound      = errors.New("tool: not found")
	ErrInvalidArguments  = errors.New("tool: invalid arguments")
	ErrInvalidDefinition = errors.New("tool: invalid definition")
	ErrDuplicateTool     = errors.New("tool: already registered")
)

// ExecutionError reports that a tool ran and failed.
type ExecutionError struct {
	Tool string
	Err  error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("tool %s: %v", e.Tool, e.Err)
}

func (e *ExecutionError) Unwrap() error { return e.Err }

// FailureReason classifies a failed tool call for the error result fed back
// to the model.
type FailureReason string

const (
	FailureUnknownTool      FailureReason = "unknown_tool"
	FailureInvalidArguments FailureReason = "invalid_arguments"
	FailureExecutorError    FailureReason = "executor_error"
)

// Reason maps an Execute error onto a FailureReason.
func Reason(err error) FailureReason {
	switch {
	case errors.Is(err, ErrToolNotFound):
		return FailureUnknownTool
	case errors.Is(err, ErrInvalidArguments):
		return FailureInvalidArguments
	default:
		return FailureExecutorError
	}
}
