package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrDataSource reports that the grid store could not be read or held no
	// timestamps in the requested range. It aborts the run.
	ErrDataSource = errors.New("data source error")

	// ErrEmptyInput reports that a unit of work had nothing to process. The
	// unit is skipped and the run continues.
	ErrEmptyInput = errors.New("empty input")

	// ErrExternalTool reports a non-zero exit from the tile builder.
	ErrExternalTool = errors.New("external tool failure")
)

// ToolError carries the diagnostics of a failed tile builder invocation.
type ToolError struct {
	Tool     string
	Input    string
	ExitCode int
	Stderr   string
	Err      error
}

func (e *ToolError) Error() string {
	if e.ExitCode >= 0 {
		return fmt.Sprintf("%s %s: exit status %d", e.Tool, e.Input, e.ExitCode)
	}
	return fmt.Sprintf("%s %s: %v", e.Tool, e.Input, e.Err)
}

// Unwrap lets errors.Is match both ErrExternalTool and the underlying cause.
func (e *ToolError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrExternalTool}
	}
	return []error{ErrExternalTool, e.Err}
}
