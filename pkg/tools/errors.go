package tools

import "fmt"

// ToolExecutionError is returned by ToolRegistry.ExecuteTool when no tool by
// that name can be found in either the process-local map or the active
// catalog. It is distinct from a dispatch failure inside a tool that was
// found, which surfaces as a ToolResult with Success=false and a nil error.
type ToolExecutionError struct {
	ToolName string
	Message  string
	Err      error
}

func (e *ToolExecutionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("tool %q: %s: %v", e.ToolName, e.Message, e.Err)
	}
	return fmt.Sprintf("tool %q: %s", e.ToolName, e.Message)
}

func (e *ToolExecutionError) Unwrap() error {
	return e.Err
}
