// Package tools provides the tool registry and execution framework.
//
// This file defines sentinel error types for tool execution.
package tools

import "fmt"

// UnknownToolError is returned when a tool call targets a tool that is
// not present in the registry. This indicates a capability mismatch,
// not a transient execution failure.
type UnknownToolError struct {
	Name string
}

// Error implements the error interface.
func (e *UnknownToolError) Error() string {
	return fmt.Sprintf("unknown tool: %s", e.Name)
}
