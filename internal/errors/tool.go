package errors

import (
	"fmt"
)

// ToolExecutionError is raised when a tool handler fails. It never crosses
// the agent boundary; the loop turns it into a tool_result message.
type ToolExecutionError struct {
	*ConciergeError
	ToolName string
}

// NewToolExecutionError creates a new tool execution error
func NewToolExecutionError(toolName string, cause error) *ToolExecutionError {
	return &ToolExecutionError{
		ConciergeError: &ConciergeError{
			Message: fmt.Sprintf("Tool '%s' failed", toolName),
			Kind:    KindToolFailed,
			Cause:   cause,
			Context: &ErrorContext{
				Operation: "Tool execution",
				Component: "Tool Dispatcher",
				Details: map[string]interface{}{
					"tool": toolName,
				},
				Recoverable: true,
			},
			ExitCode: ExitAgentError,
		},
		ToolName: toolName,
	}
}

// UnknownToolError is raised when the reasoning model names a tool that was never registered.
type UnknownToolError struct {
	*ConciergeError
	ToolName string
}

// NewUnknownToolError creates a new unknown tool error
func NewUnknownToolError(toolName string) *UnknownToolError {
	return &UnknownToolError{
		ConciergeError: &ConciergeError{
			Message:  fmt.Sprintf("Tool '%s' not found", toolName),
			Kind:     KindUnknownTool,
			ExitCode: ExitAgentError,
		},
		ToolName: toolName,
	}
}

// ToolArgumentsError is raised when tool arguments do not match the declared schema.
type ToolArgumentsError struct {
	*ConciergeError
	ToolName string
}

// NewToolArgumentsError creates a new schema mismatch error
func NewToolArgumentsError(toolName string, cause error) *ToolArgumentsError {
	return &ToolArgumentsError{
		ConciergeError: &ConciergeError{
			Message:  fmt.Sprintf("Invalid arguments for tool '%s'", toolName),
			Kind:     KindToolFailed,
			Cause:    cause,
			ExitCode: ExitAgentError,
		},
		ToolName: toolName,
	}
}

// DuplicateToolError is raised at startup when two tools share a name.
type DuplicateToolError struct {
	*ConciergeError
}

// NewDuplicateToolError creates a new duplicate registration error
func NewDuplicateToolError(toolName string) *DuplicateToolError {
	return &DuplicateToolError{
		ConciergeError: &ConciergeError{
			Message:  fmt.Sprintf("Tool '%s' is already registered", toolName),
			Kind:     KindConfig,
			ExitCode: ExitConfigError,
		},
	}
}
