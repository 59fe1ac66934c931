// Package llmtypes holds the conversation types shared by the reasoning
// model clients, the session store, and the agent loop.
package llmtypes

// Message roles
const (
	RoleSystem     = "system"
	RoleUser       = "user"
	RoleAssistant  = "assistant"
	RoleToolResult = "tool_result"
)

// Message represents one conversation turn. Messages are treated as
// immutable once appended to a history.
type Message struct {
	Role       string     `json:"role"`
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`   // Set only when Role is assistant
	ToolCallID string     `json:"tool_call_id,omitempty"` // Set only when Role is tool_result
}

// ToolCall represents a tool invocation requested by the reasoning model
type ToolCall struct {
	ID        string                 `json:"id"`
	Name      string                 `json:"name"`
	Arguments map[string]interface{} `json:"arguments,omitempty"`
}

// CompletionRequest is a request for a reasoning model completion
type CompletionRequest struct {
	SystemPrompt string
	Messages     []Message
	Tools        []ToolDefinition
	MaxTokens    int
	Temperature  float64
}

// CompletionResponse is the assistant message returned by the model
type CompletionResponse struct {
	Content   string
	ToolCalls []ToolCall
	Usage     TokenUsage
}

// HasToolCalls reports whether the model asked for tools rather than answering.
func (r CompletionResponse) HasToolCalls() bool {
	return len(r.ToolCalls) > 0
}

// AsMessage converts the response to an assistant history entry.
func (r CompletionResponse) AsMessage() Message {
	return Message{
		Role:      RoleAssistant,
		Content:   r.Content,
		ToolCalls: r.ToolCalls,
	}
}

// TokenUsage tracks token usage
type TokenUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
	TotalTokens  int `json:"total_tokens"`
}

// ToolDefinition is the advertised form of a tool
type ToolDefinition struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	Parameters  map[string]interface{} `json:"parameters"`
}
