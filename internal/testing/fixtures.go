package testing

import (
	"github.com/nomadai/concierge/internal/llmtypes"
)

// TextResponse is a final answer with no tool calls
func TextResponse(content string) llmtypes.CompletionResponse {
	return llmtypes.CompletionResponse{Content: content}
}

// ToolCallResponse is a model turn that requests the given tools
func ToolCallResponse(calls ...llmtypes.ToolCall) llmtypes.CompletionResponse {
	return llmtypes.CompletionResponse{ToolCalls: calls}
}

// Call builds a ToolCall
func Call(id, name string, args map[string]interface{}) llmtypes.ToolCall {
	if args == nil {
		args = map[string]interface{}{}
	}
	return llmtypes.ToolCall{ID: id, Name: name, Arguments: args}
}

// OpenAITextBody is a minimal chat completion response body
func OpenAITextBody(content string) string {
	return `{"id":"chatcmpl-1","model":"glm-4.7","choices":[{"index":0,"message":{"role":"assistant","content":` +
		quote(content) + `},"finish_reason":"stop"}],"usage":{"prompt_tokens":10,"completion_tokens":5,"total_tokens":15}}`
}

// OpenAIToolCallBody is a chat completion response requesting one tool
func OpenAIToolCallBody(id, name, argsJSON string) string {
	return `{"id":"chatcmpl-2","model":"glm-4.7","choices":[{"index":0,"message":{"role":"assistant","content":null,"tool_calls":[{"id":` +
		quote(id) + `,"type":"function","function":{"name":` + quote(name) + `,"arguments":` + quote(argsJSON) +
		`}}]},"finish_reason":"tool_calls"}],"usage":{"prompt_tokens":10,"completion_tokens":5,"total_tokens":15}}`
}

// AnthropicTextBody is a minimal Messages API response body
func AnthropicTextBody(content string) string {
	return `{"id":"msg_1","type":"message","role":"assistant","content":[{"type":"text","text":` + quote(content) +
		`}],"stop_reason":"end_turn","usage":{"input_tokens":10,"output_tokens":5}}`
}

// TextRequest is a single-user-message completion request
func TextRequest(content string) llmtypes.CompletionRequest {
	return llmtypes.CompletionRequest{
		Messages: []llmtypes.Message{{Role: llmtypes.RoleUser, Content: content}},
	}
}
