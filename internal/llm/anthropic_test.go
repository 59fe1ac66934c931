package llm

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"testing"

	"github.com/nomadai/concierge/internal/config"
	"github.com/nomadai/concierge/internal/llmtypes"
	testHelpers "github.com/nomadai/concierge/internal/testing"
)

func TestAnthropicClient_TextResponse(t *testing.T) {
	server := testHelpers.NewMockServer(t,
		testHelpers.JSONHandler(testHelpers.AnthropicTextBody("Hello from the front desk.")),
		testHelpers.WithAuthValidation("x-api-key", "test-key"))

	client := NewAnthropicClient(config.LLMConfig{APIKey: "test-key", BaseURL: server.URL, Model: "claude"}, testRetryClient())
	resp, err := client.GenerateCompletion(context.Background(), testHelpers.TextRequest("hi"))
	if err != nil {
		t.Fatalf("GenerateCompletion() error = %v", err)
	}
	if resp.Content != "Hello from the front desk." {
		t.Errorf("Content = %q", resp.Content)
	}
	if resp.Usage.TotalTokens != 15 {
		t.Errorf("TotalTokens = %d", resp.Usage.TotalTokens)
	}
}

func TestAnthropicClient_ToolUse(t *testing.T) {
	body := `{"content":[{"type":"text","text":"Let me check."},{"type":"tool_use","id":"toolu_1","name":"wifi_help","input":{"issue":"password"}}],"stop_reason":"tool_use"}`
	server := testHelpers.NewMockServer(t, testHelpers.JSONHandler(body))

	client := NewAnthropicClient(config.LLMConfig{BaseURL: server.URL}, testRetryClient())
	resp, err := client.GenerateCompletion(context.Background(), testHelpers.TextRequest("wifi"))
	if err != nil {
		t.Fatalf("GenerateCompletion() error = %v", err)
	}
	if len(resp.ToolCalls) != 1 || resp.ToolCalls[0].ID != "toolu_1" || resp.ToolCalls[0].Arguments["issue"] != "password" {
		t.Errorf("ToolCalls = %+v", resp.ToolCalls)
	}
}

func TestAnthropicClient_GroupsToolResults(t *testing.T) {
	var captured anthropicRequest
	server := testHelpers.NewMockServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &captured)
		testHelpers.JSONHandler(testHelpers.AnthropicTextBody("ok"))(w, r)
	}))

	client := NewAnthropicClient(config.LLMConfig{BaseURL: server.URL}, testRetryClient())
	_, err := client.GenerateCompletion(context.Background(), CompletionRequest{
		SystemPrompt: "sys",
		Messages: []Message{
			{Role: llmtypes.RoleUser, Content: "plan my evening"},
			{Role: llmtypes.RoleAssistant, ToolCalls: []ToolCall{
				{ID: "a", Name: "local_recommendations"},
				{ID: "b", Name: "directions"},
			}},
			{Role: llmtypes.RoleToolResult, ToolCallID: "a", Content: "ramen"},
			{Role: llmtypes.RoleToolResult, ToolCallID: "b", Content: "5 min"},
		},
	})
	if err != nil {
		t.Fatalf("GenerateCompletion() error = %v", err)
	}

	if captured.System != "sys" {
		t.Errorf("System = %q", captured.System)
	}
	if len(captured.Messages) != 3 {
		t.Fatalf("messages = %d, want 3", len(captured.Messages))
	}
	results := captured.Messages[2]
	if results.Role != "user" || len(results.Content) != 2 {
		t.Fatalf("tool results = %+v", results)
	}
	if results.Content[0].ToolUseID != "a" || results.Content[1].ToolUseID != "b" {
		t.Errorf("tool result order = %+v", results.Content)
	}
}

func TestFactory_CreateClient(t *testing.T) {
	f := NewFactory(testRetryClient())

	tests := []struct {
		provider string
		want     string
		wantErr  bool
	}{
		{"openai", "openai", false},
		{"", "openai", false},
		{"anthropic", "anthropic", false},
		{"gemini", "", true},
	}
	for _, tt := range tests {
		client, err := f.CreateClient(config.LLMConfig{Provider: tt.provider})
		if (err != nil) != tt.wantErr {
			t.Errorf("provider %q: err = %v", tt.provider, err)
			continue
		}
		if err == nil && client.GetProvider() != tt.want {
			t.Errorf("provider %q: got %q", tt.provider, client.GetProvider())
		}
	}
}
