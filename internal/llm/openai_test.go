package llm

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/nomadai/concierge/internal/config"
	apperrors "github.com/nomadai/concierge/internal/errors"
	"github.com/nomadai/concierge/internal/llmtypes"
	"github.com/nomadai/concierge/internal/resilience"
	testHelpers "github.com/nomadai/concierge/internal/testing"
)

func testRetryClient() *resilience.RetryClient {
	return resilience.NewRetryClient(resilience.Policy{
		Name:        resilience.DependencyLLM,
		MaxAttempts: 2,
		Timeout:     5 * time.Second,
		BaseDelay:   time.Millisecond,
		Multiplier:  1,
		MaxDelay:    time.Millisecond,
	})
}

func TestOpenAIClient_TextResponse(t *testing.T) {
	server := testHelpers.NewMockServer(t,
		testHelpers.JSONHandler(testHelpers.OpenAITextBody("<think>internal</think>The pool opens at 6 AM.")),
		testHelpers.WithAuthValidation("Authorization", "Bearer test-key"))

	client := NewOpenAIClient(config.LLMConfig{APIKey: "test-key", BaseURL: server.URL, Model: "glm-4.7"}, testRetryClient())
	resp, err := client.GenerateCompletion(context.Background(), testHelpers.TextRequest("pool hours?"))
	if err != nil {
		t.Fatalf("GenerateCompletion() error = %v", err)
	}
	if resp.Content != "The pool opens at 6 AM." {
		t.Errorf("Content = %q", resp.Content)
	}
	if resp.Usage.TotalTokens != 15 {
		t.Errorf("TotalTokens = %d", resp.Usage.TotalTokens)
	}
}

func TestOpenAIClient_ToolCallResponse(t *testing.T) {
	server := testHelpers.NewMockServer(t,
		testHelpers.JSONHandler(testHelpers.OpenAIToolCallBody("call_9", "amenities_info", `{"amenity":"pool"}`)))

	client := NewOpenAIClient(config.LLMConfig{BaseURL: server.URL}, testRetryClient())
	resp, err := client.GenerateCompletion(context.Background(), testHelpers.TextRequest("pool?"))
	if err != nil {
		t.Fatalf("GenerateCompletion() error = %v", err)
	}
	if len(resp.ToolCalls) != 1 {
		t.Fatalf("ToolCalls = %d, want 1", len(resp.ToolCalls))
	}
	tc := resp.ToolCalls[0]
	if tc.ID != "call_9" || tc.Name != "amenities_info" || tc.Arguments["amenity"] != "pool" {
		t.Errorf("tool call = %+v", tc)
	}
}

func TestOpenAIClient_ReasoningContentFallback(t *testing.T) {
	body := `{"choices":[{"message":{"role":"assistant","content":"","reasoning_content":"Checkout is at 11 AM."}}]}`
	server := testHelpers.NewMockServer(t, testHelpers.JSONHandler(body))

	client := NewOpenAIClient(config.LLMConfig{BaseURL: server.URL}, testRetryClient())
	resp, err := client.GenerateCompletion(context.Background(), testHelpers.TextRequest("checkout?"))
	if err != nil {
		t.Fatalf("GenerateCompletion() error = %v", err)
	}
	if resp.Content != "Checkout is at 11 AM." {
		t.Errorf("Content = %q", resp.Content)
	}
}

func TestOpenAIClient_RequestCarriesToolTranscript(t *testing.T) {
	var captured openaiRequest
	server := testHelpers.NewMockServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &captured); err != nil {
			t.Errorf("bad request body: %v", err)
		}
		testHelpers.JSONHandler(testHelpers.OpenAITextBody("ok"))(w, r)
	}))

	client := NewOpenAIClient(config.LLMConfig{BaseURL: server.URL, Model: "m"}, testRetryClient())
	_, err := client.GenerateCompletion(context.Background(), CompletionRequest{
		SystemPrompt: "be brief",
		Messages: []Message{
			{Role: llmtypes.RoleUser, Content: "towels please"},
			{Role: llmtypes.RoleAssistant, ToolCalls: []ToolCall{{ID: "c1", Name: "housekeeping", Arguments: map[string]interface{}{"request_type": "towels"}}}},
			{Role: llmtypes.RoleToolResult, ToolCallID: "c1", Content: "Ticket HK-1"},
		},
		Tools: []ToolDefinition{{Name: "housekeeping", Description: "d", Parameters: map[string]interface{}{"type": "object"}}},
	})
	if err != nil {
		t.Fatalf("GenerateCompletion() error = %v", err)
	}

	if len(captured.Messages) != 4 {
		t.Fatalf("messages = %d, want 4", len(captured.Messages))
	}
	if captured.Messages[0].Role != "system" {
		t.Errorf("first role = %q", captured.Messages[0].Role)
	}
	if got := captured.Messages[2].ToolCalls; len(got) != 1 || got[0].ID != "c1" || got[0].Function.Arguments != `{"request_type":"towels"}` {
		t.Errorf("assistant tool calls = %+v", got)
	}
	if tool := captured.Messages[3]; tool.Role != "tool" || tool.ToolCallID != "c1" {
		t.Errorf("tool message = %+v", tool)
	}
	if len(captured.Tools) != 1 || captured.Tools[0].Type != "function" {
		t.Errorf("tools = %+v", captured.Tools)
	}
}

func TestOpenAIClient_AuthFailureIsTerminal(t *testing.T) {
	handler := testHelpers.NewRetryHandler(5, http.StatusUnauthorized, `{"error":{"message":"invalid key"}}`, testHelpers.JSONHandler("{}"))
	server := testHelpers.NewMockServer(t, handler)

	client := NewOpenAIClient(config.LLMConfig{BaseURL: server.URL}, testRetryClient())
	_, err := client.GenerateCompletion(context.Background(), testHelpers.TextRequest("hi"))
	if err == nil {
		t.Fatal("expected error")
	}
	if handler.CallCount() != 1 {
		t.Errorf("calls = %d, want 1", handler.CallCount())
	}
}

func TestOpenAIClient_ServerErrorExhausts(t *testing.T) {
	server := testHelpers.NewMockServer(t, testHelpers.InternalErrorHandler("oops"))

	client := NewOpenAIClient(config.LLMConfig{BaseURL: server.URL}, testRetryClient())
	_, err := client.GenerateCompletion(context.Background(), testHelpers.TextRequest("hi"))
	if apperrors.KindOf(err) != apperrors.KindDependencyUnavailable {
		t.Errorf("kind = %q, want dependency_unavailable", apperrors.KindOf(err))
	}
}

func TestOpenAIClient_EmptyChoices(t *testing.T) {
	server := testHelpers.NewMockServer(t, testHelpers.JSONHandler(`{"choices":[]}`))

	client := NewOpenAIClient(config.LLMConfig{BaseURL: server.URL}, testRetryClient())
	_, err := client.GenerateCompletion(context.Background(), testHelpers.TextRequest("hi"))
	if err == nil {
		t.Fatal("expected error for empty choices")
	}
}

func TestStripThinking(t *testing.T) {
	tests := map[string]string{
		"plain answer":                      "plain answer",
		"<think>a\nb</think>  answer":       "answer",
		"before <think>x</think>after":      "before after",
		"answer <think>never closed":        "answer",
		"<think>1</think>a<think>2</think>": "a",
	}
	for in, want := range tests {
		if got := StripThinking(in); got != want {
			t.Errorf("StripThinking(%q) = %q, want %q", in, got, want)
		}
	}
}
