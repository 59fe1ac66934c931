package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/nomadai/concierge/internal/llmtypes"
	"github.com/nomadai/concierge/internal/resilience"
)

// Type aliases so callers only need to import llm
type Message = llmtypes.Message
type ToolCall = llmtypes.ToolCall
type CompletionRequest = llmtypes.CompletionRequest
type CompletionResponse = llmtypes.CompletionResponse
type TokenUsage = llmtypes.TokenUsage
type ToolDefinition = llmtypes.ToolDefinition

// LLMClient is the interface for reasoning model providers
type LLMClient interface {
	// GenerateCompletion sends the history and tool catalog and returns
	// the assistant message (text and/or tool calls)
	GenerateCompletion(ctx context.Context, req CompletionRequest) (CompletionResponse, error)

	// SupportsTools returns true if the client supports tool calling
	SupportsTools() bool

	// GetProvider returns the provider name
	GetProvider() string
}

// BaseLLMClient provides common functionality for all LLM clients
type BaseLLMClient struct {
	retryClient *resilience.RetryClient
}

// NewBaseLLMClient creates a new base LLM client
func NewBaseLLMClient(retryClient *resilience.RetryClient) *BaseLLMClient {
	if retryClient == nil {
		retryClient = resilience.NewRetryClient(resilience.DefaultPolicy(resilience.DependencyLLM))
	}
	return &BaseLLMClient{
		retryClient: retryClient,
	}
}

// postJSON marshals payload, sends it through the retry envelope, and
// decodes a successful body into out.
func (b *BaseLLMClient) postJSON(ctx context.Context, url string, headers map[string]string, payload, out interface{}) error {
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	resp, err := b.retryClient.PostJSON(ctx, url, jsonData, headers)
	if err != nil {
		return err
	}

	if err := json.Unmarshal(resp.Body, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

var thinkBlock = regexp.MustCompile(`(?s)<think>.*?</think>`)

// StripThinking removes <think>...</think> blocks some reasoning models
// prepend to their answer, plus an unterminated trailing block.
func StripThinking(text string) string {
	text = thinkBlock.ReplaceAllString(text, "")
	if i := strings.Index(text, "<think>"); i >= 0 {
		text = text[:i]
	}
	return strings.TrimSpace(text)
}
