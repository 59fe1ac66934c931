package testing

import (
	"context"
	"fmt"
	"sync"

	"github.com/nomadai/concierge/internal/llmtypes"
)

// MockLLMClient implements llm.LLMClient for testing. Responses are
// replayed in order; once exhausted the last one repeats, which is how
// tests script a model that requests tools forever.
type MockLLMClient struct {
	mu             sync.Mutex
	Responses      []llmtypes.CompletionResponse
	Errors         []error // Errors[i], when non-nil, is returned for call i
	callCount      int
	requestHistory []llmtypes.CompletionRequest
	shouldError    bool
	errorToReturn  error
	// Handler, when set, computes the response from the request.
	Handler func(req llmtypes.CompletionRequest) (llmtypes.CompletionResponse, error)
}

// NewMockLLMClient creates a new mock LLM client with predefined responses
func NewMockLLMClient(responses ...llmtypes.CompletionResponse) *MockLLMClient {
	return &MockLLMClient{
		Responses: responses,
	}
}

// GenerateCompletion implements llm.LLMClient
func (m *MockLLMClient) GenerateCompletion(ctx context.Context, req llmtypes.CompletionRequest) (llmtypes.CompletionResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	req.Messages = append([]llmtypes.Message(nil), req.Messages...)
	m.requestHistory = append(m.requestHistory, req)
	call := m.callCount
	m.callCount++

	if err := ctx.Err(); err != nil {
		return llmtypes.CompletionResponse{}, err
	}
	if m.shouldError {
		return llmtypes.CompletionResponse{}, m.errorToReturn
	}
	if call < len(m.Errors) && m.Errors[call] != nil {
		return llmtypes.CompletionResponse{}, m.Errors[call]
	}
	if m.Handler != nil {
		return m.Handler(req)
	}

	if len(m.Responses) == 0 {
		return llmtypes.CompletionResponse{}, fmt.Errorf("no responses configured")
	}
	if call >= len(m.Responses) {
		return m.Responses[len(m.Responses)-1], nil
	}
	return m.Responses[call], nil
}

// SupportsTools implements llm.LLMClient
func (m *MockLLMClient) SupportsTools() bool {
	return true
}

// GetProvider implements llm.LLMClient
func (m *MockLLMClient) GetProvider() string {
	return "mock"
}

// CallCount returns how many completions were requested
func (m *MockLLMClient) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.callCount
}

// RequestHistory returns a copy of every request received
func (m *MockLLMClient) RequestHistory() []llmtypes.CompletionRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]llmtypes.CompletionRequest(nil), m.requestHistory...)
}

// LastRequest returns the most recent request
func (m *MockLLMClient) LastRequest() llmtypes.CompletionRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.requestHistory) == 0 {
		return llmtypes.CompletionRequest{}
	}
	return m.requestHistory[len(m.requestHistory)-1]
}

// Reset resets the mock state
func (m *MockLLMClient) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callCount = 0
	m.requestHistory = nil
	m.shouldError = false
	m.errorToReturn = nil
}

// SetError configures the mock to return an error on every call
func (m *MockLLMClient) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.shouldError = true
	m.errorToReturn = err
}
