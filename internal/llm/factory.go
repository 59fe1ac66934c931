package llm

import (
	"fmt"

	"github.com/nomadai/concierge/internal/config"
	"github.com/nomadai/concierge/internal/resilience"
)

// Factory creates LLM clients
type Factory struct {
	retryClient *resilience.RetryClient
}

// NewFactory creates a new LLM factory. The retry client carries the
// reasoning model's retry budget.
func NewFactory(retryClient *resilience.RetryClient) *Factory {
	return &Factory{
		retryClient: retryClient,
	}
}

// CreateClient creates an LLM client based on the provider configuration
func (f *Factory) CreateClient(cfg config.LLMConfig) (LLMClient, error) {
	switch cfg.Provider {
	case "openai", "":
		return NewOpenAIClient(cfg, f.retryClient), nil
	case "anthropic":
		return NewAnthropicClient(cfg, f.retryClient), nil
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s (supported: openai, anthropic)", cfg.Provider)
	}
}
