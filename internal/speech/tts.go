package speech

import (
	"context"
	"encoding/json"

	"github.com/nomadai/concierge/internal/config"
	apperrors "github.com/nomadai/concierge/internal/errors"
	"github.com/nomadai/concierge/internal/logging"
	"github.com/nomadai/concierge/internal/resilience"
)

// Synthesis defaults
const (
	DefaultTTSModel  = "tts-1"
	DefaultTTSVoice  = "alloy"
	DefaultTTSFormat = "mp3"
)

// TTSClient calls {base_url}/audio/speech
type TTSClient struct {
	cfg    config.TTSConfig
	client *resilience.RetryClient
	plain  *PlainText
	logger *logging.Logger
}

type speechRequest struct {
	Model          string `json:"model"`
	Input          string `json:"input"`
	Voice          string `json:"voice"`
	ResponseFormat string `json:"response_format,omitempty"`
}

// NewTTSClient creates a synthesis client
func NewTTSClient(cfg config.TTSConfig, client *resilience.RetryClient, logger *logging.Logger) *TTSClient {
	if cfg.Model == "" {
		cfg.Model = DefaultTTSModel
	}
	if cfg.Voice == "" {
		cfg.Voice = DefaultTTSVoice
	}
	if cfg.Format == "" {
		cfg.Format = DefaultTTSFormat
	}
	if client == nil {
		client = resilience.NewRetryClient(resilience.DefaultPolicy(resilience.DependencyTTS))
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &TTSClient{cfg: cfg, client: client, plain: NewPlainText(), logger: logger.Named("tts")}
}

// Format is the audio container the service returns
func (c *TTSClient) Format() string {
	return c.cfg.Format
}

// Synthesize speaks text, stripped of markdown first. An empty voice uses
// the configured default.
func (c *TTSClient) Synthesize(ctx context.Context, text, voice string) ([]byte, error) {
	spoken := c.plain.Render(text)
	if spoken == "" {
		return nil, apperrors.NewInvalidRequestError("text", "nothing to speak")
	}
	if voice == "" {
		voice = c.cfg.Voice
	}

	payload, err := json.Marshal(speechRequest{
		Model:          c.cfg.Model,
		Input:          spoken,
		Voice:          voice,
		ResponseFormat: c.cfg.Format,
	})
	if err != nil {
		return nil, apperrors.WrapError(err, "failed to marshal speech request", apperrors.KindInternal, apperrors.ExitGeneralError)
	}

	resp, err := c.client.PostJSON(ctx, endpoint(c.cfg.BaseURL, "/audio/speech"), payload, map[string]string{
		"Authorization": "Bearer " + c.cfg.APIKey,
	})
	if err != nil {
		c.logger.Warn("synthesis failed", logging.Error(err))
		return nil, unavailable(resilience.DependencyTTS, err)
	}
	if len(resp.Body) == 0 {
		return nil, apperrors.NewResponseError(resilience.DependencyTTS, "empty audio")
	}

	c.logger.Debug("speech synthesized",
		logging.Int("text_length", len(spoken)),
		logging.Int("audio_bytes", len(resp.Body)))
	return resp.Body, nil
}
