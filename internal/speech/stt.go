package speech

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/nomadai/concierge/internal/config"
	apperrors "github.com/nomadai/concierge/internal/errors"
	"github.com/nomadai/concierge/internal/logging"
	"github.com/nomadai/concierge/internal/resilience"
)

// DefaultSTTModel is the transcription model used when none is configured
const DefaultSTTModel = "glm-asr-2512"

// STTClient calls {base_url}/audio/transcriptions
type STTClient struct {
	cfg    config.STTConfig
	client *resilience.RetryClient
	logger *logging.Logger
}

type transcriptionResponse struct {
	Text string `json:"text"`
}

// NewSTTClient creates a transcription client
func NewSTTClient(cfg config.STTConfig, client *resilience.RetryClient, logger *logging.Logger) *STTClient {
	if cfg.Model == "" {
		cfg.Model = DefaultSTTModel
	}
	if client == nil {
		client = resilience.NewRetryClient(resilience.DefaultPolicy(resilience.DependencySTT))
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &STTClient{cfg: cfg, client: client, logger: logger.Named("stt")}
}

// Transcribe uploads audio as multipart form data. The language hint falls
// back to the configured default.
func (c *STTClient) Transcribe(ctx context.Context, audio []byte, language string) (string, error) {
	if len(audio) == 0 {
		return "", apperrors.NewInvalidRequestError("audio", "audio is empty")
	}
	if language == "" {
		language = c.cfg.Language
	}

	body, contentType, err := transcriptionForm(audio, c.cfg.Model, language)
	if err != nil {
		return "", apperrors.WrapError(err, "failed to encode audio upload", apperrors.KindInternal, apperrors.ExitGeneralError)
	}

	url := endpoint(c.cfg.BaseURL, "/audio/transcriptions")
	resp, err := c.client.Do(ctx, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", contentType)
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
		return req, nil
	})
	if err != nil {
		c.logger.Warn("transcription failed", logging.Error(err))
		return "", unavailable(resilience.DependencySTT, err)
	}

	var parsed transcriptionResponse
	if err := json.Unmarshal(resp.Body, &parsed); err != nil {
		return "", apperrors.NewResponseError(resilience.DependencySTT, err.Error())
	}

	text := strings.TrimSpace(parsed.Text)
	c.logger.Debug("audio transcribed",
		logging.Int("audio_bytes", len(audio)),
		logging.Int("text_length", len(text)))
	return text, nil
}

// transcriptionForm builds the multipart body once so each retry attempt
// can replay it
func transcriptionForm(audio []byte, model, language string) ([]byte, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	part, err := w.CreateFormFile("file", "audio"+sniffExtension(audio))
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(audio); err != nil {
		return nil, "", err
	}
	if err := w.WriteField("model", model); err != nil {
		return nil, "", err
	}
	if language != "" {
		if err := w.WriteField("language", language); err != nil {
			return nil, "", err
		}
	}
	if err := w.WriteField("response_format", "json"); err != nil {
		return nil, "", err
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), w.FormDataContentType(), nil
}

// sniffExtension picks a filename extension from the container magic bytes
func sniffExtension(audio []byte) string {
	switch {
	case bytes.HasPrefix(audio, []byte("RIFF")):
		return ".wav"
	case bytes.HasPrefix(audio, []byte("ID3")), len(audio) > 1 && audio[0] == 0xFF && audio[1]&0xE0 == 0xE0:
		return ".mp3"
	case bytes.HasPrefix(audio, []byte("OggS")):
		return ".ogg"
	case bytes.HasPrefix(audio, []byte{0x1A, 0x45, 0xDF, 0xA3}):
		return ".webm"
	}
	return ".wav"
}
