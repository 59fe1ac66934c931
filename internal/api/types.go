package api

import (
	"github.com/nomadai/concierge/internal/llmtypes"
)

// ContextMessage is one entry of the client-held conversation context
type ContextMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest is the body of POST /api/chat
type ChatRequest struct {
	SessionID     string           `json:"session_id"`
	Message       string           `json:"message"`
	ClientContext []ContextMessage `json:"client_context,omitempty"`
	Language      string           `json:"language,omitempty"`
}

// ChatResponse is returned by POST /api/chat
type ChatResponse struct {
	Success    bool             `json:"success"`
	SessionID  string           `json:"session_id"`
	Response   string           `json:"response"`
	CacheHit   bool             `json:"cache_hit"`
	Iterations int              `json:"iterations"`
	Context    []ContextMessage `json:"context"`
}

// TranscribeRequest is the body of POST /api/transcribe
type TranscribeRequest struct {
	SessionID   string `json:"session_id,omitempty"`
	AudioBase64 string `json:"audio_base64"`
	Language    string `json:"language,omitempty"`
}

// TranscribeResponse is returned by POST /api/transcribe
type TranscribeResponse struct {
	Success bool   `json:"success"`
	Text    string `json:"text"`
}

// VoiceChatRequest is the body of POST /api/voice-chat
type VoiceChatRequest struct {
	SessionID     string           `json:"session_id"`
	AudioBase64   string           `json:"audio_base64"`
	Language      string           `json:"language,omitempty"`
	ClientContext []ContextMessage `json:"client_context,omitempty"`
	Speak         bool             `json:"speak,omitempty"`
	Voice         string           `json:"voice,omitempty"`
}

// VoiceChatResponse is returned by POST /api/voice-chat
type VoiceChatResponse struct {
	Success       bool             `json:"success"`
	SessionID     string           `json:"session_id"`
	Transcription string           `json:"transcription"`
	Response      string           `json:"response"`
	CacheHit      bool             `json:"cache_hit"`
	Context       []ContextMessage `json:"context"`
	AudioBase64   string           `json:"audio_base64,omitempty"`
	AudioFormat   string           `json:"audio_format,omitempty"`
	SpeechError   string           `json:"speech_error,omitempty"`
}

// ResetRequest is the body of POST /api/reset
type ResetRequest struct {
	SessionID string `json:"session_id"`
}

// ResetResponse is returned by POST /api/reset
type ResetResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Existed bool   `json:"existed"`
}

// ErrorResponse is the body of every failed request
type ErrorResponse struct {
	Success    bool   `json:"success"`
	Error      string `json:"error"`
	Kind       string `json:"kind"`
	RetryAfter int    `json:"retry_after,omitempty"`
}

func toMessages(in []ContextMessage) []llmtypes.Message {
	if len(in) == 0 {
		return nil
	}
	out := make([]llmtypes.Message, len(in))
	for i, m := range in {
		out[i] = llmtypes.Message{Role: m.Role, Content: m.Content}
	}
	return out
}

func fromMessages(in []llmtypes.Message) []ContextMessage {
	out := make([]ContextMessage, len(in))
	for i, m := range in {
		out[i] = ContextMessage{Role: m.Role, Content: m.Content}
	}
	return out
}
