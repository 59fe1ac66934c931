package api

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/nomadai/concierge/internal/agent"
	apperrors "github.com/nomadai/concierge/internal/errors"
	"github.com/nomadai/concierge/internal/logging"
	"github.com/nomadai/concierge/internal/resilience"
	"github.com/nomadai/concierge/internal/voice"
)

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"message": s.name + " API is running",
	})
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if err := s.decode(w, r, &req); err != nil {
		s.writeError(w, err)
		return
	}

	sessionID := orNewSessionID(req.SessionID)
	res, err := s.agent.HandleTurn(r.Context(), agent.TurnRequest{
		SessionID:     sessionID,
		Message:       req.Message,
		ClientContext: toMessages(req.ClientContext),
		Language:      req.Language,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, ChatResponse{
		Success:    true,
		SessionID:  res.SessionID,
		Response:   res.Answer,
		CacheHit:   res.CacheHit,
		Iterations: res.Iterations,
		Context:    fromMessages(res.Context),
	})
}

func (s *Server) handleTranscribe(w http.ResponseWriter, r *http.Request) {
	if s.voice == nil {
		s.writeError(w, voiceDisabled())
		return
	}

	var req TranscribeRequest
	if err := s.decode(w, r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	audio, err := decodeAudio(req.AudioBase64)
	if err != nil {
		s.writeError(w, err)
		return
	}

	text, err := s.voice.Transcribe(r.Context(), orNewSessionID(req.SessionID), audio, req.Language)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, TranscribeResponse{Success: true, Text: text})
}

func (s *Server) handleVoiceChat(w http.ResponseWriter, r *http.Request) {
	if s.voice == nil {
		s.writeError(w, voiceDisabled())
		return
	}

	var req VoiceChatRequest
	if err := s.decode(w, r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	audio, err := decodeAudio(req.AudioBase64)
	if err != nil {
		s.writeError(w, err)
		return
	}

	res, err := s.voice.Handle(r.Context(), voice.Request{
		SessionID:     orNewSessionID(req.SessionID),
		Audio:         audio,
		Language:      req.Language,
		ClientContext: toMessages(req.ClientContext),
		Speak:         req.Speak,
		Voice:         req.Voice,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}

	resp := VoiceChatResponse{
		Success:       true,
		SessionID:     res.Turn.SessionID,
		Transcription: res.Transcription,
		Response:      res.Turn.Answer,
		CacheHit:      res.Turn.CacheHit,
		Context:       fromMessages(res.Turn.Context),
		AudioFormat:   res.AudioFormat,
		SpeechError:   res.SpeechError,
	}
	if len(res.Audio) > 0 {
		resp.AudioBase64 = base64.StdEncoding.EncodeToString(res.Audio)
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	var req ResetRequest
	if err := s.decode(w, r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	if strings.TrimSpace(req.SessionID) == "" {
		s.writeError(w, apperrors.NewInvalidRequestError("session_id", "session_id is required"))
		return
	}

	existed := s.agent.Reset(req.SessionID)
	s.logger.Info("session reset via API",
		logging.String("session_id", req.SessionID),
		logging.Any("existed", existed))
	s.writeJSON(w, http.StatusOK, ResetResponse{
		Success: true,
		Message: "Conversation reset",
		Existed: existed,
	})
}

func (s *Server) handleTools(w http.ResponseWriter, r *http.Request) {
	catalog := s.agent.Catalog()
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"tools": catalog,
		"count": len(catalog),
	})
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.agent.Stats())
}

// decode reads a JSON body bounded by the configured size limit
func (s *Server) decode(w http.ResponseWriter, r *http.Request, v interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.GetMaxBodyBytes())
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return apperrors.NewInvalidRequestError("body", "request body too large")
		}
		return apperrors.NewInvalidRequestError("body", "invalid request body")
	}
	return nil
}

// decodeAudio accepts plain base64 or a data URL
func decodeAudio(encoded string) ([]byte, error) {
	encoded = strings.TrimSpace(encoded)
	if strings.HasPrefix(encoded, "data:") {
		if i := strings.IndexByte(encoded, ','); i >= 0 {
			encoded = encoded[i+1:]
		}
	}
	if encoded == "" {
		return nil, apperrors.NewInvalidRequestError("audio_base64", "audio_base64 required")
	}
	audio, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, apperrors.NewInvalidRequestError("audio_base64", "audio_base64 is not valid base64")
	}
	return audio, nil
}

func orNewSessionID(id string) string {
	if strings.TrimSpace(id) == "" {
		return uuid.New().String()
	}
	return id
}

func voiceDisabled() error {
	return apperrors.NewDependencyError(resilience.DependencySTT, 0, errors.New("voice endpoints are not configured"))
}
