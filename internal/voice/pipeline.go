// Package voice chains transcription, a conversational turn, and optional
// speech synthesis.
package voice

import (
	"context"
	"errors"
	"time"

	"github.com/nomadai/concierge/internal/agent"
	apperrors "github.com/nomadai/concierge/internal/errors"
	"github.com/nomadai/concierge/internal/llmtypes"
	"github.com/nomadai/concierge/internal/logging"
	"github.com/nomadai/concierge/internal/metrics"
	"github.com/nomadai/concierge/internal/resilience"
	"github.com/nomadai/concierge/internal/speech"
)

// Turner admits and answers one text turn
type Turner interface {
	Admit(sessionID, channel string) error
	HandleTurn(ctx context.Context, req agent.TurnRequest) (*agent.TurnResult, error)
}

// Request is one spoken turn
type Request struct {
	SessionID     string
	Audio         []byte
	Language      string
	ClientContext []llmtypes.Message
	Speak         bool
	Voice         string
}

// Result carries the transcription, the turn, and the spoken reply. When
// synthesis fails the text reply still stands and SpeechError names the
// failure kind.
type Result struct {
	Transcription string
	Turn          *agent.TurnResult
	Audio         []byte
	AudioFormat   string
	SpeechError   string
}

// Pipeline is safe for concurrent use
type Pipeline struct {
	turner  Turner
	stt     speech.Transcriber
	tts     speech.Synthesizer
	metrics *metrics.Recorder
	logger  *logging.Logger
	now     func() time.Time
}

// NewPipeline creates a pipeline. tts may be nil, in which case replies
// are never spoken.
func NewPipeline(turner Turner, stt speech.Transcriber, tts speech.Synthesizer, rec *metrics.Recorder, logger *logging.Logger) *Pipeline {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	if rec == nil {
		rec = metrics.NewRecorder(logger, nil)
	}
	return &Pipeline{
		turner:  turner,
		stt:     stt,
		tts:     tts,
		metrics: rec,
		logger:  logger.Named("voice"),
		now:     time.Now,
	}
}

// CanSpeak reports whether a synthesizer is configured
func (p *Pipeline) CanSpeak() bool {
	return p.tts != nil
}

// Transcribe admits the request and converts audio to text
func (p *Pipeline) Transcribe(ctx context.Context, sessionID string, audio []byte, language string) (string, error) {
	if err := p.turner.Admit(sessionID, "transcribe"); err != nil {
		return "", err
	}
	return p.transcribe(ctx, sessionID, audio, language)
}

func (p *Pipeline) transcribe(ctx context.Context, sessionID string, audio []byte, language string) (string, error) {
	if p.stt == nil {
		return "", apperrors.NewDependencyError(resilience.DependencySTT, 0, errors.New("speech-to-text is not configured"))
	}

	start := p.now()
	text, err := p.stt.Transcribe(ctx, audio, language)
	event := metrics.Event{
		Name:      "audio_transcribed",
		SessionID: sessionID,
		Latency:   p.now().Sub(start),
		Outcome:   metrics.OutcomeOK,
		Fields:    map[string]interface{}{"audio_bytes": len(audio)},
	}
	if err != nil {
		kind := apperrors.KindOf(err).String()
		event.Outcome = metrics.OutcomeError
		event.Fields["error_kind"] = kind
		p.metrics.RecordError(kind)
	}
	p.metrics.Emit(event)
	return text, err
}

// Handle runs a complete voice turn. Admission happens before
// transcription so a rejected caller costs no speech-to-text call.
func (p *Pipeline) Handle(ctx context.Context, req Request) (*Result, error) {
	if err := p.turner.Admit(req.SessionID, "voice"); err != nil {
		return nil, err
	}
	text, err := p.transcribe(ctx, req.SessionID, req.Audio, req.Language)
	if err != nil {
		return nil, err
	}
	if text == "" {
		err := apperrors.NewInvalidRequestError("audio", "no speech detected")
		p.metrics.RecordError(apperrors.KindInvalidRequest.String())
		return nil, err
	}

	turn, err := p.turner.HandleTurn(ctx, agent.TurnRequest{
		SessionID:     req.SessionID,
		Message:       text,
		ClientContext: req.ClientContext,
		Language:      req.Language,
		Channel:       "voice",
		Admitted:      true,
	})
	if err != nil {
		return nil, err
	}

	result := &Result{Transcription: text, Turn: turn}
	if !req.Speak || p.tts == nil {
		return result, nil
	}

	start := p.now()
	audio, err := p.tts.Synthesize(ctx, turn.Answer, req.Voice)
	event := metrics.Event{
		Name:      "speech_synthesized",
		SessionID: turn.SessionID,
		Latency:   p.now().Sub(start),
		Outcome:   metrics.OutcomeOK,
		Fields:    map[string]interface{}{"audio_bytes": len(audio)},
	}
	if err != nil {
		kind := apperrors.KindOf(err).String()
		event.Outcome = metrics.OutcomeError
		event.Fields["error_kind"] = kind
		p.metrics.RecordError(kind)
		p.logger.Warn("Reply synthesis failed, returning text only",
			logging.String("session_id", turn.SessionID),
			logging.Error(err))
		result.SpeechError = kind
	} else {
		result.Audio = audio
		result.AudioFormat = audioFormat(p.tts)
	}
	p.metrics.Emit(event)
	return result, nil
}

func audioFormat(s speech.Synthesizer) string {
	if f, ok := s.(interface{ Format() string }); ok {
		return f.Format()
	}
	return speech.DefaultTTSFormat
}
