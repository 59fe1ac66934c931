// Package api serves the concierge over HTTP JSON endpoints.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/nomadai/concierge/internal/agent"
	"github.com/nomadai/concierge/internal/config"
	"github.com/nomadai/concierge/internal/llmtypes"
	"github.com/nomadai/concierge/internal/logging"
	"github.com/nomadai/concierge/internal/metrics"
	"github.com/nomadai/concierge/internal/voice"
)

// Concierge is the conversational core the API fronts
type Concierge interface {
	HandleTurn(ctx context.Context, req agent.TurnRequest) (*agent.TurnResult, error)
	Reset(sessionID string) bool
	Catalog() []llmtypes.ToolDefinition
	Stats() metrics.Snapshot
}

// VoicePipeline handles spoken turns
type VoicePipeline interface {
	Transcribe(ctx context.Context, sessionID string, audio []byte, language string) (string, error)
	Handle(ctx context.Context, req voice.Request) (*voice.Result, error)
}

// Options configures a Server. Voice may be nil, which disables the
// audio endpoints.
type Options struct {
	Config config.ServerConfig
	Name   string
	Agent  Concierge
	Voice  VoicePipeline
	Logger *logging.Logger
}

// Server is the HTTP API server
type Server struct {
	cfg    config.ServerConfig
	name   string
	agent  Concierge
	voice  VoicePipeline
	logger *logging.Logger
	server *http.Server
}

// NewServer creates a new API server
func NewServer(opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = logging.NewNopLogger()
	}
	if opts.Name == "" {
		opts.Name = "Concierge"
	}
	s := &Server{
		cfg:    opts.Config,
		name:   opts.Name,
		agent:  opts.Agent,
		voice:  opts.Voice,
		logger: opts.Logger.Named("api"),
	}
	s.server = &http.Server{
		Addr:         s.cfg.Addr,
		Handler:      s.Handler(),
		ReadTimeout:  s.cfg.GetReadTimeout(),
		WriteTimeout: s.cfg.GetWriteTimeout(),
	}
	return s
}

// Handler returns the routed handler wrapped in logging and recovery
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /{$}", s.handleRoot)
	mux.HandleFunc("POST /api/chat", s.handleChat)
	mux.HandleFunc("POST /api/transcribe", s.handleTranscribe)
	mux.HandleFunc("POST /api/voice-chat", s.handleVoiceChat)
	mux.HandleFunc("POST /api/reset", s.handleReset)
	mux.HandleFunc("GET /api/tools", s.handleTools)
	mux.HandleFunc("GET /api/metrics", s.handleMetrics)

	return s.withRecovery(s.withLogging(mux))
}

// Start begins serving HTTP requests and blocks until the server stops
func (s *Server) Start() error {
	s.logger.Info("starting API server", logging.String("address", s.cfg.Addr))
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown gracefully stops the server
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// statusRecorder captures the response code for the access log
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.Info("request",
			logging.String("method", r.Method),
			logging.String("path", r.URL.Path),
			logging.Int("status", rec.status),
			logging.Duration("duration", time.Since(start)))
	})
}

func (s *Server) withRecovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if p := recover(); p != nil {
				s.logger.Error("handler panicked",
					logging.String("path", r.URL.Path),
					logging.Any("panic", p),
					logging.String("stack", string(debug.Stack())))
				s.writeError(w, nil)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// writeJSON encodes v as JSON to w, logging any errors at debug level
func (s *Server) writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Debug("failed to write JSON response", logging.Error(err))
	}
}
