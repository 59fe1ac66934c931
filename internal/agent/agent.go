// Package agent runs one conversational turn: admission, session state,
// the response cache, and the bounded reasoning loop over the tool catalog.
package agent

import (
	"context"
	"fmt"
	"strings"
	"time"

	apperrors "github.com/nomadai/concierge/internal/errors"
	"github.com/nomadai/concierge/internal/knowledge"
	"github.com/nomadai/concierge/internal/llm"
	"github.com/nomadai/concierge/internal/llmtypes"
	"github.com/nomadai/concierge/internal/logging"
	"github.com/nomadai/concierge/internal/metrics"
	"github.com/nomadai/concierge/internal/prompts"
	"github.com/nomadai/concierge/internal/ratelimit"
	"github.com/nomadai/concierge/internal/resilience"
	"github.com/nomadai/concierge/internal/respcache"
	"github.com/nomadai/concierge/internal/session"
	"github.com/nomadai/concierge/internal/tools"
	"github.com/nomadai/concierge/internal/worker_pool"
)

// Defaults
const (
	DefaultMaxIterations   = 5
	DefaultMaxMessageBytes = 4000
	DefaultMaxWorkers      = 4
)

// Config tunes the turn pipeline
type Config struct {
	MaxIterations   int
	MaxMessageBytes int
	ParallelTools   bool
	MaxWorkers      int
	MaxTokens       int
	Temperature     float64
	// FallbackMessage overrides the fallback_answer prompt when set
	FallbackMessage string
}

// Deps are the collaborators of an Agent. Cache and Limiter may be nil.
type Deps struct {
	LLM       llm.LLMClient
	Tools     *tools.Registry
	Sessions  *session.Store
	Cache     *respcache.Cache
	Limiter   *ratelimit.Limiter
	Prompts   *prompts.Manager
	Knowledge *knowledge.Base
	Metrics   *metrics.Recorder
	Logger    *logging.Logger
	Now       func() time.Time
}

// TurnRequest is the input of HandleTurn
type TurnRequest struct {
	SessionID     string
	Message       string
	ClientContext []llmtypes.Message
	Language      string
	// Channel labels the request counter, e.g. "chat" or "voice"
	Channel string
	// Admitted marks a request that already passed Admit
	Admitted bool
}

// TurnResult is the output of HandleTurn
type TurnResult struct {
	SessionID  string
	Answer     string
	CacheHit   bool
	Iterations int
	ToolCalls  int
	Exhausted  bool
	Restored   bool
	Latency    time.Duration
	// Context is the sanitized history a stateless client echoes back
	Context []llmtypes.Message
}

// Agent handles turns. It is safe for concurrent use; turns on the same
// session are serialized.
type Agent struct {
	cfg        Config
	llm        llm.LLMClient
	tools      *tools.Registry
	sessions   *session.Store
	cache      *respcache.Cache
	limiter    *ratelimit.Limiter
	prompts    *prompts.Manager
	kb         *knowledge.Base
	metrics    *metrics.Recorder
	logger     *logging.Logger
	now        func() time.Time
	pool       *worker_pool.WorkerPool
	catalog    []llmtypes.ToolDefinition
	basePrompt string
}

// New creates an Agent and freezes the tool catalog
func New(cfg Config, deps Deps) (*Agent, error) {
	switch {
	case deps.LLM == nil:
		return nil, apperrors.NewConfigurationError("agent requires a reasoning model client")
	case deps.Tools == nil:
		return nil, apperrors.NewConfigurationError("agent requires a tool registry")
	case deps.Sessions == nil:
		return nil, apperrors.NewConfigurationError("agent requires a session store")
	case deps.Prompts == nil:
		return nil, apperrors.NewConfigurationError("agent requires a prompt manager")
	}
	if deps.Knowledge == nil {
		deps.Knowledge = knowledge.Default()
	}
	if deps.Logger == nil {
		deps.Logger = logging.NewNopLogger()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Metrics == nil {
		deps.Metrics = metrics.NewRecorder(deps.Logger, deps.Now)
	}
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = DefaultMaxIterations
	}
	if cfg.MaxMessageBytes <= 0 {
		cfg.MaxMessageBytes = DefaultMaxMessageBytes
	}
	if cfg.MaxWorkers <= 0 {
		cfg.MaxWorkers = DefaultMaxWorkers
	}

	a := &Agent{
		cfg:      cfg,
		llm:      deps.LLM,
		tools:    deps.Tools,
		sessions: deps.Sessions,
		cache:    deps.Cache,
		limiter:  deps.Limiter,
		prompts:  deps.Prompts,
		kb:       deps.Knowledge,
		metrics:  deps.Metrics,
		logger:   deps.Logger.Named("agent"),
		now:      deps.Now,
		pool:     worker_pool.NewWorkerPool(cfg.MaxWorkers),
		catalog:  deps.Tools.Catalog(),
	}

	base, err := a.systemPrompt("")
	if err != nil {
		return nil, apperrors.WrapError(err, "failed to render system prompt", apperrors.KindConfig, apperrors.ExitConfigError)
	}
	a.basePrompt = base
	a.metrics.SetSessionGauge(deps.Sessions.Count)

	return a, nil
}

// Catalog returns the advertised tools
func (a *Agent) Catalog() []llmtypes.ToolDefinition {
	out := make([]llmtypes.ToolDefinition, len(a.catalog))
	copy(out, a.catalog)
	return out
}

// Tenant is the response cache partition this agent serves
func (a *Agent) Tenant() string {
	return a.kb.ID
}

// Reset discards a session's history. It reports whether one existed.
func (a *Agent) Reset(sessionID string) bool {
	ok := a.sessions.Reset(sessionID)
	a.metrics.Emit(metrics.Event{
		Name:      "session_reset",
		SessionID: sessionID,
		Outcome:   metrics.OutcomeOK,
		Fields:    map[string]interface{}{"existed": ok},
	})
	return ok
}

// Stats returns the current observability snapshot
func (a *Agent) Stats() metrics.Snapshot {
	return a.metrics.Snapshot()
}

// Metrics exposes the recorder for collaborators that report into it
func (a *Agent) Metrics() *metrics.Recorder {
	return a.metrics
}

// HandleTurn answers one user message. The only errors it returns are
// invalid_request, rate_limited and dependency_unavailable.
func (a *Agent) HandleTurn(ctx context.Context, req TurnRequest) (*TurnResult, error) {
	start := a.now()
	if !req.Admitted {
		a.metrics.IncRequest(channelName(req.Channel))
	}

	message := strings.TrimSpace(req.Message)
	if err := a.validate(req.SessionID, message); err != nil {
		return nil, a.reject(req.SessionID, start, err)
	}

	if a.limiter != nil && !req.Admitted {
		if err := a.limiter.Allow(req.SessionID); err != nil {
			return nil, a.reject(req.SessionID, start, err)
		}
	}

	sess := a.sessions.Acquire(req.SessionID, req.ClientContext)
	sess.Lock()
	defer sess.Unlock()

	result := &TurnResult{SessionID: sess.ID, Restored: sess.Restored()}
	history := append(sess.Messages(), llmtypes.Message{Role: llmtypes.RoleUser, Content: message})

	var lookup respcache.Lookup
	if a.cache != nil {
		lookup = a.cache.Get(a.Tenant(), req.Language, message)
		if lookup.Cacheable {
			a.metrics.RecordCache(lookup.Hit)
		}
		if lookup.Hit {
			a.logger.Debug("Serving cached answer",
				logging.String("session_id", sess.ID),
				logging.String("intent", lookup.Intent))
			history = append(history, llmtypes.Message{Role: llmtypes.RoleAssistant, Content: lookup.Answer})
			a.sessions.Commit(sess, history)
			result.Answer = lookup.Answer
			result.CacheHit = true
			return a.finish(result, history, start, metrics.OutcomeCacheHit), nil
		}
	}

	turnCtx := session.WithID(session.WithScratch(ctx, sess.Scratch()), sess.ID)
	out, err := a.run(turnCtx, sess.ID, req.Language, history)
	if err != nil {
		err = a.dependencyFailure(err)
		return nil, a.reject(sess.ID, start, err)
	}

	history = out.history
	a.sessions.Commit(sess, history)

	result.Answer = out.answer
	result.Iterations = out.iterations
	result.ToolCalls = out.toolCalls
	result.Exhausted = out.exhausted

	if out.exhausted {
		a.metrics.RecordLoopExhausted()
		a.metrics.Emit(metrics.Event{
			Name:      "loop_exhausted",
			SessionID: sess.ID,
			Latency:   a.now().Sub(start),
			Outcome:   metrics.OutcomeError,
			Fields: map[string]interface{}{
				"iterations": out.iterations,
				"tool_calls": out.toolCalls,
			},
		})
	} else if a.cache != nil && lookup.Cacheable {
		a.cache.Put(a.Tenant(), req.Language, message, out.answer)
	}

	return a.finish(result, history, start, metrics.OutcomeOK), nil
}

// Admit counts a request and charges it against the rate limits. Callers
// that do expensive work before the turn, such as transcription, admit
// first and then pass the turn with Admitted set.
func (a *Agent) Admit(sessionID, channel string) error {
	start := a.now()
	a.metrics.IncRequest(channelName(channel))
	if err := session.ValidateID(sessionID); err != nil {
		return a.reject(sessionID, start, err)
	}
	if a.limiter != nil {
		if err := a.limiter.Allow(sessionID); err != nil {
			return a.reject(sessionID, start, err)
		}
	}
	return nil
}

func channelName(channel string) string {
	if channel == "" {
		return "chat"
	}
	return channel
}

// validate checks the session id and the message
func (a *Agent) validate(sessionID, message string) error {
	if err := session.ValidateID(sessionID); err != nil {
		return err
	}
	if message == "" {
		return apperrors.NewInvalidRequestError("message", "message is required")
	}
	if len(message) > a.cfg.MaxMessageBytes {
		return apperrors.NewInvalidRequestError("message",
			fmt.Sprintf("message exceeds %d bytes", a.cfg.MaxMessageBytes))
	}
	return nil
}

// reject records a failed turn and returns err unchanged
func (a *Agent) reject(sessionID string, start time.Time, err error) error {
	kind := apperrors.KindOf(err)
	a.metrics.RecordError(kind.String())

	outcome := metrics.OutcomeError
	if kind == apperrors.KindRateLimited {
		outcome = metrics.OutcomeRejected
	}
	a.metrics.Emit(metrics.Event{
		Name:      "turn_failed",
		SessionID: sessionID,
		Latency:   a.now().Sub(start),
		Outcome:   outcome,
		Fields:    map[string]interface{}{"error_kind": kind.String()},
	})
	return err
}

// finish stamps latency and echo context and emits the completion event
func (a *Agent) finish(result *TurnResult, history []llmtypes.Message, start time.Time, outcome string) *TurnResult {
	result.Latency = a.now().Sub(start)
	result.Context = a.sessions.Sanitize(history)
	a.metrics.Emit(metrics.Event{
		Name:      "turn_completed",
		SessionID: result.SessionID,
		Latency:   result.Latency,
		Outcome:   outcome,
		Fields: map[string]interface{}{
			"cache_hit":  result.CacheHit,
			"iterations": result.Iterations,
			"tool_calls": result.ToolCalls,
			"exhausted":  result.Exhausted,
			"restored":   result.Restored,
		},
	})
	return result
}

// dependencyFailure maps a reasoning model error onto the public taxonomy
func (a *Agent) dependencyFailure(err error) error {
	if apperrors.KindOf(err).Public() {
		return err
	}
	return apperrors.NewDependencyError(resilience.DependencyLLM, 1, err)
}

// systemPrompt renders the persona prompt for a reply language
func (a *Agent) systemPrompt(language string) (string, error) {
	return a.prompts.SystemPrompt(prompts.SystemVars{
		AssistantName: a.kb.AssistantName,
		HotelName:     a.kb.Hotel.Name,
		Knowledge:     a.kb.Summary(),
		Language:      language,
	})
}

// fallback is the answer used when the loop yields no text
func (a *Agent) fallback() string {
	if a.cfg.FallbackMessage != "" {
		return a.cfg.FallbackMessage
	}
	return a.prompts.Fallback()
}
