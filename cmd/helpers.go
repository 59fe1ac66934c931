package cmd

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/nomadai/concierge/internal/agent"
	"github.com/nomadai/concierge/internal/config"
	"github.com/nomadai/concierge/internal/errors"
	"github.com/nomadai/concierge/internal/knowledge"
	"github.com/nomadai/concierge/internal/llm"
	"github.com/nomadai/concierge/internal/logging"
	"github.com/nomadai/concierge/internal/metrics"
	"github.com/nomadai/concierge/internal/prompts"
	"github.com/nomadai/concierge/internal/ratelimit"
	"github.com/nomadai/concierge/internal/resilience"
	"github.com/nomadai/concierge/internal/respcache"
	"github.com/nomadai/concierge/internal/session"
	"github.com/nomadai/concierge/internal/speech"
	"github.com/nomadai/concierge/internal/tools"
	"github.com/nomadai/concierge/internal/voice"
)

// InitLogger creates a configured logger for CLI commands.
//
// console enables stderr output; interactive commands pass false so log
// lines do not tear through the terminal UI and rely on the file sink.
// debug adds caller information.
//
// The caller is responsible for calling logger.Sync() when done.
func InitLogger(cfg config.LoggingConfig, debug, console bool) (*logging.Logger, error) {
	consoleLevel := logging.LevelFromString(cfg.ConsoleLevel)
	if debug {
		consoleLevel = logging.LevelFromString("debug")
	}

	logCfg := &logging.Config{
		LogDir:         cfg.LogDir,
		FileLevel:      logging.LevelFromString(cfg.FileLevel),
		ConsoleLevel:   consoleLevel,
		ConsoleJSON:    cfg.JSON,
		EnableCaller:   debug,
		ConsoleEnabled: console,
	}

	logger, err := logging.NewLogger(logCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return logger, nil
}

// loadConfig reads configuration from dir. validate is false for commands
// that never reach the reasoning model.
func loadConfig(dir string, overrides map[string]interface{}, validate bool) (*config.Config, error) {
	loader := config.NewLoader()
	if validate {
		return loader.LoadAndValidate(dir, overrides)
	}
	return loader.Load(dir, overrides)
}

// promptsDir is where prompt overrides live next to the project config
func promptsDir(dir string) string {
	return filepath.Join(dir, ".concierge", "prompts")
}

// Runtime holds the wired collaborators behind one process.
type Runtime struct {
	Config   *config.Config
	Logger   *logging.Logger
	Recorder *metrics.Recorder
	KB       *knowledge.Base
	Agent    *agent.Agent
	Voice    *voice.Pipeline
	Sessions *session.Store
	Limiter  *ratelimit.Limiter
	Cache    *respcache.Cache
	Snapshot *respcache.Snapshot
}

// BuildRuntime wires every collaborator from cfg. Background workers
// (session sweeper, limiter pruner, cache autosave) are started; Close
// stops them.
func BuildRuntime(cfg *config.Config, dir string, logger *logging.Logger) (*Runtime, error) {
	rec := metrics.NewRecorder(logger.Named("metrics"), time.Now)

	retryClient := func(name string, budget config.RetryConfig) *resilience.RetryClient {
		return resilience.NewRetryClient(
			resilience.PolicyFromConfig(name, budget),
			resilience.WithObserver(rec.RetryObserver()),
			resilience.WithLogger(logger.Named("retry")),
		)
	}

	client, err := llm.NewFactory(retryClient(resilience.DependencyLLM, cfg.Retry.LLM)).CreateClient(cfg.LLM)
	if err != nil {
		return nil, errors.WrapError(err, "failed to create LLM client", errors.KindConfig, errors.ExitConfigError)
	}

	kb, err := loadKnowledge(cfg)
	if err != nil {
		return nil, err
	}

	pm, err := prompts.NewManager(promptsDir(dir))
	if err != nil {
		return nil, errors.WrapError(err, "failed to load prompts", errors.KindConfig, errors.ExitConfigError)
	}

	registry, err := buildRegistry(cfg, kb, retryClient(resilience.DependencyTools, cfg.Retry.Tools), logger)
	if err != nil {
		return nil, err
	}

	rt := &Runtime{Config: cfg, Logger: logger, Recorder: rec, KB: kb}

	if cfg.Cache.Enabled {
		classifier := respcache.DefaultClassifier()
		if cfg.Cache.PatternsPath != "" {
			if classifier, err = respcache.LoadClassifier(cfg.Cache.PatternsPath); err != nil {
				return nil, errors.NewConfigFileError(cfg.Cache.PatternsPath, err)
			}
		}
		rt.Cache = respcache.New(respcache.Options{
			MaxSize:    cfg.Cache.MaxSize,
			Shards:     cfg.Cache.Shards,
			TTL:        cfg.Cache.GetTTL(),
			Classifier: classifier,
		})
		if cfg.Cache.SnapshotPath != "" {
			rt.Snapshot = respcache.NewSnapshot(cfg.Cache.SnapshotPath, rt.Cache, logger.Named("cache"))
			if n, err := rt.Snapshot.Load(); err != nil {
				logger.Warn("Failed to load cache snapshot", logging.Error(err))
			} else if n > 0 {
				logger.Info("Restored cached answers", logging.Int("entries", n))
			}
			rt.Snapshot.StartAutoSave(cfg.Cache.GetAutoSave())
		}
	}

	rt.Sessions = session.NewStore(session.Options{
		TTL:         cfg.Session.GetTTL(),
		MaxMessages: cfg.Session.MaxMessages,
		MaxBytes:    cfg.Session.MaxBytes,
		Shards:      cfg.Session.Shards,
		Logger:      logger.Named("sessions"),
		OnEvict: func(id string) {
			rec.Emit(metrics.Event{Name: "session_evicted", SessionID: id, Outcome: metrics.OutcomeOK})
		},
	})
	rt.Sessions.StartSweeper(cfg.Session.GetSweepInterval())

	if cfg.RateLimit.Enabled {
		rt.Limiter = ratelimit.New(ratelimit.Options{
			PerSession: cfg.RateLimit.PerSession,
			Global:     cfg.RateLimit.Global,
			Window:     cfg.RateLimit.GetWindow(),
			Shards:     cfg.RateLimit.Shards,
		})
		rt.Limiter.StartPruner(cfg.RateLimit.GetWindow())
	}

	rt.Agent, err = agent.New(agent.Config{
		MaxIterations:   cfg.Agent.GetMaxIterations(),
		MaxMessageBytes: cfg.Agent.MaxMessageBytes,
		ParallelTools:   cfg.Agent.ParallelTools,
		MaxWorkers:      cfg.Agent.MaxWorkers,
		MaxTokens:       cfg.LLM.GetMaxTokens(),
		Temperature:     cfg.LLM.Temperature,
		FallbackMessage: cfg.Agent.FallbackMessage,
	}, agent.Deps{
		LLM:       client,
		Tools:     registry,
		Sessions:  rt.Sessions,
		Cache:     rt.Cache,
		Limiter:   rt.Limiter,
		Prompts:   pm,
		Knowledge: kb,
		Metrics:   rec,
		Logger:    logger,
	})
	if err != nil {
		rt.Close()
		return nil, err
	}

	// Nil interfaces, not typed nils, when a speech service is disabled.
	var stt speech.Transcriber
	if cfg.Speech.STT.Enabled {
		stt = speech.NewSTTClient(cfg.Speech.STT, retryClient(resilience.DependencySTT, cfg.Retry.STT), logger.Named("stt"))
	}
	var tts speech.Synthesizer
	if cfg.Speech.TTS.Enabled {
		tts = speech.NewTTSClient(cfg.Speech.TTS, retryClient(resilience.DependencyTTS, cfg.Retry.TTS), logger.Named("tts"))
	}
	rt.Voice = voice.NewPipeline(rt.Agent, stt, tts, rec, logger)

	return rt, nil
}

// loadKnowledge returns the configured knowledge base or the embedded one
func loadKnowledge(cfg *config.Config) (*knowledge.Base, error) {
	if cfg.Knowledge.Path == "" {
		return knowledge.Default(), nil
	}
	kb, err := knowledge.Load(cfg.Knowledge.Path)
	if err != nil {
		return nil, errors.NewConfigFileError(cfg.Knowledge.Path, err)
	}
	return kb, nil
}

// toolTimeout is the dispatch timeout, widened when the outbound retry
// budget would not fit inside it
func toolTimeout(cfg *config.Config) time.Duration {
	timeout := cfg.Agent.GetToolTimeout()
	if budget := resilience.PolicyFromConfig(resilience.DependencyTools, cfg.Retry.Tools).Budget(); budget > timeout {
		return budget
	}
	return timeout
}

// buildRegistry registers the concierge tools. image_preview and
// video_tour are included only when a media endpoint and key are configured.
func buildRegistry(cfg *config.Config, kb *knowledge.Base, client *resilience.RetryClient, logger *logging.Logger) (*tools.Registry, error) {
	registry := tools.NewRegistry(
		tools.WithTimeout(toolTimeout(cfg)),
		tools.WithMaxResult(cfg.Agent.MaxToolResult),
		tools.WithLogger(logger.Named("tools")),
	)
	builtins := tools.BuiltinOptions{
		Media: tools.MediaConfig{
			BaseURL:    cfg.Media.BaseURL,
			APIKey:     cfg.Media.APIKey,
			ImageModel: cfg.Media.ImageModel,
			ImageSize:  cfg.Media.ImageSize,
			VideoModel: cfg.Media.VideoModel,
		},
		MediaClient: client,
	}
	if err := tools.RegisterBuiltins(registry, kb, builtins); err != nil {
		return nil, err
	}
	return registry, nil
}

// AssistantName is the display name used by the CLI and the API banner
func (rt *Runtime) AssistantName() string {
	if rt.KB.AssistantName != "" {
		return rt.KB.AssistantName
	}
	return "Concierge"
}

// Close stops background workers and saves the cache snapshot
func (rt *Runtime) Close() {
	if rt.Sessions != nil {
		rt.Sessions.Stop()
	}
	if rt.Limiter != nil {
		rt.Limiter.Stop()
	}
	if rt.Snapshot != nil {
		if err := rt.Snapshot.Stop(); err != nil {
			rt.Logger.Warn("Failed to save cache snapshot", logging.Error(err))
		}
	}
}
