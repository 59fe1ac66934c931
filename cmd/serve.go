package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/nomadai/concierge/internal/api"
	"github.com/nomadai/concierge/internal/logging"
)

var (
	serveAddr     string
	serveParallel bool
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	Long: `Start the concierge HTTP API.

Endpoints:
  GET  /               health banner
  POST /api/chat       text turn
  POST /api/transcribe speech to text only
  POST /api/voice-chat transcribe, answer and optionally speak
  POST /api/reset      forget a session
  GET  /api/tools      tool catalog
  GET  /api/metrics    counters and latency snapshot

The server shuts down gracefully on SIGINT or SIGTERM and saves the
response cache snapshot when one is configured.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (default from config, :8080)")
	serveCmd.Flags().BoolVar(&serveParallel, "parallel-tools", false, "Run concurrency-safe tools in parallel")
}

func runServe(cmd *cobra.Command, args []string) error {
	overrides := map[string]interface{}{}
	if serveAddr != "" {
		overrides["server.addr"] = serveAddr
	}
	if cmd.Flags().Changed("parallel-tools") {
		overrides["agent.parallel_tools"] = serveParallel
	}

	cfg, err := loadConfig(configDir, overrides, true)
	if err != nil {
		return err
	}

	// Without a file sink, stderr is the only record; keep it machine-readable.
	if cfg.Logging.LogDir == "" {
		cfg.Logging.JSON = true
	}
	logger, err := InitLogger(cfg.Logging, debugFlag, true)
	if err != nil {
		return err
	}
	defer logger.Sync()

	rt, err := BuildRuntime(cfg, configDir, logger)
	if err != nil {
		return err
	}
	defer rt.Close()

	logger.Info("Starting concierge",
		logging.String("tenant", rt.Agent.Tenant()),
		logging.String("provider", cfg.LLM.Provider),
		logging.String("model", cfg.LLM.Model),
		logging.Int("tools", len(rt.Agent.Catalog())),
		logging.Bool("cache", rt.Cache != nil),
		logging.Bool("stt", cfg.Speech.STT.Enabled),
		logging.Bool("tts", cfg.Speech.TTS.Enabled),
	)

	server := api.NewServer(api.Options{
		Config: cfg.Server,
		Name:   rt.AssistantName(),
		Agent:  rt.Agent,
		Voice:  rt.Voice,
		Logger: logger,
	})

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("Graceful shutdown failed", logging.Error(err))
		return err
	}
	return <-errCh
}
