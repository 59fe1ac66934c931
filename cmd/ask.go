package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/nomadai/concierge/internal/agent"
	"github.com/nomadai/concierge/internal/tui"
)

var (
	askSessionID string
	askLanguage  string
)

// askCmd represents the ask command
var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Ask the concierge one question",
	Long: `Send a single message to the concierge and print the answer.

Useful for scripting and for checking a deployment's configuration:

  concierge ask "What is the WiFi password?"
  concierge ask --language Japanese "Where can I eat ramen nearby?"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

func init() {
	rootCmd.AddCommand(askCmd)

	askCmd.Flags().StringVar(&askSessionID, "session", "", "Session id (default: a new random id)")
	askCmd.Flags().StringVar(&askLanguage, "language", "", "Reply language")
}

func runAsk(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(configDir, nil, true)
	if err != nil {
		return err
	}

	logger, err := InitLogger(cfg.Logging, debugFlag, verboseFlag)
	if err != nil {
		return err
	}
	defer logger.Sync()

	rt, err := BuildRuntime(cfg, configDir, logger)
	if err != nil {
		return err
	}
	defer rt.Close()

	sessionID := askSessionID
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	result, err := rt.Agent.HandleTurn(cmd.Context(), agent.TurnRequest{
		SessionID: sessionID,
		Message:   strings.Join(args, " "),
		Language:  askLanguage,
		Channel:   "cli",
	})
	if err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), result.Answer)
	if verboseFlag {
		fmt.Fprintln(cmd.ErrOrStderr(), tui.StyleMuted.Render(askSummary(result)))
	}
	return nil
}

// askSummary is the one-line trailer printed with --verbose
func askSummary(r *agent.TurnResult) string {
	source := "model"
	if r.CacheHit {
		source = "cache"
	}
	summary := fmt.Sprintf("session %s · %s · %d iterations · %d tool calls · %s",
		r.SessionID, source, r.Iterations, r.ToolCalls, r.Latency.Round(time.Millisecond))
	if r.Exhausted {
		summary += " · loop ceiling reached"
	}
	return summary
}
