package cmd

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/nomadai/concierge/internal/tui"
)

var (
	chatSessionID string
	chatLanguage  string
)

// chatCmd represents the chat command
var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Talk to the concierge in the terminal",
	Long: `Open an interactive chat with the concierge.

The chat runs the same agent as the HTTP API, with the same tools, cache
and rate limits. Type /help inside the chat for commands.

Log output goes to the log file only (logging.log_dir); use --verbose to
also print it, which will interleave with the chat.`,
	RunE: runChat,
}

func init() {
	rootCmd.AddCommand(chatCmd)

	chatCmd.Flags().StringVar(&chatSessionID, "session", "", "Session id (default: a new random id)")
	chatCmd.Flags().StringVar(&chatLanguage, "language", "", "Reply language, e.g. Japanese")
}

func runChat(cmd *cobra.Command, args []string) error {
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

	sessionID := chatSessionID
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	model := tui.NewChatModel(rt.Agent, tui.ChatOptions{
		SessionID:     sessionID,
		AssistantName: rt.AssistantName(),
		Language:      chatLanguage,
	})

	if _, err := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(cmd.Context())).Run(); err != nil {
		return fmt.Errorf("error running chat: %w", err)
	}
	return nil
}
