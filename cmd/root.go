package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nomadai/concierge/internal/errors"
)

var (
	debugFlag   bool
	verboseFlag bool
	configDir   string
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "concierge",
	Short: "Hotel concierge assistant for chat and voice",
	Long: `Concierge answers hotel guests over text and voice.

A reasoning model drives a bounded tool loop over the hotel's knowledge
base: room service, housekeeping, amenities, WiFi, sightseeing, directions
and staff callbacks. Answers to common questions are cached, sessions are
kept in memory, and every outbound call runs under a retry budget.`,
	Version:       "1.0.0",
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		if ce, ok := errors.AsConciergeError(err); ok {
			fmt.Fprintln(os.Stderr, ce.GetUserMessage())
			os.Exit(ce.ExitCode.Int())
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(errors.ExitGeneralError.Int())
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&debugFlag, "debug", false, "Enable debug mode")
	rootCmd.PersistentFlags().BoolVarP(&verboseFlag, "verbose", "v", false, "Show detailed log output on the console")
	rootCmd.PersistentFlags().StringVar(&configDir, "config-dir", ".", "Directory containing .concierge/config.yaml")
}
