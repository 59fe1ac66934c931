package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nomadai/concierge/internal/respcache"
	"github.com/nomadai/concierge/internal/tui"
)

// cacheClearCmd represents the cache-clear command
var cacheClearCmd = &cobra.Command{
	Use:   "cache-clear",
	Short: "Clear the response cache snapshot",
	Long: `Remove the response cache snapshot file (cache.snapshot_path).

A running server keeps its in-memory cache; restart it after clearing, or
its next autosave will write the entries back. Use this to:
  - Drop answers after the knowledge base changed
  - Reset cache statistics`,
	RunE: runCacheClear,
}

func init() {
	rootCmd.AddCommand(cacheClearCmd)
}

func runCacheClear(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(configDir, nil, false)
	if err != nil {
		return err
	}
	return clearCache(cmd, cfg.Cache.SnapshotPath)
}

// clearCache removes the snapshot file at path
func clearCache(cmd *cobra.Command, path string) error {
	out := cmd.OutOrStdout()

	if path == "" {
		fmt.Fprintf(out, "%s %s\n", tui.StyleWarning.Render(tui.IconWarning), "No cache snapshot configured (cache.snapshot_path).")
		return nil
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		fmt.Fprintf(out, "%s Cache snapshot not found.\n", tui.StyleWarning.Render(tui.IconWarning))
		fmt.Fprintf(out, "   Expected location: %s\n", path)
		return nil
	}

	if err := respcache.NewSnapshot(path, nil, nil).Remove(); err != nil {
		return fmt.Errorf("failed to remove cache snapshot: %w", err)
	}

	fmt.Fprintf(out, "%s Cache cleared\n", tui.StyleSuccess.Render(tui.IconSuccess))
	fmt.Fprintf(out, "   Removed: %s\n", path)
	return nil
}
