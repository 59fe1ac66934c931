package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/nomadai/concierge/internal/config"
	"github.com/nomadai/concierge/internal/prompts"
	"github.com/nomadai/concierge/internal/tui"
)

var configValidate bool

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show the effective configuration",
	Long: `Print the configuration the other commands would run with, after
merging defaults, ~/.concierge.yaml, .concierge/config.yaml and
CONCIERGE_* environment variables. API keys are masked. The prompt
templates in use are listed after the settings, with the file that
overrides each customized one.

Use --validate to also check the settings a running agent needs.`,
	RunE: runConfig,
}

func init() {
	rootCmd.AddCommand(configCmd)

	configCmd.Flags().BoolVar(&configValidate, "validate", false, "Validate the configuration")
}

func runConfig(cmd *cobra.Command, args []string) error {
	loader := config.NewLoader()
	cfg, err := loader.Load(configDir, nil)
	if err != nil {
		return err
	}

	settings := loader.Viper().AllSettings()
	maskSecrets(settings)

	data, err := yaml.Marshal(settings)
	if err != nil {
		return fmt.Errorf("failed to render configuration: %w", err)
	}
	fmt.Fprint(cmd.OutOrStdout(), string(data))

	pm, err := prompts.NewManager(promptsDir(configDir))
	if err != nil {
		return err
	}
	fmt.Fprint(cmd.OutOrStdout(), describePrompts(pm))

	if !configValidate {
		return nil
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "\n%s Configuration is valid\n", tui.StyleSuccess.Render(tui.IconSuccess))
	return nil
}

// describePrompts summarizes the loaded templates and their overrides
func describePrompts(pm *prompts.Manager) string {
	var b strings.Builder
	fmt.Fprintf(&b, "\nprompts: %d loaded\n", pm.CountPrompts())
	overrides := pm.ListOverrides()
	if len(overrides) == 0 {
		b.WriteString("  no project overrides\n")
		return b.String()
	}
	for _, name := range overrides {
		fmt.Fprintf(&b, "  %s %s (%s)\n", tui.IconBullet, name, pm.GetSource(name))
	}
	return b.String()
}

// maskSecrets replaces every non-empty *api_key value in place
func maskSecrets(settings map[string]interface{}) {
	for key, value := range settings {
		switch v := value.(type) {
		case map[string]interface{}:
			maskSecrets(v)
		case string:
			if strings.HasSuffix(key, "api_key") && v != "" {
				settings[key] = maskKey(v)
			}
		}
	}
}

// maskKey keeps the last four characters of long keys
func maskKey(key string) string {
	if len(key) <= 8 {
		return "****"
	}
	return "****" + key[len(key)-4:]
}
