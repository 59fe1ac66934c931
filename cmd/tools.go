package cmd

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nomadai/concierge/internal/llmtypes"
	"github.com/nomadai/concierge/internal/logging"
	"github.com/nomadai/concierge/internal/resilience"
	"github.com/nomadai/concierge/internal/tui"
)

// toolsCmd represents the tools command
var toolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "List the tools advertised to the reasoning model",
	Long: `List every tool the concierge can call, with its parameters.

The list reflects the configured knowledge base and media settings:
image_preview only appears when media.base_url and media.api_key are set.`,
	RunE: runTools,
}

func init() {
	rootCmd.AddCommand(toolsCmd)
}

func runTools(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(configDir, nil, false)
	if err != nil {
		return err
	}

	kb, err := loadKnowledge(cfg)
	if err != nil {
		return err
	}

	client := resilience.NewRetryClient(resilience.PolicyFromConfig(resilience.DependencyTools, cfg.Retry.Tools))
	registry, err := buildRegistry(cfg, kb, client, logging.NewNopLogger())
	if err != nil {
		return err
	}

	fmt.Fprint(cmd.OutOrStdout(), formatCatalog(registry.Catalog()))
	return nil
}

// formatCatalog renders one block per tool
func formatCatalog(catalog []llmtypes.ToolDefinition) string {
	var b strings.Builder
	b.WriteString(tui.StyleTitle.Render(fmt.Sprintf("%d tools", len(catalog))))
	b.WriteString("\n\n")

	for _, def := range catalog {
		fmt.Fprintf(&b, "%s %s\n", tui.IconBullet, tui.StyleSuccess.Render(def.Name))
		fmt.Fprintf(&b, "  %s\n", def.Description)
		for _, p := range describeParams(def.Parameters) {
			fmt.Fprintf(&b, "  %s\n", tui.StyleMuted.Render(p))
		}
		b.WriteString("\n")
	}
	return b.String()
}

// describeParams lists "name (type, required)" entries from a JSON schema
func describeParams(schema map[string]interface{}) []string {
	props, _ := schema["properties"].(map[string]interface{})
	if len(props) == 0 {
		return nil
	}

	required := map[string]bool{}
	switch req := schema["required"].(type) {
	case []string:
		for _, name := range req {
			required[name] = true
		}
	case []interface{}:
		for _, name := range req {
			if s, ok := name.(string); ok {
				required[s] = true
			}
		}
	}

	names := make([]string, 0, len(props))
	for name := range props {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]string, 0, len(names))
	for _, name := range names {
		typ := "any"
		if p, ok := props[name].(map[string]interface{}); ok {
			if t, ok := p["type"].(string); ok {
				typ = t
			}
		}
		if required[name] {
			out = append(out, fmt.Sprintf("%s (%s, required)", name, typ))
		} else {
			out = append(out, fmt.Sprintf("%s (%s)", name, typ))
		}
	}
	return out
}
