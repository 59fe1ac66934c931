// Package prompts loads the system prompt templates. Embedded defaults can
// be overridden per deployment by YAML files in a project directory.
package prompts

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	textTemplate "text/template"

	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultPrompts []byte

// Prompt names
const (
	ConciergeSystem = "concierge_system"
	FallbackAnswer  = "fallback_answer"
)

var requiredPrompts = []string{ConciergeSystem, FallbackAnswer}

// Manager handles loading and rendering prompt templates
type Manager struct {
	prompts map[string]string
	sources map[string]string // Track which file provided each prompt (for debugging)
}

// SystemVars are the variables available to the system prompt
type SystemVars struct {
	AssistantName string
	HotelName     string
	Knowledge     string
	Language      string
}

// NewManager loads the embedded prompts and then any YAML overrides found
// in overrideDir. A missing override directory is not an error.
func NewManager(overrideDir string) (*Manager, error) {
	pm := &Manager{
		prompts: make(map[string]string),
		sources: make(map[string]string),
	}

	if err := pm.merge(defaultPrompts, "system:defaults.yaml"); err != nil {
		return nil, err
	}

	if overrideDir != "" {
		if _, err := os.Stat(overrideDir); err == nil {
			if err := pm.loadDirectory(overrideDir, "project"); err != nil {
				return nil, fmt.Errorf("failed to load project prompts: %w", err)
			}
		}
	}

	if err := pm.validateRequiredPrompts(); err != nil {
		return nil, err
	}
	return pm, nil
}

// loadDirectory loads all YAML files from a directory
func (pm *Manager) loadDirectory(dir, source string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("failed to read directory %s: %w", dir, err)
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		ext := filepath.Ext(entry.Name())
		if ext != ".yaml" && ext != ".yml" {
			continue
		}

		filePath := filepath.Join(dir, entry.Name())
		data, err := os.ReadFile(filePath)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", filePath, err)
		}
		if err := pm.merge(data, fmt.Sprintf("%s:%s", source, entry.Name())); err != nil {
			return err
		}
	}

	return nil
}

// merge parses a YAML prompt map; later loads override earlier
func (pm *Manager) merge(data []byte, source string) error {
	var prompts map[string]string
	if err := yaml.Unmarshal(data, &prompts); err != nil {
		return fmt.Errorf("failed to parse %s: %w", source, err)
	}
	for key, value := range prompts {
		pm.prompts[key] = value
		pm.sources[key] = source
	}
	return nil
}

// validateRequiredPrompts ensures critical prompts exist
func (pm *Manager) validateRequiredPrompts() error {
	var missing []string
	for _, key := range requiredPrompts {
		if _, ok := pm.prompts[key]; !ok {
			missing = append(missing, key)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("missing required prompts: %v", missing)
	}
	return nil
}

// Get returns a raw prompt by name
func (pm *Manager) Get(name string) (string, error) {
	prompt, ok := pm.prompts[name]
	if !ok {
		return "", fmt.Errorf("prompt '%s' not found (available: %v)", name, pm.getAvailableNames())
	}
	return prompt, nil
}

// Render renders a prompt template with the given data
func (pm *Manager) Render(name string, data interface{}) (string, error) {
	promptTemplate, err := pm.Get(name)
	if err != nil {
		return "", err
	}

	tmpl, err := textTemplate.New(name).Option("missingkey=error").Parse(promptTemplate)
	if err != nil {
		return "", fmt.Errorf("failed to parse template '%s': %w", name, err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to execute template '%s': %w", name, err)
	}

	return strings.TrimSpace(buf.String()), nil
}

// SystemPrompt renders the concierge system prompt
func (pm *Manager) SystemPrompt(vars SystemVars) (string, error) {
	return pm.Render(ConciergeSystem, vars)
}

// Fallback returns the answer used when the loop produces no text
func (pm *Manager) Fallback() string {
	text, err := pm.Render(FallbackAnswer, nil)
	if err != nil || text == "" {
		return "I'm sorry, I couldn't complete that request. Please try again."
	}
	return text
}

// getAvailableNames returns a sorted list of available prompt names
func (pm *Manager) getAvailableNames() []string {
	names := make([]string, 0, len(pm.prompts))
	for name := range pm.prompts {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// GetSource returns which file provided a prompt
func (pm *Manager) GetSource(name string) string {
	if source, ok := pm.sources[name]; ok {
		return source
	}
	return "unknown"
}

// ListOverrides returns all prompts that were overridden from project
func (pm *Manager) ListOverrides() []string {
	var overrides []string
	for key, source := range pm.sources {
		if strings.HasPrefix(source, "project:") {
			overrides = append(overrides, key)
		}
	}
	sort.Strings(overrides)
	return overrides
}

// CountPrompts returns the total number of loaded prompts
func (pm *Manager) CountPrompts() int {
	return len(pm.prompts)
}
