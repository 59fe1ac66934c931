package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"

	"github.com/nomadai/concierge/internal/agent"
	"github.com/nomadai/concierge/internal/config"
	appErrors "github.com/nomadai/concierge/internal/errors"
	"github.com/nomadai/concierge/internal/logging"
	"github.com/nomadai/concierge/internal/prompts"
	"github.com/nomadai/concierge/internal/resilience"
)

// isolateEnv points HOME at an empty directory and clears credentials so
// the developer's own configuration cannot leak into a test.
func isolateEnv(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	for _, key := range []string{"CONCIERGE_LLM_API_KEY", "ZHIPUAI_API_KEY", "CHUTES_API_KEY", "CONCIERGE_LLM_PROVIDER"} {
		t.Setenv(key, "")
	}
	return home
}

// writeProjectConfig writes <dir>/.concierge/config.yaml
func writeProjectConfig(t *testing.T, dir, body string) {
	t.Helper()
	path := filepath.Join(dir, ".concierge", "config.yaml")
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func TestInitLogger(t *testing.T) {
	tests := []struct {
		name    string
		logDir  bool
		debug   bool
		console bool
	}{
		{"console only", false, false, true},
		{"file only", true, false, false},
		{"file and console with debug", true, true, true},
		{"no sinks", false, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.LoggingConfig{FileLevel: "info", ConsoleLevel: "warn"}
			if tt.logDir {
				cfg.LogDir = filepath.Join(t.TempDir(), "logs")
			}

			logger, err := InitLogger(cfg, tt.debug, tt.console)
			if err != nil {
				t.Fatalf("InitLogger: %v", err)
			}
			logger.Info("hello", logging.String("test", tt.name))
			_ = logger.Sync()

			if tt.logDir {
				if _, err := os.Stat(filepath.Join(cfg.LogDir, "concierge.log")); err != nil {
					t.Errorf("expected log file in %s: %v", cfg.LogDir, err)
				}
			}
		})
	}
}

func TestLoadConfig_ProjectFileAndOverrides(t *testing.T) {
	isolateEnv(t)
	dir := t.TempDir()
	writeProjectConfig(t, dir, `
llm:
  model: glm-4-air
agent:
  max_iterations: 3
server:
  addr: ":9000"
`)

	cfg, err := loadConfig(dir, map[string]interface{}{"server.addr": ":9100"}, false)
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.LLM.Model != "glm-4-air" {
		t.Errorf("model = %q, want glm-4-air", cfg.LLM.Model)
	}
	if cfg.Agent.GetMaxIterations() != 3 {
		t.Errorf("max iterations = %d, want 3", cfg.Agent.GetMaxIterations())
	}
	if cfg.Server.Addr != ":9100" {
		t.Errorf("addr = %q, want CLI override :9100", cfg.Server.Addr)
	}
	if cfg.Session.MaxMessages != 40 {
		t.Errorf("session.max_messages default = %d, want 40", cfg.Session.MaxMessages)
	}
}

func TestLoadConfig_ValidateRequiresAPIKey(t *testing.T) {
	isolateEnv(t)

	_, err := loadConfig(t.TempDir(), nil, true)
	if err == nil {
		t.Fatal("expected validation error without an API key")
	}
	ce, ok := appErrors.AsConciergeError(err)
	if !ok {
		t.Fatalf("expected ConciergeError, got %T", err)
	}
	if ce.ExitCode != appErrors.ExitConfigError {
		t.Errorf("exit code = %d, want %d", ce.ExitCode, appErrors.ExitConfigError)
	}
	if !strings.Contains(ce.GetUserMessage(), "CONCIERGE_LLM_API_KEY") {
		t.Errorf("user message should name the variable: %s", ce.GetUserMessage())
	}
}

func TestBuildRuntime(t *testing.T) {
	isolateEnv(t)
	t.Setenv("CONCIERGE_LLM_API_KEY", "test-key-123456")

	dir := t.TempDir()
	snapshot := filepath.Join(dir, "cache", "answers.json")
	writeProjectConfig(t, dir, `
cache:
  snapshot_path: `+snapshot+`
speech:
  tts:
    enabled: false
`)

	cfg, err := loadConfig(dir, nil, true)
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}

	rt, err := BuildRuntime(cfg, dir, logging.NewNopLogger())
	if err != nil {
		t.Fatalf("BuildRuntime: %v", err)
	}

	if rt.Agent == nil || rt.Voice == nil || rt.Cache == nil || rt.Snapshot == nil || rt.Limiter == nil {
		t.Fatalf("runtime not fully wired: %+v", rt)
	}
	if rt.Voice.CanSpeak() {
		t.Error("speech synthesis is disabled, pipeline should not speak")
	}
	if rt.AssistantName() == "" {
		t.Error("assistant name should never be empty")
	}
	if rt.Agent.Tenant() != rt.KB.ID {
		t.Errorf("tenant = %q, want knowledge base id %q", rt.Agent.Tenant(), rt.KB.ID)
	}

	// The media endpoint inherits the reasoning model's key, so the media tools are advertised.
	names := map[string]bool{}
	for _, def := range rt.Agent.Catalog() {
		names[def.Name] = true
	}
	for _, want := range []string{"room_service", "wifi_help", "directions", "image_preview", "video_tour"} {
		if !names[want] {
			t.Errorf("catalog missing %s", want)
		}
	}

	rt.Close()
	if _, err := os.Stat(snapshot); err != nil {
		t.Errorf("Close should save the cache snapshot: %v", err)
	}
}

func TestBuildRuntime_BadKnowledgePath(t *testing.T) {
	isolateEnv(t)
	t.Setenv("CONCIERGE_LLM_API_KEY", "test-key-123456")

	dir := t.TempDir()
	writeProjectConfig(t, dir, "knowledge:\n  path: "+filepath.Join(dir, "missing.yaml")+"\n")

	cfg, err := loadConfig(dir, nil, true)
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	_, err = BuildRuntime(cfg, dir, logging.NewNopLogger())
	if !appErrors.Is(err, appErrors.KindConfig) {
		t.Fatalf("expected config error, got %v", err)
	}
}

func TestToolTimeout(t *testing.T) {
	tests := []struct {
		name    string
		timeout int
		attempt int
		want    time.Duration
	}{
		{"default budget fits", 15, 4, 15 * time.Second},
		{"budget wider than dispatch", 15, 10, 30*time.Second + 1500*time.Millisecond},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &config.Config{}
			cfg.Agent.ToolTimeout = tt.timeout
			cfg.Retry.Tools = config.RetryConfig{MaxAttempts: 3, Timeout: tt.attempt, BaseDelayMs: 500, Multiplier: 2, MaxDelay: 8}
			if got := toolTimeout(cfg); got != tt.want {
				t.Errorf("toolTimeout = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestToolTimeout_Defaults(t *testing.T) {
	isolateEnv(t)
	cfg, err := loadConfig(t.TempDir(), nil, false)
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	budget := resilience.PolicyFromConfig(resilience.DependencyTools, cfg.Retry.Tools).Budget()
	if budget > cfg.Agent.GetToolTimeout() {
		t.Errorf("default tool retry budget %v exceeds dispatch timeout %v", budget, cfg.Agent.GetToolTimeout())
	}
}

func TestMaskSecrets(t *testing.T) {
	settings := map[string]interface{}{
		"llm": map[string]interface{}{
			"api_key": "sk-abcdefghijkl",
			"model":   "glm-4.7",
		},
		"speech": map[string]interface{}{
			"stt": map[string]interface{}{"api_key": "short"},
			"tts": map[string]interface{}{"api_key": ""},
		},
	}

	maskSecrets(settings)

	llm := settings["llm"].(map[string]interface{})
	if llm["api_key"] != "****ijkl" {
		t.Errorf("llm key = %v, want ****ijkl", llm["api_key"])
	}
	if llm["model"] != "glm-4.7" {
		t.Errorf("non-secret changed: %v", llm["model"])
	}
	speech := settings["speech"].(map[string]interface{})
	if got := speech["stt"].(map[string]interface{})["api_key"]; got != "****" {
		t.Errorf("short key = %v, want ****", got)
	}
	if got := speech["tts"].(map[string]interface{})["api_key"]; got != "" {
		t.Errorf("empty key should stay empty, got %v", got)
	}
}

func TestDescribePrompts(t *testing.T) {
	tests := []struct {
		name     string
		override string
		want     []string
		absent   []string
	}{
		{
			name:   "defaults only",
			want:   []string{"prompts: 2 loaded", "no project overrides"},
			absent: []string{"project:"},
		},
		{
			name:     "project override",
			override: "fallback_answer: \"Please call the front desk.\"\n",
			want:     []string{"prompts: 2 loaded", prompts.FallbackAnswer + " (project:hotel.yaml)"},
			absent:   []string{"no project overrides", prompts.ConciergeSystem},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			if tt.override != "" {
				path := filepath.Join(promptsDir(dir), "hotel.yaml")
				if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
					t.Fatal(err)
				}
				if err := os.WriteFile(path, []byte(tt.override), 0644); err != nil {
					t.Fatal(err)
				}
			}
			pm, err := prompts.NewManager(promptsDir(dir))
			if err != nil {
				t.Fatalf("NewManager: %v", err)
			}

			got := describePrompts(pm)
			for _, want := range tt.want {
				if !strings.Contains(got, want) {
					t.Errorf("summary missing %q:\n%s", want, got)
				}
			}
			for _, bad := range tt.absent {
				if strings.Contains(got, bad) {
					t.Errorf("summary should not contain %q:\n%s", bad, got)
				}
			}
		})
	}
}

func TestDescribeParams(t *testing.T) {
	schema := map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"room":   map[string]interface{}{"type": "string"},
			"action": map[string]interface{}{"type": "string"},
			"items":  map[string]interface{}{"type": "array"},
		},
		"required": []string{"action"},
	}

	got := describeParams(schema)
	want := []string{"action (string, required)", "items (array)", "room (string)"}
	if strings.Join(got, "|") != strings.Join(want, "|") {
		t.Errorf("describeParams = %v, want %v", got, want)
	}

	if describeParams(map[string]interface{}{"type": "object"}) != nil {
		t.Error("schema without properties should describe nothing")
	}
}

func TestClearCache(t *testing.T) {
	run := func(path string) string {
		var out bytes.Buffer
		c := &cobra.Command{}
		c.SetOut(&out)
		if err := clearCache(c, path); err != nil {
			t.Fatalf("clearCache: %v", err)
		}
		return out.String()
	}

	if out := run(""); !strings.Contains(out, "No cache snapshot configured") {
		t.Errorf("unexpected output for empty path: %q", out)
	}

	path := filepath.Join(t.TempDir(), "answers.json")
	if out := run(path); !strings.Contains(out, "not found") {
		t.Errorf("unexpected output for missing file: %q", out)
	}

	if err := os.WriteFile(path, []byte(`{"version":1}`), 0644); err != nil {
		t.Fatal(err)
	}
	if out := run(path); !strings.Contains(out, "Cache cleared") {
		t.Errorf("unexpected output after clear: %q", out)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("snapshot file should be removed")
	}
}

func TestAskSummary(t *testing.T) {
	got := askSummary(&agent.TurnResult{SessionID: "s1", CacheHit: true, Iterations: 0})
	if !strings.Contains(got, "session s1") || !strings.Contains(got, "cache") {
		t.Errorf("summary = %q", got)
	}

	got = askSummary(&agent.TurnResult{SessionID: "s2", Iterations: 5, ToolCalls: 4, Exhausted: true})
	if !strings.Contains(got, "5 iterations") || !strings.Contains(got, "loop ceiling reached") {
		t.Errorf("summary = %q", got)
	}
}
