package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/nomadai/concierge/internal/errors"
)

// EnvPrefix is prepended to every environment override, e.g. CONCIERGE_LLM_MODEL.
const EnvPrefix = "CONCIERGE"

// Loader handles loading configuration from multiple sources
type Loader struct {
	v *viper.Viper
}

// NewLoader creates a new configuration loader
func NewLoader() *Loader {
	// Load .env file if exists
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	return &Loader{v: v}
}

// Load reads configuration with precedence
// CLI > Environment > ./.concierge/config.yaml > ~/.concierge.yaml > Defaults.
// The result is not validated; callers that talk to the reasoning model use LoadAndValidate.
func (l *Loader) Load(dir string, cliOverrides map[string]interface{}) (*Config, error) {
	if err := l.loadGlobalConfig(); err != nil {
		return nil, err
	}
	if err := l.loadProjectConfig(dir); err != nil {
		return nil, err
	}
	l.applyCLIOverrides(cliOverrides)

	cfg := &Config{}
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           cfg,
		TagName:          "mapstructure",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create config decoder: %w", err)
	}
	if err := decoder.Decode(l.v.AllSettings()); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	applyEnvFallbacks(cfg)
	return cfg, nil
}

// LoadAndValidate loads configuration and validates the fields a running agent needs.
func (l *Loader) LoadAndValidate(dir string, cliOverrides map[string]interface{}) (*Config, error) {
	cfg, err := l.Load(dir, cliOverrides)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Viper exposes the underlying viper instance for `concierge config`.
func (l *Loader) Viper() *viper.Viper {
	return l.v
}

// loadGlobalConfig loads configuration from ~/.concierge.yaml
func (l *Loader) loadGlobalConfig() error {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil // Not a fatal error
	}

	globalConfig := filepath.Join(homeDir, ".concierge.yaml")
	if _, err := os.Stat(globalConfig); err != nil {
		return nil
	}

	l.v.SetConfigFile(globalConfig)
	if err := l.v.MergeInConfig(); err != nil {
		return errors.NewConfigFileError(globalConfig, err)
	}

	return nil
}

// loadProjectConfig loads configuration from <dir>/.concierge/config.yaml
func (l *Loader) loadProjectConfig(dir string) error {
	if dir == "" {
		dir = "."
	}

	configPath := filepath.Join(dir, ".concierge", "config.yaml")
	if _, err := os.Stat(configPath); err != nil {
		return nil
	}

	l.v.SetConfigFile(configPath)
	if err := l.v.MergeInConfig(); err != nil {
		return errors.NewConfigFileError(configPath, err)
	}

	return nil
}

// applyCLIOverrides applies CLI flag overrides
func (l *Loader) applyCLIOverrides(overrides map[string]interface{}) {
	for key, value := range overrides {
		if value != nil {
			l.v.Set(key, value)
		}
	}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.max_body_bytes", 10<<20)
	v.SetDefault("server.read_timeout", 30)
	v.SetDefault("server.write_timeout", 180)

	v.SetDefault("llm.provider", "openai")
	v.SetDefault("llm.model", "glm-4.7")
	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.base_url", "https://open.bigmodel.cn/api/paas/v4")
	v.SetDefault("llm.max_tokens", 1024)
	v.SetDefault("llm.temperature", 0.7)

	v.SetDefault("speech.stt.enabled", true)
	v.SetDefault("speech.stt.base_url", "")
	v.SetDefault("speech.stt.api_key", "")
	v.SetDefault("speech.stt.model", "glm-asr-2512")
	v.SetDefault("speech.stt.language", "")
	v.SetDefault("speech.tts.enabled", true)
	v.SetDefault("speech.tts.base_url", "")
	v.SetDefault("speech.tts.api_key", "")
	v.SetDefault("speech.tts.model", "glm-tts")
	v.SetDefault("speech.tts.voice", "tongtong")
	v.SetDefault("speech.tts.format", "wav")

	v.SetDefault("media.base_url", "")
	v.SetDefault("media.api_key", "")
	v.SetDefault("media.image_model", "cogview-4")
	v.SetDefault("media.image_size", "1024x1024")
	v.SetDefault("media.video_model", "cogvideox")

	setRetryDefaults(v, "llm", 2, 60)
	setRetryDefaults(v, "stt", 3, 20)
	setRetryDefaults(v, "tts", 3, 15)
	setRetryDefaults(v, "tools", 3, 4)

	v.SetDefault("agent.max_iterations", 5)
	v.SetDefault("agent.tool_timeout", 15)
	v.SetDefault("agent.parallel_tools", false)
	v.SetDefault("agent.max_workers", 4)
	v.SetDefault("agent.max_message_bytes", 4096)
	v.SetDefault("agent.fallback_message", "")
	v.SetDefault("agent.max_tool_result", 4000)

	v.SetDefault("cache.enabled", true)
	v.SetDefault("cache.max_size", 512)
	v.SetDefault("cache.ttl", 3600)
	v.SetDefault("cache.shards", 16)
	v.SetDefault("cache.snapshot_path", "")
	v.SetDefault("cache.autosave", 0)
	v.SetDefault("cache.patterns_path", "")

	v.SetDefault("session.ttl", 1800)
	v.SetDefault("session.sweep_interval", 60)
	v.SetDefault("session.max_messages", 40)
	v.SetDefault("session.max_bytes", 16<<10)
	v.SetDefault("session.shards", 16)

	v.SetDefault("rate_limit.enabled", true)
	v.SetDefault("rate_limit.per_session", 20)
	v.SetDefault("rate_limit.global", 200)
	v.SetDefault("rate_limit.window", 60)
	v.SetDefault("rate_limit.shards", 16)

	v.SetDefault("knowledge.path", "")

	v.SetDefault("logging.log_dir", "")
	v.SetDefault("logging.file_level", "info")
	v.SetDefault("logging.console_level", "info")
	v.SetDefault("logging.json", false)
}

func setRetryDefaults(v *viper.Viper, dep string, attempts, timeout int) {
	prefix := "retry." + dep + "."
	v.SetDefault(prefix+"max_attempts", attempts)
	v.SetDefault(prefix+"timeout", timeout)
	v.SetDefault(prefix+"base_delay_ms", 500)
	v.SetDefault(prefix+"multiplier", 2.0)
	v.SetDefault(prefix+"max_delay", 8)
}

// applyEnvFallbacks fills credentials from the variable names older deployments used.
func applyEnvFallbacks(cfg *Config) {
	if cfg.LLM.APIKey == "" {
		cfg.LLM.APIKey = getEnvWithFallback("ZHIPUAI_API_KEY", "CHUTES_API_KEY", "")
	}

	// Speech and media default to the reasoning model's endpoint and key.
	inherit := func(baseURL, apiKey *string) {
		if *baseURL == "" {
			*baseURL = cfg.LLM.BaseURL
		}
		if *apiKey == "" {
			*apiKey = getEnvWithFallback("ZHIPUAI_API_KEY", "", cfg.LLM.APIKey)
		}
	}
	inherit(&cfg.Speech.STT.BaseURL, &cfg.Speech.STT.APIKey)
	inherit(&cfg.Speech.TTS.BaseURL, &cfg.Speech.TTS.APIKey)
	inherit(&cfg.Media.BaseURL, &cfg.Media.APIKey)
}

func getEnvWithFallback(primaryKey, fallbackKey, defaultValue string) string {
	if val := os.Getenv(primaryKey); val != "" {
		return val
	}
	if fallbackKey != "" {
		if val := os.Getenv(fallbackKey); val != "" {
			return val
		}
	}
	return defaultValue
}

// Validate checks the fields without which no turn can be served.
func (c *Config) Validate() error {
	if c.LLM.APIKey == "" {
		return errors.NewMissingEnvVarError(EnvPrefix+"_LLM_API_KEY", "API key for the reasoning model")
	}

	validProviders := map[string]bool{
		"openai":    true,
		"anthropic": true,
	}
	if !validProviders[c.LLM.Provider] {
		return errors.NewInvalidEnvVarError(EnvPrefix+"_LLM_PROVIDER", c.LLM.Provider, "Must be one of: openai, anthropic")
	}

	if c.RateLimit.Enabled && (c.RateLimit.PerSession <= 0 || c.RateLimit.Global <= 0) {
		return errors.NewInvalidEnvVarError(EnvPrefix+"_RATE_LIMIT_PER_SESSION", fmt.Sprint(c.RateLimit.PerSession), "Rate limit ceilings must be positive")
	}

	if c.Session.MaxMessages == 1 {
		return errors.NewConfigurationError("session.max_messages must hold at least one question and answer")
	}

	return nil
}
