package config

import (
	"time"
)

// ServerConfig holds HTTP API configuration
type ServerConfig struct {
	Addr         string `mapstructure:"addr"`
	MaxBodyBytes int64  `mapstructure:"max_body_bytes"` // Upper bound for JSON bodies, audio included
	ReadTimeout  int    `mapstructure:"read_timeout"`   // Seconds
	WriteTimeout int    `mapstructure:"write_timeout"`  // Seconds
}

// LLMConfig holds reasoning model provider configuration
type LLMConfig struct {
	Provider    string  `mapstructure:"provider"` // openai (and compatible), anthropic
	Model       string  `mapstructure:"model"`
	APIKey      string  `mapstructure:"api_key"`
	BaseURL     string  `mapstructure:"base_url"`
	MaxTokens   int     `mapstructure:"max_tokens"`
	Temperature float64 `mapstructure:"temperature"`
}

// STTConfig holds speech-to-text service configuration
type STTConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	BaseURL  string `mapstructure:"base_url"`
	APIKey   string `mapstructure:"api_key"`
	Model    string `mapstructure:"model"`
	Language string `mapstructure:"language"` // Default language hint
}

// TTSConfig holds speech synthesis service configuration
type TTSConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	BaseURL string `mapstructure:"base_url"`
	APIKey  string `mapstructure:"api_key"`
	Model   string `mapstructure:"model"`
	Voice   string `mapstructure:"voice"`
	Format  string `mapstructure:"format"` // wav, mp3
}

// SpeechConfig groups the two speech collaborators
type SpeechConfig struct {
	STT STTConfig `mapstructure:"stt"`
	TTS TTSConfig `mapstructure:"tts"`
}

// MediaConfig holds the generation endpoint used by image_preview and video_tour
type MediaConfig struct {
	BaseURL    string `mapstructure:"base_url"`
	APIKey     string `mapstructure:"api_key"`
	ImageModel string `mapstructure:"image_model"`
	ImageSize  string `mapstructure:"image_size"`
	VideoModel string `mapstructure:"video_model"`
}

// RetryConfig holds the retry budget for one external dependency
type RetryConfig struct {
	MaxAttempts int     `mapstructure:"max_attempts"`
	Timeout     int     `mapstructure:"timeout"`       // Per-attempt timeout in seconds
	BaseDelayMs int     `mapstructure:"base_delay_ms"` // First backoff interval
	Multiplier  float64 `mapstructure:"multiplier"`
	MaxDelay    int     `mapstructure:"max_delay"` // Seconds
}

// RetryBudgets holds one retry budget per dependency
type RetryBudgets struct {
	LLM   RetryConfig `mapstructure:"llm"`
	STT   RetryConfig `mapstructure:"stt"`
	TTS   RetryConfig `mapstructure:"tts"`
	Tools RetryConfig `mapstructure:"tools"`
}

// AgentConfig holds agent loop configuration
type AgentConfig struct {
	MaxIterations   int    `mapstructure:"max_iterations"`
	ToolTimeout     int    `mapstructure:"tool_timeout"` // Seconds
	ParallelTools   bool   `mapstructure:"parallel_tools"`
	MaxWorkers      int    `mapstructure:"max_workers"`
	MaxMessageBytes int    `mapstructure:"max_message_bytes"`
	FallbackMessage string `mapstructure:"fallback_message"`
	MaxToolResult   int    `mapstructure:"max_tool_result"` // Characters kept from each tool result
}

// CacheConfig holds response cache configuration
type CacheConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	MaxSize      int    `mapstructure:"max_size"`
	TTL          int    `mapstructure:"ttl"` // Seconds
	Shards       int    `mapstructure:"shards"`
	SnapshotPath string `mapstructure:"snapshot_path"` // Empty disables persistence
	AutoSave     int    `mapstructure:"autosave"`      // Seconds, 0 disables
	PatternsPath string `mapstructure:"patterns_path"` // Empty uses built-in intent patterns
}

// SessionConfig holds session store configuration
type SessionConfig struct {
	TTL           int `mapstructure:"ttl"`            // Seconds of inactivity before eviction
	SweepInterval int `mapstructure:"sweep_interval"` // Seconds
	MaxMessages   int `mapstructure:"max_messages"`   // History window, resident and restored
	MaxBytes      int `mapstructure:"max_bytes"`
	Shards        int `mapstructure:"shards"`
}

// RateLimitConfig holds admission control configuration
type RateLimitConfig struct {
	Enabled    bool `mapstructure:"enabled"`
	PerSession int  `mapstructure:"per_session"`
	Global     int  `mapstructure:"global"`
	Window     int  `mapstructure:"window"` // Seconds
	Shards     int  `mapstructure:"shards"`
}

// KnowledgeConfig points at the knowledge base file
type KnowledgeConfig struct {
	Path string `mapstructure:"path"` // Empty uses the embedded default
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	LogDir       string `mapstructure:"log_dir"`
	FileLevel    string `mapstructure:"file_level"`    // debug, info, warn, error
	ConsoleLevel string `mapstructure:"console_level"` // debug, info, warn, error
	JSON         bool   `mapstructure:"json"`          // JSON console output
}

// Config is the complete configuration tree
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	LLM       LLMConfig       `mapstructure:"llm"`
	Speech    SpeechConfig    `mapstructure:"speech"`
	Media     MediaConfig     `mapstructure:"media"`
	Retry     RetryBudgets    `mapstructure:"retry"`
	Agent     AgentConfig     `mapstructure:"agent"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Session   SessionConfig   `mapstructure:"session"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Knowledge KnowledgeConfig `mapstructure:"knowledge"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

func seconds(n, def int) time.Duration {
	if n <= 0 {
		return time.Duration(def) * time.Second
	}
	return time.Duration(n) * time.Second
}

// GetReadTimeout returns the read timeout with a default
func (c *ServerConfig) GetReadTimeout() time.Duration { return seconds(c.ReadTimeout, 30) }

// GetWriteTimeout returns the write timeout with a default. It must cover a
// full turn, so it defaults well above the reasoning model budget.
func (c *ServerConfig) GetWriteTimeout() time.Duration { return seconds(c.WriteTimeout, 180) }

// GetMaxBodyBytes returns the body limit with a default of 10 MiB
func (c *ServerConfig) GetMaxBodyBytes() int64 {
	if c.MaxBodyBytes <= 0 {
		return 10 << 20
	}
	return c.MaxBodyBytes
}

// GetMaxTokens returns the max tokens with a default
func (c *LLMConfig) GetMaxTokens() int {
	if c.MaxTokens == 0 {
		return 1024
	}
	return c.MaxTokens
}

// GetTimeout returns the per-attempt timeout
func (c *RetryConfig) GetTimeout() time.Duration { return seconds(c.Timeout, 30) }

// GetBaseDelay returns the first backoff interval
func (c *RetryConfig) GetBaseDelay() time.Duration {
	if c.BaseDelayMs <= 0 {
		return 500 * time.Millisecond
	}
	return time.Duration(c.BaseDelayMs) * time.Millisecond
}

// GetMaxDelay returns the backoff ceiling
func (c *RetryConfig) GetMaxDelay() time.Duration { return seconds(c.MaxDelay, 8) }

// GetMaxAttempts returns the attempt budget with a default
func (c *RetryConfig) GetMaxAttempts() int {
	if c.MaxAttempts <= 0 {
		return 3
	}
	return c.MaxAttempts
}

// GetMultiplier returns the backoff multiplier with a default
func (c *RetryConfig) GetMultiplier() float64 {
	if c.Multiplier <= 0 {
		return 2
	}
	return c.Multiplier
}

// GetToolTimeout returns the per-tool timeout
func (c *AgentConfig) GetToolTimeout() time.Duration { return seconds(c.ToolTimeout, 15) }

// GetMaxIterations returns the loop ceiling with a default of 5
func (c *AgentConfig) GetMaxIterations() int {
	if c.MaxIterations <= 0 {
		return 5
	}
	return c.MaxIterations
}

// GetTTL returns the cache entry lifetime
func (c *CacheConfig) GetTTL() time.Duration { return seconds(c.TTL, 3600) }

// GetAutoSave returns the snapshot interval (0 disables)
func (c *CacheConfig) GetAutoSave() time.Duration {
	if c.AutoSave <= 0 {
		return 0
	}
	return time.Duration(c.AutoSave) * time.Second
}

// GetTTL returns the session inactivity window
func (c *SessionConfig) GetTTL() time.Duration { return seconds(c.TTL, 1800) }

// GetSweepInterval returns how often expired sessions are swept
func (c *SessionConfig) GetSweepInterval() time.Duration { return seconds(c.SweepInterval, 60) }

// GetWindow returns the fixed window length
func (c *RateLimitConfig) GetWindow() time.Duration { return seconds(c.Window, 60) }
