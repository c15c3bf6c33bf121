// Package config loads snapask settings from an optional YAML file, a .env
// file and SNAPASK_* environment variables. Precedence, lowest first:
// built-in defaults, config file, environment, command-line flags.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/abhisek/snapask/internal/llm"
	"github.com/abhisek/snapask/internal/photo"
)

// Config is the snapask.yaml file.
type Config struct {
	LLM    LLMConfig    `yaml:"llm"`
	Device DeviceConfig `yaml:"device"`
	Window WindowConfig `yaml:"window"`
	Agent  AgentConfig  `yaml:"agent"`
	Server ServerConfig `yaml:"server"`
	Log    LogConfig    `yaml:"log"`
	DB     DBConfig     `yaml:"db"`
}

// LLMConfig mirrors llm.Config. Empty fields keep the llm defaults.
type LLMConfig struct {
	Provider   string         `yaml:"provider"`
	Timeout    Duration       `yaml:"timeout"`
	Anthropic  ProviderConfig `yaml:"anthropic"`
	OpenAI     ProviderConfig `yaml:"openai"`
	Gemini     ProviderConfig `yaml:"gemini"`
	OpenRouter ProviderConfig `yaml:"openrouter"`
	Local      ProviderConfig `yaml:"local"`
	Text       TextConfig     `yaml:"text"`
}

// ProviderConfig holds one vendor's credentials and model.
type ProviderConfig struct {
	APIKey  string `yaml:"api_key"`
	Model   string `yaml:"model"`
	BaseURL string `yaml:"base_url"`
}

// TextConfig configures the text-only fallback.
type TextConfig struct {
	Provider string `yaml:"provider"`
	Model    string `yaml:"model"`
}

// DeviceConfig describes the camera bridge.
type DeviceConfig struct {
	Bridge       string `yaml:"bridge"`
	Capture      string `yaml:"capture"` // "", "once" or "interval", sent on connect
	MaxPhotoSize int    `yaml:"max_photo_size"`
	MaxAttempts  int    `yaml:"max_attempts"`
	// Headers are sent when dialing the bridge, e.g. an Authorization token.
	Headers map[string]string `yaml:"headers"`
}

// WindowConfig sizes the photo window.
type WindowConfig struct {
	Size int `yaml:"size"`
}

// AgentConfig configures the question-answering session.
type AgentConfig struct {
	MaxPhotos int    `yaml:"max_photos"`
	Model     string `yaml:"model"`
}

// ServerConfig configures the state feed.
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// DBConfig locates the event store.
type DBConfig struct {
	Path string `yaml:"path"`
}

// Default returns the built-in settings.
func Default() *Config {
	return &Config{
		Window: WindowConfig{Size: photo.DefaultCapacity},
		Agent:  AgentConfig{MaxPhotos: photo.DefaultCapacity, Model: string(llm.VariantRemote)},
		Server: ServerConfig{Addr: "127.0.0.1:8080"},
		Log:    LogConfig{Level: "info", Format: "console", Output: "stderr"},
	}
}

// Duration wraps time.Duration for YAML string parsing (e.g. "10s", "5m").
type Duration struct {
	time.Duration
}

// UnmarshalYAML parses a duration string like "10s" or "5m30s".
func (d *Duration) UnmarshalYAML(unmarshal func(any) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	if s == "" {
		return nil
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	d.Duration = parsed
	return nil
}

// ApplyEnv overrides fields with SNAPASK_* variables that are set. LLM
// variables are applied by LLMConfig.
func (c *Config) ApplyEnv() {
	set := func(dst *string, key string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	setInt := func(dst *int, key string) {
		if v := os.Getenv(key); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				*dst = n
			}
		}
	}

	set(&c.Device.Bridge, "SNAPASK_BRIDGE_URL")
	set(&c.Device.Capture, "SNAPASK_CAPTURE")
	setInt(&c.Window.Size, "SNAPASK_WINDOW_SIZE")
	setInt(&c.Agent.MaxPhotos, "SNAPASK_MAX_PHOTOS")
	set(&c.Agent.Model, "SNAPASK_MODEL")
	set(&c.Server.Addr, "SNAPASK_ADDR")
	set(&c.Log.Level, "SNAPASK_LOG_LEVEL")
	set(&c.Log.Format, "SNAPASK_LOG_FORMAT")
	set(&c.DB.Path, "SNAPASK_DB")
}

// Validate checks values that would otherwise fail late.
func (c *Config) Validate() error {
	if _, err := llm.ParseVariant(c.Agent.Model); err != nil {
		return fmt.Errorf("agent.model: %w", err)
	}
	switch c.Device.Capture {
	case "", "once", "interval":
	default:
		return fmt.Errorf("device.capture: must be once or interval, got %q", c.Device.Capture)
	}
	if c.Window.Size < 0 {
		return fmt.Errorf("window.size: must not be negative")
	}
	if c.Agent.MaxPhotos < 0 {
		return fmt.Errorf("agent.max_photos: must not be negative")
	}
	return nil
}

// Variant returns the configured initial model variant.
func (c *Config) Variant() llm.Variant {
	v, err := llm.ParseVariant(c.Agent.Model)
	if err != nil {
		return llm.VariantRemote
	}
	return v
}

// LLMConfig builds the provider configuration: llm defaults, then file
// values, then SNAPASK_* variables, then standard vendor key variables
// such as OPENAI_API_KEY when the remote backend is still not configured.
func (c *Config) LLMConfig() llm.Config {
	out := llm.DefaultConfig()
	f := c.LLM

	set := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}

	set(&out.Provider, f.Provider)
	if f.Timeout.Duration > 0 {
		out.Timeout = f.Timeout.Duration
	}

	set(&out.Anthropic.APIKey, f.Anthropic.APIKey)
	set(&out.Anthropic.Model, f.Anthropic.Model)

	set(&out.OpenAI.APIKey, f.OpenAI.APIKey)
	set(&out.OpenAI.Model, f.OpenAI.Model)
	set(&out.OpenAI.BaseURL, f.OpenAI.BaseURL)

	set(&out.Gemini.APIKey, f.Gemini.APIKey)
	set(&out.Gemini.Model, f.Gemini.Model)

	set(&out.OpenRouter.APIKey, f.OpenRouter.APIKey)
	set(&out.OpenRouter.Model, f.OpenRouter.Model)
	set(&out.OpenRouter.BaseURL, f.OpenRouter.BaseURL)

	set(&out.Local.APIKey, f.Local.APIKey)
	set(&out.Local.Model, f.Local.Model)
	set(&out.Local.BaseURL, f.Local.BaseURL)

	set(&out.TextOnly.Provider, f.Text.Provider)
	set(&out.TextOnly.Model, f.Text.Model)

	out.ApplyEnv()

	// Fall back to the vendors' own key variables when nothing is set up.
	if !out.IsConfigured(llm.VariantRemote) {
		if found, ok := llm.DiscoverConfig(); ok {
			out.Provider = found.Provider
			out.Anthropic.APIKey = found.Anthropic.APIKey
			out.OpenAI.APIKey = found.OpenAI.APIKey
			out.Gemini.APIKey = found.Gemini.APIKey
			out.OpenRouter.APIKey = found.OpenRouter.APIKey
		}
	}
	return out
}
