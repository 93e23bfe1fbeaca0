package llm

import (
	"fmt"
	"os"
	"strings"
	"time"
)

// Config selects a vendor and tunes the retry and timeout decorators.
type Config struct {
	// Provider is one of gemini, anthropic, openai, openrouter or mock.
	Provider string `yaml:"provider"`

	Anthropic  AnthropicConfig  `yaml:"anthropic"`
	OpenAI     OpenAIConfig     `yaml:"openai"`
	Gemini     GeminiConfig     `yaml:"gemini"`
	OpenRouter OpenRouterConfig `yaml:"openrouter"`
	Retry      RetryConfig      `yaml:"retry"`

	// Timeout bounds one gateway call, all retries included.
	Timeout time.Duration `yaml:"timeout"`
}

type AnthropicConfig struct {
	APIKey string `yaml:"api_key"`
	Model  string `yaml:"model"`
}

type OpenAIConfig struct {
	APIKey string `yaml:"api_key"`
	Model  string `yaml:"model"`
	// BaseURL points the client at an OpenAI-compatible server.
	BaseURL string `yaml:"base_url"`
}

type GeminiConfig struct {
	APIKey string `yaml:"api_key"`
	Model  string `yaml:"model"`
}

type OpenRouterConfig struct {
	APIKey  string `yaml:"api_key"`
	Model   string `yaml:"model"`
	BaseURL string `yaml:"base_url"`
}

// RetryConfig shapes RetryProvider's backoff. Wait n is
// InitialWait*Multiplier^n, capped at MaxWait, with ±20% jitter.
type RetryConfig struct {
	MaxAttempts int           `yaml:"max_attempts"`
	InitialWait time.Duration `yaml:"initial_wait"`
	MaxWait     time.Duration `yaml:"max_wait"`
	Multiplier  float64       `yaml:"multiplier"`
}

// DefaultConfig targets Gemini Flash with three attempts inside 30s.
func DefaultConfig() Config {
	return Config{
		Provider:   "gemini",
		Anthropic:  AnthropicConfig{Model: "claude-haiku"},
		OpenAI:     OpenAIConfig{Model: "gpt-4o-mini"},
		Gemini:     GeminiConfig{Model: "gemini-flash"},
		OpenRouter: OpenRouterConfig{Model: "google/gemini-2.5-flash"},
		Retry: RetryConfig{
			MaxAttempts: 3,
			InitialWait: time.Second,
			MaxWait:     10 * time.Second,
			Multiplier:  2,
		},
		Timeout: 30 * time.Second,
	}
}

type envBinding struct {
	name string
	dst  *string
}

// envBindings lists the TRAVERSE_* variables ApplyEnv reads and the field
// each one sets.
func (cfg *Config) envBindings() []envBinding {
	return []envBinding{
		{"TRAVERSE_LLM_PROVIDER", &cfg.Provider},
		{"TRAVERSE_ANTHROPIC_API_KEY", &cfg.Anthropic.APIKey},
		{"TRAVERSE_ANTHROPIC_MODEL", &cfg.Anthropic.Model},
		{"TRAVERSE_OPENAI_API_KEY", &cfg.OpenAI.APIKey},
		{"TRAVERSE_OPENAI_MODEL", &cfg.OpenAI.Model},
		{"TRAVERSE_OPENAI_BASE_URL", &cfg.OpenAI.BaseURL},
		{"TRAVERSE_GEMINI_API_KEY", &cfg.Gemini.APIKey},
		{"TRAVERSE_GEMINI_MODEL", &cfg.Gemini.Model},
		{"TRAVERSE_OPENROUTER_API_KEY", &cfg.OpenRouter.APIKey},
		{"TRAVERSE_OPENROUTER_MODEL", &cfg.OpenRouter.Model},
	}
}

// ApplyEnv overwrites fields whose TRAVERSE_* variable is set and non-empty.
func (cfg *Config) ApplyEnv() {
	for _, b := range cfg.envBindings() {
		if v := os.Getenv(b.name); v != "" {
			*b.dst = v
		}
	}
}

// vendorKeys is the order DiscoverConfig tries the vendors' own key
// variables in.
var vendorKeys = []struct {
	env      string
	provider string
}{
	{"GEMINI_API_KEY", "gemini"},
	{"GOOGLE_API_KEY", "gemini"},
	{"OPENAI_API_KEY", "openai"},
	{"ANTHROPIC_API_KEY", "anthropic"},
	{"OPENROUTER_API_KEY", "openrouter"},
}

// DiscoverConfig returns defaults for the first vendor whose standard key
// variable is set, and false when none is.
func DiscoverConfig() (Config, bool) {
	for _, k := range vendorKeys {
		key := os.Getenv(k.env)
		if key == "" {
			continue
		}
		cfg := DefaultConfig()
		cfg.Provider = k.provider
		*cfg.apiKey() = key
		return cfg, true
	}
	return Config{}, false
}

// apiKey points at the key field of the selected provider, or nil for mock
// and unknown providers.
func (cfg *Config) apiKey() *string {
	switch cfg.Provider {
	case "anthropic":
		return &cfg.Anthropic.APIKey
	case "openai":
		return &cfg.OpenAI.APIKey
	case "gemini":
		return &cfg.Gemini.APIKey
	case "openrouter":
		return &cfg.OpenRouter.APIKey
	}
	return nil
}

// Validate checks that the selected provider is known and has a key.
func (cfg Config) Validate() error {
	if cfg.Provider == "mock" {
		return nil
	}
	key := cfg.apiKey()
	if key == nil {
		return fmt.Errorf("unknown LLM provider: %q", cfg.Provider)
	}
	if *key == "" {
		return fmt.Errorf("TRAVERSE_%s_API_KEY is required for the %s provider", strings.ToUpper(cfg.Provider), cfg.Provider)
	}
	return nil
}
