package llm

import (
	"fmt"
	"os"
	"time"
)

// Provider names accepted in Config.Provider.
const (
	ProviderAnthropic  = "anthropic"
	ProviderOpenAI     = "openai"
	ProviderGemini     = "gemini"
	ProviderOpenRouter = "openrouter"
	ProviderMock       = "mock"
)

// Config holds all LLM provider configuration.
type Config struct {
	// Provider selects the backend: anthropic, openai, gemini, openrouter, mock.
	Provider string

	Anthropic  AnthropicConfig
	OpenAI     OpenAIConfig
	Gemini     GeminiConfig
	OpenRouter OpenRouterConfig

	// Retry is used by callers that do not bring their own policy (the
	// quality rater). Plugins retry according to the run settings.
	Retry RetryConfig

	// Timeout bounds a single request. Zero disables the bound.
	Timeout time.Duration
}

// AnthropicConfig holds Anthropic-specific configuration.
type AnthropicConfig struct {
	APIKey string
	Model  string // Default: "claude-haiku"
}

// OpenAIConfig holds OpenAI-specific configuration.
type OpenAIConfig struct {
	APIKey  string
	Model   string // Default: "gpt-4o-mini"
	BaseURL string // Optional override for OpenAI-compatible APIs.
}

// GeminiConfig holds Gemini-specific configuration.
type GeminiConfig struct {
	APIKey string
	Model  string // Default: "gemini-flash"
}

// OpenRouterConfig holds OpenRouter-specific configuration.
type OpenRouterConfig struct {
	APIKey  string
	Model   string // Default: "google/gemini-2.0-flash-001"
	BaseURL string // Default: "https://openrouter.ai/api/v1"
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Provider:   ProviderAnthropic,
		Anthropic:  AnthropicConfig{Model: "claude-haiku"},
		OpenAI:     OpenAIConfig{Model: "gpt-4o-mini"},
		Gemini:     GeminiConfig{Model: "gemini-flash"},
		OpenRouter: OpenRouterConfig{Model: "google/gemini-2.0-flash-001"},
		Retry: RetryConfig{
			MaxAttempts: 3,
			InitialWait: 500 * time.Millisecond,
			MaxWait:     10 * time.Second,
			Multiplier:  2.0,
			Jitter:      0.2,
		},
		Timeout: 45 * time.Second,
	}
}

// HasKey reports whether the selected provider has credentials.
func (c Config) HasKey() bool {
	return c.Validate() == nil
}

// DiscoverConfig fills in the vendor API key from the standard environment
// variables (GEMINI_API_KEY, OPENAI_API_KEY, ANTHROPIC_API_KEY,
// OPENROUTER_API_KEY) when base has none for its provider. If the selected
// provider still has no key, the first vendor with a key wins.
func DiscoverConfig(base Config) (Config, bool) {
	cfg := base
	if cfg.HasKey() {
		return cfg, true
	}

	probes := []struct {
		env      string
		provider string
		set      func(*Config, string)
	}{
		{"GEMINI_API_KEY", ProviderGemini, func(c *Config, k string) { c.Gemini.APIKey = k }},
		{"OPENAI_API_KEY", ProviderOpenAI, func(c *Config, k string) { c.OpenAI.APIKey = k }},
		{"ANTHROPIC_API_KEY", ProviderAnthropic, func(c *Config, k string) { c.Anthropic.APIKey = k }},
		{"OPENROUTER_API_KEY", ProviderOpenRouter, func(c *Config, k string) { c.OpenRouter.APIKey = k }},
	}

	// Prefer the configured provider's own vendor variable.
	for _, p := range probes {
		if p.provider != cfg.Provider {
			continue
		}
		if k := os.Getenv(p.env); k != "" {
			p.set(&cfg, k)
			return cfg, true
		}
	}
	for _, p := range probes {
		if k := os.Getenv(p.env); k != "" {
			cfg.Provider = p.provider
			p.set(&cfg, k)
			return cfg, true
		}
	}
	return base, false
}

// Validate checks that the selected provider has its required API key set.
func (c Config) Validate() error {
	switch c.Provider {
	case ProviderAnthropic:
		if c.Anthropic.APIKey == "" {
			return fmt.Errorf("an Anthropic API key is required (CODEQUIZ_LLM_ANTHROPIC_API_KEY or ANTHROPIC_API_KEY)")
		}
	case ProviderOpenAI:
		if c.OpenAI.APIKey == "" {
			return fmt.Errorf("an OpenAI API key is required (CODEQUIZ_LLM_OPENAI_API_KEY or OPENAI_API_KEY)")
		}
	case ProviderGemini:
		if c.Gemini.APIKey == "" {
			return fmt.Errorf("a Gemini API key is required (CODEQUIZ_LLM_GEMINI_API_KEY or GEMINI_API_KEY)")
		}
	case ProviderOpenRouter:
		if c.OpenRouter.APIKey == "" {
			return fmt.Errorf("an OpenRouter API key is required (CODEQUIZ_LLM_OPENROUTER_API_KEY or OPENROUTER_API_KEY)")
		}
	case ProviderMock:
	default:
		return fmt.Errorf("unknown LLM provider: %q", c.Provider)
	}
	return nil
}
