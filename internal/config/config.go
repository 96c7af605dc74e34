// Package config loads codequiz configuration from defaults, an optional
// YAML file and CODEQUIZ_* environment variables, in increasing priority.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/abhisek/codequiz/internal/llm"
	"github.com/abhisek/codequiz/internal/logging"
	"github.com/abhisek/codequiz/internal/orchestrator"
	"github.com/abhisek/codequiz/internal/plugin"
	"github.com/abhisek/codequiz/internal/quiz"
)

// EnvPrefix prefixes every environment override, e.g.
// CODEQUIZ_GENERATION_CONCURRENCY.
const EnvPrefix = "CODEQUIZ"

// Config holds the application configuration.
type Config struct {
	Generation GenerationConfig `mapstructure:"generation"`
	Quality    QualityConfig    `mapstructure:"quality"`
	LLM        LLMConfig        `mapstructure:"llm"`
	Log        LogConfig        `mapstructure:"log"`
	Server     ServerConfig     `mapstructure:"server"`
	Store      StoreConfig      `mapstructure:"store"`
	Publish    PublishConfig    `mapstructure:"publish"`
}

// GenerationConfig holds run settings.
type GenerationConfig struct {
	Concurrency   int                      `mapstructure:"concurrency"`
	MaxCalls      int                      `mapstructure:"max_calls"`
	Timeout       time.Duration            `mapstructure:"timeout"`
	Timeouts      map[string]time.Duration `mapstructure:"timeouts"` // keyed by question type
	RetryAttempts int                      `mapstructure:"retry_attempts"`
	RetryBackoff  time.Duration            `mapstructure:"retry_backoff"`
}

// QualityConfig holds quality gate settings.
type QualityConfig struct {
	// Enabled false accepts every structurally valid candidate.
	Enabled bool `mapstructure:"enabled"`

	// Provider and Model override the generation provider for ratings.
	Provider string `mapstructure:"provider"`
	Model    string `mapstructure:"model"`
}

// LLMConfig holds provider selection and credentials.
type LLMConfig struct {
	Provider   string        `mapstructure:"provider"`
	Timeout    time.Duration `mapstructure:"timeout"`
	Anthropic  VendorConfig  `mapstructure:"anthropic"`
	OpenAI     VendorConfig  `mapstructure:"openai"`
	Gemini     VendorConfig  `mapstructure:"gemini"`
	OpenRouter VendorConfig  `mapstructure:"openrouter"`
}

// VendorConfig holds one vendor's settings.
type VendorConfig struct {
	APIKey  string `mapstructure:"api_key"`
	Model   string `mapstructure:"model"`
	BaseURL string `mapstructure:"base_url"`
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr         string `mapstructure:"addr"`
	MaxQuestions int    `mapstructure:"max_questions"`
}

// StoreConfig holds the SQLite location. Empty means the default path.
type StoreConfig struct {
	Path string `mapstructure:"path"`
}

// PublishConfig selects the Pub/Sub topic accepted questions go to.
type PublishConfig struct {
	Project string `mapstructure:"project"`
	Topic   string `mapstructure:"topic"`
}

// Load reads configuration. An empty path looks for codequiz.yaml in the
// working directory and $HOME/.config/codequiz; a missing file is fine
// then. An explicit path must exist.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("codequiz")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/codequiz")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// setDefaults configures default values. Every key needs one so that
// environment overrides are seen by Unmarshal.
func setDefaults(v *viper.Viper) {
	def := orchestrator.DefaultSettings()
	v.SetDefault("generation.concurrency", def.Concurrency)
	v.SetDefault("generation.max_calls", def.MaxCalls)
	v.SetDefault("generation.timeout", def.DefaultTimeout)
	for t, d := range def.Timeouts {
		v.SetDefault("generation.timeouts."+string(t), d)
	}
	v.SetDefault("generation.retry_attempts", def.Retry.Attempts)
	v.SetDefault("generation.retry_backoff", def.Retry.BackoffBase)

	v.SetDefault("quality.enabled", true)
	v.SetDefault("quality.provider", "")
	v.SetDefault("quality.model", "")

	llmDef := llm.DefaultConfig()
	v.SetDefault("llm.provider", llmDef.Provider)
	v.SetDefault("llm.timeout", llmDef.Timeout)
	vendors := map[string]VendorConfig{
		"anthropic":  {Model: llmDef.Anthropic.Model},
		"openai":     {Model: llmDef.OpenAI.Model, BaseURL: llmDef.OpenAI.BaseURL},
		"gemini":     {Model: llmDef.Gemini.Model},
		"openrouter": {Model: llmDef.OpenRouter.Model, BaseURL: llmDef.OpenRouter.BaseURL},
	}
	for name, vc := range vendors {
		v.SetDefault("llm."+name+".api_key", "")
		v.SetDefault("llm."+name+".model", vc.Model)
		v.SetDefault("llm."+name+".base_url", vc.BaseURL)
	}

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.max_questions", 50)

	v.SetDefault("store.path", "")

	v.SetDefault("publish.project", "")
	v.SetDefault("publish.topic", "")
}

// Validate checks values that cannot be defaulted away.
func (c *Config) Validate() error {
	g := c.Generation
	if g.Concurrency < 1 {
		return fmt.Errorf("generation.concurrency must be at least 1, got %d", g.Concurrency)
	}
	if g.MaxCalls < 1 {
		return fmt.Errorf("generation.max_calls must be at least 1, got %d", g.MaxCalls)
	}
	if g.RetryAttempts < 1 {
		return fmt.Errorf("generation.retry_attempts must be at least 1, got %d", g.RetryAttempts)
	}
	for name := range g.Timeouts {
		if _, err := quiz.ParseType(name); err != nil {
			return fmt.Errorf("generation.timeouts: %w", err)
		}
	}
	if (c.Publish.Project == "") != (c.Publish.Topic == "") {
		return fmt.Errorf("publish.project and publish.topic must be set together")
	}
	return nil
}

// Settings converts the generation section to run settings.
func (c *Config) Settings() orchestrator.Settings {
	g := c.Generation
	timeouts := make(map[quiz.Type]time.Duration, len(g.Timeouts))
	for name, d := range g.Timeouts {
		if t, err := quiz.ParseType(name); err == nil {
			timeouts[t] = d
		}
	}
	return orchestrator.Settings{
		Concurrency:    g.Concurrency,
		MaxCalls:       g.MaxCalls,
		Timeouts:       timeouts,
		DefaultTimeout: g.Timeout,
		Retry: plugin.RetryPolicy{
			Attempts:    g.RetryAttempts,
			BackoffBase: g.RetryBackoff,
		},
	}
}

// GenerationLLM returns the provider config for question plugins. Keys
// missing from the configuration are looked up in the vendors' standard
// environment variables; ok is false when none is found.
func (c *Config) GenerationLLM() (llm.Config, bool) {
	return llm.DiscoverConfig(c.baseLLM(c.LLM.Provider, ""))
}

// QualityLLM returns the provider config for the quality rater. It equals
// GenerationLLM unless quality.provider or quality.model is set.
func (c *Config) QualityLLM() (llm.Config, bool) {
	provider := c.Quality.Provider
	if provider == "" {
		provider = c.LLM.Provider
	}
	return llm.DiscoverConfig(c.baseLLM(provider, c.Quality.Model))
}

func (c *Config) baseLLM(provider, model string) llm.Config {
	cfg := llm.DefaultConfig()
	cfg.Provider = provider
	if c.LLM.Timeout > 0 {
		cfg.Timeout = c.LLM.Timeout
	}

	cfg.Anthropic.APIKey = c.LLM.Anthropic.APIKey
	cfg.Anthropic.Model = or(c.LLM.Anthropic.Model, cfg.Anthropic.Model)
	cfg.OpenAI.APIKey = c.LLM.OpenAI.APIKey
	cfg.OpenAI.Model = or(c.LLM.OpenAI.Model, cfg.OpenAI.Model)
	cfg.OpenAI.BaseURL = or(c.LLM.OpenAI.BaseURL, cfg.OpenAI.BaseURL)
	cfg.Gemini.APIKey = c.LLM.Gemini.APIKey
	cfg.Gemini.Model = or(c.LLM.Gemini.Model, cfg.Gemini.Model)
	cfg.OpenRouter.APIKey = c.LLM.OpenRouter.APIKey
	cfg.OpenRouter.Model = or(c.LLM.OpenRouter.Model, cfg.OpenRouter.Model)
	cfg.OpenRouter.BaseURL = or(c.LLM.OpenRouter.BaseURL, cfg.OpenRouter.BaseURL)

	if model != "" {
		switch provider {
		case llm.ProviderAnthropic:
			cfg.Anthropic.Model = model
		case llm.ProviderOpenAI:
			cfg.OpenAI.Model = model
		case llm.ProviderGemini:
			cfg.Gemini.Model = model
		case llm.ProviderOpenRouter:
			cfg.OpenRouter.Model = model
		}
	}
	return cfg
}

// Logging returns the logger settings.
func (c *Config) Logging() logging.Config {
	cfg := logging.DefaultConfig()
	cfg.Level = c.Log.Level
	cfg.Format = c.Log.Format
	return cfg
}

func or(a, b string) string {
	if a != "" {
		return a
	}
	return b
}
