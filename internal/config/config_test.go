package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abhisek/codequiz/internal/llm"
	"github.com/abhisek/codequiz/internal/quiz"
)

// clearVendorEnv hides any real API keys from DiscoverConfig.
func clearVendorEnv(t *testing.T) {
	for _, k := range []string{"GEMINI_API_KEY", "OPENAI_API_KEY", "ANTHROPIC_API_KEY", "OPENROUTER_API_KEY"} {
		t.Setenv(k, "")
	}
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "codequiz.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("HOME", t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)

	s := cfg.Settings()
	assert.Equal(t, 4, s.Concurrency)
	assert.Equal(t, 20, s.MaxCalls)
	assert.Equal(t, 30*time.Second, s.DefaultTimeout)
	assert.Equal(t, 45*time.Second, s.TimeoutFor(quiz.TypeOrderSequence))
	assert.Equal(t, 30*time.Second, s.TimeoutFor(quiz.TypeTrueFalse))
	assert.Equal(t, 3, s.Retry.Attempts)
	assert.Equal(t, 500*time.Millisecond, s.Retry.BackoffBase)
	assert.True(t, cfg.Quality.Enabled)
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, "info", cfg.Logging().Level)
}

func TestLoad_FileAndEnv(t *testing.T) {
	path := writeConfig(t, `
generation:
  concurrency: 8
  timeouts:
    fill-blank: 10s
quality:
  enabled: true
llm:
  provider: openai
  openai:
    model: gpt-test
`)
	t.Setenv("CODEQUIZ_GENERATION_MAX_CALLS", "7")
	t.Setenv("CODEQUIZ_QUALITY_ENABLED", "false")
	t.Setenv("CODEQUIZ_LLM_OPENAI_API_KEY", "sk-test")

	cfg, err := Load(path)
	require.NoError(t, err)

	s := cfg.Settings()
	assert.Equal(t, 8, s.Concurrency)
	assert.Equal(t, 7, s.MaxCalls)
	assert.Equal(t, 10*time.Second, s.TimeoutFor(quiz.TypeFillBlank))
	assert.False(t, cfg.Quality.Enabled)

	gen, ok := cfg.GenerationLLM()
	require.True(t, ok)
	assert.Equal(t, llm.ProviderOpenAI, gen.Provider)
	assert.Equal(t, "sk-test", gen.OpenAI.APIKey)
	assert.Equal(t, "gpt-test", gen.OpenAI.Model)
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"zero concurrency", "generation:\n  concurrency: 0\n", "concurrency"},
		{"unknown timeout type", "generation:\n  timeouts:\n    essay: 5s\n", "timeouts"},
		{"half publish", "publish:\n  topic: quiz\n", "publish"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestQualityLLM_Override(t *testing.T) {
	clearVendorEnv(t)
	path := writeConfig(t, `
llm:
  provider: anthropic
  anthropic:
    api_key: ak
  gemini:
    api_key: gk
quality:
  provider: gemini
  model: gemini-pro
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	gen, ok := cfg.GenerationLLM()
	require.True(t, ok)
	assert.Equal(t, llm.ProviderAnthropic, gen.Provider)

	q, ok := cfg.QualityLLM()
	require.True(t, ok)
	assert.Equal(t, llm.ProviderGemini, q.Provider)
	assert.Equal(t, "gemini-pro", q.Gemini.Model)
	assert.Equal(t, "gk", q.Gemini.APIKey)
}

func TestGenerationLLM_FallsBackToVendorEnv(t *testing.T) {
	clearVendorEnv(t)
	t.Setenv("GEMINI_API_KEY", "from-env")
	cfg, err := Load(writeConfig(t, "llm:\n  provider: anthropic\n"))
	require.NoError(t, err)

	gen, ok := cfg.GenerationLLM()
	require.True(t, ok)
	assert.Equal(t, llm.ProviderGemini, gen.Provider)
	assert.Equal(t, "from-env", gen.Gemini.APIKey)
}
