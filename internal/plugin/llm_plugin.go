package plugin

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/abhisek/codequiz/internal/llm"
	"github.com/abhisek/codequiz/internal/quiz"
)

// Config controls an LLMPlugin.
type Config struct {
	// MaxTokens is the token budget for one generation response.
	MaxTokens int

	// Temperature controls output randomness (0.0-1.0).
	Temperature float64

	// MaxPerCall caps how many candidates one call may return. Extra
	// candidates are dropped.
	MaxPerCall int

	Logger *slog.Logger
}

// DefaultConfig returns the recommended generation settings.
func DefaultConfig() Config {
	return Config{
		MaxTokens:   2048,
		Temperature: 0.7,
		MaxPerCall:  5,
	}
}

// LLMPlugin generates questions of one type through an llm.Provider.
type LLMPlugin struct {
	kind     quiz.Type
	provider llm.Provider
	schema   *llm.Schema
	config   Config
	logger   *slog.Logger
}

// NewLLMPlugin creates the generator for type t.
func NewLLMPlugin(provider llm.Provider, t quiz.Type, cfg Config) (*LLMPlugin, error) {
	schema := SchemaFor(t)
	if schema == nil {
		return nil, fmt.Errorf("no generation schema for type %q", t)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &LLMPlugin{
		kind:     t,
		provider: provider,
		schema:   schema,
		config:   cfg,
		logger:   logger.With("plugin", string(t)),
	}, nil
}

// DefaultRegistry registers an LLMPlugin for every quiz type.
func DefaultRegistry(provider llm.Provider, cfg Config) (*Registry, error) {
	reg := NewRegistry()
	for _, t := range quiz.AllTypes() {
		p, err := NewLLMPlugin(provider, t, cfg)
		if err != nil {
			return nil, err
		}
		if err := reg.Register(p); err != nil {
			return nil, err
		}
	}
	return reg, nil
}

func (g *LLMPlugin) Type() quiz.Type { return g.kind }

// generationOutput is the raw LLM response before per-candidate decoding.
type generationOutput struct {
	Questions []json.RawMessage `json:"questions"`
}

// Generate asks the provider for candidates, retrying per p.Retry. Invalid
// candidates are dropped and logged; the rest are returned.
func (g *LLMPlugin) Generate(ctx context.Context, p Params) ([]quiz.Question, error) {
	ctx = llm.WithPurpose(ctx, "generate:"+string(g.kind))
	if p.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.Timeout)
		defer cancel()
	}

	req := llm.Request{
		System:      systemPrompt,
		Messages:    llm.UserMessage(buildUserMessage(g.kind, p)),
		Schema:      g.schema,
		MaxTokens:   g.config.MaxTokens,
		Temperature: g.config.Temperature,
	}

	resp, err := llm.WithRetry(g.provider, p.Retry.RetryConfig()).Generate(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("%s generation failed: %w", g.kind, err)
	}

	var out generationOutput
	if err := json.Unmarshal(resp.Content, &out); err != nil {
		return nil, fmt.Errorf("failed to parse %s response: %w", g.kind, err)
	}

	questions := make([]quiz.Question, 0, len(out.Questions))
	for i, raw := range out.Questions {
		if g.config.MaxPerCall > 0 && len(questions) == g.config.MaxPerCall {
			break
		}
		q, err := g.decode(raw)
		if err != nil {
			g.logger.DebugContext(ctx, "dropping malformed candidate", "index", i, "error", err)
			continue
		}
		questions = append(questions, q)
	}
	return questions, nil
}

func (g *LLMPlugin) decode(raw json.RawMessage) (quiz.Question, error) {
	var head struct {
		Snippet string `json:"snippet"`
	}
	if err := json.Unmarshal(raw, &head); err != nil {
		return quiz.Question{}, err
	}
	payload, err := quiz.NewPayload(g.kind)
	if err != nil {
		return quiz.Question{}, err
	}
	if err := json.Unmarshal(raw, payload); err != nil {
		return quiz.Question{}, err
	}
	q := quiz.Question{Snippet: head.Snippet, Quiz: payload}
	if err := q.Validate(); err != nil {
		return quiz.Question{}, err
	}
	return q, nil
}
