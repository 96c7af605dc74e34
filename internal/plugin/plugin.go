// Package plugin defines the contract between the orchestrator and the
// question generators, plus the LLM-backed generator for every quiz type.
package plugin

import (
	"context"
	"time"

	"github.com/abhisek/codequiz/internal/llm"
	"github.com/abhisek/codequiz/internal/quiz"
)

// Plugin generates candidate questions of exactly one type.
//
// Generate must honor ctx: once it is cancelled the call returns promptly
// and makes no further attempts. A failed generation returns an empty list;
// returning an error is treated the same way and never aborts a run.
type Plugin interface {
	Type() quiz.Type
	Generate(ctx context.Context, p Params) ([]quiz.Question, error)
}

// Params is everything a plugin receives for one call.
type Params struct {
	Chunk       string
	Options     Options
	Credentials Credentials

	// Timeout is the per-call bound the orchestrator enforces. Plugins may
	// use it to size their own requests.
	Timeout time.Duration

	Retry RetryPolicy
}

// Options tune what is generated.
type Options struct {
	Difficulty   string // easy, medium, hard
	NumQuestions int    // desired candidates per call
}

// Credentials identify the caller. Premium callers get a stricter quality
// threshold.
type Credentials struct {
	UserID  string
	Premium bool
}

// RetryPolicy bounds a plugin's internal retries.
type RetryPolicy struct {
	// Attempts is the total number of underlying calls, including the first.
	Attempts int

	// BackoffBase is the wait after the first failed attempt. Attempt i
	// waits BackoffBase * 2^i.
	BackoffBase time.Duration
}

// Backoff returns the wait before retry number attempt (0-based).
func (r RetryPolicy) Backoff(attempt int) time.Duration {
	return r.RetryConfig().Backoff(attempt)
}

// RetryConfig converts the policy to the llm retry decorator settings:
// doubling waits, no cap, no jitter.
func (r RetryPolicy) RetryConfig() llm.RetryConfig {
	return llm.RetryConfig{
		MaxAttempts: r.Attempts,
		InitialWait: r.BackoffBase,
		Multiplier:  2,
	}
}

// Func adapts a function to the Plugin interface.
type Func struct {
	Kind quiz.Type
	Fn   func(ctx context.Context, p Params) ([]quiz.Question, error)
}

func (f Func) Type() quiz.Type { return f.Kind }

func (f Func) Generate(ctx context.Context, p Params) ([]quiz.Question, error) {
	return f.Fn(ctx, p)
}
