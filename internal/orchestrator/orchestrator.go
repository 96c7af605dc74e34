// Package orchestrator runs one quiz-generation request end to end: it
// resolves plugins, computes quotas, schedules work, drives the pool and
// records a summary of the run.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/abhisek/codequiz/internal/llm"
	"github.com/abhisek/codequiz/internal/metrics"
	"github.com/abhisek/codequiz/internal/plugin"
	"github.com/abhisek/codequiz/internal/pool"
	"github.com/abhisek/codequiz/internal/quality"
	"github.com/abhisek/codequiz/internal/quiz"
	"github.com/abhisek/codequiz/internal/run"
	"github.com/abhisek/codequiz/internal/schedule"
	"github.com/abhisek/codequiz/internal/store"
)

var (
	// ErrNoChunks is returned when a request carries no non-empty chunk.
	ErrNoChunks = errors.New("no chunks to generate from")

	// ErrNoPlugins is returned when no plugin serves the requested types.
	ErrNoPlugins = errors.New("no plugins for the requested question types")
)

// Gate decides whether a candidate is good enough to keep.
// *quality.Router satisfies it.
type Gate interface {
	ShouldKeep(ctx context.Context, q quiz.Question, premium bool) quality.Verdict
}

// Sink receives each accepted question as soon as it is accepted. Emit is
// awaited before the next question is delivered, so a slow sink slows the
// run down instead of buffering. An error stops the run.
type Sink interface {
	Emit(ctx context.Context, q quiz.Question) error
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(ctx context.Context, q quiz.Question) error

func (f SinkFunc) Emit(ctx context.Context, q quiz.Question) error { return f(ctx, q) }

// MultiSink emits to each sink in turn and stops at the first error.
func MultiSink(sinks ...Sink) Sink {
	return SinkFunc(func(ctx context.Context, q quiz.Question) error {
		for _, s := range sinks {
			if err := s.Emit(ctx, q); err != nil {
				return err
			}
		}
		return nil
	})
}

// Settings are the operational knobs of a run.
type Settings struct {
	Concurrency    int
	MaxCalls       int
	Timeouts       map[quiz.Type]time.Duration
	DefaultTimeout time.Duration
	Retry          plugin.RetryPolicy
}

// DefaultSettings returns the settings used when a request leaves them zero.
func DefaultSettings() Settings {
	return Settings{
		Concurrency:    4,
		MaxCalls:       20,
		DefaultTimeout: 30 * time.Second,
		Timeouts: map[quiz.Type]time.Duration{
			quiz.TypeOrderSequence: 45 * time.Second,
		},
		Retry: plugin.RetryPolicy{Attempts: 3, BackoffBase: 500 * time.Millisecond},
	}
}

// TimeoutFor returns the per-call bound for t.
func (s Settings) TimeoutFor(t quiz.Type) time.Duration {
	if d, ok := s.Timeouts[t]; ok && d > 0 {
		return d
	}
	return s.DefaultTimeout
}

// Request describes one run.
type Request struct {
	Chunks []string

	// Types selects the plugins to run. Empty means every registered type.
	Types []quiz.Type

	// NumQuestions is the number of questions wanted.
	NumQuestions int

	Settings    Settings
	Credentials plugin.Credentials
	Options     plugin.Options

	// Language is attached to questions that come back without one.
	Language string

	// Sink, when set, is fed every accepted question in acceptance order.
	Sink Sink
}

// Result is what a run produced.
type Result struct {
	RunID     string
	Questions []quiz.Question
	Summary   run.Snapshot
}

// Orchestrator runs requests against a plugin registry and a quality gate.
type Orchestrator struct {
	registry *plugin.Registry
	gate     Gate
	runs     store.RunRepo
	metrics  *metrics.Metrics
	logger   *slog.Logger
	rng      func() *rand.Rand
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *Orchestrator) { o.logger = l }
}

// WithMetrics sets the collectors the pool and summary report to.
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

// WithRunRepo persists a summary of every finished run.
func WithRunRepo(r store.RunRepo) Option {
	return func(o *Orchestrator) { o.runs = r }
}

// WithRand fixes the scheduler's randomness. Used by tests.
func WithRand(fn func() *rand.Rand) Option {
	return func(o *Orchestrator) { o.rng = fn }
}

// New creates an Orchestrator. A nil gate keeps every structurally valid
// candidate.
func New(registry *plugin.Registry, gate Gate, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		registry: registry,
		gate:     gate,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Run executes req. Errors are returned only for requests that cannot run
// at all; plugin, filter and timeout failures just shrink the result.
func (o *Orchestrator) Run(ctx context.Context, req Request) (*Result, error) {
	chunks := nonEmpty(req.Chunks)
	if len(chunks) == 0 {
		return &Result{}, ErrNoChunks
	}
	plugins, err := o.registry.Resolve(req.Types)
	if err != nil {
		return &Result{}, fmt.Errorf("%w: %v", ErrNoPlugins, err)
	}
	if len(plugins) == 0 {
		return &Result{}, ErrNoPlugins
	}

	target := max(1, req.NumQuestions)
	settings := withDefaults(req.Settings)

	types := make([]quiz.Type, len(plugins))
	for i, p := range plugins {
		types[i] = p.Type()
	}

	runID := uuid.NewString()
	ctx = llm.WithRunID(ctx, runID)
	logger := o.logger.With("run_id", runID)

	state := run.New(runID, target, run.QuotasFor(types, target))

	var rng *rand.Rand
	if o.rng != nil {
		rng = o.rng()
	}
	work := schedule.Schedule(chunks, plugins, settings.MaxCalls, rng)
	state.Scheduled = len(work)

	logger.InfoContext(ctx, "run started",
		"types", joinTypes(types),
		"target", target,
		"chunks", len(chunks),
		"scheduled", len(work),
		"concurrency", settings.Concurrency)

	params := plugin.Params{
		Options:     req.Options,
		Credentials: req.Credentials,
		Retry:       settings.Retry,
	}

	res := pool.Run(ctx, work, state, pool.Config{
		Concurrency: settings.Concurrency,
		Limit:       target,
		Timeout:     settings.TimeoutFor,
		Execute: func(ctx context.Context, item schedule.WorkItem) ([]quiz.Question, error) {
			p := params
			p.Chunk = item.Chunk
			p.Timeout = settings.TimeoutFor(item.Type())
			questions, err := item.Plugin.Generate(ctx, p)
			for i := range questions {
				if questions[i].Language == "" {
					questions[i].Language = req.Language
				}
			}
			return questions, err
		},
		Judge:    o.judge(req.Credentials.Premium),
		OnAccept: onAccept(req.Sink),
		Metrics:  o.metrics,
		Logger:   logger,
	})

	summary := state.Snapshot()
	o.metrics.ObserveRun(summary.Complete)

	logger.InfoContext(ctx, "run finished",
		"accepted", summary.Accepted,
		"returned", len(res.Questions),
		"rejected", summary.Rejected,
		"surplus", summary.Surplus,
		"calls", summary.Calls,
		"failed", summary.Failed,
		"complete", summary.Complete,
		"cancelled", res.Cancelled,
		"elapsed_ms", summary.Elapsed.Milliseconds())
	if len(summary.Shortfall) > 0 {
		logger.WarnContext(ctx, "quota not met", "types", joinTypes(summary.Shortfall))
	}

	o.persist(ctx, logger, types, summary)

	return &Result{
		RunID:     runID,
		Questions: res.Questions,
		Summary:   summary,
	}, nil
}

func (o *Orchestrator) judge(premium bool) func(context.Context, quiz.Question) bool {
	if o.gate == nil {
		return nil
	}
	return func(ctx context.Context, q quiz.Question) bool {
		return o.gate.ShouldKeep(ctx, q, premium).Keep
	}
}

func onAccept(sink Sink) func(context.Context, quiz.Question) error {
	if sink == nil {
		return nil
	}
	return sink.Emit
}

// persist records the run summary. The run already happened, so a store
// failure is logged rather than returned.
func (o *Orchestrator) persist(ctx context.Context, logger *slog.Logger, types []quiz.Type, s run.Snapshot) {
	if o.runs == nil {
		return
	}
	perType := make(map[string]int, len(s.PerType))
	for t, n := range s.PerType {
		perType[string(t)] = n
	}
	names := make([]string, len(types))
	for i, t := range types {
		names[i] = string(t)
	}
	// The caller may have gone away; the summary is still worth keeping.
	ctx = context.WithoutCancel(ctx)
	err := o.runs.SaveRun(ctx, store.RunSummary{
		ID:         s.ID,
		StartedAt:  time.Now().Add(-s.Elapsed),
		FinishedAt: time.Now(),
		Types:      names,
		Target:     s.Target,
		Accepted:   s.Accepted,
		Rejected:   s.Rejected,
		Calls:      s.Calls,
		Failed:     s.Failed,
		Scheduled:  s.Scheduled,
		Complete:   s.Complete,
		PerType:    perType,
	})
	if err != nil {
		logger.WarnContext(ctx, "failed to save run summary", "error", err)
	}
}

func withDefaults(s Settings) Settings {
	def := DefaultSettings()
	if s.Concurrency <= 0 {
		s.Concurrency = def.Concurrency
	}
	if s.MaxCalls <= 0 {
		s.MaxCalls = def.MaxCalls
	}
	if s.DefaultTimeout <= 0 {
		s.DefaultTimeout = def.DefaultTimeout
	}
	if s.Timeouts == nil {
		s.Timeouts = def.Timeouts
	}
	if s.Retry.Attempts <= 0 {
		s.Retry.Attempts = def.Retry.Attempts
	}
	if s.Retry.BackoffBase <= 0 {
		s.Retry.BackoffBase = def.Retry.BackoffBase
	}
	return s
}

func nonEmpty(chunks []string) []string {
	out := make([]string, 0, len(chunks))
	for _, c := range chunks {
		if strings.TrimSpace(c) != "" {
			out = append(out, c)
		}
	}
	return out
}

func joinTypes(types []quiz.Type) string {
	s := make([]string, len(types))
	for i, t := range types {
		s[i] = string(t)
	}
	return strings.Join(s, ",")
}
