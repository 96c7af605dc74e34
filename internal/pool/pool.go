// Package pool runs scheduled work items with bounded concurrency, judges
// their candidates, and stops as soon as the run is complete.
//
// One coordinator goroutine owns the run state. Tasks only generate and
// judge; every counter update, delivery and stop decision happens on the
// coordinator, so run.State needs no locking.
package pool

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/abhisek/codequiz/internal/metrics"
	"github.com/abhisek/codequiz/internal/plugin"
	"github.com/abhisek/codequiz/internal/quiz"
	"github.com/abhisek/codequiz/internal/run"
	"github.com/abhisek/codequiz/internal/schedule"
)

// Config controls a pool run.
type Config struct {
	// Concurrency bounds simultaneously running tasks. Values below one
	// mean one.
	Concurrency int

	// Limit caps the returned questions. Zero means the run target.
	Limit int

	// Timeout returns the per-call bound for a question type. Nil or a
	// non-positive value means no per-call bound.
	Timeout func(quiz.Type) time.Duration

	// Execute runs one work item. Nil calls the item's plugin with just
	// the chunk.
	Execute func(ctx context.Context, item schedule.WorkItem) ([]quiz.Question, error)

	// Judge decides whether a candidate is kept. It runs inside the task
	// under the run's stop scope. Nil keeps structurally valid candidates.
	Judge func(ctx context.Context, q quiz.Question) bool

	// OnAccept is awaited for every delivered question, in delivery order,
	// before it is added to the result. An error stops the run.
	OnAccept func(ctx context.Context, q quiz.Question) error

	Metrics *metrics.Metrics
	Logger  *slog.Logger
}

// Result is what a pool run produced.
type Result struct {
	Questions []quiz.Question

	// Stopped is set when the run completed or delivery failed, as opposed
	// to running out of work.
	Stopped bool

	// Cancelled is set when the caller's context ended the run.
	Cancelled bool

	// DeliveryErr is the OnAccept error that stopped the run, if any.
	DeliveryErr error
}

type status string

const (
	statusOK        status = "ok"
	statusFailed    status = "failed"
	statusTimeout   status = "timeout"
	statusCancelled status = "cancelled"
	statusPanic     status = "panic"
)

// outcome is what a task reports back to the coordinator.
type outcome struct {
	item     schedule.WorkItem
	status   status
	kept     []quiz.Question
	rejected int
	err      error
	elapsed  time.Duration
}

// Run executes work in order under cfg and returns the delivered questions.
// It returns only after every started task has settled.
func Run(ctx context.Context, work []schedule.WorkItem, state *run.State, cfg Config) Result {
	concurrency := max(1, cfg.Concurrency)
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	limit := cfg.Limit
	if limit <= 0 {
		limit = state.Target
	}

	// Cancelling stopCtx aborts every in-flight task at once.
	stopCtx, stop := context.WithCancel(ctx)
	defer stop()

	outcomes := make(chan outcome, concurrency)
	var (
		res     Result
		next    int
		active  int
		stopped = state.Complete()
	)

	for {
		for !stopped && active < concurrency && next < len(work) && stopCtx.Err() == nil {
			item := work[next]
			next++
			active++
			cfg.Metrics.CallStarted()
			go runTask(stopCtx, item, &cfg, outcomes)
		}
		if active == 0 {
			break
		}

		o := <-outcomes
		active--
		cfg.Metrics.CallFinished()
		cfg.Metrics.ObservePluginCall(string(o.item.Type()), string(o.status), o.elapsed)
		logOutcome(ctx, logger, o)

		state.RecordCall(o.status != statusOK && o.status != statusCancelled)
		if o.status == statusCancelled {
			continue
		}
		state.RecordReject(o.rejected)

		for _, q := range o.kept {
			if stopped || !state.Admits(q.Type()) {
				state.RecordSurplus()
				continue
			}
			if cfg.OnAccept != nil {
				if err := cfg.OnAccept(ctx, q); err != nil {
					logger.WarnContext(ctx, "delivery failed, stopping run", "error", err)
					res.DeliveryErr = err
					stopped = true
					stop()
					continue
				}
			}
			res.Questions = append(res.Questions, q)
			state.RecordAccept(q.Type())
			cfg.Metrics.ObserveAccepted(string(q.Type()))

			if state.Complete() {
				logger.DebugContext(ctx, "run complete, cancelling outstanding work",
					"accepted", state.Accepted, "active", active, "unscheduled", len(work)-next)
				stopped = true
				stop()
			}
		}
	}

	res.Stopped = stopped
	res.Cancelled = ctx.Err() != nil
	if len(res.Questions) > limit {
		res.Questions = res.Questions[:limit]
	}
	return res
}

func runTask(stopCtx context.Context, item schedule.WorkItem, cfg *Config, out chan<- outcome) {
	start := time.Now()
	o := outcome{item: item, status: statusOK}

	defer func() {
		if r := recover(); r != nil {
			o = outcome{item: item, status: statusPanic, err: fmt.Errorf("plugin panic: %v", r)}
		}
		o.elapsed = time.Since(start)
		out <- o
	}()

	ctx, cancel := callContext(stopCtx, cfg.Timeout, item.Type())
	defer cancel()

	questions, err := execute(ctx, item, cfg)
	if err != nil {
		o.err = err
		switch {
		case stopCtx.Err() != nil:
			o.status = statusCancelled
		case errors.Is(ctx.Err(), context.DeadlineExceeded):
			o.status = statusTimeout
		default:
			o.status = statusFailed
		}
		return
	}

	for _, q := range questions {
		if judge(stopCtx, q, cfg) {
			o.kept = append(o.kept, q)
		} else {
			o.rejected++
		}
	}
	// Verdicts reached after the stop fired are meaningless.
	if stopCtx.Err() != nil {
		o.status = statusCancelled
		o.kept = nil
	}
}

func callContext(parent context.Context, timeout func(quiz.Type) time.Duration, t quiz.Type) (context.Context, context.CancelFunc) {
	if timeout != nil {
		if d := timeout(t); d > 0 {
			return context.WithTimeout(parent, d)
		}
	}
	return context.WithCancel(parent)
}

func execute(ctx context.Context, item schedule.WorkItem, cfg *Config) ([]quiz.Question, error) {
	if cfg.Execute != nil {
		return cfg.Execute(ctx, item)
	}
	return item.Plugin.Generate(ctx, plugin.Params{Chunk: item.Chunk})
}

func judge(ctx context.Context, q quiz.Question, cfg *Config) bool {
	if cfg.Judge != nil {
		return cfg.Judge(ctx, q)
	}
	return q.Validate() == nil
}

func logOutcome(ctx context.Context, logger *slog.Logger, o outcome) {
	attrs := []any{
		"type", o.item.Type(),
		"seq", o.item.Seq,
		"chunk", o.item.ChunkIndex,
		"elapsed_ms", o.elapsed.Milliseconds(),
	}
	switch o.status {
	case statusOK:
		logger.DebugContext(ctx, "task finished", append(attrs, "kept", len(o.kept), "rejected", o.rejected)...)
	case statusCancelled:
		logger.DebugContext(ctx, "task cancelled", attrs...)
	case statusPanic:
		logger.ErrorContext(ctx, "task panicked", append(attrs, "error", o.err)...)
	default:
		logger.WarnContext(ctx, "task "+string(o.status), append(attrs, "error", o.err)...)
	}
}
