package quality

import (
	"context"
	"log/slog"
	"sort"
	"sync"

	"github.com/abhisek/codequiz/internal/metrics"
	"github.com/abhisek/codequiz/internal/quiz"
)

// Acceptance thresholds. Premium callers get the stricter one.
const (
	StandardThreshold = 7
	PremiumThreshold  = 8
)

// Options configures a Router.
type Options struct {
	// Disabled turns the gate off: every candidate is kept with the top
	// score and the rater is never called.
	Disabled bool

	Metrics *metrics.Metrics
	Logger  *slog.Logger
}

// Verdict is the gate's decision for one candidate.
type Verdict struct {
	Score       int
	Reasoning   string
	Keep        bool
	PreFiltered bool
}

// TypeStats counts gate decisions for one question type.
type TypeStats struct {
	Type        quiz.Type
	Accepted    int
	Rejected    int
	PreFiltered int
	Failed      int // ratings that failed closed; also counted in Rejected
	scoreSum    int
	scored      int
}

// AvgScore returns the mean rater score, or 0 when nothing was rated.
func (s TypeStats) AvgScore() float64 {
	if s.scored == 0 {
		return 0
	}
	return float64(s.scoreSum) / float64(s.scored)
}

// Router dispatches candidates to the filter registered for their type and
// applies the acceptance threshold.
type Router struct {
	scorer  Scorer
	opts    Options
	logger  *slog.Logger
	mu      sync.RWMutex
	filters map[quiz.Type]Filter
	def     Filter

	statsMu sync.Mutex
	stats   map[quiz.Type]*TypeStats
}

// NewRouter creates a router with DefaultFilters registered.
func NewRouter(scorer Scorer, opts Options) *Router {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	r := &Router{
		scorer:  scorer,
		opts:    opts,
		logger:  logger,
		filters: make(map[quiz.Type]Filter),
		def:     newDefaultFilter(),
		stats:   make(map[quiz.Type]*TypeStats),
	}
	for _, f := range DefaultFilters() {
		r.Register(f)
	}
	return r
}

// Register installs f for its type, replacing any previous filter.
func (r *Router) Register(f Filter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.filters[f.Type()] = f
}

// FilterFor returns the filter for t, or the common-criteria fallback.
func (r *Router) FilterFor(t quiz.Type) Filter {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if f, ok := r.filters[t]; ok {
		return f
	}
	return r.def
}

// Threshold returns the minimum score kept for the caller tier.
func Threshold(premium bool) int {
	if premium {
		return PremiumThreshold
	}
	return StandardThreshold
}

// Rate scores q without recording a decision. Pre-filtered candidates get
// MinScore and the rater is not called.
func (r *Router) Rate(ctx context.Context, q quiz.Question) Rating {
	if r.opts.Disabled {
		return Rating{Score: MaxScore, Reasoning: "quality gate disabled"}
	}
	f := r.FilterFor(q.Type())
	if rej := f.PreFilter(q); rej != nil {
		return Rating{Score: MinScore, Reasoning: rej.Reason}
	}
	rating := r.scorer.Score(ctx, q, f.Criteria())
	rating.Score = Clamp(rating.Score)
	return rating
}

// ShouldKeep decides whether q passes the gate for the caller tier and
// records the decision in the stats.
func (r *Router) ShouldKeep(ctx context.Context, q quiz.Question, premium bool) Verdict {
	t := q.Type()
	if r.opts.Disabled {
		r.record(t, func(s *TypeStats) { s.Accepted++ })
		r.opts.Metrics.ObserveVerdict(string(t), metrics.VerdictAccepted, MaxScore)
		return Verdict{Score: MaxScore, Reasoning: "quality gate disabled", Keep: true}
	}

	f := r.FilterFor(t)
	if rej := f.PreFilter(q); rej != nil {
		r.record(t, func(s *TypeStats) { s.PreFiltered++ })
		r.opts.Metrics.ObserveVerdict(string(t), metrics.VerdictPrefiltered, 0)
		r.logger.DebugContext(ctx, "candidate pre-filtered", "type", t, "rule", rej.Rule, "reason", rej.Reason)
		return Verdict{Score: MinScore, Reasoning: rej.Reason, PreFiltered: true}
	}

	rating := r.scorer.Score(ctx, q, f.Criteria())
	score := Clamp(rating.Score)
	keep := !rating.Failed && score >= Threshold(premium)

	verdict := metrics.VerdictRejected
	switch {
	case rating.Failed:
		verdict = metrics.VerdictFailed
	case keep:
		verdict = metrics.VerdictAccepted
	}
	r.record(t, func(s *TypeStats) {
		s.scoreSum += score
		s.scored++
		switch {
		case keep:
			s.Accepted++
		case rating.Failed:
			s.Failed++
			s.Rejected++
		default:
			s.Rejected++
		}
	})
	r.opts.Metrics.ObserveVerdict(string(t), verdict, score)
	if rating.Failed {
		r.logger.WarnContext(ctx, "quality rating failed, rejecting", "type", t, "reason", rating.Reasoning)
	}

	return Verdict{Score: score, Reasoning: rating.Reasoning, Keep: keep}
}

func (r *Router) record(t quiz.Type, fn func(*TypeStats)) {
	r.statsMu.Lock()
	defer r.statsMu.Unlock()
	s, ok := r.stats[t]
	if !ok {
		s = &TypeStats{Type: t}
		r.stats[t] = s
	}
	fn(s)
}

// Stats returns a snapshot of per-type counts sorted by type.
func (r *Router) Stats() []TypeStats {
	r.statsMu.Lock()
	defer r.statsMu.Unlock()
	out := make([]TypeStats, 0, len(r.stats))
	for _, s := range r.stats {
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Type < out[j].Type })
	return out
}
