// Package run holds the explicit state of one orchestrator run: target,
// type quotas and counters. A State is owned by a single goroutine (the
// pool's coordinator) and is not safe for concurrent use.
package run

import (
	"maps"
	"slices"
	"time"

	"github.com/abhisek/codequiz/internal/quiz"
)

// Quotas maps a question type to the minimum number of accepted questions
// of that type a run needs before it can complete.
type Quotas map[quiz.Type]int

// QuotasFor gives every requested type a quota of one when the target is
// large enough to hold one question per type. Otherwise no quotas apply and
// the run completes on the target alone.
func QuotasFor(types []quiz.Type, target int) Quotas {
	q := make(Quotas, len(types))
	if len(types) == 0 || target < len(types) {
		return q
	}
	for _, t := range types {
		q[t] = 1
	}
	return q
}

// State tracks progress of one run.
type State struct {
	ID      string
	Target  int
	Quotas  Quotas
	Started time.Time

	Accepted  int
	Rejected  int
	Surplus   int // kept by the gate but not needed
	Calls     int
	Failed    int
	Scheduled int
	PerType   map[quiz.Type]int
}

// New creates the state for a run.
func New(id string, target int, quotas Quotas) *State {
	if quotas == nil {
		quotas = Quotas{}
	}
	return &State{
		ID:      id,
		Target:  target,
		Quotas:  quotas,
		Started: time.Now(),
		PerType: make(map[quiz.Type]int),
	}
}

// RecordCall counts a finished plugin call. failed marks calls that
// errored, panicked or timed out.
func (s *State) RecordCall(failed bool) {
	s.Calls++
	if failed {
		s.Failed++
	}
}

// RecordAccept counts one delivered question of type t.
func (s *State) RecordAccept(t quiz.Type) {
	s.Accepted++
	s.PerType[t]++
}

// RecordReject counts n rejected candidates.
func (s *State) RecordReject(n int) {
	s.Rejected += n
}

// RecordSurplus counts a kept candidate that was not delivered because the
// run no longer needed it.
func (s *State) RecordSurplus() {
	s.Surplus++
}

// Admits reports whether one more question of type t can be delivered
// without crowding out an unmet quota. A question that fills its own
// quota is always admitted; any other needs a free slot under the target
// after reserving one per unmet quota.
func (s *State) Admits(t quiz.Type) bool {
	if s.PerType[t] < s.Quotas[t] {
		return true
	}
	return s.Accepted+1+len(s.QuotaShortfall()) <= s.Target
}

// Complete reports whether the target is reached and every quota is met.
func (s *State) Complete() bool {
	return s.Accepted >= s.Target && len(s.QuotaShortfall()) == 0
}

// QuotaShortfall returns the types whose quota is not met yet, sorted.
func (s *State) QuotaShortfall() []quiz.Type {
	var short []quiz.Type
	for t, want := range s.Quotas {
		if s.PerType[t] < want {
			short = append(short, t)
		}
	}
	slices.Sort(short)
	return short
}

// Snapshot is a copy of the counters safe to hand to other goroutines.
type Snapshot struct {
	ID        string            `json:"id"`
	Target    int               `json:"target"`
	Accepted  int               `json:"accepted"`
	Rejected  int               `json:"rejected"`
	Surplus   int               `json:"surplus"`
	Calls     int               `json:"calls"`
	Failed    int               `json:"failed"`
	Scheduled int               `json:"scheduled"`
	Complete  bool              `json:"complete"`
	PerType   map[quiz.Type]int `json:"per_type"`
	Shortfall []quiz.Type       `json:"quota_shortfall,omitempty"`
	Elapsed   time.Duration     `json:"elapsed_ns"`
}

// Snapshot copies the current counters.
func (s *State) Snapshot() Snapshot {
	return Snapshot{
		ID:        s.ID,
		Target:    s.Target,
		Accepted:  s.Accepted,
		Rejected:  s.Rejected,
		Surplus:   s.Surplus,
		Calls:     s.Calls,
		Failed:    s.Failed,
		Scheduled: s.Scheduled,
		Complete:  s.Complete(),
		PerType:   maps.Clone(s.PerType),
		Shortfall: s.QuotaShortfall(),
		Elapsed:   time.Since(s.Started),
	}
}
