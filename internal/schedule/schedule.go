// Package schedule turns plugins and chunks into a budget-capped, shuffled
// and type-fair list of work items.
package schedule

import (
	"math/rand/v2"

	"github.com/abhisek/codequiz/internal/plugin"
	"github.com/abhisek/codequiz/internal/quiz"
)

// fairnessRounds is how many strict one-per-type rounds open the schedule.
const fairnessRounds = 2

// WorkItem is one scheduled plugin call on one chunk.
type WorkItem struct {
	Plugin plugin.Plugin
	Chunk  string

	// ChunkIndex is the chunk's position in the caller's input.
	ChunkIndex int

	// Seq is the item's position in the schedule.
	Seq int
}

// Type returns the question type the item produces.
func (w WorkItem) Type() quiz.Type {
	return w.Plugin.Type()
}

// Budget returns how many items Schedule produces: min(maxCalls, total).
// A non-positive maxCalls means no cap.
func Budget(maxCalls, total int) int {
	if maxCalls <= 0 || maxCalls > total {
		return total
	}
	return maxCalls
}

// Schedule builds the work list for one run. The full plugins x chunks
// cross product is shuffled, split into per-type queues, and drained
// round-robin in plugin order until the budget is used. The first
// fairnessRounds rounds guarantee every type gets an early slot; after that
// types whose queues run dry are skipped and the rest keep draining.
//
// rng may be nil, in which case a randomly seeded source is used.
func Schedule(chunks []string, plugins []plugin.Plugin, maxCalls int, rng *rand.Rand) []WorkItem {
	if len(chunks) == 0 || len(plugins) == 0 {
		return nil
	}
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}

	order := rng.Perm(len(chunks))

	cross := make([]WorkItem, 0, len(chunks)*len(plugins))
	for _, p := range plugins {
		for _, ci := range order {
			cross = append(cross, WorkItem{Plugin: p, Chunk: chunks[ci], ChunkIndex: ci})
		}
	}
	rng.Shuffle(len(cross), func(i, j int) { cross[i], cross[j] = cross[j], cross[i] })

	types, queues := partition(plugins, cross)
	budget := Budget(maxCalls, len(cross))
	out := make([]WorkItem, 0, budget)

	take := func(t quiz.Type) bool {
		q := queues[t]
		if len(q) == 0 || len(out) == budget {
			return false
		}
		item := q[0]
		queues[t] = q[1:]
		item.Seq = len(out)
		out = append(out, item)
		return true
	}

	for range fairnessRounds {
		for _, t := range types {
			take(t)
		}
	}

	for len(out) < budget {
		progressed := false
		for _, t := range types {
			if take(t) {
				progressed = true
			}
		}
		if !progressed {
			break
		}
	}
	return out
}

// partition splits items into per-type queues keeping their relative
// order. Types are returned in first-seen plugin order.
func partition(plugins []plugin.Plugin, items []WorkItem) ([]quiz.Type, map[quiz.Type][]WorkItem) {
	var types []quiz.Type
	queues := make(map[quiz.Type][]WorkItem, len(plugins))
	for _, p := range plugins {
		t := p.Type()
		if _, ok := queues[t]; !ok {
			types = append(types, t)
			queues[t] = nil
		}
	}
	for _, it := range items {
		t := it.Type()
		queues[t] = append(queues[t], it)
	}
	return types, queues
}
