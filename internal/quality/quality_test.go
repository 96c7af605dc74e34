package quality

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abhisek/codequiz/internal/llm"
	"github.com/abhisek/codequiz/internal/logging"
	"github.com/abhisek/codequiz/internal/metrics"
	"github.com/abhisek/codequiz/internal/quiz"
)

type fixedScorer struct {
	rating Rating
	calls  atomic.Int32
	seen   [][]string
	mu     sync.Mutex
}

func (s *fixedScorer) Score(_ context.Context, _ quiz.Question, criteria []string) Rating {
	s.calls.Add(1)
	s.mu.Lock()
	s.seen = append(s.seen, criteria)
	s.mu.Unlock()
	return s.rating
}

func mcQuestion() quiz.Question {
	return quiz.Question{
		Snippet: "n := len(xs)",
		Quiz: &quiz.MultipleChoice{
			Question:    "What is n when xs is nil?",
			Options:     []string{"0", "panic", "-1"},
			Answer:      0,
			Explanation: "len of a nil slice is 0.",
		},
	}
}

func tfQuestion(statement string) quiz.Question {
	return quiz.Question{Quiz: &quiz.TrueFalse{Statement: statement, Answer: true}}
}

func newTestRouter(s Scorer, opts Options) *Router {
	if opts.Logger == nil {
		opts.Logger = logging.Discard()
	}
	return NewRouter(s, opts)
}

func TestThresholds(t *testing.T) {
	tests := []struct {
		score   int
		premium bool
		keep    bool
	}{
		{6, false, false},
		{7, false, true},
		{7, true, false},
		{8, true, true},
		{10, true, true},
	}
	for _, tt := range tests {
		r := newTestRouter(&fixedScorer{rating: Rating{Score: tt.score}}, Options{})
		v := r.ShouldKeep(context.Background(), mcQuestion(), tt.premium)
		assert.Equal(t, tt.keep, v.Keep, "score %d premium %v", tt.score, tt.premium)
		assert.Equal(t, tt.score, v.Score)
	}
}

func TestScoreBoundsAlwaysHold(t *testing.T) {
	for _, raw := range []int{-50, 0, 1, 5, 10, 11, 1000} {
		r := newTestRouter(&fixedScorer{rating: Rating{Score: raw}}, Options{})
		got := r.Rate(context.Background(), mcQuestion()).Score
		assert.GreaterOrEqual(t, got, MinScore)
		assert.LessOrEqual(t, got, MaxScore)

		v := r.ShouldKeep(context.Background(), mcQuestion(), false)
		assert.GreaterOrEqual(t, v.Score, MinScore)
		assert.LessOrEqual(t, v.Score, MaxScore)
	}
}

func TestFailedRatingIsRejected(t *testing.T) {
	// Even a high score is rejected when the rating failed.
	s := &fixedScorer{rating: Rating{Score: 9, Failed: true, Reasoning: "down"}}
	r := newTestRouter(s, Options{})

	v := r.ShouldKeep(context.Background(), mcQuestion(), false)
	assert.False(t, v.Keep)

	stats := r.Stats()
	require.Len(t, stats, 1)
	assert.Equal(t, 1, stats[0].Failed)
	assert.Equal(t, 1, stats[0].Rejected)
}

func TestPreFilterSkipsRater(t *testing.T) {
	s := &fixedScorer{rating: Rating{Score: 10}}
	r := newTestRouter(s, Options{})

	v := r.ShouldKeep(context.Background(), tfQuestion("The player's health bar is drawn in red."), false)
	assert.False(t, v.Keep)
	assert.True(t, v.PreFiltered)
	assert.Equal(t, MinScore, v.Score)
	assert.Zero(t, s.calls.Load())
}

func TestDisabledAcceptsEverything(t *testing.T) {
	s := &fixedScorer{rating: Rating{Score: 1}}
	_, m := metrics.NewRegistry()
	r := newTestRouter(s, Options{Disabled: true, Metrics: m})

	v := r.ShouldKeep(context.Background(), tfQuestion("Indentation uses tabs or spaces."), true)
	assert.True(t, v.Keep)
	assert.Equal(t, MaxScore, v.Score)
	assert.Zero(t, s.calls.Load())
}

func TestRouterUsesTypeCriteria(t *testing.T) {
	s := &fixedScorer{rating: Rating{Score: 8}}
	r := newTestRouter(s, Options{})
	q := quiz.Question{Quiz: &quiz.OrderSequence{
		Question: "Order the calls.",
		Steps:    []string{"open", "read", "close"},
	}}

	r.ShouldKeep(context.Background(), q, false)
	require.Len(t, s.seen, 1)
	crit := s.seen[0]
	assert.Equal(t, CommonCriteria, crit[:len(CommonCriteria)])
	assert.Contains(t, strings.Join(crit, " "), "execution or dependency order")
}

func TestUnregisteredTypeUsesDefaultFilter(t *testing.T) {
	r := &Router{
		scorer:  &fixedScorer{rating: Rating{Score: 7}},
		logger:  logging.Discard(),
		filters: map[quiz.Type]Filter{},
		def:     newDefaultFilter(),
		stats:   map[quiz.Type]*TypeStats{},
	}
	f := r.FilterFor(quiz.TypeSelectAll)
	assert.Equal(t, quiz.Type(""), f.Type())
	assert.Equal(t, CommonCriteria, f.Criteria())
}

func TestPreFilters(t *testing.T) {
	tests := []struct {
		name string
		q    quiz.Question
		rule string
	}{
		{"nil payload", quiz.Question{}, "structure"},
		{"cosmetic", tfQuestion("The variable is named count."), "cosmetic"},
		{"hedged", tfQuestion("The loop might exit early."), "unverifiable"},
		{"catch-all option", quiz.Question{Quiz: &quiz.MultipleChoice{Question: "Q?", Options: []string{"a", "b", "None of the above"}}}, "catch-all-option"},
		{"whole-line blank", quiz.Question{Quiz: &quiz.FillBlank{Question: "____", Answers: []string{"x := 1"}}}, "whole-line-blank"},
		{"two blanks", quiz.Question{Quiz: &quiz.FillBlank{Question: "____ := ____", Answers: []string{"x"}}}, "multiple-blanks"},
		{"two steps", quiz.Question{Quiz: &quiz.OrderSequence{Question: "Order", Steps: []string{"a", "b"}}}, "too-few-steps"},
		{"no true statement", quiz.Question{Quiz: &quiz.SelectAll{Question: "Which hold?", Statements: []quiz.Statement{{Text: "a"}, {Text: "b"}}}}, "no-true-statement"},
	}
	r := newTestRouter(&fixedScorer{}, Options{})
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rej := r.FilterFor(tt.q.Type()).PreFilter(tt.q)
			require.NotNil(t, rej)
			assert.Equal(t, tt.rule, rej.Rule)
		})
	}

	good := quiz.Question{Quiz: &quiz.FillBlank{Question: "defer ____()", Answers: []string{"f.Close"}}}
	assert.Nil(t, r.FilterFor(quiz.TypeFillBlank).PreFilter(good))
}

func TestStatsAndMetrics(t *testing.T) {
	_, m := metrics.NewRegistry()
	s := &fixedScorer{rating: Rating{Score: 8}}
	r := newTestRouter(s, Options{Metrics: m})
	ctx := context.Background()

	r.ShouldKeep(ctx, mcQuestion(), false)
	r.ShouldKeep(ctx, mcQuestion(), true)
	r.ShouldKeep(ctx, tfQuestion("It prints the player's high score."), false)

	stats := r.Stats()
	require.Len(t, stats, 2)
	assert.Equal(t, quiz.TypeMultipleChoice, stats[0].Type)
	assert.Equal(t, 2, stats[0].Accepted)
	assert.InDelta(t, 8.0, stats[0].AvgScore(), 0.001)
	assert.Equal(t, 1, stats[1].PreFiltered)
}

func TestRater_ParsesAndClamps(t *testing.T) {
	mock := llm.NewMockProvider(llm.MockResponse{Content: json.RawMessage(`{"score":14,"reasoning":"great"}`)})
	r := NewRater(mock, DefaultRaterConfig())

	got := r.Score(context.Background(), mcQuestion(), CommonCriteria)
	assert.Equal(t, Rating{Score: 10, Reasoning: "great"}, got)

	require.Len(t, mock.Calls, 1)
	msg := mock.Calls[0].Messages[0].Content
	assert.Contains(t, msg, "* A) 0")
	assert.Contains(t, msg, "1. "+CommonCriteria[0])
	assert.Equal(t, RatingSchema, mock.Calls[0].Schema)
}

func TestRater_FailsClosed(t *testing.T) {
	fast := DefaultRaterConfig()
	fast.Retry.InitialWait = time.Millisecond

	tests := []struct {
		name string
		resp llm.MockResponse
	}{
		{"provider error", llm.MockResponse{Err: &llm.ErrRequestRejected{Status: 401, Err: errors.New("bad key")}}},
		{"unparseable", llm.MockResponse{Content: json.RawMessage(`not json`)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRater(llm.NewMockProvider(tt.resp), fast)
			got := r.Score(context.Background(), mcQuestion(), CommonCriteria)
			assert.True(t, got.Failed)
			assert.Equal(t, FailClosedScore, got.Score)

			router := newTestRouter(NewRater(llm.NewMockProvider(tt.resp), fast), Options{})
			assert.False(t, router.ShouldKeep(context.Background(), mcQuestion(), false).Keep)
		})
	}
}

func TestRater_SharesConcurrentIdenticalCalls(t *testing.T) {
	release := make(chan struct{})
	var calls atomic.Int32
	mock := llm.NewMockResponder(func(ctx context.Context, _ llm.Request) (*llm.Response, error) {
		calls.Add(1)
		<-release
		return llm.JSONResponse(`{"score":8,"reasoning":"ok"}`), nil
	})
	r := NewRater(mock, DefaultRaterConfig())

	var wg sync.WaitGroup
	results := make([]Rating, 4)
	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = r.Score(context.Background(), mcQuestion(), CommonCriteria)
		}()
	}
	// Give every goroutine time to join the in-flight call.
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
	for _, res := range results {
		assert.Equal(t, 8, res.Score)
	}
}

func TestRater_CancelledContextFailsClosed(t *testing.T) {
	mock := llm.NewMockResponder(func(ctx context.Context, _ llm.Request) (*llm.Response, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})
	r := NewRater(mock, DefaultRaterConfig())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	got := r.Score(ctx, mcQuestion(), CommonCriteria)
	assert.True(t, got.Failed)
	assert.Equal(t, FailClosedScore, got.Score)
}

func TestRater_SharedCallOutlivesCancelledCaller(t *testing.T) {
	started := make(chan struct{}, 1)
	release := make(chan struct{})
	var calls atomic.Int32
	mock := llm.NewMockResponder(func(ctx context.Context, _ llm.Request) (*llm.Response, error) {
		calls.Add(1)
		started <- struct{}{}
		select {
		case <-release:
			return llm.JSONResponse(`{"score":9,"reasoning":"fine"}`), nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	})
	r := NewRater(mock, DefaultRaterConfig())

	firstCtx, cancelFirst := context.WithCancel(context.Background())
	first := make(chan Rating, 1)
	go func() { first <- r.Score(firstCtx, mcQuestion(), CommonCriteria) }()
	<-started

	second := make(chan Rating, 1)
	go func() { second <- r.Score(context.Background(), mcQuestion(), CommonCriteria) }()
	// Let the second caller join the in-flight call before the first leaves.
	time.Sleep(50 * time.Millisecond)

	cancelFirst()
	got := <-first
	assert.True(t, got.Failed)

	close(release)
	got = <-second
	assert.False(t, got.Failed, got.Reasoning)
	assert.Equal(t, 9, got.Score)
	assert.Equal(t, int32(1), calls.Load())
}

func TestRater_RunsDoNotShareCalls(t *testing.T) {
	release := make(chan struct{})
	var calls atomic.Int32
	mock := llm.NewMockResponder(func(ctx context.Context, req llm.Request) (*llm.Response, error) {
		calls.Add(1)
		<-release
		return llm.JSONResponse(`{"score":8,"reasoning":"ok"}`), nil
	})
	r := NewRater(mock, DefaultRaterConfig())

	var wg sync.WaitGroup
	for _, id := range []string{"run-a", "run-b"} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got := r.Score(llm.WithRunID(context.Background(), id), mcQuestion(), CommonCriteria)
			assert.Equal(t, 8, got.Score)
		}()
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(2), calls.Load())
}

func TestRater_LastCallerLeavingCancelsCall(t *testing.T) {
	cancelled := make(chan struct{})
	mock := llm.NewMockResponder(func(ctx context.Context, _ llm.Request) (*llm.Response, error) {
		<-ctx.Done()
		close(cancelled)
		return nil, ctx.Err()
	})
	r := NewRater(mock, DefaultRaterConfig())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	got := r.Score(ctx, mcQuestion(), CommonCriteria)
	assert.True(t, got.Failed)

	select {
	case <-cancelled:
	case <-time.After(time.Second):
		t.Fatal("shared call kept running after its only caller left")
	}
}
