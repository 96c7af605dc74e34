package quality

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"text/template"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/abhisek/codequiz/internal/llm"
	"github.com/abhisek/codequiz/internal/quiz"
)

// Score bounds. A failed rating is scored FailClosedScore, which is below
// every acceptance threshold.
const (
	MinScore        = 1
	MaxScore        = 10
	FailClosedScore = 5
)

// Rating is the rater's judgement of one candidate.
type Rating struct {
	Score     int
	Reasoning string

	// Failed is set when the rater could not produce a score and
	// FailClosedScore was substituted.
	Failed bool
}

// Scorer rates a candidate against a rubric.
type Scorer interface {
	Score(ctx context.Context, q quiz.Question, criteria []string) Rating
}

// RatingSchema is the response shape the rater asks the LLM for. The score
// is not range-constrained here; out-of-range values are clamped.
var RatingSchema = &llm.Schema{
	Name:        "quality-rating",
	Description: "A 1-10 quality score for a quiz question with a short justification",
	Definition: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"score": map[string]any{
				"type":        "integer",
				"description": "Overall quality from 1 (unusable) to 10 (excellent)",
			},
			"reasoning": map[string]any{
				"type":        "string",
				"description": "One or two sentences naming the criteria that decided the score",
			},
		},
		"required":             []any{"score", "reasoning"},
		"additionalProperties": false,
	},
}

// RaterConfig holds configuration for the LLM rater.
type RaterConfig struct {
	MaxTokens   int
	Temperature float64
	Retry       llm.RetryConfig
}

// DefaultRaterConfig returns sensible defaults.
func DefaultRaterConfig() RaterConfig {
	return RaterConfig{
		MaxTokens:   256,
		Temperature: 0.2,
		Retry: llm.RetryConfig{
			MaxAttempts: 2,
			InitialWait: 500 * time.Millisecond,
			Multiplier:  2,
		},
	}
}

// Rater scores candidates with an LLM. Concurrent requests from the same
// run for the same candidate and rubric share one call.
type Rater struct {
	provider llm.Provider
	cfg      RaterConfig
	group    singleflight.Group

	mu      sync.Mutex
	flights map[string]*flight
}

// flight is the context a shared rating call runs under. It is detached
// from any single caller and cancelled only when its last waiter leaves.
type flight struct {
	ctx     context.Context
	cancel  context.CancelFunc
	waiters int
}

// NewRater creates an LLM-backed rater.
func NewRater(provider llm.Provider, cfg RaterConfig) *Rater {
	return &Rater{
		provider: llm.WithRetry(provider, cfg.Retry),
		cfg:      cfg,
		flights:  make(map[string]*flight),
	}
}

// ratingOutput is the raw LLM response.
type ratingOutput struct {
	Score     int    `json:"score"`
	Reasoning string `json:"reasoning"`
}

// Score rates q. It never fails: any error yields a fail-closed rating.
func (r *Rater) Score(ctx context.Context, q quiz.Question, criteria []string) Rating {
	key, err := ratingKey(q, criteria)
	if err != nil {
		return failClosed(err)
	}

	key = llm.RunIDFrom(ctx) + "/" + key

	f := r.join(ctx, key)
	defer r.leave(key, f)

	ch := r.group.DoChan(key, func() (any, error) {
		return r.rate(f.ctx, q, criteria)
	})
	select {
	case <-ctx.Done():
		return failClosed(ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return failClosed(res.Err)
		}
		return res.Val.(Rating)
	}
}

func (r *Rater) join(ctx context.Context, key string) *flight {
	r.mu.Lock()
	defer r.mu.Unlock()
	f, ok := r.flights[key]
	if !ok {
		fctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
		f = &flight{ctx: fctx, cancel: cancel}
		r.flights[key] = f
	}
	f.waiters++
	return f
}

// leave drops a waiter. The last one out cancels the call and makes the
// group forget it, so later callers start a fresh call instead of joining
// a cancelled one.
func (r *Rater) leave(key string, f *flight) {
	r.mu.Lock()
	defer r.mu.Unlock()
	f.waiters--
	if f.waiters > 0 {
		return
	}
	f.cancel()
	if r.flights[key] == f {
		delete(r.flights, key)
	}
	r.group.Forget(key)
}

func (r *Rater) rate(ctx context.Context, q quiz.Question, criteria []string) (Rating, error) {
	ctx = llm.WithPurpose(ctx, "rate:"+string(q.Type()))

	userMsg, err := buildRatingMessage(q, criteria)
	if err != nil {
		return Rating{}, fmt.Errorf("build rating prompt: %w", err)
	}

	resp, err := r.provider.Generate(ctx, llm.Request{
		System:      ratingSystemPrompt,
		Messages:    llm.UserMessage(userMsg),
		Schema:      RatingSchema,
		MaxTokens:   r.cfg.MaxTokens,
		Temperature: r.cfg.Temperature,
	})
	if err != nil {
		return Rating{}, fmt.Errorf("LLM rating failed: %w", err)
	}

	var raw ratingOutput
	if err := json.Unmarshal(resp.Content, &raw); err != nil {
		return Rating{}, fmt.Errorf("failed to parse rating response: %w", err)
	}
	return Rating{Score: Clamp(raw.Score), Reasoning: raw.Reasoning}, nil
}

// Clamp bounds a score to [MinScore, MaxScore].
func Clamp(score int) int {
	return max(MinScore, min(MaxScore, score))
}

func failClosed(err error) Rating {
	return Rating{
		Score:     FailClosedScore,
		Reasoning: "rating unavailable: " + err.Error(),
		Failed:    true,
	}
}

func ratingKey(q quiz.Question, criteria []string) (string, error) {
	body, err := json.Marshal(q)
	if err != nil {
		return "", err
	}
	h := sha256.New()
	h.Write(body)
	for _, c := range criteria {
		h.Write([]byte{0})
		h.Write([]byte(c))
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

const ratingSystemPrompt = `You review quiz questions written about source code. Score each question from 1 to 10 against the rubric you are given.

Instructions:
- 9-10: meets every criterion and teaches something worth knowing.
- 7-8: meets every criterion with minor issues.
- 4-6: violates one criterion or is trivial.
- 1-3: wrong answer key, ambiguous, or unanswerable from the code.
- Check the answer key yourself before scoring. A wrong key is always 1.
- Keep reasoning to one or two sentences.`

var ratingUserTemplate = template.Must(template.New("rating").Funcs(template.FuncMap{
	"inc": func(i int) int { return i + 1 },
}).Parse(`Question type: {{.Type}}
{{if .Snippet}}
Code:
{{.Snippet}}
{{end}}
Question:
{{.Prompt}}
{{if .Details}}
{{.Details}}
{{end}}
Explanation: {{.Explanation}}

Rubric:
{{range $i, $c := .Criteria}}{{$i | inc}}. {{$c}}
{{end}}`))

type ratingView struct {
	Type        quiz.Type
	Snippet     string
	Prompt      string
	Details     string
	Explanation string
	Criteria    []string
}

func buildRatingMessage(q quiz.Question, criteria []string) (string, error) {
	if q.Quiz == nil {
		return "", fmt.Errorf("quiz payload is missing")
	}
	view := ratingView{
		Type:        q.Type(),
		Snippet:     q.Snippet,
		Prompt:      q.Quiz.Prompt(),
		Details:     payloadDetails(q.Quiz),
		Explanation: q.Quiz.Rationale(),
		Criteria:    criteria,
	}
	var buf bytes.Buffer
	if err := ratingUserTemplate.Execute(&buf, view); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// payloadDetails renders the answer key of each variant for the reviewer.
func payloadDetails(p quiz.Payload) string {
	var b strings.Builder
	switch v := p.(type) {
	case *quiz.MultipleChoice:
		b.WriteString("Options:\n")
		for i, opt := range v.Options {
			mark := " "
			if i == v.Answer {
				mark = "*"
			}
			fmt.Fprintf(&b, "%s %c) %s\n", mark, 'A'+i, opt)
		}
	case *quiz.FillBlank:
		fmt.Fprintf(&b, "Accepted answers: %s", strings.Join(v.Answers, " | "))
	case *quiz.OrderSequence:
		b.WriteString("Marked order:\n")
		for i, s := range v.Steps {
			fmt.Fprintf(&b, "%d. %s\n", i+1, s)
		}
	case *quiz.TrueFalse:
		fmt.Fprintf(&b, "Marked answer: %t", v.Answer)
	case *quiz.SelectAll:
		b.WriteString("Statements:\n")
		for _, s := range v.Statements {
			fmt.Fprintf(&b, "[%t] %s\n", s.True, s.Text)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}
