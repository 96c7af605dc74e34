// Package quality decides which generated questions are good enough to
// ship. Each question type has a filter with cheap pre-checks and a rubric;
// survivors are scored 1-10 by an LLM rater and kept above a threshold.
package quality

import (
	"regexp"

	"github.com/abhisek/codequiz/internal/quiz"
)

// Filter holds the type-specific quality rules for one question type.
type Filter interface {
	// Type returns the question type this filter handles, or "" for the
	// fallback filter.
	Type() quiz.Type

	// PreFilter returns a Rejection when q is obviously low value. It must
	// be cheap: no I/O.
	PreFilter(q quiz.Question) *Rejection

	// Criteria returns the rubric the rater scores against, common
	// criteria first.
	Criteria() []string
}

// Rejection explains why a pre-filter dropped a candidate.
type Rejection struct {
	Rule   string
	Reason string
}

// CommonCriteria apply to every question type.
var CommonCriteria = []string{
	"Tests transferable programming knowledge, not trivia about this particular codebase.",
	"Has exactly one unambiguous correct answer.",
	"Gives enough context to be answered from the shown code alone.",
}

// lowValuePatterns catch statements that hinge on game-specific values or
// purely cosmetic distinctions in the code.
var lowValuePatterns = []struct {
	rule string
	re   *regexp.Regexp
}{
	{"cosmetic", regexp.MustCompile(`(?i)\b(indentation|whitespace|formatting|code style|naming convention|camel ?case|snake ?case|tabs or spaces|trailing comma)\b`)},
	{"cosmetic", regexp.MustCompile(`(?i)\b(variable|function|parameter) (is )?(named|called)\b`)},
	{"cosmetic", regexp.MustCompile(`(?i)\bthe comment (says|states|mentions)\b`)},
	{"game-specific", regexp.MustCompile(`(?i)\b(player'?s?|hit ?points|health bar|game ?over|high ?score|sprite|level[- ]up|spawn rate)\b`)},
}

// baseFilter carries the common rubric and pre-checks. Type filters embed
// it and extend both.
type baseFilter struct {
	kind     quiz.Type
	criteria []string
}

func newBaseFilter(kind quiz.Type, specific ...string) baseFilter {
	criteria := make([]string, 0, len(CommonCriteria)+len(specific))
	criteria = append(criteria, CommonCriteria...)
	criteria = append(criteria, specific...)
	return baseFilter{kind: kind, criteria: criteria}
}

func (f baseFilter) Type() quiz.Type { return f.kind }

func (f baseFilter) Criteria() []string { return f.criteria }

func (f baseFilter) PreFilter(q quiz.Question) *Rejection {
	if err := q.Validate(); err != nil {
		return &Rejection{Rule: "structure", Reason: err.Error()}
	}
	for _, text := range questionTexts(q.Quiz) {
		for _, p := range lowValuePatterns {
			if m := p.re.FindString(text); m != "" {
				return &Rejection{Rule: p.rule, Reason: "references " + p.rule + " detail: " + m}
			}
		}
	}
	return nil
}

// questionTexts returns every learner-visible string of a payload.
func questionTexts(p quiz.Payload) []string {
	texts := []string{p.Prompt()}
	switch v := p.(type) {
	case *quiz.MultipleChoice:
		texts = append(texts, v.Options...)
	case *quiz.OrderSequence:
		texts = append(texts, v.Steps...)
	case *quiz.SelectAll:
		for _, s := range v.Statements {
			texts = append(texts, s.Text)
		}
	}
	return texts
}

// defaultFilter is used for types without a registered filter.
type defaultFilter struct {
	baseFilter
}

func newDefaultFilter() Filter {
	return defaultFilter{newBaseFilter("")}
}
