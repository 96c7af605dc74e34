package quality

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/abhisek/codequiz/internal/quiz"
)

// DefaultFilters returns one filter per quiz type.
func DefaultFilters() []Filter {
	return []Filter{
		newMultipleChoiceFilter(),
		newFillBlankFilter(),
		newOrderSequenceFilter(),
		newTrueFalseFilter(),
		newSelectAllFilter(),
	}
}

type multipleChoiceFilter struct{ baseFilter }

func newMultipleChoiceFilter() Filter {
	return multipleChoiceFilter{newBaseFilter(quiz.TypeMultipleChoice,
		"Exactly one option is defensible as correct.",
		"Distractors are plausible misreadings of the code, not obviously wrong.",
	)}
}

var catchAllOption = regexp.MustCompile(`(?i)^\s*(all|none|both) of the (above|options)\s*\.?\s*$`)

func (f multipleChoiceFilter) PreFilter(q quiz.Question) *Rejection {
	if r := f.baseFilter.PreFilter(q); r != nil {
		return r
	}
	mc, ok := q.Quiz.(*quiz.MultipleChoice)
	if !ok {
		return mismatch(q)
	}
	for _, opt := range mc.Options {
		if catchAllOption.MatchString(opt) {
			return &Rejection{Rule: "catch-all-option", Reason: fmt.Sprintf("option %q makes the answer ambiguous", opt)}
		}
	}
	return nil
}

type fillBlankFilter struct{ baseFilter }

func newFillBlankFilter() Filter {
	return fillBlankFilter{newBaseFilter(quiz.TypeFillBlank,
		"The blank tests what the code does, not what something is named.",
		"Every accepted answer is correct and no correct spelling is missing.",
	)}
}

var blankRun = regexp.MustCompile(`_{3,}`)

func (f fillBlankFilter) PreFilter(q quiz.Question) *Rejection {
	if r := f.baseFilter.PreFilter(q); r != nil {
		return r
	}
	fb, ok := q.Quiz.(*quiz.FillBlank)
	if !ok {
		return mismatch(q)
	}
	if strings.TrimSpace(blankRun.ReplaceAllString(fb.Question, "")) == "" {
		return &Rejection{Rule: "whole-line-blank", Reason: "the blank covers the whole line"}
	}
	if n := len(blankRun.FindAllString(fb.Question, -1)); n > 1 {
		return &Rejection{Rule: "multiple-blanks", Reason: fmt.Sprintf("expected one blank, found %d", n)}
	}
	return nil
}

type orderSequenceFilter struct{ baseFilter }

const minOrderSteps = 3

func newOrderSequenceFilter() Filter {
	return orderSequenceFilter{newBaseFilter(quiz.TypeOrderSequence,
		"The marked order matches the true execution or dependency order of the code.",
		"The order is forced by the code, not just by the order lines appear in.",
	)}
}

func (f orderSequenceFilter) PreFilter(q quiz.Question) *Rejection {
	if r := f.baseFilter.PreFilter(q); r != nil {
		return r
	}
	seq, ok := q.Quiz.(*quiz.OrderSequence)
	if !ok {
		return mismatch(q)
	}
	if len(seq.Steps) < minOrderSteps {
		return &Rejection{Rule: "too-few-steps", Reason: fmt.Sprintf("need at least %d steps, got %d", minOrderSteps, len(seq.Steps))}
	}
	return nil
}

type trueFalseFilter struct{ baseFilter }

func newTrueFalseFilter() Filter {
	return trueFalseFilter{newBaseFilter(quiz.TypeTrueFalse,
		"The truth value follows from the code alone, without assumptions about inputs or environment.",
	)}
}

// hedged statements cannot be verified against the code.
var hedgeWords = regexp.MustCompile(`(?i)\b(might|may or may not|possibly|probably|usually|sometimes|best practice|cleaner|more readable|better)\b`)

func (f trueFalseFilter) PreFilter(q quiz.Question) *Rejection {
	if r := f.baseFilter.PreFilter(q); r != nil {
		return r
	}
	if m := hedgeWords.FindString(q.Quiz.Prompt()); m != "" {
		return &Rejection{Rule: "unverifiable", Reason: fmt.Sprintf("statement is not verifiable (%q)", m)}
	}
	return nil
}

type selectAllFilter struct{ baseFilter }

func newSelectAllFilter() Filter {
	return selectAllFilter{newBaseFilter(quiz.TypeSelectAll,
		"Every marked truth value is independently verifiable against the given code.",
		"Statements do not depend on each other.",
	)}
}

func (f selectAllFilter) PreFilter(q quiz.Question) *Rejection {
	if r := f.baseFilter.PreFilter(q); r != nil {
		return r
	}
	sa, ok := q.Quiz.(*quiz.SelectAll)
	if !ok {
		return mismatch(q)
	}
	if sa.TrueCount() == 0 {
		return &Rejection{Rule: "no-true-statement", Reason: "at least one statement must be true"}
	}
	for _, s := range sa.Statements {
		if m := hedgeWords.FindString(s.Text); m != "" {
			return &Rejection{Rule: "unverifiable", Reason: fmt.Sprintf("statement %q is not verifiable", s.Text)}
		}
	}
	return nil
}

func mismatch(q quiz.Question) *Rejection {
	return &Rejection{Rule: "structure", Reason: fmt.Sprintf("unexpected %T payload", q.Quiz)}
}
