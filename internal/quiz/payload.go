package quiz

import (
	"fmt"
	"regexp"
	"strings"
)

// BlankMarker is the placeholder a fill-blank question uses for the
// missing piece of code.
const BlankMarker = "____"

var blankPattern = regexp.MustCompile(`_{3,}`)

const (
	maxPromptLen      = 1000
	maxExplanationLen = 2000
)

// MultipleChoice asks the learner to pick the single correct option.
type MultipleChoice struct {
	Question    string   `json:"question"`
	Options     []string `json:"options"`
	Answer      int      `json:"answer"` // 0-based index into Options
	Explanation string   `json:"explanation"`
}

func (*MultipleChoice) isPayload()          {}
func (*MultipleChoice) Kind() Type          { return TypeMultipleChoice }
func (p *MultipleChoice) Prompt() string    { return p.Question }
func (p *MultipleChoice) Rationale() string { return p.Explanation }

// Correct returns the text of the correct option.
func (p *MultipleChoice) Correct() string {
	if p.Answer < 0 || p.Answer >= len(p.Options) {
		return ""
	}
	return p.Options[p.Answer]
}

func (p *MultipleChoice) Validate() error {
	if err := checkText(p.Kind(), p.Question, p.Explanation); err != nil {
		return err
	}
	if len(p.Options) < 2 || len(p.Options) > 6 {
		return invalid(p.Kind(), fmt.Sprintf("expected 2-6 options, got %d", len(p.Options)))
	}
	if err := checkDistinct(p.Kind(), "option", p.Options); err != nil {
		return err
	}
	if p.Answer < 0 || p.Answer >= len(p.Options) {
		return invalid(p.Kind(), fmt.Sprintf("answer index %d out of range", p.Answer))
	}
	return nil
}

// FillBlank shows code with one piece replaced by BlankMarker.
type FillBlank struct {
	Question    string   `json:"question"`
	Answers     []string `json:"answers"` // every accepted spelling of the blank
	Explanation string   `json:"explanation"`
}

func (*FillBlank) isPayload()          {}
func (*FillBlank) Kind() Type          { return TypeFillBlank }
func (p *FillBlank) Prompt() string    { return p.Question }
func (p *FillBlank) Rationale() string { return p.Explanation }

func (p *FillBlank) Validate() error {
	if err := checkText(p.Kind(), p.Question, p.Explanation); err != nil {
		return err
	}
	if !blankPattern.MatchString(p.Question) {
		return invalid(p.Kind(), "question has no blank marker")
	}
	if len(p.Answers) == 0 {
		return invalid(p.Kind(), "no accepted answers")
	}
	for i, a := range p.Answers {
		if strings.TrimSpace(a) == "" {
			return invalid(p.Kind(), fmt.Sprintf("answer %d is empty", i+1))
		}
	}
	return nil
}

// Accepts reports whether s matches one of the accepted answers, ignoring
// surrounding whitespace.
func (p *FillBlank) Accepts(s string) bool {
	s = strings.TrimSpace(s)
	for _, a := range p.Answers {
		if strings.TrimSpace(a) == s {
			return true
		}
	}
	return false
}

// OrderSequence asks the learner to put steps into execution order. Steps
// are stored in the correct order; presentation shuffles them.
type OrderSequence struct {
	Question    string   `json:"question"`
	Steps       []string `json:"steps"`
	Explanation string   `json:"explanation"`
}

func (*OrderSequence) isPayload()          {}
func (*OrderSequence) Kind() Type          { return TypeOrderSequence }
func (p *OrderSequence) Prompt() string    { return p.Question }
func (p *OrderSequence) Rationale() string { return p.Explanation }

func (p *OrderSequence) Validate() error {
	if err := checkText(p.Kind(), p.Question, p.Explanation); err != nil {
		return err
	}
	if len(p.Steps) < 2 {
		return invalid(p.Kind(), fmt.Sprintf("expected at least 2 steps, got %d", len(p.Steps)))
	}
	return checkDistinct(p.Kind(), "step", p.Steps)
}

// TrueFalse asks whether a single statement about the code holds.
type TrueFalse struct {
	Statement   string `json:"statement"`
	Answer      bool   `json:"answer"`
	Explanation string `json:"explanation"`
}

func (*TrueFalse) isPayload()          {}
func (*TrueFalse) Kind() Type          { return TypeTrueFalse }
func (p *TrueFalse) Prompt() string    { return p.Statement }
func (p *TrueFalse) Rationale() string { return p.Explanation }

func (p *TrueFalse) Validate() error {
	return checkText(p.Kind(), p.Statement, p.Explanation)
}

// Statement is one line of a SelectAll question with its truth value.
type Statement struct {
	Text string `json:"text"`
	True bool   `json:"true"`
}

// SelectAll lists several statements; the learner marks every true one.
type SelectAll struct {
	Question    string      `json:"question"`
	Statements  []Statement `json:"statements"`
	Explanation string      `json:"explanation"`
}

func (*SelectAll) isPayload()          {}
func (*SelectAll) Kind() Type          { return TypeSelectAll }
func (p *SelectAll) Prompt() string    { return p.Question }
func (p *SelectAll) Rationale() string { return p.Explanation }

func (p *SelectAll) Validate() error {
	if err := checkText(p.Kind(), p.Question, p.Explanation); err != nil {
		return err
	}
	if len(p.Statements) < 2 {
		return invalid(p.Kind(), fmt.Sprintf("expected at least 2 statements, got %d", len(p.Statements)))
	}
	texts := make([]string, len(p.Statements))
	for i, s := range p.Statements {
		texts[i] = s.Text
	}
	return checkDistinct(p.Kind(), "statement", texts)
}

// TrueCount returns the number of statements marked true.
func (p *SelectAll) TrueCount() int {
	n := 0
	for _, s := range p.Statements {
		if s.True {
			n++
		}
	}
	return n
}

func checkText(t Type, prompt, explanation string) error {
	if strings.TrimSpace(prompt) == "" {
		return invalid(t, "question text is empty")
	}
	if len(prompt) > maxPromptLen {
		return invalid(t, fmt.Sprintf("question text exceeds %d characters", maxPromptLen))
	}
	if len(explanation) > maxExplanationLen {
		return invalid(t, fmt.Sprintf("explanation exceeds %d characters", maxExplanationLen))
	}
	return nil
}

func checkDistinct(t Type, what string, items []string) error {
	seen := make(map[string]bool, len(items))
	for i, it := range items {
		key := strings.ToLower(strings.TrimSpace(it))
		if key == "" {
			return invalid(t, fmt.Sprintf("%s %d is empty", what, i+1))
		}
		if seen[key] {
			return invalid(t, fmt.Sprintf("duplicate %s %q", what, it))
		}
		seen[key] = true
	}
	return nil
}

func invalid(t Type, msg string) *ValidationError {
	return &ValidationError{
		Validator: string(t),
		Message:   msg,
		Retryable: true,
	}
}
