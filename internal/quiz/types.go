package quiz

import (
	"fmt"
	"strings"
)

// Type is the kind of question a plugin produces. The set is closed; new
// kinds are added here and registered with a plugin and a quality filter.
type Type string

const (
	TypeMultipleChoice Type = "multiple-choice"
	TypeFillBlank      Type = "fill-blank"
	TypeOrderSequence  Type = "order-sequence"
	TypeTrueFalse      Type = "true-false"
	TypeSelectAll      Type = "select-all"
)

// AllTypes returns every known question type in canonical order.
func AllTypes() []Type {
	return []Type{
		TypeMultipleChoice,
		TypeFillBlank,
		TypeOrderSequence,
		TypeTrueFalse,
		TypeSelectAll,
	}
}

// Valid reports whether t is one of the known question types.
func (t Type) Valid() bool {
	switch t {
	case TypeMultipleChoice, TypeFillBlank, TypeOrderSequence, TypeTrueFalse, TypeSelectAll:
		return true
	}
	return false
}

// ParseType maps a user-supplied tag to a Type. Underscores are accepted
// in place of dashes ("multiple_choice").
func ParseType(s string) (Type, error) {
	t := Type(strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "_", "-"))
	if !t.Valid() {
		return "", fmt.Errorf("unknown question type %q", s)
	}
	return t, nil
}

// ParseTypes parses a list of tags, dropping duplicates while keeping the
// first-seen order.
func ParseTypes(tags []string) ([]Type, error) {
	seen := make(map[Type]bool, len(tags))
	out := make([]Type, 0, len(tags))
	for _, tag := range tags {
		if strings.TrimSpace(tag) == "" {
			continue
		}
		t, err := ParseType(tag)
		if err != nil {
			return nil, err
		}
		if seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out, nil
}

// Payload is the type-specific body of a question. It is a closed set of
// variants: MultipleChoice, FillBlank, OrderSequence, TrueFalse, SelectAll.
type Payload interface {
	// Kind returns the question type tag of this variant.
	Kind() Type

	// Prompt returns the text shown to the learner.
	Prompt() string

	// Rationale returns the explanation attached to the answer.
	Rationale() string

	// Validate performs structural checks on the payload.
	Validate() error

	isPayload()
}

// Question is a candidate produced by a plugin. The orchestrator owns it
// once returned and may attach metadata such as Language.
type Question struct {
	// Snippet is an optional label or excerpt of the chunk the question was
	// generated from.
	Snippet string

	// Language is the programming language of the source chunk, if known.
	Language string

	// Quiz holds the type-specific payload.
	Quiz Payload
}

// Type returns the question type, or "" when the payload is missing.
func (q Question) Type() Type {
	if q.Quiz == nil {
		return ""
	}
	return q.Quiz.Kind()
}

// Validate checks that the question carries a structurally valid payload.
func (q Question) Validate() error {
	if q.Quiz == nil {
		return &ValidationError{
			Validator: "structural",
			Message:   "quiz payload is missing",
		}
	}
	return q.Quiz.Validate()
}

// ValidationError describes why a candidate failed a structural check.
type ValidationError struct {
	Validator string // Name of the check that failed
	Message   string // Human-readable description of the failure
	Retryable bool   // Whether regeneration is likely to fix this
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validator %q: %s", e.Validator, e.Message)
}
