package quiz

import (
	"encoding/json"
	"fmt"
)

// wireQuestion is the JSON shape of a Question.
type wireQuestion struct {
	Snippet  string          `json:"snippet,omitempty"`
	Language string          `json:"language,omitempty"`
	Quiz     json.RawMessage `json:"quiz"`
}

// MarshalJSON encodes the question with the payload's type tag inlined
// into the "quiz" object.
func (q Question) MarshalJSON() ([]byte, error) {
	if q.Quiz == nil {
		return nil, fmt.Errorf("marshal question: quiz payload is missing")
	}
	body, err := EncodePayload(q.Quiz)
	if err != nil {
		return nil, err
	}
	return json.Marshal(wireQuestion{
		Snippet:  q.Snippet,
		Language: q.Language,
		Quiz:     body,
	})
}

// UnmarshalJSON decodes a question, dispatching on the quiz "type" tag.
func (q *Question) UnmarshalJSON(data []byte) error {
	var w wireQuestion
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	if len(w.Quiz) == 0 {
		return fmt.Errorf("decode question: quiz payload is missing")
	}
	p, err := DecodePayload(w.Quiz)
	if err != nil {
		return err
	}
	q.Snippet = w.Snippet
	q.Language = w.Language
	q.Quiz = p
	return nil
}

// EncodePayload marshals a payload with its "type" tag.
func EncodePayload(p Payload) ([]byte, error) {
	body, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", p.Kind(), err)
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", p.Kind(), err)
	}
	tag, _ := json.Marshal(p.Kind())
	fields["type"] = tag
	return json.Marshal(fields)
}

// DecodePayload decodes a tagged payload object. Unknown tags are errors;
// structural validity is not checked here.
func DecodePayload(data []byte) (Payload, error) {
	var head struct {
		Type Type `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, fmt.Errorf("decode quiz payload: %w", err)
	}

	p, err := NewPayload(head.Type)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(data, p); err != nil {
		return nil, fmt.Errorf("decode %s payload: %w", head.Type, err)
	}
	return p, nil
}

// NewPayload returns an empty payload of type t, ready for decoding.
func NewPayload(t Type) (Payload, error) {
	switch t {
	case TypeMultipleChoice:
		return &MultipleChoice{}, nil
	case TypeFillBlank:
		return &FillBlank{}, nil
	case TypeOrderSequence:
		return &OrderSequence{}, nil
	case TypeTrueFalse:
		return &TrueFalse{}, nil
	case TypeSelectAll:
		return &SelectAll{}, nil
	case "":
		return nil, fmt.Errorf("decode quiz payload: missing type tag")
	default:
		return nil, fmt.Errorf("decode quiz payload: unknown type %q", t)
	}
}
