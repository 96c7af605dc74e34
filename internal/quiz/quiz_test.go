package quiz

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func TestParseType(t *testing.T) {
	tests := []struct {
		in   string
		want Type
		ok   bool
	}{
		{"multiple-choice", TypeMultipleChoice, true},
		{"Multiple_Choice", TypeMultipleChoice, true},
		{" fill-blank ", TypeFillBlank, true},
		{"order-sequence", TypeOrderSequence, true},
		{"essay", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		got, err := ParseType(tt.in)
		if tt.ok && err != nil {
			t.Errorf("ParseType(%q): unexpected error %v", tt.in, err)
		}
		if !tt.ok && err == nil {
			t.Errorf("ParseType(%q): expected error", tt.in)
		}
		if got != tt.want {
			t.Errorf("ParseType(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestParseTypes_DedupKeepsOrder(t *testing.T) {
	got, err := ParseTypes([]string{"true-false", "fill-blank", "true_false", ""})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []Type{TypeTrueFalse, TypeFillBlank}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("index %d: got %q, want %q", i, got[i], want[i])
		}
	}
}

func TestQuestionJSON_TagDispatch(t *testing.T) {
	raw := `{
		"snippet": "for i := range xs",
		"quiz": {
			"type": "order-sequence",
			"question": "Order the statements as they execute.",
			"steps": ["open file", "read header", "close file"],
			"explanation": "The file is closed last by the deferred call."
		}
	}`
	var q Question
	if err := json.Unmarshal([]byte(raw), &q); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if q.Type() != TypeOrderSequence {
		t.Fatalf("expected order-sequence, got %q", q.Type())
	}
	seq, ok := q.Quiz.(*OrderSequence)
	if !ok {
		t.Fatalf("expected *OrderSequence, got %T", q.Quiz)
	}
	if len(seq.Steps) != 3 || seq.Steps[2] != "close file" {
		t.Errorf("unexpected steps: %v", seq.Steps)
	}

	out, err := json.Marshal(q)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !strings.Contains(string(out), `"type":"order-sequence"`) {
		t.Errorf("encoded question lost its type tag: %s", out)
	}
}

func TestQuestionJSON_UnknownType(t *testing.T) {
	var q Question
	err := json.Unmarshal([]byte(`{"quiz":{"type":"essay","question":"Why?"}}`), &q)
	if err == nil {
		t.Fatal("expected error for unknown type")
	}
	if !strings.Contains(err.Error(), "unknown type") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestQuestionJSON_MissingPayload(t *testing.T) {
	var q Question
	if err := json.Unmarshal([]byte(`{"snippet":"x"}`), &q); err == nil {
		t.Fatal("expected error for missing quiz")
	}
	if _, err := json.Marshal(Question{}); err == nil {
		t.Fatal("expected error marshalling empty question")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		payload Payload
		wantErr string
	}{
		{
			name: "valid multiple choice",
			payload: &MultipleChoice{
				Question: "What does len(nil) return?",
				Options:  []string{"0", "panic", "-1"},
				Answer:   0,
			},
		},
		{
			name: "answer out of range",
			payload: &MultipleChoice{
				Question: "Q?",
				Options:  []string{"a", "b"},
				Answer:   2,
			},
			wantErr: "out of range",
		},
		{
			name: "duplicate options",
			payload: &MultipleChoice{
				Question: "Q?",
				Options:  []string{"a", "A "},
			},
			wantErr: "duplicate option",
		},
		{
			name:    "fill blank without marker",
			payload: &FillBlank{Question: "x := y", Answers: []string{"y"}},
			wantErr: "no blank marker",
		},
		{
			name:    "fill blank empty answer",
			payload: &FillBlank{Question: "x := ____", Answers: []string{" "}},
			wantErr: "answer 1 is empty",
		},
		{
			name:    "order with one step",
			payload: &OrderSequence{Question: "Order", Steps: []string{"a"}},
			wantErr: "at least 2 steps",
		},
		{
			name:    "true false empty",
			payload: &TrueFalse{Statement: "  "},
			wantErr: "question text is empty",
		},
		{
			name: "select all duplicate statements",
			payload: &SelectAll{
				Question:   "Which hold?",
				Statements: []Statement{{Text: "a", True: true}, {Text: "a"}},
			},
			wantErr: "duplicate statement",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.payload.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("expected error containing %q", tt.wantErr)
			}
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected *ValidationError, got %T", err)
			}
			if !strings.Contains(verr.Message, tt.wantErr) {
				t.Errorf("got %q, want substring %q", verr.Message, tt.wantErr)
			}
		})
	}
}

func TestQuestionValidate_NilPayload(t *testing.T) {
	if err := (Question{}).Validate(); err == nil {
		t.Fatal("expected error")
	}
}

func TestFillBlankAccepts(t *testing.T) {
	p := &FillBlank{Question: "defer ____()", Answers: []string{"f.Close", "file.Close"}}
	if !p.Accepts(" f.Close ") {
		t.Error("expected trimmed answer to match")
	}
	if p.Accepts("Close") {
		t.Error("unexpected match")
	}
}
