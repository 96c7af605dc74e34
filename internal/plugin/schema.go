package plugin

import (
	"github.com/abhisek/codequiz/internal/llm"
	"github.com/abhisek/codequiz/internal/quiz"
)

func str(desc string) map[string]any {
	return map[string]any{"type": "string", "description": desc}
}

func strList(desc string) map[string]any {
	return map[string]any{
		"type":        "array",
		"items":       map[string]any{"type": "string"},
		"description": desc,
	}
}

// itemSchemas describe one question object per type. Field names match the
// JSON encoding of the quiz payload variants. Counts and ranges are left to
// quiz.Payload.Validate so one bad candidate does not fail the whole batch.
var itemSchemas = map[quiz.Type]map[string]any{
	quiz.TypeMultipleChoice: {
		"type": "object",
		"properties": map[string]any{
			"snippet":  str("The few lines of the chunk the question is about"),
			"question": str("The question prompt"),
			"options":  strList("2 to 6 distinct answer options"),
			"answer": map[string]any{
				"type":        "integer",
				"description": "0-based index of the single correct option",
			},
			"explanation": str("Why the correct option is right and the others are not"),
		},
		"required":             []any{"snippet", "question", "options", "answer", "explanation"},
		"additionalProperties": false,
	},
	quiz.TypeFillBlank: {
		"type": "object",
		"properties": map[string]any{
			"snippet":     str("The few lines of the chunk the question is about"),
			"question":    str("Code with exactly one expression replaced by ____"),
			"answers":     strList("Every accepted spelling of the missing code"),
			"explanation": str("What the missing code does"),
		},
		"required":             []any{"snippet", "question", "answers", "explanation"},
		"additionalProperties": false,
	},
	quiz.TypeOrderSequence: {
		"type": "object",
		"properties": map[string]any{
			"snippet":     str("The few lines of the chunk the question is about"),
			"question":    str("What is being ordered"),
			"steps":       strList("Steps in their true execution order"),
			"explanation": str("Why this order holds"),
		},
		"required":             []any{"snippet", "question", "steps", "explanation"},
		"additionalProperties": false,
	},
	quiz.TypeTrueFalse: {
		"type": "object",
		"properties": map[string]any{
			"snippet":     str("The few lines of the chunk the question is about"),
			"statement":   str("A claim about the code's behavior"),
			"answer":      map[string]any{"type": "boolean", "description": "Whether the claim holds"},
			"explanation": str("Evidence from the code"),
		},
		"required":             []any{"snippet", "statement", "answer", "explanation"},
		"additionalProperties": false,
	},
	quiz.TypeSelectAll: {
		"type": "object",
		"properties": map[string]any{
			"snippet":  str("The few lines of the chunk the question is about"),
			"question": str("The prompt introducing the statements"),
			"statements": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"text": str("A claim about the code"),
						"true": map[string]any{"type": "boolean", "description": "Whether the claim holds"},
					},
					"required":             []any{"text", "true"},
					"additionalProperties": false,
				},
			},
			"explanation": str("Which statements hold and why"),
		},
		"required":             []any{"snippet", "question", "statements", "explanation"},
		"additionalProperties": false,
	},
}

// SchemaFor returns the response schema for a generation call of type t:
// an object wrapping a list of questions.
func SchemaFor(t quiz.Type) *llm.Schema {
	return schemas[t]
}

var schemas = buildSchemas()

func buildSchemas() map[quiz.Type]*llm.Schema {
	out := make(map[quiz.Type]*llm.Schema, len(itemSchemas))
	for t, item := range itemSchemas {
		out[t] = &llm.Schema{
			Name:        "quiz-" + string(t),
			Description: "A batch of " + string(t) + " questions about a code chunk",
			Definition: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"questions": map[string]any{
						"type":  "array",
						"items": item,
					},
				},
				"required":             []any{"questions"},
				"additionalProperties": false,
			},
		}
	}
	return out
}
