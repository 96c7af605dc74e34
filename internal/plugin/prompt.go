package plugin

import (
	"fmt"
	"strings"

	"github.com/abhisek/codequiz/internal/quiz"
)

const systemPrompt = `You write quiz questions that test whether a developer understands a piece of source code.

Rules:
- Every question must be answerable from the given code alone.
- Test transferable programming knowledge: control flow, data flow, error handling, concurrency, API semantics. Do not ask about names, formatting or comments.
- There must be exactly one defensible answer.
- Quote the relevant lines in "snippet".
- Keep explanations short and point at the code that decides the answer.
- Respond with JSON only.`

var typeInstructions = map[quiz.Type]string{
	quiz.TypeMultipleChoice: "Write multiple-choice questions with 4 options. Distractors should reflect common misreadings of the code, not random values.",
	quiz.TypeFillBlank:      "Copy one or two lines of the code and replace a single meaningful expression with ____. The blank must test behavior, not a variable name.",
	quiz.TypeOrderSequence:  "Pick 3 to 6 operations from the code and list them in the order they actually execute. The order must be forced by the code, not by line position alone.",
	quiz.TypeTrueFalse:      "Write one claim about what the code does at runtime. About half of the claims you write should be false.",
	quiz.TypeSelectAll:      "Write 3 to 5 claims about the code and mark each one true or false. At least one claim must be true.",
}

// buildUserMessage renders the per-call instructions followed by the chunk.
func buildUserMessage(t quiz.Type, p Params) string {
	difficulty := p.Options.Difficulty
	if difficulty == "" {
		difficulty = "medium"
	}
	n := p.Options.NumQuestions
	if n <= 0 {
		n = 1
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Question type: %s\n", t)
	fmt.Fprintf(&b, "Instructions: %s\n", typeInstructions[t])
	fmt.Fprintf(&b, "Difficulty: %s\n", difficulty)
	fmt.Fprintf(&b, "Number of questions: %d\n", n)
	b.WriteString("\nCode:\n```\n")
	b.WriteString(strings.TrimRight(p.Chunk, "\n"))
	b.WriteString("\n```\n")
	return b.String()
}
