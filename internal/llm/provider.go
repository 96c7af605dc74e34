package llm

import (
	"context"
	"encoding/json"
)

// Provider is the text-generation service behind question plugins and the
// quality rater. Implementations must be safe for concurrent use.
type Provider interface {
	// Generate sends one request and returns the model output. When the
	// request carries a Schema, Content is JSON that has already been
	// validated against it.
	Generate(ctx context.Context, req Request) (*Response, error)

	// ModelID returns the model identifier this provider talks to.
	ModelID() string
}

// Request describes a single completion call.
type Request struct {
	// System sets the model's role and constraints.
	System string

	// Messages is the conversation. Generation and rating are single-turn,
	// so this usually holds one user message.
	Messages []Message

	// Schema, when set, asks the provider for structured JSON output.
	Schema *Schema

	MaxTokens int

	// Temperature controls randomness in [0, 1]. Zero leaves the provider
	// default in place.
	Temperature float64
}

// Message is one turn of the conversation.
type Message struct {
	Role    Role
	Content string
}

// Role is the message sender role.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// UserMessage is shorthand for a single user turn.
func UserMessage(content string) []Message {
	return []Message{{Role: RoleUser, Content: content}}
}

// Schema is a named JSON Schema for structured output.
type Schema struct {
	// Name identifies the schema; it doubles as the compiled-schema cache
	// key and as the schema name sent to OpenAI. Kebab-case.
	Name string

	Description string

	// Definition is the JSON Schema document.
	Definition map[string]any
}

// Response holds the model output.
type Response struct {
	// Content is validated JSON when a Schema was supplied, raw text
	// otherwise.
	Content json.RawMessage

	Usage Usage

	// Model is the model that actually served the request.
	Model string

	// StopReason is normalized to "end", "max_tokens" or "error".
	StopReason string
}

// Usage reports token consumption for a single request.
type Usage struct {
	InputTokens  int
	OutputTokens int
	TotalTokens  int
}
