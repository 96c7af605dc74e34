package llm

import "context"

type contextKey string

const (
	purposeKey contextKey = "llm_purpose"
	runIDKey   contextKey = "llm_run_id"
)

// WithPurpose attaches a purpose label ("generate:fill-blank", "rate") to
// the context for event logging.
func WithPurpose(ctx context.Context, purpose string) context.Context {
	return context.WithValue(ctx, purposeKey, purpose)
}

// PurposeFrom extracts the purpose label from the context.
func PurposeFrom(ctx context.Context) string {
	if v, ok := ctx.Value(purposeKey).(string); ok {
		return v
	}
	return "unknown"
}

// WithRunID tags every LLM call made under ctx with the orchestrator run.
func WithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, runIDKey, runID)
}

// RunIDFrom returns the run ID attached to ctx, or "".
func RunIDFrom(ctx context.Context) string {
	v, _ := ctx.Value(runIDKey).(string)
	return v
}
