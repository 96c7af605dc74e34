package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/abhisek/codequiz/internal/store"
)

// EventRecorder persists LLM request events. store.EventRepo satisfies it.
type EventRecorder interface {
	AppendLLMRequest(ctx context.Context, data store.LLMRequestEventData) error
}

// LoggingProvider is a decorator that records every LLM request as an
// event and emits a structured log line.
type LoggingProvider struct {
	inner    Provider
	name     string
	recorder EventRecorder
	logger   *slog.Logger
}

// WithLogging wraps a Provider with event logging. recorder may be nil, in
// which case only the log line is written.
func WithLogging(p Provider, name string, recorder EventRecorder, logger *slog.Logger) Provider {
	if logger == nil {
		logger = slog.Default()
	}
	return &LoggingProvider{inner: p, name: name, recorder: recorder, logger: logger}
}

func (l *LoggingProvider) Generate(ctx context.Context, req Request) (*Response, error) {
	start := time.Now()
	purpose := PurposeFrom(ctx)

	resp, err := l.inner.Generate(ctx, req)

	latency := time.Since(start)
	data := store.LLMRequestEventData{
		RunID:       RunIDFrom(ctx),
		Provider:    l.name,
		Model:       l.inner.ModelID(),
		Purpose:     purpose,
		LatencyMs:   latency.Milliseconds(),
		Success:     err == nil,
		RequestBody: serializeRequest(req),
	}
	if resp != nil {
		data.InputTokens = resp.Usage.InputTokens
		data.OutputTokens = resp.Usage.OutputTokens
		data.Model = resp.Model
		data.ResponseBody = string(resp.Content)
	}

	attrs := []any{
		"provider", l.name,
		"model", data.Model,
		"purpose", purpose,
		"latency_ms", data.LatencyMs,
	}
	switch {
	case err == nil:
		l.logger.DebugContext(ctx, "llm request", append(attrs, "input_tokens", data.InputTokens, "output_tokens", data.OutputTokens)...)
	case IsCancellation(err):
		data.ErrorMessage = err.Error()
		l.logger.DebugContext(ctx, "llm request cancelled", attrs...)
	default:
		data.ErrorMessage = err.Error()
		l.logger.WarnContext(ctx, "llm request failed", append(attrs, "error", err)...)
	}

	if l.recorder != nil {
		// Recording uses a detached context so cancelled calls still leave a trace.
		recCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
		if logErr := l.recorder.AppendLLMRequest(recCtx, data); logErr != nil {
			l.logger.Warn("failed to record LLM request event", "error", logErr)
		}
		cancel()
	}

	return resp, err
}

func (l *LoggingProvider) ModelID() string {
	return l.inner.ModelID()
}

// serializeRequest builds a readable representation of the LLM request.
func serializeRequest(req Request) string {
	var b strings.Builder

	if req.System != "" {
		b.WriteString("[system]\n")
		b.WriteString(req.System)
		b.WriteString("\n\n")
	}

	for _, m := range req.Messages {
		fmt.Fprintf(&b, "[%s]\n", m.Role)
		b.WriteString(m.Content)
		b.WriteString("\n\n")
	}

	if req.Schema != nil {
		schemaDef, err := json.Marshal(req.Schema.Definition)
		if err == nil {
			fmt.Fprintf(&b, "[schema: %s]\n", req.Schema.Name)
			b.Write(schemaDef)
			b.WriteString("\n")
		}
	}

	return b.String()
}
