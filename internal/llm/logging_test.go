package llm

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/abhisek/codequiz/internal/logging"
	"github.com/abhisek/codequiz/internal/store"
)

type fakeRecorder struct {
	mu     sync.Mutex
	events []store.LLMRequestEventData
	err    error
}

func (f *fakeRecorder) AppendLLMRequest(ctx context.Context, data store.LLMRequestEventData) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, data)
	return f.err
}

func TestLoggingProvider_RecordsSuccess(t *testing.T) {
	rec := &fakeRecorder{}
	mock := NewMockProvider(MockResponse{
		Content: json.RawMessage(`{"ok":true}`),
		Usage:   Usage{InputTokens: 10, OutputTokens: 5},
	})
	p := WithLogging(mock, "mock", rec, logging.Discard())

	ctx := WithRunID(WithPurpose(context.Background(), "generate:true-false"), "run-7")
	req := Request{System: "be terse", Messages: UserMessage("hello"), Schema: pointSchema}
	if _, err := p.Generate(ctx, req); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(rec.events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(rec.events))
	}
	ev := rec.events[0]
	if !ev.Success || ev.RunID != "run-7" || ev.Purpose != "generate:true-false" {
		t.Errorf("unexpected event: %+v", ev)
	}
	if ev.InputTokens != 10 || ev.OutputTokens != 5 {
		t.Errorf("tokens = %d/%d", ev.InputTokens, ev.OutputTokens)
	}
	if !strings.Contains(ev.RequestBody, "[system]") || !strings.Contains(ev.RequestBody, "[schema: test-point]") {
		t.Errorf("request body missing sections: %q", ev.RequestBody)
	}
}

func TestLoggingProvider_RecordsFailureAndIgnoresRecorderError(t *testing.T) {
	rec := &fakeRecorder{err: errors.New("disk full")}
	mock := NewMockProvider(MockResponse{Err: &ErrProviderUnavailable{Err: errors.New("down")}})
	p := WithLogging(mock, "mock", rec, logging.Discard())

	_, err := p.Generate(context.Background(), Request{})
	var unavail *ErrProviderUnavailable
	if !errors.As(err, &unavail) {
		t.Fatalf("expected provider error to pass through, got %v", err)
	}
	if len(rec.events) != 1 || rec.events[0].Success || rec.events[0].ErrorMessage == "" {
		t.Fatalf("unexpected events: %+v", rec.events)
	}
}

func TestLoggingProvider_RecordsAfterCancellation(t *testing.T) {
	rec := &fakeRecorder{}
	ctx, cancel := context.WithCancel(context.Background())
	mock := NewMockResponder(func(ctx context.Context, _ Request) (*Response, error) {
		cancel()
		return nil, ctx.Err()
	})
	p := WithLogging(mock, "mock", rec, nil)

	if _, err := p.Generate(ctx, Request{}); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation, got %v", err)
	}
	if len(rec.events) != 1 {
		t.Fatalf("expected cancelled call to be recorded, got %d events", len(rec.events))
	}
}
