package llm

import (
	"context"
	"encoding/json"
	"sync"
)

// MockResponse is a canned response for the MockProvider.
type MockResponse struct {
	Content json.RawMessage
	Usage   Usage
	Err     error
}

// MockProvider is a deterministic Provider for tests. It returns canned
// responses in FIFO order, or delegates to Responder when one is set, and
// records every request.
type MockProvider struct {
	mu        sync.Mutex
	responses []MockResponse
	Calls     []Request

	// Responder, when non-nil, computes the response for each call. It is
	// invoked without the lock held so it may block on ctx.
	Responder func(ctx context.Context, req Request) (*Response, error)
}

// NewMockProvider creates a MockProvider with the given canned responses.
func NewMockProvider(responses ...MockResponse) *MockProvider {
	return &MockProvider{responses: responses}
}

// NewMockResponder creates a MockProvider driven entirely by fn.
func NewMockResponder(fn func(ctx context.Context, req Request) (*Response, error)) *MockProvider {
	return &MockProvider{Responder: fn}
}

// Generate returns the next canned response or ErrProviderUnavailable once
// the queue is empty.
func (m *MockProvider) Generate(ctx context.Context, req Request) (*Response, error) {
	m.mu.Lock()
	m.Calls = append(m.Calls, req)
	responder := m.Responder
	if responder != nil {
		m.mu.Unlock()
		return responder(ctx, req)
	}
	defer m.mu.Unlock()

	if len(m.responses) == 0 {
		return nil, &ErrProviderUnavailable{Err: nil}
	}

	resp := m.responses[0]
	m.responses = m.responses[1:]

	if resp.Err != nil {
		return nil, resp.Err
	}

	return &Response{
		Content:    resp.Content,
		Usage:      resp.Usage,
		Model:      "mock",
		StopReason: "end",
	}, nil
}

// ModelID returns "mock".
func (m *MockProvider) ModelID() string {
	return "mock"
}

// AddResponse appends a canned response to the queue.
func (m *MockProvider) AddResponse(resp MockResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses = append(m.responses, resp)
}

// CallCount returns the number of Generate calls made.
func (m *MockProvider) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Calls)
}

// JSONResponse wraps raw JSON as a successful mock Response.
func JSONResponse(content string) *Response {
	return &Response{
		Content:    json.RawMessage(content),
		Model:      "mock",
		StopReason: "end",
	}
}
