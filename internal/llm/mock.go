package llm

import (
	"context"
	"sync"
)

// MockClient implements Client for tests. Responses are returned in order;
// when exhausted the last one repeats. A nil Fn and empty Responses yield an
// empty completion.
type MockClient struct {
	Responses []string
	Err       error

	// Fn, when set, takes precedence and computes the reply per request.
	Fn func(ctx context.Context, req CompletionRequest) (string, error)

	mu    sync.Mutex
	calls int
	reqs  []CompletionRequest
}

func (m *MockClient) Model() string { return "mock" }

func (m *MockClient) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	m.mu.Lock()
	idx := m.calls
	m.calls++
	m.reqs = append(m.reqs, req)
	m.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if m.Fn != nil {
		content, err := m.Fn(ctx, req)
		if err != nil {
			return nil, err
		}
		return &CompletionResponse{Content: content, StopReason: "stop"}, nil
	}
	if m.Err != nil {
		return nil, m.Err
	}

	content := ""
	if len(m.Responses) > 0 {
		if idx >= len(m.Responses) {
			idx = len(m.Responses) - 1
		}
		content = m.Responses[idx]
	}
	return &CompletionResponse{Content: content, StopReason: "stop"}, nil
}

// Calls returns how many completions were requested.
func (m *MockClient) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Requests returns a copy of the observed requests.
func (m *MockClient) Requests() []CompletionRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]CompletionRequest, len(m.reqs))
	copy(out, m.reqs)
	return out
}
