package llm

import (
	"context"
	"fmt"
	"sync"
)

// MockClient is a test double that replays a canned reply or error.
type MockClient struct {
	mu    sync.Mutex
	Reply string
	Err   error
	Calls []CompletionRequest
}

// NewMockClient creates a mock that echoes the last user message.
func NewMockClient() *MockClient {
	return &MockClient{}
}

func (m *MockClient) Complete(ctx context.Context, req *CompletionRequest) (*CompletionResponse, error) {
	m.mu.Lock()
	m.Calls = append(m.Calls, *req)
	reply, err := m.Reply, m.Err
	m.mu.Unlock()

	if err != nil {
		return nil, err
	}
	if reply == "" {
		last := ""
		if n := len(req.Messages); n > 0 {
			last = req.Messages[n-1].Content
		}
		reply = fmt.Sprintf("you said %q... tell me more", last)
	}
	return &CompletionResponse{Content: reply, Model: "mock"}, nil
}

func (m *MockClient) Name() string { return "mock" }

// CallCount returns how many completions were requested.
func (m *MockClient) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Calls)
}
