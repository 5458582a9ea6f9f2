package llm

import (
	"context"
	"errors"
	"fmt"
	"testing"

	openai "github.com/sashabaranov/go-openai"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want FailureClass
	}{
		{"rate limited", &openai.APIError{HTTPStatusCode: 429, Message: "slow down"}, FailureRateLimited},
		{"quota exhausted", &openai.APIError{HTTPStatusCode: 402, Message: "pay up"}, FailureQuota},
		{"server error", &openai.APIError{HTTPStatusCode: 500, Message: "oops"}, FailureGeneric},
		{"wrapped", fmt.Errorf("completion failed: %w", &openai.APIError{HTTPStatusCode: 429}), FailureRateLimited},
		{"plain error", errors.New("connection refused"), FailureGeneric},
		{"nil", nil, FailureGeneric},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Classify(tc.err); got != tc.want {
				t.Errorf("Classify(%v) = %q, want %q", tc.err, got, tc.want)
			}
		})
	}
}

func TestUnavailableClientAlwaysFails(t *testing.T) {
	cause := errors.New("no API key configured")
	c := Unavailable{Err: cause}

	_, err := c.Complete(context.Background(), &CompletionRequest{})
	if !errors.Is(err, cause) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestMockClientEchoesLastMessage(t *testing.T) {
	m := NewMockClient()
	resp, err := m.Complete(context.Background(), &CompletionRequest{
		Messages: []ChatMessage{
			{Role: "assistant", Content: "hi"},
			{Role: "user", Content: "what's up"},
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	if resp.Content == "" {
		t.Fatal("expected a canned reply")
	}
	if m.CallCount() != 1 {
		t.Fatalf("CallCount = %d, want 1", m.CallCount())
	}
}
