// Package llm provides AI completion clients for simulated character replies.
package llm

import (
	"context"
	"errors"

	"github.com/anthropics/anthropic-sdk-go"
	openai "github.com/sashabaranov/go-openai"

	"github.com/lydia-app/chat-engine/internal/model"
)

// ChatMessage represents one turn of conversation history sent to the
// collaborator.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// CompletionRequest represents a character-reply request.
type CompletionRequest struct {
	Messages    []ChatMessage
	Preferences model.Preferences
	Model       string
	MaxTokens   int
	Temperature float64
}

// CompletionResponse represents a completed character reply.
type CompletionResponse struct {
	Content   string
	Model     string
	TokensIn  int
	TokensOut int
	LatencyMs int64
}

// Client is the interface for AI completion providers.
type Client interface {
	// Complete sends a completion request and returns the finished reply.
	Complete(ctx context.Context, req *CompletionRequest) (*CompletionResponse, error)

	// Name returns the provider name.
	Name() string
}

// Provider is the type of completion provider.
type Provider string

const (
	ProviderAnthropic Provider = "anthropic"
	ProviderOpenAI    Provider = "openai"
)

// NewClient creates a completion client for the given provider.
func NewClient(provider Provider, apiKey string) (Client, error) {
	switch provider {
	case ProviderOpenAI:
		return NewOpenAIClient(apiKey)
	default:
		return NewAnthropicClient(apiKey)
	}
}

// FailureClass buckets collaborator failures for logging and metrics. Every
// class produces the same fallback reply upstream.
type FailureClass string

const (
	FailureRateLimited FailureClass = "rate_limited"
	FailureQuota       FailureClass = "quota_exhausted"
	FailureGeneric     FailureClass = "generic"
)

// Classify maps a completion error onto its failure class: HTTP 429 is
// rate-limited, 402 is quota exhaustion, everything else is generic.
func Classify(err error) FailureClass {
	var status int

	var oaiErr *openai.APIError
	if errors.As(err, &oaiErr) {
		status = oaiErr.HTTPStatusCode
	}
	var antErr *anthropic.Error
	if errors.As(err, &antErr) {
		status = antErr.StatusCode
	}

	switch status {
	case 429:
		return FailureRateLimited
	case 402:
		return FailureQuota
	default:
		return FailureGeneric
	}
}

// Unavailable is a Client whose calls always fail with the configuration
// error it was built with. Used when no provider credentials are present so
// the send path still degrades into the normal fallback reply.
type Unavailable struct {
	Err error
}

func (u Unavailable) Complete(ctx context.Context, req *CompletionRequest) (*CompletionResponse, error) {
	if u.Err != nil {
		return nil, u.Err
	}
	return nil, errors.New("no completion provider configured")
}

func (u Unavailable) Name() string { return "unavailable" }
