// Package llm provides a provider-agnostic interface for single-shot text
// completions. The menu service uses it twice: to filter OCR text down to dish
// names, and to turn a dish name into image search keywords.
package llm

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Request is one prompt sent to a model.
type Request struct {
	Prompt      string
	Temperature float64
	MaxTokens   int // 0 means defaultMaxTokens
}

// Completion is the text a model produced for a Request.
type Completion struct {
	Text string
}

// Client is the interface for LLM providers.
// Gemini, OpenAI and Anthropic implement this interface, allowing
// the service to fall back from one to the next.
//
// Go interface design tip: keep interfaces small. The bigger the interface,
// the harder it is to implement and mock.
type Client interface {
	Complete(ctx context.Context, req Request) (*Completion, error)
	ProviderName() string
	ModelName() string
}

var (
	// ErrEmptyResponse means the model answered but produced no usable text
	// and did not report a content block.
	ErrEmptyResponse = errors.New("llm returned no text")

	// ErrTruncated means the model stopped at the output token limit, so the
	// text it produced is incomplete.
	ErrTruncated = errors.New("llm output truncated at the token limit")

	// ErrNotConfigured means no provider has an API key.
	ErrNotConfigured = errors.New("no LLM providers configured")
)

// BlockedError is returned when a provider refuses to generate content
// (safety filters, refusals). Callers use errors.As to pull out the reason.
type BlockedError struct {
	Reason string
}

func (e *BlockedError) Error() string {
	return fmt.Sprintf("content blocked: %s", e.Reason)
}

// defaultMaxTokens caps replies when the caller does not set Request.MaxTokens.
// Anthropic requires an explicit limit, so every provider gets one.
const defaultMaxTokens = 1024

func maxTokens(req Request) int {
	if req.MaxTokens > 0 {
		return req.MaxTokens
	}
	return defaultMaxTokens
}

// WithTimeout bounds every Complete call on c. A non-positive d returns c unchanged.
func WithTimeout(c Client, d time.Duration) Client {
	if d <= 0 {
		return c
	}
	return timedClient{Client: c, timeout: d}
}

type timedClient struct {
	Client
	timeout time.Duration
}

func (t timedClient) Complete(ctx context.Context, req Request) (*Completion, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	return t.Client.Complete(ctx, req)
}
