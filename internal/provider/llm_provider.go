package provider

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/fleveque/menu-service/internal/llm"
	"github.com/fleveque/menu-service/internal/model"
	"github.com/fleveque/menu-service/internal/storage"
)

// LLMProvider runs a prompt against the configured LLM clients in order.
//
// An optional per-minute budget keeps API costs predictable. A transport
// failure falls through to the next provider; a content block, an empty or a
// truncated answer does not, since another model is being asked the same
// question about the same text.
type LLMProvider struct {
	clients     []llm.Client // Ordered list: first is primary, rest are fallbacks
	limiter     *rate.Limiter
	llmCallRepo storage.LLMCallRepository // nil disables call tracking
	logger      *zap.Logger
}

// NewLLMProvider creates a provider with an ordered list of LLM clients.
// The order is configurable via config.yaml: llm.provider_order: ["gemini", "openai"]
// This means swapping provider priority is a config change, not a code change.
func NewLLMProvider(
	clients []llm.Client,
	ratePerMinute int,
	llmCallRepo storage.LLMCallRepository,
	logger *zap.Logger,
) *LLMProvider {
	// rate.Every returns a rate.Limit from a time interval between events.
	// A non-positive rate turns limiting off. The bucket holds a full minute
	// of budget, so concurrent requests only wait once that is spent.
	limit, burst := rate.Inf, 1
	if ratePerMinute > 0 {
		limit = rate.Every(time.Minute / time.Duration(ratePerMinute))
		burst = ratePerMinute
	}

	return &LLMProvider{
		clients:     clients,
		limiter:     rate.NewLimiter(limit, burst),
		llmCallRepo: llmCallRepo,
		logger:      logger,
	}
}

// Configured reports whether at least one LLM client is available.
// A nil provider is valid and unconfigured.
func (p *LLMProvider) Configured() bool {
	return p != nil && len(p.clients) > 0
}

// Providers returns the names of the configured clients, in order.
func (p *LLMProvider) Providers() []string {
	if p == nil {
		return nil
	}
	names := make([]string, 0, len(p.clients))
	for _, c := range p.clients {
		names = append(names, c.ProviderName())
	}
	return names
}

// Complete asks LLM providers (in configured order) to answer the request.
// purpose and subject are only used for call tracking and logs.
func (p *LLMProvider) Complete(ctx context.Context, purpose model.LLMPurpose, subject string, req llm.Request) (*llm.Completion, error) {
	if !p.Configured() {
		return nil, llm.ErrNotConfigured
	}

	var lastErr error

	for i, client := range p.clients {
		// Rate limit: blocks until a token is available or context is cancelled.
		if err := p.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limit wait: %w", err)
		}

		start := time.Now()
		completion, err := client.Complete(ctx, req)
		p.recordCall(ctx, client, purpose, subject, err, time.Since(start).Milliseconds())

		if err == nil {
			return completion, nil
		}

		var blocked *llm.BlockedError
		if errors.As(err, &blocked) || errors.Is(err, llm.ErrEmptyResponse) || errors.Is(err, llm.ErrTruncated) {
			return nil, err
		}

		lastErr = err

		if i < len(p.clients)-1 {
			p.logger.Warn("LLM provider failed, trying next",
				zap.String("purpose", string(purpose)),
				zap.String("provider", client.ProviderName()),
				zap.Error(err),
			)
		}
	}

	return nil, fmt.Errorf("all LLM providers failed: %w", lastErr)
}

func (p *LLMProvider) recordCall(ctx context.Context, client llm.Client, purpose model.LLMPurpose, subject string, callErr error, durationMs int64) {
	if p.llmCallRepo == nil {
		return
	}

	var blocked *llm.BlockedError
	call := &model.LLMCall{
		Purpose:  purpose,
		Subject:  truncate(subject, 200),
		Provider: client.ProviderName(),
		Model:    client.ModelName(),
		Success:  callErr == nil,
		Blocked:  errors.As(callErr, &blocked),
	}
	call.DurationMs = &durationMs

	// Tracking must outlive a cancelled request context.
	if err := p.llmCallRepo.Create(context.WithoutCancel(ctx), call); err != nil {
		p.logger.Error("recording LLM call", zap.Error(err))
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
