package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/fleveque/menu-service/internal/llm"
	"github.com/fleveque/menu-service/internal/model"
	"github.com/fleveque/menu-service/internal/provider"
	"github.com/fleveque/menu-service/internal/storage"
)

const (
	msgDishRequired     = "Dish name must be a non-empty string."
	msgSearchNotEnabled = "CSE_API_KEY or CSE_CX not set in environment for image search."
)

// DishService finds a representative photo for a dish name.
type DishService struct {
	llm         *provider.LLMProvider  // nil: always use the fallback query
	searcher    provider.ImageSearcher // nil: search is not configured
	lookupRepo  storage.DishLookupRepository
	temperature float64
	logger      *zap.Logger
}

func NewDishService(
	llmProvider *provider.LLMProvider,
	searcher provider.ImageSearcher,
	lookupRepo storage.DishLookupRepository,
	temperature float64,
	logger *zap.Logger,
) *DishService {
	return &DishService{
		llm:         llmProvider,
		searcher:    searcher,
		lookupRepo:  lookupRepo,
		temperature: temperature,
		logger:      logger,
	}
}

// FallbackQuery is the search query used whenever the LLM can't produce one.
func FallbackQuery(dish string) string {
	return dish + " meal photo"
}

// queryMaxTokens bounds the keyword reply; a truncated one falls back like any
// other LLM failure.
const queryMaxTokens = 64

// ComposeQuery turns a dish name into image search keywords. Any LLM failure
// (not configured, blocked, empty, transport) falls back to FallbackQuery;
// this never fails.
func (s *DishService) ComposeQuery(ctx context.Context, dish string) (string, model.QuerySource) {
	fallback := FallbackQuery(dish)

	if !s.llm.Configured() {
		s.logger.Debug("no LLM configured, using fallback query", zap.String("dish", dish))
		return fallback, model.QuerySourceFallback
	}

	completion, err := s.llm.Complete(ctx, model.PurposeQuery, dish, llm.Request{
		Prompt:      llm.QueryPrompt(dish),
		Temperature: s.temperature,
		MaxTokens:   queryMaxTokens,
	})
	if err != nil {
		var blocked *llm.BlockedError
		if errors.As(err, &blocked) {
			s.logger.Warn("query generation blocked, using fallback",
				zap.String("dish", dish),
				zap.String("reason", blocked.Reason),
			)
		} else {
			s.logger.Warn("query generation failed, using fallback",
				zap.String("dish", dish),
				zap.Error(err),
			)
		}
		return fallback, model.QuerySourceFallback
	}

	query := stripQuotes(completion.Text)
	if query == "" {
		s.logger.Warn("LLM query empty after cleanup, using fallback", zap.String("dish", dish))
		return fallback, model.QuerySourceFallback
	}
	return query, model.QuerySourceLLM
}

// FindDishImage composes a query for dish and returns the first image hit.
func (s *DishService) FindDishImage(ctx context.Context, dish string) model.DishImageResult {
	start := time.Now()
	dish = strings.TrimSpace(dish)

	// Nothing is recorded for input that never reached a provider.
	if dish == "" {
		return model.DishImageError(msgDishRequired)
	}
	if s.searcher == nil {
		s.logger.Error("image search not configured")
		return model.DishImageError(msgSearchNotEnabled)
	}

	query, source := s.ComposeQuery(ctx, dish)
	s.logger.Info("searching dish image",
		zap.String("dish", dish),
		zap.String("query", query),
		zap.String("query_source", string(source)),
	)

	var result model.DishImageResult
	hit, err := s.searcher.SearchImage(ctx, query)
	if err != nil {
		s.logger.Error("image search failed", zap.String("dish", dish), zap.Error(err))
		result = model.DishImageError(fmt.Sprintf("Network error: %v", err))
	} else {
		result = model.DishImageFound(hit.URL)
	}

	s.recordLookup(ctx, dish, query, source, result, time.Since(start).Milliseconds())
	return result
}

func (s *DishService) recordLookup(ctx context.Context, dish, query string, source model.QuerySource, result model.DishImageResult, durationMs int64) {
	if s.lookupRepo == nil {
		return
	}

	lookup := &model.DishLookup{
		Dish:        dish,
		Query:       query,
		QuerySource: source,
		URL:         result.URL,
		Status:      result.Status,
		DurationMs:  durationMs,
	}
	if result.IsError() {
		lookup.ErrorMessage = &result.Message
	}

	if err := s.lookupRepo.Create(context.WithoutCancel(ctx), lookup); err != nil {
		s.logger.Error("recording dish lookup", zap.Error(err))
	}
}

// stripQuotes trims the text and removes one layer of matching wrapping
// quotes, single or double. A lone quote character becomes empty.
func stripQuotes(s string) string {
	s = strings.TrimSpace(s)
	for _, q := range []string{`"`, `'`} {
		if strings.HasPrefix(s, q) && strings.HasSuffix(s, q) {
			if len(s) <= 1 {
				return ""
			}
			return strings.TrimSpace(s[1 : len(s)-1])
		}
	}
	return s
}
