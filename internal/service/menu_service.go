// Package service contains the core business logic of the menu pipeline:
// OCR plus LLM filtering for menu photos, query composition plus image search
// for dishes, and page-to-image resolution for the proxy.
//
// Every entry point here returns a status-tagged result instead of an error,
// so handlers and the CLI never see a panic or a raw provider failure.
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
	"github.com/fleveque/menu-service/internal/ocr"
	"github.com/fleveque/menu-service/internal/provider"
	"github.com/fleveque/menu-service/internal/storage"
)

const (
	msgFilterSkipped     = "LLM filtering skipped"
	msgFilterParseFailed = "LLM response parsing failed (detect_menu filtering) and not blocked by safety."
	msgFilterTruncated   = "LLM response truncated (detect_menu filtering): output token limit reached."
)

// filterMaxTokens is the largest output every default model accepts
// (Gemini 1.5 Flash and Claude 3.5 Haiku stop at 8192). A long menu needs
// the room; a reply cut at the limit is rejected rather than returned partially.
const filterMaxTokens = 8192

// ItemFilter reduces raw OCR text to orderable dish names using an LLM.
type ItemFilter struct {
	llm         *provider.LLMProvider // nil or empty: filtering is skipped
	temperature float64
	logger      *zap.Logger
}

func NewItemFilter(llmProvider *provider.LLMProvider, temperature float64, logger *zap.Logger) *ItemFilter {
	return &ItemFilter{llm: llmProvider, temperature: temperature, logger: logger}
}

// Filter returns the dish names found in rawText. Without a configured LLM it
// degrades to the raw OCR lines with status success_ocr_only.
func (f *ItemFilter) Filter(ctx context.Context, rawText string) model.MenuResult {
	if !f.llm.Configured() {
		f.logger.Warn("no LLM configured, returning raw OCR lines")
		return model.MenuOCROnly(splitLines(rawText), msgFilterSkipped)
	}

	completion, err := f.llm.Complete(ctx, model.PurposeFilter, "menu", llm.Request{
		Prompt:      llm.FilterPrompt(rawText),
		Temperature: f.temperature,
		MaxTokens:   filterMaxTokens,
	})
	if err != nil {
		var blocked *llm.BlockedError
		switch {
		case errors.As(err, &blocked):
			f.logger.Error("LLM blocked menu filtering", zap.String("reason", blocked.Reason))
			return model.MenuError("LLM content generation blocked: " + blocked.Reason)
		case errors.Is(err, llm.ErrEmptyResponse):
			f.logger.Warn("LLM returned no text for menu filtering")
			return model.MenuError(msgFilterParseFailed)
		case errors.Is(err, llm.ErrTruncated):
			f.logger.Error("LLM hit the output limit during menu filtering", zap.Int("max_tokens", filterMaxTokens))
			return model.MenuError(msgFilterTruncated)
		default:
			f.logger.Error("menu filtering failed", zap.Error(err))
			return model.MenuError(fmt.Sprintf("LLM filtering failed: %v", err))
		}
	}

	items := splitLines(completion.Text)
	f.logger.Info("LLM filtered menu", zap.Int("items", len(items)))
	return model.MenuSuccess(items)
}

// MenuService runs a menu photo through preprocessing, OCR and the item filter.
type MenuService struct {
	engine    ocr.Engine
	processor *ImageProcessor // nil skips preprocessing
	filter    *ItemFilter
	scanRepo  storage.MenuScanRepository // nil disables audit
	logger    *zap.Logger
}

func NewMenuService(
	engine ocr.Engine,
	processor *ImageProcessor,
	filter *ItemFilter,
	scanRepo storage.MenuScanRepository,
	logger *zap.Logger,
) *MenuService {
	return &MenuService{
		engine:    engine,
		processor: processor,
		filter:    filter,
		scanRepo:  scanRepo,
		logger:    logger,
	}
}

// DetectMenu extracts dish names from a menu photo.
func (s *MenuService) DetectMenu(ctx context.Context, image []byte) model.MenuResult {
	start := time.Now()

	result, ocrChars := s.detect(ctx, image)

	s.recordScan(ctx, result, ocrChars, time.Since(start).Milliseconds())
	return result
}

func (s *MenuService) detect(ctx context.Context, image []byte) (model.MenuResult, int) {
	if len(image) == 0 {
		return model.MenuError("empty image"), 0
	}

	prepared := image
	if s.processor != nil {
		out, err := s.processor.PrepareForOCR(image)
		if err != nil {
			// The original upload may still be readable by the OCR engine.
			s.logger.Warn("image preprocessing failed, using original bytes", zap.Error(err))
		} else {
			prepared = out
		}
	}

	s.logger.Info("running OCR",
		zap.String("engine", s.engine.Name()),
		zap.Int("bytes", len(prepared)),
	)

	text, err := s.engine.DetectText(ctx, prepared)
	if err != nil {
		s.logger.Error("OCR failed", zap.String("engine", s.engine.Name()), zap.Error(err))
		if errors.Is(err, ocr.ErrNotConfigured) {
			return model.MenuError(fmt.Sprintf("%v: %s", err, s.engine.Name())), 0
		}
		return model.MenuError(fmt.Sprintf("OCR failed: %v", err)), 0
	}

	raw := strings.TrimSpace(text)
	if raw == "" {
		s.logger.Info("OCR found no text")
		return model.MenuSuccess(nil), 0
	}

	return s.filter.Filter(ctx, raw), len(raw)
}

func (s *MenuService) recordScan(ctx context.Context, result model.MenuResult, ocrChars int, durationMs int64) {
	if s.scanRepo == nil {
		return
	}

	scan := &model.MenuScan{
		Status:     result.Status,
		Engine:     s.engine.Name(),
		ItemCount:  len(result.Items),
		OCRChars:   ocrChars,
		DurationMs: durationMs,
	}
	if result.IsError() {
		scan.ErrorMessage = &result.Message
	}

	if err := s.scanRepo.Create(context.WithoutCancel(ctx), scan); err != nil {
		s.logger.Error("recording menu scan", zap.Error(err))
	}
}

// splitLines trims every line and drops the empty ones. Duplicates are kept.
func splitLines(text string) []string {
	lines := strings.Split(text, "\n")
	out := make([]string, 0, len(lines))
	for _, l := range lines {
		if l = strings.TrimSpace(l); l != "" {
			out = append(out, l)
		}
	}
	return out
}
