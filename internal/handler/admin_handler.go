package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/fleveque/menu-service/internal/model"
	"github.com/fleveque/menu-service/internal/storage"
)

// AdminHandler handles administrative endpoints.
type AdminHandler struct {
	scanRepo    storage.MenuScanRepository
	lookupRepo  storage.DishLookupRepository
	llmCallRepo storage.LLMCallRepository
	logger      *zap.Logger
}

// NewAdminHandler creates a new AdminHandler. Nil repositories mean the
// audit store is disabled.
func NewAdminHandler(
	scanRepo storage.MenuScanRepository,
	lookupRepo storage.DishLookupRepository,
	llmCallRepo storage.LLMCallRepository,
	logger *zap.Logger,
) *AdminHandler {
	return &AdminHandler{
		scanRepo:    scanRepo,
		lookupRepo:  lookupRepo,
		llmCallRepo: llmCallRepo,
		logger:      logger,
	}
}

// Stats returns usage counts from the audit store.
// Route: GET /admin/stats
func (h *AdminHandler) Stats(c *gin.Context) {
	if h.scanRepo == nil || h.lookupRepo == nil || h.llmCallRepo == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "audit store disabled"})
		return
	}

	ctx := c.Request.Context()

	// Each counter is one query; the first failure aborts with a 500.
	counters := []struct {
		name  string
		count func(context.Context) (int64, error)
	}{
		{"menu_scans", h.scanRepo.Count},
		{"menu_scans_failed", func(ctx context.Context) (int64, error) {
			return h.scanRepo.CountByStatus(ctx, model.StatusError)
		}},
		{"menu_scans_ocr_only", func(ctx context.Context) (int64, error) {
			return h.scanRepo.CountByStatus(ctx, model.StatusSuccessOCROnly)
		}},
		{"dish_lookups", h.lookupRepo.Count},
		{"dish_lookups_failed", func(ctx context.Context) (int64, error) {
			return h.lookupRepo.CountByStatus(ctx, model.StatusError)
		}},
		{"dish_lookups_without_image", h.lookupRepo.CountMisses},
		{"llm_filter_calls", func(ctx context.Context) (int64, error) {
			return h.llmCallRepo.CountByPurpose(ctx, model.PurposeFilter)
		}},
		{"llm_query_calls", func(ctx context.Context) (int64, error) {
			return h.llmCallRepo.CountByPurpose(ctx, model.PurposeQuery)
		}},
		{"llm_blocked", h.llmCallRepo.CountBlocked},
	}

	stats := gin.H{}
	for _, counter := range counters {
		n, err := counter.count(ctx)
		if err != nil {
			h.logger.Error("computing stats", zap.String("counter", counter.name), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}
		stats[counter.name] = n
	}

	recent, err := h.lookupRepo.ListRecent(ctx, 10)
	if err != nil {
		h.logger.Error("listing recent lookups", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	if recent == nil {
		recent = []model.DishLookup{}
	}
	stats["recent_lookups"] = recent

	c.JSON(http.StatusOK, stats)
}
