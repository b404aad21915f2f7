package handler

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/fleveque/menu-service/internal/model"
)

// MenuDetector is satisfied by service.MenuService.
type MenuDetector interface {
	DetectMenu(ctx context.Context, image []byte) model.MenuResult
}

// DishImageFinder is satisfied by service.DishService.
type DishImageFinder interface {
	FindDishImage(ctx context.Context, dish string) model.DishImageResult
}

// MenuHandler serves the two menu endpoints: photo upload and dish image lookup.
type MenuHandler struct {
	menus    MenuDetector
	dishes   DishImageFinder
	maxBytes int64
	logger   *zap.Logger
}

// NewMenuHandler creates a new MenuHandler. maxBytes caps the upload size.
func NewMenuHandler(menus MenuDetector, dishes DishImageFinder, maxBytes int64, logger *zap.Logger) *MenuHandler {
	return &MenuHandler{
		menus:    menus,
		dishes:   dishes,
		maxBytes: maxBytes,
		logger:   logger,
	}
}

// UploadMenu runs OCR and filtering on an uploaded menu photo.
// Route: POST /upload_menu/ (multipart, field "file")
func (h *MenuHandler) UploadMenu(c *gin.Context) {
	if h.maxBytes > 0 {
		// MaxBytesReader fails the read once the limit is crossed, so an
		// oversized upload is never fully buffered.
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxBytes)
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "uploaded file is too large"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "multipart field 'file' is required"})
		return
	}

	f, err := fileHeader.Open()
	if err != nil {
		h.logger.Error("opening uploaded file", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not read uploaded file"})
		return
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		h.logger.Error("reading uploaded file", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not read uploaded file"})
		return
	}
	if len(data) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "uploaded file is empty"})
		return
	}

	h.logger.Info("menu uploaded",
		zap.String("filename", fileHeader.Filename),
		zap.Int("bytes", len(data)),
		zap.String("request_id", c.GetString("request_id")),
	)

	result := h.menus.DetectMenu(c.Request.Context(), data)
	if result.IsError() {
		c.JSON(http.StatusInternalServerError, gin.H{"error": result.Message})
		return
	}
	c.JSON(http.StatusOK, result)
}

// dishRequest keeps Dish untyped so a non-string value is a validation
// error rather than a bind error.
type dishRequest struct {
	Dish any `json:"dish"`
}

// GetDishImage finds a representative photo for one dish.
// Route: POST /get_dish_image/ with body {"dish": "Pad Thai"}
func (h *MenuHandler) GetDishImage(c *gin.Context) {
	var req dishRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Valid 'dish' string required."})
		return
	}

	dish, ok := req.Dish.(string)
	if !ok || strings.TrimSpace(dish) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Valid 'dish' string required."})
		return
	}

	result := h.dishes.FindDishImage(c.Request.Context(), strings.TrimSpace(dish))
	if result.IsError() {
		c.JSON(http.StatusInternalServerError, gin.H{"error": result.Message})
		return
	}
	c.JSON(http.StatusOK, result)
}
