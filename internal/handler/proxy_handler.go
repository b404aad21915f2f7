package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/fleveque/menu-service/internal/model"
	"github.com/fleveque/menu-service/internal/service"
)

// ImageResolver is satisfied by service.ImageResolver.
type ImageResolver interface {
	Resolve(ctx context.Context, rawURL string) (*model.ResolvedImage, error)
}

// ProxyHandler streams third-party images through this service, so the
// browser never hits hosts that block hotlinking or serve HTML pages.
type ProxyHandler struct {
	resolver ImageResolver
	logger   *zap.Logger
}

func NewProxyHandler(resolver ImageResolver, logger *zap.Logger) *ProxyHandler {
	return &ProxyHandler{resolver: resolver, logger: logger}
}

// ProxyImage fetches image_url (or the image its page declares) and returns the bytes.
// Route: GET /proxy_image/?image_url=<url>
func (h *ProxyHandler) ProxyImage(c *gin.Context) {
	imageURL := c.Query("image_url")
	if imageURL == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "image_url query parameter is required"})
		return
	}

	img, err := h.resolver.Resolve(c.Request.Context(), imageURL)
	if err != nil {
		var re *service.ResolveError
		if errors.As(err, &re) {
			h.logger.Warn("proxy image failed",
				zap.String("image_url", imageURL),
				zap.String("kind", string(re.Kind)),
				zap.Int("status", re.Status),
				zap.Error(err),
			)
			c.JSON(re.Status, gin.H{"error": re.Message})
			return
		}
		h.logger.Error("proxy image failed", zap.String("image_url", imageURL), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	c.Data(http.StatusOK, img.ContentType, img.Data)
}
