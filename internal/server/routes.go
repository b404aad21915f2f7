package server

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/fleveque/menu-service/internal/config"
	"github.com/fleveque/menu-service/internal/handler"
	"github.com/fleveque/menu-service/internal/middleware"
)

// RegisterRoutes sets up all HTTP routes on the Gin engine.
// Each handler gets exactly the dependencies it needs.
func RegisterRoutes(r *gin.Engine, cfg *config.Config, deps *Deps, logger *zap.Logger) {
	healthHandler := handler.NewHealthHandler(handler.HealthInfo{
		OCREngine:    deps.OCR.Name(),
		LLMProviders: deps.LLM.Providers(),
		ImageSearch:  deps.Searcher != nil,
		AuditStore:   deps.DB != nil,
	})
	menuHandler := handler.NewMenuHandler(deps.MenuService, deps.DishService, cfg.Upload.MaxBytes, logger)
	proxyHandler := handler.NewProxyHandler(deps.Resolver, logger)
	adminHandler := handler.NewAdminHandler(deps.ScanRepo, deps.LookupRepo, deps.LLMCallRepo, logger)

	// Engine-level middleware also runs for unmatched routes, which is what
	// lets CORS answer preflight OPTIONS requests.
	r.Use(middleware.CORS(cfg.CORS.AllowedOrigins))

	// Public endpoints (no auth)
	r.GET("/healthz", healthHandler.Healthz)

	// API endpoints. Auth is a no-op when no API keys are configured.
	api := r.Group("")
	api.Use(middleware.APIKeyAuth(cfg.Auth.APIKeys))
	api.Use(middleware.RateLimit(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst))
	{
		api.POST("/upload_menu/", menuHandler.UploadMenu)
		api.POST("/get_dish_image/", menuHandler.GetDishImage)
		api.GET("/proxy_image/", proxyHandler.ProxyImage)
	}

	// Admin endpoints (separate auth with admin keys)
	admin := r.Group("/admin")
	admin.Use(middleware.AdminKeyAuth(cfg.Auth.AdminKeys))
	{
		admin.GET("/stats", adminHandler.Stats)
	}
}
