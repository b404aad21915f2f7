package server

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/fleveque/menu-service/internal/config"
	"github.com/fleveque/menu-service/internal/llm"
	"github.com/fleveque/menu-service/internal/ocr"
	"github.com/fleveque/menu-service/internal/provider"
	"github.com/fleveque/menu-service/internal/service"
	"github.com/fleveque/menu-service/internal/storage"
)

// Deps holds everything the handlers and the CLI need, built once from config.
// Optional collaborators are nil when their credentials are missing; the
// services turn that into per-request errors or degraded results.
type Deps struct {
	DB          *sqlx.DB // nil when the audit store is disabled
	ScanRepo    storage.MenuScanRepository
	LookupRepo  storage.DishLookupRepository
	LLMCallRepo storage.LLMCallRepository

	OCR      ocr.Engine
	LLM      *provider.LLMProvider
	Searcher provider.ImageSearcher

	MenuService *service.MenuService
	DishService *service.DishService
	Resolver    *service.ImageResolver
}

// Close releases the audit database, if open.
func (d *Deps) Close() error {
	if d.DB == nil {
		return nil
	}
	return d.DB.Close()
}

// BuildDeps wires storage, external clients and services from cfg.
// In Go, we pass dependencies explicitly: no DI container, no magic.
func BuildDeps(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Deps, error) {
	deps := &Deps{}

	if cfg.Storage.DatabasePath != "" {
		db, err := storage.NewDatabase(cfg.Storage.DatabasePath)
		if err != nil {
			return nil, fmt.Errorf("opening audit database: %w", err)
		}
		deps.DB = db
		deps.ScanRepo = storage.NewMenuScanRepository(db)
		deps.LookupRepo = storage.NewDishLookupRepository(db)
		deps.LLMCallRepo = storage.NewLLMCallRepository(db)
	} else {
		logger.Info("audit store disabled")
	}

	engine, err := buildOCREngine(ctx, cfg.OCR, logger)
	if err != nil {
		deps.Close()
		return nil, err
	}
	deps.OCR = ocr.WithTimeout(engine, cfg.OCR.Timeout)

	clients, err := buildLLMClients(ctx, cfg.LLM, logger)
	if err != nil {
		deps.Close()
		return nil, err
	}
	deps.LLM = provider.NewLLMProvider(clients, cfg.LLM.RatePerMinute, deps.LLMCallRepo, logger)

	if cfg.Search.Configured() {
		searcher, err := provider.NewGoogleImageSearch(ctx, cfg.Search.APIKey, cfg.Search.CX, cfg.Search.Timeout, logger)
		if err != nil {
			deps.Close()
			return nil, err
		}
		deps.Searcher = searcher
	} else {
		logger.Warn("image search not configured, dish lookups will fail until CSE_API_KEY and CSE_CX are set")
	}

	processor := service.NewImageProcessor(cfg.Upload.MaxDimension)
	filter := service.NewItemFilter(deps.LLM, cfg.LLM.FilterTemperature, logger)
	deps.MenuService = service.NewMenuService(deps.OCR, processor, filter, deps.ScanRepo, logger)
	deps.DishService = service.NewDishService(deps.LLM, deps.Searcher, deps.LookupRepo, cfg.LLM.QueryTemperature, logger)

	fetcher := provider.NewFetcher(cfg.Proxy.UserAgent, cfg.Proxy.Timeout, cfg.Proxy.MaxBodyBytes)
	deps.Resolver = service.NewImageResolver(fetcher, logger)

	logger.Info("dependencies ready",
		zap.String("ocr_engine", deps.OCR.Name()),
		zap.Strings("llm_providers", deps.LLM.Providers()),
		zap.Bool("image_search", deps.Searcher != nil),
		zap.Bool("audit_store", deps.DB != nil),
	)

	return deps, nil
}

func buildOCREngine(ctx context.Context, cfg config.OCRConfig, logger *zap.Logger) (ocr.Engine, error) {
	switch cfg.Engine {
	case "google", "":
		if cfg.Google.APIKey == "" {
			logger.Warn("VISION_API_KEY not set, menu uploads will fail")
			return ocr.Unconfigured{Engine: "google"}, nil
		}
		return ocr.NewGoogleVision(ctx, cfg.Google.APIKey)
	case "rekognition":
		return ocr.NewRekognition(ctx, cfg.Rekognition.Region)
	case "tesseract":
		return ocr.NewTesseract(cfg.Tesseract.Languages), nil
	default:
		return nil, fmt.Errorf("unknown OCR engine %q (want google, rekognition or tesseract)", cfg.Engine)
	}
}

// buildLLMClients creates a client for each provider in the configured order
// that has an API key. An empty result is valid and means degraded mode.
func buildLLMClients(ctx context.Context, cfg config.LLMConfig, logger *zap.Logger) ([]llm.Client, error) {
	var clients []llm.Client

	for _, name := range cfg.ProviderOrder {
		var client llm.Client

		switch name {
		case "gemini":
			if cfg.Gemini.APIKey == "" {
				continue
			}
			gemini, err := llm.NewGeminiClient(ctx, cfg.Gemini.APIKey, cfg.Gemini.Model, "")
			if err != nil {
				return nil, err
			}
			client = gemini
		case "openai":
			if cfg.OpenAI.APIKey == "" {
				continue
			}
			client = llm.NewOpenAIClient(cfg.OpenAI.APIKey, cfg.OpenAI.Model)
		case "anthropic":
			if cfg.Anthropic.APIKey == "" {
				continue
			}
			client = llm.NewAnthropicClient(cfg.Anthropic.APIKey, cfg.Anthropic.Model)
		default:
			logger.Warn("unknown LLM provider in provider_order", zap.String("provider", name))
			continue
		}

		clients = append(clients, llm.WithTimeout(client, cfg.Timeout))
	}

	if len(clients) == 0 {
		logger.Warn("no LLM API keys set, menu filtering is skipped and dish queries use the fallback")
	}
	return clients, nil
}
