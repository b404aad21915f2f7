package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Server.Address() != "0.0.0.0:8000" {
		t.Errorf("expected address 0.0.0.0:8000, got %s", cfg.Server.Address())
	}
	if cfg.OCR.Engine != "google" {
		t.Errorf("expected google OCR engine, got %q", cfg.OCR.Engine)
	}
	if cfg.LLM.RatePerMinute != 0 {
		t.Errorf("expected LLM rate limiting off by default, got %d/min", cfg.LLM.RatePerMinute)
	}
	if cfg.LLM.FilterTemperature != 0.1 || cfg.LLM.QueryTemperature != 0.2 {
		t.Errorf("unexpected temperatures: filter=%v query=%v", cfg.LLM.FilterTemperature, cfg.LLM.QueryTemperature)
	}
	if cfg.Proxy.Timeout != 20*time.Second {
		t.Errorf("expected 20s proxy timeout, got %s", cfg.Proxy.Timeout)
	}
	if cfg.Proxy.UserAgent != DefaultUserAgent {
		t.Errorf("expected default user agent, got %q", cfg.Proxy.UserAgent)
	}
	if len(cfg.CORS.AllowedOrigins) != 1 || cfg.CORS.AllowedOrigins[0] != "*" {
		t.Errorf("expected permissive CORS default, got %v", cfg.CORS.AllowedOrigins)
	}
}

func TestLoad_LegacyEnvNames(t *testing.T) {
	t.Setenv("VISION_API_KEY", "vision-key")
	t.Setenv("GEMINI_API_KEY", "gemini-key")
	t.Setenv("CSE_API_KEY", "cse-key")
	t.Setenv("CSE_CX", "cse-cx")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.OCR.Google.APIKey != "vision-key" {
		t.Errorf("expected vision key from VISION_API_KEY, got %q", cfg.OCR.Google.APIKey)
	}
	if cfg.LLM.Gemini.APIKey != "gemini-key" {
		t.Errorf("expected gemini key from GEMINI_API_KEY, got %q", cfg.LLM.Gemini.APIKey)
	}
	if !cfg.Search.Configured() {
		t.Errorf("expected search to be configured, got %+v", cfg.Search)
	}
}

func TestLoad_PrefixedEnvWinsOverLegacy(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "legacy")
	t.Setenv("MENU_LLM_GEMINI_API_KEY", "prefixed")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.LLM.Gemini.APIKey != "prefixed" {
		t.Errorf("expected prefixed env to win, got %q", cfg.LLM.Gemini.APIKey)
	}
}

func TestLoad_YAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := `
server:
  port: 9191
ocr:
  engine: tesseract
  tesseract:
    languages: ["eng", "fra"]
proxy:
  timeout: 5s
`
	if err := os.WriteFile(path, []byte(yaml), 0644); err != nil {
		t.Fatalf("writing config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Server.Port != 9191 {
		t.Errorf("expected port 9191, got %d", cfg.Server.Port)
	}
	if cfg.OCR.Engine != "tesseract" {
		t.Errorf("expected tesseract engine, got %q", cfg.OCR.Engine)
	}
	if len(cfg.OCR.Tesseract.Languages) != 2 {
		t.Errorf("expected 2 languages, got %v", cfg.OCR.Tesseract.Languages)
	}
	if cfg.Proxy.Timeout != 5*time.Second {
		t.Errorf("expected 5s proxy timeout, got %s", cfg.Proxy.Timeout)
	}
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err == nil {
		t.Fatal("expected error for missing explicit config file")
	}
}

func TestSearchConfig_Configured(t *testing.T) {
	tests := []struct {
		name string
		cfg  SearchConfig
		want bool
	}{
		{"both", SearchConfig{APIKey: "k", CX: "c"}, true},
		{"missing cx", SearchConfig{APIKey: "k"}, false},
		{"missing key", SearchConfig{CX: "c"}, false},
		{"empty", SearchConfig{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.cfg.Configured(); got != tt.want {
				t.Errorf("Configured() = %v, want %v", got, tt.want)
			}
		})
	}
}
