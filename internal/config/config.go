// Package config handles application configuration using Viper.
// Viper supports YAML files, environment variables, and defaults — merged in priority order.
// Go convention: configuration is loaded into structs, not accessed as raw key-value pairs.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config is the root configuration struct. Nested structs organize related settings.
// `mapstructure` tags tell Viper how to map YAML/env keys to struct fields.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Auth      AuthConfig      `mapstructure:"auth"`
	CORS      CORSConfig      `mapstructure:"cors"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Log       LogConfig       `mapstructure:"log"`
	Upload    UploadConfig    `mapstructure:"upload"`
	OCR       OCRConfig       `mapstructure:"ocr"`
	LLM       LLMConfig       `mapstructure:"llm"`
	Search    SearchConfig    `mapstructure:"search"`
	Proxy     ProxyConfig     `mapstructure:"proxy"`
}

type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// StorageConfig points at the SQLite audit database. An empty path disables auditing.
type StorageConfig struct {
	DatabasePath string `mapstructure:"database_path"`
}

type AuthConfig struct {
	APIKeys   []string `mapstructure:"api_keys"`
	AdminKeys []string `mapstructure:"admin_keys"`
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type RateLimitConfig struct {
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	Burst             int     `mapstructure:"burst"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

type UploadConfig struct {
	MaxBytes     int64 `mapstructure:"max_bytes"`
	MaxDimension int   `mapstructure:"max_dimension"`
}

// OCRConfig selects the text-detection engine: "google", "rekognition" or "tesseract".
type OCRConfig struct {
	Engine      string            `mapstructure:"engine"`
	Timeout     time.Duration     `mapstructure:"timeout"`
	Google      GoogleOCRConfig   `mapstructure:"google"`
	Rekognition RekognitionConfig `mapstructure:"rekognition"`
	Tesseract   TesseractConfig   `mapstructure:"tesseract"`
}

type GoogleOCRConfig struct {
	APIKey string `mapstructure:"api_key"`
}

type RekognitionConfig struct {
	Region string `mapstructure:"region"`
}

type TesseractConfig struct {
	Languages []string `mapstructure:"languages"`
}

type LLMConfig struct {
	// ProviderOrder controls which LLM providers are used and in what order.
	// First provider is primary, rest are fallbacks. Example: ["gemini", "openai"]
	ProviderOrder     []string        `mapstructure:"provider_order"`
	Gemini            GeminiConfig    `mapstructure:"gemini"`
	OpenAI            OpenAIConfig    `mapstructure:"openai"`
	Anthropic         AnthropicConfig `mapstructure:"anthropic"`
	RatePerMinute     int             `mapstructure:"rate_per_minute"`
	Timeout           time.Duration   `mapstructure:"timeout"`
	FilterTemperature float64         `mapstructure:"filter_temperature"`
	QueryTemperature  float64         `mapstructure:"query_temperature"`
}

type GeminiConfig struct {
	APIKey string `mapstructure:"api_key"`
	Model  string `mapstructure:"model"`
}

type OpenAIConfig struct {
	APIKey string `mapstructure:"api_key"`
	Model  string `mapstructure:"model"`
}

type AnthropicConfig struct {
	APIKey string `mapstructure:"api_key"`
	Model  string `mapstructure:"model"`
}

// SearchConfig holds the Programmable Search Engine credentials used for dish photos.
type SearchConfig struct {
	APIKey  string        `mapstructure:"api_key"`
	CX      string        `mapstructure:"cx"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type ProxyConfig struct {
	Timeout      time.Duration `mapstructure:"timeout"`
	UserAgent    string        `mapstructure:"user_agent"`
	MaxBodyBytes int64         `mapstructure:"max_body_bytes"`
}

// DefaultUserAgent is a desktop Chrome UA; many image hosts refuse obvious bots.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/97.0.4692.71 Safari/537.36"

// legacyEnv maps config keys to the plain environment variable names the
// service has always accepted, so existing deployments keep working.
var legacyEnv = map[string]string{
	"ocr.google.api_key":    "VISION_API_KEY",
	"llm.gemini.api_key":    "GEMINI_API_KEY",
	"llm.openai.api_key":    "OPENAI_API_KEY",
	"llm.anthropic.api_key": "ANTHROPIC_API_KEY",
	"search.api_key":        "CSE_API_KEY",
	"search.cx":             "CSE_CX",
}

// Load reads configuration from a YAML file and environment variables.
// A .env file in the working directory is loaded first if present.
func Load(configPath string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	v := viper.New()

	// Set defaults — these apply when neither file nor env provides a value
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8000)
	v.SetDefault("storage.database_path", "./storage/menu-service.db")
	v.SetDefault("cors.allowed_origins", []string{"*"})
	v.SetDefault("rate_limit.requests_per_second", 10)
	v.SetDefault("rate_limit.burst", 20)
	v.SetDefault("log.level", "info")
	v.SetDefault("upload.max_bytes", 20<<20)
	v.SetDefault("upload.max_dimension", 4096)
	v.SetDefault("ocr.engine", "google")
	v.SetDefault("ocr.timeout", 15*time.Second)
	v.SetDefault("ocr.rekognition.region", "us-east-1")
	v.SetDefault("ocr.tesseract.languages", []string{"eng"})
	v.SetDefault("llm.provider_order", []string{"gemini", "openai", "anthropic"})
	v.SetDefault("llm.gemini.model", "gemini-1.5-flash-latest")
	v.SetDefault("llm.openai.model", "gpt-4o-mini")
	v.SetDefault("llm.anthropic.model", "claude-3-5-haiku-latest")
	v.SetDefault("llm.rate_per_minute", 0) // 0: unlimited
	v.SetDefault("llm.timeout", 30*time.Second)
	v.SetDefault("llm.filter_temperature", 0.1)
	v.SetDefault("llm.query_temperature", 0.2)
	v.SetDefault("search.timeout", 10*time.Second)
	v.SetDefault("proxy.timeout", 20*time.Second)
	v.SetDefault("proxy.user_agent", DefaultUserAgent)
	v.SetDefault("proxy.max_body_bytes", 15<<20)

	// Read from YAML config file if provided
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	// Read config file (ignore "not found" — defaults + env are enough)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && configPath != "" {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	// Environment variables override everything.
	// MENU_ prefix + nested keys: MENU_SERVER_PORT=9090 → server.port=9090
	v.SetEnvPrefix("MENU")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for key, env := range legacyEnv {
		prefixed := "MENU_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, prefixed, env); err != nil {
			return nil, fmt.Errorf("binding env for %s: %w", key, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	return &cfg, nil
}

// Address returns the listen address string like "0.0.0.0:8000".
func (s ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// Configured reports whether both search credentials are present.
func (s SearchConfig) Configured() bool {
	return s.APIKey != "" && s.CX != ""
}
