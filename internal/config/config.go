package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"
)

// BackendKind selects how images are analyzed.
type BackendKind string

const (
	// BackendMock returns a canned diagnosis after a simulated delay.
	BackendMock BackendKind = "mock"
	// BackendGemini calls Google's generateContent API.
	BackendGemini BackendKind = "gemini"
	// BackendOllama calls a local Ollama vision model.
	BackendOllama BackendKind = "ollama"
)

const defaultGeminiBaseURL = "https://generativelanguage.googleapis.com"

// Backend is the resolved analysis backend. It is built once by LoadFromEnv
// and not changed afterwards.
type Backend struct {
	Kind BackendKind
	// Auto is true when Kind was inferred from credential presence.
	Auto bool

	GeminiAPIKey  string
	GeminiModel   string
	GeminiBaseURL string

	OllamaURL   string
	OllamaModel string

	MockDelay time.Duration
}

// String never includes the credential.
func (b Backend) String() string {
	switch b.Kind {
	case BackendGemini:
		return fmt.Sprintf("gemini(%s)", b.GeminiModel)
	case BackendOllama:
		return fmt.Sprintf("ollama(%s)", b.OllamaModel)
	default:
		return string(b.Kind)
	}
}

// AzureConfig enables the blob image source when both fields are set.
type AzureConfig struct {
	AccountName string
	AccountKey  string
}

// Enabled reports whether blob fetching is configured.
func (a AzureConfig) Enabled() bool {
	return a.AccountName != "" && a.AccountKey != ""
}

type Config struct {
	Host               string
	Port               string
	RequestTimeout     time.Duration
	ImageFetchTimeout  time.Duration
	AnalysisTimeout    time.Duration
	MaxRequestBodySize int64
	MaxImageDimension  int
	LogLevel           string
	AllowedOrigins     []string

	Backend Backend
	Azure   AzureConfig
}

func (c *Config) ServerAddress() string {
	host := strings.TrimSpace(c.Host)
	port := strings.TrimSpace(c.Port)
	return net.JoinHostPort(host, port)
}

func LoadFromEnv() (*Config, error) {
	cfg := &Config{
		Host:               getEnvOrDefault("HOST", "0.0.0.0"),
		Port:               getEnvOrDefault("PORT", "8080"),
		RequestTimeout:     parseDurationOrDefault("REQUEST_TIMEOUT", 30*time.Second),
		ImageFetchTimeout:  parseDurationOrDefault("IMAGE_FETCH_TIMEOUT", 15*time.Second),
		AnalysisTimeout:    parseDurationOrDefault("ANALYSIS_TIMEOUT", 60*time.Second),
		MaxRequestBodySize: parseIntOrDefault("MAX_REQUEST_BODY_SIZE", 10*1024*1024), // 10MB
		MaxImageDimension:  int(parseIntOrDefault("MAX_IMAGE_DIMENSION", 0)),
		LogLevel:           strings.ToLower(getEnvOrDefault("LOG_LEVEL", "info")),
		AllowedOrigins:     splitList(getEnvOrDefault("CORS_ALLOWED_ORIGINS", "http://localhost:3000")),
		Azure: AzureConfig{
			AccountName: os.Getenv("AZURE_STORAGE_ACCOUNT"),
			AccountKey:  os.Getenv("AZURE_STORAGE_KEY"),
		},
	}

	backend, err := loadBackend()
	if err != nil {
		return nil, err
	}
	cfg.Backend = backend

	p, err := strconv.Atoi(strings.TrimSpace(cfg.Port))
	if err != nil || p < 1 || p > 65535 {
		return nil, fmt.Errorf("invalid PORT: %q", cfg.Port)
	}
	if cfg.MaxRequestBodySize <= 0 {
		return nil, fmt.Errorf("MAX_REQUEST_BODY_SIZE must be > 0 (got %d)", cfg.MaxRequestBodySize)
	}
	if cfg.MaxImageDimension < 0 {
		return nil, fmt.Errorf("MAX_IMAGE_DIMENSION must be >= 0 (got %d)", cfg.MaxImageDimension)
	}
	for _, origin := range cfg.AllowedOrigins {
		if origin != "*" && !strings.HasPrefix(origin, "http://") && !strings.HasPrefix(origin, "https://") {
			return nil, fmt.Errorf("invalid CORS_ALLOWED_ORIGINS entry: %q", origin)
		}
	}
	if cfg.RequestTimeout <= 0 || cfg.ImageFetchTimeout <= 0 {
		return nil, fmt.Errorf("timeouts must be > 0 (got request=%s, fetch=%s)",
			cfg.RequestTimeout, cfg.ImageFetchTimeout)
	}
	return cfg, nil
}

func loadBackend() (Backend, error) {
	key := os.Getenv("GEMINI_API_KEY")
	if key == "" {
		// Variable name used by the React frontend build.
		key = os.Getenv("REACT_APP_GEMINI_API_KEY")
	}

	b := Backend{
		GeminiAPIKey:  strings.TrimSpace(key),
		GeminiModel:   getEnvOrDefault("GEMINI_MODEL", "gemini-1.5-flash"),
		GeminiBaseURL: strings.TrimSuffix(getEnvOrDefault("GEMINI_BASE_URL", defaultGeminiBaseURL), "/"),
		OllamaURL:     getEnvOrDefault("OLLAMA_URL", "http://localhost:11434"),
		OllamaModel:   getEnvOrDefault("OLLAMA_MODEL", "llava"),
		// MOCK_DELAY=0 is meaningful, so it is parsed without the > 0 rule.
		MockDelay: 2 * time.Second,
	}
	if v := strings.TrimSpace(os.Getenv("MOCK_DELAY")); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d < 0 {
			return Backend{}, fmt.Errorf("invalid MOCK_DELAY: %q", v)
		}
		b.MockDelay = d
	}

	kind, err := ParseBackendKind(os.Getenv("ANALYSIS_BACKEND"))
	if err != nil {
		return Backend{}, err
	}
	if kind == "" {
		b.Auto = true
		kind = BackendMock
		if b.GeminiAPIKey != "" {
			kind = BackendGemini
		}
	}
	b.Kind = kind
	return b, nil
}

// ParseBackendKind accepts mock, gemini, ollama or empty (auto).
func ParseBackendKind(s string) (BackendKind, error) {
	switch k := BackendKind(strings.ToLower(strings.TrimSpace(s))); k {
	case "", BackendMock, BackendGemini, BackendOllama:
		return k, nil
	default:
		return "", fmt.Errorf("invalid ANALYSIS_BACKEND: %q (want mock, gemini or ollama)", s)
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func parseDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(strings.TrimSpace(value)); err == nil && duration >= 0 {
			return duration
		}
	}
	return defaultValue
}

func parseIntOrDefault(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
