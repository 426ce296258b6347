package openai

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/yungbote/unravel-backend/internal/platform/envutil"
)

const (
	DefaultOpenRouterBaseURL = "https://openrouter.ai/api/v1"
	DefaultChatModel         = "google/gemini-2.0-flash-001"
	DefaultEmbeddingModel    = "text-embedding-3-small"
)

// Config configures an OpenAI-compatible endpoint. OpenRouter is the default
// target for chat; embeddings may point elsewhere.
type Config struct {
	APIKey         string
	BaseURL        string
	DefaultModel   string
	EmbeddingModel string
	// SiteURL and AppName become OpenRouter's HTTP-Referer and X-Title headers.
	SiteURL        string
	AppName        string
	ConnectTimeout time.Duration
	MaxRetries     int
	RetryBackoff   time.Duration
}

type ConfigErrorCode string

const (
	ConfigErrorMissingAPIKey ConfigErrorCode = "missing_api_key"
	ConfigErrorInvalidURL    ConfigErrorCode = "invalid_base_url"
)

type ConfigError struct {
	Code  ConfigErrorCode
	Env   string
	Value string
}

func (e *ConfigError) Error() string {
	if e == nil {
		return "invalid openai config"
	}
	switch e.Code {
	case ConfigErrorMissingAPIKey:
		return fmt.Sprintf("%s is required", e.Env)
	case ConfigErrorInvalidURL:
		return fmt.Sprintf("invalid %s=%q; expected absolute URL", e.Env, e.Value)
	default:
		return "invalid openai config"
	}
}

// ResolveChatConfigFromEnv reads the OpenRouter chat settings.
func ResolveChatConfigFromEnv() (Config, error) {
	cfg := Config{
		APIKey:         envutil.String("OPENROUTER_API_KEY", ""),
		BaseURL:        envutil.String("OPENROUTER_BASE_URL", DefaultOpenRouterBaseURL),
		DefaultModel:   envutil.String("OPENROUTER_DEFAULT_MODEL", DefaultChatModel),
		SiteURL:        envutil.String("OPENROUTER_SITE_URL", ""),
		AppName:        envutil.String("OPENROUTER_APP_NAME", "Unravel"),
		ConnectTimeout: envutil.Duration("OPENROUTER_CONNECT_TIMEOUT", 30*time.Second),
		MaxRetries:     envutil.Int("OPENROUTER_MAX_RETRIES", 2),
	}
	if err := validate(cfg, "OPENROUTER_API_KEY", "OPENROUTER_BASE_URL"); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// ResolveEmbeddingConfigFromEnv reads the embedding endpoint used by the
// vector-store retrievers.
func ResolveEmbeddingConfigFromEnv() (Config, error) {
	cfg := Config{
		APIKey:         envutil.String("EMBEDDINGS_API_KEY", ""),
		BaseURL:        envutil.String("EMBEDDINGS_BASE_URL", "https://api.openai.com/v1"),
		EmbeddingModel: envutil.String("EMBEDDINGS_MODEL", DefaultEmbeddingModel),
		ConnectTimeout: envutil.Duration("EMBEDDINGS_TIMEOUT", 30*time.Second),
		MaxRetries:     envutil.Int("EMBEDDINGS_MAX_RETRIES", 2),
	}
	if err := validate(cfg, "EMBEDDINGS_API_KEY", "EMBEDDINGS_BASE_URL"); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func validate(cfg Config, keyEnv, urlEnv string) error {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return &ConfigError{Code: ConfigErrorMissingAPIKey, Env: keyEnv}
	}
	parsed, err := url.Parse(cfg.BaseURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return &ConfigError{Code: ConfigErrorInvalidURL, Env: urlEnv, Value: cfg.BaseURL}
	}
	return nil
}
