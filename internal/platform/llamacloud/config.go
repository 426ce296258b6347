package llamacloud

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/yungbote/unravel-backend/internal/platform/envutil"
)

const (
	DefaultBaseURL     = "https://api.cloud.llamaindex.ai/api/v1"
	DefaultProjectName = "Default"
	DefaultIndexName   = "UNRAVEL"
)

type Config struct {
	APIKey      string
	BaseURL     string
	ProjectName string
	// IndexName prefixes per-project pipelines: "{IndexName}-{projectID}".
	IndexName string
	// HuggingFaceAPIKey, when set, configures new pipelines with the
	// HuggingFace bge-small embedding.
	HuggingFaceAPIKey string
	Timeout           time.Duration
}

type ConfigErrorCode string

const (
	ConfigErrorMissingAPIKey ConfigErrorCode = "missing_api_key"
	ConfigErrorInvalidURL    ConfigErrorCode = "invalid_url"
)

type ConfigError struct {
	Code  ConfigErrorCode
	Value string
}

func (e *ConfigError) Error() string {
	if e == nil {
		return "invalid llamacloud config"
	}
	switch e.Code {
	case ConfigErrorMissingAPIKey:
		return "LLAMA_CLOUD_API_KEY is required"
	case ConfigErrorInvalidURL:
		return fmt.Sprintf("invalid LLAMA_CLOUD_BASE_URL=%q; expected absolute URL", e.Value)
	default:
		return "invalid llamacloud config"
	}
}

func ResolveConfigFromEnv() (Config, error) {
	cfg := Config{
		APIKey:            envutil.String("LLAMA_CLOUD_API_KEY", ""),
		BaseURL:           envutil.String("LLAMA_CLOUD_BASE_URL", DefaultBaseURL),
		ProjectName:       envutil.String("LLAMA_CLOUD_PROJECT_NAME", DefaultProjectName),
		IndexName:         envutil.String("LLAMA_CLOUD_INDEX_NAME", DefaultIndexName),
		HuggingFaceAPIKey: envutil.String("HUGGINGFACE_API_KEY", ""),
		Timeout:           envutil.Duration("LLAMA_CLOUD_TIMEOUT", 60*time.Second),
	}
	if err := ValidateConfig(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func ValidateConfig(cfg Config) error {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return &ConfigError{Code: ConfigErrorMissingAPIKey}
	}
	parsed, err := url.Parse(cfg.BaseURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return &ConfigError{Code: ConfigErrorInvalidURL, Value: cfg.BaseURL}
	}
	return nil
}

// PipelineName returns the pipeline that backs a project's documents.
func (c Config) PipelineName(projectID string) string {
	projectID = strings.TrimSpace(projectID)
	if projectID == "" {
		return c.IndexName
	}
	return c.IndexName + "-" + projectID
}
