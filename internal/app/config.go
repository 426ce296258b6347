package app

import (
	"strings"
	"time"

	"github.com/yungbote/unravel-backend/internal/http/middleware"
	"github.com/yungbote/unravel-backend/internal/platform/envutil"
	"github.com/yungbote/unravel-backend/internal/platform/logger"
	"github.com/yungbote/unravel-backend/internal/retrieval"
	"github.com/yungbote/unravel-backend/internal/services"
)

type Config struct {
	Port        string
	ServiceName string
	Environment string
	Version     string

	Auth           services.AuthConfig
	AllowedOrigins []string

	// RetrieverProvider is empty when the provider should follow the
	// object storage mode.
	RetrieverProvider string
	RetrievalTimeout  time.Duration
	RetrievalCacheTTL time.Duration

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	ModelsConfigPath string
	ShutdownTimeout  time.Duration
}

func LoadConfig(log *logger.Logger) Config {
	cfg := Config{
		Port:        envutil.String("PORT", "8080"),
		ServiceName: envutil.String("OTEL_SERVICE_NAME", "unravel-backend"),
		Environment: envutil.String("APP_ENV", "development"),
		Version:     envutil.String("APP_VERSION", ""),
		Auth: services.AuthConfig{
			JWTSecret: envutil.String("AUTH_JWT_SECRET", ""),
			Issuer:    envutil.String("AUTH_JWT_ISSUER", ""),
			Audience:  envutil.String("AUTH_JWT_AUDIENCE", ""),
			Leeway:    envutil.Duration("AUTH_JWT_LEEWAY", 30*time.Second),
		},
		AllowedOrigins:    envutil.List("CORS_ALLOWED_ORIGINS", middleware.DefaultAllowedOrigins),
		RetrieverProvider: strings.ToLower(envutil.String("RETRIEVER_PROVIDER", "")),
		RetrievalTimeout:  envutil.Duration("RETRIEVAL_TIMEOUT", retrieval.DefaultTimeout),
		RetrievalCacheTTL: envutil.Duration("RETRIEVAL_CACHE_TTL", 5*time.Minute),
		RedisAddr:         envutil.String("REDIS_ADDR", ""),
		RedisPassword:     envutil.String("REDIS_PASSWORD", ""),
		RedisDB:           envutil.Int("REDIS_DB", 0),
		ModelsConfigPath:  envutil.String("MODELS_CONFIG_PATH", ""),
		ShutdownTimeout:   envutil.Duration("SHUTDOWN_TIMEOUT", 15*time.Second),
	}
	if log != nil {
		log.Info(
			"Config loaded",
			"port", cfg.Port,
			"environment", cfg.Environment,
			"retriever_provider", cfg.RetrieverProvider,
			"retrieval_timeout", cfg.RetrievalTimeout,
			"retrieval_cache", cfg.RedisAddr != "",
			"allowed_origins", len(cfg.AllowedOrigins),
		)
	}
	return cfg
}
