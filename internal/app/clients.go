package app

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/yungbote/unravel-backend/internal/observability"
	"github.com/yungbote/unravel-backend/internal/platform/gcp"
	"github.com/yungbote/unravel-backend/internal/platform/logger"
	"github.com/yungbote/unravel-backend/internal/platform/openai"
)

type Clients struct {
	Redis     redis.UniversalClient
	Bucket    gcp.BucketService
	Storage   gcp.StorageConfig
	LLM       openai.Client
	Retrieval RetrievalProvider
}

func wireClients(ctx context.Context, log *logger.Logger, cfg Config, metrics *observability.Metrics) (Clients, error) {
	log.Info("Wiring clients...")

	// Redis (optional retrieval cache)
	var rdb redis.UniversalClient
	if cfg.RedisAddr != "" {
		rdb = redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs:    []string{cfg.RedisAddr},
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err := rdb.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			// The cache is an optimization; run without it.
			log.Warn("redis unreachable; retrieval cache disabled", "addr", cfg.RedisAddr, "error", err)
			_ = rdb.Close()
			rdb = nil
		}
	}

	// Gcs
	bucket, storageCfg, err := resolveBucketService(ctx, log, metrics)
	if err != nil {
		closeRedis(rdb)
		return Clients{}, fmt.Errorf("init bucket client: %w", err)
	}

	// OpenRouter
	llmCfg, err := openai.ResolveChatConfigFromEnv()
	if err != nil {
		closeRedis(rdb)
		return Clients{}, fmt.Errorf("init llm config: %w", err)
	}
	llm, err := openai.NewClient(log, llmCfg)
	if err != nil {
		closeRedis(rdb)
		return Clients{}, fmt.Errorf("init llm client: %w", err)
	}

	// Retrieval
	providerCfg, err := resolveVectorProviderConfig(cfg.RetrieverProvider, storageCfg.Mode)
	if err != nil {
		closeRedis(rdb)
		return Clients{}, fmt.Errorf("init retrieval config: %w", err)
	}
	provider, err := resolveVectorProvider(ctx, log, metrics, providerCfg)
	if err != nil {
		closeRedis(rdb)
		return Clients{}, fmt.Errorf("init retrieval provider: %w", err)
	}

	return Clients{
		Redis:     rdb,
		Bucket:    bucket,
		Storage:   storageCfg,
		LLM:       llm,
		Retrieval: provider,
	}, nil
}

func closeRedis(rdb redis.UniversalClient) {
	if rdb != nil {
		_ = rdb.Close()
	}
}

func (c *Clients) Close() {
	if c == nil {
		return
	}
	closeRedis(c.Redis)
}
