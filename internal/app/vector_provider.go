package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	neturl "net/url"
	"strings"

	"github.com/yungbote/unravel-backend/internal/indexing"
	"github.com/yungbote/unravel-backend/internal/observability"
	"github.com/yungbote/unravel-backend/internal/platform/llamacloud"
	"github.com/yungbote/unravel-backend/internal/platform/logger"
	"github.com/yungbote/unravel-backend/internal/platform/openai"
	"github.com/yungbote/unravel-backend/internal/platform/pinecone"
	"github.com/yungbote/unravel-backend/internal/platform/qdrant"
	"github.com/yungbote/unravel-backend/internal/retrieval"
)

var (
	newLlamaCloudClient    = llamacloud.NewClient
	newPineconeVectorStore = pinecone.NewVectorStore
	newQdrantVectorStore   = qdrant.NewVectorStore
	newEmbedder            = newOpenAIEmbedder
)

type VectorProviderBootstrapErrorCode string

const (
	VectorProviderBootstrapErrorInvalidProvider    VectorProviderBootstrapErrorCode = "invalid_provider"
	VectorProviderBootstrapErrorEmbedderFailed     VectorProviderBootstrapErrorCode = "embedder_init_failed"
	VectorProviderBootstrapErrorConnectFailed      VectorProviderBootstrapErrorCode = "connect_failed"
	VectorProviderBootstrapErrorProviderInitFailed VectorProviderBootstrapErrorCode = "provider_init_failed"
)

type VectorProviderBootstrapError struct {
	Code     VectorProviderBootstrapErrorCode
	Provider string
	Cause    error
}

func (e *VectorProviderBootstrapError) Error() string {
	if e == nil {
		return "vector provider bootstrap failed"
	}
	return fmt.Sprintf("vector provider bootstrap failed (code=%s provider=%q): %v", e.Code, e.Provider, e.Cause)
}

func (e *VectorProviderBootstrapError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// RetrievalProvider pairs the read path with the matching ingest path.
type RetrievalProvider struct {
	Name      string
	Retriever retrieval.Retriever
	Indexer   indexing.Indexer
}

func newOpenAIEmbedder(log *logger.Logger) (retrieval.Embedder, error) {
	cfg, err := openai.ResolveEmbeddingConfigFromEnv()
	if err != nil {
		return nil, err
	}
	return openai.NewClient(log, cfg)
}

func resolveVectorProvider(
	ctx context.Context,
	log *logger.Logger,
	metrics *observability.Metrics,
	cfg VectorProviderConfig,
) (RetrievalProvider, error) {
	provider := string(cfg.Provider)
	log.Info("Selecting retrieval provider", "provider", provider, "provider_mode_source", cfg.ModeSource)

	fail := func(code VectorProviderBootstrapErrorCode, err error) (RetrievalProvider, error) {
		classified := classifyVectorProviderBootstrapError(provider, code, err)
		code = vectorProviderBootstrapErrorCode(classified)
		metrics.ObserveProviderBootstrap("retrieval", provider, "error", string(code))
		log.Error(
			"Retrieval provider bootstrap failed",
			"provider", provider,
			"provider_mode_source", cfg.ModeSource,
			"error_code", code,
			"error", classified,
		)
		return RetrievalProvider{}, classified
	}

	var out RetrievalProvider
	switch cfg.Provider {
	case VectorProviderLlamaCloud:
		client, err := newLlamaCloudClient(log, cfg.LlamaCloud)
		if err != nil {
			return fail(VectorProviderBootstrapErrorProviderInitFailed, err)
		}
		out = RetrievalProvider{
			Name:      provider,
			Retriever: retrieval.NewLlamaCloud(client),
			Indexer:   indexing.NewLlamaCloud(log, client),
		}

	case VectorProviderQdrant, VectorProviderPinecone:
		embedder, err := newEmbedder(log)
		if err != nil {
			return fail(VectorProviderBootstrapErrorEmbedderFailed, err)
		}
		var (
			store   pinecone.VectorStore
			textKey string
		)
		if cfg.Provider == VectorProviderQdrant {
			log.Info(
				"Connecting qdrant",
				"qdrant_url", cfg.Qdrant.URL,
				"qdrant_collection", cfg.Qdrant.Collection,
				"qdrant_vector_dim", cfg.Qdrant.VectorDim,
			)
			store, err = newQdrantVectorStore(ctx, log, cfg.Qdrant)
			textKey = cfg.Qdrant.TextKey
		} else {
			store, err = newPineconeVectorStore(log, cfg.Pinecone)
		}
		if err != nil {
			return fail(VectorProviderBootstrapErrorProviderInitFailed, err)
		}
		// An outside pipeline populates these indexes; uploads are stored only.
		out = RetrievalProvider{
			Name:      provider,
			Retriever: retrieval.NewVector(embedder, instrumentVectorStore(provider, store, metrics), textKey),
			Indexer:   indexing.External{},
		}

	default:
		return fail(VectorProviderBootstrapErrorInvalidProvider, fmt.Errorf("unsupported retriever provider %q", provider))
	}

	metrics.ObserveProviderBootstrap("retrieval", provider, "success", "none")
	return out, nil
}

func classifyVectorProviderBootstrapError(provider string, fallback VectorProviderBootstrapErrorCode, err error) error {
	var existing *VectorProviderBootstrapError
	if errors.As(err, &existing) {
		return existing
	}
	code := fallback
	var urlErr *neturl.Error
	var netErr net.Error
	switch {
	case errors.As(err, &urlErr), errors.As(err, &netErr):
		code = VectorProviderBootstrapErrorConnectFailed
	case strings.Contains(strings.ToLower(err.Error()), "connection refused"):
		code = VectorProviderBootstrapErrorConnectFailed
	}
	return &VectorProviderBootstrapError{Code: code, Provider: provider, Cause: err}
}

func vectorProviderBootstrapErrorCode(err error) VectorProviderBootstrapErrorCode {
	var bootstrapErr *VectorProviderBootstrapError
	if errors.As(err, &bootstrapErr) {
		if bootstrapErr.Code != "" {
			return bootstrapErr.Code
		}
	}
	return VectorProviderBootstrapErrorConnectFailed
}
