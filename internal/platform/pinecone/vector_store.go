package pinecone

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/yungbote/unravel-backend/internal/platform/ctxutil"
	"github.com/yungbote/unravel-backend/internal/platform/envutil"
	"github.com/yungbote/unravel-backend/internal/platform/logger"
)

const (
	apiVersion        = "2024-07"
	maxErrorBodyBytes = 1024
)

// VectorStore is the read side of an externally populated vector index.
// Namespaces partition the index per project.
type VectorStore interface {
	// QueryMatches returns the closest matches, highest score first, with
	// their stored metadata.
	QueryMatches(ctx context.Context, namespace string, q []float32, topK int) ([]VectorMatch, error)
}

type VectorMatch struct {
	ID       string
	Score    float64
	Metadata map[string]any
}

type Config struct {
	APIKey    string
	IndexHost string
	// NamespacePrefix is prepended as "{prefix}:{namespace}" when set.
	NamespacePrefix string
	Timeout         time.Duration
}

func ResolveConfigFromEnv() (Config, error) {
	cfg := Config{
		APIKey:          envutil.String("PINECONE_API_KEY", ""),
		IndexHost:       envutil.String("PINECONE_INDEX_HOST", ""),
		NamespacePrefix: envutil.String("PINECONE_NAMESPACE_PREFIX", ""),
		Timeout:         envutil.Duration("PINECONE_TIMEOUT", 10*time.Second),
	}
	if cfg.APIKey == "" {
		return Config{}, fmt.Errorf("missing PINECONE_API_KEY")
	}
	if cfg.IndexHost == "" {
		return Config{}, fmt.Errorf("missing PINECONE_INDEX_HOST")
	}
	return cfg, nil
}

type vectorStore struct {
	log      *logger.Logger
	cfg      Config
	baseURL  string
	nsPrefix string
	http     *http.Client
}

func NewVectorStore(log *logger.Logger, cfg Config) (VectorStore, error) {
	return newVectorStore(log, cfg, nil)
}

func newVectorStore(log *logger.Logger, cfg Config, transport http.RoundTripper) (*vectorStore, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	host := strings.TrimRight(strings.TrimSpace(cfg.IndexHost), "/")
	if host == "" {
		return nil, fmt.Errorf("pinecone index host required")
	}
	if !strings.Contains(host, "://") {
		host = "https://" + host
	}
	if _, err := url.Parse(host); err != nil {
		return nil, fmt.Errorf("invalid pinecone index host %q: %w", cfg.IndexHost, err)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	log.Info("Pinecone vector store selected", "provider", "pinecone", "index_host", host)
	return &vectorStore{
		log:      log.With("service", "PineconeVectorStore"),
		cfg:      cfg,
		baseURL:  host,
		nsPrefix: strings.TrimSpace(cfg.NamespacePrefix),
		http:     &http.Client{Timeout: timeout, Transport: transport},
	}, nil
}

type queryRequest struct {
	Namespace       string    `json:"namespace,omitempty"`
	Vector          []float32 `json:"vector"`
	TopK            int       `json:"topK"`
	IncludeValues   bool      `json:"includeValues"`
	IncludeMetadata bool      `json:"includeMetadata"`
}

type queryResponse struct {
	Matches []struct {
		ID       string         `json:"id"`
		Score    float64        `json:"score"`
		Metadata map[string]any `json:"metadata"`
	} `json:"matches"`
}

func (s *vectorStore) QueryMatches(ctx context.Context, namespace string, q []float32, topK int) ([]VectorMatch, error) {
	if s == nil {
		return nil, fmt.Errorf("vector store unavailable")
	}
	if len(q) == 0 {
		return nil, fmt.Errorf("pinecone query: query vector required")
	}
	if topK <= 0 {
		topK = 10
	}
	body, err := json.Marshal(queryRequest{
		Namespace:       s.qualifyNamespace(namespace),
		Vector:          q,
		TopK:            topK,
		IncludeMetadata: true,
	})
	if err != nil {
		return nil, fmt.Errorf("pinecone query: encode: %w", err)
	}
	req, err := http.NewRequestWithContext(ctxutil.Default(ctx), http.MethodPost, s.baseURL+"/query", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("pinecone query: build request: %w", err)
	}
	req.Header.Set("Api-Key", s.cfg.APIKey)
	req.Header.Set("X-Pinecone-API-Version", apiVersion)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("pinecone query: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(raw))}
	}
	var out queryResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("pinecone query: decode: %w", err)
	}
	matches := make([]VectorMatch, 0, len(out.Matches))
	for _, m := range out.Matches {
		if strings.TrimSpace(m.ID) == "" {
			continue
		}
		matches = append(matches, VectorMatch{ID: m.ID, Score: m.Score, Metadata: m.Metadata})
	}
	return matches, nil
}

func (s *vectorStore) qualifyNamespace(ns string) string {
	ns = strings.TrimSpace(ns)
	if s.nsPrefix == "" {
		return ns
	}
	if ns == "" {
		return s.nsPrefix
	}
	return s.nsPrefix + ":" + ns
}

// StatusError is a non-2xx response from the data plane.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("pinecone http status=%d body=%q", e.StatusCode, e.Body)
}

func (e *StatusError) HTTPStatusCode() int { return e.StatusCode }
