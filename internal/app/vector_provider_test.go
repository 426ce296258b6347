package app

import (
	"context"
	"errors"
	neturl "net/url"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/unravel-backend/internal/indexing"
	"github.com/yungbote/unravel-backend/internal/observability"
	"github.com/yungbote/unravel-backend/internal/platform/llamacloud"
	"github.com/yungbote/unravel-backend/internal/platform/logger"
	"github.com/yungbote/unravel-backend/internal/platform/pinecone"
	"github.com/yungbote/unravel-backend/internal/platform/qdrant"
	"github.com/yungbote/unravel-backend/internal/retrieval"
)

type testEmbedder struct{}

func (testEmbedder) Embed(ctx context.Context, inputs []string) ([][]float32, error) {
	out := make([][]float32, len(inputs))
	for i := range inputs {
		out[i] = []float32{0.1, 0.2, 0.3}
	}
	return out, nil
}

type testVectorStore struct {
	namespaces []string
	matches    []pinecone.VectorMatch
	err        error
}

func (s *testVectorStore) QueryMatches(ctx context.Context, namespace string, q []float32, topK int) ([]pinecone.VectorMatch, error) {
	s.namespaces = append(s.namespaces, namespace)
	return s.matches, s.err
}

// testLlamaClient satisfies llamacloud.Client; bootstrap never calls it.
type testLlamaClient struct {
	llamacloud.Client
}

func stubProviderConstructors(t *testing.T) {
	t.Helper()
	origLlama := newLlamaCloudClient
	origPinecone := newPineconeVectorStore
	origQdrant := newQdrantVectorStore
	origEmbedder := newEmbedder
	t.Cleanup(func() {
		newLlamaCloudClient = origLlama
		newPineconeVectorStore = origPinecone
		newQdrantVectorStore = origQdrant
		newEmbedder = origEmbedder
	})
	newEmbedder = func(*logger.Logger) (retrieval.Embedder, error) { return testEmbedder{}, nil }
	newPineconeVectorStore = func(*logger.Logger, pinecone.Config) (pinecone.VectorStore, error) {
		t.Fatalf("pinecone constructor must not run")
		return nil, nil
	}
	newLlamaCloudClient = func(*logger.Logger, llamacloud.Config) (llamacloud.Client, error) {
		t.Fatalf("llamacloud constructor must not run")
		return nil, nil
	}
}

func TestResolveVectorProviderQdrantSelected(t *testing.T) {
	stubProviderConstructors(t)
	store := &testVectorStore{matches: []pinecone.VectorMatch{{
		ID:       "p1",
		Score:    0.8,
		Metadata: map[string]any{"body": "Refunds take 30 days.", "file_name": "policy.pdf"},
	}}}
	var captured qdrant.Config
	newQdrantVectorStore = func(_ context.Context, _ *logger.Logger, cfg qdrant.Config) (pinecone.VectorStore, error) {
		captured = cfg
		return store, nil
	}

	provider, err := resolveVectorProvider(context.Background(), logger.Nop(), observability.New(), VectorProviderConfig{
		Provider:   VectorProviderQdrant,
		ModeSource: modeSourceStorageDefault,
		Qdrant:     qdrant.Config{URL: "http://qdrant:6333", Collection: "unravel", TextKey: "body"},
	})
	if err != nil {
		t.Fatalf("resolveVectorProvider: %v", err)
	}
	if captured.Collection != "unravel" {
		t.Fatalf("qdrant.Collection: want=%q got=%q", "unravel", captured.Collection)
	}
	if _, ok := provider.Indexer.(indexing.External); !ok {
		t.Fatalf("indexer: want indexing.External got=%T", provider.Indexer)
	}

	projectID := uuid.New()
	passages, err := provider.Retriever.Retrieve(context.Background(), retrieval.Query{Text: "refunds", ProjectID: projectID, TopK: 5})
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if len(passages) != 1 || passages[0].Content != "Refunds take 30 days." {
		t.Fatalf("passages: got=%+v", passages)
	}
	if len(store.namespaces) != 1 || store.namespaces[0] != projectID.String() {
		t.Fatalf("namespace: want=%q got=%v", projectID.String(), store.namespaces)
	}
}

func TestResolveVectorProviderLlamaCloudPairsIndexer(t *testing.T) {
	stubProviderConstructors(t)
	newEmbedder = func(*logger.Logger) (retrieval.Embedder, error) {
		t.Fatalf("llamacloud embeds server side; no embedder expected")
		return nil, nil
	}
	newLlamaCloudClient = func(*logger.Logger, llamacloud.Config) (llamacloud.Client, error) {
		return testLlamaClient{}, nil
	}

	provider, err := resolveVectorProvider(context.Background(), logger.Nop(), nil, VectorProviderConfig{
		Provider: VectorProviderLlamaCloud,
	})
	if err != nil {
		t.Fatalf("resolveVectorProvider: %v", err)
	}
	if _, ok := provider.Retriever.(*retrieval.LlamaCloud); !ok {
		t.Fatalf("retriever: want *retrieval.LlamaCloud got=%T", provider.Retriever)
	}
	if _, ok := provider.Indexer.(*indexing.LlamaCloud); !ok {
		t.Fatalf("indexer: want *indexing.LlamaCloud got=%T", provider.Indexer)
	}
}

func TestResolveVectorProviderBootstrapFailures(t *testing.T) {
	cases := []struct {
		name  string
		setup func()
		cfg   VectorProviderConfig
		want  VectorProviderBootstrapErrorCode
	}{
		{
			name: "embedder",
			setup: func() {
				newEmbedder = func(*logger.Logger) (retrieval.Embedder, error) { return nil, errors.New("missing key") }
			},
			cfg:  VectorProviderConfig{Provider: VectorProviderPinecone},
			want: VectorProviderBootstrapErrorEmbedderFailed,
		},
		{
			name: "qdrant unreachable",
			setup: func() {
				newQdrantVectorStore = func(context.Context, *logger.Logger, qdrant.Config) (pinecone.VectorStore, error) {
					return nil, &neturl.Error{Op: "Get", URL: "http://qdrant:6333", Err: errors.New("connection refused")}
				}
			},
			cfg:  VectorProviderConfig{Provider: VectorProviderQdrant},
			want: VectorProviderBootstrapErrorConnectFailed,
		},
		{
			name: "qdrant init",
			setup: func() {
				newQdrantVectorStore = func(context.Context, *logger.Logger, qdrant.Config) (pinecone.VectorStore, error) {
					return nil, errors.New("collection vector size 768 does not match 1536")
				}
			},
			cfg:  VectorProviderConfig{Provider: VectorProviderQdrant},
			want: VectorProviderBootstrapErrorProviderInitFailed,
		},
		{
			name:  "invalid provider",
			setup: func() {},
			cfg:   VectorProviderConfig{Provider: VectorProvider("weaviate")},
			want:  VectorProviderBootstrapErrorInvalidProvider,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			stubProviderConstructors(t)
			tc.setup()
			_, err := resolveVectorProvider(context.Background(), logger.Nop(), nil, tc.cfg)
			if err == nil {
				t.Fatalf("expected error")
			}
			if got := vectorProviderBootstrapErrorCode(err); got != tc.want {
				t.Fatalf("code: want=%q got=%q (err=%v)", tc.want, got, err)
			}
		})
	}
}

func TestBuildRetrieverWithoutRedis(t *testing.T) {
	base := retrieval.RetrieverFunc(func(ctx context.Context, q retrieval.Query) ([]retrieval.Passage, error) {
		return []retrieval.Passage{{Content: "a", Score: 0.5}}, nil
	})
	r, cache := buildRetriever(logger.Nop(), Config{RetrievalTimeout: time.Second, RetrievalCacheTTL: time.Minute}, Clients{
		Retrieval: RetrievalProvider{Name: "qdrant", Retriever: base, Indexer: indexing.External{}},
	}, nil)
	if cache != nil {
		t.Fatalf("cache: want nil without redis got=%T", cache)
	}
	if _, ok := r.(*retrieval.Bounded); !ok {
		t.Fatalf("retriever: want *retrieval.Bounded outermost got=%T", r)
	}
	got, err := r.Retrieve(context.Background(), retrieval.Query{Text: "q", ProjectID: uuid.New()})
	if err != nil || len(got) != 1 {
		t.Fatalf("Retrieve: err=%v got=%d", err, len(got))
	}
}
