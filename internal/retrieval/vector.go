package retrieval

import (
	"context"
	"fmt"

	"github.com/yungbote/unravel-backend/internal/platform/pinecone"
)

type Embedder interface {
	Embed(ctx context.Context, inputs []string) ([][]float32, error)
}

// Vector embeds the query and searches an externally populated index. The
// project id is the namespace.
type Vector struct {
	embedder Embedder
	store    pinecone.VectorStore
	textKey  string
}

func NewVector(embedder Embedder, store pinecone.VectorStore, textKey string) *Vector {
	if textKey == "" {
		textKey = "text"
	}
	return &Vector{embedder: embedder, store: store, textKey: textKey}
}

func (r *Vector) Retrieve(ctx context.Context, q Query) ([]Passage, error) {
	vecs, err := r.embedder.Embed(ctx, []string{q.Text})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(vecs) == 0 || len(vecs[0]) == 0 {
		return nil, fmt.Errorf("embed query: empty embedding")
	}
	matches, err := r.store.QueryMatches(ctx, q.ProjectID.String(), vecs[0], q.topK())
	if err != nil {
		return nil, fmt.Errorf("query vectors: %w", err)
	}
	out := make([]Passage, 0, len(matches))
	for _, m := range matches {
		text := stringValue(m.Metadata[r.textKey])
		if text == "" {
			continue
		}
		var source map[string]any
		if s, ok := m.Metadata["source"].(map[string]any); ok {
			source = s
		}
		out = append(out, Passage{
			Content:  text,
			Score:    m.Score,
			Metadata: MetadataFromMaps(m.Metadata, source),
		})
	}
	return out, nil
}
