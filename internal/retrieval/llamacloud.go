package retrieval

import (
	"context"
	"fmt"

	"github.com/yungbote/unravel-backend/internal/platform/llamacloud"
)

// LlamaCloud retrieves from the per-project pipeline, creating it on first
// use so a project with no indexed files simply returns nothing.
type LlamaCloud struct {
	client llamacloud.Client
}

func NewLlamaCloud(client llamacloud.Client) *LlamaCloud {
	return &LlamaCloud{client: client}
}

func (r *LlamaCloud) Retrieve(ctx context.Context, q Query) ([]Passage, error) {
	pipeline, err := r.client.EnsurePipeline(ctx, r.client.PipelineName(q.ProjectID.String()))
	if err != nil {
		return nil, fmt.Errorf("resolve pipeline: %w", err)
	}
	nodes, err := r.client.Retrieve(ctx, pipeline.ID, q.Text, q.topK())
	if err != nil {
		return nil, fmt.Errorf("retrieve: %w", err)
	}
	out := make([]Passage, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, Passage{
			Content:  n.Text,
			Score:    n.Score,
			Metadata: MetadataFromMaps(n.Metadata, n.SourceMetadata),
		})
	}
	return out, nil
}
