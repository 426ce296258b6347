package indexing

import (
	"context"
	"fmt"
	"io"

	"github.com/yungbote/unravel-backend/internal/platform/llamacloud"
	"github.com/yungbote/unravel-backend/internal/platform/logger"
)

type Document struct {
	ProjectID   string
	FileName    string
	ContentType string
	Body        io.Reader
	// Metadata is copied onto every indexed node.
	Metadata map[string]any
}

type Result struct {
	// ExternalID identifies the file in the index; empty when the index is
	// populated out of band.
	ExternalID string
}

type Indexer interface {
	Index(ctx context.Context, doc Document) (Result, error)
	Remove(ctx context.Context, projectID, externalID string) error
}

// LlamaCloud uploads the file and attaches it to the project pipeline.
type LlamaCloud struct {
	log    *logger.Logger
	client llamacloud.Client
}

func NewLlamaCloud(log *logger.Logger, client llamacloud.Client) *LlamaCloud {
	return &LlamaCloud{log: log.With("component", "LlamaCloudIndexer"), client: client}
}

// Index returns the uploaded file id even when attaching it to the pipeline
// fails; the attach failure is only logged.
func (ix *LlamaCloud) Index(ctx context.Context, doc Document) (Result, error) {
	pipeline, err := ix.client.EnsurePipeline(ctx, ix.client.PipelineName(doc.ProjectID))
	if err != nil {
		return Result{}, fmt.Errorf("resolve pipeline: %w", err)
	}
	file, err := ix.client.UploadFile(ctx, doc.FileName, doc.ContentType, doc.Body)
	if err != nil {
		return Result{}, fmt.Errorf("upload file: %w", err)
	}
	meta := make(map[string]any, len(doc.Metadata)+1)
	for k, v := range doc.Metadata {
		meta[k] = v
	}
	meta["file_name"] = doc.FileName
	if err := ix.client.AddFilesToPipeline(ctx, pipeline.ID, []llamacloud.PipelineFile{{
		FileID:         file.ID,
		CustomMetadata: meta,
	}}); err != nil {
		ix.log.Warn("add file to pipeline failed; file uploaded",
			"pipeline_id", pipeline.ID,
			"file_id", file.ID,
			"error", err,
		)
	} else {
		ix.log.Info("file added to pipeline", "pipeline_id", pipeline.ID, "file_id", file.ID)
	}
	return Result{ExternalID: file.ID}, nil
}

func (ix *LlamaCloud) Remove(ctx context.Context, projectID, externalID string) error {
	if externalID == "" {
		return nil
	}
	pipeline, err := ix.client.EnsurePipeline(ctx, ix.client.PipelineName(projectID))
	if err != nil {
		return fmt.Errorf("resolve pipeline: %w", err)
	}
	if err := ix.client.RemoveFileFromPipeline(ctx, pipeline.ID, externalID); err != nil {
		return fmt.Errorf("remove file: %w", err)
	}
	return nil
}

// External is used when an outside process populates the vector index.
type External struct{}

func (External) Index(ctx context.Context, doc Document) (Result, error) {
	if doc.Body != nil {
		_, _ = io.Copy(io.Discard, doc.Body)
	}
	return Result{}, nil
}

func (External) Remove(ctx context.Context, projectID, externalID string) error { return nil }
