package services

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/yungbote/unravel-backend/internal/data/repos"
	types "github.com/yungbote/unravel-backend/internal/domain"
	"github.com/yungbote/unravel-backend/internal/domain/workspace"
	"github.com/yungbote/unravel-backend/internal/indexing"
	"github.com/yungbote/unravel-backend/internal/observability"
	"github.com/yungbote/unravel-backend/internal/platform/apierr"
	"github.com/yungbote/unravel-backend/internal/platform/dbctx"
	"github.com/yungbote/unravel-backend/internal/platform/gcp"
	"github.com/yungbote/unravel-backend/internal/platform/logger"
)

const (
	documentNotFoundCode = "document_not_found"
	documentNotFoundMsg  = "Document not found"
)

type UploadInput struct {
	ProjectID string
	FileName  string
	Size      int64
	Body      io.Reader
}

type IngestResult struct {
	Success         bool   `json:"success"`
	DocumentID      string `json:"documentId"`
	LlamaFileID     string `json:"llamaFileId"`
	ChunksProcessed int    `json:"chunksProcessed"`
}

type DocumentService interface {
	Upload(dbc dbctx.Context, in UploadInput) (*types.Document, error)
	// Ingest pushes a stored document into the index. The row ends in
	// ready or error.
	Ingest(dbc dbctx.Context, documentID string) (*IngestResult, error)
	Delete(dbc dbctx.Context, documentID string) error
	ListByProject(dbc dbctx.Context, projectID string) ([]*types.Document, error)
}

type documentService struct {
	db        *gorm.DB
	log       *logger.Logger
	metrics   *observability.Metrics
	projects  repos.ProjectRepo
	documents repos.DocumentRepo
	bucket    gcp.BucketService
	indexer   indexing.Indexer
	cache     ProjectCacheInvalidator
}

func NewDocumentService(
	db *gorm.DB,
	baseLog *logger.Logger,
	metrics *observability.Metrics,
	projectRepo repos.ProjectRepo,
	documentRepo repos.DocumentRepo,
	bucket gcp.BucketService,
	indexer indexing.Indexer,
	cache ProjectCacheInvalidator,
) DocumentService {
	return &documentService{
		db:        db,
		log:       baseLog.With("service", "DocumentService"),
		metrics:   metrics,
		projects:  projectRepo,
		documents: documentRepo,
		bucket:    bucket,
		indexer:   indexer,
		cache:     cache,
	}
}

func (s *documentService) repoCtx(dbc dbctx.Context) dbctx.Context {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = s.db
	}
	return dbctx.Context{Ctx: dbc.Ctx, Tx: transaction}
}

// StorageKey places a blob under its owner and project.
func StorageKey(userID, projectID uuid.UUID, fileName string) string {
	return fmt.Sprintf("%s/%s/%s-%s", userID, projectID, uuid.NewString(), fileName)
}

func (s *documentService) Upload(dbc dbctx.Context, in UploadInput) (*types.Document, error) {
	userID, err := requireUser(dbc.Ctx)
	if err != nil {
		return nil, err
	}
	if in.Body == nil || strings.TrimSpace(in.FileName) == "" {
		return nil, apierr.InvalidRequest("", "No file provided")
	}
	if strings.TrimSpace(in.ProjectID) == "" {
		return nil, apierr.InvalidRequest("", "Project ID required")
	}
	projectID, err := parseID(in.ProjectID, projectNotFoundCode, projectNotFoundMsg)
	if err != nil {
		return nil, err
	}
	repoCtx := s.repoCtx(dbc)
	if _, err := s.projects.GetByIDForUser(repoCtx, projectID, userID); err != nil {
		return nil, notFoundOr(err, projectNotFoundCode, projectNotFoundMsg)
	}

	ext := workspace.FileExtension(in.FileName)
	if !workspace.IsAllowedExtension(ext) {
		return nil, apierr.InvalidRequest("unsupported_file_type",
			"File type not supported. Allowed: "+strings.Join(workspace.AllowedExtensions, ", "))
	}
	if in.Size > workspace.MaxDocumentBytes {
		return nil, apierr.InvalidRequest("file_too_large",
			"File too large. Maximum size: "+workspace.FormatFileSize(workspace.MaxDocumentBytes))
	}

	key := StorageKey(userID, projectID, in.FileName)
	if err := s.bucket.UploadFile(dbc.Ctx, key, workspace.MimeType(in.FileName), in.Body); err != nil {
		return nil, apierr.Internal("storage_failed", fmt.Errorf("upload blob: %w", err))
	}

	row, err := s.documents.Create(repoCtx, &types.Document{
		ProjectID:  projectID,
		UserID:     userID,
		FileName:   in.FileName,
		FileType:   ext,
		FileSize:   in.Size,
		StorageKey: key,
		FileURL:    s.bucket.GetPublicURL(key),
		Status:     types.DocumentStatusUploading,
	})
	if err != nil {
		ctx, cancel := detached(dbc.Ctx)
		defer cancel()
		bestEffort(s.log, s.metrics, "upload_rollback_blob", func() error {
			return s.bucket.DeleteFile(ctx, key)
		})
		return nil, apierr.Persistence(fmt.Errorf("create document: %w", err))
	}

	bestEffort(s.log, s.metrics, "upload_document_count", func() error {
		return s.projects.AdjustDocumentCount(repoCtx, projectID, 1)
	})
	s.log.Info("document uploaded", "document_id", row.ID, "project_id", projectID, "size", in.Size)
	return row, nil
}

func (s *documentService) Ingest(dbc dbctx.Context, documentID string) (*IngestResult, error) {
	userID, err := requireUser(dbc.Ctx)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(documentID) == "" {
		return nil, apierr.InvalidRequest("", "Document ID required")
	}
	id, err := parseID(documentID, documentNotFoundCode, documentNotFoundMsg)
	if err != nil {
		return nil, err
	}
	repoCtx := s.repoCtx(dbc)
	doc, err := s.documents.GetByIDForUser(repoCtx, id, userID)
	if err != nil {
		return nil, notFoundOr(err, documentNotFoundCode, documentNotFoundMsg)
	}

	if err := s.documents.UpdateFields(repoCtx, doc.ID, map[string]interface{}{
		"status": types.DocumentStatusProcessing,
	}); err != nil {
		return nil, fmt.Errorf("mark processing: %w", err)
	}

	externalID, meta, err := s.index(dbc, doc, userID)
	if err != nil {
		msg := err.Error()
		bestEffort(s.log, s.metrics, "ingest_mark_error", func() error {
			return s.documents.UpdateFields(repoCtx, doc.ID, map[string]interface{}{
				"status":        types.DocumentStatusError,
				"error_message": msg,
			})
		})
		s.log.Warn("ingestion failed", "document_id", doc.ID, "error", err)
		return nil, apierr.Internal("ingestion_failed", err)
	}

	updates := map[string]interface{}{
		"status":         types.DocumentStatusReady,
		"error_message":  nil,
		"index_metadata": meta,
	}
	if externalID != "" {
		updates["llama_file_id"] = externalID
	}
	if err := s.documents.UpdateFields(repoCtx, doc.ID, updates); err != nil {
		return nil, apierr.Persistence(fmt.Errorf("mark ready: %w", err))
	}

	if s.cache != nil {
		bestEffort(s.log, s.metrics, "ingest_cache_invalidate", func() error {
			return s.cache.InvalidateProject(dbc.Ctx, doc.ProjectID.String())
		})
	}
	s.log.Info("document ingested", "document_id", doc.ID, "external_id", externalID)
	return &IngestResult{
		Success:         true,
		DocumentID:      doc.ID.String(),
		LlamaFileID:     externalID,
		ChunksProcessed: 1,
	}, nil
}

func (s *documentService) index(dbc dbctx.Context, doc *types.Document, userID uuid.UUID) (string, datatypes.JSON, error) {
	body, err := s.bucket.DownloadFile(dbc.Ctx, doc.StorageKey)
	if err != nil {
		return "", nil, fmt.Errorf("failed to download file: %w", err)
	}
	defer body.Close()

	custom := map[string]any{
		"file_name":   doc.FileName,
		"project_id":  doc.ProjectID.String(),
		"document_id": doc.ID.String(),
		"user_id":     userID.String(),
	}
	res, err := s.indexer.Index(dbc.Ctx, indexing.Document{
		ProjectID:   doc.ProjectID.String(),
		FileName:    doc.FileName,
		ContentType: workspace.MimeType(doc.FileName),
		Body:        body,
		Metadata:    custom,
	})
	if err != nil {
		return "", nil, err
	}
	raw, err := json.Marshal(custom)
	if err != nil {
		return "", nil, fmt.Errorf("encode index metadata: %w", err)
	}
	return res.ExternalID, datatypes.JSON(raw), nil
}

func (s *documentService) Delete(dbc dbctx.Context, documentID string) error {
	userID, err := requireUser(dbc.Ctx)
	if err != nil {
		return err
	}
	id, err := parseID(documentID, documentNotFoundCode, documentNotFoundMsg)
	if err != nil {
		return err
	}
	repoCtx := s.repoCtx(dbc)
	doc, err := s.documents.GetByIDForUser(repoCtx, id, userID)
	if err != nil {
		return notFoundOr(err, documentNotFoundCode, documentNotFoundMsg)
	}

	ctx, cancel := detached(dbc.Ctx)
	defer cancel()

	if doc.StorageKey != "" {
		bestEffort(s.log, s.metrics, "document_delete_blob", func() error {
			return s.bucket.DeleteFile(ctx, doc.StorageKey)
		})
	}

	if err := s.documents.Delete(repoCtx, doc.ID); err != nil {
		return apierr.Internal("delete_failed", fmt.Errorf("delete document: %w", err))
	}

	if doc.LlamaFileID != nil && *doc.LlamaFileID != "" {
		bestEffort(s.log, s.metrics, "document_delete_index", func() error {
			return s.indexer.Remove(ctx, doc.ProjectID.String(), *doc.LlamaFileID)
		})
	}
	bestEffort(s.log, s.metrics, "document_delete_count", func() error {
		return s.projects.AdjustDocumentCount(dbctx.Context{Ctx: ctx, Tx: repoCtx.Tx}, doc.ProjectID, -1)
	})
	if s.cache != nil {
		bestEffort(s.log, s.metrics, "document_delete_cache", func() error {
			return s.cache.InvalidateProject(ctx, doc.ProjectID.String())
		})
	}
	return nil
}

func (s *documentService) ListByProject(dbc dbctx.Context, projectID string) ([]*types.Document, error) {
	userID, err := requireUser(dbc.Ctx)
	if err != nil {
		return nil, err
	}
	id, err := parseID(projectID, projectNotFoundCode, projectNotFoundMsg)
	if err != nil {
		return nil, err
	}
	repoCtx := s.repoCtx(dbc)
	if _, err := s.projects.GetByIDForUser(repoCtx, id, userID); err != nil {
		return nil, notFoundOr(err, projectNotFoundCode, projectNotFoundMsg)
	}
	rows, err := s.documents.ListByProject(repoCtx, id)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	if rows == nil {
		rows = []*types.Document{}
	}
	return rows, nil
}
