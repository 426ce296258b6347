package services

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/yungbote/unravel-backend/internal/data/repos"
	types "github.com/yungbote/unravel-backend/internal/domain"
	"github.com/yungbote/unravel-backend/internal/indexing"
	"github.com/yungbote/unravel-backend/internal/observability"
	"github.com/yungbote/unravel-backend/internal/platform/apierr"
	"github.com/yungbote/unravel-backend/internal/platform/dbctx"
	"github.com/yungbote/unravel-backend/internal/platform/gcp"
	"github.com/yungbote/unravel-backend/internal/platform/logger"
)

const (
	projectNotFoundCode = "project_not_found"
	projectNotFoundMsg  = "Project not found"

	cleanupConcurrency = 4
)

// ProjectUpdate carries a partial update; nil fields are left untouched.
type ProjectUpdate struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
}

type ProjectService interface {
	Create(dbc dbctx.Context, name, description string) (*types.Project, error)
	List(dbc dbctx.Context) ([]*types.Project, error)
	Get(dbc dbctx.Context, projectID string) (*types.Project, error)
	Update(dbc dbctx.Context, projectID string, in ProjectUpdate) (*types.Project, error)
	// Delete removes the project with its conversations, messages and
	// documents in one transaction, then cleans up blobs and index entries.
	Delete(dbc dbctx.Context, projectID string) error
}

type projectService struct {
	db            *gorm.DB
	log           *logger.Logger
	metrics       *observability.Metrics
	projects      repos.ProjectRepo
	documents     repos.DocumentRepo
	conversations repos.ConversationRepo
	messages      repos.MessageRepo
	bucket        gcp.BucketService
	indexer       indexing.Indexer
	cache         ProjectCacheInvalidator
}

func NewProjectService(
	db *gorm.DB,
	baseLog *logger.Logger,
	metrics *observability.Metrics,
	projectRepo repos.ProjectRepo,
	documentRepo repos.DocumentRepo,
	conversationRepo repos.ConversationRepo,
	messageRepo repos.MessageRepo,
	bucket gcp.BucketService,
	indexer indexing.Indexer,
	cache ProjectCacheInvalidator,
) ProjectService {
	return &projectService{
		db:            db,
		log:           baseLog.With("service", "ProjectService"),
		metrics:       metrics,
		projects:      projectRepo,
		documents:     documentRepo,
		conversations: conversationRepo,
		messages:      messageRepo,
		bucket:        bucket,
		indexer:       indexer,
		cache:         cache,
	}
}

func (s *projectService) repoCtx(dbc dbctx.Context) dbctx.Context {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = s.db
	}
	return dbctx.Context{Ctx: dbc.Ctx, Tx: transaction}
}

func (s *projectService) Create(dbc dbctx.Context, name, description string) (*types.Project, error) {
	userID, err := requireUser(dbc.Ctx)
	if err != nil {
		return nil, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apierr.InvalidRequest("", "Name is required")
	}
	row, err := s.projects.Create(s.repoCtx(dbc), &types.Project{
		UserID:      userID,
		Name:        name,
		Description: strings.TrimSpace(description),
	})
	if err != nil {
		return nil, fmt.Errorf("create project: %w", err)
	}
	return row, nil
}

func (s *projectService) List(dbc dbctx.Context) ([]*types.Project, error) {
	userID, err := requireUser(dbc.Ctx)
	if err != nil {
		return nil, err
	}
	rows, err := s.projects.ListByUser(s.repoCtx(dbc), userID)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	if rows == nil {
		rows = []*types.Project{}
	}
	return rows, nil
}

func (s *projectService) Get(dbc dbctx.Context, projectID string) (*types.Project, error) {
	userID, err := requireUser(dbc.Ctx)
	if err != nil {
		return nil, err
	}
	id, err := parseID(projectID, projectNotFoundCode, projectNotFoundMsg)
	if err != nil {
		return nil, err
	}
	row, err := s.projects.GetByIDForUser(s.repoCtx(dbc), id, userID)
	if err != nil {
		return nil, notFoundOr(err, projectNotFoundCode, projectNotFoundMsg)
	}
	return row, nil
}

func (s *projectService) Update(dbc dbctx.Context, projectID string, in ProjectUpdate) (*types.Project, error) {
	userID, err := requireUser(dbc.Ctx)
	if err != nil {
		return nil, err
	}
	id, err := parseID(projectID, projectNotFoundCode, projectNotFoundMsg)
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{}
	if in.Name != nil {
		if name := strings.TrimSpace(*in.Name); name != "" {
			updates["name"] = name
		}
	}
	if in.Description != nil {
		updates["description"] = strings.TrimSpace(*in.Description)
	}

	repoCtx := s.repoCtx(dbc)
	if err := s.projects.UpdateFields(repoCtx, id, userID, updates); err != nil {
		return nil, notFoundOr(err, projectNotFoundCode, projectNotFoundMsg)
	}
	row, err := s.projects.GetByIDForUser(repoCtx, id, userID)
	if err != nil {
		return nil, notFoundOr(err, projectNotFoundCode, projectNotFoundMsg)
	}
	return row, nil
}

func (s *projectService) Delete(dbc dbctx.Context, projectID string) error {
	userID, err := requireUser(dbc.Ctx)
	if err != nil {
		return err
	}
	id, err := parseID(projectID, projectNotFoundCode, projectNotFoundMsg)
	if err != nil {
		return err
	}

	var docs []*types.Document
	err = s.db.WithContext(dbc.Ctx).Transaction(func(tx *gorm.DB) error {
		txCtx := dbctx.Context{Ctx: dbc.Ctx, Tx: tx}
		if _, err := s.projects.GetByIDForUser(txCtx, id, userID); err != nil {
			return notFoundOr(err, projectNotFoundCode, projectNotFoundMsg)
		}
		rows, err := s.documents.ListByProject(txCtx, id)
		if err != nil {
			return fmt.Errorf("list documents: %w", err)
		}
		docs = rows

		convIDs, err := s.conversations.ListIDsByProject(txCtx, id)
		if err != nil {
			return fmt.Errorf("list conversations: %w", err)
		}
		if err := s.messages.DeleteByConversations(txCtx, convIDs); err != nil {
			return fmt.Errorf("delete messages: %w", err)
		}
		if err := s.conversations.DeleteByProject(txCtx, id); err != nil {
			return fmt.Errorf("delete conversations: %w", err)
		}
		if err := s.documents.DeleteByProject(txCtx, id); err != nil {
			return fmt.Errorf("delete documents: %w", err)
		}
		if err := s.projects.Delete(txCtx, id, userID); err != nil {
			return notFoundOr(err, projectNotFoundCode, projectNotFoundMsg)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.cleanupDocuments(dbc, id, docs)
	s.log.Info("project deleted", "project_id", id, "documents", len(docs))
	return nil
}

// cleanupDocuments removes blobs and index entries of already-deleted rows.
func (s *projectService) cleanupDocuments(dbc dbctx.Context, projectID uuid.UUID, docs []*types.Document) {
	ctx, cancel := detached(dbc.Ctx)
	defer cancel()

	var g errgroup.Group
	g.SetLimit(cleanupConcurrency)
	for _, doc := range docs {
		if doc == nil {
			continue
		}
		g.Go(func() error {
			if s.bucket != nil && doc.StorageKey != "" {
				bestEffort(s.log, s.metrics, "project_delete_blob", func() error {
					return s.bucket.DeleteFile(ctx, doc.StorageKey)
				})
			}
			if s.indexer != nil && doc.LlamaFileID != nil && *doc.LlamaFileID != "" {
				bestEffort(s.log, s.metrics, "project_delete_index", func() error {
					return s.indexer.Remove(ctx, projectID.String(), *doc.LlamaFileID)
				})
			}
			return nil
		})
	}
	_ = g.Wait()

	if s.cache != nil {
		bestEffort(s.log, s.metrics, "project_delete_cache", func() error {
			return s.cache.InvalidateProject(ctx, projectID.String())
		})
	}
}
