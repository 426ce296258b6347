package workspace

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/unravel-backend/internal/domain"
	"github.com/yungbote/unravel-backend/internal/platform/dbctx"
	"github.com/yungbote/unravel-backend/internal/platform/logger"
)

type DocumentRepo interface {
	Create(dbc dbctx.Context, row *types.Document) (*types.Document, error)
	GetByIDForUser(dbc dbctx.Context, id, userID uuid.UUID) (*types.Document, error)
	ListByProject(dbc dbctx.Context, projectID uuid.UUID) ([]*types.Document, error)
	CountByStatus(dbc dbctx.Context, projectID uuid.UUID, status types.DocumentStatus) (int64, error)
	UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error
	Delete(dbc dbctx.Context, id uuid.UUID) error
	DeleteByProject(dbc dbctx.Context, projectID uuid.UUID) error
}

type documentRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewDocumentRepo(db *gorm.DB, log *logger.Logger) DocumentRepo {
	return &documentRepo{db: db, log: log.With("repo", "DocumentRepo")}
}

func (r *documentRepo) Create(dbc dbctx.Context, row *types.Document) (*types.Document, error) {
	if row == nil {
		return nil, fmt.Errorf("missing document")
	}
	if row.ProjectID == uuid.Nil || row.UserID == uuid.Nil {
		return nil, fmt.Errorf("missing project_id or user_id")
	}
	if row.ID == uuid.Nil {
		row.ID = uuid.New()
	}
	if row.Status == "" {
		row.Status = types.DocumentStatusUploading
	}
	now := time.Now().UTC()
	row.CreatedAt, row.UpdatedAt = now, now
	if err := dbc.DB(r.db).Create(row).Error; err != nil {
		return nil, err
	}
	return row, nil
}

func (r *documentRepo) GetByIDForUser(dbc dbctx.Context, id, userID uuid.UUID) (*types.Document, error) {
	if id == uuid.Nil || userID == uuid.Nil {
		return nil, gorm.ErrRecordNotFound
	}
	var out types.Document
	if err := dbc.DB(r.db).
		Where("id = ? AND user_id = ?", id, userID).
		Take(&out).Error; err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *documentRepo) ListByProject(dbc dbctx.Context, projectID uuid.UUID) ([]*types.Document, error) {
	if projectID == uuid.Nil {
		return nil, fmt.Errorf("missing project_id")
	}
	var out []*types.Document
	if err := dbc.DB(r.db).
		Model(&types.Document{}).
		Where("project_id = ?", projectID).
		Order("created_at DESC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *documentRepo) CountByStatus(dbc dbctx.Context, projectID uuid.UUID, status types.DocumentStatus) (int64, error) {
	if projectID == uuid.Nil {
		return 0, fmt.Errorf("missing project_id")
	}
	var n int64
	if err := dbc.DB(r.db).
		Model(&types.Document{}).
		Where("project_id = ? AND status = ?", projectID, status).
		Count(&n).Error; err != nil {
		return 0, err
	}
	return n, nil
}

func (r *documentRepo) UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error {
	if id == uuid.Nil {
		return fmt.Errorf("missing id")
	}
	if updates == nil {
		updates = map[string]interface{}{}
	}
	updates["updated_at"] = time.Now().UTC()
	return dbc.DB(r.db).
		Model(&types.Document{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *documentRepo) Delete(dbc dbctx.Context, id uuid.UUID) error {
	if id == uuid.Nil {
		return fmt.Errorf("missing id")
	}
	return dbc.DB(r.db).Where("id = ?", id).Delete(&types.Document{}).Error
}

func (r *documentRepo) DeleteByProject(dbc dbctx.Context, projectID uuid.UUID) error {
	if projectID == uuid.Nil {
		return fmt.Errorf("missing project_id")
	}
	return dbc.DB(r.db).Where("project_id = ?", projectID).Delete(&types.Document{}).Error
}
