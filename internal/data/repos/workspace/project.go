package workspace

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/unravel-backend/internal/domain"
	"github.com/yungbote/unravel-backend/internal/platform/dbctx"
	"github.com/yungbote/unravel-backend/internal/platform/logger"
)

type ProjectRepo interface {
	Create(dbc dbctx.Context, row *types.Project) (*types.Project, error)
	GetByIDForUser(dbc dbctx.Context, id, userID uuid.UUID) (*types.Project, error)
	ListByUser(dbc dbctx.Context, userID uuid.UUID) ([]*types.Project, error)
	UpdateFields(dbc dbctx.Context, id, userID uuid.UUID, updates map[string]interface{}) error
	AdjustDocumentCount(dbc dbctx.Context, id uuid.UUID, delta int) error
	Delete(dbc dbctx.Context, id, userID uuid.UUID) error
}

type projectRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewProjectRepo(db *gorm.DB, log *logger.Logger) ProjectRepo {
	return &projectRepo{db: db, log: log.With("repo", "ProjectRepo")}
}

func (r *projectRepo) Create(dbc dbctx.Context, row *types.Project) (*types.Project, error) {
	if row == nil {
		return nil, fmt.Errorf("missing project")
	}
	if row.UserID == uuid.Nil {
		return nil, fmt.Errorf("missing user_id")
	}
	if strings.TrimSpace(row.Name) == "" {
		return nil, fmt.Errorf("missing name")
	}
	if row.ID == uuid.Nil {
		row.ID = uuid.New()
	}
	now := time.Now().UTC()
	row.CreatedAt, row.UpdatedAt = now, now
	if err := dbc.DB(r.db).Create(row).Error; err != nil {
		return nil, err
	}
	return row, nil
}

func (r *projectRepo) GetByIDForUser(dbc dbctx.Context, id, userID uuid.UUID) (*types.Project, error) {
	if id == uuid.Nil || userID == uuid.Nil {
		return nil, gorm.ErrRecordNotFound
	}
	var out types.Project
	if err := dbc.DB(r.db).
		Where("id = ? AND user_id = ?", id, userID).
		Take(&out).Error; err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *projectRepo) ListByUser(dbc dbctx.Context, userID uuid.UUID) ([]*types.Project, error) {
	if userID == uuid.Nil {
		return nil, fmt.Errorf("missing user_id")
	}
	var out []*types.Project
	if err := dbc.DB(r.db).
		Model(&types.Project{}).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *projectRepo) UpdateFields(dbc dbctx.Context, id, userID uuid.UUID, updates map[string]interface{}) error {
	if id == uuid.Nil {
		return fmt.Errorf("missing id")
	}
	if updates == nil {
		updates = map[string]interface{}{}
	}
	updates["updated_at"] = time.Now().UTC()
	res := dbc.DB(r.db).
		Model(&types.Project{}).
		Where("id = ? AND user_id = ?", id, userID).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// AdjustDocumentCount applies delta to document_count, never going below zero.
func (r *projectRepo) AdjustDocumentCount(dbc dbctx.Context, id uuid.UUID, delta int) error {
	if id == uuid.Nil {
		return fmt.Errorf("missing id")
	}
	return dbc.DB(r.db).
		Model(&types.Project{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"document_count": gorm.Expr("CASE WHEN document_count + ? < 0 THEN 0 ELSE document_count + ? END", delta, delta),
			"updated_at":     time.Now().UTC(),
		}).Error
}

func (r *projectRepo) Delete(dbc dbctx.Context, id, userID uuid.UUID) error {
	if id == uuid.Nil {
		return fmt.Errorf("missing id")
	}
	res := dbc.DB(r.db).
		Where("id = ? AND user_id = ?", id, userID).
		Delete(&types.Project{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
