package chat

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/unravel-backend/internal/domain"
	"github.com/yungbote/unravel-backend/internal/platform/dbctx"
	"github.com/yungbote/unravel-backend/internal/platform/logger"
)

type ConversationRepo interface {
	Create(dbc dbctx.Context, row *types.Conversation) (*types.Conversation, error)
	GetByIDForUser(dbc dbctx.Context, id, userID uuid.UUID) (*types.Conversation, error)
	// ListByUser returns the user's conversations, newest activity first.
	// A nil projectID lists across all projects.
	ListByUser(dbc dbctx.Context, userID uuid.UUID, projectID *uuid.UUID, limit int) ([]*types.Conversation, error)
	ListIDsByProject(dbc dbctx.Context, projectID uuid.UUID) ([]uuid.UUID, error)
	UpdateFields(dbc dbctx.Context, id, userID uuid.UUID, updates map[string]interface{}) error
	Touch(dbc dbctx.Context, id uuid.UUID, at time.Time) error
	Delete(dbc dbctx.Context, id, userID uuid.UUID) error
	DeleteByProject(dbc dbctx.Context, projectID uuid.UUID) error
}

type conversationRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewConversationRepo(db *gorm.DB, log *logger.Logger) ConversationRepo {
	return &conversationRepo{db: db, log: log.With("repo", "ConversationRepo")}
}

func (r *conversationRepo) Create(dbc dbctx.Context, row *types.Conversation) (*types.Conversation, error) {
	if row == nil {
		return nil, fmt.Errorf("missing conversation")
	}
	if row.ProjectID == uuid.Nil || row.UserID == uuid.Nil {
		return nil, fmt.Errorf("missing project_id or user_id")
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

func (r *conversationRepo) GetByIDForUser(dbc dbctx.Context, id, userID uuid.UUID) (*types.Conversation, error) {
	if id == uuid.Nil || userID == uuid.Nil {
		return nil, gorm.ErrRecordNotFound
	}
	var out types.Conversation
	if err := dbc.DB(r.db).
		Where("id = ? AND user_id = ?", id, userID).
		Take(&out).Error; err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *conversationRepo) ListByUser(dbc dbctx.Context, userID uuid.UUID, projectID *uuid.UUID, limit int) ([]*types.Conversation, error) {
	if userID == uuid.Nil {
		return nil, fmt.Errorf("missing user_id")
	}
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	q := dbc.DB(r.db).
		Model(&types.Conversation{}).
		Where("user_id = ?", userID)
	if projectID != nil && *projectID != uuid.Nil {
		q = q.Where("project_id = ?", *projectID)
	}
	var out []*types.Conversation
	if err := q.Order("updated_at DESC").Limit(limit).Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *conversationRepo) ListIDsByProject(dbc dbctx.Context, projectID uuid.UUID) ([]uuid.UUID, error) {
	if projectID == uuid.Nil {
		return nil, fmt.Errorf("missing project_id")
	}
	var ids []uuid.UUID
	if err := dbc.DB(r.db).
		Model(&types.Conversation{}).
		Where("project_id = ?", projectID).
		Pluck("id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *conversationRepo) UpdateFields(dbc dbctx.Context, id, userID uuid.UUID, updates map[string]interface{}) error {
	if id == uuid.Nil {
		return fmt.Errorf("missing id")
	}
	if updates == nil {
		updates = map[string]interface{}{}
	}
	updates["updated_at"] = time.Now().UTC()
	res := dbc.DB(r.db).
		Model(&types.Conversation{}).
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

// Touch bumps updated_at after a message is appended.
func (r *conversationRepo) Touch(dbc dbctx.Context, id uuid.UUID, at time.Time) error {
	if id == uuid.Nil {
		return fmt.Errorf("missing id")
	}
	if at.IsZero() {
		at = time.Now().UTC()
	}
	return dbc.DB(r.db).
		Model(&types.Conversation{}).
		Where("id = ?", id).
		Update("updated_at", at).Error
}

func (r *conversationRepo) Delete(dbc dbctx.Context, id, userID uuid.UUID) error {
	if id == uuid.Nil {
		return fmt.Errorf("missing id")
	}
	res := dbc.DB(r.db).
		Where("id = ? AND user_id = ?", id, userID).
		Delete(&types.Conversation{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *conversationRepo) DeleteByProject(dbc dbctx.Context, projectID uuid.UUID) error {
	if projectID == uuid.Nil {
		return fmt.Errorf("missing project_id")
	}
	return dbc.DB(r.db).Where("project_id = ?", projectID).Delete(&types.Conversation{}).Error
}
