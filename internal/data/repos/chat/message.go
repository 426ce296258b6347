package chat

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

// Create and ListByConversation are owner scoped: a conversation that does
// not belong to userID behaves as missing (gorm.ErrRecordNotFound / empty).
type MessageRepo interface {
	// Create appends a message. A zero CreatedAt is stamped with the current
	// time; callers may pre-set it to keep a strict order within a turn.
	Create(dbc dbctx.Context, userID uuid.UUID, row *types.Message) (*types.Message, error)
	ListByConversation(dbc dbctx.Context, userID, conversationID uuid.UUID, limit int) ([]*types.Message, error)
	CountByConversation(dbc dbctx.Context, conversationID uuid.UUID) (int64, error)
	DeleteByConversations(dbc dbctx.Context, conversationIDs []uuid.UUID) error
}

type messageRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewMessageRepo(db *gorm.DB, log *logger.Logger) MessageRepo {
	return &messageRepo{db: db, log: log.With("repo", "MessageRepo")}
}

func (r *messageRepo) Create(dbc dbctx.Context, userID uuid.UUID, row *types.Message) (*types.Message, error) {
	if row == nil {
		return nil, fmt.Errorf("missing message")
	}
	if row.ConversationID == uuid.Nil {
		return nil, fmt.Errorf("missing conversation_id")
	}
	if !row.Role.Valid() {
		return nil, fmt.Errorf("invalid role %q", row.Role)
	}
	if userID == uuid.Nil {
		return nil, fmt.Errorf("missing user_id")
	}
	var owned int64
	if err := dbc.DB(r.db).
		Model(&types.Conversation{}).
		Where("id = ? AND user_id = ?", row.ConversationID, userID).
		Count(&owned).Error; err != nil {
		return nil, err
	}
	if owned == 0 {
		return nil, gorm.ErrRecordNotFound
	}
	if row.ID == uuid.Nil {
		row.ID = uuid.New()
	}
	if len(strings.TrimSpace(string(row.Sources))) == 0 {
		row.Sources = []byte("[]")
	}
	if row.CreatedAt.IsZero() {
		row.CreatedAt = time.Now().UTC()
	}
	if err := dbc.DB(r.db).Create(row).Error; err != nil {
		return nil, err
	}
	return row, nil
}

func (r *messageRepo) ListByConversation(dbc dbctx.Context, userID, conversationID uuid.UUID, limit int) ([]*types.Message, error) {
	if conversationID == uuid.Nil {
		return nil, fmt.Errorf("missing conversation_id")
	}
	if userID == uuid.Nil {
		return nil, fmt.Errorf("missing user_id")
	}
	if limit <= 0 || limit > 5000 {
		limit = 1000
	}
	var out []*types.Message
	if err := dbc.DB(r.db).
		Model(&types.Message{}).
		Select("messages.*").
		Joins("JOIN conversations ON conversations.id = messages.conversation_id").
		Where("messages.conversation_id = ? AND conversations.user_id = ?", conversationID, userID).
		Order("messages.created_at ASC").
		Limit(limit).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *messageRepo) CountByConversation(dbc dbctx.Context, conversationID uuid.UUID) (int64, error) {
	var n int64
	if err := dbc.DB(r.db).
		Model(&types.Message{}).
		Where("conversation_id = ?", conversationID).
		Count(&n).Error; err != nil {
		return 0, err
	}
	return n, nil
}

func (r *messageRepo) DeleteByConversations(dbc dbctx.Context, conversationIDs []uuid.UUID) error {
	if len(conversationIDs) == 0 {
		return nil
	}
	return dbc.DB(r.db).
		Where("conversation_id IN ?", conversationIDs).
		Delete(&types.Message{}).Error
}
