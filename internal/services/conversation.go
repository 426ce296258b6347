package services

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/unravel-backend/internal/data/repos"
	types "github.com/yungbote/unravel-backend/internal/domain"
	"github.com/yungbote/unravel-backend/internal/domain/chat"
	"github.com/yungbote/unravel-backend/internal/platform/apierr"
	"github.com/yungbote/unravel-backend/internal/platform/dbctx"
	"github.com/yungbote/unravel-backend/internal/platform/logger"
)

const (
	conversationNotFoundCode = "conversation_not_found"
	conversationNotFoundMsg  = "Conversation not found"

	conversationListLimit = 200
)

// MessageView is a stored message with its citations decoded.
type MessageView struct {
	ID             uuid.UUID       `json:"id"`
	ConversationID uuid.UUID       `json:"conversation_id"`
	Role           types.Role      `json:"role"`
	Content        string          `json:"content"`
	Sources        []chat.Citation `json:"sources"`
	CreatedAt      time.Time       `json:"created_at"`
}

type ConversationDetail struct {
	*types.Conversation
	Messages []MessageView `json:"messages"`
}

type ConversationService interface {
	// List returns the caller's conversations, newest activity first. An
	// empty projectID lists across projects.
	List(dbc dbctx.Context, projectID string) ([]*types.Conversation, error)
	// ListForProject checks project ownership before listing.
	ListForProject(dbc dbctx.Context, projectID string) ([]*types.Conversation, error)
	Get(dbc dbctx.Context, conversationID string) (*ConversationDetail, error)
	UpdateTitle(dbc dbctx.Context, conversationID, title string) (*types.Conversation, error)
	Delete(dbc dbctx.Context, conversationID string) error
}

type conversationService struct {
	db            *gorm.DB
	log           *logger.Logger
	projects      repos.ProjectRepo
	conversations repos.ConversationRepo
	messages      repos.MessageRepo
}

func NewConversationService(
	db *gorm.DB,
	baseLog *logger.Logger,
	projectRepo repos.ProjectRepo,
	conversationRepo repos.ConversationRepo,
	messageRepo repos.MessageRepo,
) ConversationService {
	return &conversationService{
		db:            db,
		log:           baseLog.With("service", "ConversationService"),
		projects:      projectRepo,
		conversations: conversationRepo,
		messages:      messageRepo,
	}
}

func (s *conversationService) repoCtx(dbc dbctx.Context) dbctx.Context {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = s.db
	}
	return dbctx.Context{Ctx: dbc.Ctx, Tx: transaction}
}

func (s *conversationService) List(dbc dbctx.Context, projectID string) ([]*types.Conversation, error) {
	userID, err := requireUser(dbc.Ctx)
	if err != nil {
		return nil, err
	}
	var filter *uuid.UUID
	if projectID = strings.TrimSpace(projectID); projectID != "" {
		id, perr := uuid.Parse(projectID)
		if perr != nil {
			// Nothing can match a malformed id.
			return []*types.Conversation{}, nil
		}
		filter = &id
	}
	rows, err := s.conversations.ListByUser(s.repoCtx(dbc), userID, filter, conversationListLimit)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	if rows == nil {
		rows = []*types.Conversation{}
	}
	return rows, nil
}

func (s *conversationService) ListForProject(dbc dbctx.Context, projectID string) ([]*types.Conversation, error) {
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
	rows, err := s.conversations.ListByUser(repoCtx, userID, &id, conversationListLimit)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	if rows == nil {
		rows = []*types.Conversation{}
	}
	return rows, nil
}

func (s *conversationService) Get(dbc dbctx.Context, conversationID string) (*ConversationDetail, error) {
	userID, err := requireUser(dbc.Ctx)
	if err != nil {
		return nil, err
	}
	id, err := parseID(conversationID, conversationNotFoundCode, conversationNotFoundMsg)
	if err != nil {
		return nil, err
	}
	repoCtx := s.repoCtx(dbc)
	conv, err := s.conversations.GetByIDForUser(repoCtx, id, userID)
	if err != nil {
		return nil, notFoundOr(err, conversationNotFoundCode, conversationNotFoundMsg)
	}
	msgs, err := s.messages.ListByConversation(repoCtx, userID, conv.ID, 0)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	out := &ConversationDetail{Conversation: conv, Messages: make([]MessageView, 0, len(msgs))}
	for _, m := range msgs {
		if m == nil {
			continue
		}
		out.Messages = append(out.Messages, MessageView{
			ID:             m.ID,
			ConversationID: m.ConversationID,
			Role:           m.Role,
			Content:        m.Content,
			Sources:        m.Citations(),
			CreatedAt:      m.CreatedAt,
		})
	}
	return out, nil
}

func (s *conversationService) UpdateTitle(dbc dbctx.Context, conversationID, title string) (*types.Conversation, error) {
	userID, err := requireUser(dbc.Ctx)
	if err != nil {
		return nil, err
	}
	id, err := parseID(conversationID, conversationNotFoundCode, conversationNotFoundMsg)
	if err != nil {
		return nil, err
	}
	title = strings.TrimSpace(title)
	if title == "" {
		title = chat.DefaultConversationTitle
	}
	repoCtx := s.repoCtx(dbc)
	if err := s.conversations.UpdateFields(repoCtx, id, userID, map[string]interface{}{"title": title}); err != nil {
		return nil, notFoundOr(err, conversationNotFoundCode, conversationNotFoundMsg)
	}
	conv, err := s.conversations.GetByIDForUser(repoCtx, id, userID)
	if err != nil {
		return nil, notFoundOr(err, conversationNotFoundCode, conversationNotFoundMsg)
	}
	return conv, nil
}

func (s *conversationService) Delete(dbc dbctx.Context, conversationID string) error {
	userID, err := requireUser(dbc.Ctx)
	if err != nil {
		return err
	}
	if strings.TrimSpace(conversationID) == "" {
		return apierr.InvalidRequest("", "Conversation ID required")
	}
	id, err := parseID(conversationID, conversationNotFoundCode, conversationNotFoundMsg)
	if err != nil {
		return err
	}
	return s.db.WithContext(dbc.Ctx).Transaction(func(tx *gorm.DB) error {
		txCtx := dbctx.Context{Ctx: dbc.Ctx, Tx: tx}
		if _, err := s.conversations.GetByIDForUser(txCtx, id, userID); err != nil {
			return notFoundOr(err, conversationNotFoundCode, conversationNotFoundMsg)
		}
		if err := s.messages.DeleteByConversations(txCtx, []uuid.UUID{id}); err != nil {
			return fmt.Errorf("delete messages: %w", err)
		}
		if err := s.conversations.Delete(txCtx, id, userID); err != nil {
			return notFoundOr(err, conversationNotFoundCode, conversationNotFoundMsg)
		}
		return nil
	})
}
