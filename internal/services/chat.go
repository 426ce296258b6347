package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/yungbote/unravel-backend/internal/data/repos"
	types "github.com/yungbote/unravel-backend/internal/domain"
	"github.com/yungbote/unravel-backend/internal/domain/chat"
	"github.com/yungbote/unravel-backend/internal/generation"
	"github.com/yungbote/unravel-backend/internal/observability"
	"github.com/yungbote/unravel-backend/internal/platform/apierr"
	"github.com/yungbote/unravel-backend/internal/platform/dbctx"
	"github.com/yungbote/unravel-backend/internal/platform/logger"
	"github.com/yungbote/unravel-backend/internal/prompt"
	"github.com/yungbote/unravel-backend/internal/retrieval"
)

const (
	// NoDocumentsReply is sent instead of a model answer when the project
	// has no ready documents.
	NoDocumentsReply = "Attach a Document first"

	// SourcesMarker precedes the JSON citation list at the end of a stream.
	SourcesMarker = "\n\n__SOURCES__:"
)

const (
	chatOutcomeCanned    = "canned"
	chatOutcomeCompleted = "completed"
	chatOutcomeAborted   = "aborted"
	chatOutcomeFailed    = "stream_failed"
	chatOutcomeOpenError = "generation_error"
	chatOutcomePersist   = "persistence_error"
)

type ChatRequest struct {
	Message        string `json:"message"`
	ProjectID      string `json:"projectId"`
	ConversationID string `json:"conversationId"`
	Model          string `json:"model"`
}

// FragmentWriter delivers one fragment to the client. Implementations flush
// before returning so a slow client blocks the stream.
type FragmentWriter interface {
	WriteFragment(fragment string) error
}

type FragmentWriterFunc func(fragment string) error

func (f FragmentWriterFunc) WriteFragment(fragment string) error { return f(fragment) }

// ModelResolver maps a requested model selector to an upstream model id.
type ModelResolver interface {
	Resolve(selector string) (string, bool)
}

type ChatService interface {
	// Start validates the request, resolves the conversation and stores the
	// user message. Anything that can fail with a JSON error happens here,
	// including opening the generation stream.
	Start(dbc dbctx.Context, req ChatRequest) (*ChatTurn, error)
}

// ChatTurn is a prepared turn. Stream must be called at most once.
type ChatTurn struct {
	ConversationID uuid.UUID
	// Created reports whether Start created the conversation.
	Created bool

	svc         *chatService
	userID      uuid.UUID
	projectID   uuid.UUID
	model       string
	userMessage *types.Message
	canned      bool
	passages    []retrieval.Passage
	stream      generation.Stream
	span        trace.Span
	startedAt   time.Time
	once        sync.Once
}

type chatService struct {
	db            *gorm.DB
	log           *logger.Logger
	metrics       *observability.Metrics
	projects      repos.ProjectRepo
	documents     repos.DocumentRepo
	conversations repos.ConversationRepo
	messages      repos.MessageRepo
	retriever     retrieval.Retriever
	generator     generation.Generator
	models        ModelResolver
	topK          int
}

func NewChatService(
	db *gorm.DB,
	baseLog *logger.Logger,
	metrics *observability.Metrics,
	projectRepo repos.ProjectRepo,
	documentRepo repos.DocumentRepo,
	conversationRepo repos.ConversationRepo,
	messageRepo repos.MessageRepo,
	retriever retrieval.Retriever,
	generator generation.Generator,
	models ModelResolver,
) ChatService {
	return &chatService{
		db:            db,
		log:           baseLog.With("service", "ChatService"),
		metrics:       metrics,
		projects:      projectRepo,
		documents:     documentRepo,
		conversations: conversationRepo,
		messages:      messageRepo,
		retriever:     retriever,
		generator:     generator,
		models:        models,
		topK:          retrieval.DefaultTopK,
	}
}

func (s *chatService) Start(dbc dbctx.Context, req ChatRequest) (*ChatTurn, error) {
	userID, err := requireUser(dbc.Ctx)
	if err != nil {
		return nil, err
	}
	// The message is stored and sent as typed; trimming only guards emptiness.
	message := req.Message
	if strings.TrimSpace(message) == "" || strings.TrimSpace(req.ProjectID) == "" {
		return nil, apierr.InvalidRequest("", "Message and project ID required")
	}

	model := ""
	if sel := strings.TrimSpace(req.Model); sel != "" && s.models != nil {
		resolved, ok := s.models.Resolve(sel)
		if !ok {
			return nil, apierr.InvalidRequest("invalid_model", "Unknown model: "+sel)
		}
		model = resolved
	}

	projectID, err := parseID(req.ProjectID, projectNotFoundCode, projectNotFoundMsg)
	if err != nil {
		return nil, err
	}

	transaction := dbc.Tx
	if transaction == nil {
		transaction = s.db
	}
	repoCtx := dbctx.Context{Ctx: dbc.Ctx, Tx: transaction}

	if _, err := s.projects.GetByIDForUser(repoCtx, projectID, userID); err != nil {
		return nil, notFoundOr(err, projectNotFoundCode, projectNotFoundMsg)
	}

	ctx, span := observability.Tracer().Start(dbc.Ctx, "chat.turn")
	span.SetAttributes(attribute.String("project_id", projectID.String()))
	turn := &ChatTurn{
		svc:       s,
		userID:    userID,
		projectID: projectID,
		model:     model,
		span:      span,
		startedAt: time.Now(),
	}
	ok := false
	defer func() {
		if !ok {
			span.End()
		}
	}()

	var existing *uuid.UUID
	if raw := strings.TrimSpace(req.ConversationID); raw != "" {
		id, err := parseID(raw, conversationNotFoundCode, conversationNotFoundMsg)
		if err != nil {
			return nil, err
		}
		existing = &id
	}

	// The user message only commits together with its conversation.
	err = transaction.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		txCtx := dbctx.Context{Ctx: ctx, Tx: tx}
		var conv *types.Conversation
		if existing != nil {
			c, err := s.conversations.GetByIDForUser(txCtx, *existing, userID)
			if err != nil {
				return notFoundOr(err, conversationNotFoundCode, conversationNotFoundMsg)
			}
			if c.ProjectID != projectID {
				return apierr.NotFound(conversationNotFoundCode, conversationNotFoundMsg)
			}
			conv = c
		} else {
			c, err := s.conversations.Create(txCtx, &types.Conversation{
				ProjectID: projectID,
				UserID:    userID,
				Title:     chat.TitleFromMessage(message),
			})
			if err != nil {
				return apierr.Persistence(fmt.Errorf("create conversation: %w", err))
			}
			conv = c
			turn.Created = true
		}

		m, err := s.messages.Create(txCtx, userID, &types.Message{
			ConversationID: conv.ID,
			Role:           types.RoleUser,
			Content:        message,
			Sources:        chat.EncodeCitations(nil),
			CreatedAt:      time.Now().UTC(),
		})
		if err != nil {
			return apierr.Persistence(fmt.Errorf("save user message: %w", err))
		}
		if err := s.conversations.Touch(txCtx, conv.ID, m.CreatedAt); err != nil {
			return apierr.Persistence(fmt.Errorf("touch conversation: %w", err))
		}
		turn.ConversationID = conv.ID
		turn.userMessage = m
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	span.SetAttributes(attribute.String("conversation_id", turn.ConversationID.String()))

	ready, err := s.documents.CountByStatus(repoCtx, projectID, types.DocumentStatusReady)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("count ready documents: %w", err)
	}
	if ready == 0 {
		turn.canned = true
		span.SetAttributes(attribute.Bool("canned", true))
		ok = true
		return turn, nil
	}

	passages, rerr := s.retriever.Retrieve(ctx, retrieval.Query{
		Text:      message,
		ProjectID: projectID,
		TopK:      s.topK,
	})
	if rerr != nil {
		s.log.Warn("retrieval failed; answering without context", "project_id", projectID, "error", rerr)
		passages = nil
	}
	if len(passages) > s.topK {
		passages = passages[:s.topK]
	}
	turn.passages = passages
	span.SetAttributes(attribute.Int("passages", len(passages)))

	p := prompt.Build(message, passages)
	stream, err := s.generator.Open(ctx, generation.Request{
		System: p.System,
		Prompt: p.User,
		Model:  model,
	})
	if err != nil {
		s.metrics.IncChatTurn(chatOutcomeOpenError)
		span.RecordError(err)
		span.SetStatus(codes.Error, "generation open failed")
		s.log.Warn("generation open failed", "conversation_id", turn.ConversationID, "error", err)
		return nil, apierr.Generation(err)
	}
	turn.stream = stream
	ok = true
	return turn, nil
}

// Citations projects the retrieved passages into display citations.
func Citations(passages []retrieval.Passage) []chat.Citation {
	out := make([]chat.Citation, 0, len(passages))
	for _, p := range passages {
		out = append(out, chat.NewCitation(p.Metadata.ResolvedFileName(), p.Content))
	}
	return out
}

// SourcesSuffix renders the trailing marker, or "" when there is nothing to
// cite.
func SourcesSuffix(citations []chat.Citation) string {
	if len(citations) == 0 {
		return ""
	}
	return SourcesMarker + string(chat.EncodeCitations(citations))
}

// Stream writes the answer to w and, once the stream is complete and ctx is
// still live, stores the assistant message. Errors after the first fragment
// cannot reach the client as JSON; callers log them.
func (t *ChatTurn) Stream(ctx context.Context, w FragmentWriter) error {
	err := errors.New("chat turn already streamed")
	t.once.Do(func() {
		err = t.run(ctx, w)
	})
	return err
}

func (t *ChatTurn) run(ctx context.Context, w FragmentWriter) (err error) {
	s := t.svc
	defer t.span.End()
	defer func() {
		if err != nil {
			t.span.RecordError(err)
			t.span.SetStatus(codes.Error, err.Error())
		}
	}()

	s.metrics.StreamStarted()
	defer s.metrics.StreamFinished()

	if t.canned {
		// The canned reply is part of the history even if the client left.
		if err := t.save(context.WithoutCancel(ctx), NoDocumentsReply, nil); err != nil {
			return err
		}
		if err := w.WriteFragment(NoDocumentsReply); err != nil {
			s.metrics.IncChatTurn(chatOutcomeAborted)
			return fmt.Errorf("write canned reply: %w", err)
		}
		s.metrics.ObserveFirstFragment(time.Since(t.startedAt))
		s.metrics.IncChatTurn(chatOutcomeCanned)
		return nil
	}

	first := true
	text, err := generation.Tee(ctx, t.stream, func(fragment string) error {
		if first {
			first = false
			s.metrics.ObserveFirstFragment(time.Since(t.startedAt))
		}
		return w.WriteFragment(fragment)
	})
	if err != nil {
		outcome := chatOutcomeFailed
		if ctx.Err() != nil {
			outcome = chatOutcomeAborted
		}
		s.metrics.IncChatTurn(outcome)
		s.log.Warn("chat stream ended early",
			"conversation_id", t.ConversationID,
			"outcome", outcome,
			"error", err,
		)
		return fmt.Errorf("stream answer: %w", err)
	}

	citations := Citations(t.passages)
	if suffix := SourcesSuffix(citations); suffix != "" {
		if err := w.WriteFragment(suffix); err != nil {
			s.metrics.IncChatTurn(chatOutcomeAborted)
			return fmt.Errorf("write sources: %w", err)
		}
	}
	if err := t.persist(ctx, text, citations); err != nil {
		return err
	}
	s.metrics.IncChatTurn(chatOutcomeCompleted)
	return nil
}

func (t *ChatTurn) persist(ctx context.Context, content string, citations []chat.Citation) error {
	s := t.svc
	if ctx.Err() != nil {
		s.metrics.IncChatTurn(chatOutcomeAborted)
		s.log.Info("client gone; assistant message skipped", "conversation_id", t.ConversationID)
		return ctx.Err()
	}
	return t.save(ctx, content, citations)
}

func (t *ChatTurn) save(ctx context.Context, content string, citations []chat.Citation) error {
	s := t.svc
	at := time.Now().UTC()
	if floor := t.userMessage.CreatedAt.Add(time.Microsecond); at.Before(floor) {
		at = floor
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		txCtx := dbctx.Context{Ctx: ctx, Tx: tx}
		if _, err := s.messages.Create(txCtx, t.userID, &types.Message{
			ConversationID: t.ConversationID,
			Role:           types.RoleAssistant,
			Content:        content,
			Sources:        chat.EncodeCitations(citations),
			CreatedAt:      at,
		}); err != nil {
			return err
		}
		return s.conversations.Touch(txCtx, t.ConversationID, at)
	})
	if err != nil {
		s.metrics.IncChatTurn(chatOutcomePersist)
		s.log.Error("save assistant message failed", "conversation_id", t.ConversationID, "error", err)
		return apierr.Persistence(fmt.Errorf("save assistant message: %w", err))
	}
	return nil
}

// Close releases an unstreamed turn.
func (t *ChatTurn) Close() {
	t.once.Do(func() {
		if t.stream != nil {
			_ = t.stream.Close()
		}
		t.span.End()
	})
}
