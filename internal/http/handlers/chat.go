package handlers

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/unravel-backend/internal/http/middleware"
	"github.com/yungbote/unravel-backend/internal/http/response"
	"github.com/yungbote/unravel-backend/internal/platform/apierr"
	"github.com/yungbote/unravel-backend/internal/platform/dbctx"
	"github.com/yungbote/unravel-backend/internal/platform/logger"
	"github.com/yungbote/unravel-backend/internal/services"
)

type ChatHandler struct {
	log  *logger.Logger
	chat services.ChatService
}

func NewChatHandler(log *logger.Logger, chat services.ChatService) *ChatHandler {
	return &ChatHandler{log: log.With("handler", "ChatHandler"), chat: chat}
}

// POST /api/chat
//
// The body is raw answer text, optionally followed by the sources marker.
// Failures before the first byte are JSON errors. Later ones abort the
// connection so the client sees a read error instead of a short answer.
func (h *ChatHandler) Chat(c *gin.Context) {
	var req services.ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, apierr.InvalidRequest("", "Message and project ID required"))
		return
	}

	ctx := c.Request.Context()
	turn, err := h.chat.Start(dbctx.Context{Ctx: ctx}, req)
	if err != nil {
		response.RespondError(c, err)
		return
	}

	header := c.Writer.Header()
	header.Set("Content-Type", "text/event-stream")
	header.Set("Cache-Control", "no-cache")
	header.Set("Connection", "keep-alive")
	header.Set("X-Accel-Buffering", "no")
	header.Set(middleware.HeaderConversationID, turn.ConversationID.String())
	c.Status(http.StatusOK)
	c.Writer.WriteHeaderNow()
	c.Writer.Flush()

	w := services.FragmentWriterFunc(func(fragment string) error {
		if _, err := io.WriteString(c.Writer, fragment); err != nil {
			return err
		}
		c.Writer.Flush()
		return nil
	})
	if err := turn.Stream(ctx, w); err != nil {
		_ = c.Error(err)
		h.log.Warn("chat stream incomplete", "conversation_id", turn.ConversationID, "error", err)
		if ctx.Err() == nil {
			// Headers are out; dropping the connection leaves the chunked
			// body unterminated.
			panic(http.ErrAbortHandler)
		}
	}
}
