package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/yungbote/unravel-backend/internal/http/response"
	"github.com/yungbote/unravel-backend/internal/platform/apierr"
	"github.com/yungbote/unravel-backend/internal/platform/dbctx"
	"github.com/yungbote/unravel-backend/internal/services"
)

type ConversationHandler struct {
	conversations services.ConversationService
}

func NewConversationHandler(conversations services.ConversationService) *ConversationHandler {
	return &ConversationHandler{conversations: conversations}
}

type updateConversationReq struct {
	Title string `json:"title"`
}

// GET /api/conversations?projectId=
func (h *ConversationHandler) List(c *gin.Context) {
	rows, err := h.conversations.List(dbctx.Context{Ctx: c.Request.Context()}, c.Query("projectId"))
	if err != nil {
		response.RespondError(c, err)
		return
	}
	response.RespondOK(c, rows)
}

// GET /api/conversations/:id
func (h *ConversationHandler) Get(c *gin.Context) {
	detail, err := h.conversations.Get(dbctx.Context{Ctx: c.Request.Context()}, c.Param("id"))
	if err != nil {
		response.RespondError(c, err)
		return
	}
	response.RespondOK(c, detail)
}

// PATCH /api/conversations/:id
func (h *ConversationHandler) Update(c *gin.Context) {
	var req updateConversationReq
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, apierr.InvalidRequest("", "Invalid request body"))
		return
	}
	row, err := h.conversations.UpdateTitle(dbctx.Context{Ctx: c.Request.Context()}, c.Param("id"), req.Title)
	if err != nil {
		response.RespondError(c, err)
		return
	}
	response.RespondOK(c, row)
}

// DELETE /api/conversations/:id and DELETE /api/conversations?id=
func (h *ConversationHandler) Delete(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		id = c.Query("id")
	}
	if err := h.conversations.Delete(dbctx.Context{Ctx: c.Request.Context()}, id); err != nil {
		response.RespondError(c, err)
		return
	}
	response.RespondSuccess(c)
}
