package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/yungbote/unravel-backend/internal/http/response"
	"github.com/yungbote/unravel-backend/internal/platform/apierr"
	"github.com/yungbote/unravel-backend/internal/platform/dbctx"
	"github.com/yungbote/unravel-backend/internal/services"
)

type ProjectHandler struct {
	projects      services.ProjectService
	documents     services.DocumentService
	conversations services.ConversationService
}

func NewProjectHandler(projects services.ProjectService, documents services.DocumentService, conversations services.ConversationService) *ProjectHandler {
	return &ProjectHandler{projects: projects, documents: documents, conversations: conversations}
}

type createProjectReq struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// GET /api/projects
func (h *ProjectHandler) List(c *gin.Context) {
	rows, err := h.projects.List(dbctx.Context{Ctx: c.Request.Context()})
	if err != nil {
		response.RespondError(c, err)
		return
	}
	response.RespondOK(c, rows)
}

// POST /api/projects
func (h *ProjectHandler) Create(c *gin.Context) {
	var req createProjectReq
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, apierr.InvalidRequest("", "Name is required"))
		return
	}
	row, err := h.projects.Create(dbctx.Context{Ctx: c.Request.Context()}, req.Name, req.Description)
	if err != nil {
		response.RespondError(c, err)
		return
	}
	response.RespondCreated(c, row)
}

// GET /api/projects/:id
func (h *ProjectHandler) Get(c *gin.Context) {
	row, err := h.projects.Get(dbctx.Context{Ctx: c.Request.Context()}, c.Param("id"))
	if err != nil {
		response.RespondError(c, err)
		return
	}
	response.RespondOK(c, row)
}

// PATCH /api/projects/:id
func (h *ProjectHandler) Update(c *gin.Context) {
	var req services.ProjectUpdate
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, apierr.InvalidRequest("", "Invalid request body"))
		return
	}
	row, err := h.projects.Update(dbctx.Context{Ctx: c.Request.Context()}, c.Param("id"), req)
	if err != nil {
		response.RespondError(c, err)
		return
	}
	response.RespondOK(c, row)
}

// DELETE /api/projects/:id
func (h *ProjectHandler) Delete(c *gin.Context) {
	if err := h.projects.Delete(dbctx.Context{Ctx: c.Request.Context()}, c.Param("id")); err != nil {
		response.RespondError(c, err)
		return
	}
	response.RespondSuccess(c)
}

// GET /api/projects/:id/documents
func (h *ProjectHandler) ListDocuments(c *gin.Context) {
	rows, err := h.documents.ListByProject(dbctx.Context{Ctx: c.Request.Context()}, c.Param("id"))
	if err != nil {
		response.RespondError(c, err)
		return
	}
	response.RespondOK(c, rows)
}

// GET /api/projects/:id/conversations
func (h *ProjectHandler) ListConversations(c *gin.Context) {
	rows, err := h.conversations.ListForProject(dbctx.Context{Ctx: c.Request.Context()}, c.Param("id"))
	if err != nil {
		response.RespondError(c, err)
		return
	}
	response.RespondOK(c, rows)
}
