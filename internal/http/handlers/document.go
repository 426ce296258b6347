package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/yungbote/unravel-backend/internal/http/response"
	"github.com/yungbote/unravel-backend/internal/platform/apierr"
	"github.com/yungbote/unravel-backend/internal/platform/dbctx"
	"github.com/yungbote/unravel-backend/internal/services"
)

// maxMultipartMemory keeps uploads at the 10 MB ceiling in memory; anything
// beyond spills to temp files before validation rejects it.
const maxMultipartMemory = 12 << 20

type DocumentHandler struct {
	documents services.DocumentService
}

func NewDocumentHandler(documents services.DocumentService) *DocumentHandler {
	return &DocumentHandler{documents: documents}
}

type ingestReq struct {
	DocumentID string `json:"documentId"`
}

// POST /api/documents/upload (multipart: file, projectId)
func (h *DocumentHandler) Upload(c *gin.Context) {
	if err := c.Request.ParseMultipartForm(maxMultipartMemory); err != nil {
		response.RespondError(c, apierr.InvalidRequest("", "No file provided"))
		return
	}
	fh, err := c.FormFile("file")
	if err != nil || fh == nil {
		response.RespondError(c, apierr.InvalidRequest("", "No file provided"))
		return
	}
	f, err := fh.Open()
	if err != nil {
		response.RespondError(c, apierr.InvalidRequest("", "No file provided"))
		return
	}
	defer f.Close()

	doc, err := h.documents.Upload(dbctx.Context{Ctx: c.Request.Context()}, services.UploadInput{
		ProjectID: c.PostForm("projectId"),
		FileName:  fh.Filename,
		Size:      fh.Size,
		Body:      f,
	})
	if err != nil {
		response.RespondError(c, err)
		return
	}
	response.RespondCreated(c, doc)
}

// POST /api/documents/ingest
func (h *DocumentHandler) Ingest(c *gin.Context) {
	var req ingestReq
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, apierr.InvalidRequest("", "Document ID required"))
		return
	}
	res, err := h.documents.Ingest(dbctx.Context{Ctx: c.Request.Context()}, req.DocumentID)
	if err != nil {
		response.RespondError(c, err)
		return
	}
	response.RespondOK(c, res)
}

// DELETE /api/documents/:documentId
func (h *DocumentHandler) Delete(c *gin.Context) {
	if err := h.documents.Delete(dbctx.Context{Ctx: c.Request.Context()}, c.Param("documentId")); err != nil {
		response.RespondError(c, err)
		return
	}
	response.RespondSuccess(c)
}
