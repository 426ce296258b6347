package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/yungbote/unravel-backend/internal/generation"
	"github.com/yungbote/unravel-backend/internal/http/response"
)

type ModelsHandler struct {
	catalog generation.Catalog
}

func NewModelsHandler(catalog generation.Catalog) *ModelsHandler {
	return &ModelsHandler{catalog: catalog}
}

// GET /api/models
func (h *ModelsHandler) List(c *gin.Context) {
	response.RespondOK(c, gin.H{
		"models":  h.catalog.Models,
		"default": h.catalog.Default,
	})
}
