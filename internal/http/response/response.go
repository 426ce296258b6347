package response

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/unravel-backend/internal/platform/apierr"
)

// ErrorBody is the failure shape clients read: a display message plus a
// stable code.
type ErrorBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

const internalMessage = "Internal server error"

// Server-side failures carry upstream or database detail; clients only see
// a fixed message per code.
var publicMessages = map[string]string{
	"generation_failed":  "Failed to generate response",
	"persistence_failed": "Failed to save changes",
	"storage_failed":     "Failed to upload file",
	"ingestion_failed":   "Failed to process document",
	"delete_failed":      "Failed to delete document",
}

// RespondError writes err as JSON and aborts the chain. Errors that are not
// API errors become a 500 without leaking their text.
func RespondError(c *gin.Context, err error) {
	ae := apierr.From(err)
	if ae == nil {
		ae = apierr.Internal("", nil)
	}
	msg := ae.Error()
	if ae.Status >= http.StatusInternalServerError {
		msg = publicMessages[ae.Code]
	}
	if msg == "" {
		msg = internalMessage
	}
	if ae.Status >= http.StatusInternalServerError {
		_ = c.Error(err)
	}
	c.AbortWithStatusJSON(ae.Status, ErrorBody{Error: msg, Code: ae.Code})
}

func RespondOK(c *gin.Context, payload any) {
	c.JSON(http.StatusOK, payload)
}

func RespondCreated(c *gin.Context, payload any) {
	c.JSON(http.StatusCreated, payload)
}

func RespondSuccess(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"success": true})
}
