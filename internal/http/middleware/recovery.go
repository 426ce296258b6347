package middleware

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/unravel-backend/internal/http/response"
	"github.com/yungbote/unravel-backend/internal/platform/apierr"
	"github.com/yungbote/unravel-backend/internal/platform/logger"
)

// Recovery turns handler panics into a JSON 500. http.ErrAbortHandler is
// re-raised so net/http drops the connection without finishing the body;
// streaming handlers use it to signal a broken response to the client.
func Recovery(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if err, ok := rec.(error); ok && errors.Is(err, http.ErrAbortHandler) {
				panic(rec)
			}
			if log != nil {
				log.Error("panic recovered", "path", c.Request.URL.Path, "panic", fmt.Sprint(rec))
			}
			if c.Writer.Written() {
				c.Abort()
				return
			}
			response.RespondError(c, apierr.Internal("", fmt.Errorf("panic: %v", rec)))
		}()
		c.Next()
	}
}
