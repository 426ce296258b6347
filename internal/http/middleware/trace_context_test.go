package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/unravel-backend/internal/platform/ctxutil"
)

func TestAttachTraceContext(t *testing.T) {
	gin.SetMode(gin.TestMode)
	valid := uuid.NewString()

	cases := []struct {
		name      string
		requestID string
		traceID   string
		keepReq   bool
	}{
		{"client ids kept", valid, "abc123", true},
		{"invalid request id replaced", "not-a-uuid", "", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var td *ctxutil.TraceData
			r := gin.New()
			r.Use(AttachTraceContext())
			r.GET("/x", func(c *gin.Context) {
				td = ctxutil.GetTraceData(c.Request.Context())
				c.Status(http.StatusOK)
			})

			req := httptest.NewRequest(http.MethodGet, "/x", nil)
			req.Header.Set(headerRequestID, tc.requestID)
			if tc.traceID != "" {
				req.Header.Set(headerTraceID, tc.traceID)
			}
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, req)

			if td == nil {
				t.Fatalf("trace data missing from context")
			}
			gotReq := rec.Header().Get(headerRequestID)
			if gotReq != td.RequestID {
				t.Fatalf("request id header: want=%q got=%q", td.RequestID, gotReq)
			}
			if tc.keepReq && gotReq != tc.requestID {
				t.Fatalf("request id: want=%q got=%q", tc.requestID, gotReq)
			}
			if !tc.keepReq {
				if _, err := uuid.Parse(gotReq); err != nil || gotReq == tc.requestID {
					t.Fatalf("request id: want fresh uuid got=%q", gotReq)
				}
			}
			if tc.traceID != "" && td.TraceID != tc.traceID {
				t.Fatalf("trace id: want=%q got=%q", tc.traceID, td.TraceID)
			}
			if td.TraceID == "" || rec.Header().Get(headerTraceID) != td.TraceID {
				t.Fatalf("trace id header: want=%q got=%q", td.TraceID, rec.Header().Get(headerTraceID))
			}
		})
	}
}
