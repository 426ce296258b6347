package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/yungbote/unravel-backend/internal/platform/ctxutil"
	"github.com/yungbote/unravel-backend/internal/platform/logger"
	"github.com/yungbote/unravel-backend/internal/services"
)

const testSecret = "test-secret"

func signedToken(t *testing.T, sub string, exp time.Time) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   sub,
		ExpiresAt: jwt.NewNumericDate(exp),
	})
	s, err := tok.SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return s
}

func authRouter(t *testing.T, reached *uuid.UUID) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	authService, err := services.NewAuthService(logger.Nop(), services.AuthConfig{JWTSecret: testSecret})
	if err != nil {
		t.Fatalf("NewAuthService: %v", err)
	}
	r := gin.New()
	r.Use(NewAuthMiddleware(logger.Nop(), authService).RequireAuth())
	r.GET("/api/projects", func(c *gin.Context) {
		*reached = ctxutil.UserID(c.Request.Context())
		c.Status(http.StatusOK)
	})
	return r
}

func TestRequireAuthRejects(t *testing.T) {
	cases := []struct {
		name   string
		header string
	}{
		{"missing", ""},
		{"not bearer", "Basic abc"},
		{"garbage", "Bearer not-a-jwt"},
		{"expired", "Bearer " + signedToken(t, uuid.NewString(), time.Now().Add(-time.Hour))},
		{"non uuid subject", "Bearer " + signedToken(t, "user-1", time.Now().Add(time.Hour))},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var reached uuid.UUID
			r := authRouter(t, &reached)
			req := httptest.NewRequest(http.MethodGet, "/api/projects", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, req)
			if rec.Code != http.StatusUnauthorized {
				t.Fatalf("status: want=%d got=%d", http.StatusUnauthorized, rec.Code)
			}
			if !strings.Contains(rec.Body.String(), `"error":"Unauthorized"`) {
				t.Fatalf("body: got=%s", rec.Body.String())
			}
			if reached != uuid.Nil {
				t.Fatalf("handler ran for rejected request")
			}
		})
	}
}

func TestRequireAuthAttachesUser(t *testing.T) {
	userID := uuid.New()
	var reached uuid.UUID
	r := authRouter(t, &reached)

	req := httptest.NewRequest(http.MethodGet, "/api/projects", nil)
	req.Header.Set("Authorization", "Bearer "+signedToken(t, userID.String(), time.Now().Add(time.Hour)))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status: want=%d got=%d body=%s", http.StatusOK, rec.Code, rec.Body.String())
	}
	if reached != userID {
		t.Fatalf("user: want=%s got=%s", userID, reached)
	}
}
