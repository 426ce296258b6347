package http

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	httpH "github.com/yungbote/unravel-backend/internal/http/handlers"
	httpMW "github.com/yungbote/unravel-backend/internal/http/middleware"
	"github.com/yungbote/unravel-backend/internal/observability"
	"github.com/yungbote/unravel-backend/internal/platform/logger"
)

type RouterConfig struct {
	Log            *logger.Logger
	Metrics        *observability.Metrics
	ServiceName    string
	AllowedOrigins []string

	AuthMiddleware *httpMW.AuthMiddleware

	ChatHandler         *httpH.ChatHandler
	ProjectHandler      *httpH.ProjectHandler
	ConversationHandler *httpH.ConversationHandler
	DocumentHandler     *httpH.DocumentHandler
	ModelsHandler       *httpH.ModelsHandler
	HealthHandler       *httpH.HealthHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(httpMW.Recovery(cfg.Log))
	if cfg.ServiceName != "" {
		r.Use(otelgin.Middleware(cfg.ServiceName))
	}
	r.Use(httpMW.AttachTraceContext())
	if cfg.Log != nil {
		r.Use(httpMW.RequestLogger(cfg.Log))
	}
	if cfg.Metrics != nil {
		r.Use(httpMW.Metrics(cfg.Metrics))
	}
	r.Use(httpMW.CORS(cfg.AllowedOrigins))

	// Health
	if cfg.HealthHandler != nil {
		r.GET("/healthcheck", cfg.HealthHandler.HealthCheck)
		r.GET("/readyz", cfg.HealthHandler.Ready)
	}
	if cfg.Metrics != nil {
		r.GET("/metrics", gin.WrapH(cfg.Metrics.Handler()))
	}

	protected := r.Group("/api")
	{
		// Middleware
		if cfg.AuthMiddleware != nil {
			protected.Use(cfg.AuthMiddleware.RequireAuth())
		}

		// Chat (streamed)
		if cfg.ChatHandler != nil {
			protected.POST("/chat", cfg.ChatHandler.Chat)
		}

		// Models
		if cfg.ModelsHandler != nil {
			protected.GET("/models", cfg.ModelsHandler.List)
		}

		// Projects
		if cfg.ProjectHandler != nil {
			protected.GET("/projects", cfg.ProjectHandler.List)
			protected.POST("/projects", cfg.ProjectHandler.Create)
			protected.GET("/projects/:id", cfg.ProjectHandler.Get)
			protected.PATCH("/projects/:id", cfg.ProjectHandler.Update)
			protected.DELETE("/projects/:id", cfg.ProjectHandler.Delete)
			protected.GET("/projects/:id/documents", cfg.ProjectHandler.ListDocuments)
			protected.GET("/projects/:id/conversations", cfg.ProjectHandler.ListConversations)
		}

		// Conversations
		if cfg.ConversationHandler != nil {
			protected.GET("/conversations", cfg.ConversationHandler.List)
			protected.DELETE("/conversations", cfg.ConversationHandler.Delete)
			protected.GET("/conversations/:id", cfg.ConversationHandler.Get)
			protected.PATCH("/conversations/:id", cfg.ConversationHandler.Update)
			protected.DELETE("/conversations/:id", cfg.ConversationHandler.Delete)
		}

		// Documents
		if cfg.DocumentHandler != nil {
			protected.POST("/documents/upload", cfg.DocumentHandler.Upload)
			protected.POST("/documents/ingest", cfg.DocumentHandler.Ingest)
			protected.DELETE("/documents/:documentId", cfg.DocumentHandler.Delete)
		}
	}

	return r
}
