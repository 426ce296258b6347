package app

import (
	"github.com/yungbote/unravel-backend/internal/http"
	httpH "github.com/yungbote/unravel-backend/internal/http/handlers"
	httpMW "github.com/yungbote/unravel-backend/internal/http/middleware"
	"github.com/yungbote/unravel-backend/internal/observability"
	"github.com/yungbote/unravel-backend/internal/platform/logger"
)

type Middleware struct {
	Auth *httpMW.AuthMiddleware
}

type Handlers struct {
	Health       *httpH.HealthHandler
	Chat         *httpH.ChatHandler
	Project      *httpH.ProjectHandler
	Conversation *httpH.ConversationHandler
	Document     *httpH.DocumentHandler
	Models       *httpH.ModelsHandler
}

func wireHandlers(log *logger.Logger, services Services, db httpH.Pinger) Handlers {
	log.Info("Wiring handlers...")
	return Handlers{
		Health:       httpH.NewHealthHandler(db),
		Chat:         httpH.NewChatHandler(log, services.Chat),
		Project:      httpH.NewProjectHandler(services.Project, services.Document, services.Conversation),
		Conversation: httpH.NewConversationHandler(services.Conversation),
		Document:     httpH.NewDocumentHandler(services.Document),
		Models:       httpH.NewModelsHandler(services.Models),
	}
}

func wireMiddleware(log *logger.Logger, services Services) Middleware {
	log.Info("Wiring middleware...")
	return Middleware{
		Auth: httpMW.NewAuthMiddleware(log, services.Auth),
	}
}

func wireServer(log *logger.Logger, cfg Config, metrics *observability.Metrics, handlers Handlers, middleware Middleware) *http.Server {
	return http.NewServer(http.RouterConfig{
		Log:                 log,
		Metrics:             metrics,
		ServiceName:         cfg.ServiceName,
		AllowedOrigins:      cfg.AllowedOrigins,
		AuthMiddleware:      middleware.Auth,
		ChatHandler:         handlers.Chat,
		ProjectHandler:      handlers.Project,
		ConversationHandler: handlers.Conversation,
		DocumentHandler:     handlers.Document,
		ModelsHandler:       handlers.Models,
		HealthHandler:       handlers.Health,
	})
}
