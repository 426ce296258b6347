package app

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/yungbote/unravel-backend/internal/generation"
	"github.com/yungbote/unravel-backend/internal/observability"
	"github.com/yungbote/unravel-backend/internal/platform/logger"
	"github.com/yungbote/unravel-backend/internal/retrieval"
	"github.com/yungbote/unravel-backend/internal/services"
)

type Services struct {
	Auth services.AuthService

	Project      services.ProjectService
	Document     services.DocumentService
	Conversation services.ConversationService
	Chat         services.ChatService

	Models generation.Catalog
}

// buildRetriever layers the provider: metrics innermost, then the optional
// redis cache, then the timeout and clamp the chat path relies on.
func buildRetriever(log *logger.Logger, cfg Config, clients Clients, metrics *observability.Metrics) (retrieval.Retriever, services.ProjectCacheInvalidator) {
	var next retrieval.Retriever = retrieval.NewInstrumented(clients.Retrieval.Name, clients.Retrieval.Retriever, metrics)
	var cache services.ProjectCacheInvalidator
	if clients.Redis != nil && cfg.RetrievalCacheTTL > 0 {
		cached := retrieval.NewCached(log, clients.Redis, next, cfg.RetrievalCacheTTL, metrics)
		next = cached
		cache = cached
	}
	return retrieval.NewBounded(log, next, cfg.RetrievalTimeout), cache
}

func wireServices(db *gorm.DB, log *logger.Logger, cfg Config, repos Repos, clients Clients, metrics *observability.Metrics) (Services, error) {
	log.Info("Wiring services...")

	auth, err := services.NewAuthService(log, cfg.Auth)
	if err != nil {
		return Services{}, fmt.Errorf("init auth service: %w", err)
	}

	catalog, err := generation.LoadCatalog(cfg.ModelsConfigPath)
	if err != nil {
		return Services{}, fmt.Errorf("load model catalog: %w", err)
	}

	retriever, cache := buildRetriever(log, cfg, clients, metrics)
	generator := generation.NewOpenAI(clients.LLM, metrics)
	indexer := clients.Retrieval.Indexer

	projectService := services.NewProjectService(
		db, log, metrics,
		repos.Project, repos.Document, repos.Conversation, repos.Message,
		clients.Bucket, indexer, cache,
	)
	documentService := services.NewDocumentService(
		db, log, metrics,
		repos.Project, repos.Document,
		clients.Bucket, indexer, cache,
	)
	conversationService := services.NewConversationService(
		db, log,
		repos.Project, repos.Conversation, repos.Message,
	)
	chatService := services.NewChatService(
		db, log, metrics,
		repos.Project, repos.Document, repos.Conversation, repos.Message,
		retriever, generator, catalog,
	)

	return Services{
		Auth:         auth,
		Project:      projectService,
		Document:     documentService,
		Conversation: conversationService,
		Chat:         chatService,
		Models:       catalog,
	}, nil
}
