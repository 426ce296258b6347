package app

import (
	"gorm.io/gorm"

	"github.com/yungbote/unravel-backend/internal/data/repos"
	"github.com/yungbote/unravel-backend/internal/platform/logger"
)

type Repos struct {
	Project      repos.ProjectRepo
	Document     repos.DocumentRepo
	Conversation repos.ConversationRepo
	Message      repos.MessageRepo
}

func wireRepos(db *gorm.DB, log *logger.Logger) Repos {
	log.Info("Wiring repos...")
	return Repos{
		Project:      repos.NewProjectRepo(db, log),
		Document:     repos.NewDocumentRepo(db, log),
		Conversation: repos.NewConversationRepo(db, log),
		Message:      repos.NewMessageRepo(db, log),
	}
}
