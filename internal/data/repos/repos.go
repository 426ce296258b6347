package repos

import (
	"gorm.io/gorm"

	"github.com/yungbote/unravel-backend/internal/data/repos/chat"
	"github.com/yungbote/unravel-backend/internal/data/repos/workspace"
	"github.com/yungbote/unravel-backend/internal/platform/logger"
)

type ProjectRepo = workspace.ProjectRepo
type DocumentRepo = workspace.DocumentRepo

type ConversationRepo = chat.ConversationRepo
type MessageRepo = chat.MessageRepo

func NewProjectRepo(db *gorm.DB, log *logger.Logger) ProjectRepo {
	return workspace.NewProjectRepo(db, log)
}

func NewDocumentRepo(db *gorm.DB, log *logger.Logger) DocumentRepo {
	return workspace.NewDocumentRepo(db, log)
}

func NewConversationRepo(db *gorm.DB, log *logger.Logger) ConversationRepo {
	return chat.NewConversationRepo(db, log)
}

func NewMessageRepo(db *gorm.DB, log *logger.Logger) MessageRepo {
	return chat.NewMessageRepo(db, log)
}
