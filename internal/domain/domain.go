package domain

import (
	"github.com/yungbote/unravel-backend/internal/domain/chat"
	"github.com/yungbote/unravel-backend/internal/domain/workspace"
)

type (
	Project        = workspace.Project
	Document       = workspace.Document
	DocumentStatus = workspace.DocumentStatus

	Conversation = chat.Conversation
	Message      = chat.Message
	Role         = chat.Role
	Citation     = chat.Citation
)

const (
	DocumentStatusUploading  = workspace.DocumentStatusUploading
	DocumentStatusProcessing = workspace.DocumentStatusProcessing
	DocumentStatusReady      = workspace.DocumentStatusReady
	DocumentStatusError      = workspace.DocumentStatusError

	RoleUser      = chat.RoleUser
	RoleAssistant = chat.RoleAssistant
)

// Models lists every table the service migrates.
func Models() []any {
	return []any{
		&workspace.Project{},
		&workspace.Document{},
		&chat.Conversation{},
		&chat.Message{},
	}
}
