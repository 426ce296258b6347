package chat

import (
	"time"

	"github.com/google/uuid"
)

const DefaultConversationTitle = "New Conversation"

// TitleMaxRunes bounds auto-generated titles; longer messages get an ellipsis.
const TitleMaxRunes = 50

type Conversation struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	ProjectID uuid.UUID `gorm:"type:uuid;not null;index" json:"project_id"`
	UserID    uuid.UUID `gorm:"type:uuid;not null;index" json:"user_id"`

	Title string `gorm:"column:title;not null" json:"title"`

	CreatedAt time.Time `gorm:"not null;index" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;index" json:"updated_at"`
}

func (Conversation) TableName() string { return "conversations" }

// TitleFromMessage derives a conversation title from the first user message.
func TitleFromMessage(message string) string {
	runes := []rune(message)
	if len(runes) <= TitleMaxRunes {
		return message
	}
	return string(runes[:TitleMaxRunes]) + "..."
}
