package chat

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

func (r Role) Valid() bool { return r == RoleUser || r == RoleAssistant }

type Message struct {
	ID             uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	ConversationID uuid.UUID `gorm:"type:uuid;not null;index:idx_message_conversation_created,priority:1" json:"conversation_id"`

	Role    Role   `gorm:"column:role;not null" json:"role"`
	Content string `gorm:"column:content;type:text;not null" json:"content"`

	// Sources holds the serialized citation list. Older rows may carry
	// arbitrary text, so reads go through Citations().
	Sources datatypes.JSON `gorm:"column:sources;type:text" json:"-"`

	CreatedAt time.Time `gorm:"not null;index:idx_message_conversation_created,priority:2" json:"created_at"`
}

func (Message) TableName() string { return "messages" }

// Citations decodes Sources, returning an empty list when the column is
// empty or not a JSON array of citations.
func (m *Message) Citations() []Citation {
	if m == nil || len(m.Sources) == 0 {
		return []Citation{}
	}
	var out []Citation
	if err := json.Unmarshal(m.Sources, &out); err != nil || out == nil {
		return []Citation{}
	}
	return out
}

// EncodeCitations serializes citations for storage; nil encodes as "[]".
func EncodeCitations(citations []Citation) datatypes.JSON {
	if len(citations) == 0 {
		return datatypes.JSON("[]")
	}
	raw, err := json.Marshal(citations)
	if err != nil {
		return datatypes.JSON("[]")
	}
	return datatypes.JSON(raw)
}
