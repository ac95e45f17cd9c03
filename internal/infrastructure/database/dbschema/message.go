package dbschema

import (
	"encoding/json"

	"gorm.io/datatypes"

	"chat-server/services/chat-api/internal/domain/conversation"
	"chat-server/services/chat-api/internal/infrastructure/database"
)

func init() {
	database.RegisterSchemaForAutoMigrate(Message{})
}

// Message represents the database schema for messages. Soft deletion goes
// through the embedded gorm.DeletedAt; CreatedAt is the pagination cursor.
type Message struct {
	BaseModel
	PublicID       string            `gorm:"type:varchar(50);uniqueIndex;not null"`
	ConversationID uint              `gorm:"index:idx_messages_conversation_created;not null"`
	Conversation   Conversation      `gorm:"foreignKey:ConversationID"`
	UserID         uint              `gorm:"index;not null"`
	PrincipalID    string            `gorm:"type:varchar(255);not null"`
	Role           conversation.Role `gorm:"type:varchar(20);not null"`
	Content        string            `gorm:"type:text;not null"`
	TokenCount     int               `gorm:"not null;default:0"`
	Edited         bool              `gorm:"not null;default:false"`
	Attachments    JSONAttachments   `gorm:"type:jsonb"`
	Completion     datatypes.JSON    `gorm:"type:jsonb"`
}

// JSONAttachments stores attachment metadata as a JSON array
type JSONAttachments []conversation.Attachment

func (j JSONAttachments) Value() (interface{}, error) {
	if j == nil {
		return nil, nil
	}
	return json.Marshal(j)
}

func (j *JSONAttachments) Scan(value any) error {
	if value == nil {
		*j = nil
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return nil
	}
	return json.Unmarshal(bytes, j)
}

// NewSchemaMessage creates a database schema from a domain message
func NewSchemaMessage(m *conversation.Message) *Message {
	msg := &Message{
		BaseModel: BaseModel{
			ID:        m.ID,
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		PublicID:       m.PublicID,
		ConversationID: m.ConversationID,
		UserID:         m.UserID,
		PrincipalID:    m.PrincipalID,
		Role:           m.Role,
		Content:        m.Content,
		TokenCount:     m.TokenCount,
		Edited:         m.Edited,
		Attachments:    JSONAttachments(m.Attachments),
	}
	if m.Completion != nil {
		if raw, err := json.Marshal(m.Completion); err == nil {
			msg.Completion = datatypes.JSON(raw)
		}
	}
	return msg
}

// EtoD converts database schema to domain message (Entity to Domain)
func (m *Message) EtoD() *conversation.Message {
	msg := &conversation.Message{
		ID:             m.ID,
		PublicID:       m.PublicID,
		ConversationID: m.ConversationID,
		UserID:         m.UserID,
		PrincipalID:    m.PrincipalID,
		Role:           m.Role,
		Content:        m.Content,
		TokenCount:     m.TokenCount,
		Edited:         m.Edited,
		Attachments:    []conversation.Attachment(m.Attachments),
		CreatedAt:      m.CreatedAt,
		UpdatedAt:      m.UpdatedAt,
	}
	if m.DeletedAt.Valid {
		deletedAt := m.DeletedAt.Time
		msg.DeletedAt = &deletedAt
	}
	if len(m.Completion) > 0 {
		var meta conversation.CompletionMetadata
		if err := json.Unmarshal(m.Completion, &meta); err == nil {
			msg.Completion = &meta
		}
	}
	return msg
}
