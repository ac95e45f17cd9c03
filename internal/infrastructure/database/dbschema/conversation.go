package dbschema

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"chat-server/services/chat-api/internal/domain/conversation"
	"chat-server/services/chat-api/internal/infrastructure/database"
)

func init() {
	database.RegisterSchemaForAutoMigrate(Conversation{})
}

// Conversation represents the database schema for conversations. The counter
// columns are written with atomic increments, never read-modify-write.
type Conversation struct {
	BaseModel
	PublicID       string              `gorm:"type:varchar(50);uniqueIndex;not null"`
	UserID         uint                `gorm:"index:idx_conversations_user_activity;not null"`
	User           User                `gorm:"foreignKey:UserID"`
	PrincipalID    string              `gorm:"type:varchar(255);index;not null"`
	Title          string              `gorm:"type:varchar(256);not null"`
	Status         conversation.Status `gorm:"type:varchar(20);not null;default:'active'"`
	MessageCount   int64               `gorm:"not null;default:0"`
	TotalTokens    int64               `gorm:"not null;default:0"`
	LastActivityAt time.Time           `gorm:"index:idx_conversations_user_activity,sort:desc;not null"`
	Settings       JSONSettings        `gorm:"type:jsonb"`
	Metadata       JSONMap             `gorm:"type:jsonb"`
}

// JSONMap is a custom type for map[string]string stored as JSON
type JSONMap map[string]string

func (j JSONMap) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return json.Marshal(j)
}

func (j *JSONMap) Scan(value any) error {
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

// JSONSettings stores per-conversation model settings as JSON
type JSONSettings conversation.ModelSettings

func (j JSONSettings) Value() (driver.Value, error) {
	return json.Marshal(j)
}

func (j *JSONSettings) Scan(value any) error {
	if value == nil {
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return nil
	}
	return json.Unmarshal(bytes, j)
}

// NewSchemaConversation creates a database schema from domain conversation
func NewSchemaConversation(c *conversation.Conversation) *Conversation {
	return &Conversation{
		BaseModel: BaseModel{
			ID:        c.ID,
			CreatedAt: c.CreatedAt,
			UpdatedAt: c.UpdatedAt,
		},
		PublicID:       c.PublicID,
		UserID:         c.UserID,
		PrincipalID:    c.PrincipalID,
		Title:          c.Title,
		Status:         c.Status,
		MessageCount:   c.MessageCount,
		TotalTokens:    c.TotalTokens,
		LastActivityAt: c.LastActivityAt,
		Settings:       JSONSettings(c.Settings),
		Metadata:       JSONMap(c.Metadata),
	}
}

// EtoD converts database schema to domain conversation (Entity to Domain)
func (c *Conversation) EtoD() *conversation.Conversation {
	return &conversation.Conversation{
		ID:             c.ID,
		PublicID:       c.PublicID,
		UserID:         c.UserID,
		PrincipalID:    c.PrincipalID,
		Title:          c.Title,
		Status:         c.Status,
		MessageCount:   c.MessageCount,
		TotalTokens:    c.TotalTokens,
		LastActivityAt: c.LastActivityAt,
		Settings:       conversation.ModelSettings(c.Settings),
		Metadata:       map[string]string(c.Metadata),
		CreatedAt:      c.CreatedAt,
		UpdatedAt:      c.UpdatedAt,
	}
}
