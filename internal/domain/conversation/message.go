package conversation

import (
	"context"
	"time"

	"chat-server/services/chat-api/internal/domain/query"
)

// Role identifies the author kind of a message. The set is closed.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// IsValid reports whether the role belongs to the closed set.
func (r Role) IsValid() bool {
	switch r {
	case RoleSystem, RoleUser, RoleAssistant:
		return true
	}
	return false
}

// Attachment records metadata about an uploaded file referenced by a message.
// Upload and storage happen elsewhere; only the metadata is persisted here.
type Attachment struct {
	OriginalName string `json:"original_name"`
	StoredName   string `json:"stored_name,omitempty"`
	Size         int64  `json:"size,omitempty"`
	MimeType     string `json:"mime_type,omitempty"`
	Provider     string `json:"provider,omitempty"`
	URL          string `json:"url,omitempty"`
}

// CompletionMetadata carries provider-side details for assistant messages.
type CompletionMetadata struct {
	Model        string   `json:"model,omitempty"`
	Temperature  *float64 `json:"temperature,omitempty"`
	MaxTokens    *int     `json:"max_tokens,omitempty"`
	TokenCount   *int     `json:"token_count,omitempty"`
	FinishReason string   `json:"finish_reason,omitempty"`
}

// Message is a single turn in a conversation. TokenCount is fixed at write
// time with the injected estimator unless completion metadata carries an
// authoritative count.
type Message struct {
	ID             uint
	PublicID       string
	ConversationID uint
	UserID         uint
	PrincipalID    string
	Role           Role
	Content        string
	TokenCount     int
	Edited         bool
	Attachments    []Attachment
	Completion     *CompletionMetadata
	CreatedAt      time.Time
	UpdatedAt      time.Time
	DeletedAt      *time.Time
}

// IsDeleted reports whether the message has been soft-deleted.
func (m *Message) IsDeleted() bool {
	return m.DeletedAt != nil
}

// MessagePage is one page of messages in ascending creation order.
// NextCursor is nil when the page was not full.
type MessagePage struct {
	Messages   []*Message
	TotalCount int64
	NextCursor *string
}

// MessageStats aggregates over the live messages of a conversation.
type MessageStats struct {
	MessageCount   int64
	TotalTokens    int64
	FirstMessageAt *time.Time
	LastMessageAt  *time.Time
}

// BulkResult reports the outcome of a bulk import.
type BulkResult struct {
	Created  int
	Skipped  int
	Messages []*Message
}

// MessageRepository defines storage operations for messages. Soft-deleted
// rows are excluded everywhere except ListIncludingDeleted.
type MessageRepository interface {
	Create(ctx context.Context, msg *Message) error
	CreateBatch(ctx context.Context, msgs []*Message) error
	FindByPublicID(ctx context.Context, conversationID uint, publicID string) (*Message, error)
	ListByConversation(ctx context.Context, conversationID uint, pagination *query.Pagination) ([]*Message, error)
	ListIncludingDeleted(ctx context.Context, conversationID uint) ([]*Message, error)
	CountLive(ctx context.Context, conversationID uint) (int64, error)
	SumLiveTokens(ctx context.Context, conversationID uint) (int64, error)
	Update(ctx context.Context, msg *Message) error
	SoftDelete(ctx context.Context, id uint) error
	HardDeleteByConversation(ctx context.Context, conversationID uint) error
	Stats(ctx context.Context, conversationID uint) (*MessageStats, error)
}
