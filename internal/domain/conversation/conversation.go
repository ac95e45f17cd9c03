// Package conversation contains the conversation and message domain model,
// the services that keep conversation aggregate counters consistent with
// their live messages, and the transactional replace pipeline.
package conversation

import (
	"context"
	"time"

	"chat-server/services/chat-api/internal/domain/query"
)

// Status represents the lifecycle state of a conversation
type Status string

const (
	StatusActive   Status = "active"
	StatusArchived Status = "archived"
	StatusDeleted  Status = "deleted"
)

// ModelSettings captures per-conversation completion defaults.
type ModelSettings struct {
	Model       string   `json:"model,omitempty"`
	Temperature *float64 `json:"temperature,omitempty"`
	MaxTokens   *int     `json:"max_tokens,omitempty"`
}

// Conversation is the aggregate root for a chat thread. MessageCount and
// TotalTokens are maintained by explicit deltas applied alongside message
// writes, never recomputed on the read path.
type Conversation struct {
	ID             uint
	PublicID       string
	UserID         uint
	PrincipalID    string
	Title          string
	Status         Status
	MessageCount   int64
	TotalTokens    int64
	LastActivityAt time.Time
	Settings       ModelSettings
	Metadata       map[string]string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// NewConversation creates an active conversation owned by the given user.
// publicID is caller-supplied so a conversation can be pre-created before
// streaming starts and the ID handed to the client immediately.
func NewConversation(publicID string, userID uint, principalID, title string, settings ModelSettings) *Conversation {
	return &Conversation{
		PublicID:       publicID,
		UserID:         userID,
		PrincipalID:    principalID,
		Title:          title,
		Status:         StatusActive,
		Settings:       settings,
		LastActivityAt: time.Now().UTC(),
	}
}

// IsActive reports whether the conversation accepts new messages.
func (c *Conversation) IsActive() bool {
	return c.Status == StatusActive
}

// Repository defines storage operations for conversations.
type Repository interface {
	Create(ctx context.Context, conv *Conversation) error
	FindByPublicID(ctx context.Context, publicID string) (*Conversation, error)
	// FindOwned folds the ownership check into the query so a foreign
	// conversation is indistinguishable from a missing one.
	FindOwned(ctx context.Context, publicID string, userID uint) (*Conversation, error)
	Update(ctx context.Context, conv *Conversation) error
	Delete(ctx context.Context, id uint) error
	ListByUser(ctx context.Context, userID uint, pagination *query.Pagination) ([]*Conversation, error)
	CountByUser(ctx context.Context, userID uint) (int64, error)
	// IncrementCounters applies signed deltas to message count and token
	// total and refreshes last activity in a single UPDATE. Zero rows
	// affected reports not-found.
	IncrementCounters(ctx context.Context, id uint, messageDelta, tokenDelta int64, lastActivity time.Time) error
	// SetCounters overwrites both counters absolutely, used by the replace
	// pipeline and the reconciliation sweep.
	SetCounters(ctx context.Context, id uint, messageCount, totalTokens int64, lastActivity time.Time) error
	ListActiveSince(ctx context.Context, since time.Time, limit int) ([]*Conversation, error)
}

// TxManager runs fn inside a storage transaction. Repository calls made with
// the context passed to fn join that transaction; an error from fn rolls the
// whole transaction back.
type TxManager interface {
	Transaction(ctx context.Context, fn func(ctx context.Context) error) error
}
