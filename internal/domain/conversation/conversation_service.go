package conversation

import (
	"context"
	"time"

	"chat-server/services/chat-api/internal/domain/query"
	"chat-server/services/chat-api/internal/utils/idgen"
	"chat-server/services/chat-api/internal/utils/platformerrors"
)

// Service handles business logic for conversations.
type Service struct {
	repo Repository
}

// NewService creates a new conversation service
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// CreateConversationInput represents the input for creating a conversation.
// PublicID may be supplied by the caller for pre-creation; when empty a new
// conv_ ID is generated.
type CreateConversationInput struct {
	PublicID    string
	UserID      uint
	PrincipalID string
	Title       string
	Settings    ModelSettings
	Metadata    map[string]string
}

// CreateConversation creates a conversation after validating the input.
func (s *Service) CreateConversation(ctx context.Context, input CreateConversationInput) (*Conversation, error) {
	if input.Title == "" {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeValidation, "conversation title must not be empty", nil, "7f3a9c2e-1b4d-4e8f-a6c7-d9e0f1a2b3c4")
	}
	if err := ValidateSettings(input.Settings); err != nil {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeValidation, "invalid model settings", err, "2c5e8a1f-9d3b-4c6e-b8a0-1f2e3d4c5b6a")
	}

	publicID := input.PublicID
	if publicID == "" {
		var err error
		publicID, err = idgen.GenerateSecureID("conv", 16)
		if err != nil {
			return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to generate conversation ID")
		}
	} else if err := ValidateConversationID(publicID); err != nil {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeValidation, "invalid conversation ID", err, "9b0d6f4a-2e7c-4a1b-8d5e-3c4f5a6b7c8d")
	}

	conv := NewConversation(publicID, input.UserID, input.PrincipalID, DeriveTitle(input.Title), input.Settings)
	conv.Metadata = input.Metadata

	if err := s.repo.Create(ctx, conv); err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to create conversation")
	}

	return conv, nil
}

// GetOwnedConversation retrieves a conversation scoped to the owning user.
// A conversation that exists but belongs to someone else reports not-found.
func (s *Service) GetOwnedConversation(ctx context.Context, publicID string, userID uint) (*Conversation, error) {
	if err := ValidateConversationID(publicID); err != nil {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeValidation, "invalid conversation ID", err, "e1f2a3b4-c5d6-4e7f-8a9b-0c1d2e3f4a5b")
	}

	conv, err := s.repo.FindOwned(ctx, publicID, userID)
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "conversation not found")
	}

	return conv, nil
}

// ListConversations returns one page of the user's conversations ordered by
// last activity descending, plus the total count. The cursor excludes the
// boundary timestamp itself.
func (s *Service) ListConversations(ctx context.Context, userID uint, pagination *query.Pagination) ([]*Conversation, int64, error) {
	conversations, err := s.repo.ListByUser(ctx, userID, pagination)
	if err != nil {
		return nil, 0, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to list conversations")
	}

	total, err := s.repo.CountByUser(ctx, userID)
	if err != nil {
		return nil, 0, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to count conversations")
	}

	return conversations, total, nil
}

// UpdateConversationInput represents updatable conversation fields.
type UpdateConversationInput struct {
	Title    *string
	Metadata map[string]string
	Settings *ModelSettings
}

// UpdateConversation updates title, metadata or settings after verifying
// ownership.
func (s *Service) UpdateConversation(ctx context.Context, publicID string, userID uint, input UpdateConversationInput) (*Conversation, error) {
	conv, err := s.GetOwnedConversation(ctx, publicID, userID)
	if err != nil {
		return nil, err
	}

	if input.Title != nil {
		if *input.Title == "" {
			return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeValidation, "conversation title must not be empty", nil, "4a5b6c7d-8e9f-4a0b-9c1d-2e3f4a5b6c7d")
		}
		conv.Title = DeriveTitle(*input.Title)
	}
	if input.Metadata != nil {
		conv.Metadata = input.Metadata
	}
	if input.Settings != nil {
		if err := ValidateSettings(*input.Settings); err != nil {
			return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeValidation, "invalid model settings", err, "8d7c6b5a-4f3e-4d2c-b1a0-9f8e7d6c5b4a")
		}
		conv.Settings = *input.Settings
	}

	if err := s.repo.Update(ctx, conv); err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to update conversation")
	}

	return conv, nil
}

// DeleteConversation removes a conversation after verifying ownership.
func (s *Service) DeleteConversation(ctx context.Context, publicID string, userID uint) error {
	conv, err := s.GetOwnedConversation(ctx, publicID, userID)
	if err != nil {
		return err
	}

	if err := s.repo.Delete(ctx, conv.ID); err != nil {
		return platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to delete conversation")
	}
	return nil
}

// RecordActivity applies counter deltas and refreshes last activity.
func (s *Service) RecordActivity(ctx context.Context, conversationID uint, messageDelta, tokenDelta int64) error {
	if err := s.repo.IncrementCounters(ctx, conversationID, messageDelta, tokenDelta, time.Now().UTC()); err != nil {
		return platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to update conversation counters")
	}
	return nil
}
