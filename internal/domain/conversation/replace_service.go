package conversation

import (
	"context"
	"time"

	"chat-server/services/chat-api/internal/domain/tokenizer"
	"chat-server/services/chat-api/internal/utils/idgen"
	"chat-server/services/chat-api/internal/utils/platformerrors"
)

// ReplaceService swaps out the full message list of a conversation under one
// transaction, used by clients that sync local history to the server.
type ReplaceService struct {
	messages  MessageRepository
	convs     Repository
	tx        TxManager
	estimator tokenizer.Estimator
}

// NewReplaceService creates a new replace service
func NewReplaceService(messages MessageRepository, convs Repository, tx TxManager, estimator tokenizer.Estimator) *ReplaceService {
	return &ReplaceService{
		messages:  messages,
		convs:     convs,
		tx:        tx,
		estimator: estimator,
	}
}

// ReplaceItem is one incoming message of a replacement list. Timestamp is
// optional; when absent a synthetic strictly increasing timestamp is assigned
// so retrieval order equals input order.
type ReplaceItem struct {
	Role        Role
	Content     string
	Attachments []Attachment
	Completion  *CompletionMetadata
	Timestamp   *time.Time
}

// ReplaceMessages verifies ownership, then inside one transaction hard-deletes
// the existing messages, inserts the replacements, sets the message count to
// len(items) and recomputes the token total. Any failure rolls back the whole
// replacement.
func (s *ReplaceService) ReplaceMessages(ctx context.Context, conversationPublicID string, userID uint, items []ReplaceItem) (int, error) {
	conv, err := s.convs.FindOwned(ctx, conversationPublicID, userID)
	if err != nil {
		return 0, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "conversation not found")
	}

	now := time.Now().UTC()
	base := now.Add(-time.Duration(len(items)) * time.Millisecond)

	msgs := make([]*Message, 0, len(items))
	var totalTokens int64
	for i, item := range items {
		if err := ValidateRole(item.Role); err != nil {
			return 0, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeValidation, "invalid message role", err, "b9a8c7d6-e5f4-4a3b-9c2d-1e0f9a8b7c6d")
		}
		if err := ValidateContent(item.Content); err != nil {
			return 0, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeValidation, "invalid message content", err, "a7b6c5d4-e3f2-4109-8877-665544332211")
		}

		publicID, err := idgen.GenerateSecureID("msg", 16)
		if err != nil {
			return 0, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to generate message ID")
		}

		tokenCount := 0
		if item.Completion != nil && item.Completion.TokenCount != nil {
			tokenCount = *item.Completion.TokenCount
		} else {
			tokenCount = s.estimator.Estimate(item.Content)
		}
		totalTokens += int64(tokenCount)

		createdAt := base.Add(time.Duration(i) * time.Millisecond)
		if item.Timestamp != nil {
			createdAt = *item.Timestamp
		}

		msgs = append(msgs, &Message{
			PublicID:       publicID,
			ConversationID: conv.ID,
			UserID:         conv.UserID,
			PrincipalID:    conv.PrincipalID,
			Role:           item.Role,
			Content:        item.Content,
			TokenCount:     tokenCount,
			Attachments:    item.Attachments,
			Completion:     item.Completion,
			CreatedAt:      createdAt,
		})
	}

	err = s.tx.Transaction(ctx, func(txCtx context.Context) error {
		if err := s.messages.HardDeleteByConversation(txCtx, conv.ID); err != nil {
			return err
		}
		if len(msgs) > 0 {
			if err := s.messages.CreateBatch(txCtx, msgs); err != nil {
				return err
			}
		}
		return s.convs.SetCounters(txCtx, conv.ID, int64(len(msgs)), totalTokens, now)
	})
	if err != nil {
		return 0, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to replace messages")
	}

	return len(msgs), nil
}
