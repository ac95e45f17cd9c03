package conversation

import (
	"context"
	"time"

	"chat-server/services/chat-api/internal/domain/query"
	"chat-server/services/chat-api/internal/domain/tokenizer"
	"chat-server/services/chat-api/internal/utils/idgen"
	"chat-server/services/chat-api/internal/utils/platformerrors"
)

// MessageService handles message CRUD while keeping the owning conversation's
// counters in lockstep. Every write that touches a message also touches the
// conversation row, inside one transaction.
type MessageService struct {
	messages  MessageRepository
	convs     Repository
	tx        TxManager
	estimator tokenizer.Estimator
}

// NewMessageService creates a new message service
func NewMessageService(messages MessageRepository, convs Repository, tx TxManager, estimator tokenizer.Estimator) *MessageService {
	return &MessageService{
		messages:  messages,
		convs:     convs,
		tx:        tx,
		estimator: estimator,
	}
}

// CreateMessageInput represents the input for appending a message.
type CreateMessageInput struct {
	Role        Role
	Content     string
	Attachments []Attachment
	Completion  *CompletionMetadata
}

// buildMessage validates the input and assembles an unsaved message. The
// token count comes from completion metadata when present, otherwise the
// estimator.
func (s *MessageService) buildMessage(ctx context.Context, conv *Conversation, input CreateMessageInput) (*Message, error) {
	if err := ValidateRole(input.Role); err != nil {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeValidation, "invalid message role", err, "f0e1d2c3-b4a5-4968-8776-655443322110")
	}
	if err := ValidateContent(input.Content); err != nil {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeValidation, "invalid message content", err, "0a1b2c3d-4e5f-4a6b-8c7d-9e0f1a2b3c4d")
	}

	publicID, err := idgen.GenerateSecureID("msg", 16)
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to generate message ID")
	}

	tokenCount := 0
	if input.Completion != nil && input.Completion.TokenCount != nil {
		tokenCount = *input.Completion.TokenCount
	} else {
		tokenCount = s.estimator.Estimate(input.Content)
	}

	return &Message{
		PublicID:       publicID,
		ConversationID: conv.ID,
		UserID:         conv.UserID,
		PrincipalID:    conv.PrincipalID,
		Role:           input.Role,
		Content:        input.Content,
		TokenCount:     tokenCount,
		Attachments:    input.Attachments,
		Completion:     input.Completion,
	}, nil
}

// CreateMessage appends a message and increments the conversation counters in
// a single transaction.
func (s *MessageService) CreateMessage(ctx context.Context, conv *Conversation, input CreateMessageInput) (*Message, error) {
	msg, err := s.buildMessage(ctx, conv, input)
	if err != nil {
		return nil, err
	}

	err = s.tx.Transaction(ctx, func(txCtx context.Context) error {
		if err := s.messages.Create(txCtx, msg); err != nil {
			return err
		}
		return s.convs.IncrementCounters(txCtx, conv.ID, 1, int64(msg.TokenCount), time.Now().UTC())
	})
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to create message")
	}

	return msg, nil
}

// AppendTurns appends several messages to one conversation with a single
// grouped counter update. Unlike bulk import, any invalid input fails the
// whole append.
func (s *MessageService) AppendTurns(ctx context.Context, conv *Conversation, inputs []CreateMessageInput) ([]*Message, error) {
	if len(inputs) == 0 {
		return nil, nil
	}

	msgs := make([]*Message, 0, len(inputs))
	var tokens int64
	for _, input := range inputs {
		msg, err := s.buildMessage(ctx, conv, input)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, msg)
		tokens += int64(msg.TokenCount)
	}

	err := s.tx.Transaction(ctx, func(txCtx context.Context) error {
		if err := s.messages.CreateBatch(txCtx, msgs); err != nil {
			return err
		}
		return s.convs.IncrementCounters(txCtx, conv.ID, int64(len(msgs)), tokens, time.Now().UTC())
	})
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to append messages")
	}

	return msgs, nil
}

// GetMessages returns one page of live messages in ascending creation order
// together with the live total. The repository fetches newest-first with a
// strictly-older-than cursor; the page is reversed before return. NextCursor
// is nil when the page was not full.
func (s *MessageService) GetMessages(ctx context.Context, conv *Conversation, pagination *query.Pagination) (*MessagePage, error) {
	if pagination == nil {
		pagination = &query.Pagination{}
	}
	limit := pagination.LimitOrDefault(DefaultMessagePageSize, MaxMessagePageSize)

	msgs, err := s.messages.ListByConversation(ctx, conv.ID, pagination)
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to list messages")
	}

	total, err := s.messages.CountLive(ctx, conv.ID)
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to count messages")
	}

	var nextCursor *string
	if len(msgs) == limit && limit > 0 {
		// msgs is newest-first here, so the oldest entry is last.
		cursor := query.EncodeCursor(msgs[len(msgs)-1].CreatedAt)
		nextCursor = &cursor
	}

	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}

	return &MessagePage{Messages: msgs, TotalCount: total, NextCursor: nextCursor}, nil
}

// UpdateMessage replaces the content of a message, recomputes its token count
// and applies the signed token delta to the conversation total. The message
// count is unchanged.
func (s *MessageService) UpdateMessage(ctx context.Context, conv *Conversation, messagePublicID, newContent string, newAttachments []Attachment) (*Message, error) {
	if err := ValidateMessageID(messagePublicID); err != nil {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeValidation, "invalid message ID", err, "5d4c3b2a-1f0e-4d9c-8b7a-6f5e4d3c2b1a")
	}
	if err := ValidateContent(newContent); err != nil {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeValidation, "invalid message content", err, "3e2d1c0b-9a8f-4e7d-b6c5-4a3b2c1d0e9f")
	}

	msg, err := s.messages.FindByPublicID(ctx, conv.ID, messagePublicID)
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "message not found")
	}

	newTokens := s.estimator.Estimate(newContent)
	delta := int64(newTokens - msg.TokenCount)

	msg.Content = newContent
	msg.TokenCount = newTokens
	msg.Edited = true
	if newAttachments != nil {
		msg.Attachments = newAttachments
	}

	err = s.tx.Transaction(ctx, func(txCtx context.Context) error {
		if err := s.messages.Update(txCtx, msg); err != nil {
			return err
		}
		return s.convs.IncrementCounters(txCtx, conv.ID, 0, delta, time.Now().UTC())
	})
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to update message")
	}

	return msg, nil
}

// DeleteMessage soft-deletes a message and decrements the conversation's
// message count and token total in one transaction.
func (s *MessageService) DeleteMessage(ctx context.Context, conv *Conversation, messagePublicID string) error {
	if err := ValidateMessageID(messagePublicID); err != nil {
		return platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeValidation, "invalid message ID", err, "6c5b4a39-2817-4f6e-9d0c-1b2a3c4d5e6f")
	}

	msg, err := s.messages.FindByPublicID(ctx, conv.ID, messagePublicID)
	if err != nil {
		return platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "message not found")
	}

	err = s.tx.Transaction(ctx, func(txCtx context.Context) error {
		if err := s.messages.SoftDelete(txCtx, msg.ID); err != nil {
			return err
		}
		return s.convs.IncrementCounters(txCtx, conv.ID, -1, -int64(msg.TokenCount), time.Now().UTC())
	})
	if err != nil {
		return platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to delete message")
	}

	return nil
}

// BulkItem is one entry of a bulk import, addressed to a conversation the
// caller owns.
type BulkItem struct {
	ConversationPublicID string
	Input                CreateMessageInput
}

// BulkCreateMessages imports many messages at once. Invalid items are skipped
// and counted rather than failing the batch. Counter deltas are grouped so
// each touched conversation receives exactly one update.
func (s *MessageService) BulkCreateMessages(ctx context.Context, userID uint, items []BulkItem) (*BulkResult, error) {
	type convDelta struct {
		conv     *Conversation
		messages []*Message
		tokens   int64
	}

	result := &BulkResult{}
	deltas := make(map[string]*convDelta)
	convCache := make(map[string]*Conversation)

	for _, item := range items {
		conv, ok := convCache[item.ConversationPublicID]
		if !ok {
			found, err := s.convs.FindOwned(ctx, item.ConversationPublicID, userID)
			if err != nil {
				result.Skipped++
				continue
			}
			conv = found
			convCache[item.ConversationPublicID] = conv
		}

		msg, err := s.buildMessage(ctx, conv, item.Input)
		if err != nil {
			result.Skipped++
			continue
		}

		d, ok := deltas[conv.PublicID]
		if !ok {
			d = &convDelta{conv: conv}
			deltas[conv.PublicID] = d
		}
		d.messages = append(d.messages, msg)
		d.tokens += int64(msg.TokenCount)
	}

	if len(deltas) == 0 {
		return result, nil
	}

	err := s.tx.Transaction(ctx, func(txCtx context.Context) error {
		for _, d := range deltas {
			if err := s.messages.CreateBatch(txCtx, d.messages); err != nil {
				return err
			}
			if err := s.convs.IncrementCounters(txCtx, d.conv.ID, int64(len(d.messages)), d.tokens, time.Now().UTC()); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to bulk create messages")
	}

	for _, d := range deltas {
		result.Created += len(d.messages)
		result.Messages = append(result.Messages, d.messages...)
	}

	return result, nil
}

// GetMessageStats aggregates over the conversation's live messages.
func (s *MessageService) GetMessageStats(ctx context.Context, conv *Conversation) (*MessageStats, error) {
	stats, err := s.messages.Stats(ctx, conv.ID)
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to compute message stats")
	}
	return stats, nil
}

// GetMessagesIncludingDeleted returns every message row of a conversation,
// soft-deleted included. Internal use only.
func (s *MessageService) GetMessagesIncludingDeleted(ctx context.Context, conv *Conversation) ([]*Message, error) {
	msgs, err := s.messages.ListIncludingDeleted(ctx, conv.ID)
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to list messages")
	}
	return msgs, nil
}
