package conversationresponses

import (
	"time"

	"chat-server/services/chat-api/internal/domain/conversation"
)

// ConversationResponse is the serialized conversation.
type ConversationResponse struct {
	ID             string                      `json:"id"`
	Object         string                      `json:"object"`
	Title          string                      `json:"title"`
	Status         string                      `json:"status"`
	MessageCount   int64                       `json:"message_count"`
	TotalTokens    int64                       `json:"total_tokens"`
	LastActivityAt time.Time                   `json:"last_activity_at"`
	Settings       *conversation.ModelSettings `json:"settings,omitempty"`
	Metadata       map[string]string           `json:"metadata,omitempty"`
	CreatedAt      int64                       `json:"created_at"`
}

// ConversationListResponse is a cursor page of conversations.
type ConversationListResponse struct {
	Object     string                 `json:"object"`
	Data       []ConversationResponse `json:"data"`
	HasMore    bool                   `json:"has_more"`
	NextCursor *string                `json:"next_cursor,omitempty"`
	Total      int64                  `json:"total"`
}

// ConversationDeletedResponse confirms a deletion.
type ConversationDeletedResponse struct {
	ID      string `json:"id"`
	Object  string `json:"object"`
	Deleted bool   `json:"deleted"`
}

// MessageResponse is the serialized message.
type MessageResponse struct {
	ID          string                           `json:"id"`
	Object      string                           `json:"object"`
	Role        string                           `json:"role"`
	Content     string                           `json:"content"`
	TokenCount  int                              `json:"token_count"`
	Edited      bool                             `json:"edited"`
	Attachments []conversation.Attachment        `json:"attachments,omitempty"`
	Completion  *conversation.CompletionMetadata `json:"completion,omitempty"`
	CreatedAt   int64                            `json:"created_at"`
}

// MessageListConversation is the conversation summary returned alongside its
// message page.
type MessageListConversation struct {
	ID             string    `json:"id"`
	Title          string    `json:"title"`
	MessageCount   int64     `json:"message_count"`
	LastActivityAt time.Time `json:"last_activity_at"`
	Model          string    `json:"model,omitempty"`
}

// MessageListResponse is a cursor page of messages in chronological order,
// together with the owning conversation's summary.
type MessageListResponse struct {
	Object       string                  `json:"object"`
	Conversation MessageListConversation `json:"conversation"`
	Data         []MessageResponse       `json:"data"`
	HasMore      bool                    `json:"has_more"`
	NextCursor   *string                 `json:"next_cursor,omitempty"`
	Total        int64                   `json:"total"`
}

// MessageDeletedResponse confirms a message deletion.
type MessageDeletedResponse struct {
	ID      string `json:"id"`
	Object  string `json:"object"`
	Deleted bool   `json:"deleted"`
}

// ReplaceMessagesResponse reports the replacement outcome.
type ReplaceMessagesResponse struct {
	Object   string `json:"object"`
	Replaced int    `json:"replaced"`
}

// BulkCreateResponse reports a bulk import outcome.
type BulkCreateResponse struct {
	Object  string            `json:"object"`
	Created int               `json:"created"`
	Skipped int               `json:"skipped"`
	Data    []MessageResponse `json:"data"`
}

// MessageStatsResponse aggregates live messages of a conversation.
type MessageStatsResponse struct {
	Object         string     `json:"object"`
	MessageCount   int64      `json:"message_count"`
	TotalTokens    int64      `json:"total_tokens"`
	FirstMessageAt *time.Time `json:"first_message_at,omitempty"`
	LastMessageAt  *time.Time `json:"last_message_at,omitempty"`
}

// NewConversationResponse creates a response from a domain conversation
func NewConversationResponse(conv *conversation.Conversation) *ConversationResponse {
	resp := &ConversationResponse{
		ID:             conv.PublicID,
		Object:         "conversation",
		Title:          conv.Title,
		Status:         string(conv.Status),
		MessageCount:   conv.MessageCount,
		TotalTokens:    conv.TotalTokens,
		LastActivityAt: conv.LastActivityAt,
		Metadata:       conv.Metadata,
		CreatedAt:      conv.CreatedAt.Unix(),
	}
	if conv.Settings.Model != "" || conv.Settings.Temperature != nil || conv.Settings.MaxTokens != nil {
		settings := conv.Settings
		resp.Settings = &settings
	}
	return resp
}

// NewConversationListResponse creates a conversation list response
func NewConversationListResponse(conversations []*conversation.Conversation, nextCursor *string, total int64) *ConversationListResponse {
	data := make([]ConversationResponse, 0, len(conversations))
	for _, conv := range conversations {
		if conv == nil {
			continue
		}
		data = append(data, *NewConversationResponse(conv))
	}

	return &ConversationListResponse{
		Object:     "list",
		Data:       data,
		HasMore:    nextCursor != nil,
		NextCursor: nextCursor,
		Total:      total,
	}
}

// NewMessageResponse creates a response from a domain message
func NewMessageResponse(msg *conversation.Message) *MessageResponse {
	return &MessageResponse{
		ID:          msg.PublicID,
		Object:      "message",
		Role:        string(msg.Role),
		Content:     msg.Content,
		TokenCount:  msg.TokenCount,
		Edited:      msg.Edited,
		Attachments: msg.Attachments,
		Completion:  msg.Completion,
		CreatedAt:   msg.CreatedAt.Unix(),
	}
}

// NewMessageListResponse creates a message list response
func NewMessageListResponse(conv *conversation.Conversation, page *conversation.MessagePage) *MessageListResponse {
	data := make([]MessageResponse, 0, len(page.Messages))
	for _, msg := range page.Messages {
		if msg == nil {
			continue
		}
		data = append(data, *NewMessageResponse(msg))
	}

	return &MessageListResponse{
		Object: "list",
		Conversation: MessageListConversation{
			ID:             conv.PublicID,
			Title:          conv.Title,
			MessageCount:   conv.MessageCount,
			LastActivityAt: conv.LastActivityAt,
			Model:          conv.Settings.Model,
		},
		Data:       data,
		HasMore:    page.NextCursor != nil,
		NextCursor: page.NextCursor,
		Total:      page.TotalCount,
	}
}

// NewMessageStatsResponse creates a stats response
func NewMessageStatsResponse(stats *conversation.MessageStats) *MessageStatsResponse {
	return &MessageStatsResponse{
		Object:         "conversation.stats",
		MessageCount:   stats.MessageCount,
		TotalTokens:    stats.TotalTokens,
		FirstMessageAt: stats.FirstMessageAt,
		LastMessageAt:  stats.LastMessageAt,
	}
}

// NewBulkCreateResponse creates a bulk import response
func NewBulkCreateResponse(result *conversation.BulkResult) *BulkCreateResponse {
	data := make([]MessageResponse, 0, len(result.Messages))
	for _, msg := range result.Messages {
		if msg == nil {
			continue
		}
		data = append(data, *NewMessageResponse(msg))
	}
	return &BulkCreateResponse{
		Object:  "list",
		Created: result.Created,
		Skipped: result.Skipped,
		Data:    data,
	}
}
