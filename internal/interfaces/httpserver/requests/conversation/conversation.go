package conversationrequests

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"chat-server/services/chat-api/internal/domain/conversation"
)

// MessageContent accepts either a plain string or an array of typed content
// parts. Structured parts are flattened to their text on decode, so the rest
// of the pipeline only ever sees a flat string.
type MessageContent string

func (m *MessageContent) UnmarshalJSON(data []byte) error {
	var plain string
	if err := json.Unmarshal(data, &plain); err == nil {
		*m = MessageContent(plain)
		return nil
	}

	var parts []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	}
	if err := json.Unmarshal(data, &parts); err != nil {
		return fmt.Errorf("content must be a string or an array of content parts")
	}

	texts := make([]string, 0, len(parts))
	for _, part := range parts {
		if part.Text != "" {
			texts = append(texts, part.Text)
		}
	}
	*m = MessageContent(strings.Join(texts, "\n"))
	return nil
}

// CreateConversationRequest creates a conversation up front, optionally with
// a caller-supplied ID so a client can reserve the ID before first use.
type CreateConversationRequest struct {
	ID       *string                     `json:"id,omitempty"`
	Title    string                      `json:"title" binding:"required"`
	Model    *string                     `json:"model,omitempty"`
	Settings *conversation.ModelSettings `json:"settings,omitempty"`
	Metadata map[string]string           `json:"metadata,omitempty"`
}

// UpdateConversationRequest updates mutable conversation fields.
type UpdateConversationRequest struct {
	Title    *string                     `json:"title,omitempty"`
	Metadata map[string]string           `json:"metadata,omitempty"`
	Settings *conversation.ModelSettings `json:"settings,omitempty"`
}

// MessagePayload is one message in a create, replace or bulk request.
type MessagePayload struct {
	Role        string                           `json:"role" binding:"required"`
	Content     MessageContent                   `json:"content" binding:"required"`
	Attachments []conversation.Attachment        `json:"attachments,omitempty"`
	Completion  *conversation.CompletionMetadata `json:"completion,omitempty"`
	Timestamp   *time.Time                       `json:"timestamp,omitempty"`
}

// ReplaceMessagesRequest replaces the full message list of a conversation.
type ReplaceMessagesRequest struct {
	Messages []MessagePayload `json:"messages"`
}

// UpdateMessageRequest edits a single message's content.
type UpdateMessageRequest struct {
	Content     string                    `json:"content" binding:"required"`
	Attachments []conversation.Attachment `json:"attachments,omitempty"`
}

// BulkMessageItem targets one conversation in a bulk import.
type BulkMessageItem struct {
	ConversationID string         `json:"conversation_id" binding:"required"`
	Message        MessagePayload `json:"message" binding:"required"`
}

// BulkCreateMessagesRequest imports messages across conversations.
type BulkCreateMessagesRequest struct {
	Items []BulkMessageItem `json:"items" binding:"required"`
}

// ToInput converts a payload into a domain message input.
func (p *MessagePayload) ToInput() conversation.CreateMessageInput {
	return conversation.CreateMessageInput{
		Role:        conversation.Role(p.Role),
		Content:     string(p.Content),
		Attachments: p.Attachments,
		Completion:  p.Completion,
	}
}

// ToReplaceItem converts a payload into a replacement item.
func (p *MessagePayload) ToReplaceItem() conversation.ReplaceItem {
	return conversation.ReplaceItem{
		Role:        conversation.Role(p.Role),
		Content:     string(p.Content),
		Attachments: p.Attachments,
		Completion:  p.Completion,
		Timestamp:   p.Timestamp,
	}
}
