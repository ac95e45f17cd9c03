package conversationresponses

import (
	"testing"
	"time"

	"chat-server/services/chat-api/internal/domain/conversation"
)

func TestNewMessageListResponseCarriesConversationSummary(t *testing.T) {
	lastActivity := time.Now().UTC()
	conv := &conversation.Conversation{
		PublicID:       "conv_summary123456",
		Title:          "Weekend plans",
		MessageCount:   4,
		LastActivityAt: lastActivity,
		Settings:       conversation.ModelSettings{Model: "gpt-4o-mini"},
	}
	cursor := "b3BhcXVl"
	page := &conversation.MessagePage{
		Messages: []*conversation.Message{
			{PublicID: "msg_a", Role: conversation.RoleUser, Content: "hi", TokenCount: 1},
			{PublicID: "msg_b", Role: conversation.RoleAssistant, Content: "hello", TokenCount: 2},
		},
		NextCursor: &cursor,
		TotalCount: 4,
	}

	resp := NewMessageListResponse(conv, page)

	if resp.Conversation.ID != "conv_summary123456" {
		t.Errorf("conversation id = %q, want %q", resp.Conversation.ID, "conv_summary123456")
	}
	if resp.Conversation.Title != "Weekend plans" {
		t.Errorf("title = %q, want %q", resp.Conversation.Title, "Weekend plans")
	}
	if resp.Conversation.MessageCount != 4 {
		t.Errorf("message count = %d, want 4", resp.Conversation.MessageCount)
	}
	if !resp.Conversation.LastActivityAt.Equal(lastActivity) {
		t.Errorf("last activity = %v, want %v", resp.Conversation.LastActivityAt, lastActivity)
	}
	if resp.Conversation.Model != "gpt-4o-mini" {
		t.Errorf("model = %q, want %q", resp.Conversation.Model, "gpt-4o-mini")
	}

	if len(resp.Data) != 2 {
		t.Fatalf("data length = %d, want 2", len(resp.Data))
	}
	if !resp.HasMore || resp.NextCursor == nil || *resp.NextCursor != cursor {
		t.Errorf("cursor fields not carried: has_more=%v cursor=%v", resp.HasMore, resp.NextCursor)
	}
	if resp.Total != 4 {
		t.Errorf("total = %d, want 4", resp.Total)
	}
}
