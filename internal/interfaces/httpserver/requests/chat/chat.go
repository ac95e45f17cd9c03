package chatrequests

import (
	"chat-server/services/chat-api/internal/domain/completion"
	"chat-server/services/chat-api/internal/domain/conversation"
)

// ChatCompletionRequest is the inbound completion payload. Conversation is an
// optional existing conversation ID; when empty a new conversation is created
// before streaming and returned in the X-Conversation-Id header.
type ChatCompletionRequest struct {
	Model        string        `json:"model,omitempty"`
	Messages     []ChatMessage `json:"messages" binding:"required"`
	Conversation string        `json:"conversation,omitempty"`
	Temperature  *float64      `json:"temperature,omitempty"`
	MaxTokens    *int          `json:"max_tokens,omitempty"`
	Stream       bool          `json:"stream,omitempty"`
}

// ChatMessage is one turn of the inbound payload.
type ChatMessage struct {
	Role    string `json:"role" binding:"required"`
	Content string `json:"content" binding:"required"`
}

// ToDomain maps the payload onto a completion request. Validation happens in
// the orchestrator, not here.
func (r *ChatCompletionRequest) ToDomain(defaultModel string) completion.Request {
	model := r.Model
	if model == "" {
		model = defaultModel
	}

	turns := make([]completion.Turn, 0, len(r.Messages))
	for _, msg := range r.Messages {
		turns = append(turns, completion.Turn{
			Role:    conversation.Role(msg.Role),
			Content: msg.Content,
		})
	}

	return completion.Request{
		ConversationPublicID: r.Conversation,
		Model:                model,
		Messages:             turns,
		Temperature:          r.Temperature,
		MaxTokens:            r.MaxTokens,
		Stream:               r.Stream,
	}
}
