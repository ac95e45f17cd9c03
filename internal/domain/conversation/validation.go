package conversation

import (
	"fmt"
	"strings"

	"chat-server/services/chat-api/internal/utils/idgen"
	"chat-server/services/chat-api/internal/utils/stringutils"
)

const (
	// MaxContentLength is the single authoritative bound on message content,
	// enforced uniformly at every ingestion path.
	MaxContentLength = 16000

	// MaxMessagesPerRequest bounds the message list of a completion request.
	MaxMessagesPerRequest = 50

	// MaxTitleLength is the visible-character budget for derived titles.
	MaxTitleLength = 50

	MinTemperature = 0.0
	MaxTemperature = 2.0
	MaxTokenBudget = 8192

	DefaultConversationPageSize = 20
	MaxConversationPageSize     = 100
	DefaultMessagePageSize      = 50
	MaxMessagePageSize          = 100
)

// ValidateRole checks membership in the closed role set.
func ValidateRole(role Role) error {
	if !role.IsValid() {
		return fmt.Errorf("invalid role %q, must be one of system, user, assistant", role)
	}
	return nil
}

// ValidateContent enforces the 1..MaxContentLength bound on message content.
func ValidateContent(content string) error {
	if strings.TrimSpace(content) == "" {
		return fmt.Errorf("message content must not be empty")
	}
	if len(content) > MaxContentLength {
		return fmt.Errorf("message content exceeds maximum length of %d characters", MaxContentLength)
	}
	return nil
}

// ValidateSettings bounds model settings supplied by the client.
func ValidateSettings(settings ModelSettings) error {
	if settings.Temperature != nil {
		if *settings.Temperature < MinTemperature || *settings.Temperature > MaxTemperature {
			return fmt.Errorf("temperature must be between %g and %g", MinTemperature, MaxTemperature)
		}
	}
	if settings.MaxTokens != nil {
		if *settings.MaxTokens < 1 || *settings.MaxTokens > MaxTokenBudget {
			return fmt.Errorf("max_tokens must be between 1 and %d", MaxTokenBudget)
		}
	}
	return nil
}

// ValidateConversationID checks the conv_ prefixed ID format.
func ValidateConversationID(publicID string) error {
	if !idgen.ValidateIDFormat(publicID, "conv") {
		return fmt.Errorf("invalid conversation ID format")
	}
	return nil
}

// ValidateMessageID checks the msg_ prefixed ID format.
func ValidateMessageID(publicID string) error {
	if !idgen.ValidateIDFormat(publicID, "msg") {
		return fmt.Errorf("invalid message ID format")
	}
	return nil
}

// DeriveTitle builds a conversation title from the first user message,
// sanitized and truncated to MaxTitleLength characters with an ellipsis.
func DeriveTitle(content string) string {
	title := stringutils.GenerateTitle(content, MaxTitleLength)
	if title == "" {
		return "New Conversation"
	}
	return title
}
