package completion

import (
	"context"
	"strings"

	"chat-server/services/chat-api/internal/utils/platformerrors"
)

// ClassifyProviderError maps an upstream failure onto the error taxonomy by
// sniffing the message text. OpenAI-compatible providers disagree on
// structured error codes, so the text is the only portable signal.
func ClassifyProviderError(ctx context.Context, err error) *platformerrors.PlatformError {
	if err == nil {
		return nil
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "api key") ||
		strings.Contains(msg, "invalid_api_key") ||
		strings.Contains(msg, "unauthorized") ||
		strings.Contains(msg, "authentication"):
		return platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeUnauthorized,
			"provider rejected credentials", err, "1a2b3c4d-5e6f-4a7b-8c9d-0e1f2a3b4c5e")
	case strings.Contains(msg, "quota") ||
		strings.Contains(msg, "rate limit") ||
		strings.Contains(msg, "rate_limit") ||
		strings.Contains(msg, "too many requests"):
		return platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeRateLimited,
			"provider quota exceeded", err, "2b3c4d5e-6f7a-4b8c-9d0e-1f2a3b4c5d6f")
	case strings.Contains(msg, "content policy") ||
		strings.Contains(msg, "content_policy") ||
		strings.Contains(msg, "content_filter") ||
		strings.Contains(msg, "safety"):
		return platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeValidation,
			"request rejected by provider content policy", err, "3c4d5e6f-7a8b-4c9d-8e1f-2a3b4c5d6e7a")
	default:
		return platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeExternal,
			"provider request failed", err, "4d5e6f7a-8b9c-4d0e-9f2a-3b4c5d6e7f8b")
	}
}
