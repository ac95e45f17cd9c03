package middlewares

import (
	"fmt"
	"net"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"chat-server/services/chat-api/internal/infrastructure/metrics"
	"chat-server/services/chat-api/internal/infrastructure/ratelimit"
	"chat-server/services/chat-api/internal/utils/platformerrors"
)

// RateLimitMiddleware rejects requests over the per-principal quota. Limiter
// failures fail open; a slow Redis must not take the API down with it.
func RateLimitMiddleware(limiter ratelimit.Limiter, logger zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := rateKey(c)

		decision, err := limiter.Allow(c.Request.Context(), key)
		if err != nil {
			logger.Warn().Err(err).Str("key", key).Msg("rate limiter unavailable, allowing request")
			c.Next()
			return
		}

		if !decision.Allowed {
			metrics.RecordRateLimited("http")
			retryAfter := int(decision.RetryAfter.Seconds())
			if retryAfter < 1 {
				retryAfter = 1
			}
			c.Header("Retry-After", fmt.Sprintf("%d", retryAfter))
			c.JSON(http.StatusTooManyRequests, platformerrors.HTTPErrorResponse{
				Error: &platformerrors.HTTPErrorDetail{
					Message: "too many requests",
					Type:    "rate_limited_error",
				},
			})
			c.Abort()
			return
		}

		c.Next()
	}
}

func rateKey(c *gin.Context) string {
	if principal, ok := PrincipalFromContext(c); ok && principal.ID != "" {
		return "pid:" + principal.ID
	}
	ip := clientIP(c.ClientIP())
	if ip != "" {
		return "ip:" + ip
	}
	return "anonymous"
}

// Normalize IPv6-mapped IPv4 etc.
func clientIP(raw string) string {
	if raw == "" {
		return ""
	}
	if ip := net.ParseIP(raw); ip != nil {
		return ip.String()
	}
	return raw
}
