package middlewares

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"chat-server/services/chat-api/internal/domain"
	authvalidator "chat-server/services/chat-api/internal/infrastructure/auth"
	"chat-server/services/chat-api/internal/infrastructure/metrics"
	"chat-server/services/chat-api/internal/utils/platformerrors"
)

const principalContextKey = "principal"

// AuthMiddleware validates bearer tokens and attaches the resulting principal
// to the request context. Gateway-injected identity headers are accepted as an
// API key fallback when no token is present.
func AuthMiddleware(validator *authvalidator.JWTValidator, logger zerolog.Logger, fallbackIssuer string) gin.HandlerFunc {
	return func(c *gin.Context) {
		principal, ok, err := principalFromJWT(c, validator)
		if err != nil && !errors.Is(err, http.ErrNoCookie) {
			logger.Error().Err(err).Msg("jwt validation failed")
			metrics.RecordAuthAttempt("jwt", "failure")
			platformerrors.WriteUnauthorized(c, "unauthorized")
			c.Abort()
			return
		}

		if !ok {
			principal, ok = principalFromGatewayHeaders(c.Request.Header, fallbackIssuer)
		}

		if !ok {
			logger.Warn().
				Str("path", c.FullPath()).
				Str("method", c.Request.Method).
				Msg("unauthenticated request")
			metrics.RecordAuthAttempt("none", "failure")
			platformerrors.WriteUnauthorized(c, "authentication required")
			c.Abort()
			return
		}

		metrics.RecordAuthAttempt(string(principal.AuthMethod), "success")
		setPrincipal(c, principal)
		c.Next()
	}
}

// PrincipalFromContext returns the authenticated principal, if any.
func PrincipalFromContext(c *gin.Context) (domain.Principal, bool) {
	val, ok := c.Get(principalContextKey)
	if !ok {
		return domain.Principal{}, false
	}
	principal, ok := val.(domain.Principal)
	return principal, ok
}

func setPrincipal(c *gin.Context, principal domain.Principal) {
	c.Set(principalContextKey, principal)
	c.Writer.Header().Set("X-Principal-Id", principal.ID)
	c.Writer.Header().Set("X-Auth-Method", string(principal.AuthMethod))
}

func principalFromJWT(c *gin.Context, validator *authvalidator.JWTValidator) (domain.Principal, bool, error) {
	if validator == nil {
		return domain.Principal{}, false, http.ErrNoCookie
	}

	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		return domain.Principal{}, false, http.ErrNoCookie
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return domain.Principal{}, false, http.ErrNoCookie
	}
	token := strings.TrimSpace(parts[1])
	if token == "" {
		return domain.Principal{}, false, http.ErrNoCookie
	}

	claims, err := validator.Validate(c.Request.Context(), token)
	if err != nil {
		return domain.Principal{}, false, err
	}

	return *claims.ToPrincipal(), true, nil
}

func principalFromGatewayHeaders(headers http.Header, fallbackIssuer string) (domain.Principal, bool) {
	subject := strings.TrimSpace(headers.Get("X-User-Subject"))
	authMethod := strings.TrimSpace(headers.Get("X-Auth-Method"))

	if subject == "" || !strings.EqualFold(authMethod, string(domain.AuthMethodAPIKey)) {
		return domain.Principal{}, false
	}

	return domain.Principal{
		ID:         fallbackIssuer + "|" + subject,
		AuthMethod: domain.AuthMethodAPIKey,
		Subject:    subject,
		Issuer:     fallbackIssuer,
		Username:   strings.TrimSpace(headers.Get("X-User-Username")),
		Email:      strings.TrimSpace(headers.Get("X-User-Email")),
		Scopes:     parseScopes(headers.Get("X-Scopes")),
	}, true
}

func parseScopes(raw string) []string {
	if raw == "" {
		return nil
	}
	var out []string
	for _, item := range strings.Fields(raw) {
		if item != "" {
			out = append(out, item)
		}
	}
	return out
}
