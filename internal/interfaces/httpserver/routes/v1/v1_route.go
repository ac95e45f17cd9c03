package v1

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"chat-server/services/chat-api/internal/config"
	"chat-server/services/chat-api/internal/interfaces/httpserver/routes/v1/chat"
	"chat-server/services/chat-api/internal/interfaces/httpserver/routes/v1/conversation"
)

type V1Route struct {
	chat         *chat.ChatRoute
	conversation *conversation.ConversationRoute
}

func NewV1Route(
	chat *chat.ChatRoute,
	conversation *conversation.ConversationRoute,
) *V1Route {
	return &V1Route{
		chat:         chat,
		conversation: conversation,
	}
}

func (v1Route *V1Route) RegisterRouter(router gin.IRouter) {
	v1Router := router.Group("/v1")
	v1Route.chat.RegisterRouter(v1Router)
	v1Route.conversation.RegisterRouter(v1Router)
}

// RegisterPublicRouter registers endpoints that do not require authentication
func (v1Route *V1Route) RegisterPublicRouter(router gin.IRouter) {
	v1Router := router.Group("/v1")
	v1Router.GET("/version", GetVersion)
	v1Router.GET("/healthz", GetHealthz)
	v1Router.GET("/readyz", GetReadyz)
}

// GetVersion returns the build version and the time the environment was last reloaded.
func GetVersion(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"version":         config.Version,
		"env_reloaded_at": config.GetEnvReloadedAt().Format("2006-01-02T15:04:05Z07:00"),
	})
}

func GetHealthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func GetReadyz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}
