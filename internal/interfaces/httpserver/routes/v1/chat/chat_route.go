package chat

import (
	"github.com/gin-gonic/gin"

	"chat-server/services/chat-api/internal/interfaces/httpserver/handlers/chathandler"
)

// ChatRoute registers the completion endpoint.
type ChatRoute struct {
	chatHandler *chathandler.ChatHandler
}

func NewChatRoute(chatHandler *chathandler.ChatHandler) *ChatRoute {
	return &ChatRoute{chatHandler: chatHandler}
}

func (route *ChatRoute) RegisterRouter(router gin.IRouter) {
	chatRouter := router.Group("/chat")
	chatRouter.POST("/completions", route.chatHandler.CreateChatCompletion)
}
