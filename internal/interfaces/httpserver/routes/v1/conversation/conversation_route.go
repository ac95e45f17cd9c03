package conversation

import (
	"github.com/gin-gonic/gin"

	"chat-server/services/chat-api/internal/interfaces/httpserver/handlers/conversationhandler"
)

// ConversationRoute registers conversation and message endpoints.
type ConversationRoute struct {
	handler *conversationhandler.ConversationHandler
}

func NewConversationRoute(handler *conversationhandler.ConversationHandler) *ConversationRoute {
	return &ConversationRoute{handler: handler}
}

func (route *ConversationRoute) RegisterRouter(router gin.IRouter) {
	conversations := router.Group("/conversations")
	conversations.GET("", route.handler.ListConversations)
	conversations.POST("", route.handler.CreateConversation)

	// The bulk route sits above the :conversationID wildcard on purpose.
	conversations.POST("/messages/bulk", route.handler.BulkCreateMessages)

	conversations.GET("/:conversationID", route.handler.GetConversation)
	conversations.PATCH("/:conversationID", route.handler.UpdateConversation)
	conversations.DELETE("/:conversationID", route.handler.DeleteConversation)

	conversations.GET("/:conversationID/messages", route.handler.GetMessages)
	conversations.PUT("/:conversationID/messages", route.handler.ReplaceMessages)
	conversations.GET("/:conversationID/messages/stats", route.handler.GetMessageStats)
	conversations.PATCH("/:conversationID/messages/:messageID", route.handler.UpdateMessage)
	conversations.DELETE("/:conversationID/messages/:messageID", route.handler.DeleteMessage)
}
