// Package conversationhandler serves the conversation and message endpoints.
// Every route resolves the caller's user row first; lookups are scoped to that
// user, so foreign conversations surface as plain not-found responses.
package conversationhandler

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"chat-server/services/chat-api/internal/domain"
	"chat-server/services/chat-api/internal/domain/conversation"
	"chat-server/services/chat-api/internal/domain/query"
	"chat-server/services/chat-api/internal/domain/user"
	"chat-server/services/chat-api/internal/infrastructure/logger"
	"chat-server/services/chat-api/internal/interfaces/httpserver/middlewares"
	"chat-server/services/chat-api/internal/interfaces/httpserver/requests"
	conversationrequests "chat-server/services/chat-api/internal/interfaces/httpserver/requests/conversation"
	conversationresponses "chat-server/services/chat-api/internal/interfaces/httpserver/responses/conversation"
	"chat-server/services/chat-api/internal/utils/platformerrors"
)

// ConversationHandler handles conversation CRUD and message endpoints
type ConversationHandler struct {
	convs   *conversation.Service
	msgs    *conversation.MessageService
	replace *conversation.ReplaceService
	users   *user.Service
}

// NewConversationHandler creates a new conversation handler
func NewConversationHandler(
	convs *conversation.Service,
	msgs *conversation.MessageService,
	replace *conversation.ReplaceService,
	users *user.Service,
) *ConversationHandler {
	return &ConversationHandler{
		convs:   convs,
		msgs:    msgs,
		replace: replace,
		users:   users,
	}
}

// CreateConversation handles POST /v1/conversations.
func (h *ConversationHandler) CreateConversation(reqCtx *gin.Context) {
	log := logger.GetLogger()

	usr, principal, ok := h.resolveUser(reqCtx)
	if !ok {
		return
	}

	var request conversationrequests.CreateConversationRequest
	if err := reqCtx.ShouldBindJSON(&request); err != nil {
		platformerrors.WriteValidationError(reqCtx, fmt.Sprintf("invalid request body: %v", err))
		return
	}

	input := conversation.CreateConversationInput{
		UserID:      usr.ID,
		PrincipalID: principal.ID,
		Title:       request.Title,
		Metadata:    request.Metadata,
	}
	if request.ID != nil {
		input.PublicID = *request.ID
	}
	if request.Settings != nil {
		input.Settings = *request.Settings
	}
	if request.Model != nil {
		input.Settings.Model = *request.Model
	}

	conv, err := h.convs.CreateConversation(reqCtx.Request.Context(), input)
	if err != nil {
		platformerrors.WriteError(reqCtx, err, log)
		return
	}

	reqCtx.JSON(http.StatusCreated, conversationresponses.NewConversationResponse(conv))
}

// ListConversations handles GET /v1/conversations.
func (h *ConversationHandler) ListConversations(reqCtx *gin.Context) {
	log := logger.GetLogger()

	usr, _, ok := h.resolveUser(reqCtx)
	if !ok {
		return
	}

	pagination, err := requests.GetPaginationFromQuery(reqCtx)
	if err != nil {
		platformerrors.WriteError(reqCtx, err, log)
		return
	}

	conversations, total, err := h.convs.ListConversations(reqCtx.Request.Context(), usr.ID, pagination)
	if err != nil {
		platformerrors.WriteError(reqCtx, err, log)
		return
	}

	var nextCursor *string
	limit := pagination.LimitOrDefault(conversation.DefaultConversationPageSize, conversation.MaxConversationPageSize)
	if len(conversations) == limit && len(conversations) > 0 {
		cursor := conversationNextCursor(conversations[len(conversations)-1])
		nextCursor = &cursor
	}

	reqCtx.JSON(http.StatusOK, conversationresponses.NewConversationListResponse(conversations, nextCursor, total))
}

// GetConversation handles GET /v1/conversations/:conversationID.
func (h *ConversationHandler) GetConversation(reqCtx *gin.Context) {
	log := logger.GetLogger()

	usr, _, ok := h.resolveUser(reqCtx)
	if !ok {
		return
	}

	conv, err := h.convs.GetOwnedConversation(reqCtx.Request.Context(), reqCtx.Param("conversationID"), usr.ID)
	if err != nil {
		platformerrors.WriteError(reqCtx, err, log)
		return
	}

	reqCtx.JSON(http.StatusOK, conversationresponses.NewConversationResponse(conv))
}

// UpdateConversation handles PATCH /v1/conversations/:conversationID.
func (h *ConversationHandler) UpdateConversation(reqCtx *gin.Context) {
	log := logger.GetLogger()

	usr, _, ok := h.resolveUser(reqCtx)
	if !ok {
		return
	}

	var request conversationrequests.UpdateConversationRequest
	if err := reqCtx.ShouldBindJSON(&request); err != nil {
		platformerrors.WriteValidationError(reqCtx, fmt.Sprintf("invalid request body: %v", err))
		return
	}

	conv, err := h.convs.UpdateConversation(reqCtx.Request.Context(), reqCtx.Param("conversationID"), usr.ID, conversation.UpdateConversationInput{
		Title:    request.Title,
		Metadata: request.Metadata,
		Settings: request.Settings,
	})
	if err != nil {
		platformerrors.WriteError(reqCtx, err, log)
		return
	}

	reqCtx.JSON(http.StatusOK, conversationresponses.NewConversationResponse(conv))
}

// DeleteConversation handles DELETE /v1/conversations/:conversationID.
func (h *ConversationHandler) DeleteConversation(reqCtx *gin.Context) {
	log := logger.GetLogger()

	usr, _, ok := h.resolveUser(reqCtx)
	if !ok {
		return
	}

	publicID := reqCtx.Param("conversationID")
	if err := h.convs.DeleteConversation(reqCtx.Request.Context(), publicID, usr.ID); err != nil {
		platformerrors.WriteError(reqCtx, err, log)
		return
	}

	reqCtx.JSON(http.StatusOK, conversationresponses.ConversationDeletedResponse{
		ID:      publicID,
		Object:  "conversation.deleted",
		Deleted: true,
	})
}

// GetMessages handles GET /v1/conversations/:conversationID/messages.
func (h *ConversationHandler) GetMessages(reqCtx *gin.Context) {
	log := logger.GetLogger()

	usr, _, ok := h.resolveUser(reqCtx)
	if !ok {
		return
	}

	pagination, err := requests.GetPaginationFromQuery(reqCtx)
	if err != nil {
		platformerrors.WriteError(reqCtx, err, log)
		return
	}

	conv, err := h.convs.GetOwnedConversation(reqCtx.Request.Context(), reqCtx.Param("conversationID"), usr.ID)
	if err != nil {
		platformerrors.WriteError(reqCtx, err, log)
		return
	}

	page, err := h.msgs.GetMessages(reqCtx.Request.Context(), conv, pagination)
	if err != nil {
		platformerrors.WriteError(reqCtx, err, log)
		return
	}

	reqCtx.JSON(http.StatusOK, conversationresponses.NewMessageListResponse(conv, page))
}

// ReplaceMessages handles PUT /v1/conversations/:conversationID/messages.
func (h *ConversationHandler) ReplaceMessages(reqCtx *gin.Context) {
	log := logger.GetLogger()

	usr, _, ok := h.resolveUser(reqCtx)
	if !ok {
		return
	}

	var request conversationrequests.ReplaceMessagesRequest
	if err := reqCtx.ShouldBindJSON(&request); err != nil {
		platformerrors.WriteValidationError(reqCtx, fmt.Sprintf("invalid request body: %v", err))
		return
	}

	items := make([]conversation.ReplaceItem, 0, len(request.Messages))
	for _, payload := range request.Messages {
		items = append(items, payload.ToReplaceItem())
	}

	replaced, err := h.replace.ReplaceMessages(reqCtx.Request.Context(), reqCtx.Param("conversationID"), usr.ID, items)
	if err != nil {
		platformerrors.WriteError(reqCtx, err, log)
		return
	}

	reqCtx.JSON(http.StatusOK, conversationresponses.ReplaceMessagesResponse{
		Object:   "conversation.messages.replaced",
		Replaced: replaced,
	})
}

// UpdateMessage handles PATCH /v1/conversations/:conversationID/messages/:messageID.
func (h *ConversationHandler) UpdateMessage(reqCtx *gin.Context) {
	log := logger.GetLogger()

	usr, _, ok := h.resolveUser(reqCtx)
	if !ok {
		return
	}

	var request conversationrequests.UpdateMessageRequest
	if err := reqCtx.ShouldBindJSON(&request); err != nil {
		platformerrors.WriteValidationError(reqCtx, fmt.Sprintf("invalid request body: %v", err))
		return
	}

	conv, err := h.convs.GetOwnedConversation(reqCtx.Request.Context(), reqCtx.Param("conversationID"), usr.ID)
	if err != nil {
		platformerrors.WriteError(reqCtx, err, log)
		return
	}

	msg, err := h.msgs.UpdateMessage(reqCtx.Request.Context(), conv, reqCtx.Param("messageID"), request.Content, request.Attachments)
	if err != nil {
		platformerrors.WriteError(reqCtx, err, log)
		return
	}

	reqCtx.JSON(http.StatusOK, conversationresponses.NewMessageResponse(msg))
}

// DeleteMessage handles DELETE /v1/conversations/:conversationID/messages/:messageID.
func (h *ConversationHandler) DeleteMessage(reqCtx *gin.Context) {
	log := logger.GetLogger()

	usr, _, ok := h.resolveUser(reqCtx)
	if !ok {
		return
	}

	conv, err := h.convs.GetOwnedConversation(reqCtx.Request.Context(), reqCtx.Param("conversationID"), usr.ID)
	if err != nil {
		platformerrors.WriteError(reqCtx, err, log)
		return
	}

	messageID := reqCtx.Param("messageID")
	if err := h.msgs.DeleteMessage(reqCtx.Request.Context(), conv, messageID); err != nil {
		platformerrors.WriteError(reqCtx, err, log)
		return
	}

	reqCtx.JSON(http.StatusOK, conversationresponses.MessageDeletedResponse{
		ID:      messageID,
		Object:  "message.deleted",
		Deleted: true,
	})
}

// BulkCreateMessages handles POST /v1/conversations/messages/bulk.
func (h *ConversationHandler) BulkCreateMessages(reqCtx *gin.Context) {
	log := logger.GetLogger()

	usr, _, ok := h.resolveUser(reqCtx)
	if !ok {
		return
	}

	var request conversationrequests.BulkCreateMessagesRequest
	if err := reqCtx.ShouldBindJSON(&request); err != nil {
		platformerrors.WriteValidationError(reqCtx, fmt.Sprintf("invalid request body: %v", err))
		return
	}

	items := make([]conversation.BulkItem, 0, len(request.Items))
	for _, item := range request.Items {
		items = append(items, conversation.BulkItem{
			ConversationPublicID: item.ConversationID,
			Input:                item.Message.ToInput(),
		})
	}

	result, err := h.msgs.BulkCreateMessages(reqCtx.Request.Context(), usr.ID, items)
	if err != nil {
		platformerrors.WriteError(reqCtx, err, log)
		return
	}

	reqCtx.JSON(http.StatusOK, conversationresponses.NewBulkCreateResponse(result))
}

// GetMessageStats handles GET /v1/conversations/:conversationID/messages/stats.
func (h *ConversationHandler) GetMessageStats(reqCtx *gin.Context) {
	log := logger.GetLogger()

	usr, _, ok := h.resolveUser(reqCtx)
	if !ok {
		return
	}

	conv, err := h.convs.GetOwnedConversation(reqCtx.Request.Context(), reqCtx.Param("conversationID"), usr.ID)
	if err != nil {
		platformerrors.WriteError(reqCtx, err, log)
		return
	}

	stats, err := h.msgs.GetMessageStats(reqCtx.Request.Context(), conv)
	if err != nil {
		platformerrors.WriteError(reqCtx, err, log)
		return
	}

	reqCtx.JSON(http.StatusOK, conversationresponses.NewMessageStatsResponse(stats))
}

func (h *ConversationHandler) resolveUser(reqCtx *gin.Context) (*user.User, domain.Principal, bool) {
	log := logger.GetLogger()

	principal, ok := middlewares.PrincipalFromContext(reqCtx)
	if !ok {
		platformerrors.WriteUnauthorized(reqCtx, "authentication required")
		return nil, domain.Principal{}, false
	}

	usr, err := h.users.EnsureUser(reqCtx.Request.Context(), user.IdentityFromPrincipal(principal))
	if err != nil {
		platformerrors.WriteError(reqCtx, err, log)
		return nil, domain.Principal{}, false
	}

	return usr, principal, true
}

func conversationNextCursor(conv *conversation.Conversation) string {
	return query.EncodeCursor(conv.LastActivityAt)
}
