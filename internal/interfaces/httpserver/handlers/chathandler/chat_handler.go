// Package chathandler serves the chat completion endpoint. It drives the
// completion orchestrator around the provider stream: resolve or pre-create
// the conversation, announce it via the X-Conversation-Id header, relay the
// stream and hand the finished turn back for persistence.
package chathandler

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/otel/attribute"

	"chat-server/services/chat-api/internal/config"
	"chat-server/services/chat-api/internal/domain/completion"
	"chat-server/services/chat-api/internal/domain/user"
	"chat-server/services/chat-api/internal/infrastructure/logger"
	"chat-server/services/chat-api/internal/infrastructure/metrics"
	"chat-server/services/chat-api/internal/infrastructure/observability"
	"chat-server/services/chat-api/internal/interfaces/httpserver/middlewares"
	chatrequests "chat-server/services/chat-api/internal/interfaces/httpserver/requests/chat"
	"chat-server/services/chat-api/internal/utils/httpclients/chat"
	"chat-server/services/chat-api/internal/utils/platformerrors"
)

const conversationIDHeader = "X-Conversation-Id"

// ChatHandler handles chat completion requests
type ChatHandler struct {
	orchestrator *completion.Orchestrator
	users        *user.Service
	client       *chat.CompletionClient
}

// NewChatHandler creates a new chat handler
func NewChatHandler(orchestrator *completion.Orchestrator, users *user.Service, client *chat.CompletionClient) *ChatHandler {
	return &ChatHandler{
		orchestrator: orchestrator,
		users:        users,
		client:       client,
	}
}

// CreateChatCompletion handles POST /v1/chat/completions for both the
// streaming and non-streaming paths.
func (h *ChatHandler) CreateChatCompletion(reqCtx *gin.Context) {
	log := logger.GetLogger()
	ctx, span := observability.StartSpan(reqCtx.Request.Context(), "chat-api", "ChatHandler.CreateChatCompletion")
	defer span.End()

	principal, ok := middlewares.PrincipalFromContext(reqCtx)
	if !ok {
		platformerrors.WriteUnauthorized(reqCtx, "authentication required")
		return
	}

	var request chatrequests.ChatCompletionRequest
	if err := reqCtx.ShouldBindJSON(&request); err != nil {
		platformerrors.WriteValidationError(reqCtx, fmt.Sprintf("invalid request body: %v", err))
		return
	}

	cfg := config.GetGlobal()
	req := request.ToDomain(cfg.CompletionDefaultModel)

	observability.AddSpanAttributes(ctx,
		attribute.String("chat.model", req.Model),
		attribute.Bool("chat.stream", req.Stream),
		attribute.Int("chat.message_count", len(req.Messages)),
	)

	usr, err := h.users.EnsureUser(ctx, user.IdentityFromPrincipal(principal))
	if err != nil {
		observability.RecordError(ctx, err)
		platformerrors.WriteError(reqCtx, err, log)
		return
	}

	requestID := middlewares.RequestIDFromContext(reqCtx)
	session, err := h.orchestrator.Prepare(ctx, principal, usr, requestID, req)
	if err != nil {
		observability.RecordError(ctx, err)
		writePrepareError(reqCtx, err, log)
		return
	}

	// Announced before any provider traffic so the client can reference the
	// conversation even if the stream dies.
	reqCtx.Header(conversationIDHeader, session.Conversation.PublicID)
	observability.AddSpanAttributes(ctx, attribute.String("conversation.id", session.Conversation.PublicID))

	providerReq := h.buildProviderRequest(session)
	start := time.Now()

	if req.Stream {
		h.streamCompletion(reqCtx, session, providerReq, start)
		return
	}

	h.completeOnce(reqCtx, session, providerReq, start)
}

func (h *ChatHandler) buildProviderRequest(session *completion.Session) openai.ChatCompletionRequest {
	turns := h.orchestrator.ProviderMessages(session)
	messages := make([]openai.ChatCompletionMessage, 0, len(turns))
	for _, turn := range turns {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    string(turn.Role),
			Content: turn.Content,
		})
	}

	providerReq := openai.ChatCompletionRequest{
		Model:    session.Request.Model,
		Messages: messages,
		Stream:   session.Request.Stream,
	}
	if session.Request.Temperature != nil {
		providerReq.Temperature = float32(*session.Request.Temperature)
	}
	if session.Request.MaxTokens != nil {
		providerReq.MaxTokens = *session.Request.MaxTokens
	}
	return providerReq
}

func (h *ChatHandler) streamCompletion(reqCtx *gin.Context, session *completion.Session, providerReq openai.ChatCompletionRequest, start time.Time) {
	log := logger.GetLogger()
	cfg := config.GetGlobal()
	ctx := reqCtx.Request.Context()

	h.orchestrator.MarkStreaming(session)
	metrics.IncrementActiveStreams(providerReq.Model)
	defer metrics.DecrementActiveStreams(providerReq.Model)

	result, err := h.client.StreamCompletionToContext(reqCtx, cfg.CompletionAPIKey, providerReq, nil,
		chat.WithHeader(conversationIDHeader, session.Conversation.PublicID))
	if err != nil {
		if ctx.Err() != nil {
			// Client went away mid-stream; nothing was delivered in full, so
			// nothing is persisted.
			h.orchestrator.Fail(session, ctx.Err())
			return
		}
		classified := completion.ClassifyProviderError(ctx, err)
		metrics.RecordProviderError("completion", string(classified.Type))
		h.orchestrator.Fail(session, classified)
		platformerrors.WriteHTTPError(reqCtx, classified, log)
		return
	}

	metrics.RecordCompletionDuration(providerReq.Model, "completion", true, time.Since(start).Seconds())
	metrics.RecordTokens(providerReq.Model, "completion", result.Usage.PromptTokens, result.Usage.CompletionTokens)

	h.orchestrator.Finish(ctx, session, completion.Result{
		Content:          result.Content,
		FinishReason:     result.FinishReason,
		Model:            result.Model,
		PromptTokens:     result.Usage.PromptTokens,
		CompletionTokens: result.Usage.CompletionTokens,
	})
}

func (h *ChatHandler) completeOnce(reqCtx *gin.Context, session *completion.Session, providerReq openai.ChatCompletionRequest, start time.Time) {
	log := logger.GetLogger()
	cfg := config.GetGlobal()
	ctx := reqCtx.Request.Context()

	resp, err := h.client.CreateCompletion(ctx, cfg.CompletionAPIKey, providerReq)
	if err != nil {
		classified := completion.ClassifyProviderError(ctx, err)
		metrics.RecordProviderError("completion", string(classified.Type))
		h.orchestrator.Fail(session, classified)
		platformerrors.WriteHTTPError(reqCtx, classified, log)
		return
	}

	metrics.RecordCompletionDuration(providerReq.Model, "completion", false, time.Since(start).Seconds())
	metrics.RecordTokens(providerReq.Model, "completion", resp.Usage.PromptTokens, resp.Usage.CompletionTokens)

	content := ""
	finishReason := string(openai.FinishReasonStop)
	if len(resp.Choices) > 0 {
		content = resp.Choices[0].Message.Content
		finishReason = string(resp.Choices[0].FinishReason)
	}

	h.orchestrator.Finish(ctx, session, completion.Result{
		Content:          content,
		FinishReason:     finishReason,
		Model:            resp.Model,
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
	})

	reqCtx.JSON(http.StatusOK, resp)
}

// writePrepareError sets Retry-After for rate limited rejections before the
// standard error body goes out.
func writePrepareError(reqCtx *gin.Context, err error, log zerolog.Logger) {
	platformErr := platformerrors.GetPlatformError(err)
	if platformErr != nil && platformErr.Type == platformerrors.ErrorTypeRateLimited {
		if seconds, ok := platformErr.Context["retry_after_seconds"].(int); ok && seconds > 0 {
			reqCtx.Header("Retry-After", fmt.Sprintf("%d", seconds))
		}
	}
	platformerrors.WriteError(reqCtx, err, log)
}
