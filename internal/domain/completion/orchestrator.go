// Package completion drives a chat completion request through its lifecycle:
// validation, conversation resolution or pre-creation, streaming, and the
// persistence of the finished turn.
package completion

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"chat-server/services/chat-api/internal/domain"
	"chat-server/services/chat-api/internal/domain/conversation"
	"chat-server/services/chat-api/internal/domain/user"
	"chat-server/services/chat-api/internal/infrastructure/metrics"
	"chat-server/services/chat-api/internal/infrastructure/ratelimit"
	"chat-server/services/chat-api/internal/utils/platformerrors"
)

// State tracks where a completion request is in its lifecycle.
type State string

const (
	StateReceived          State = "RECEIVED"
	StateValidated         State = "VALIDATED"
	StateNewConvPreCreated State = "NEW_CONV_PRECREATED"
	StateExistingConv      State = "EXISTING_CONV"
	StateStreaming         State = "STREAMING"
	StateFinished          State = "FINISHED"
	StatePersisted         State = "PERSISTED"
	StateFailed            State = "FAILED"
)

// Turn is one incoming message of a completion request.
type Turn struct {
	Role    conversation.Role
	Content string
}

// Request is a validated-on-entry completion request.
type Request struct {
	ConversationPublicID string
	Model                string
	Messages             []Turn
	Temperature          *float64
	MaxTokens            *int
	Stream               bool
}

// Session carries a single completion request through the state machine.
type Session struct {
	State        State
	RequestID    string
	Conversation *conversation.Conversation
	PreCreated   bool
	User         *user.User
	Request      Request
	StartedAt    time.Time
}

// Result is what the provider stream produced.
type Result struct {
	Content          string
	FinishReason     string
	Model            string
	PromptTokens     int
	CompletionTokens int
}

// Config tunes the orchestrator.
type Config struct {
	SystemPrompt    string
	PersistAttempts int
	PersistBackoff  time.Duration
}

// Orchestrator coordinates validation, conversation lifecycle and turn
// persistence around the provider stream. It does not perform transport;
// the HTTP layer streams and reports the outcome via Finish or Fail.
type Orchestrator struct {
	convs   *conversation.Service
	msgs    *conversation.MessageService
	limiter ratelimit.Limiter
	logger  zerolog.Logger
	cfg     Config
}

// NewOrchestrator creates a new completion orchestrator
func NewOrchestrator(convs *conversation.Service, msgs *conversation.MessageService, limiter ratelimit.Limiter, logger zerolog.Logger, cfg Config) *Orchestrator {
	if cfg.PersistAttempts <= 0 {
		cfg.PersistAttempts = 3
	}
	if cfg.PersistBackoff <= 0 {
		cfg.PersistBackoff = 500 * time.Millisecond
	}
	return &Orchestrator{
		convs:   convs,
		msgs:    msgs,
		limiter: limiter,
		logger:  logger,
		cfg:     cfg,
	}
}

// Prepare validates the request, applies the rate limit gate and resolves or
// pre-creates the conversation. A database failure during pre-creation is
// fatal: the provider is never called for a turn that cannot be persisted.
func (o *Orchestrator) Prepare(ctx context.Context, principal domain.Principal, usr *user.User, requestID string, req Request) (*Session, error) {
	session := &Session{
		State:     StateReceived,
		RequestID: requestID,
		User:      usr,
		Request:   req,
		StartedAt: time.Now().UTC(),
	}

	decision, err := o.limiter.Allow(ctx, "completion:"+principal.ID)
	if err != nil {
		session.State = StateFailed
		return session, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "rate limit check failed")
	}
	if !decision.Allowed {
		session.State = StateFailed
		metrics.RecordRateLimited("completion")
		return session, platformerrors.NewErrorWithContext(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeRateLimited,
			"rate limit exceeded", nil, "c4d5e6f7-a8b9-4c0d-9e1f-2a3b4c5d6e7f",
			map[string]any{"retry_after_seconds": int(decision.RetryAfter.Seconds() + 1)})
	}

	if err := o.validate(ctx, req); err != nil {
		session.State = StateFailed
		return session, err
	}
	session.State = StateValidated

	if req.ConversationPublicID == "" {
		conv, err := o.preCreateConversation(ctx, principal, usr, req)
		if err != nil {
			session.State = StateFailed
			return session, err
		}
		session.Conversation = conv
		session.PreCreated = true
		session.State = StateNewConvPreCreated
		return session, nil
	}

	conv, err := o.convs.GetOwnedConversation(ctx, req.ConversationPublicID, usr.ID)
	if err != nil {
		session.State = StateFailed
		return session, err
	}
	session.Conversation = conv
	session.State = StateExistingConv
	return session, nil
}

func (o *Orchestrator) validate(ctx context.Context, req Request) error {
	if len(req.Messages) == 0 {
		return platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeValidation, "at least one message is required", nil, "d8e9f0a1-b2c3-4d4e-8f5a-6b7c8d9e0f1a")
	}
	if len(req.Messages) > conversation.MaxMessagesPerRequest {
		return platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeValidation,
			fmt.Sprintf("at most %d messages are allowed per request", conversation.MaxMessagesPerRequest), nil, "e9f0a1b2-c3d4-4e5f-9a6b-7c8d9e0f1a2b")
	}
	for _, turn := range req.Messages {
		if err := conversation.ValidateRole(turn.Role); err != nil {
			return platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeValidation, "invalid message role", err, "f0a1b2c3-d4e5-4f6a-8b7c-8d9e0f1a2b3c")
		}
		if err := conversation.ValidateContent(turn.Content); err != nil {
			return platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeValidation, "invalid message content", err, "a1b2c3d4-e5f6-4a7b-9c8d-9e0f1a2b3c4d")
		}
	}
	settings := conversation.ModelSettings{Model: req.Model, Temperature: req.Temperature, MaxTokens: req.MaxTokens}
	if err := conversation.ValidateSettings(settings); err != nil {
		return platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeValidation, "invalid model settings", err, "b2c3d4e5-f6a7-4b8c-8d9e-0f1a2b3c4d5e")
	}
	return nil
}

// preCreateConversation creates the conversation and persists the user turn
// before any provider traffic so the client can be redirected immediately.
func (o *Orchestrator) preCreateConversation(ctx context.Context, principal domain.Principal, usr *user.User, req Request) (*conversation.Conversation, error) {
	title := "New Conversation"
	if userTurn := lastUserTurn(req.Messages); userTurn != nil {
		title = conversation.DeriveTitle(userTurn.Content)
	}

	conv, err := o.convs.CreateConversation(ctx, conversation.CreateConversationInput{
		UserID:      usr.ID,
		PrincipalID: principal.ID,
		Title:       title,
		Settings: conversation.ModelSettings{
			Model:       req.Model,
			Temperature: req.Temperature,
			MaxTokens:   req.MaxTokens,
		},
	})
	if err != nil {
		return nil, err
	}
	metrics.ConversationsCreatedTotal.Inc()

	if userTurn := lastUserTurn(req.Messages); userTurn != nil {
		if _, err := o.msgs.CreateMessage(ctx, conv, conversation.CreateMessageInput{
			Role:    userTurn.Role,
			Content: userTurn.Content,
		}); err != nil {
			return nil, err
		}
	}

	return conv, nil
}

// MarkStreaming transitions the session once the provider stream is open.
func (o *Orchestrator) MarkStreaming(session *Session) {
	session.State = StateStreaming
}

// Fail marks the session failed. A session that never reaches Finish, for
// example because the client disconnected mid-stream, persists nothing.
func (o *Orchestrator) Fail(session *Session, err error) {
	session.State = StateFailed
	o.logger.Warn().
		Str("request_id", session.RequestID).
		Str("state", string(StateFailed)).
		Err(err).
		Msg("completion failed before persistence")
}

// Finish marks the stream delivered and schedules persistence of the turn as
// a separate task correlated by request ID. Persistence failure is logged and
// counted but never propagates to the already-delivered stream.
func (o *Orchestrator) Finish(ctx context.Context, session *Session, res Result) {
	session.State = StateFinished

	persistCtx := context.WithoutCancel(ctx)
	go func() {
		if err := o.persistFinished(persistCtx, session, res); err != nil {
			o.logger.Error().
				Str("request_id", session.RequestID).
				Str("conversation_id", session.Conversation.PublicID).
				Err(err).
				Msg("completion persistence exhausted retries")
		}
	}()
}

// persistFinished appends the outstanding turns with retry and backoff.
func (o *Orchestrator) persistFinished(ctx context.Context, session *Session, res Result) error {
	var lastErr error
	for attempt := 0; attempt < o.cfg.PersistAttempts; attempt++ {
		if attempt > 0 {
			metrics.RecordPersistenceRetry()
			select {
			case <-time.After(o.cfg.PersistBackoff << uint(attempt-1)):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		if lastErr = o.persistOnce(ctx, session, res); lastErr == nil {
			session.State = StatePersisted
			return nil
		}
	}

	path := "existing"
	if session.PreCreated {
		path = "precreated"
	}
	metrics.RecordPersistenceFailure(path)
	return lastErr
}

// persistOnce writes the turns this session still owes. The pre-created path
// already stored the user turn, so only the assistant turn remains; the
// existing path appends both with one grouped counter update.
func (o *Orchestrator) persistOnce(ctx context.Context, session *Session, res Result) error {
	assistantTurn := conversation.CreateMessageInput{
		Role:    conversation.RoleAssistant,
		Content: res.Content,
		Completion: &conversation.CompletionMetadata{
			Model:        res.Model,
			Temperature:  session.Request.Temperature,
			MaxTokens:    session.Request.MaxTokens,
			FinishReason: res.FinishReason,
		},
	}
	if res.CompletionTokens > 0 {
		tokens := res.CompletionTokens
		assistantTurn.Completion.TokenCount = &tokens
	}

	var inputs []conversation.CreateMessageInput
	if !session.PreCreated {
		if userTurn := lastUserTurn(session.Request.Messages); userTurn != nil {
			inputs = append(inputs, conversation.CreateMessageInput{
				Role:    userTurn.Role,
				Content: userTurn.Content,
			})
		}
	}
	inputs = append(inputs, assistantTurn)

	_, err := o.msgs.AppendTurns(ctx, session.Conversation, inputs)
	return err
}

// ProviderMessages returns the message list to send upstream, prefixed with
// the fixed system instruction when configured.
func (o *Orchestrator) ProviderMessages(session *Session) []Turn {
	if o.cfg.SystemPrompt == "" {
		return session.Request.Messages
	}
	out := make([]Turn, 0, len(session.Request.Messages)+1)
	out = append(out, Turn{Role: conversation.RoleSystem, Content: o.cfg.SystemPrompt})
	out = append(out, session.Request.Messages...)
	return out
}

func lastUserTurn(turns []Turn) *Turn {
	for i := len(turns) - 1; i >= 0; i-- {
		if turns[i].Role == conversation.RoleUser {
			return &turns[i]
		}
	}
	return nil
}
