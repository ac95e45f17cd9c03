package crontab

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/mileusna/crontab"

	"chat-server/services/chat-api/internal/config"
	"chat-server/services/chat-api/internal/domain/conversation"
	"chat-server/services/chat-api/internal/infrastructure/logger"
	"chat-server/services/chat-api/internal/infrastructure/metrics"
	"chat-server/services/chat-api/internal/utils/platformerrors"
)

const (
	DefaultReconcileIntervalMinutes = 15
	CronJobTimeout                  = 10 * time.Minute
	maxConcurrentReconciles         = 10
)

// Crontab schedules the background jobs: the conversation counter
// reconciliation sweep and the periodic config reload.
type Crontab struct {
	ctab     *crontab.Crontab
	convRepo conversation.Repository
	msgRepo  conversation.MessageRepository
}

func NewCrontab(
	convRepo conversation.Repository,
	msgRepo conversation.MessageRepository,
) *Crontab {
	return &Crontab{
		ctab:     crontab.New(),
		convRepo: convRepo,
		msgRepo:  msgRepo,
	}
}

func (c *Crontab) Run(ctx context.Context) error {
	log := logger.GetLogger()

	cfg := config.GetGlobal()
	intervalMinutes := DefaultReconcileIntervalMinutes
	if cfg != nil && cfg.ReconcileInterval >= time.Minute {
		intervalMinutes = int(cfg.ReconcileInterval / time.Minute)
	}

	cronExpr := reconcileCronExpr(intervalMinutes)
	if err := c.ctab.AddJob(cronExpr, func() {
		jobCtx, cancel := context.WithTimeout(context.Background(), CronJobTimeout)
		defer cancel()
		c.reconcileCounters(jobCtx)
	}); err != nil {
		return platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to add counter reconciliation job")
	}
	log.Info().Str("schedule", cronExpr).Msg("Counter reconciliation scheduled")

	// Schedule environment reload job
	if err := c.ctab.AddJob("* * * * *", func() {
		config.Load()
	}); err != nil {
		return platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to add env reload job")
	}

	<-ctx.Done()
	c.ctab.Shutdown()
	return nil
}

// reconcileCronExpr builds the reconciliation schedule. The minute field only
// accepts steps below 60, so longer intervals move to the hour field.
func reconcileCronExpr(intervalMinutes int) string {
	if intervalMinutes < 1 {
		intervalMinutes = DefaultReconcileIntervalMinutes
	}
	if intervalMinutes < 60 {
		return fmt.Sprintf("*/%d * * * *", intervalMinutes)
	}
	hours := intervalMinutes / 60
	if hours > 23 {
		hours = 23
	}
	return fmt.Sprintf("0 */%d * * *", hours)
}

// reconcileCounters recomputes message and token counters from the live
// message rows for recently active conversations and repairs any drift.
func (c *Crontab) reconcileCounters(ctx context.Context) {
	log := logger.GetLogger()

	cfg := config.GetGlobal()
	batchSize := 200
	lookback := 2 * DefaultReconcileIntervalMinutes * time.Minute
	if cfg != nil {
		if cfg.ReconcileBatchSize > 0 {
			batchSize = cfg.ReconcileBatchSize
		}
		if cfg.ReconcileInterval > 0 {
			lookback = 2 * cfg.ReconcileInterval
		}
	}

	since := time.Now().UTC().Add(-lookback)
	conversations, err := c.convRepo.ListActiveSince(ctx, since, batchSize)
	if err != nil {
		log.Error().Err(err).Msg("Failed to list conversations for reconciliation")
		return
	}

	if len(conversations) == 0 {
		return
	}

	sem := make(chan struct{}, maxConcurrentReconciles)
	var wg sync.WaitGroup

	for _, conv := range conversations {
		wg.Add(1)
		go func(conv *conversation.Conversation) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			c.reconcileConversation(ctx, conv)
		}(conv)
	}
	wg.Wait()
}

func (c *Crontab) reconcileConversation(ctx context.Context, conv *conversation.Conversation) {
	log := logger.GetLogger()

	liveCount, err := c.msgRepo.CountLive(ctx, conv.ID)
	if err != nil {
		log.Error().Err(err).Str("conversation_id", conv.PublicID).Msg("Failed to count messages")
		return
	}

	liveTokens, err := c.msgRepo.SumLiveTokens(ctx, conv.ID)
	if err != nil {
		log.Error().Err(err).Str("conversation_id", conv.PublicID).Msg("Failed to sum message tokens")
		return
	}

	if liveCount == conv.MessageCount && liveTokens == conv.TotalTokens {
		return
	}

	if err := c.convRepo.SetCounters(ctx, conv.ID, liveCount, liveTokens, conv.LastActivityAt); err != nil {
		log.Error().Err(err).Str("conversation_id", conv.PublicID).Msg("Failed to repair conversation counters")
		return
	}

	metrics.RecordReconciliationCorrection()
	log.Warn().
		Str("conversation_id", conv.PublicID).
		Int64("stored_messages", conv.MessageCount).
		Int64("actual_messages", liveCount).
		Int64("stored_tokens", conv.TotalTokens).
		Int64("actual_tokens", liveTokens).
		Msg("Repaired drifted conversation counters")
}
