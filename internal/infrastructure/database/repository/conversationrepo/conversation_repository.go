// Package conversationrepo persists conversations and messages. Both
// repositories read the active transaction out of the context, so writes
// issued inside one transaction.Database.Transaction call share it.
package conversationrepo

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"chat-server/services/chat-api/internal/domain/conversation"
	"chat-server/services/chat-api/internal/domain/query"
	"chat-server/services/chat-api/internal/infrastructure/database/dbschema"
	"chat-server/services/chat-api/internal/infrastructure/database/transaction"
	"chat-server/services/chat-api/internal/utils/functional"
	"chat-server/services/chat-api/internal/utils/platformerrors"
)

type ConversationGormRepository struct {
	db *transaction.Database
}

var _ conversation.Repository = (*ConversationGormRepository)(nil)

func NewConversationGormRepository(db *transaction.Database) conversation.Repository {
	return &ConversationGormRepository{db}
}

// Create implements conversation.Repository.
func (repo *ConversationGormRepository) Create(ctx context.Context, conv *conversation.Conversation) error {
	model := dbschema.NewSchemaConversation(conv)
	if err := repo.db.GetTx(ctx).WithContext(ctx).Create(model).Error; err != nil {
		return platformerrors.NewError(
			ctx,
			platformerrors.LayerRepository,
			platformerrors.ErrorTypeDatabaseError,
			"failed to create conversation",
			err,
			"8f1c2a3b-4d5e-4f6a-9b7c-8d9e0f1a2b3d",
		)
	}
	// Update the domain object with generated ID and timestamps
	conv.ID = model.ID
	conv.CreatedAt = model.CreatedAt
	conv.UpdatedAt = model.UpdatedAt
	return nil
}

// FindByPublicID implements conversation.Repository.
func (repo *ConversationGormRepository) FindByPublicID(ctx context.Context, publicID string) (*conversation.Conversation, error) {
	var entity dbschema.Conversation
	err := repo.db.GetTx(ctx).WithContext(ctx).
		Where("public_id = ?", publicID).
		First(&entity).
		Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, platformerrors.NewError(
			ctx,
			platformerrors.LayerRepository,
			platformerrors.ErrorTypeNotFound,
			"conversation not found",
			nil,
			"9a2b3c4d-5e6f-4a7b-8c9d-0e1f2a3b4c5f",
		)
	}
	if err != nil {
		return nil, platformerrors.NewError(
			ctx,
			platformerrors.LayerRepository,
			platformerrors.ErrorTypeDatabaseError,
			"failed to find conversation",
			err,
			"0b1c2d3e-4f5a-4b6c-9d8e-7f6a5b4c3d2e",
		)
	}
	return entity.EtoD(), nil
}

// FindOwned implements conversation.Repository. The owner predicate sits in
// the query itself, so a conversation owned by someone else is reported
// exactly like a missing one.
func (repo *ConversationGormRepository) FindOwned(ctx context.Context, publicID string, userID uint) (*conversation.Conversation, error) {
	var entity dbschema.Conversation
	err := repo.db.GetTx(ctx).WithContext(ctx).
		Where("public_id = ? AND user_id = ?", publicID, userID).
		First(&entity).
		Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, platformerrors.NewError(
			ctx,
			platformerrors.LayerRepository,
			platformerrors.ErrorTypeNotFound,
			"conversation not found",
			nil,
			"1c2d3e4f-5a6b-4c7d-8e9f-0a1b2c3d4e5a",
		)
	}
	if err != nil {
		return nil, platformerrors.NewError(
			ctx,
			platformerrors.LayerRepository,
			platformerrors.ErrorTypeDatabaseError,
			"failed to find conversation",
			err,
			"2d3e4f5a-6b7c-4d8e-9f0a-1b2c3d4e5f6b",
		)
	}
	return entity.EtoD(), nil
}

// Update implements conversation.Repository.
func (repo *ConversationGormRepository) Update(ctx context.Context, conv *conversation.Conversation) error {
	model := dbschema.NewSchemaConversation(conv)
	if err := repo.db.GetTx(ctx).WithContext(ctx).Save(model).Error; err != nil {
		return platformerrors.NewError(
			ctx,
			platformerrors.LayerRepository,
			platformerrors.ErrorTypeDatabaseError,
			"failed to update conversation",
			err,
			"3e4f5a6b-7c8d-4e9f-8a1b-2c3d4e5f6a7c",
		)
	}
	conv.UpdatedAt = model.UpdatedAt
	return nil
}

// Delete implements conversation.Repository as a soft delete.
func (repo *ConversationGormRepository) Delete(ctx context.Context, id uint) error {
	result := repo.db.GetTx(ctx).WithContext(ctx).Delete(&dbschema.Conversation{}, id)
	if result.Error != nil {
		return platformerrors.NewError(
			ctx,
			platformerrors.LayerRepository,
			platformerrors.ErrorTypeDatabaseError,
			"failed to delete conversation",
			result.Error,
			"4f5a6b7c-8d9e-4f0a-9b2c-3d4e5f6a7b8d",
		)
	}
	if result.RowsAffected == 0 {
		return platformerrors.NewError(
			ctx,
			platformerrors.LayerRepository,
			platformerrors.ErrorTypeNotFound,
			"conversation not found",
			nil,
			"5a6b7c8d-9e0f-4a1b-8c3d-4e5f6a7b8c9e",
		)
	}
	return nil
}

// ListByUser implements conversation.Repository. Ordered by last activity
// descending; a cursor timestamp excludes the boundary row itself.
func (repo *ConversationGormRepository) ListByUser(ctx context.Context, userID uint, pagination *query.Pagination) ([]*conversation.Conversation, error) {
	if pagination == nil {
		pagination = &query.Pagination{}
	}

	tx := repo.db.GetTx(ctx).WithContext(ctx).
		Where("user_id = ?", userID).
		Order("last_activity_at DESC")
	if pagination.Before != nil {
		tx = tx.Where("last_activity_at < ?", *pagination.Before)
	}
	tx = tx.Limit(pagination.LimitOrDefault(conversation.DefaultConversationPageSize, conversation.MaxConversationPageSize))

	var rows []*dbschema.Conversation
	if err := tx.Find(&rows).Error; err != nil {
		return nil, platformerrors.NewError(
			ctx,
			platformerrors.LayerRepository,
			platformerrors.ErrorTypeDatabaseError,
			"failed to list conversations",
			err,
			"6b7c8d9e-0f1a-4b2c-9d4e-5f6a7b8c9d0f",
		)
	}

	return functional.Map(rows, func(item *dbschema.Conversation) *conversation.Conversation {
		return item.EtoD()
	}), nil
}

// CountByUser implements conversation.Repository.
func (repo *ConversationGormRepository) CountByUser(ctx context.Context, userID uint) (int64, error) {
	var count int64
	err := repo.db.GetTx(ctx).WithContext(ctx).
		Model(&dbschema.Conversation{}).
		Where("user_id = ?", userID).
		Count(&count).
		Error
	if err != nil {
		return 0, platformerrors.NewError(
			ctx,
			platformerrors.LayerRepository,
			platformerrors.ErrorTypeDatabaseError,
			"failed to count conversations",
			err,
			"7c8d9e0f-1a2b-4c3d-8e5f-6a7b8c9d0e1a",
		)
	}
	return count, nil
}

// IncrementCounters implements conversation.Repository. A single UPDATE with
// SQL-side arithmetic keeps concurrent deltas atomic.
func (repo *ConversationGormRepository) IncrementCounters(ctx context.Context, id uint, messageDelta, tokenDelta int64, lastActivity time.Time) error {
	result := repo.db.GetTx(ctx).WithContext(ctx).
		Model(&dbschema.Conversation{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"message_count":    gorm.Expr("message_count + ?", messageDelta),
			"total_tokens":     gorm.Expr("total_tokens + ?", tokenDelta),
			"last_activity_at": lastActivity,
		})
	if result.Error != nil {
		return platformerrors.NewError(
			ctx,
			platformerrors.LayerRepository,
			platformerrors.ErrorTypeDatabaseError,
			"failed to update conversation counters",
			result.Error,
			"8d9e0f1a-2b3c-4d4e-9f6a-7b8c9d0e1f2b",
		)
	}
	if result.RowsAffected == 0 {
		return platformerrors.NewError(
			ctx,
			platformerrors.LayerRepository,
			platformerrors.ErrorTypeNotFound,
			"conversation not found",
			nil,
			"9e0f1a2b-3c4d-4e5f-8a7b-8c9d0e1f2a3c",
		)
	}
	return nil
}

// SetCounters implements conversation.Repository.
func (repo *ConversationGormRepository) SetCounters(ctx context.Context, id uint, messageCount, totalTokens int64, lastActivity time.Time) error {
	result := repo.db.GetTx(ctx).WithContext(ctx).
		Model(&dbschema.Conversation{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"message_count":    messageCount,
			"total_tokens":     totalTokens,
			"last_activity_at": lastActivity,
		})
	if result.Error != nil {
		return platformerrors.NewError(
			ctx,
			platformerrors.LayerRepository,
			platformerrors.ErrorTypeDatabaseError,
			"failed to set conversation counters",
			result.Error,
			"0f1a2b3c-4d5e-4f6a-9b8c-9d0e1f2a3b4d",
		)
	}
	if result.RowsAffected == 0 {
		return platformerrors.NewError(
			ctx,
			platformerrors.LayerRepository,
			platformerrors.ErrorTypeNotFound,
			"conversation not found",
			nil,
			"1a2b3c4d-5e6f-4a7b-8c9d-0e1f2a3b4c50",
		)
	}
	return nil
}

// ListActiveSince implements conversation.Repository. The counter
// reconciliation sweep uses it to pick recently touched conversations.
func (repo *ConversationGormRepository) ListActiveSince(ctx context.Context, since time.Time, limit int) ([]*conversation.Conversation, error) {
	tx := repo.db.GetTx(ctx).WithContext(ctx).
		Where("last_activity_at > ?", since).
		Order("last_activity_at DESC")
	if limit > 0 {
		tx = tx.Limit(limit)
	}

	var rows []*dbschema.Conversation
	if err := tx.Find(&rows).Error; err != nil {
		return nil, platformerrors.NewError(
			ctx,
			platformerrors.LayerRepository,
			platformerrors.ErrorTypeDatabaseError,
			"failed to list active conversations",
			err,
			"2b3c4d5e-6f7a-4b8c-9d0e-1f2a3b4c5d60",
		)
	}

	return functional.Map(rows, func(item *dbschema.Conversation) *conversation.Conversation {
		return item.EtoD()
	}), nil
}
