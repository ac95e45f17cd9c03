package conversationrepo

import (
	"context"
	"database/sql"
	"errors"

	"gorm.io/gorm"

	"chat-server/services/chat-api/internal/domain/conversation"
	"chat-server/services/chat-api/internal/domain/query"
	"chat-server/services/chat-api/internal/infrastructure/database/dbschema"
	"chat-server/services/chat-api/internal/infrastructure/database/transaction"
	"chat-server/services/chat-api/internal/utils/functional"
	"chat-server/services/chat-api/internal/utils/platformerrors"
)

type MessageGormRepository struct {
	db *transaction.Database
}

var _ conversation.MessageRepository = (*MessageGormRepository)(nil)

func NewMessageGormRepository(db *transaction.Database) conversation.MessageRepository {
	return &MessageGormRepository{db}
}

// Create implements conversation.MessageRepository.
func (repo *MessageGormRepository) Create(ctx context.Context, msg *conversation.Message) error {
	model := dbschema.NewSchemaMessage(msg)
	if err := repo.db.GetTx(ctx).WithContext(ctx).Create(model).Error; err != nil {
		return platformerrors.NewError(
			ctx,
			platformerrors.LayerRepository,
			platformerrors.ErrorTypeDatabaseError,
			"failed to create message",
			err,
			"3c4d5e6f-7a8b-4c9d-8e0f-1a2b3c4d5e71",
		)
	}
	msg.ID = model.ID
	msg.CreatedAt = model.CreatedAt
	msg.UpdatedAt = model.UpdatedAt
	return nil
}

// CreateBatch implements conversation.MessageRepository. One INSERT for the
// whole batch; generated IDs and timestamps are copied back in order.
func (repo *MessageGormRepository) CreateBatch(ctx context.Context, msgs []*conversation.Message) error {
	if len(msgs) == 0 {
		return nil
	}

	models := functional.Map(msgs, dbschema.NewSchemaMessage)
	if err := repo.db.GetTx(ctx).WithContext(ctx).Create(&models).Error; err != nil {
		return platformerrors.NewError(
			ctx,
			platformerrors.LayerRepository,
			platformerrors.ErrorTypeDatabaseError,
			"failed to create messages",
			err,
			"4d5e6f7a-8b9c-4d0e-9f1a-2b3c4d5e6f82",
		)
	}
	for i, model := range models {
		msgs[i].ID = model.ID
		msgs[i].CreatedAt = model.CreatedAt
		msgs[i].UpdatedAt = model.UpdatedAt
	}
	return nil
}

// FindByPublicID implements conversation.MessageRepository. Scoped to the
// conversation so a message ID from another thread resolves to not found.
func (repo *MessageGormRepository) FindByPublicID(ctx context.Context, conversationID uint, publicID string) (*conversation.Message, error) {
	var entity dbschema.Message
	err := repo.db.GetTx(ctx).WithContext(ctx).
		Where("conversation_id = ? AND public_id = ?", conversationID, publicID).
		First(&entity).
		Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, platformerrors.NewError(
			ctx,
			platformerrors.LayerRepository,
			platformerrors.ErrorTypeNotFound,
			"message not found",
			nil,
			"5e6f7a8b-9c0d-4e1f-8a2b-3c4d5e6f7a93",
		)
	}
	if err != nil {
		return nil, platformerrors.NewError(
			ctx,
			platformerrors.LayerRepository,
			platformerrors.ErrorTypeDatabaseError,
			"failed to find message",
			err,
			"6f7a8b9c-0d1e-4f2a-9b3c-4d5e6f7a8ba4",
		)
	}
	return entity.EtoD(), nil
}

// ListByConversation implements conversation.MessageRepository. Newest first;
// the cursor timestamp excludes the boundary row, the caller reverses pages
// into chronological order.
func (repo *MessageGormRepository) ListByConversation(ctx context.Context, conversationID uint, pagination *query.Pagination) ([]*conversation.Message, error) {
	if pagination == nil {
		pagination = &query.Pagination{}
	}

	tx := repo.db.GetTx(ctx).WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("created_at DESC, id DESC")
	if pagination.Before != nil {
		tx = tx.Where("created_at < ?", *pagination.Before)
	}
	tx = tx.Limit(pagination.LimitOrDefault(conversation.DefaultMessagePageSize, conversation.MaxMessagePageSize))

	var rows []*dbschema.Message
	if err := tx.Find(&rows).Error; err != nil {
		return nil, platformerrors.NewError(
			ctx,
			platformerrors.LayerRepository,
			platformerrors.ErrorTypeDatabaseError,
			"failed to list messages",
			err,
			"7a8b9c0d-1e2f-4a3b-8c4d-5e6f7a8b9cb5",
		)
	}

	return functional.Map(rows, func(item *dbschema.Message) *conversation.Message {
		return item.EtoD()
	}), nil
}

// ListIncludingDeleted implements conversation.MessageRepository. Soft-deleted
// rows are included, in chronological order.
func (repo *MessageGormRepository) ListIncludingDeleted(ctx context.Context, conversationID uint) ([]*conversation.Message, error) {
	var rows []*dbschema.Message
	err := repo.db.GetTx(ctx).WithContext(ctx).
		Unscoped().
		Where("conversation_id = ?", conversationID).
		Order("created_at ASC, id ASC").
		Find(&rows).
		Error
	if err != nil {
		return nil, platformerrors.NewError(
			ctx,
			platformerrors.LayerRepository,
			platformerrors.ErrorTypeDatabaseError,
			"failed to list messages",
			err,
			"8b9c0d1e-2f3a-4b4c-9d5e-6f7a8b9c0dc6",
		)
	}

	return functional.Map(rows, func(item *dbschema.Message) *conversation.Message {
		return item.EtoD()
	}), nil
}

// CountLive implements conversation.MessageRepository.
func (repo *MessageGormRepository) CountLive(ctx context.Context, conversationID uint) (int64, error) {
	var count int64
	err := repo.db.GetTx(ctx).WithContext(ctx).
		Model(&dbschema.Message{}).
		Where("conversation_id = ?", conversationID).
		Count(&count).
		Error
	if err != nil {
		return 0, platformerrors.NewError(
			ctx,
			platformerrors.LayerRepository,
			platformerrors.ErrorTypeDatabaseError,
			"failed to count messages",
			err,
			"9c0d1e2f-3a4b-4c5d-8e6f-7a8b9c0d1ed7",
		)
	}
	return count, nil
}

// SumLiveTokens implements conversation.MessageRepository.
func (repo *MessageGormRepository) SumLiveTokens(ctx context.Context, conversationID uint) (int64, error) {
	var total int64
	err := repo.db.GetTx(ctx).WithContext(ctx).
		Model(&dbschema.Message{}).
		Where("conversation_id = ?", conversationID).
		Select("COALESCE(SUM(token_count), 0)").
		Scan(&total).
		Error
	if err != nil {
		return 0, platformerrors.NewError(
			ctx,
			platformerrors.LayerRepository,
			platformerrors.ErrorTypeDatabaseError,
			"failed to sum message tokens",
			err,
			"0d1e2f3a-4b5c-4d6e-9f7a-8b9c0d1e2fe8",
		)
	}
	return total, nil
}

// Update implements conversation.MessageRepository.
func (repo *MessageGormRepository) Update(ctx context.Context, msg *conversation.Message) error {
	model := dbschema.NewSchemaMessage(msg)
	if err := repo.db.GetTx(ctx).WithContext(ctx).Save(model).Error; err != nil {
		return platformerrors.NewError(
			ctx,
			platformerrors.LayerRepository,
			platformerrors.ErrorTypeDatabaseError,
			"failed to update message",
			err,
			"1e2f3a4b-5c6d-4e7f-8a8b-9c0d1e2f3af9",
		)
	}
	msg.UpdatedAt = model.UpdatedAt
	return nil
}

// SoftDelete implements conversation.MessageRepository.
func (repo *MessageGormRepository) SoftDelete(ctx context.Context, id uint) error {
	result := repo.db.GetTx(ctx).WithContext(ctx).Delete(&dbschema.Message{}, id)
	if result.Error != nil {
		return platformerrors.NewError(
			ctx,
			platformerrors.LayerRepository,
			platformerrors.ErrorTypeDatabaseError,
			"failed to delete message",
			result.Error,
			"2f3a4b5c-6d7e-4f8a-9b9c-0d1e2f3a4b0a",
		)
	}
	if result.RowsAffected == 0 {
		return platformerrors.NewError(
			ctx,
			platformerrors.LayerRepository,
			platformerrors.ErrorTypeNotFound,
			"message not found",
			nil,
			"3a4b5c6d-7e8f-4a9b-8c0d-1e2f3a4b5c1b",
		)
	}
	return nil
}

// HardDeleteByConversation implements conversation.MessageRepository. Removes
// every row for the conversation, soft-deleted ones included.
func (repo *MessageGormRepository) HardDeleteByConversation(ctx context.Context, conversationID uint) error {
	err := repo.db.GetTx(ctx).WithContext(ctx).
		Unscoped().
		Where("conversation_id = ?", conversationID).
		Delete(&dbschema.Message{}).
		Error
	if err != nil {
		return platformerrors.NewError(
			ctx,
			platformerrors.LayerRepository,
			platformerrors.ErrorTypeDatabaseError,
			"failed to purge conversation messages",
			err,
			"4b5c6d7e-8f9a-4b0c-9d1e-2f3a4b5c6d2c",
		)
	}
	return nil
}

// Stats implements conversation.MessageRepository. Aggregates over live
// messages only.
func (repo *MessageGormRepository) Stats(ctx context.Context, conversationID uint) (*conversation.MessageStats, error) {
	var row struct {
		MessageCount   int64
		TotalTokens    int64
		FirstMessageAt sql.NullTime
		LastMessageAt  sql.NullTime
	}
	err := repo.db.GetTx(ctx).WithContext(ctx).
		Model(&dbschema.Message{}).
		Where("conversation_id = ?", conversationID).
		Select("COUNT(*) AS message_count, COALESCE(SUM(token_count), 0) AS total_tokens, MIN(created_at) AS first_message_at, MAX(created_at) AS last_message_at").
		Scan(&row).
		Error
	if err != nil {
		return nil, platformerrors.NewError(
			ctx,
			platformerrors.LayerRepository,
			platformerrors.ErrorTypeDatabaseError,
			"failed to aggregate message stats",
			err,
			"5c6d7e8f-9a0b-4c1d-8e2f-3a4b5c6d7e3d",
		)
	}

	stats := &conversation.MessageStats{
		MessageCount: row.MessageCount,
		TotalTokens:  row.TotalTokens,
	}
	if row.FirstMessageAt.Valid {
		first := row.FirstMessageAt.Time
		stats.FirstMessageAt = &first
	}
	if row.LastMessageAt.Valid {
		last := row.LastMessageAt.Time
		stats.LastMessageAt = &last
	}
	return stats, nil
}
