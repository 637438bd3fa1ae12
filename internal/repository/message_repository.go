package repository

import (
	"context"
	"time"

	"workchat/internal/domain/message"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type PostgresMessageRepository struct {
	db *gorm.DB
}

func NewMessageRepository(db *gorm.DB) MessageRepository {
	return &PostgresMessageRepository{db: db}
}

func (r *PostgresMessageRepository) Create(ctx context.Context, m *message.Message) error {
	res := r.db.WithContext(ctx).Create(m)
	return translate(res.Error, "message")
}

func (r *PostgresMessageRepository) GetByID(ctx context.Context, id string) (message.Message, error) {
	var m message.Message
	err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&m).Error
	if err != nil {
		return message.Message{}, translate(err, "message")
	}
	return m, nil
}

func (r *PostgresMessageRepository) ListSince(ctx context.Context, conversationID uuid.UUID, floor time.Time) ([]message.Message, error) {
	var messages []message.Message
	err := r.db.WithContext(ctx).
		Where("conversation_id = ? AND created_at >= ?", conversationID, floor).
		Order("created_at ASC, id ASC").
		Find(&messages).Error
	if err != nil {
		return nil, err
	}
	return messages, nil
}

func (r *PostgresMessageRepository) Latest(ctx context.Context, conversationID uuid.UUID) (message.Message, error) {
	var m message.Message
	err := r.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("created_at DESC, id DESC").
		First(&m).Error
	if err != nil {
		return message.Message{}, translate(err, "message")
	}
	return m, nil
}

func (r *PostgresMessageRepository) MarkEdited(ctx context.Context, id string, body datatypes.JSON, at time.Time) error {
	res := r.db.WithContext(ctx).
		Model(&message.Message{}).
		Where("id = ? AND deleted_at IS NULL", id).
		Updates(map[string]interface{}{
			"body":      body,
			"edited_at": at,
		})
	return affected(res, "message")
}

// MarkDeleted stamps deleted_at. The body is kept; redaction happens when
// the message is serialized.
func (r *PostgresMessageRepository) MarkDeleted(ctx context.Context, id string, at time.Time) error {
	res := r.db.WithContext(ctx).
		Model(&message.Message{}).
		Where("id = ? AND deleted_at IS NULL", id).
		Update("deleted_at", at)
	return affected(res, "message")
}

func (r *PostgresMessageRepository) CountUnread(ctx context.Context, conversationID, userID uuid.UUID, floor time.Time) (int64, error) {
	var count int64

	readIDs := r.db.Model(&message.MessageRead{}).
		Select("message_id").
		Where("user_id = ?", userID)

	err := r.db.WithContext(ctx).
		Model(&message.Message{}).
		Where("conversation_id = ? AND created_at >= ?", conversationID, floor).
		Where("deleted_at IS NULL").
		Where("sender_id IS NULL OR sender_id <> ?", userID).
		Where("id NOT IN (?)", readIDs).
		Count(&count).Error
	return count, err
}
