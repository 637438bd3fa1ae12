package repository

import (
	"context"
	"time"

	"workchat/internal/domain/message"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type PostgresMessageReadRepository struct {
	db *gorm.DB
}

func NewMessageReadRepository(db *gorm.DB) MessageReadRepository {
	return &PostgresMessageReadRepository{db: db}
}

func (r *PostgresMessageReadRepository) MarkRead(ctx context.Context, messageID string, userID uuid.UUID, at time.Time) (bool, error) {
	read := message.MessageRead{
		MessageID: messageID,
		UserID:    userID,
		ReadAt:    at,
	}
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&read)
	if res.Error != nil {
		return false, translate(res.Error, "message read")
	}
	return res.RowsAffected == 1, nil
}

func (r *PostgresMessageReadRepository) IsRead(ctx context.Context, messageID string, userID uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&message.MessageRead{}).
		Where("message_id = ? AND user_id = ?", messageID, userID).
		Count(&count).Error
	return count > 0, err
}

func (r *PostgresMessageReadRepository) ReadersOf(ctx context.Context, messageID string) ([]uuid.UUID, error) {
	var readers []uuid.UUID
	err := r.db.WithContext(ctx).
		Model(&message.MessageRead{}).
		Where("message_id = ?", messageID).
		Order("read_at ASC").
		Pluck("user_id", &readers).Error
	if err != nil {
		return nil, err
	}
	return readers, nil
}

func (r *PostgresMessageReadRepository) ReadersOfMany(ctx context.Context, messageIDs []string) (map[string][]uuid.UUID, error) {
	out := make(map[string][]uuid.UUID, len(messageIDs))
	if len(messageIDs) == 0 {
		return out, nil
	}
	var reads []message.MessageRead
	err := r.db.WithContext(ctx).
		Where("message_id IN ?", messageIDs).
		Order("read_at ASC").
		Find(&reads).Error
	if err != nil {
		return nil, err
	}
	for _, rd := range reads {
		out[rd.MessageID] = append(out[rd.MessageID], rd.UserID)
	}
	return out, nil
}
