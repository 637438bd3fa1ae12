package repository

import (
	"context"
	"time"

	"workchat/internal/domain/conversation"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type PostgresParticipantRepository struct {
	db *gorm.DB
}

func NewParticipantRepository(db *gorm.DB) ParticipantRepository {
	return &PostgresParticipantRepository{db: db}
}

func (r *PostgresParticipantRepository) Add(ctx context.Context, p *conversation.Participant) error {
	res := r.db.WithContext(ctx).Create(p)
	return translate(res.Error, "participant")
}

func (r *PostgresParticipantRepository) Get(ctx context.Context, conversationID, userID uuid.UUID) (conversation.Participant, error) {
	var p conversation.Participant
	err := r.db.WithContext(ctx).
		Where("conversation_id = ? AND user_id = ?", conversationID, userID).
		First(&p).Error
	if err != nil {
		return conversation.Participant{}, translate(err, "participant")
	}
	return p, nil
}

func (r *PostgresParticipantRepository) List(ctx context.Context, conversationID uuid.UUID) ([]conversation.Participant, error) {
	var participants []conversation.Participant
	err := r.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("joined_at ASC").
		Find(&participants).Error
	if err != nil {
		return nil, err
	}
	return participants, nil
}

func (r *PostgresParticipantRepository) CountActive(ctx context.Context, conversationID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&conversation.Participant{}).
		Where("conversation_id = ? AND left_at IS NULL", conversationID).
		Count(&count).Error
	return count, err
}

func (r *PostgresParticipantRepository) Count(ctx context.Context, conversationID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&conversation.Participant{}).
		Where("conversation_id = ?", conversationID).
		Count(&count).Error
	return count, err
}

func (r *PostgresParticipantRepository) Reactivate(ctx context.Context, conversationID, userID uuid.UUID, joinedAt time.Time) error {
	res := r.db.WithContext(ctx).
		Model(&conversation.Participant{}).
		Where("conversation_id = ? AND user_id = ?", conversationID, userID).
		Updates(map[string]interface{}{
			"left_at":   nil,
			"joined_at": joinedAt,
		})
	return affected(res, "participant")
}

func (r *PostgresParticipantRepository) MarkLeft(ctx context.Context, conversationID, userID uuid.UUID, at time.Time) error {
	res := r.db.WithContext(ctx).
		Model(&conversation.Participant{}).
		Where("conversation_id = ? AND user_id = ? AND left_at IS NULL", conversationID, userID).
		Update("left_at", at)
	return affected(res, "participant")
}

func (r *PostgresParticipantRepository) Delete(ctx context.Context, conversationID, userID uuid.UUID) error {
	res := r.db.WithContext(ctx).
		Delete(&conversation.Participant{}, "conversation_id = ? AND user_id = ?", conversationID, userID)
	return affected(res, "participant")
}
