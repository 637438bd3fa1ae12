package repository

import (
	"context"
	"time"

	"workchat/internal/domain/conversation"
	"workchat/internal/domain/message"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gorm.io/gorm"
)

type PostgresConversationRepository struct {
	db *gorm.DB
}

func NewConversationRepository(db *gorm.DB) ConversationRepository {
	return &PostgresConversationRepository{db: db}
}

func (r *PostgresConversationRepository) Create(ctx context.Context, c *conversation.Conversation) error {
	// Participants are written through ParticipantRepository, never by association.
	res := r.db.WithContext(ctx).Omit("Participants").Create(c)
	return translate(res.Error, "conversation")
}

func (r *PostgresConversationRepository) GetByID(ctx context.Context, id uuid.UUID) (conversation.Conversation, error) {
	var c conversation.Conversation
	err := r.db.WithContext(ctx).
		Preload("Participants").
		Where("id = ?", id).
		First(&c).Error
	if err != nil {
		return conversation.Conversation{}, translate(err, "conversation")
	}
	return c, nil
}

func (r *PostgresConversationRepository) Update(ctx context.Context, c conversation.Conversation) error {
	res := r.db.WithContext(ctx).
		Model(&conversation.Conversation{}).
		Where("id = ?", c.ID).
		Updates(map[string]interface{}{
			"title":      c.Title,
			"icon_key":   c.IconKey,
			"updated_at": c.UpdatedAt,
		})
	return affected(res, "conversation")
}

func (r *PostgresConversationRepository) Touch(ctx context.Context, id uuid.UUID, at time.Time) error {
	res := r.db.WithContext(ctx).
		Model(&conversation.Conversation{}).
		Where("id = ?", id).
		Update("updated_at", at)
	return affected(res, "conversation")
}

func (r *PostgresConversationRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		messageIDs := tx.Model(&message.Message{}).Select("id").Where("conversation_id = ?", id)
		if err := tx.Where("message_id IN (?)", messageIDs).Delete(&message.MessageRead{}).Error; err != nil {
			return errors.Wrap(err, "delete message reads")
		}
		if err := tx.Where("conversation_id = ?", id).Delete(&message.Message{}).Error; err != nil {
			return errors.Wrap(err, "delete messages")
		}
		if err := tx.Where("conversation_id = ?", id).Delete(&conversation.Invitation{}).Error; err != nil {
			return errors.Wrap(err, "delete invitations")
		}
		if err := tx.Where("conversation_id = ?", id).Delete(&conversation.Participant{}).Error; err != nil {
			return errors.Wrap(err, "delete participants")
		}
		res := tx.Delete(&conversation.Conversation{}, "id = ?", id)
		return affected(res, "conversation")
	})
}

func (r *PostgresConversationRepository) FindDirect(ctx context.Context, companyID, userA, userB uuid.UUID) (conversation.Conversation, error) {
	var c conversation.Conversation

	subQuery := r.db.Model(&conversation.Participant{}).
		Select("conversation_id").
		Where("user_id IN ?", []uuid.UUID{userA, userB}).
		Group("conversation_id").
		Having("COUNT(DISTINCT user_id) = 2")

	err := r.db.WithContext(ctx).
		Preload("Participants").
		Where("id IN (?) AND company_id = ? AND is_group = ?", subQuery, companyID, false).
		Order("created_at ASC").
		First(&c).Error
	if err != nil {
		return conversation.Conversation{}, translate(err, "conversation")
	}
	return c, nil
}

// directPairKey is the same for (a, b) and (b, a).
func directPairKey(userA, userB uuid.UUID) string {
	a, b := userA.String(), userB.String()
	if b < a {
		a, b = b, a
	}
	return a + ":" + b
}

func (r *PostgresConversationRepository) LockDirectPair(ctx context.Context, userA, userB uuid.UUID) error {
	return r.db.WithContext(ctx).
		Exec("SELECT pg_advisory_xact_lock(hashtextextended(?, 0))", directPairKey(userA, userB)).
		Error
}

func (r *PostgresConversationRepository) ListForUser(ctx context.Context, companyID, userID uuid.UUID) ([]conversation.Conversation, error) {
	var conversations []conversation.Conversation

	subQuery := r.db.Model(&conversation.Participant{}).
		Select("conversation_id").
		Where("user_id = ? AND left_at IS NULL", userID)

	err := r.db.WithContext(ctx).
		Preload("Participants").
		Where("id IN (?) AND company_id = ?", subQuery, companyID).
		Order("updated_at DESC").
		Find(&conversations).Error
	if err != nil {
		return nil, err
	}
	return conversations, nil
}
