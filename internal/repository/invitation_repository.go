package repository

import (
	"context"

	"workchat/internal/domain/conversation"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type PostgresInvitationRepository struct {
	db *gorm.DB
}

func NewInvitationRepository(db *gorm.DB) InvitationRepository {
	return &PostgresInvitationRepository{db: db}
}

func (r *PostgresInvitationRepository) Create(ctx context.Context, inv *conversation.Invitation) error {
	res := r.db.WithContext(ctx).Create(inv)
	return translate(res.Error, "invitation")
}

func (r *PostgresInvitationRepository) Get(ctx context.Context, conversationID, inviteeID uuid.UUID) (conversation.Invitation, error) {
	var inv conversation.Invitation
	err := r.db.WithContext(ctx).
		Where("conversation_id = ? AND invitee_id = ?", conversationID, inviteeID).
		First(&inv).Error
	if err != nil {
		return conversation.Invitation{}, translate(err, "invitation")
	}
	return inv, nil
}

func (r *PostgresInvitationRepository) ListPendingForUser(ctx context.Context, inviteeID uuid.UUID) ([]conversation.Invitation, error) {
	var invitations []conversation.Invitation
	err := r.db.WithContext(ctx).
		Where("invitee_id = ? AND is_participated = ?", inviteeID, false).
		Order("invited_at DESC").
		Find(&invitations).Error
	if err != nil {
		return nil, err
	}
	return invitations, nil
}

func (r *PostgresInvitationRepository) MarkParticipated(ctx context.Context, conversationID, inviteeID uuid.UUID) error {
	res := r.db.WithContext(ctx).
		Model(&conversation.Invitation{}).
		Where("conversation_id = ? AND invitee_id = ?", conversationID, inviteeID).
		Update("is_participated", true)
	return affected(res, "invitation")
}

func (r *PostgresInvitationRepository) Delete(ctx context.Context, conversationID, inviteeID uuid.UUID) error {
	res := r.db.WithContext(ctx).
		Delete(&conversation.Invitation{}, "conversation_id = ? AND invitee_id = ?", conversationID, inviteeID)
	return affected(res, "invitation")
}
