package services

import (
	"context"
	"errors"
	"time"

	"workchat/internal/domain/conversation"
	"workchat/internal/domain/user"
	"workchat/internal/repository"
	apperrors "workchat/pkg/errors"

	"github.com/google/uuid"
)

// clock truncates to microseconds so values survive a Postgres round trip unchanged.
func clock() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}

func requirePrincipal(p user.Principal) error {
	if p.IsAnonymous() {
		return apperrors.ErrUnauthorized
	}
	return nil
}

// loadConversation fetches a conversation visible to p. Conversations of
// other tenants read as missing.
func loadConversation(ctx context.Context, store repository.Store, p user.Principal, conversationID uuid.UUID) (conversation.Conversation, error) {
	conv, err := store.Conversations().GetByID(ctx, conversationID)
	if err != nil {
		return conversation.Conversation{}, err
	}
	if conv.CompanyID != p.CompanyID {
		return conversation.Conversation{}, apperrors.NotFound("conversation")
	}
	return conv, nil
}

// activeMembership returns the conversation and the caller's active
// participant row, or ErrForbidden when the caller is not an active member.
func activeMembership(ctx context.Context, store repository.Store, p user.Principal, conversationID uuid.UUID) (conversation.Conversation, conversation.Participant, error) {
	if err := requirePrincipal(p); err != nil {
		return conversation.Conversation{}, conversation.Participant{}, err
	}
	conv, err := loadConversation(ctx, store, p, conversationID)
	if err != nil {
		return conversation.Conversation{}, conversation.Participant{}, err
	}
	for _, part := range conv.Participants {
		if part.UserID == p.UserID && part.IsActive() {
			return conv, part, nil
		}
	}
	return conversation.Conversation{}, conversation.Participant{}, apperrors.ErrForbidden
}

// tenantUser loads a user and checks it belongs to companyID.
func tenantUser(ctx context.Context, store repository.Store, field string, userID, companyID uuid.UUID) (user.User, error) {
	u, err := store.Users().GetByID(ctx, userID)
	if errors.Is(err, apperrors.ErrNotFound) {
		return user.User{}, apperrors.Validation(field, "user does not exist")
	}
	if err != nil {
		return user.User{}, err
	}
	if u.CompanyID != companyID {
		return user.User{}, apperrors.Validation(field, "user belongs to another company")
	}
	return u, nil
}

// addParticipant applies the membership rules for a new or returning member.
// It must run inside a transaction.
func addParticipant(ctx context.Context, tx repository.Store, conv conversation.Conversation, userID uuid.UUID, role conversation.Role, at time.Time) error {
	if _, err := tenantUser(ctx, tx, "user", userID, conv.CompanyID); err != nil {
		return err
	}

	existing, err := tx.Participants().Get(ctx, conv.ID, userID)
	found := err == nil
	if err != nil && !errors.Is(err, apperrors.ErrNotFound) {
		return err
	}
	if found && existing.IsActive() {
		return apperrors.Validation("user", "already a participant")
	}

	if conv.IsDM() {
		if !found {
			return apperrors.Validation("user", "direct conversation members are fixed")
		}
		active, err := tx.Participants().CountActive(ctx, conv.ID)
		if err != nil {
			return err
		}
		if active >= conversation.DirectCapacity {
			return apperrors.Validation("conversation", "direct conversation already has two members")
		}
	}

	if found {
		return tx.Participants().Reactivate(ctx, conv.ID, userID, at)
	}
	return tx.Participants().Add(ctx, &conversation.Participant{
		ConversationID: conv.ID,
		UserID:         userID,
		Role:           role,
		JoinedAt:       at,
	})
}

// dropIfEmpty deletes the conversation once no active participant remains.
func dropIfEmpty(ctx context.Context, tx repository.Store, conversationID uuid.UUID) (bool, error) {
	active, err := tx.Participants().CountActive(ctx, conversationID)
	if err != nil {
		return false, err
	}
	if active > 0 {
		return false, nil
	}
	return true, tx.Conversations().Delete(ctx, conversationID)
}
