package websocket

import (
	"context"
	"errors"

	"workchat/internal/domain/user"
	"workchat/internal/repository"
	apperrors "workchat/pkg/errors"

	"github.com/google/uuid"
)

// Authorizer decides whether a principal may join a conversation group.
type Authorizer struct {
	store repository.Store
}

func NewAuthorizer(store repository.Store) *Authorizer {
	return &Authorizer{store: store}
}

// CanJoin is true for an active participant of a conversation in the
// principal's own tenant. Anonymous principals never join.
func (a *Authorizer) CanJoin(ctx context.Context, p user.Principal, conversationID uuid.UUID) (bool, error) {
	if p.IsAnonymous() {
		return false, nil
	}

	conv, err := a.store.Conversations().GetByID(ctx, conversationID)
	if errors.Is(err, apperrors.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if conv.CompanyID != p.CompanyID {
		return false, nil
	}

	for _, part := range conv.Participants {
		if part.UserID == p.UserID {
			return part.IsActive(), nil
		}
	}
	return false, nil
}
