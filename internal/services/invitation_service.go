package services

import (
	"context"
	"errors"
	"time"

	"workchat/internal/audit"
	"workchat/internal/domain/conversation"
	"workchat/internal/domain/user"
	"workchat/internal/repository"
	apperrors "workchat/pkg/errors"

	"github.com/google/uuid"
)

type InvitationService struct {
	store repository.Store
	audit audit.Sink
	now   func() time.Time
}

func NewInvitationService(store repository.Store, sink audit.Sink) *InvitationService {
	return &InvitationService{
		store: store,
		audit: audit.OrNop(sink),
		now:   clock,
	}
}

func (s *InvitationService) record(ctx context.Context, p user.Principal, verb string, conversationID, invitee uuid.UUID) {
	s.audit.Record(ctx, audit.Event{
		ActorID:    p.UserID,
		CompanyID:  p.CompanyID,
		Verb:       verb,
		TargetType: "conversation",
		TargetID:   conversationID.String(),
		Extra:      map[string]interface{}{"invitee_id": invitee.String()},
		OccurredAt: s.now(),
	})
}

// Invite creates pending invitations to a group for every invitee. Either
// all invitations are stored or none are.
func (s *InvitationService) Invite(ctx context.Context, p user.Principal, conversationID uuid.UUID, invitees []uuid.UUID) ([]conversation.Invitation, error) {
	conv, _, err := activeMembership(ctx, s.store, p, conversationID)
	if err != nil {
		return nil, err
	}
	if conv.IsDM() {
		return nil, apperrors.Validation("conversation", "only group conversations accept invitations")
	}
	if len(invitees) == 0 {
		return nil, apperrors.Validation("partners", "at least one invitee is required")
	}

	unique := make([]uuid.UUID, 0, len(invitees))
	seen := make(map[uuid.UUID]bool, len(invitees))
	for _, id := range invitees {
		if seen[id] {
			continue
		}
		seen[id] = true
		unique = append(unique, id)
	}

	created := make([]conversation.Invitation, 0, len(unique))
	err = s.store.WithTx(ctx, func(tx repository.Store) error {
		now := s.now()
		for _, invitee := range unique {
			if invitee == p.UserID {
				return apperrors.Validation("partners", "cannot invite yourself")
			}
			if _, err := tenantUser(ctx, tx, "partners", invitee, p.CompanyID); err != nil {
				return err
			}

			member, err := tx.Participants().Get(ctx, conversationID, invitee)
			if err == nil && member.IsActive() {
				return apperrors.Validation("partners", "user is already a participant")
			}
			if err != nil && !errors.Is(err, apperrors.ErrNotFound) {
				return err
			}

			existing, err := tx.Invitations().Get(ctx, conversationID, invitee)
			switch {
			case err == nil && !existing.IsParticipated:
				return apperrors.Validation("partners", "user is already invited")
			case err == nil:
				// Accepted earlier and left since; start a fresh invitation.
				if err := tx.Invitations().Delete(ctx, conversationID, invitee); err != nil {
					return err
				}
			case !errors.Is(err, apperrors.ErrNotFound):
				return err
			}

			inv := conversation.Invitation{
				ConversationID: conversationID,
				InviteeID:      invitee,
				InvitedBy:      p.UserID,
				InvitedAt:      now,
			}
			if err := tx.Invitations().Create(ctx, &inv); err != nil {
				return err
			}
			created = append(created, inv)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	for _, inv := range created {
		s.record(ctx, p, audit.VerbInvitationCreated, conversationID, inv.InviteeID)
	}
	return created, nil
}

// Respond resolves the caller's pending invitation. Accepting joins the
// group as a member; declining drops the invitation and deletes the
// conversation if nobody is left in it.
func (s *InvitationService) Respond(ctx context.Context, p user.Principal, conversationID uuid.UUID, accept bool) error {
	if err := requirePrincipal(p); err != nil {
		return err
	}
	conv, err := loadConversation(ctx, s.store, p, conversationID)
	if err != nil {
		return err
	}

	inv, err := s.store.Invitations().Get(ctx, conversationID, p.UserID)
	if err != nil {
		return err
	}
	if inv.IsParticipated {
		return apperrors.Validation("invitation", "invitation already accepted")
	}

	var deleted bool
	err = s.store.WithTx(ctx, func(tx repository.Store) error {
		if accept {
			if err := addParticipant(ctx, tx, conv, p.UserID, conversation.RoleMember, s.now()); err != nil {
				return err
			}
			return tx.Invitations().MarkParticipated(ctx, conversationID, p.UserID)
		}
		if err := tx.Invitations().Delete(ctx, conversationID, p.UserID); err != nil {
			return err
		}
		var err error
		deleted, err = dropIfEmpty(ctx, tx, conversationID)
		return err
	})
	if err != nil {
		return err
	}

	if accept {
		s.record(ctx, p, audit.VerbInvitationAccepted, conversationID, p.UserID)
		return nil
	}
	s.record(ctx, p, audit.VerbInvitationDeclined, conversationID, p.UserID)
	if deleted {
		s.record(ctx, p, audit.VerbConversationDeleted, conversationID, p.UserID)
	}
	return nil
}
