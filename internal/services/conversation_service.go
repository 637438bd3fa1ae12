package services

import (
	"context"
	"database/sql"
	"errors"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"workchat/internal/audit"
	"workchat/internal/domain/conversation"
	"workchat/internal/domain/message"
	"workchat/internal/domain/user"
	"workchat/internal/repository"
	apperrors "workchat/pkg/errors"
	"workchat/pkg/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type ConversationService struct {
	store repository.Store
	audit audit.Sink
	log   *logger.Logger
	now   func() time.Time
}

func NewConversationService(store repository.Store, sink audit.Sink, l *logger.Logger) *ConversationService {
	return &ConversationService{
		store: store,
		audit: audit.OrNop(sink),
		log:   logger.OrNop(l),
		now:   clock,
	}
}

// ConversationSummary is one entry of a user's conversation list.
type ConversationSummary struct {
	Conversation conversation.Conversation
	Partner      *user.User
	LastMessage  *message.Message
	UnreadCount  int64
	IsInvited    bool
	InvitedBy    *uuid.UUID
}

type UpdateConversationInput struct {
	Title   *string
	IconKey *string
	IsGroup *bool
}

func normalizeTitle(title string) (string, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return "", apperrors.Validation("title", "group conversations require a title")
	}
	if utf8.RuneCountInString(title) > conversation.MaxTitleLength {
		return "", apperrors.Validation("title", "title is longer than 50 characters")
	}
	return title, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func (s *ConversationService) record(ctx context.Context, p user.Principal, verb, targetType, targetID string, extra map[string]interface{}) {
	s.audit.Record(ctx, audit.Event{
		ActorID:    p.UserID,
		CompanyID:  p.CompanyID,
		Verb:       verb,
		TargetType: targetType,
		TargetID:   targetID,
		Extra:      extra,
		OccurredAt: s.now(),
	})
}

// FindOrCreateDirect returns the caller's DM with partnerID, creating it on
// first contact. A caller who had left the DM is reactivated.
func (s *ConversationService) FindOrCreateDirect(ctx context.Context, p user.Principal, partnerID uuid.UUID) (conversation.Conversation, error) {
	if err := requirePrincipal(p); err != nil {
		return conversation.Conversation{}, err
	}
	if partnerID == p.UserID {
		return conversation.Conversation{}, apperrors.Validation("partner", "cannot start a conversation with yourself")
	}

	var (
		result  conversation.Conversation
		created bool
	)
	err := s.store.WithTx(ctx, func(tx repository.Store) error {
		if _, err := tenantUser(ctx, tx, "partner", partnerID, p.CompanyID); err != nil {
			return err
		}

		if err := tx.Conversations().LockDirectPair(ctx, p.UserID, partnerID); err != nil {
			return err
		}

		now := s.now()
		existing, err := tx.Conversations().FindDirect(ctx, p.CompanyID, p.UserID, partnerID)
		switch {
		case err == nil:
			for _, part := range existing.Participants {
				if part.UserID == p.UserID && !part.IsActive() {
					if err := tx.Participants().Reactivate(ctx, existing.ID, p.UserID, now); err != nil {
						return err
					}
				}
			}
			result, err = tx.Conversations().GetByID(ctx, existing.ID)
			return err
		case !errors.Is(err, apperrors.ErrNotFound):
			return err
		}

		conv := conversation.Conversation{
			ID:        uuid.New(),
			CompanyID: p.CompanyID,
			IsGroup:   false,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := tx.Conversations().Create(ctx, &conv); err != nil {
			return err
		}
		for _, uid := range []uuid.UUID{p.UserID, partnerID} {
			if err := tx.Participants().Add(ctx, &conversation.Participant{
				ConversationID: conv.ID,
				UserID:         uid,
				Role:           conversation.RoleMember,
				JoinedAt:       now,
			}); err != nil {
				return err
			}
		}
		created = true
		result, err = tx.Conversations().GetByID(ctx, conv.ID)
		return err
	})
	if err != nil {
		return conversation.Conversation{}, err
	}

	if created {
		s.record(ctx, p, audit.VerbConversationCreated, "conversation", result.ID.String(), map[string]interface{}{
			"is_group": false,
			"partner":  partnerID.String(),
		})
	}
	return result, nil
}

func (s *ConversationService) CreateGroup(ctx context.Context, p user.Principal, title, iconKey string) (conversation.Conversation, error) {
	if err := requirePrincipal(p); err != nil {
		return conversation.Conversation{}, err
	}
	title, err := normalizeTitle(title)
	if err != nil {
		return conversation.Conversation{}, err
	}

	var result conversation.Conversation
	err = s.store.WithTx(ctx, func(tx repository.Store) error {
		now := s.now()
		conv := conversation.Conversation{
			ID:        uuid.New(),
			CompanyID: p.CompanyID,
			IsGroup:   true,
			Title:     nullString(title),
			IconKey:   nullString(strings.TrimSpace(iconKey)),
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := tx.Conversations().Create(ctx, &conv); err != nil {
			return err
		}
		if err := tx.Participants().Add(ctx, &conversation.Participant{
			ConversationID: conv.ID,
			UserID:         p.UserID,
			Role:           conversation.RoleOwner,
			JoinedAt:       now,
		}); err != nil {
			return err
		}
		var err error
		result, err = tx.Conversations().GetByID(ctx, conv.ID)
		return err
	})
	if err != nil {
		return conversation.Conversation{}, err
	}

	s.record(ctx, p, audit.VerbConversationCreated, "conversation", result.ID.String(), map[string]interface{}{
		"is_group": true,
		"title":    title,
	})
	return result, nil
}

// Get returns a conversation the caller is an active member of.
func (s *ConversationService) Get(ctx context.Context, p user.Principal, conversationID uuid.UUID) (conversation.Conversation, error) {
	conv, _, err := activeMembership(ctx, s.store, p, conversationID)
	return conv, err
}

func (s *ConversationService) Update(ctx context.Context, p user.Principal, conversationID uuid.UUID, in UpdateConversationInput) (conversation.Conversation, error) {
	conv, _, err := activeMembership(ctx, s.store, p, conversationID)
	if err != nil {
		return conversation.Conversation{}, err
	}

	if in.IsGroup != nil && *in.IsGroup != conv.IsGroup {
		return conversation.Conversation{}, apperrors.Validation("is_group", "conversation type cannot change")
	}
	if in.Title != nil {
		if conv.IsDM() {
			if strings.TrimSpace(*in.Title) != "" {
				return conversation.Conversation{}, apperrors.Validation("title", "direct conversations have no title")
			}
		} else {
			title, err := normalizeTitle(*in.Title)
			if err != nil {
				return conversation.Conversation{}, err
			}
			conv.Title = nullString(title)
		}
	}
	if in.IconKey != nil {
		conv.IconKey = nullString(strings.TrimSpace(*in.IconKey))
	}
	conv.UpdatedAt = s.now()

	if err := s.store.Conversations().Update(ctx, conv); err != nil {
		return conversation.Conversation{}, err
	}
	s.record(ctx, p, audit.VerbConversationUpdated, "conversation", conv.ID.String(), nil)
	return s.store.Conversations().GetByID(ctx, conv.ID)
}

// AddParticipant adds userID to the conversation, or revives their row if
// they had left.
func (s *ConversationService) AddParticipant(ctx context.Context, p user.Principal, conversationID, userID uuid.UUID, role conversation.Role) (conversation.Conversation, error) {
	if role == "" {
		role = conversation.RoleMember
	}
	switch role {
	case conversation.RoleOwner, conversation.RoleMember, conversation.RoleBot:
	default:
		return conversation.Conversation{}, apperrors.Validation("role", "unknown role")
	}

	if _, _, err := activeMembership(ctx, s.store, p, conversationID); err != nil {
		return conversation.Conversation{}, err
	}

	var result conversation.Conversation
	err := s.store.WithTx(ctx, func(tx repository.Store) error {
		conv, err := tx.Conversations().GetByID(ctx, conversationID)
		if err != nil {
			return err
		}
		if err := addParticipant(ctx, tx, conv, userID, role, s.now()); err != nil {
			return err
		}
		result, err = tx.Conversations().GetByID(ctx, conversationID)
		return err
	})
	if err != nil {
		return conversation.Conversation{}, err
	}

	s.record(ctx, p, audit.VerbParticipantAdded, "conversation", conversationID.String(), map[string]interface{}{
		"user_id": userID.String(),
		"role":    string(role),
	})
	return result, nil
}

// Leave closes the caller's membership window. The conversation is
// deleted once nobody is left in it.
func (s *ConversationService) Leave(ctx context.Context, p user.Principal, conversationID uuid.UUID) error {
	if _, _, err := activeMembership(ctx, s.store, p, conversationID); err != nil {
		return err
	}

	var deleted bool
	err := s.store.WithTx(ctx, func(tx repository.Store) error {
		if err := tx.Participants().MarkLeft(ctx, conversationID, p.UserID, s.now()); err != nil {
			return err
		}
		var err error
		deleted, err = dropIfEmpty(ctx, tx, conversationID)
		return err
	})
	if err != nil {
		return err
	}

	s.record(ctx, p, audit.VerbParticipantLeft, "conversation", conversationID.String(), nil)
	if deleted {
		s.record(ctx, p, audit.VerbConversationDeleted, "conversation", conversationID.String(), nil)
	}
	return nil
}

// Kick removes another member's row from a group. Only owners may kick.
func (s *ConversationService) Kick(ctx context.Context, p user.Principal, conversationID, userID uuid.UUID) error {
	conv, self, err := activeMembership(ctx, s.store, p, conversationID)
	if err != nil {
		return err
	}
	if conv.IsDM() {
		return apperrors.Validation("conversation", "members cannot be removed from a direct conversation")
	}
	if self.Role != conversation.RoleOwner {
		return apperrors.ErrForbidden
	}
	if userID == p.UserID {
		return apperrors.Validation("user", "use leave to exit a conversation")
	}

	var deleted bool
	err = s.store.WithTx(ctx, func(tx repository.Store) error {
		if err := tx.Participants().Delete(ctx, conversationID, userID); err != nil {
			return err
		}
		var err error
		deleted, err = dropIfEmpty(ctx, tx, conversationID)
		return err
	})
	if err != nil {
		return err
	}

	s.record(ctx, p, audit.VerbParticipantRemoved, "conversation", conversationID.String(), map[string]interface{}{
		"user_id": userID.String(),
	})
	if deleted {
		s.record(ctx, p, audit.VerbConversationDeleted, "conversation", conversationID.String(), nil)
	}
	return nil
}

// List returns the caller's conversations and pending invitations, most
// recently active first.
func (s *ConversationService) List(ctx context.Context, p user.Principal) ([]ConversationSummary, error) {
	if err := requirePrincipal(p); err != nil {
		return nil, err
	}

	convs, err := s.store.Conversations().ListForUser(ctx, p.CompanyID, p.UserID)
	if err != nil {
		return nil, err
	}

	out := make([]ConversationSummary, 0, len(convs))
	seen := make(map[uuid.UUID]bool, len(convs))
	for _, conv := range convs {
		summary, err := s.summarize(ctx, p, conv)
		if err != nil {
			return nil, err
		}
		seen[conv.ID] = true
		out = append(out, summary)
	}

	pending, err := s.store.Invitations().ListPendingForUser(ctx, p.UserID)
	if err != nil {
		return nil, err
	}
	for _, inv := range pending {
		if seen[inv.ConversationID] {
			continue
		}
		conv, err := s.store.Conversations().GetByID(ctx, inv.ConversationID)
		if errors.Is(err, apperrors.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		if conv.CompanyID != p.CompanyID {
			continue
		}
		invitedBy := inv.InvitedBy
		out = append(out, ConversationSummary{
			Conversation: conv,
			IsInvited:    true,
			InvitedBy:    &invitedBy,
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Conversation.UpdatedAt.After(out[j].Conversation.UpdatedAt)
	})
	return out, nil
}

func (s *ConversationService) summarize(ctx context.Context, p user.Principal, conv conversation.Conversation) (ConversationSummary, error) {
	summary := ConversationSummary{Conversation: conv}

	var floor time.Time
	for _, part := range conv.Participants {
		if part.UserID == p.UserID {
			floor = part.JoinedAt
			continue
		}
		if conv.IsDM() && summary.Partner == nil {
			partner, err := s.store.Users().GetByID(ctx, part.UserID)
			if err != nil && !errors.Is(err, apperrors.ErrNotFound) {
				return summary, err
			}
			if err == nil {
				summary.Partner = &partner
			}
		}
	}

	latest, err := s.store.Messages().Latest(ctx, conv.ID)
	switch {
	case err == nil:
		if !latest.CreatedAt.Before(floor) {
			summary.LastMessage = &latest
		}
	case errors.Is(err, apperrors.ErrNotFound):
	default:
		return summary, err
	}

	unread, err := s.store.Messages().CountUnread(ctx, conv.ID, p.UserID, floor)
	if err != nil {
		s.log.WithContext(ctx).Warn("unread count failed",
			zap.String("conversation_id", conv.ID.String()),
			zap.Error(err),
		)
	}
	summary.UnreadCount = unread
	return summary, nil
}
