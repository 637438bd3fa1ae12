package services

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"workchat/internal/audit"
	"workchat/internal/domain/conversation"
	"workchat/internal/domain/message"
	"workchat/internal/domain/user"
	"workchat/internal/presence"
	"workchat/internal/repository"
	apperrors "workchat/pkg/errors"
	"workchat/pkg/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// MessageView is a message together with the users who have read it.
type MessageView struct {
	Message message.Message
	Readers []uuid.UUID
}

type CreateMessageInput struct {
	Kind    message.Kind
	Body    message.Body
	ReplyTo string
}

type MessageService struct {
	store      repository.Store
	reads      *ReadTracker
	dispatcher *Dispatcher
	presence   presence.Reader
	audit      audit.Sink
	log        *logger.Logger
	now        func() time.Time
}

func NewMessageService(store repository.Store, dispatcher *Dispatcher, p presence.Reader, sink audit.Sink, l *logger.Logger) *MessageService {
	return &MessageService{
		store:      store,
		reads:      NewReadTracker(store.Reads()),
		dispatcher: dispatcher,
		presence:   p,
		audit:      audit.OrNop(sink),
		log:        logger.OrNop(l),
		now:        clock,
	}
}

func (s *MessageService) record(ctx context.Context, p user.Principal, verb string, m message.Message) {
	s.audit.Record(ctx, audit.Event{
		ActorID:    p.UserID,
		CompanyID:  p.CompanyID,
		Verb:       verb,
		TargetType: "message",
		TargetID:   m.ID,
		Extra:      map[string]interface{}{"conversation_id": m.ConversationID.String()},
		OccurredAt: s.now(),
	})
}

// validateBody checks a client supplied body against its kind. File keys
// must point into the caller's company upload prefix.
func validateBody(p user.Principal, kind message.Kind, body message.Body) error {
	if !kind.Sendable() {
		return apperrors.Validation("kind", "kind must be text or file")
	}
	switch kind {
	case message.KindText:
		if strings.TrimSpace(body.Text) == "" {
			return apperrors.Validation("body", "text messages require text")
		}
	case message.KindFile:
		if body.File == nil || body.File.Key == "" {
			return apperrors.Validation("body", "file messages require a file")
		}
		if !strings.HasPrefix(body.File.Key, UploadPrefix(p.CompanyID)) {
			return apperrors.Validation("body", "file key is outside the company upload area")
		}
	}
	return nil
}

// Create stores a message from the caller and hands it to the dispatcher.
// The message is durable before any delivery is attempted.
func (s *MessageService) Create(ctx context.Context, p user.Principal, conversationID uuid.UUID, in CreateMessageInput) (MessageView, error) {
	if err := validateBody(p, in.Kind, in.Body); err != nil {
		return MessageView{}, err
	}
	if _, _, err := activeMembership(ctx, s.store, p, conversationID); err != nil {
		return MessageView{}, err
	}

	raw, err := in.Body.Encode()
	if err != nil {
		return MessageView{}, err
	}
	id, err := uuid.NewV7()
	if err != nil {
		return MessageView{}, err
	}

	m := message.Message{
		ID:             id.String(),
		ConversationID: conversationID,
		SenderID:       uuid.NullUUID{UUID: p.UserID, Valid: true},
		Kind:           in.Kind,
		Body:           raw,
		CreatedAt:      s.now(),
	}

	var (
		conv    conversation.Conversation
		revived []uuid.UUID
	)
	err = s.store.WithTx(ctx, func(tx repository.Store) error {
		var err error
		conv, err = tx.Conversations().GetByID(ctx, conversationID)
		if err != nil {
			return err
		}

		if in.ReplyTo != "" {
			target, err := tx.Messages().GetByID(ctx, in.ReplyTo)
			if errors.Is(err, apperrors.ErrNotFound) || (err == nil && target.ConversationID != conversationID) {
				return apperrors.Validation("reply_to", "message to reply to does not exist in this conversation")
			}
			if err != nil {
				return err
			}
			m.ReplyToID = sql.NullString{String: in.ReplyTo, Valid: true}
		}

		if err := tx.Messages().Create(ctx, &m); err != nil {
			return err
		}
		if err := tx.Conversations().Touch(ctx, conversationID, m.CreatedAt); err != nil {
			return err
		}
		revived, err = s.dispatcher.Revive(ctx, tx, conv, m)
		if err != nil {
			return err
		}
		if len(revived) > 0 {
			s.log.WithContext(ctx).Info("revived direct conversation partner",
				zap.String("conversation_id", conversationID.String()),
				zap.Int("revived", len(revived)),
			)
		}
		return nil
	})
	if err != nil {
		return MessageView{}, err
	}

	readers := s.dispatcher.Deliver(ctx, conv, m, revived)
	s.record(ctx, p, audit.VerbMessageCreated, m)
	return MessageView{Message: m, Readers: readers}, nil
}

// List returns the messages visible to the caller, oldest first, and marks
// the ones they had not read yet. Senders who are online get a read event.
func (s *MessageService) List(ctx context.Context, p user.Principal, conversationID uuid.UUID) ([]MessageView, error) {
	_, self, err := activeMembership(ctx, s.store, p, conversationID)
	if err != nil {
		return nil, err
	}

	msgs, err := s.store.Messages().ListSince(ctx, conversationID, self.JoinedAt)
	if err != nil {
		return nil, err
	}

	now := s.now()
	ids := make([]string, 0, len(msgs))
	for _, m := range msgs {
		ids = append(ids, m.ID)
		if m.IsDeleted() || m.SentBy(p.UserID) {
			continue
		}
		first, err := s.reads.MarkRead(ctx, m, p.UserID, now)
		if err != nil {
			return nil, err
		}
		// system messages are read like any other, but nobody is told
		if first && m.SenderID.Valid && s.presence.IsOnline(ctx, m.SenderID.UUID) {
			s.dispatcher.NotifyRead(ctx, conversationID, m.ID, p.UserID)
		}
	}

	readers, err := s.reads.ReadersOfMany(ctx, ids)
	if err != nil {
		return nil, err
	}

	out := make([]MessageView, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, MessageView{Message: m, Readers: readers[m.ID]})
	}
	return out, nil
}

// ownMessage loads a message of the conversation authored by the caller.
func (s *MessageService) ownMessage(ctx context.Context, p user.Principal, conversationID uuid.UUID, messageID string) (message.Message, error) {
	_, self, err := activeMembership(ctx, s.store, p, conversationID)
	if err != nil {
		return message.Message{}, err
	}
	m, err := s.store.Messages().GetByID(ctx, messageID)
	if err != nil {
		return message.Message{}, err
	}
	if m.ConversationID != conversationID || m.CreatedAt.Before(self.JoinedAt) {
		return message.Message{}, apperrors.NotFound("message")
	}
	if !m.SentBy(p.UserID) {
		return message.Message{}, apperrors.ErrForbidden
	}
	if m.IsDeleted() {
		return message.Message{}, apperrors.Validation("message", "message is deleted")
	}
	return m, nil
}

func (s *MessageService) view(ctx context.Context, m message.Message) (MessageView, error) {
	readers, err := s.reads.ReadersOf(ctx, m.ID)
	if err != nil {
		return MessageView{}, err
	}
	return MessageView{Message: m, Readers: readers}, nil
}

func (s *MessageService) Edit(ctx context.Context, p user.Principal, conversationID uuid.UUID, messageID string, body message.Body) (MessageView, error) {
	m, err := s.ownMessage(ctx, p, conversationID, messageID)
	if err != nil {
		return MessageView{}, err
	}
	if err := validateBody(p, m.Kind, body); err != nil {
		return MessageView{}, err
	}
	raw, err := body.Encode()
	if err != nil {
		return MessageView{}, err
	}
	if err := s.store.Messages().MarkEdited(ctx, m.ID, raw, s.now()); err != nil {
		return MessageView{}, err
	}

	updated, err := s.store.Messages().GetByID(ctx, m.ID)
	if err != nil {
		return MessageView{}, err
	}
	s.record(ctx, p, audit.VerbMessageEdited, updated)
	return s.view(ctx, updated)
}

func (s *MessageService) Delete(ctx context.Context, p user.Principal, conversationID uuid.UUID, messageID string) (MessageView, error) {
	m, err := s.ownMessage(ctx, p, conversationID, messageID)
	if err != nil {
		return MessageView{}, err
	}
	if err := s.store.Messages().MarkDeleted(ctx, m.ID, s.now()); err != nil {
		return MessageView{}, err
	}

	updated, err := s.store.Messages().GetByID(ctx, m.ID)
	if err != nil {
		return MessageView{}, err
	}
	s.record(ctx, p, audit.VerbMessageDeleted, updated)
	return s.view(ctx, updated)
}

// UnreadCount counts visible messages from others the caller has not read.
func (s *MessageService) UnreadCount(ctx context.Context, p user.Principal, conversationID uuid.UUID) (int64, error) {
	_, self, err := activeMembership(ctx, s.store, p, conversationID)
	if err != nil {
		return 0, err
	}
	return s.store.Messages().CountUnread(ctx, conversationID, p.UserID, self.JoinedAt)
}
