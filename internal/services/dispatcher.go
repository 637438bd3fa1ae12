package services

import (
	"context"

	"workchat/internal/domain/conversation"
	"workchat/internal/domain/message"
	"workchat/internal/events"
	"workchat/internal/presence"
	"workchat/internal/repository"
	"workchat/internal/transport/httpdto"
	"workchat/pkg/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Dispatcher decides, for a freshly stored message, who gets it live.
// Only recipients with the conversation open are pushed to, and those
// recipients are marked as having read the message.
type Dispatcher struct {
	reads       *ReadTracker
	presence    presence.Reader
	broadcaster events.Broadcaster
	log         *logger.Logger
}

func NewDispatcher(reads *ReadTracker, p presence.Reader, b events.Broadcaster, l *logger.Logger) *Dispatcher {
	return &Dispatcher{
		reads:       reads,
		presence:    p,
		broadcaster: b,
		log:         logger.OrNop(l),
	}
}

// Revive reactivates a DM partner who had left, moving their joined_at to
// the message time. History before the revival stays hidden from them.
// A DM never goes above DirectCapacity active members.
// Must run in the transaction that stores m.
func (d *Dispatcher) Revive(ctx context.Context, tx repository.Store, conv conversation.Conversation, m message.Message) ([]uuid.UUID, error) {
	if !conv.IsDM() {
		return nil, nil
	}
	active, err := tx.Participants().CountActive(ctx, conv.ID)
	if err != nil {
		return nil, err
	}
	var revived []uuid.UUID
	for _, p := range conv.Participants {
		if m.SentBy(p.UserID) || p.IsActive() {
			continue
		}
		if active >= conversation.DirectCapacity {
			break
		}
		if err := tx.Participants().Reactivate(ctx, conv.ID, p.UserID, m.CreatedAt); err != nil {
			return nil, err
		}
		revived = append(revived, p.UserID)
		active++
	}
	return revived, nil
}

// recipients lists the users a message should reach: the active members
// other than the sender, plus the DM partners Revive brought back.
func recipients(conv conversation.Conversation, m message.Message, revived []uuid.UUID) []uuid.UUID {
	out := make([]uuid.UUID, 0, len(conv.Participants))
	for _, p := range conv.Participants {
		if m.SentBy(p.UserID) {
			continue
		}
		if !p.IsActive() && !containsUser(revived, p.UserID) {
			continue
		}
		out = append(out, p.UserID)
	}
	return out
}

func containsUser(ids []uuid.UUID, id uuid.UUID) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

// Deliver runs after the message is committed. It returns the users that
// were marked as readers. Presence and push failures are logged, never returned.
func (d *Dispatcher) Deliver(ctx context.Context, conv conversation.Conversation, m message.Message, revived []uuid.UUID) []uuid.UUID {
	targets := recipients(conv, m, revived)
	if len(targets) == 0 {
		return nil
	}

	var viewers []uuid.UUID
	if conv.IsDM() {
		if d.presence.IsViewing(ctx, targets[0], conv.ID) {
			viewers = targets[:1]
		}
	} else {
		viewers = d.presence.BatchIsViewing(ctx, targets, conv.ID)
	}
	if len(viewers) == 0 {
		return nil
	}

	readers := make([]uuid.UUID, 0, len(viewers))
	for _, v := range viewers {
		if _, err := d.reads.MarkRead(ctx, m, v, clock()); err != nil {
			d.log.WithContext(ctx).Warn("mark read on delivery failed",
				zap.String("message_id", m.ID),
				zap.String("reader_id", v.String()),
				zap.Error(err),
			)
			continue
		}
		readers = append(readers, v)
	}

	env := events.NewMessageEnvelope(httpdto.NewMessageResponse(m, readers))
	if err := d.broadcaster.GroupSend(ctx, conv.ID, env); err != nil {
		d.log.WithContext(ctx).Warn("transport unavailable, message stays durable",
			zap.String("conversation_id", conv.ID.String()),
			zap.String("message_id", m.ID),
			zap.Error(err),
		)
	}
	return readers
}

// NotifyRead tells the conversation that readerID has read messageID.
func (d *Dispatcher) NotifyRead(ctx context.Context, conversationID uuid.UUID, messageID string, readerID uuid.UUID) {
	if err := d.broadcaster.GroupSend(ctx, conversationID, events.NewReadEnvelope(messageID, readerID)); err != nil {
		d.log.WithContext(ctx).Warn("transport unavailable, read event dropped",
			zap.String("conversation_id", conversationID.String()),
			zap.String("message_id", messageID),
			zap.Error(err),
		)
	}
}
