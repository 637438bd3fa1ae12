package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"workchat/internal/domain/conversation"
	"workchat/internal/domain/message"
	"workchat/internal/domain/user"
)

type UserRepository interface {
	Create(ctx context.Context, u *user.User) error
	GetByID(ctx context.Context, id uuid.UUID) (user.User, error)
	GetByIDs(ctx context.Context, ids []uuid.UUID) ([]user.User, error)
}

type ConversationRepository interface {
	Create(ctx context.Context, c *conversation.Conversation) error
	GetByID(ctx context.Context, id uuid.UUID) (conversation.Conversation, error)
	Update(ctx context.Context, c conversation.Conversation) error
	Touch(ctx context.Context, id uuid.UUID, at time.Time) error
	// Delete removes the conversation with its participants, invitations,
	// messages and read marks.
	Delete(ctx context.Context, id uuid.UUID) error

	// FindDirect returns the tenant's DM in which both users hold a row,
	// active or not.
	FindDirect(ctx context.Context, companyID, userA, userB uuid.UUID) (conversation.Conversation, error)
	// LockDirectPair serializes direct conversation lookups for a pair of
	// users until the surrounding transaction ends.
	LockDirectPair(ctx context.Context, userA, userB uuid.UUID) error
	ListForUser(ctx context.Context, companyID, userID uuid.UUID) ([]conversation.Conversation, error)
}

type ParticipantRepository interface {
	Add(ctx context.Context, p *conversation.Participant) error
	Get(ctx context.Context, conversationID, userID uuid.UUID) (conversation.Participant, error)
	List(ctx context.Context, conversationID uuid.UUID) ([]conversation.Participant, error)
	CountActive(ctx context.Context, conversationID uuid.UUID) (int64, error)
	Count(ctx context.Context, conversationID uuid.UUID) (int64, error)
	Reactivate(ctx context.Context, conversationID, userID uuid.UUID, joinedAt time.Time) error
	MarkLeft(ctx context.Context, conversationID, userID uuid.UUID, at time.Time) error
	Delete(ctx context.Context, conversationID, userID uuid.UUID) error
}

type MessageRepository interface {
	Create(ctx context.Context, m *message.Message) error
	GetByID(ctx context.Context, id string) (message.Message, error)
	// ListSince returns messages created at or after floor, oldest first.
	ListSince(ctx context.Context, conversationID uuid.UUID, floor time.Time) ([]message.Message, error)
	Latest(ctx context.Context, conversationID uuid.UUID) (message.Message, error)
	MarkEdited(ctx context.Context, id string, body datatypes.JSON, at time.Time) error
	MarkDeleted(ctx context.Context, id string, at time.Time) error
	// CountUnread counts messages since floor not sent by userID and not read by userID.
	CountUnread(ctx context.Context, conversationID, userID uuid.UUID, floor time.Time) (int64, error)
}

type MessageReadRepository interface {
	// MarkRead inserts the read mark if absent and reports whether this call created it.
	MarkRead(ctx context.Context, messageID string, userID uuid.UUID, at time.Time) (bool, error)
	IsRead(ctx context.Context, messageID string, userID uuid.UUID) (bool, error)
	ReadersOf(ctx context.Context, messageID string) ([]uuid.UUID, error)
	ReadersOfMany(ctx context.Context, messageIDs []string) (map[string][]uuid.UUID, error)
}

type InvitationRepository interface {
	Create(ctx context.Context, inv *conversation.Invitation) error
	Get(ctx context.Context, conversationID, inviteeID uuid.UUID) (conversation.Invitation, error)
	ListPendingForUser(ctx context.Context, inviteeID uuid.UUID) ([]conversation.Invitation, error)
	MarkParticipated(ctx context.Context, conversationID, inviteeID uuid.UUID) error
	Delete(ctx context.Context, conversationID, inviteeID uuid.UUID) error
}

// Store groups the per-entity repositories behind one unit of work.
type Store interface {
	Users() UserRepository
	Conversations() ConversationRepository
	Participants() ParticipantRepository
	Messages() MessageRepository
	Reads() MessageReadRepository
	Invitations() InvitationRepository

	// WithTx runs fn against a Store bound to a single transaction.
	// A returned error rolls every write in fn back.
	WithTx(ctx context.Context, fn func(tx Store) error) error
}
