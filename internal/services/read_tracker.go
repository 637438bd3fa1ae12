package services

import (
	"context"
	"time"

	"workchat/internal/domain/message"
	"workchat/internal/repository"

	"github.com/google/uuid"
)

// ReadTracker records per-user read marks. First read wins; senders are
// never recorded as readers of their own messages.
type ReadTracker struct {
	reads repository.MessageReadRepository
}

func NewReadTracker(reads repository.MessageReadRepository) *ReadTracker {
	return &ReadTracker{reads: reads}
}

// MarkRead reports whether this call created the mark.
func (t *ReadTracker) MarkRead(ctx context.Context, m message.Message, userID uuid.UUID, at time.Time) (bool, error) {
	if m.SentBy(userID) {
		return false, nil
	}
	return t.reads.MarkRead(ctx, m.ID, userID, at)
}

func (t *ReadTracker) IsRead(ctx context.Context, messageID string, userID uuid.UUID) (bool, error) {
	return t.reads.IsRead(ctx, messageID, userID)
}

func (t *ReadTracker) ReadersOf(ctx context.Context, messageID string) ([]uuid.UUID, error) {
	return t.reads.ReadersOf(ctx, messageID)
}

func (t *ReadTracker) ReadersOfMany(ctx context.Context, messageIDs []string) (map[string][]uuid.UUID, error) {
	return t.reads.ReadersOfMany(ctx, messageIDs)
}
