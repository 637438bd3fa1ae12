// Package presence defines the presence contract used by delivery and
// the socket layer, a degrade-to-offline wrapper, and an in-process store.
package presence

import (
	"context"

	"workchat/pkg/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Store records who is connected and which conversation each user has open.
// The Redis implementation lives in internal/redis.
type Store interface {
	MarkOnline(ctx context.Context, userID, conversationID uuid.UUID) error
	MarkOffline(ctx context.Context, userID uuid.UUID) error
	Refresh(ctx context.Context, userID, conversationID uuid.UUID, clientID string) error
	IsOnline(ctx context.Context, userID uuid.UUID) (bool, error)
	IsViewing(ctx context.Context, userID, conversationID uuid.UUID) (bool, error)
	BatchIsViewing(ctx context.Context, userIDs []uuid.UUID, conversationID uuid.UUID) ([]uuid.UUID, error)
	TrackConnection(ctx context.Context, userID, conversationID uuid.UUID, clientID string) error
	RemoveConnection(ctx context.Context, userID uuid.UUID, clientID string) (int64, error)
}

// Reader is the error-free view of presence used for push routing.
// Store failures read as offline.
type Reader interface {
	IsOnline(ctx context.Context, userID uuid.UUID) bool
	IsViewing(ctx context.Context, userID, conversationID uuid.UUID) bool
	BatchIsViewing(ctx context.Context, userIDs []uuid.UUID, conversationID uuid.UUID) []uuid.UUID
}

// Safe wraps a Store so lookups never fail. Errors are logged and the
// user is treated as offline.
type Safe struct {
	store Store
	log   *logger.Logger
}

func NewSafe(store Store, l *logger.Logger) *Safe {
	return &Safe{store: store, log: logger.OrNop(l)}
}

func (s *Safe) warn(ctx context.Context, op string, err error) {
	s.log.WithContext(ctx).Warn("presence unavailable, treating as offline",
		zap.String("op", op),
		zap.Error(err))
}

func (s *Safe) IsOnline(ctx context.Context, userID uuid.UUID) bool {
	ok, err := s.store.IsOnline(ctx, userID)
	if err != nil {
		s.warn(ctx, "is_online", err)
		return false
	}
	return ok
}

func (s *Safe) IsViewing(ctx context.Context, userID, conversationID uuid.UUID) bool {
	ok, err := s.store.IsViewing(ctx, userID, conversationID)
	if err != nil {
		s.warn(ctx, "is_viewing", err)
		return false
	}
	return ok
}

func (s *Safe) BatchIsViewing(ctx context.Context, userIDs []uuid.UUID, conversationID uuid.UUID) []uuid.UUID {
	viewing, err := s.store.BatchIsViewing(ctx, userIDs, conversationID)
	if err != nil {
		s.warn(ctx, "batch_is_viewing", err)
		return nil
	}
	return viewing
}
