package repository

import (
	"context"

	"github.com/pkg/errors"
	"gorm.io/gorm"
)

// GormStore is the Postgres-backed Store.
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) Users() UserRepository {
	return NewUserRepository(s.db)
}

func (s *GormStore) Conversations() ConversationRepository {
	return NewConversationRepository(s.db)
}

func (s *GormStore) Participants() ParticipantRepository {
	return NewParticipantRepository(s.db)
}

func (s *GormStore) Messages() MessageRepository {
	return NewMessageRepository(s.db)
}

func (s *GormStore) Reads() MessageReadRepository {
	return NewMessageReadRepository(s.db)
}

func (s *GormStore) Invitations() InvitationRepository {
	return NewInvitationRepository(s.db)
}

func (s *GormStore) WithTx(ctx context.Context, fn func(tx Store) error) error {
	if s.db == nil {
		return errors.New("database not initialized")
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&GormStore{db: tx})
	})
}
