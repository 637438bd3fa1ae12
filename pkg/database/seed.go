package database

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	"workchat/internal/domain/conversation"
	"workchat/internal/domain/message"
	"workchat/internal/domain/user"
	"workchat/internal/repository"

	"github.com/google/uuid"
)

// SeedConfig holds configuration for seeding the database
type SeedConfig struct {
	CompanyID     uuid.UUID
	UserCount     int
	GroupTitle    string
	WelcomeText   string
	UsernameStart int
}

// DefaultSeedConfig returns default seed configuration
func DefaultSeedConfig() *SeedConfig {
	return &SeedConfig{
		CompanyID:     uuid.New(),
		UserCount:     5,
		GroupTitle:    "general",
		WelcomeText:   "Welcome to workchat",
		UsernameStart: 1,
	}
}

// SeedResult holds the result of the seeding operation
type SeedResult struct {
	CompanyID     uuid.UUID
	Users         []user.User
	Conversations []conversation.Conversation
	Messages      []message.Message
}

// Seed creates one company with a handful of users, a group holding all of
// them with a system welcome message, and a DM between the first two users.
// Everything is written in one transaction.
func Seed(ctx context.Context, store repository.Store, cfg *SeedConfig) (*SeedResult, error) {
	if cfg == nil {
		cfg = DefaultSeedConfig()
	}
	if cfg.UserCount < 2 {
		return nil, fmt.Errorf("seeding needs at least 2 users, got %d", cfg.UserCount)
	}

	result := &SeedResult{CompanyID: cfg.CompanyID}
	log.Println("Starting database seeding...")

	err := store.WithTx(ctx, func(tx repository.Store) error {
		now := time.Now().UTC().Truncate(time.Microsecond)

		for i := 0; i < cfg.UserCount; i++ {
			n := cfg.UsernameStart + i
			u := user.User{
				ID:          uuid.New(),
				CompanyID:   cfg.CompanyID,
				Username:    fmt.Sprintf("user%d", n),
				DisplayName: fmt.Sprintf("Test User %d", n),
				IsActive:    true,
			}
			if err := tx.Users().Create(ctx, &u); err != nil {
				return fmt.Errorf("create user %s: %w", u.Username, err)
			}
			result.Users = append(result.Users, u)
		}

		group := conversation.Conversation{
			ID:        uuid.New(),
			CompanyID: cfg.CompanyID,
			IsGroup:   true,
			Title:     sql.NullString{String: cfg.GroupTitle, Valid: true},
			CreatedAt: now,
			UpdatedAt: now,
		}
		dm := conversation.Conversation{
			ID:        uuid.New(),
			CompanyID: cfg.CompanyID,
			CreatedAt: now,
			UpdatedAt: now,
		}
		for _, c := range []*conversation.Conversation{&group, &dm} {
			if err := tx.Conversations().Create(ctx, c); err != nil {
				return fmt.Errorf("create conversation: %w", err)
			}
		}

		for i, u := range result.Users {
			role := conversation.RoleMember
			if i == 0 {
				role = conversation.RoleOwner
			}
			if err := tx.Participants().Add(ctx, &conversation.Participant{
				ConversationID: group.ID,
				UserID:         u.ID,
				Role:           role,
				JoinedAt:       now,
			}); err != nil {
				return fmt.Errorf("add group participant: %w", err)
			}
		}
		for _, u := range result.Users[:2] {
			if err := tx.Participants().Add(ctx, &conversation.Participant{
				ConversationID: dm.ID,
				UserID:         u.ID,
				Role:           conversation.RoleMember,
				JoinedAt:       now,
			}); err != nil {
				return fmt.Errorf("add dm participant: %w", err)
			}
		}

		body, err := message.Body{Text: cfg.WelcomeText}.Encode()
		if err != nil {
			return err
		}
		id, err := uuid.NewV7()
		if err != nil {
			return err
		}
		welcome := message.Message{
			ID:             id.String(),
			ConversationID: group.ID,
			Kind:           message.KindSystem,
			Body:           body,
			CreatedAt:      now,
		}
		if err := tx.Messages().Create(ctx, &welcome); err != nil {
			return fmt.Errorf("create welcome message: %w", err)
		}

		result.Conversations = []conversation.Conversation{group, dm}
		result.Messages = []message.Message{welcome}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Printf("Seeded company %s with %d users", cfg.CompanyID, len(result.Users))
	return result, nil
}
