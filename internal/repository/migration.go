package repository

import (
	"fmt"

	"workchat/internal/domain/conversation"
	"workchat/internal/domain/message"
	"workchat/internal/domain/user"

	"gorm.io/gorm"
)

// InitSchema creates the chat tables and their supporting indexes.
func InitSchema(db *gorm.DB) error {
	// gen_random_uuid() for ad-hoc inserts; requires the pgcrypto extension.
	if err := db.Exec(`CREATE EXTENSION IF NOT EXISTS "pgcrypto";`).Error; err != nil {
		return fmt.Errorf("failed to create extension: %w", err)
	}

	if err := db.AutoMigrate(
		&user.User{},
		&conversation.Conversation{},
		&conversation.Participant{},
		&conversation.Invitation{},
		&message.Message{},
		&message.MessageRead{},
	); err != nil {
		return fmt.Errorf("auto-migration failed: %w", err)
	}

	// Conversation listing filters on active membership only.
	activeIdx := `CREATE INDEX IF NOT EXISTS idx_participants_active ON participants (user_id) WHERE left_at IS NULL;`
	if err := db.Exec(activeIdx).Error; err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}

	return nil
}
