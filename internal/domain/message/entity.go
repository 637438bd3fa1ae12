package message

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Kind of message payload
type Kind string

const (
	KindText   Kind = "text"
	KindFile   Kind = "file"
	KindSystem Kind = "system"
)

// Sendable reports whether clients may post messages of this kind.
// System messages are written by the server only.
func (k Kind) Sendable() bool {
	switch k {
	case KindText, KindFile:
		return true
	}
	return false
}

// Message represents the messages table.
// ID is a UUIDv7 string: unguessable and ordered by creation time.
type Message struct {
	ID             string    `gorm:"primaryKey;size:36"`
	ConversationID uuid.UUID `gorm:"type:uuid;index:msg_conv_time_idx,priority:1"`
	SenderID       uuid.NullUUID `gorm:"type:uuid"`
	ReplyToID      sql.NullString `gorm:"size:36"`
	Kind           Kind           `gorm:"size:10;index"`
	Body           datatypes.JSON `gorm:"type:jsonb"`
	CreatedAt      time.Time      `gorm:"index:msg_conv_time_idx,priority:2,sort:desc"`
	EditedAt       sql.NullTime
	DeletedAt      sql.NullTime
}

func (m Message) IsDeleted() bool {
	return m.DeletedAt.Valid
}

// SentBy reports whether userID authored the message.
func (m Message) SentBy(userID uuid.UUID) bool {
	return m.SenderID.Valid && m.SenderID.UUID == userID
}

// MessageRead represents message_reads; one row per (message, user), first read wins.
type MessageRead struct {
	MessageID string    `gorm:"primaryKey;size:36"`
	UserID    uuid.UUID `gorm:"type:uuid;primaryKey;index:msgread_user_msg_idx"`
	ReadAt    time.Time
}

func (Message) TableName() string {
	return "messages"
}

func (MessageRead) TableName() string {
	return "message_reads"
}
