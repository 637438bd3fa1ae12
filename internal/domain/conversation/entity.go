package conversation

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// Role of a participant inside a conversation
type Role string

const (
	RoleOwner  Role = "owner"
	RoleMember Role = "member"
	RoleBot    Role = "bot"
)

// MaxTitleLength is the longest title a group conversation can carry.
const MaxTitleLength = 50

// DirectCapacity is the number of active members a DM may hold.
const DirectCapacity = 2

// Conversation represents the conversations table
type Conversation struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	CompanyID uuid.UUID `gorm:"type:uuid;index:chat_recent_idx,priority:1"`
	Title     sql.NullString
	IsGroup   bool `gorm:"index"`
	IconKey   sql.NullString
	CreatedAt time.Time
	UpdatedAt time.Time `gorm:"index:chat_recent_idx,priority:2,sort:desc"`

	// Relationships
	Participants []Participant `gorm:"foreignKey:ConversationID"`
}

func (c Conversation) IsDM() bool {
	return !c.IsGroup
}

// ActiveParticipants returns members whose left_at is unset.
func (c Conversation) ActiveParticipants() []Participant {
	out := make([]Participant, 0, len(c.Participants))
	for _, p := range c.Participants {
		if p.IsActive() {
			out = append(out, p)
		}
	}
	return out
}

// Participant represents the participants table.
// A row survives leaving; left_at marks the membership window as closed.
type Participant struct {
	ConversationID uuid.UUID `gorm:"type:uuid;primaryKey"`
	UserID         uuid.UUID `gorm:"type:uuid;primaryKey;index"`
	Role           Role      `gorm:"size:10"`
	JoinedAt       time.Time
	LeftAt         sql.NullTime
}

func (p Participant) IsActive() bool {
	return !p.LeftAt.Valid
}

// Invitation represents the conversation_invitations table
type Invitation struct {
	ConversationID uuid.UUID `gorm:"type:uuid;primaryKey"`
	InviteeID      uuid.UUID `gorm:"type:uuid;primaryKey;index"`
	InvitedBy      uuid.UUID `gorm:"type:uuid"`
	InvitedAt      time.Time
	IsParticipated bool
}

func (Conversation) TableName() string {
	return "conversations"
}

func (Participant) TableName() string {
	return "participants"
}

func (Invitation) TableName() string {
	return "conversation_invitations"
}
