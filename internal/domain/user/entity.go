package user

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// User represents the users table. Accounts are provisioned elsewhere;
// chat only reads identity and tenant.
type User struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey"`
	CompanyID   uuid.UUID `gorm:"type:uuid;index"`
	Username    string
	DisplayName string
	IconURL     sql.NullString
	IsActive    bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (User) TableName() string {
	return "users"
}

// Principal is the caller identity derived from an access token.
// The zero value is the anonymous principal.
type Principal struct {
	UserID    uuid.UUID
	CompanyID uuid.UUID
}

// Anonymous is returned for missing, expired or malformed tokens.
var Anonymous = Principal{}

func (p Principal) IsAnonymous() bool {
	return p.UserID == uuid.Nil
}
