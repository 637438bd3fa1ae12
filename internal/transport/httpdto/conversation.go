package httpdto

import (
	"database/sql"
	"time"

	"workchat/internal/domain/conversation"
	"workchat/internal/domain/user"

	"github.com/google/uuid"
	"github.com/jinzhu/copier"
)

type CreateConversationRequest struct {
	IsGroup bool   `json:"is_group"`
	Title   string `json:"title" binding:"max=50"`
	IconKey string `json:"icon_key" binding:"max=255"`
	Partner string `json:"partner" binding:"omitempty,uuid"`
}

type UpdateConversationRequest struct {
	Title   *string `json:"title" binding:"omitempty,max=50"`
	IconKey *string `json:"icon_key" binding:"omitempty,max=255"`
	IsGroup *bool   `json:"is_group"`
}

type AddParticipantRequest struct {
	UserID string `json:"user_id" binding:"required,uuid"`
	Role   string `json:"role" binding:"omitempty,oneof=owner member bot"`
}

type InviteRequest struct {
	Partners []string `json:"partners" binding:"required,min=1,dive,uuid"`
}

type RespondInvitationRequest struct {
	IsParticipated *bool `json:"is_participated" binding:"required"`
}

type UserResponse struct {
	ID          string  `json:"id"`
	Username    string  `json:"username"`
	DisplayName string  `json:"display_name"`
	IconURL     *string `json:"icon_url"`
}

type ParticipantResponse struct {
	UserID   string     `json:"user_id"`
	Role     string     `json:"role"`
	JoinedAt time.Time  `json:"joined_at"`
	LeftAt   *time.Time `json:"left_at"`
}

type LastMessageResponse struct {
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

type ConversationResponse struct {
	ID          string                `json:"id"`
	CompanyID   string                `json:"company_id"`
	Title       *string               `json:"title"`
	IsGroup     bool                  `json:"is_group"`
	IconKey     *string               `json:"icon_key"`
	CreatedAt   time.Time             `json:"created_at"`
	UpdatedAt   time.Time             `json:"updated_at"`
	Members     []ParticipantResponse `json:"participants"`
	PartnerUser *UserResponse         `json:"partner_user,omitempty"`
	LastMessage *LastMessageResponse  `json:"last_message,omitempty"`
	UnreadCount int64                 `json:"unread_count"`
}

type ConversationListItem struct {
	Conversation ConversationResponse `json:"conversation"`
	IsInvited    bool                 `json:"is_invited"`
	InvitedBy    *string              `json:"invited_by,omitempty"`
}

type InvitationResponse struct {
	ConversationID string    `json:"conversation_id"`
	InviteeID      string    `json:"invitee_id"`
	InvitedBy      string    `json:"invited_by"`
	InvitedAt      time.Time `json:"invited_at"`
	IsParticipated bool      `json:"is_participated"`
}

// copyOptions converts storage column types to their JSON shapes.
var copyOptions = copier.Option{
	Converters: []copier.TypeConverter{
		{
			SrcType: uuid.UUID{},
			DstType: copier.String,
			Fn: func(src interface{}) (interface{}, error) {
				return src.(uuid.UUID).String(), nil
			},
		},
		{
			SrcType: sql.NullString{},
			DstType: (*string)(nil),
			Fn: func(src interface{}) (interface{}, error) {
				ns := src.(sql.NullString)
				if !ns.Valid {
					return (*string)(nil), nil
				}
				s := ns.String
				return &s, nil
			},
		},
		{
			SrcType: sql.NullTime{},
			DstType: (*time.Time)(nil),
			Fn: func(src interface{}) (interface{}, error) {
				nt := src.(sql.NullTime)
				if !nt.Valid {
					return (*time.Time)(nil), nil
				}
				t := nt.Time
				return &t, nil
			},
		},
		{
			SrcType: conversation.Role(""),
			DstType: copier.String,
			Fn: func(src interface{}) (interface{}, error) {
				return string(src.(conversation.Role)), nil
			},
		},
	},
}

func NewUserResponse(u user.User) (UserResponse, error) {
	var out UserResponse
	err := copier.CopyWithOption(&out, &u, copyOptions)
	return out, err
}

func NewParticipantResponse(p conversation.Participant) (ParticipantResponse, error) {
	var out ParticipantResponse
	err := copier.CopyWithOption(&out, &p, copyOptions)
	return out, err
}

func NewConversationResponse(c conversation.Conversation) (ConversationResponse, error) {
	var out ConversationResponse
	if err := copier.CopyWithOption(&out, &c, copyOptions); err != nil {
		return out, err
	}
	out.Members = make([]ParticipantResponse, 0, len(c.Participants))
	for _, p := range c.Participants {
		pr, err := NewParticipantResponse(p)
		if err != nil {
			return out, err
		}
		out.Members = append(out.Members, pr)
	}
	return out, nil
}

func NewInvitationResponse(inv conversation.Invitation) (InvitationResponse, error) {
	var out InvitationResponse
	err := copier.CopyWithOption(&out, &inv, copyOptions)
	return out, err
}
