package httpdto

import (
	"time"

	"workchat/internal/domain/message"

	"github.com/google/uuid"
)

type FileBody struct {
	Key         string `json:"key" binding:"required,max=512"`
	Name        string `json:"name" binding:"required,max=255"`
	Size        int64  `json:"size" binding:"gte=0"`
	ContentType string `json:"content_type" binding:"max=127"`
}

type MessageBody struct {
	Text string    `json:"text" binding:"max=10000"`
	File *FileBody `json:"file"`
}

func (b MessageBody) ToDomain() message.Body {
	out := message.Body{Text: b.Text}
	if b.File != nil {
		out.File = &message.FileMeta{
			Key:         b.File.Key,
			Name:        b.File.Name,
			Size:        b.File.Size,
			ContentType: b.File.ContentType,
		}
	}
	return out
}

type CreateMessageRequest struct {
	Kind    string      `json:"kind" binding:"required,msgkind"`
	Body    MessageBody `json:"body"`
	ReplyTo string      `json:"reply_to" binding:"omitempty,max=36"`
}

type EditMessageRequest struct {
	Body MessageBody `json:"body"`
}

// MessageResponse is the serialized message used by both HTTP responses
// and chat.message push frames.
type MessageResponse struct {
	ID             string        `json:"id"`
	ConversationID string        `json:"conversation_id"`
	SenderID       *string       `json:"sender_id"`
	ReplyToID      *string       `json:"reply_to_id"`
	Kind           string        `json:"kind"`
	Body           *message.Body `json:"body"`
	IsRead         bool          `json:"is_read"`
	ReadUsers      []string      `json:"read_users"`
	IsEdited       bool          `json:"is_edited"`
	IsDeleted      bool          `json:"is_deleted"`
	CreatedAt      time.Time     `json:"created_at"`
	EditedAt       *time.Time    `json:"edited_at,omitempty"`
}

// NewMessageResponse serializes m. readers are the users holding a read mark;
// is_read is true once anyone other than the sender has read it. Deleted
// messages keep their metadata but lose their body.
func NewMessageResponse(m message.Message, readers []uuid.UUID) MessageResponse {
	out := MessageResponse{
		ID:             m.ID,
		ConversationID: m.ConversationID.String(),
		Kind:           string(m.Kind),
		IsEdited:       m.EditedAt.Valid,
		IsDeleted:      m.IsDeleted(),
		CreatedAt:      m.CreatedAt,
		ReadUsers:      make([]string, 0, len(readers)),
	}
	if m.SenderID.Valid {
		s := m.SenderID.UUID.String()
		out.SenderID = &s
	}
	if m.ReplyToID.Valid {
		r := m.ReplyToID.String
		out.ReplyToID = &r
	}
	if m.EditedAt.Valid {
		t := m.EditedAt.Time
		out.EditedAt = &t
	}
	if !m.IsDeleted() {
		body := message.DecodeBody(m.Body)
		out.Body = &body
	}
	for _, r := range readers {
		if m.SentBy(r) {
			continue
		}
		out.IsRead = true
		out.ReadUsers = append(out.ReadUsers, r.String())
	}
	return out
}

type UnreadCountResponse struct {
	ConversationID string `json:"conversation_id"`
	Count          int64  `json:"count"`
}
