package events

import (
	"github.com/goccy/go-json"
	"github.com/google/uuid"
)

// Push event types delivered to conversation groups
const (
	TypeChatMessage = "chat.message"
	TypeChatRead    = "chat.read"
)

// Envelope is the frame written to every socket in a conversation group.
type Envelope struct {
	Type      string      `json:"type"`
	Message   interface{} `json:"message,omitempty"`
	MessageID string      `json:"message_id,omitempty"`
	ReaderID  string      `json:"reader_id,omitempty"`
}

func NewMessageEnvelope(message interface{}) Envelope {
	return Envelope{Type: TypeChatMessage, Message: message}
}

func NewReadEnvelope(messageID string, readerID uuid.UUID) Envelope {
	return Envelope{Type: TypeChatRead, MessageID: messageID, ReaderID: readerID.String()}
}

func (e Envelope) Encode() ([]byte, error) {
	return json.Marshal(e)
}

// DecodeEnvelope parses a frame. Message stays as generic JSON.
func DecodeEnvelope(data []byte) (Envelope, error) {
	var e Envelope
	err := json.Unmarshal(data, &e)
	return e, err
}
