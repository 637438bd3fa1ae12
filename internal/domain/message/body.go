package message

import (
	"github.com/goccy/go-json"
	"gorm.io/datatypes"
)

// FileMeta describes an uploaded object referenced by a file message
type FileMeta struct {
	Key         string `json:"key"`
	Name        string `json:"name,omitempty"`
	Size        int64  `json:"size,omitempty"`
	ContentType string `json:"content_type,omitempty"`
}

// Body is the structured payload stored in messages.body
type Body struct {
	Text string    `json:"text,omitempty"`
	File *FileMeta `json:"file,omitempty"`
}

// Encode returns the JSON column value for b.
func (b Body) Encode() (datatypes.JSON, error) {
	raw, err := json.Marshal(b)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(raw), nil
}

// DecodeBody parses a stored body. Unknown or empty payloads yield a zero Body.
func DecodeBody(raw datatypes.JSON) Body {
	var b Body
	if len(raw) == 0 {
		return b
	}
	_ = json.Unmarshal(raw, &b)
	return b
}
