package domain

import "time"

// MessageType classifies the content of a chat message.
type MessageType string

const (
	MessageTypeText  MessageType = "text"
	MessageTypeImage MessageType = "image"
	MessageTypeAudio MessageType = "audio"
)

// IsValid reports whether t is one of the known message types.
func (t MessageType) IsValid() bool {
	switch t {
	case MessageTypeText, MessageTypeImage, MessageTypeAudio:
		return true
	}
	return false
}

// Message is a persisted chat message. Identity and CreatedAt are assigned by
// the store on insert; the record is immutable afterwards except Delivered.
type Message struct {
	ID        string      `json:"id,omitempty"`
	Room      string      `json:"room"`
	Author    string      `json:"author"`
	Content   string      `json:"content"`
	Type      MessageType `json:"type"`
	CreatedAt time.Time   `json:"createdAt"`
	Delivered bool        `json:"delivered"`
}
