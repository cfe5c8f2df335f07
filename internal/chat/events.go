package chat

// Client event payloads. Validation tags enforce the invariant that a
// message always has a non-empty room, author, and content.

// JoinRoomPayload subscribes the connection to a named room.
type JoinRoomPayload struct {
	Room string `json:"room" validate:"required"`
}

// SendMessagePayload carries an outgoing chat message. Type is optional and
// defaults to "text".
type SendMessagePayload struct {
	Room    string `json:"room" validate:"required"`
	Author  string `json:"author" validate:"required"`
	Content string `json:"content" validate:"required"`
	Type    string `json:"type" validate:"omitempty,oneof=text image audio"`
}

// TypingPayload announces that an author is typing in a room.
type TypingPayload struct {
	Room   string `json:"room" validate:"required"`
	Author string `json:"author" validate:"required"`
}

// StopTypingPayload clears the typing indicator for a room.
type StopTypingPayload struct {
	Room string `json:"room" validate:"required"`
}

// TypingEvent is the outbound payload of user_typing.
type TypingEvent struct {
	Author string `json:"author"`
}
