package ws

import "encoding/json"

// Envelope is the structure every client-to-server frame must carry.
type Envelope struct {
	Action  string          `json:"action"`
	Payload json.RawMessage `json:"payload"`
}

// Event is the structure of every server-to-client frame.
type Event struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

// NewEvent marshals a server-to-client event. Marshal failures are a
// programming error on the payload type and surface to the caller.
func NewEvent(eventType string, payload any) ([]byte, error) {
	return json.Marshal(Event{Type: eventType, Payload: payload})
}

// Server-to-client event types.
const (
	EventLoadHistory       = "load_history"
	EventReceiveMessage    = "receive_message"
	EventUserStatusChange  = "user_status_change"
	EventUserTyping        = "user_typing"
	EventUserStoppedTyping = "user_stopped_typing"
)

// Client-to-server actions.
const (
	ActionJoinRoom    = "join_room"
	ActionSendMessage = "send_message"
	ActionUserOnline  = "user_online"
	ActionTyping      = "typing"
	ActionStopTyping  = "stop_typing"
)
