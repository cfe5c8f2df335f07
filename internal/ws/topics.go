package ws

// Topics published by the bridge for connection lifecycle events.
const (
	// TopicClientConnected is published when a new client finishes the
	// websocket handshake. Payload: {"clientID", "userID"}.
	TopicClientConnected = "ws.client.connected"
	// TopicClientDisconnected is published when a client's read pump ends.
	// Payload: {"clientID", "userID"}.
	TopicClientDisconnected = "ws.client.disconnected"
)

// Topics the bridge routes whitelisted client actions onto.
const (
	TopicRoomJoin    = "client.room.join"
	TopicMessageSend = "client.message.send"
	TopicUserOnline  = "client.user.online"
	TopicTypingStart = "client.typing.start"
	TopicTypingStop  = "client.typing.stop"
)

// actionTopics maps each whitelisted client action to its pub/sub topic.
// An action missing from this map is dropped by the bridge.
var actionTopics = map[string]string{
	ActionJoinRoom:    TopicRoomJoin,
	ActionSendMessage: TopicMessageSend,
	ActionUserOnline:  TopicUserOnline,
	ActionTyping:      TopicTypingStart,
	ActionStopTyping:  TopicTypingStop,
}
