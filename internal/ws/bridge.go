package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/nfrund/huddle/internal/pubsub"
)

// Broadcaster is the outbound delivery surface the chat and presence services
// use. All room membership mutation goes through Join; nothing else touches
// the registry.
type Broadcaster interface {
	// Join subscribes the connection to the room. Idempotent; joining a room
	// twice is not an error.
	Join(clientID, room string)
	// SendTo delivers a payload to a single connection.
	SendTo(clientID string, payload []byte)
	// BroadcastRoom delivers a payload to every connection subscribed to the
	// room, minus any excluded connection ids.
	BroadcastRoom(room string, payload []byte, exclude ...string)
	// BroadcastAll delivers a payload to every connection, minus any excluded
	// connection ids.
	BroadcastAll(payload []byte, exclude ...string)
}

// connectionEvent is the payload of the lifecycle topics.
type connectionEvent struct {
	ClientID string `json:"clientID"`
	UserID   string `json:"userID"`
}

// joinRequest subscribes a connection to a room inside the run loop.
type joinRequest struct {
	clientID string
	room     string
}

// delivery is a single outbound fan-out instruction. Exactly one of target
// and room may be set; with neither set the payload goes to all clients.
type delivery struct {
	payload []byte
	target  string
	room    string
	exclude map[string]bool
}

// Bridge owns all WebSocket connections and the room registry, and routes
// messages between connected clients and the pub/sub bus.
type Bridge struct {
	publisher pubsub.Publisher

	// clients maps connection id to client. rooms maps room name to the set
	// of subscribed connection ids. Both are owned by the Run goroutine.
	clients map[string]*Client
	rooms   map[string]map[string]*Client

	register   chan *Client
	unregister chan *Client
	joins      chan joinRequest
	deliveries chan *delivery

	originPatterns []string
}

// NewBridge initializes a Bridge ready to accept connections. allowedOrigin
// is the browser origin permitted to open cross-origin connections.
func NewBridge(pub pubsub.Publisher, allowedOrigin string) *Bridge {
	var patterns []string
	if u, err := url.Parse(allowedOrigin); err == nil && u.Host != "" {
		patterns = []string{u.Host}
	}

	return &Bridge{
		publisher:      pub,
		clients:        make(map[string]*Client),
		rooms:          make(map[string]map[string]*Client),
		register:       make(chan *Client),
		unregister:     make(chan *Client),
		joins:          make(chan joinRequest),
		deliveries:     make(chan *delivery, 256),
		originPatterns: patterns,
	}
}

// Run starts the bridge goroutine that owns client lifecycle, room
// membership, and outbound fan-out. It must run before Handler is served.
func (b *Bridge) Run(ctx context.Context) {
	slog.Info("WebSocket bridge started")
	for {
		select {
		case <-ctx.Done():
			slog.Info("WebSocket bridge stopping")
			return

		case client := <-b.register:
			b.clients[client.ID] = client
			slog.Info("Client registered", "clientID", client.ID, "userID", client.UserID)
			b.publishLifecycle(TopicClientConnected, client)

		case client := <-b.unregister:
			if _, ok := b.clients[client.ID]; !ok {
				continue
			}
			delete(b.clients, client.ID)
			for room, members := range b.rooms {
				delete(members, client.ID)
				if len(members) == 0 {
					delete(b.rooms, room)
				}
			}
			close(client.send)
			slog.Info("Client unregistered", "clientID", client.ID, "userID", client.UserID)
			b.publishLifecycle(TopicClientDisconnected, client)

		case req := <-b.joins:
			client, ok := b.clients[req.clientID]
			if !ok {
				slog.Warn("Join for unknown client", "clientID", req.clientID, "room", req.room)
				continue
			}
			members, ok := b.rooms[req.room]
			if !ok {
				members = make(map[string]*Client)
				b.rooms[req.room] = members
			}
			members[client.ID] = client
			slog.Info("Client joined room", "clientID", client.ID, "room", req.room)

		case d := <-b.deliveries:
			b.fanOut(d)
		}
	}
}

func (b *Bridge) fanOut(d *delivery) {
	if d.target != "" {
		if client, ok := b.clients[d.target]; ok {
			b.push(client, d.payload)
		}
		return
	}

	recipients := b.clients
	if d.room != "" {
		recipients = b.rooms[d.room]
	}
	for id, client := range recipients {
		if d.exclude[id] {
			continue
		}
		b.push(client, d.payload)
	}
}

// push performs a non-blocking send; a full buffer means the client is
// lagging and the message is dropped rather than throttling the bridge.
func (b *Bridge) push(client *Client, payload []byte) {
	select {
	case client.send <- payload:
	default:
		slog.Warn("Client send channel full, dropping message", "clientID", client.ID)
	}
}

func (b *Bridge) publishLifecycle(topic string, client *Client) {
	payload, err := json.Marshal(connectionEvent{ClientID: client.ID, UserID: client.UserID})
	if err != nil {
		slog.Error("Failed to marshal lifecycle event", "topic", topic, "error", err)
		return
	}
	msg := pubsub.Message{
		Topic:    topic,
		ClientID: client.ID,
		Payload:  payload,
	}
	if err := b.publisher.Publish(context.Background(), msg); err != nil {
		slog.Error("Failed to publish lifecycle event", "topic", topic, "clientID", client.ID, "error", err)
	}
}

// Join implements Broadcaster.
func (b *Bridge) Join(clientID, room string) {
	b.joins <- joinRequest{clientID: clientID, room: room}
}

// SendTo implements Broadcaster.
func (b *Bridge) SendTo(clientID string, payload []byte) {
	b.deliveries <- &delivery{payload: payload, target: clientID}
}

// BroadcastRoom implements Broadcaster.
func (b *Bridge) BroadcastRoom(room string, payload []byte, exclude ...string) {
	b.deliveries <- &delivery{payload: payload, room: room, exclude: excludeSet(exclude)}
}

// BroadcastAll implements Broadcaster.
func (b *Bridge) BroadcastAll(payload []byte, exclude ...string) {
	b.deliveries <- &delivery{payload: payload, exclude: excludeSet(exclude)}
}

func excludeSet(ids []string) map[string]bool {
	if len(ids) == 0 {
		return nil
	}
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}

// routeInbound publishes a whitelisted client frame onto the bus. Unknown
// actions and malformed envelopes are dropped; the connection survives.
func (b *Bridge) routeInbound(clientID string, frame []byte) {
	var env Envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		slog.Warn("Dropping malformed frame", "clientID", clientID, "error", err)
		return
	}

	topic, ok := actionTopics[env.Action]
	if !ok {
		slog.Warn("Dropping frame with unknown action", "clientID", clientID, "action", env.Action)
		return
	}

	msg := pubsub.Message{
		Topic:    topic,
		ClientID: clientID,
		Payload:  env.Payload,
	}
	if err := b.publisher.Publish(context.Background(), msg); err != nil {
		slog.Error("Failed to publish client frame", "clientID", clientID, "action", env.Action, "error", err)
	}
}

// Handler returns an echo.HandlerFunc that upgrades the request and attaches
// the connection to the bridge. userIDFrom extracts the stubbed identity the
// session middleware placed on the request context.
func (b *Bridge) Handler(userIDFrom func(echo.Context) string) echo.HandlerFunc {
	return func(c echo.Context) error {
		userID := userIDFrom(c)
		if userID == "" {
			slog.Error("Bridge.Handler: no identity on websocket request")
			return c.String(http.StatusUnauthorized, "No identity")
		}

		conn, err := websocket.Accept(c.Response(), c.Request(), &websocket.AcceptOptions{
			OriginPatterns: b.originPatterns,
		})
		if err != nil {
			slog.Error("Failed to upgrade connection to WebSocket", "error", err)
			return err
		}

		client := &Client{
			ID:     uuid.NewString(),
			UserID: userID,
			conn:   conn,
			send:   make(chan []byte, 256),
			bridge: b,
		}
		b.register <- client

		go client.writePump()
		go client.readPump()

		return nil
	}
}
