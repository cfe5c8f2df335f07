package chat

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/go-playground/validator/v10"
	"github.com/nfrund/huddle/internal/domain"
	"github.com/nfrund/huddle/internal/pubsub"
	"github.com/nfrund/huddle/internal/ws"
)

// MessageRepository is the slice of the record store the chat service needs.
type MessageRepository interface {
	Insert(ctx context.Context, room, author, content string, msgType domain.MessageType) (*domain.Message, error)
	RecentByRoom(ctx context.Context, room string, limit int) ([]*domain.Message, error)
}

// Service implements the room protocol: join with history replay, persist
// then broadcast on send, and ephemeral typing fan-out.
type Service struct {
	subscriber   pubsub.Subscriber
	broadcaster  ws.Broadcaster
	messages     MessageRepository
	historyLimit int
	validate     *validator.Validate
	logger       *slog.Logger
}

// NewService creates the chat service.
func NewService(sub pubsub.Subscriber, broadcaster ws.Broadcaster, messages MessageRepository, historyLimit int) *Service {
	return &Service{
		subscriber:   sub,
		broadcaster:  broadcaster,
		messages:     messages,
		historyLimit: historyLimit,
		validate:     validator.New(),
		logger:       slog.Default().With("service", "chat"),
	}
}

// Start begins listening for client chat events. Subscriptions run until the
// context is canceled.
func (s *Service) Start(ctx context.Context) {
	s.logger.Info("Starting chat service")

	subscriptions := map[string]pubsub.Handler{
		ws.TopicRoomJoin:    s.handleJoin,
		ws.TopicMessageSend: s.handleSend,
		ws.TopicTypingStart: s.handleTyping,
		ws.TopicTypingStop:  s.handleStopTyping,
	}

	for topic, handler := range subscriptions {
		if err := s.subscriber.Subscribe(ctx, topic, handler); err != nil {
			s.logger.Error("Failed to subscribe", "topic", topic, "error", err)
		}
	}
}

// handleJoin subscribes the connection to the room and replays recent
// history to the joining connection only.
func (s *Service) handleJoin(ctx context.Context, msg pubsub.Message) error {
	var payload JoinRoomPayload
	if !s.decode(msg, &payload) {
		return nil
	}

	s.broadcaster.Join(msg.ClientID, payload.Room)

	history, err := s.messages.RecentByRoom(ctx, payload.Room, s.historyLimit)
	if err != nil {
		// The joining client simply sees an empty transcript.
		s.logger.Error("Failed to load room history", "room", payload.Room, "clientID", msg.ClientID, "error", err)
		return nil
	}

	event, err := ws.NewEvent(ws.EventLoadHistory, history)
	if err != nil {
		s.logger.Error("Failed to encode history event", "room", payload.Room, "error", err)
		return nil
	}
	s.broadcaster.SendTo(msg.ClientID, event)

	return nil
}

// handleSend persists the message and then broadcasts the persisted copy,
// with its store-assigned id and timestamp, to the whole room including the
// sender. On a store failure nothing is delivered and the sender gets no
// feedback.
func (s *Service) handleSend(ctx context.Context, msg pubsub.Message) error {
	var payload SendMessagePayload
	if !s.decode(msg, &payload) {
		return nil
	}

	msgType := domain.MessageType(payload.Type)
	if payload.Type == "" {
		msgType = domain.MessageTypeText
	}

	persisted, err := s.messages.Insert(ctx, payload.Room, payload.Author, payload.Content, msgType)
	if err != nil {
		s.logger.Error("Failed to persist message, not broadcasting",
			"room", payload.Room, "author", payload.Author, "error", err)
		return nil
	}

	event, err := ws.NewEvent(ws.EventReceiveMessage, persisted)
	if err != nil {
		s.logger.Error("Failed to encode message event", "room", payload.Room, "error", err)
		return nil
	}
	s.broadcaster.BroadcastRoom(payload.Room, event)

	return nil
}

// handleTyping fans the typing indicator out to the room, excluding the
// originating connection. Nothing is persisted.
func (s *Service) handleTyping(ctx context.Context, msg pubsub.Message) error {
	var payload TypingPayload
	if !s.decode(msg, &payload) {
		return nil
	}

	event, err := ws.NewEvent(ws.EventUserTyping, TypingEvent{Author: payload.Author})
	if err != nil {
		s.logger.Error("Failed to encode typing event", "room", payload.Room, "error", err)
		return nil
	}
	s.broadcaster.BroadcastRoom(payload.Room, event, msg.ClientID)

	return nil
}

func (s *Service) handleStopTyping(ctx context.Context, msg pubsub.Message) error {
	var payload StopTypingPayload
	if !s.decode(msg, &payload) {
		return nil
	}

	event, err := ws.NewEvent(ws.EventUserStoppedTyping, struct{}{})
	if err != nil {
		s.logger.Error("Failed to encode stop typing event", "room", payload.Room, "error", err)
		return nil
	}
	s.broadcaster.BroadcastRoom(payload.Room, event, msg.ClientID)

	return nil
}

// decode unmarshals and validates a client payload. Invalid payloads are
// dropped with a log line and no protocol response.
func (s *Service) decode(msg pubsub.Message, out any) bool {
	if err := json.Unmarshal(msg.Payload, out); err != nil {
		s.logger.Warn("Dropping malformed payload", "topic", msg.Topic, "clientID", msg.ClientID, "error", err)
		return false
	}
	if err := s.validate.Struct(out); err != nil {
		s.logger.Warn("Dropping invalid payload", "topic", msg.Topic, "clientID", msg.ClientID, "error", err)
		return false
	}
	return true
}
