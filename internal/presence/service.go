package presence

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/nfrund/huddle/internal/domain"
	"github.com/nfrund/huddle/internal/pubsub"
	"github.com/nfrund/huddle/internal/ws"
)

// UserRepository is the slice of the record store the presence tracker needs.
type UserRepository interface {
	EnsureProfile(ctx context.Context, name string) (*domain.UserProfile, error)
	SetPresence(ctx context.Context, userID string, online bool) error
}

// StatusChange is the outbound payload of user_status_change.
type StatusChange struct {
	UserID string                `json:"userId"`
	Status domain.PresenceStatus `json:"status"`
}

// OnlinePayload is the client payload of user_online.
type OnlinePayload struct {
	UserID string `json:"userId"`
}

// Service tracks which user each connection is bound to. A user's stored
// online flag follows a reference count across their connections: it flips
// to true on the first bound connection and back to false when the last one
// disconnects. There is no heartbeat; a connection that dies without a
// disconnect event leaves its user marked online.
type Service struct {
	mu       sync.Mutex
	bindings map[string]string // clientID -> userID
	refs     map[string]int    // userID -> bound connection count

	subscriber  pubsub.Subscriber
	broadcaster ws.Broadcaster
	users       UserRepository
	logger      *slog.Logger
}

// NewService creates the presence tracker.
func NewService(sub pubsub.Subscriber, broadcaster ws.Broadcaster, users UserRepository) *Service {
	return &Service{
		bindings:    make(map[string]string),
		refs:        make(map[string]int),
		subscriber:  sub,
		broadcaster: broadcaster,
		users:       users,
		logger:      slog.Default().With("service", "presence"),
	}
}

// Start begins listening for user_online events and connection disconnects.
func (s *Service) Start(ctx context.Context) {
	s.logger.Info("Starting presence service")

	if err := s.subscriber.Subscribe(ctx, ws.TopicUserOnline, s.handleUserOnline); err != nil {
		s.logger.Error("Failed to subscribe to user online events", "error", err)
	}
	if err := s.subscriber.Subscribe(ctx, ws.TopicClientDisconnected, s.handleDisconnected); err != nil {
		s.logger.Error("Failed to subscribe to disconnect events", "error", err)
	}
}

// handleUserOnline binds the user to the connection, flips the stored
// presence flag, and announces the change to every other connection.
func (s *Service) handleUserOnline(ctx context.Context, msg pubsub.Message) error {
	var payload OnlinePayload
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		s.logger.Warn("Dropping malformed user_online payload", "clientID", msg.ClientID, "error", err)
		return nil
	}
	if payload.UserID == "" {
		s.logger.Warn("Dropping user_online with empty userId", "clientID", msg.ClientID)
		return nil
	}

	cameOnline, released := s.bind(msg.ClientID, payload.UserID)

	// Rebinding can drop the previous identity's last connection; that user
	// goes through the same offline path a disconnect would take.
	if released != "" {
		if err := s.users.SetPresence(ctx, released, false); err != nil {
			s.logger.Error("Failed to store offline presence", "userID", released, "error", err)
		}
		s.announce(released, domain.StatusOffline, msg.ClientID)
	}

	if cameOnline {
		// A profile must exist before the flag flip can match anything.
		if _, err := s.users.EnsureProfile(ctx, payload.UserID); err != nil {
			s.logger.Error("Failed to ensure user profile", "userID", payload.UserID, "error", err)
		}
	}

	// The flag and lastSeen are refreshed on every binding, not just the
	// first; repeated writes are idempotent.
	if err := s.users.SetPresence(ctx, payload.UserID, true); err != nil {
		s.logger.Error("Failed to store online presence", "userID", payload.UserID, "error", err)
	}

	if cameOnline {
		s.announce(payload.UserID, domain.StatusOnline, msg.ClientID)
	}

	return nil
}

// handleDisconnected releases the connection's binding and, when it was the
// user's last connection, flips the stored flag to offline and announces it.
func (s *Service) handleDisconnected(ctx context.Context, msg pubsub.Message) error {
	var event struct {
		ClientID string `json:"clientID"`
	}
	if err := json.Unmarshal(msg.Payload, &event); err != nil {
		s.logger.Warn("Dropping malformed disconnect event", "error", err)
		return nil
	}

	userID, wentOffline := s.unbind(event.ClientID)
	if userID == "" {
		// Connection never announced an identity; nothing to flip.
		return nil
	}

	if wentOffline {
		if err := s.users.SetPresence(ctx, userID, false); err != nil {
			s.logger.Error("Failed to store offline presence", "userID", userID, "error", err)
		}
		s.announce(userID, domain.StatusOffline, event.ClientID)
	}

	return nil
}

// bind associates the connection with the user. It reports whether this was
// the user's first live connection and, when rebinding released the previous
// identity's last connection, the released user id.
func (s *Service) bind(clientID, userID string) (cameOnline bool, released string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if prev, ok := s.bindings[clientID]; ok {
		if prev == userID {
			return false, ""
		}
		// Rebinding a connection releases the previous identity.
		s.refs[prev]--
		if s.refs[prev] <= 0 {
			delete(s.refs, prev)
			released = prev
		}
	}

	s.bindings[clientID] = userID
	s.refs[userID]++
	return s.refs[userID] == 1, released
}

// unbind removes the connection's binding. It returns the bound user id and
// whether that user now has no live connections.
func (s *Service) unbind(clientID string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	userID, ok := s.bindings[clientID]
	if !ok {
		return "", false
	}
	delete(s.bindings, clientID)

	s.refs[userID]--
	if s.refs[userID] <= 0 {
		delete(s.refs, userID)
		return userID, true
	}
	return userID, false
}

// OnlineUsers returns the ids of users with at least one bound connection.
func (s *Service) OnlineUsers() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	users := make([]string, 0, len(s.refs))
	for userID := range s.refs {
		users = append(users, userID)
	}
	return users
}

func (s *Service) announce(userID string, status domain.PresenceStatus, originClientID string) {
	event, err := ws.NewEvent(ws.EventUserStatusChange, StatusChange{UserID: userID, Status: status})
	if err != nil {
		s.logger.Error("Failed to encode status change", "userID", userID, "error", err)
		return
	}
	s.broadcaster.BroadcastAll(event, originClientID)
}
