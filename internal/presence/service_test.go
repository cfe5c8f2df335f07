package presence

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/nfrund/huddle/internal/domain"
	"github.com/nfrund/huddle/internal/pubsub"
	"github.com/nfrund/huddle/internal/ws"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockBroadcaster struct {
	mu  sync.Mutex
	all []struct {
		Payload []byte
		Exclude []string
	}
}

func (m *mockBroadcaster) Join(clientID, room string)   {}
func (m *mockBroadcaster) SendTo(string, []byte)        {}
func (m *mockBroadcaster) BroadcastRoom(string, []byte, ...string) {}

func (m *mockBroadcaster) BroadcastAll(payload []byte, exclude ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.all = append(m.all, struct {
		Payload []byte
		Exclude []string
	}{payload, exclude})
}

type presenceWrite struct {
	UserID string
	Online bool
}

type mockUserRepo struct {
	mu      sync.Mutex
	writes  []presenceWrite
	ensures []string
	// ops records every repository call in order, so tests can assert the
	// profile exists before the flag flip runs against it.
	ops []string
}

func (m *mockUserRepo) EnsureProfile(ctx context.Context, name string) (*domain.UserProfile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ensures = append(m.ensures, name)
	m.ops = append(m.ops, "ensure:"+name)
	return &domain.UserProfile{Name: name}, nil
}

func (m *mockUserRepo) SetPresence(ctx context.Context, userID string, online bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writes = append(m.writes, presenceWrite{UserID: userID, Online: online})
	status := "offline"
	if online {
		status = "online"
	}
	m.ops = append(m.ops, "set:"+userID+":"+status)
	return nil
}

type mockSubscriber struct{}

func (m *mockSubscriber) Subscribe(ctx context.Context, topic string, handler pubsub.Handler) error {
	return nil
}

func (m *mockSubscriber) Close() error { return nil }

func onlineMsg(t *testing.T, clientID, userID string) pubsub.Message {
	t.Helper()
	raw, err := json.Marshal(OnlinePayload{UserID: userID})
	require.NoError(t, err)
	return pubsub.Message{Topic: ws.TopicUserOnline, ClientID: clientID, Payload: raw}
}

func disconnectMsg(t *testing.T, clientID string) pubsub.Message {
	t.Helper()
	raw, err := json.Marshal(map[string]string{"clientID": clientID})
	require.NoError(t, err)
	return pubsub.Message{Topic: ws.TopicClientDisconnected, Payload: raw}
}

func decodeStatus(t *testing.T, payload []byte) StatusChange {
	t.Helper()
	var event ws.Event
	require.NoError(t, json.Unmarshal(payload, &event))
	require.Equal(t, ws.EventUserStatusChange, event.Type)
	raw, err := json.Marshal(event.Payload)
	require.NoError(t, err)
	var change StatusChange
	require.NoError(t, json.Unmarshal(raw, &change))
	return change
}

func TestUserOnline_FlipsStoreAndAnnounces(t *testing.T) {
	users := &mockUserRepo{}
	broadcaster := &mockBroadcaster{}
	svc := NewService(&mockSubscriber{}, broadcaster, users)

	ctx := context.Background()
	require.NoError(t, svc.handleUserOnline(ctx, onlineMsg(t, "conn-1", "alice")))

	require.Len(t, users.writes, 1)
	assert.Equal(t, presenceWrite{UserID: "alice", Online: true}, users.writes[0])

	// The announcement goes to everyone but the originating connection.
	require.Len(t, broadcaster.all, 1)
	assert.Equal(t, []string{"conn-1"}, broadcaster.all[0].Exclude)
	change := decodeStatus(t, broadcaster.all[0].Payload)
	assert.Equal(t, "alice", change.UserID)
	assert.Equal(t, domain.StatusOnline, change.Status)

	assert.Equal(t, []string{"alice"}, svc.OnlineUsers())
}

func TestUserOnline_EnsuresProfileBeforeFlip(t *testing.T) {
	users := &mockUserRepo{}
	broadcaster := &mockBroadcaster{}
	svc := NewService(&mockSubscriber{}, broadcaster, users)

	ctx := context.Background()
	require.NoError(t, svc.handleUserOnline(ctx, onlineMsg(t, "conn-1", "guest-ab12cd34")))

	// The profile row must exist before the flag update can match it.
	assert.Equal(t, []string{"ensure:guest-ab12cd34", "set:guest-ab12cd34:online"}, users.ops)

	// Further connections for the same user skip the ensure.
	require.NoError(t, svc.handleUserOnline(ctx, onlineMsg(t, "conn-2", "guest-ab12cd34")))
	assert.Equal(t, []string{"guest-ab12cd34"}, users.ensures)
}

func TestDisconnect_FlipsOfflineAndAnnounces(t *testing.T) {
	users := &mockUserRepo{}
	broadcaster := &mockBroadcaster{}
	svc := NewService(&mockSubscriber{}, broadcaster, users)

	ctx := context.Background()
	require.NoError(t, svc.handleUserOnline(ctx, onlineMsg(t, "conn-1", "alice")))
	require.NoError(t, svc.handleDisconnected(ctx, disconnectMsg(t, "conn-1")))

	require.Len(t, users.writes, 2)
	assert.Equal(t, presenceWrite{UserID: "alice", Online: false}, users.writes[1])

	require.Len(t, broadcaster.all, 2)
	change := decodeStatus(t, broadcaster.all[1].Payload)
	assert.Equal(t, "alice", change.UserID)
	assert.Equal(t, domain.StatusOffline, change.Status)

	assert.Empty(t, svc.OnlineUsers())
}

func TestMultipleConnections_SingleOnlineOfflineCycle(t *testing.T) {
	users := &mockUserRepo{}
	broadcaster := &mockBroadcaster{}
	svc := NewService(&mockSubscriber{}, broadcaster, users)

	ctx := context.Background()
	require.NoError(t, svc.handleUserOnline(ctx, onlineMsg(t, "conn-1", "alice")))
	require.NoError(t, svc.handleUserOnline(ctx, onlineMsg(t, "conn-2", "alice")))

	// One announcement for the first connection only; the flag write repeats
	// but is idempotent.
	require.Len(t, broadcaster.all, 1)
	assert.Equal(t, []string{"alice"}, svc.OnlineUsers())

	require.NoError(t, svc.handleDisconnected(ctx, disconnectMsg(t, "conn-1")))
	// Still online through the second connection.
	assert.Len(t, broadcaster.all, 1)
	assert.Equal(t, []string{"alice"}, svc.OnlineUsers())

	require.NoError(t, svc.handleDisconnected(ctx, disconnectMsg(t, "conn-2")))
	require.Len(t, broadcaster.all, 2)
	change := decodeStatus(t, broadcaster.all[1].Payload)
	assert.Equal(t, domain.StatusOffline, change.Status)
	assert.Empty(t, svc.OnlineUsers())
}

func TestDisconnect_UnboundConnectionIsIgnored(t *testing.T) {
	users := &mockUserRepo{}
	broadcaster := &mockBroadcaster{}
	svc := NewService(&mockSubscriber{}, broadcaster, users)

	require.NoError(t, svc.handleDisconnected(context.Background(), disconnectMsg(t, "conn-9")))

	assert.Empty(t, users.writes)
	assert.Empty(t, broadcaster.all)
}

func TestUserOnline_EmptyUserIDDropped(t *testing.T) {
	users := &mockUserRepo{}
	broadcaster := &mockBroadcaster{}
	svc := NewService(&mockSubscriber{}, broadcaster, users)

	require.NoError(t, svc.handleUserOnline(context.Background(), onlineMsg(t, "conn-1", "")))

	assert.Empty(t, users.writes)
	assert.Empty(t, broadcaster.all)
}

func TestRebind_ReleasesPreviousIdentity(t *testing.T) {
	users := &mockUserRepo{}
	broadcaster := &mockBroadcaster{}
	svc := NewService(&mockSubscriber{}, broadcaster, users)

	ctx := context.Background()
	require.NoError(t, svc.handleUserOnline(ctx, onlineMsg(t, "conn-1", "alice")))
	require.NoError(t, svc.handleUserOnline(ctx, onlineMsg(t, "conn-1", "bob")))

	assert.ElementsMatch(t, []string{"bob"}, svc.OnlineUsers())

	// Dropping alice's last connection via rebind takes the same offline
	// path a disconnect would: flag flip plus a broadcast.
	assert.Contains(t, users.ops, "set:alice:offline")
	require.Len(t, broadcaster.all, 3)

	aliceOffline := decodeStatus(t, broadcaster.all[1].Payload)
	assert.Equal(t, "alice", aliceOffline.UserID)
	assert.Equal(t, domain.StatusOffline, aliceOffline.Status)
	assert.Equal(t, []string{"conn-1"}, broadcaster.all[1].Exclude)

	bobOnline := decodeStatus(t, broadcaster.all[2].Payload)
	assert.Equal(t, "bob", bobOnline.UserID)
	assert.Equal(t, domain.StatusOnline, bobOnline.Status)

	require.NoError(t, svc.handleDisconnected(ctx, disconnectMsg(t, "conn-1")))
	assert.Empty(t, svc.OnlineUsers())
}

func TestRebind_SharedIdentitySurvivesRelease(t *testing.T) {
	users := &mockUserRepo{}
	broadcaster := &mockBroadcaster{}
	svc := NewService(&mockSubscriber{}, broadcaster, users)

	ctx := context.Background()
	require.NoError(t, svc.handleUserOnline(ctx, onlineMsg(t, "conn-1", "alice")))
	require.NoError(t, svc.handleUserOnline(ctx, onlineMsg(t, "conn-2", "alice")))
	require.NoError(t, svc.handleUserOnline(ctx, onlineMsg(t, "conn-2", "bob")))

	// Alice still holds conn-1, so the rebind must not announce her offline.
	assert.ElementsMatch(t, []string{"alice", "bob"}, svc.OnlineUsers())
	assert.NotContains(t, users.ops, "set:alice:offline")
	require.Len(t, broadcaster.all, 2)
	bobOnline := decodeStatus(t, broadcaster.all[1].Payload)
	assert.Equal(t, "bob", bobOnline.UserID)
}
