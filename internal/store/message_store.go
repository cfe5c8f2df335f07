package store

import (
	"context"
	"fmt"
	"time"

	"github.com/nfrund/huddle/internal/database"
	"github.com/nfrund/huddle/internal/domain"
	"github.com/surrealdb/surrealdb.go"
	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"
)

// messageRow is the raw store shape of a message. The driver decodes record
// ids as CBOR-tagged RecordID values; decoding into a plain string field
// silently yields an empty id, so rows carry the typed id and are mapped to
// the flat wire shape afterwards.
type messageRow struct {
	ID        *surrealmodels.RecordID `json:"id,omitempty"`
	Room      string                  `json:"room"`
	Author    string                  `json:"author"`
	Content   string                  `json:"content"`
	Type      domain.MessageType      `json:"type"`
	CreatedAt time.Time               `json:"createdAt"`
	Delivered bool                    `json:"delivered"`
}

// toDomain converts the row to the wire-facing message, flattening the
// record id to its "table:id" string form.
func (r *messageRow) toDomain() *domain.Message {
	msg := &domain.Message{
		Room:      r.Room,
		Author:    r.Author,
		Content:   r.Content,
		Type:      r.Type,
		CreatedAt: r.CreatedAt,
		Delivered: r.Delivered,
	}
	if r.ID != nil {
		msg.ID = r.ID.String()
	}
	return msg
}

// MessageStore handles database operations for chat messages.
type MessageStore struct {
	db     *surrealdb.DB
	ns     string
	dbName string
}

// NewMessageStore creates a new MessageStore instance.
func NewMessageStore(db *surrealdb.DB, ns, dbName string) *MessageStore {
	return &MessageStore{
		db:     db,
		ns:     ns,
		dbName: dbName,
	}
}

// Insert persists a new message. The store assigns the record id and the
// createdAt timestamp; the returned message is the authoritative copy.
func (s *MessageStore) Insert(ctx context.Context, room, author, content string, msgType domain.MessageType) (*domain.Message, error) {
	if !msgType.IsValid() {
		return nil, database.NewDBError(database.ErrInvalidInput, fmt.Sprintf("unknown message type %q", msgType))
	}
	if err := s.db.Use(ctx, s.ns, s.dbName); err != nil {
		return nil, fmt.Errorf("failed to set database scope: %w", err)
	}

	query := `CREATE message SET
		room = $room,
		author = $author,
		content = $content,
		type = $type,
		createdAt = time::now(),
		delivered = false
	RETURN AFTER`
	params := map[string]any{
		"room":    room,
		"author":  author,
		"content": content,
		"type":    string(msgType),
	}

	created, err := database.QueryOne[messageRow](ctx, s.db, query, params)
	if err != nil {
		return nil, fmt.Errorf("failed to create and fetch message: %w", err)
	}
	if created == nil {
		return nil, fmt.Errorf("message was not created or could not be fetched")
	}

	return created.toDomain(), nil
}

// RecentByRoom retrieves up to limit of the most recent messages for a room,
// returned oldest first.
func (s *MessageStore) RecentByRoom(ctx context.Context, room string, limit int) ([]*domain.Message, error) {
	if err := s.db.Use(ctx, s.ns, s.dbName); err != nil {
		return nil, fmt.Errorf("failed to set database scope: %w", err)
	}

	query := "SELECT * FROM message WHERE room = $room ORDER BY createdAt DESC LIMIT $limit"
	params := map[string]any{
		"room":  room,
		"limit": limit,
	}

	result, err := database.Query[messageRow](ctx, s.db, query, params)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch messages: %w", err)
	}

	messages := make([]*domain.Message, len(result))
	for i := range result {
		messages[i] = result[i].toDomain()
	}

	// The query selects newest first; reverse so callers get oldest first.
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}

	return messages, nil
}
