package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"
	"github.com/surrealdb/surrealdb.go/surrealcbor"
)

// The driver returns record ids as CBOR-tagged values; these tests pin down
// that rows decode them into a typed id and map it to the flat "table:id"
// string the wire format carries.

func TestMessageRow_DecodesRecordID(t *testing.T) {
	codec := surrealcbor.New()
	created := time.Date(2026, 9, 1, 12, 30, 0, 0, time.UTC)

	data, err := codec.Marshal(map[string]any{
		"id":        surrealmodels.NewRecordID("message", "abc123"),
		"room":      "general",
		"author":    "alice",
		"content":   "hi",
		"type":      "text",
		"createdAt": surrealmodels.CustomDateTime{Time: created},
		"delivered": false,
	})
	require.NoError(t, err)

	var row messageRow
	require.NoError(t, codec.Unmarshal(data, &row))

	require.NotNil(t, row.ID, "record id must survive decoding")
	msg := row.toDomain()
	assert.Equal(t, "message:abc123", msg.ID)
	assert.Equal(t, "general", msg.Room)
	assert.Equal(t, "alice", msg.Author)
	assert.Equal(t, "hi", msg.Content)
	assert.True(t, msg.CreatedAt.Equal(created))
}

func TestMessageRow_ToDomainWithoutID(t *testing.T) {
	row := messageRow{Room: "general", Author: "alice", Content: "hi"}
	msg := row.toDomain()
	assert.Empty(t, msg.ID)
	assert.Equal(t, "general", msg.Room)
}

func TestUserRow_DecodesRecordID(t *testing.T) {
	codec := surrealcbor.New()

	data, err := codec.Marshal(map[string]any{
		"id":       surrealmodels.NewRecordID("user", "u1"),
		"name":     "guest-ab12cd34",
		"isOnline": true,
	})
	require.NoError(t, err)

	var row userRow
	require.NoError(t, codec.Unmarshal(data, &row))

	require.NotNil(t, row.ID)
	profile := row.toDomain()
	assert.Equal(t, "user:u1", profile.ID)
	assert.Equal(t, "guest-ab12cd34", profile.Name)
	assert.True(t, profile.IsOnline)
}
