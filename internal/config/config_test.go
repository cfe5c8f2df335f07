package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("SURREAL_URL", "ws://localhost:8000/rpc")
	t.Setenv("SURREAL_NS", "huddle")
	t.Setenv("SURREAL_DB", "chat")
}

func TestNew_Defaults(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("PORT", "")
	t.Setenv("HISTORY_LIMIT", "")

	cfg := New()

	assert.Equal(t, "4000", cfg.GetPort())
	assert.Equal(t, 50, cfg.GetHistoryLimit())
	assert.Equal(t, "http://localhost:3000", cfg.GetAllowedOrigin())
	assert.Equal(t, "ws://localhost:8000/rpc", cfg.GetDBURL())
	assert.Equal(t, "huddle", cfg.GetDBNs())
	assert.Equal(t, "chat", cfg.GetDBDb())
}

func TestNew_Overrides(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("PORT", "9999")
	t.Setenv("ALLOWED_ORIGIN", "https://chat.example.com")
	t.Setenv("HISTORY_LIMIT", "25")

	cfg := New()

	assert.Equal(t, "9999", cfg.GetPort())
	assert.Equal(t, "https://chat.example.com", cfg.GetAllowedOrigin())
	assert.Equal(t, 25, cfg.GetHistoryLimit())
}

func TestNew_InvalidHistoryLimitFallsBack(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("HISTORY_LIMIT", "not-a-number")

	cfg := New()
	assert.Equal(t, 50, cfg.GetHistoryLimit())
}
