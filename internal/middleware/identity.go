package middleware

import (
	"log/slog"

	"github.com/google/uuid"
	"github.com/gorilla/sessions"
	"github.com/labstack/echo-contrib/session"
	"github.com/labstack/echo/v4"
)

// UserContextKey is where the request's identity is stored on the echo context.
const UserContextKey = "user"

const (
	sessionName    = "huddle_session"
	sessionUserKey = "user_id"
)

// GuestIdentity assigns a stable per-browser guest identity via the cookie
// session. It stands in for a real authentication layer; downstream handlers
// only ever see the resulting user id string.
func GuestIdentity() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			sess, err := session.Get(sessionName, c)
			if err != nil {
				// A corrupt cookie yields a fresh session rather than an error page.
				slog.Warn("Resetting unreadable session", "error", err)
			}

			id, ok := sess.Values[sessionUserKey].(string)
			if !ok || id == "" {
				id = "guest-" + uuid.NewString()[:8]
				sess.Values[sessionUserKey] = id
				sess.Options = &sessions.Options{
					Path:     "/",
					MaxAge:   86400 * 7, // 7 days
					HttpOnly: true,
				}
				if err := sess.Save(c.Request(), c.Response()); err != nil {
					slog.Error("Failed to save session", "error", err)
				}
			}

			c.Set(UserContextKey, id)
			return next(c)
		}
	}
}

// UserID extracts the identity GuestIdentity placed on the context.
func UserID(c echo.Context) string {
	id, _ := c.Get(UserContextKey).(string)
	return id
}
