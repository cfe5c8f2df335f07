package server

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/nfrund/huddle/internal/middleware"
)

// RegisterRoutes sets up all the application routes.
func (s *Server) RegisterRoutes() {
	s.E.File("/", "web/static/index.html")
	s.E.Static("/static", "web/static")

	s.E.GET("/ws", s.Bridge.Handler(middleware.UserID))

	s.E.GET("/health", func(c echo.Context) error {
		if !s.DB.IsHealthy() {
			return c.String(http.StatusServiceUnavailable, "DB unavailable")
		}
		return c.String(http.StatusOK, "OK")
	})
}
