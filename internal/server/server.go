package server

import (
	"context"
	"log/slog"
	"os"

	"github.com/gorilla/sessions"
	"github.com/labstack/echo-contrib/session"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/nfrund/huddle/internal/chat"
	"github.com/nfrund/huddle/internal/config"
	"github.com/nfrund/huddle/internal/database"
	"github.com/nfrund/huddle/internal/logging"
	"github.com/nfrund/huddle/internal/middleware"
	"github.com/nfrund/huddle/internal/presence"
	"github.com/nfrund/huddle/internal/pubsub"
	"github.com/nfrund/huddle/internal/store"
	"github.com/nfrund/huddle/internal/ws"
)

// Server holds the dependencies for the chat relay.
type Server struct {
	E        *echo.Echo
	DB       *database.Connection
	Cfg      config.Provider
	PubSub   pubsub.Bus
	Bridge   *ws.Bridge
	Chat     *chat.Service
	Presence *presence.Service

	cancel context.CancelFunc
}

// New creates a fully wired Server instance.
func New() *Server {
	logging.New()
	cfg := config.New()

	db := database.NewConnection(cfg)
	if err := db.Connect(context.Background()); err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	db.StartMonitoring()

	sdb, err := db.DB()
	if err != nil {
		slog.Error("Database connection unhealthy at startup", "error", err)
		os.Exit(1)
	}

	bus := pubsub.NewWatermillBridge()
	bridge := ws.NewBridge(bus, cfg.GetAllowedOrigin())

	messageStore := store.NewMessageStore(sdb, cfg.GetDBNs(), cfg.GetDBDb())
	userStore := store.NewUserStore(sdb, cfg.GetDBNs(), cfg.GetDBDb())

	chatSvc := chat.NewService(bus, bridge, messageStore, cfg.GetHistoryLimit())
	presenceSvc := presence.NewService(bus, bridge, userStore)

	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.Logger())
	e.Use(echomw.Recover())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins:     []string{cfg.GetAllowedOrigin()},
		AllowCredentials: true,
	}))

	cookieStore := sessions.NewCookieStore([]byte(cfg.GetSessionSecret()))
	e.Use(session.Middleware(cookieStore))
	e.Use(middleware.GuestIdentity())

	return &Server{
		E:        e,
		DB:       db,
		Cfg:      cfg,
		PubSub:   bus,
		Bridge:   bridge,
		Chat:     chatSvc,
		Presence: presenceSvc,
	}
}

// Boot starts the bridge run loop and the chat and presence subscriptions.
// It must be called before Start.
func (s *Server) Boot() {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	go s.Bridge.Run(ctx)
	s.Chat.Start(ctx)
	s.Presence.Start(ctx)
}
