// Package server exposes the dashboard over HTTP: REST endpoints for
// activities and exports, and a WebSocket per map surface.
package server

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	ws "github.com/gorilla/websocket"

	"github.com/atlo/dashboard/internal/card"
	"github.com/atlo/dashboard/internal/config"
	"github.com/atlo/dashboard/internal/dispatcher"
	"github.com/atlo/dashboard/internal/mapview"
	"github.com/atlo/dashboard/internal/route"
	"github.com/atlo/dashboard/internal/storage"
)

// Dependencies holds injected dependencies for the server.
type Dependencies struct {
	Store storage.Backend
	// Provider is the upstream activity source used by /api/sync. Nil
	// disables syncing.
	Provider storage.ActivitySource

	Builder    *route.Builder
	MapOptions mapview.Options
	Card       card.Config
	Config     config.ServerConfig

	Logger           *slog.Logger
	DispatcherLogger dispatcher.Logger
	Now              func() time.Time
}

// Server routes HTTP requests and owns the live map sessions.
type Server struct {
	deps     Dependencies
	log      *slog.Logger
	router   chi.Router
	upgrader ws.Upgrader

	mu       sync.Mutex
	sessions map[uuid.UUID]*session
	closed   bool
}

// New builds the server and its routes.
func New(deps Dependencies) *Server {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.DispatcherLogger == nil {
		deps.DispatcherLogger = deps.Logger
	}
	if deps.Builder == nil {
		deps.Builder = route.NewBuilder(route.DefaultOptions())
	}
	if len(deps.MapOptions.Styles) == 0 {
		deps.MapOptions = mapview.DefaultOptions()
	}
	if deps.Card == (card.Config{}) {
		deps.Card = card.DefaultConfig()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Config.StartTimeout <= 0 {
		deps.Config.StartTimeout = 30 * time.Second
	}

	s := &Server{
		deps:     deps,
		log:      deps.Logger.With("component", "server"),
		sessions: make(map[uuid.UUID]*session),
	}
	s.upgrader = ws.Upgrader{
		ReadBufferSize:   1024,
		WriteBufferSize:  1024,
		CheckOrigin:      s.checkOrigin,
		HandshakeTimeout: 10 * time.Second,
	}
	s.router = s.routes()
	return s
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)

	r.Get("/healthz", s.handleHealth)

	r.Route("/api", func(r chi.Router) {
		// Map sockets outlive any request timeout, so it only covers /api.
		if s.deps.Config.WriteTimeout > 0 {
			r.Use(chimiddleware.Timeout(s.deps.Config.WriteTimeout))
		}
		r.Get("/activities", s.handleActivities)
		r.Get("/activities/{id}", s.handleActivity)
		r.Get("/types", s.handleTypes)
		r.Get("/routes", s.handleRoutes)
		r.Get("/routes.kml", s.handleRoutesKML)
		r.Get("/styles", s.handleStyles)
		r.Get("/card.png", s.handleCard)
		r.Get("/sync", s.handleLastSync)
		r.Post("/sync", s.handleSync)
	})

	r.Get("/ws/map", s.handleMapSocket)
	return r
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Sessions reports the number of live map sessions.
func (s *Server) Sessions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Close ends every live map session. New sockets are refused afterwards.
func (s *Server) Close() error {
	s.mu.Lock()
	s.closed = true
	live := make([]*session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		live = append(live, sess)
	}
	s.mu.Unlock()

	for _, sess := range live {
		sess.close()
	}
	return nil
}

// checkOrigin accepts requests without an Origin header (non-browser
// clients) and browser origins listed in the config. An empty list or "*"
// allows any origin.
func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || len(s.deps.Config.AllowedOrigins) == 0 {
		return true
	}
	for _, allowed := range s.deps.Config.AllowedOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	s.log.Warn("WebSocket connection rejected from unauthorized origin", "origin", origin)
	return false
}
