// Package web provides the HTTP server: Spotify sign-in and the playlist JSON API.
package web

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/justestif/musical-bridges/internal/logging"
	"github.com/justestif/musical-bridges/internal/moods"
	"github.com/justestif/musical-bridges/internal/playlist"
)

// DefaultAddr is the default server address.
const DefaultAddr = "127.0.0.1:8080"

const pruneInterval = time.Hour

// ServerConfig holds the server address and its collaborators.
type ServerConfig struct {
	Addr      string
	OAuth     OAuth
	Sessions  SessionManager
	Playlists *playlist.Service
	Catalog   CatalogFactory
	Refiner   Refiner // nil disables /api/refine_emotion
	Moods     moods.Config
	Logger    *log.Logger
}

// Server is the HTTP server for the application.
type Server struct {
	router   chi.Router
	server   *http.Server
	sessions SessionManager
	handlers *Handlers
	logger   *log.Logger
}

// NewServer creates a new web server.
func NewServer(cfg ServerConfig) (*Server, error) {
	switch {
	case cfg.OAuth == nil:
		return nil, errors.New("web: OAuth is required")
	case cfg.Sessions == nil:
		return nil, errors.New("web: session store is required")
	case cfg.Playlists == nil:
		return nil, errors.New("web: playlist service is required")
	case cfg.Catalog == nil:
		return nil, errors.New("web: catalog factory is required")
	}
	if cfg.Addr == "" {
		cfg.Addr = DefaultAddr
	}
	if cfg.Logger == nil {
		cfg.Logger = log.Default()
	}
	if cfg.Moods.Clusters == 0 {
		cfg.Moods = moods.DefaultConfig()
	}

	s := &Server{
		router:   chi.NewRouter(),
		sessions: cfg.Sessions,
		logger:   cfg.Logger,
		handlers: &Handlers{
			oauth:     cfg.OAuth,
			sessions:  cfg.Sessions,
			playlists: cfg.Playlists,
			catalog:   cfg.Catalog,
			refiner:   cfg.Refiner,
			moods:     cfg.Moods,
			logger:    cfg.Logger,
		},
	}

	s.setupMiddleware()
	s.setupRoutes()

	s.server = &http.Server{
		Addr:         cfg.Addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s, nil
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(logging.Middleware(s.logger))
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Compress(5))
}

func (s *Server) setupRoutes() {
	h := s.handlers

	s.router.Get("/health", h.Health)

	s.router.Get("/auth/login", h.Login)
	s.router.Get("/callback", h.Callback)
	s.router.Post("/auth/logout", h.Logout)

	s.router.Route("/api", func(r chi.Router) {
		r.Get("/me", h.Me)
		r.Get("/emotions", h.Emotions)
		r.Post("/create_playlist", h.CreatePlaylist)
		r.Get("/recommend_top_tracks/{id}", h.TopTracks)
		r.Get("/playlist/{id}", h.Playlist)
		r.Get("/playlist/{id}/moods", h.Moods)
		r.Post("/refine_emotion", h.RefineEmotion)
	})
}

// Handler returns the root handler with all middleware applied.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.logger.Info("starting server", "url", "http://"+s.server.Addr)
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// Run serves until ctx is cancelled or an interrupt arrives, then shuts down gracefully.
// Expired sessions are pruned hourly while the server runs.
func (s *Server) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		if err := s.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	go s.pruneSessions(ctx)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		s.logger.Info("shutting down server")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	s.logger.Info("server stopped")
	return nil
}

func (s *Server) pruneSessions(ctx context.Context) {
	ticker := time.NewTicker(pruneInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := s.sessions.Prune(ctx)
			if err != nil {
				s.logger.Warn("pruning sessions", "err", err)
				continue
			}
			if n > 0 {
				s.logger.Debug("pruned expired sessions", "count", n)
			}
		}
	}
}
