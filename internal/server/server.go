// Package server exposes the conversation log and meal records over HTTP,
// plus a websocket feed for live conversation watching.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/raphaelgruber/mealchat-go/internal/metrics"
	"github.com/raphaelgruber/mealchat-go/internal/models"
)

// shutdownTimeout bounds graceful shutdown; in-flight handlers past it are
// cut off.
const shutdownTimeout = 10 * time.Second

// Store is the read side of the conversation log.
type Store interface {
	EnsureConversation(ctx context.Context, userID string) (bool, error)
	ListMessages(ctx context.Context, userID string, limit int) ([]models.Message, error)
	ClearMessages(ctx context.Context, userID string) (int, error)
	GetMeal(ctx context.Context, id string) (*models.Meal, error)
	ListMeals(ctx context.Context, userID string, limit int) ([]models.Meal, error)
	MealsSince(ctx context.Context, userID string, since time.Time) ([]models.Meal, error)
}

// Feed is the write side: appends go through the dispatcher so triggers and
// watchers see them.
type Feed interface {
	Append(ctx context.Context, userID string, msg models.Message) (*models.Message, error)
	Subscribe(userID string) (<-chan models.Message, func())
}

// Server is the HTTP server with its dependencies.
type Server struct {
	store   Store
	feed    Feed
	logger  *slog.Logger
	metrics *metrics.Collector
	version string

	http *http.Server
}

// New creates the server and wires up all routes.
func New(addr string, store Store, feed Feed, logger *slog.Logger, collector *metrics.Collector, version string) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		store:   store,
		feed:    feed,
		logger:  logger,
		metrics: collector,
		version: version,
	}

	r := chi.NewRouter()
	r.Use(requestLogger(logger))

	r.Get("/health", s.handleHealth)
	r.Get("/stats", s.handleStats)

	r.Route("/conversations/{userID}", func(r chi.Router) {
		r.Post("/messages", s.handlePostMessage)
		r.Get("/messages", s.handleListMessages)
		r.Delete("/messages", s.handleClearMessages)
		r.Get("/meals", s.handleListMeals)
		r.Get("/meals/today", s.handleMealsToday)
		r.Get("/watch", s.handleWatch)
	})
	r.Get("/meals/{mealID}", s.handleGetMeal)

	s.http = &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Handler returns the route tree, used by tests.
func (s *Server) Handler() http.Handler {
	return s.http.Handler
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting HTTP server", "addr", s.http.Addr, "version", s.version)
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("serve: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.http.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	s.logger.Info("HTTP server stopped")
	return nil
}
