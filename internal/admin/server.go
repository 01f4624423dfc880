// Package admin serves the local control API. It binds to loopback by
// default; the bearer token is an optional second fence, not a real
// authentication system.
package admin

import (
	"context"
	"crypto/subtle"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/offmode/brickd/internal/admin/api"
	"github.com/offmode/brickd/internal/engine"
	"github.com/offmode/brickd/internal/essential"
	"github.com/offmode/brickd/internal/goal"
	"github.com/offmode/brickd/internal/lock"
	"github.com/offmode/brickd/internal/override"
	"github.com/offmode/brickd/internal/storage"
	"github.com/offmode/brickd/internal/unlock"
)

// Config holds the admin server configuration.
type Config struct {
	ListenAddr  string
	BearerToken string
}

// Server represents the admin HTTP server.
type Server struct {
	config Config
	server *http.Server
	router *mux.Router
	logger zerolog.Logger
}

// Deps bundles the components the API exposes.
type Deps struct {
	Engine     *engine.Engine
	Controller *override.Controller
	Grants     *unlock.Manager
	Registry   *essential.Registry
	Goals      *goal.Ledger
	Locks      *lock.Manager
	Logs       storage.LogStore
}

// NewServer creates a new admin server.
func NewServer(cfg Config, deps Deps, logger zerolog.Logger) *Server {
	router := mux.NewRouter()

	s := &Server{
		config: cfg,
		router: router,
		logger: logger.With().Str("component", "admin").Logger(),
	}
	s.setupRoutes(deps)

	s.server = &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes(deps Deps) {
	s.router.Use(loggingMiddleware(s.logger))

	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")

	authRouter := s.router.PathPrefix("/api").Subrouter()
	if s.config.BearerToken != "" {
		authRouter.Use(tokenMiddleware(s.config.BearerToken))
	}

	statusHandler := api.NewStatusHandler(deps.Engine, s.logger)
	authRouter.HandleFunc("/status", statusHandler.Get).Methods("GET")
	authRouter.HandleFunc("/decisions", statusHandler.Decisions).Methods("GET")

	sessionHandler := api.NewSessionHandler(deps.Engine, deps.Locks, s.logger)
	authRouter.HandleFunc("/sessions", sessionHandler.List).Methods("GET")
	authRouter.HandleFunc("/sessions", sessionHandler.Create).Methods("POST")
	authRouter.HandleFunc("/sessions/{id}", sessionHandler.Get).Methods("GET")
	authRouter.HandleFunc("/sessions/{id}", sessionHandler.Update).Methods("PUT")
	authRouter.HandleFunc("/sessions/{id}", sessionHandler.Delete).Methods("DELETE")
	authRouter.HandleFunc("/sessions/{id}/start", sessionHandler.Start).Methods("POST")
	authRouter.HandleFunc("/sessions/{id}/lock", sessionHandler.Lock).Methods("POST")
	authRouter.HandleFunc("/sessions/{id}/unlock", sessionHandler.Unlock).Methods("POST")

	overrideHandler := api.NewOverrideHandler(deps.Controller, s.logger)
	authRouter.HandleFunc("/sessions/{id}/override", overrideHandler.Request).Methods("POST")
	authRouter.HandleFunc("/sessions/{id}/override", overrideHandler.Status).Methods("GET")
	authRouter.HandleFunc("/sessions/{id}/override/countdown", overrideHandler.BeginCountdown).Methods("POST")
	authRouter.HandleFunc("/sessions/{id}/override/countdown", overrideHandler.CancelCountdown).Methods("DELETE")
	authRouter.HandleFunc("/sessions/{id}/override/confirm", overrideHandler.Confirm).Methods("POST")

	grantHandler := api.NewGrantHandler(deps.Grants, s.logger)
	authRouter.HandleFunc("/grants", grantHandler.List).Methods("GET")
	authRouter.HandleFunc("/grants", grantHandler.Create).Methods("POST")
	authRouter.HandleFunc("/grants/{identifier}/extend", grantHandler.Extend).Methods("POST")
	authRouter.HandleFunc("/grants/{identifier}", grantHandler.Revoke).Methods("DELETE")

	essentialHandler := api.NewEssentialHandler(deps.Registry, s.logger)
	authRouter.HandleFunc("/essential", essentialHandler.List).Methods("GET")
	authRouter.HandleFunc("/essential", essentialHandler.Add).Methods("POST")
	authRouter.HandleFunc("/essential/{identifier}", essentialHandler.Remove).Methods("DELETE")

	goalHandler := api.NewGoalHandler(deps.Goals, s.logger)
	authRouter.HandleFunc("/goals", goalHandler.List).Methods("GET")
	authRouter.HandleFunc("/goals", goalHandler.Create).Methods("POST")
	authRouter.HandleFunc("/goals/{id}", goalHandler.Get).Methods("GET")
	authRouter.HandleFunc("/goals/{id}", goalHandler.Delete).Methods("DELETE")
	authRouter.HandleFunc("/goals/{id}/items", goalHandler.AddItem).Methods("POST")
	authRouter.HandleFunc("/goals/{id}/items/{identifier}", goalHandler.RemoveItem).Methods("DELETE")

	logsHandler := api.NewLogsHandler(deps.Logs, s.logger)
	authRouter.HandleFunc("/logs", logsHandler.Query).Methods("GET")
}

// Handler returns the configured router.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves the admin API on the given listener. A nil listener means
// bind to the configured address.
func (s *Server) Start(listener net.Listener) error {
	s.logger.Info().Str("addr", s.config.ListenAddr).Msg("Starting admin server")

	go func() {
		var err error
		if listener != nil {
			err = s.server.Serve(listener)
		} else {
			err = s.server.ListenAndServe()
		}
		if err != nil && err != http.ErrServerClosed {
			s.logger.Error().Err(err).Msg("Admin server error")
		}
	}()
	return nil
}

// Stop gracefully stops the admin HTTP server.
func (s *Server) Stop() error {
	s.logger.Info().Msg("Stopping admin server")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("admin server shutdown: %w", err)
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

// loggingMiddleware logs each request at debug level.
func loggingMiddleware(logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			next.ServeHTTP(w, r)
			logger.Debug().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Dur("duration", time.Since(start)).
				Msg("Request handled")
		})
	}
}

// tokenMiddleware requires a static bearer token on every API request.
func tokenMiddleware(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			parts := strings.SplitN(header, " ", 2)
			if len(parts) != 2 || parts[0] != "Bearer" ||
				subtle.ConstantTimeCompare([]byte(parts[1]), []byte(token)) != 1 {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
