// Package server is the HTTP front door: a chi router exposing the
// assistant and study features under /v1.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/mukti-ai/studycore/internal/auth"
	"github.com/mukti-ai/studycore/internal/media"
	"github.com/mukti-ai/studycore/internal/settings"
)

// Config holds listener settings.
type Config struct {
	Port int
	// RequestTimeout bounds non-streaming requests. Chat streams are bounded
	// by the client connection only.
	RequestTimeout time.Duration
	Auth           *auth.Authenticator
	Logger         *slog.Logger
}

// Deps are the services the handlers call.
type Deps struct {
	Assistant Assistant
	Study     Study
	Settings  settings.Store
	Usage     UsageReporter
	Images    *media.Loader
}

type Server struct {
	Router *chi.Mux
	Port   int
	logger *slog.Logger
	srv    *http.Server
}

func New(cfg Config, deps Deps) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 60 * time.Second
	}
	if deps.Images == nil {
		deps.Images = media.NewLoader()
	}

	h := &handlers{deps: deps, logger: logger}

	r := chi.NewRouter()
	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(logger))
	r.Use(middleware.Recoverer)
	r.Use(func(next http.Handler) http.Handler {
		return otelhttp.NewHandler(next, "studycore")
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/v1", func(r chi.Router) {
		if cfg.Auth.Enabled() {
			r.Use(AuthMiddleware(cfg.Auth))
		}
		if deps.Usage != nil {
			r.Use(UsageHeadersMiddleware(deps.Usage))
		}

		r.Post("/chat", h.chat)

		r.Group(func(r chi.Router) {
			r.Use(TimeoutMiddleware(cfg.RequestTimeout))

			r.Post("/complete", h.complete)
			r.Post("/structured", h.structured)
			r.Post("/flashcards", h.flashcards)
			r.Post("/diagrams/code", h.diagramCode)
			r.Post("/diagrams/image", h.diagramImage)
			r.Post("/notes/enhance", h.enhanceNote)
			r.Post("/notes/from-image", h.noteFromImage)
			r.Post("/solve", h.solve)
			r.Get("/settings", h.getSettings)
			r.Put("/settings", h.putSettings)
			r.Get("/usage", h.usage)
		})
	})

	return &Server{
		Router: r,
		Port:   cfg.Port,
		logger: logger,
		srv: &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Port),
			Handler:           r,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}
}

// Start serves until Shutdown is called.
func (s *Server) Start() error {
	s.logger.Info("starting server", slog.Int("port", s.Port))
	if err := s.srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting connections and waits for active requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
