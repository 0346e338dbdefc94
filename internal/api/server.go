// Package api exposes the analysis pipeline and chat store over HTTP.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/sells-group/assembly-cli/internal/pipeline"
	"github.com/sells-group/assembly-cli/internal/store"
	"github.com/sells-group/assembly-cli/pkg/gemini"
)

// Server holds the handler dependencies.
type Server struct {
	store     store.Store
	gemini    gemini.Client
	pipeline  *pipeline.Pipeline
	maxUpload int64
}

// Config tunes the HTTP surface.
type Config struct {
	AllowedOrigins []string
	MaxUploadMB    int
}

// NewServer creates a Server.
func NewServer(st store.Store, gem gemini.Client, pipe *pipeline.Pipeline, cfg Config) *Server {
	maxUpload := int64(cfg.MaxUploadMB)
	if maxUpload <= 0 {
		maxUpload = 20
	}
	return &Server{
		store:     st,
		gemini:    gem,
		pipeline:  pipe,
		maxUpload: maxUpload << 20,
	}
}

// Router builds the chi router with middleware and all API routes.
func (s *Server) Router(allowedOrigins []string) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", s.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Post("/chats", s.handleCreateChat)
		r.Get("/chats", s.handleListChats)
		r.Delete("/chats/{chatID}", s.handleDeleteChat)
		r.Get("/chats/{chatID}/steps", s.handleListSteps)
		r.Get("/chats/{chatID}/messages", s.handleListMessages)
		r.Post("/chats/{chatID}/messages", s.handleCreateMessage)
		r.Post("/generate", s.handleGenerate)
	})

	return r
}
