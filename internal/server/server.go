package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/circle97/remind/internal/engine"
	"github.com/circle97/remind/internal/store"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Server is the remind HTTP API server.
type Server struct {
	db      *store.DB
	engine  *engine.Engine
	router  chi.Router
	version string
	started time.Time
}

// New creates a new Server with the given database, engine, and version string.
func New(db *store.DB, eng *engine.Engine, version string) *Server {
	s := &Server{
		db:      db,
		engine:  eng,
		version: version,
		started: time.Now(),
	}
	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		r.Post("/recognize", s.handleRecognize)

		r.Post("/events", s.handleCreateEvent)
		r.Get("/events", s.handleListEvents)
		r.Get("/events/{eventID}", s.handleGetEvent)
		r.Delete("/events/{eventID}", s.handleDeleteEvent)
		r.Post("/events/{eventID}/complete", s.handleCompleteEvent)
		r.Post("/events/{eventID}/cancel", s.handleCancelEvent)
		r.Get("/events/{eventID}/occurrences", s.handleOccurrences)
		r.Post("/events/{eventID}/reminders", s.handlePlanReminders)
		r.Get("/events/{eventID}/reminders", s.handleEventReminders)

		r.Get("/reminders", s.handleListReminders)
		r.Get("/reminders/stats", s.handleStats)
		r.Post("/reminders/{reminderID}/retry", s.handleRetryReminder)
		r.Post("/reminders/{reminderID}/cancel", s.handleCancelReminder)

		r.Post("/process", s.handleProcess)
	})

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	dbOK := true
	if err := s.db.Ping(); err != nil {
		dbOK = false
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"status":  "ok",
		"version": s.version,
		"uptime":  time.Since(s.started).Seconds(),
		"db":      dbOK,
		"db_path": s.db.Path,
	})
}
