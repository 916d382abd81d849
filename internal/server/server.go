// Package server exposes the training service over HTTP.
package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/nguyenbaduy011/IE221-fe-sub000/internal/training"
)

const (
	maxBodyBytes = 1 << 20
	readyTimeout = 2 * time.Second
)

// Check is a readiness probe of one dependency.
type Check func(ctx context.Context) error

// Server routes HTTP requests to the training service.
type Server struct {
	svc    *training.Service
	events http.Handler
	checks map[string]Check
}

// Option configures a Server.
type Option func(*Server)

// WithEvents mounts the WebSocket event feed handler.
func WithEvents(h http.Handler) Option {
	return func(s *Server) { s.events = h }
}

// WithCheck adds a readiness probe reported by /readyz.
func WithCheck(name string, check Check) Option {
	return func(s *Server) { s.checks[name] = check }
}

// New creates a server for svc.
func New(svc *training.Service, opts ...Option) *Server {
	s := &Server{svc: svc, checks: make(map[string]Check)}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the HTTP router.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", handleHealthz)
	mux.HandleFunc("GET /readyz", s.handleReadyz)

	mux.HandleFunc("GET /api/subjects", s.handleListSubjects)
	mux.HandleFunc("GET /api/courses/{courseID}/subjects", s.handleCurriculum)
	mux.HandleFunc("POST /api/courses/{courseID}/subjects", s.handleAddSubject)
	mux.HandleFunc("PUT /api/courses/{courseID}/subjects/order", s.handleReorder)
	mux.HandleFunc("PATCH /api/course-subjects/{id}", s.handleUpdateSubject)
	mux.HandleFunc("DELETE /api/course-subjects/{id}", s.handleRemoveSubject)

	mux.HandleFunc("POST /api/course-subjects/{id}/tasks", s.handleAddTask)
	mux.HandleFunc("PATCH /api/tasks/{id}", s.handleRenameTask)
	mux.HandleFunc("DELETE /api/tasks/{id}", s.handleDeleteTask)

	mux.HandleFunc("POST /api/courses/{courseID}/trainees", s.handleEnroll)
	mux.HandleFunc("GET /api/course-subjects/{id}/trainees/{traineeID}/progress", s.handleProgress)
	mux.HandleFunc("POST /api/tasks/{taskID}/trainees/{traineeID}/toggle", s.handleToggle)
	mux.HandleFunc("POST /api/course-subjects/{id}/trainees/{traineeID}/finish", s.handleFinish)
	mux.HandleFunc("POST /api/course-subjects/{id}/trainees/{traineeID}/force-complete", s.handleForceComplete)
	mux.HandleFunc("PUT /api/course-subjects/{id}/trainees/{traineeID}/assessment", s.handleAssessment)

	mux.HandleFunc("GET /api/courses/{courseID}/report.xlsx", s.handleReport)
	if s.events != nil {
		mux.Handle("GET /api/courses/{courseID}/events", s.events)
	}
	return mux
}

func handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
	defer cancel()

	failed := map[string]string{}
	for name, check := range s.checks {
		if err := check(ctx); err != nil {
			slog.Warn("readiness check failed", "check", name, "error", err)
			failed[name] = err.Error()
		}
	}
	if len(failed) > 0 {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"status": "unavailable", "failed": failed})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
