package server

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/ivritype/tirgum/internal/session"
)

// runner is the slice of the pipeline the server drives. Tests substitute
// fakes.
type runner interface {
	ProcessSync(ctx context.Context, s *session.Session) error
	RunBatch(ctx context.Context, s *session.Session, pollInterval time.Duration) error
}

// Config holds server configuration.
type Config struct {
	Host         string
	Port         int
	CORSOrigin   string
	MaxUploadMB  int64
	TimeoutSec   int
	Mode         string
	Verify       bool
	MaxDistance  int
	PollInterval time.Duration
}

// Server holds the HTTP server state and dependencies.
type Server struct {
	store        *session.Store
	pipeline     runner
	corsOrigin   string
	maxUploadMB  int64
	timeoutSec   int
	defaultMode  string
	verify       bool
	maxDistance  int
	pollInterval time.Duration

	mu      sync.Mutex
	cancels map[string]context.CancelFunc
}

// SessionResponse is the externally visible state of one session.
type SessionResponse struct {
	ID         string               `json:"id"`
	Mode       session.Mode         `json:"mode"`
	Finished   bool                 `json:"finished"`
	Cancelled  bool                 `json:"cancelled"`
	FatalError string               `json:"fatal_error,omitempty"`
	Stats      map[string]int       `json:"stats"`
	Pages      []session.PageStatus `json:"pages"`
}

// CreateSessionResponse is returned when a session is accepted.
type CreateSessionResponse struct {
	ID         string `json:"id"`
	Pages      int    `json:"pages"`
	Duplicates int    `json:"duplicates"`
}

// HealthResponse reports server health.
type HealthResponse struct {
	Status string `json:"status"`
	Time   string `json:"time"`
}

// ErrorResponse carries a handler error to the client.
type ErrorResponse struct {
	Error string `json:"error"`
}

// NewServer creates a translation server over the given pipeline.
func NewServer(pl runner, store *session.Store, config Config) *Server {
	if config.MaxUploadMB <= 0 {
		config.MaxUploadMB = 200
	}
	if config.PollInterval <= 0 {
		config.PollInterval = 30 * time.Second
	}
	if config.Mode == "" {
		config.Mode = string(session.ModeSync)
	}
	return &Server{
		store:        store,
		pipeline:     pl,
		corsOrigin:   config.CORSOrigin,
		maxUploadMB:  config.MaxUploadMB,
		timeoutSec:   config.TimeoutSec,
		defaultMode:  config.Mode,
		verify:       config.Verify,
		maxDistance:  config.MaxDistance,
		pollInterval: config.PollInterval,
		cancels:      make(map[string]context.CancelFunc),
	}
}

// SetupRoutes configures the HTTP routes.
func (s *Server) SetupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/healthz", s.corsMiddleware(s.healthHandler))
	mux.HandleFunc("/sessions", s.corsMiddleware(s.createSessionHandler))
	mux.HandleFunc("/sessions/{id}", s.corsMiddleware(s.getSessionHandler))
	mux.HandleFunc("/sessions/{id}/cancel", s.corsMiddleware(s.cancelSessionHandler))
	mux.HandleFunc("/sessions/{id}/pages/{idx}/cancel", s.corsMiddleware(s.cancelPageHandler))
	mux.HandleFunc("/sessions/{id}/export", s.corsMiddleware(s.exportSessionHandler))
	mux.HandleFunc("/sessions/{id}/ws", s.progressWebSocketHandler)
}

// Close cancels all running sessions.
func (s *Server) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, cancel := range s.cancels {
		cancel()
	}
	s.cancels = make(map[string]context.CancelFunc)
	return nil
}

func (s *Server) trackCancel(id string, cancel context.CancelFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancels[id] = cancel
}

func (s *Server) dropCancel(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.cancels, id)
}

func (s *Server) cancelSession(id string) {
	s.mu.Lock()
	cancel := s.cancels[id]
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}
