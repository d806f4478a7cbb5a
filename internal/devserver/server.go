// Package devserver is an in-memory CuriOS backend for development and
// tests. It implements /session, /chat and /messages with a small
// onboarding conversation: welcome, email/password sign-in (the password
// turn is declared secret), provider selection, then a plain echo.
package devserver

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/curios-os/curios/internal/config"
	"github.com/curios-os/curios/internal/tuilog"
)

const (
	DefaultHost = "127.0.0.1"
	DefaultPort = 8787
)

// Config configures a Server.
type Config struct {
	Host  string
	Port  int
	Quiet bool // no request logging

	// Tokens maps bearer tokens to the users they identify.
	Tokens map[string]User

	// LinkDelay is how many GET /session calls with a new token are
	// answered without a user before the token is linked to the session.
	LinkDelay int
}

// Server is the development backend.
type Server struct {
	config Config
	router chi.Router
	now    func() time.Time

	mu       sync.Mutex
	sessions map[string]*sessionData
	faults   []fault
}

// fault makes the next Count matching requests fail with Status.
type fault struct {
	method string
	path   string
	status int
	count  int
}

// New creates a Server.
func New(cfg Config) *Server {
	if cfg.Host == "" {
		cfg.Host = DefaultHost
	}
	s := &Server{
		config:   cfg,
		now:      time.Now,
		sessions: make(map[string]*sessionData),
	}
	s.router = s.setupRouter()
	return s
}

// Handler returns the HTTP handler, for use with httptest.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) setupRouter() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	if !s.config.Quiet {
		r.Use(middleware.Logger)
	}
	r.Use(s.faultMiddleware)

	r.Get("/healthz", s.handleHealth)
	r.Get("/session", s.handleGetSession)
	r.Delete("/session", s.handleDeleteSession)
	r.Post("/chat", s.handleChat)
	r.Get("/messages", s.handleMessages)

	return r
}

// FailNext makes the next count requests to method and path answer status.
func (s *Server) FailNext(method, path string, status, count int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.faults = append(s.faults, fault{method: method, path: path, status: status, count: count})
}

func (s *Server) faultMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if status := s.takeFault(r.Method, r.URL.Path); status != 0 {
			writeError(w, status, "injected", "injected failure")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) takeFault(method, path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.faults {
		f := &s.faults[i]
		if f.count > 0 && f.method == method && f.path == path {
			f.count--
			return f.status
		}
	}
	return 0
}

// ListenAndServe serves until ctx is cancelled. The address is registered
// so that curios clients on this machine find it.
func (s *Server) ListenAndServe(ctx context.Context) error {
	if existing := config.FindInstanceByPort(s.config.Port); existing != nil && s.config.Port != 0 {
		return fmt.Errorf("port %d is already in use by curios %s (PID %d, started %s)",
			s.config.Port, existing.Type, existing.PID, existing.StartedAt.Format(time.RFC3339))
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.config.Host, s.config.Port),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	ln, err := net.Listen("tcp", srv.Addr)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	if s.config.Port == 0 {
		s.config.Port = ln.Addr().(*net.TCPAddr).Port
	}

	inst := config.Instance{
		Type:      config.InstanceDevBackend,
		PID:       os.Getpid(),
		Port:      s.config.Port,
		Host:      s.config.Host,
		StartedAt: time.Now(),
	}
	if err := config.RegisterInstance(inst); err != nil {
		tuilog.Log.Warn("Failed to register dev backend instance", "error", err)
	}

	go func() {
		<-ctx.Done()
		config.UnregisterInstance(os.Getpid())
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	fmt.Printf("CuriOS dev backend running at http://%s\n", s.Addr())
	if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Addr returns host:port.
func (s *Server) Addr() string {
	return fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// ErrorResponse is the body of every error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

func writeError(w http.ResponseWriter, status int, err string, msg string) {
	writeJSON(w, status, ErrorResponse{Error: err, Message: msg})
}
