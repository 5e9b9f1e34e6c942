package server

import (
	"context"
	"encoding/base64"
	"log/slog"
	"net/http"
	"strings"

	"snapspend/internal/insights"
	"snapspend/internal/queue"
	"snapspend/internal/receipt"
)

// Enqueuer accepts one job per uploaded file.
type Enqueuer interface {
	Enqueue(ctx context.Context, job queue.Job) error
}

// Lister reads the persisted record set.
type Lister interface {
	ListReceipts() ([]*receipt.Record, error)
}

// Collector computes the collective insights payload.
type Collector interface {
	Collect(ctx context.Context) (*insights.Collective, error)
}

// Server handles HTTP requests for the receipt pipeline. Uploads are
// fire-and-forget: the handler enqueues and answers before processing, so
// an eventual pipeline failure is invisible to the uploader.
type Server struct {
	queue      Enqueuer
	db         Lister
	engine     Collector
	uploadsDir string
	basicAuth  BasicAuth
	mux        *http.ServeMux
}

// BasicAuth holds basic authentication credentials
type BasicAuth struct {
	Username string
	Password string
}

// NewServer creates a new Server with default mux
func NewServer(q Enqueuer, db Lister, engine Collector, uploadsDir string, basicAuth BasicAuth) *Server {
	return NewServerWithMux(q, db, engine, uploadsDir, basicAuth, http.NewServeMux())
}

// NewServerWithMux creates a new Server with a custom mux for testing
func NewServerWithMux(q Enqueuer, db Lister, engine Collector, uploadsDir string, basicAuth BasicAuth, mux *http.ServeMux) *Server {
	s := &Server{
		queue:      q,
		db:         db,
		engine:     engine,
		uploadsDir: uploadsDir,
		basicAuth:  basicAuth,
		mux:        mux,
	}
	s.registerRoutes()
	return s
}

// authenticate checks basic auth credentials
func (s *Server) authenticate(r *http.Request) bool {
	if s.basicAuth.Username == "" && s.basicAuth.Password == "" {
		return true // No auth required if not configured
	}

	auth := r.Header.Get("Authorization")
	if !strings.HasPrefix(auth, "Basic ") {
		return false
	}

	decoded, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(auth, "Basic "))
	if err != nil {
		return false
	}

	credentials := strings.SplitN(string(decoded), ":", 2)
	if len(credentials) != 2 {
		return false
	}

	return credentials[0] == s.basicAuth.Username && credentials[1] == s.basicAuth.Password
}

// corsMiddleware adds CORS headers to responses
func (s *Server) corsMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		setCORSHeaders(w)

		// Handle preflight OPTIONS requests
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next(w, r)
	}
}

// requireAuth middleware
func (s *Server) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.authenticate(r) {
			setCORSHeaders(w)
			w.Header().Set("WWW-Authenticate", `Basic realm="snapspend"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}

// registerRoutes registers all API routes on the server's mux
func (s *Server) registerRoutes() {
	s.mux.HandleFunc("POST /file/upload", s.requireAuth(s.handleUpload))
	s.mux.HandleFunc("GET /file/insights", s.requireAuth(s.handleListReceipts))
	s.mux.HandleFunc("GET /file/collective-insights", s.requireAuth(s.handleCollectiveInsights))
	s.mux.HandleFunc("GET /file/export", s.requireAuth(s.handleExport))
}

// Start starts the HTTP server
func (s *Server) Start(addr string) error {
	slog.Info("Starting server", "address", addr)
	return http.ListenAndServe(addr, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.corsMiddleware(func(w http.ResponseWriter, r *http.Request) {
			s.mux.ServeHTTP(w, r)
		})(w, r)
	}))
}

// ServeHTTP implements http.Handler for testing
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}
