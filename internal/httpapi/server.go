package httpapi

import (
	"log/slog"
	"net/http"

	"github.com/roach88/giftswap/internal/exchange"
)

// AdminSecretHeader carries the admin secret on admin routes.
const AdminSecretHeader = "X-Admin-Secret"

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 4 << 10

// Server routes HTTP requests to the registry and admin gate.
type Server struct {
	registry *exchange.Registry
	admin    *exchange.Admin
	logger   *slog.Logger
	mux      *http.ServeMux
}

// NewServer builds the route table. A nil logger uses slog.Default().
func NewServer(registry *exchange.Registry, admin *exchange.Admin, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		registry: registry,
		admin:    admin,
		logger:   logger,
		mux:      http.NewServeMux(),
	}

	s.mux.HandleFunc("POST /api/register", s.handleRegister)
	s.mux.HandleFunc("GET /api/status", s.handleStatus)
	s.mux.HandleFunc("GET /api/participants/{token}", s.handleParticipant)
	s.mux.HandleFunc("GET /api/admin/participants", s.handleAdminParticipants)
	s.mux.HandleFunc("POST /api/admin/shuffle", s.handleAdminShuffle)
	s.mux.HandleFunc("POST /api/admin/reopen", s.handleAdminReopen)
	s.mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return s
}

// Handler returns the root handler with request logging applied.
func (s *Server) Handler() http.Handler {
	return logRequests(s.logger, s.mux)
}
