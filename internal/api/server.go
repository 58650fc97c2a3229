// Package api exposes the JSON HTTP surface: the public chat endpoint and
// the admin endpoints for the knowledge base and the pending queue.
package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/faqhub/faqhub/internal/resolution"
	"github.com/faqhub/faqhub/internal/retrieval"
)

// ServerConfig contains configuration for creating the API server.
type ServerConfig struct {
	Logger      *slog.Logger
	Retrieval   *retrieval.Service  // Required
	Resolution  *resolution.Service // Required
	Pool        *pgxpool.Pool       // Optional: nil disables pool stats in /ready
	CORSOrigins []string            // Allowed origins for CORS
	TrustProxy  bool                // Trust X-Real-IP/X-Forwarded-For headers (behind reverse proxy)
	RateRPS     float64             // Rate limiter refill per second per IP (0 = default 5)
	RateBurst   int                 // Rate limiter burst size per IP (0 = default 10)
}

// Server is the JSON API HTTP server.
type Server struct {
	mux *http.ServeMux
}

// NewServer creates a new API server with all routes configured.
func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Retrieval == nil {
		return nil, errors.New("retrieval service is required")
	}
	if cfg.Resolution == nil {
		return nil, errors.New("resolution service is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	ch := &chatHandler{retrieval: cfg.Retrieval, logger: logger}
	kh := &kbHandler{resolution: cfg.Resolution, logger: logger}
	ph := &pendingHandler{resolution: cfg.Resolution, logger: logger}

	mux := http.NewServeMux()

	// Public chat
	mux.HandleFunc("POST /api/v1/chat", ch.ask)

	// Knowledge base
	mux.HandleFunc("GET /api/v1/kb", kh.listEntries)
	mux.HandleFunc("POST /api/v1/kb", kh.addEntry)
	mux.HandleFunc("GET /api/v1/kb/{id}", kh.getEntry)
	mux.HandleFunc("PATCH /api/v1/kb/{id}", kh.editEntry)
	mux.HandleFunc("DELETE /api/v1/kb/{id}", kh.deleteEntry)
	mux.HandleFunc("POST /api/v1/kb/{id}/feedback", kh.feedback)

	// Pending queue
	mux.HandleFunc("GET /api/v1/pending", ph.list)
	mux.HandleFunc("POST /api/v1/pending/{id}/promote", ph.promote)
	mux.HandleFunc("POST /api/v1/pending/{id}/dismiss", ph.dismiss)

	rps := cfg.RateRPS
	if rps <= 0 {
		rps = 5.0
	}
	burst := cfg.RateBurst
	if burst <= 0 {
		burst = 10
	}
	rl := newRateLimiter(rps, burst)

	// Build middleware stack (outermost first):
	//   Recovery → RequestID → Logging → CORS → RateLimit → Routes
	// RequestID must be before Logging so request_id is available in log
	// attributes. CORS must be before RateLimit so preflight OPTIONS gets
	// proper CORS headers.
	var handler http.Handler = mux
	handler = rateLimitMiddleware(rl, cfg.TrustProxy, logger)(handler)
	handler = corsMiddleware(cfg.CORSOrigins)(handler)
	handler = loggingMiddleware(logger)(handler)
	handler = requestIDMiddleware()(handler)
	handler = recoveryMiddleware(logger)(handler)

	final := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		setSecurityHeaders(w)
		handler.ServeHTTP(w, r)
	})

	// Health probes stay outside the middleware stack so load balancers are
	// never rate limited or logged per poll.
	topMux := http.NewServeMux()
	topMux.HandleFunc("GET /health", health)
	topMux.Handle("GET /ready", readiness(cfg.Pool))
	topMux.Handle("/", final)

	return &Server{mux: topMux}, nil
}

// Handler returns the server as an http.Handler.
func (s *Server) Handler() http.Handler {
	return s.mux
}
