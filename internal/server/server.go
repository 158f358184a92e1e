// Package server provides the HTTP REST API for the manuscript corrector.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/patrickmn/go-cache"

	"github.com/atreyu1968/manuscript-mender/internal/db"
	"github.com/atreyu1968/manuscript-mender/internal/llm"
	"github.com/atreyu1968/manuscript-mender/internal/server/ratelimit"
	"github.com/atreyu1968/manuscript-mender/internal/types"
)

// Store is the persistence surface the handlers need. *db.DB satisfies it;
// tests substitute an in-memory implementation.
type Store interface {
	CreateManuscript(ctx context.Context, id, title, content string) error
	SaveManuscript(ctx context.Context, m *types.CorrectedManuscript) error
	GetManuscript(ctx context.Context, id string) (*types.CorrectedManuscript, error)
	FindManuscriptByCorrection(ctx context.Context, correctionID string) (*types.CorrectedManuscript, error)
	ListManuscripts(ctx context.Context, filters db.ManuscriptFilters) ([]db.ManuscriptSummary, error)
	DeleteManuscript(ctx context.Context, id string) error
}

// Server represents the HTTP server
type Server struct {
	httpServer   *http.Server
	store        Store
	client       llm.Client
	validate     *validator.Validate
	rateLimiter  *ratelimit.Limiter
	locks        *keyedMutex
	optionsCache *cache.Cache
}

// Config holds server configuration
type Config struct {
	Port        int
	DatabaseURL string
	APIKey      string
}

// optionsCacheTTL bounds how long computed resolution options are reused.
// Options embed chapter context from the working content, so they go stale
// whenever an approval mutates the text.
const optionsCacheTTL = 5 * time.Minute

// New creates a new server instance
func New(cfg Config) (*Server, error) {
	database, err := db.Connect(context.Background(), cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	client, err := llm.NewClient(context.Background(), nil, cfg.APIKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create generative client: %w", err)
	}

	s := newWith(database, client)

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.withRateLimit(s.withLogging(s.withCORS(s.routes()))),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 600 * time.Second, // Long timeout for correction runs
		IdleTimeout:  60 * time.Second,
	}

	return s, nil
}

// newWith wires a server around explicit dependencies. Used directly by tests.
func newWith(store Store, client llm.Client) *Server {
	return &Server{
		store:        store,
		client:       client,
		validate:     validator.New(),
		rateLimiter:  ratelimit.NewLimiter(ratelimit.DefaultRules()),
		locks:        newKeyedMutex(),
		optionsCache: cache.New(optionsCacheTTL, 10*time.Minute),
	}
}

// routes builds the request mux.
func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.handleHealth)

	// Manuscript lifecycle
	mux.HandleFunc("POST /manuscripts", s.handleCreateManuscript)
	mux.HandleFunc("GET /manuscripts", s.handleListManuscripts)
	mux.HandleFunc("GET /manuscripts/{id}", s.handleGetManuscript)
	mux.HandleFunc("DELETE /manuscripts/{id}", s.handleDeleteManuscript)
	mux.HandleFunc("POST /manuscripts/{id}/corrections/run", s.handleRunStream)
	mux.HandleFunc("POST /manuscripts/{id}/finalize", s.handleFinalize)

	// Review actions on individual corrections
	mux.HandleFunc("GET /corrections/{id}/options", s.handleOptions)
	mux.HandleFunc("POST /corrections/{id}/approve", s.handleApprove)
	mux.HandleFunc("POST /corrections/{id}/reject", s.handleReject)
	mux.HandleFunc("POST /corrections/{id}/resolve", s.handleResolve)

	return mux
}

// Start begins listening for requests
func (s *Server) Start() error {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	go func() {
		log.Printf("Server starting on %s", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	<-stop
	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	if s.rateLimiter != nil {
		s.rateLimiter.Stop()
	}
	if closer, ok := s.store.(interface{ Close() }); ok {
		closer.Close()
	}
	if s.client != nil {
		s.client.Close() //nolint:errcheck
	}
	log.Println("Server stopped")
	return nil
}

// withCORS adds CORS headers
func (s *Server) withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// withRateLimit adds rate limiting middleware
func (s *Server) withRateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		clientID := s.extractClientID(r)

		allowed, info := s.rateLimiter.Allow(clientID, r.URL.Path, r.Method)
		s.setRateLimitHeaders(w, info)
		if !allowed {
			s.rateLimitResponse(w, info)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// withLogging adds request logging
func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		log.Printf("[%s] %s %s", r.Method, r.URL.Path, r.RemoteAddr)
		next.ServeHTTP(w, r)
		log.Printf("[%s] %s completed in %v", r.Method, r.URL.Path, time.Since(start))
	})
}

// handleHealth returns server health status
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.jsonResponse(w, http.StatusOK, map[string]string{"status": "ok"})
}

// jsonResponse writes a JSON response
func (s *Server) jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("Error encoding JSON response: %v", err)
	}
}

// errorResponse writes an error JSON response
func (s *Server) errorResponse(w http.ResponseWriter, status int, message string) {
	s.jsonResponse(w, status, map[string]string{"error": message})
}

// extractClientID extracts the client identifier (IP) from the request.
func (s *Server) extractClientID(r *http.Request) string {
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

// setRateLimitHeaders sets standard rate limit headers on the response.
func (s *Server) setRateLimitHeaders(w http.ResponseWriter, info ratelimit.Info) {
	if info.Limit > 0 {
		w.Header().Set("X-RateLimit-Limit", fmt.Sprintf("%d", info.Limit))
		w.Header().Set("X-RateLimit-Remaining", fmt.Sprintf("%d", info.Remaining))
		w.Header().Set("X-RateLimit-Reset", fmt.Sprintf("%d", info.ResetTime.Unix()))
	}
}

// rateLimitResponse writes a 429 Too Many Requests response.
func (s *Server) rateLimitResponse(w http.ResponseWriter, info ratelimit.Info) {
	response := map[string]any{
		"error":     "rate_limit_exceeded",
		"message":   "Rate limit exceeded. Please try again later.",
		"limit":     info.Limit,
		"remaining": info.Remaining,
		"reset_at":  info.ResetTime.Format(time.RFC3339),
	}

	if info.RetryAfter > 0 {
		response["retry_after"] = int(info.RetryAfter.Seconds())
		w.Header().Set("Retry-After", fmt.Sprintf("%d", int(info.RetryAfter.Seconds())))
	}

	s.jsonResponse(w, http.StatusTooManyRequests, response)
}
