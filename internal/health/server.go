// Package health provides the ops HTTP server: health and readiness checks,
// Prometheus metrics, and the JSON challenge endpoints used in serve mode.
package health

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"gitlab.bluewillows.net/root/acmeweaver/internal/metrics"
	"gitlab.bluewillows.net/root/acmeweaver/pkg/challenge"
)

// Health status values.
const (
	StatusReady    = "ready"
	StatusNotReady = "not_ready"
)

// Checker is a function that checks the health of a component.
// Returns an error if the component is unhealthy.
type Checker func(ctx context.Context) error

// ComponentStatus represents the health status of a component.
type ComponentStatus struct {
	Name    string `json:"name"`
	Healthy bool   `json:"healthy"`
	Error   string `json:"error,omitempty"`
}

// Response represents a health check response.
type Response struct {
	Status     string            `json:"status"`
	Components []ComponentStatus `json:"components,omitempty"`
}

// challengeRequest is the body of the /present and /cleanup endpoints.
// Orchestrators POST the same {challenge} argument shape the provider
// lifecycle methods receive.
type challengeRequest struct {
	Challenge *challenge.Challenge `json:"challenge"`
}

// challengeResponse is the body returned by the challenge endpoints.
type challengeResponse struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// Server provides /health, /ready, /metrics, and, when a challenge provider
// is configured, /present and /cleanup endpoints.
type Server struct {
	port     int
	mux      *http.ServeMux
	server   *http.Server
	logger   *slog.Logger
	timeout  time.Duration
	provider challenge.Provider

	mu       sync.RWMutex
	checkers map[string]Checker
}

// Option is a functional option for configuring the Server.
type Option func(*Server)

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithTimeout sets the timeout for health checks.
func WithTimeout(timeout time.Duration) Option {
	return func(s *Server) {
		if timeout > 0 {
			s.timeout = timeout
		}
	}
}

// WithChallengeProvider exposes the /present and /cleanup endpoints backed
// by the given provider. Without it the server only serves health and
// metrics.
func WithChallengeProvider(provider challenge.Provider) Option {
	return func(s *Server) {
		s.provider = provider
	}
}

// New creates a new ops server on the specified port.
func New(port int, opts ...Option) *Server {
	s := &Server{
		port:     port,
		mux:      http.NewServeMux(),
		logger:   slog.Default(),
		timeout:  5 * time.Second,
		checkers: make(map[string]Checker),
	}

	for _, opt := range opts {
		opt(s)
	}

	s.setupRoutes()
	return s
}

// RegisterChecker adds a health checker for the /ready endpoint.
func (s *Server) RegisterChecker(name string, checker Checker) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.checkers[name] = checker
	s.logger.Debug("registered health checker", slog.String("name", name))
}

func (s *Server) setupRoutes() {
	s.mux.HandleFunc("/health", s.handleHealth)
	s.mux.HandleFunc("/ready", s.handleReady)
	s.mux.Handle("/metrics", promhttp.Handler())

	if s.provider != nil {
		s.mux.HandleFunc("/present", s.handleChallenge("present", s.provider.Set))
		s.mux.HandleFunc("/cleanup", s.handleChallenge("cleanup", s.provider.Remove))
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	resp := Response{Status: "healthy"}
	_ = json.NewEncoder(w).Encode(resp)
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	checkers := make(map[string]Checker, len(s.checkers))
	for name, checker := range s.checkers {
		checkers[name] = checker
	}
	s.mu.RUnlock()

	ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
	defer cancel()

	var components []ComponentStatus
	allHealthy := true

	for name, checker := range checkers {
		status := ComponentStatus{Name: name, Healthy: true}
		if err := checker(ctx); err != nil {
			status.Healthy = false
			status.Error = err.Error()
			allHealthy = false
			s.logger.Warn("health check failed",
				slog.String("component", name),
				slog.String("error", err.Error()),
			)
		}
		components = append(components, status)
	}

	w.Header().Set("Content-Type", "application/json")

	resp := Response{Components: components}
	if allHealthy {
		resp.Status = StatusReady
		w.WriteHeader(http.StatusOK)
	} else {
		resp.Status = StatusNotReady
		w.WriteHeader(http.StatusServiceUnavailable)
	}

	_ = json.NewEncoder(w).Encode(resp)
}

// handleChallenge builds a handler that decodes a {challenge} body and runs
// one provider lifecycle call. Set and remove poll for propagation, so these
// requests can block for minutes; no deadline is imposed beyond the
// client's.
func (s *Server) handleChallenge(endpoint string, call func(context.Context, *challenge.Challenge) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			s.writeChallengeResponse(w, endpoint, http.StatusMethodNotAllowed, "method not allowed")
			return
		}

		var req challengeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.writeChallengeResponse(w, endpoint, http.StatusBadRequest, "invalid request body: "+err.Error())
			return
		}

		if err := call(r.Context(), req.Challenge); err != nil {
			s.logger.Warn("challenge endpoint failed",
				slog.String("endpoint", endpoint),
				slog.String("error", err.Error()),
			)
			s.writeChallengeResponse(w, endpoint, challengeStatusCode(err), err.Error())
			return
		}

		s.writeChallengeResponse(w, endpoint, http.StatusOK, "")
	}
}

// challengeStatusCode maps provider errors onto HTTP status codes.
func challengeStatusCode(err error) int {
	var cfgErr *challenge.ConfigError

	switch {
	case challenge.IsChallengeRequired(err), errors.As(err, &cfgErr):
		return http.StatusBadRequest
	case challenge.IsZoneNotFound(err), challenge.IsRecordNotFound(err):
		return http.StatusNotFound
	default:
		return http.StatusBadGateway
	}
}

func (s *Server) writeChallengeResponse(w http.ResponseWriter, endpoint string, status int, errMsg string) {
	metrics.HTTPRequestsTotal.WithLabelValues(endpoint, strconv.Itoa(status)).Inc()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	resp := challengeResponse{Status: "ok"}
	if errMsg != "" {
		resp.Status = "error"
		resp.Error = errMsg
	}
	_ = json.NewEncoder(w).Encode(resp)
}

// Start starts the ops server in a goroutine.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.port),
		Handler:           s.mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		s.logger.Info("ops server starting", slog.Int("port", s.port))
		if err := s.server.ListenAndServe(); err != http.ErrServerClosed {
			s.logger.Error("ops server error", slog.String("error", err.Error()))
		}
	}()

	return nil
}

// Shutdown gracefully shuts down the ops server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}
