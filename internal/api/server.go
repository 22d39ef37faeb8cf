// Package api exposes the verification pipeline over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"

	"github.com/cruxlabs/crux/internal/model"
	"github.com/cruxlabs/crux/internal/scan"
	"github.com/cruxlabs/crux/internal/verify"
)

// recentLimit bounds the in-memory list served by GET /api/claims.
const recentLimit = 100

// VerifyService runs a full claim verification.
type VerifyService interface {
	Verify(ctx context.Context, claimText, sourceURL string) (*model.Verdict, error)
}

// ScanService runs one scan batch.
type ScanService interface {
	Run(ctx context.Context, window time.Duration) (*scan.Summary, error)
}

// CrisisReader reads active crisis clusters. Reads never evaluate.
type CrisisReader interface {
	ListActive() []model.CrisisCluster
}

// Server provides the HTTP endpoints for verification, scanning, and
// crisis alerts.
type Server struct {
	router   chi.Router
	verifier VerifyService
	scanner  ScanService
	crises   CrisisReader
	logger   *slog.Logger

	mu     sync.Mutex
	recent []*model.Verdict // Most recent first
}

// NewServer creates the API server.
func NewServer(verifier VerifyService, scanner ScanService, crises CrisisReader, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		verifier: verifier,
		scanner:  scanner,
		crises:   crises,
		logger:   logger,
	}
	s.router = s.setupRouter()
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) setupRouter() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(s.loggingMiddleware)

	corsHandler := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	})
	r.Use(corsHandler.Handler)

	r.Get("/health", s.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Post("/verify", s.handleVerify)
		r.Post("/scan", s.handleScan)
		r.Get("/crisis", s.handleCrisis)
		r.Get("/claims", s.handleClaims)
	})

	return r
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		defer func() {
			s.logger.Info("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"duration", time.Since(start),
			)
		}()
		next.ServeHTTP(ww, r)
	})
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}

func respondError(w http.ResponseWriter, status int, reason string) {
	respondJSON(w, status, map[string]string{"error": reason})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type verifyRequest struct {
	Text      string `json:"text"`
	SourceURL string `json:"source_url,omitempty"`
}

func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	var req verifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid-request")
		return
	}

	verdict, err := s.verifier.Verify(r.Context(), req.Text, req.SourceURL)
	if err != nil {
		status, reason := verifyErrorStatus(err)
		respondError(w, status, reason)
		return
	}

	s.remember(verdict)
	respondJSON(w, http.StatusOK, verdict)
}

// verifyErrorStatus maps the orchestrator's closed error set to HTTP.
func verifyErrorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, verify.ErrInvalidInput):
		return http.StatusBadRequest, "invalid-input"
	case errors.Is(err, verify.ErrNoEvidence):
		return http.StatusUnprocessableEntity, "no-evidence"
	case errors.Is(err, verify.ErrRunTimeout):
		return http.StatusGatewayTimeout, "timeout"
	case errors.Is(err, verify.ErrAgentMalformed):
		return http.StatusBadGateway, "agent-malformed"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

type scanRequest struct {
	Window string `json:"window,omitempty"` // Go duration string, e.g. "24h"
}

func (s *Server) handleScan(w http.ResponseWriter, r *http.Request) {
	var req scanRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, "invalid-request")
			return
		}
	}

	var window time.Duration
	if req.Window != "" {
		parsed, err := time.ParseDuration(req.Window)
		if err != nil || parsed <= 0 {
			respondError(w, http.StatusBadRequest, "invalid-window")
			return
		}
		window = parsed
	}

	summary, err := s.scanner.Run(r.Context(), window)
	if err != nil {
		s.logger.Error("scan batch failed", "error", err)
		respondError(w, http.StatusBadGateway, "scan-failed")
		return
	}
	respondJSON(w, http.StatusOK, summary)
}

type crisisResponse struct {
	CrisisDetected bool                  `json:"crisis_detected"`
	Clusters       []model.CrisisCluster `json:"clusters"`
}

func (s *Server) handleCrisis(w http.ResponseWriter, _ *http.Request) {
	clusters := s.crises.ListActive()

	detected := false
	for _, c := range clusters {
		if c.State == model.ClusterAlert {
			detected = true
			break
		}
	}

	respondJSON(w, http.StatusOK, crisisResponse{
		CrisisDetected: detected,
		Clusters:       clusters,
	})
}

func (s *Server) handleClaims(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	out := make([]*model.Verdict, len(s.recent))
	copy(out, s.recent)
	s.mu.Unlock()

	respondJSON(w, http.StatusOK, out)
}

// remember keeps the most recent verdicts for GET /api/claims.
func (s *Server) remember(v *model.Verdict) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recent = append([]*model.Verdict{v}, s.recent...)
	if len(s.recent) > recentLimit {
		s.recent = s.recent[:recentLimit]
	}
}
