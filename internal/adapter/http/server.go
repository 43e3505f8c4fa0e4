// Package http exposes the oracle's operational and v1 API endpoints.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/pluvia-labs/rainfall-oracle/internal/domain"
	"github.com/pluvia-labs/rainfall-oracle/internal/oracle"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// ReadinessChecker reports whether the service is ready to serve traffic.
type ReadinessChecker interface {
	CheckReadiness(ctx context.Context) error
}

// Server exposes health, readiness, metrics, and the v1 oracle API.
type Server struct {
	httpServer *http.Server
	binder     *oracle.Binder
	gateway    *oracle.Gateway
	query      *oracle.ThresholdQuery
	resolver   domain.Resolver
	clock      clockwork.Clock
	logger     *slog.Logger
}

// NewServer creates the HTTP server. Pass a nil resolver to require an
// explicit provider key on every bind request.
func NewServer(addr string, ready ReadinessChecker, binder *oracle.Binder, gateway *oracle.Gateway, query *oracle.ThresholdQuery, resolver domain.Resolver, clock clockwork.Clock, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		binder:   binder,
		gateway:  gateway,
		query:    query,
		resolver: resolver,
		clock:    clock,
		logger:   logger,
	}

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", handleReady(ready))
	mux.Handle("GET /metrics", promhttp.Handler())

	mux.HandleFunc("POST /v1/locations/{id}/binding", s.handleBind)
	mux.HandleFunc("GET /v1/locations/{id}/binding", s.handleGetBinding)
	mux.HandleFunc("POST /v1/readings", s.handleSubmitReading)
	mux.HandleFunc("GET /v1/locations/{id}/rolling-sum", s.handleRollingSum)
	mux.HandleFunc("GET /v1/locations/{id}/strike", s.handleStrike)

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func handleReady(checker ReadinessChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := checker.CheckReadiness(ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "not ready",
				"error":  err.Error(),
			})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}

type bindRequest struct {
	ProviderKey string `json:"provider_key"`
	AnchorLat   int64  `json:"anchor_lat"`
	AnchorLon   int64  `json:"anchor_lon"`
}

func (s *Server) handleBind(w http.ResponseWriter, r *http.Request) {
	locationID := r.PathValue("id")

	var req bindRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	providerKey := req.ProviderKey
	if providerKey == "" && s.resolver != nil {
		resolved, err := s.resolver.Resolve(r.Context(), req.AnchorLat, req.AnchorLon)
		if err != nil {
			s.logger.Error("resolve provider key failed", "location_id", locationID, "error", err)
			writeError(w, http.StatusBadGateway, "provider key resolution failed")
			return
		}
		if resolved.ProviderKey == "" {
			writeError(w, http.StatusUnprocessableEntity, "no provider location at anchor coordinates")
			return
		}
		providerKey = resolved.ProviderKey
	}

	if err := s.binder.Bind(locationID, providerKey, req.AnchorLat, req.AnchorLon); err != nil {
		s.writeDomainError(w, err)
		return
	}

	binding, _, err := s.binder.Get(locationID)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, binding)
}

func (s *Server) handleGetBinding(w http.ResponseWriter, r *http.Request) {
	binding, ok, err := s.binder.Get(r.PathValue("id"))
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "location is not bound")
		return
	}
	writeJSON(w, http.StatusOK, binding)
}

func (s *Server) handleSubmitReading(w http.ResponseWriter, r *http.Request) {
	var reading domain.Reading
	if err := json.NewDecoder(r.Body).Decode(&reading); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if reading.LocationID == "" || reading.Timestamp == 0 {
		writeError(w, http.StatusBadRequest, "location_id and timestamp are required")
		return
	}

	if err := s.gateway.SubmitReading(r.Context(), reading.LocationID, reading.Timestamp, reading.RainfallMM); err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

func (s *Server) handleRollingSum(w http.ResponseWriter, r *http.Request) {
	locationID := r.PathValue("id")

	asOf := s.clock.Now().Unix()
	if v := r.URL.Query().Get("at"); v != "" {
		parsed, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid at parameter")
			return
		}
		asOf = parsed
	}

	sum, err := s.query.RollingSumAt(locationID, asOf)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"location_id":    locationID,
		"as_of":          asOf,
		"rolling_sum_mm": sum,
	})
}

func (s *Server) handleStrike(w http.ResponseWriter, r *http.Request) {
	locationID := r.PathValue("id")

	strikeMM, err := queryInt(r, "strike_mm")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid strike_mm parameter")
		return
	}
	from, err := queryInt(r, "from")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid from parameter")
		return
	}
	to, err := queryInt(r, "to")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid to parameter")
		return
	}

	struck, err := s.query.ExceededInWindow(locationID, strikeMM, from, to)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"location_id": locationID,
		"strike_mm":   strikeMM,
		"from":        from,
		"to":          to,
		"struck":      struck,
	})
}

// writeDomainError maps domain sentinel errors onto HTTP status codes.
func (s *Server) writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrUnbound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrAlreadyBound):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrInvalidCoordinates),
		errors.Is(err, domain.ErrEmptyProviderKey),
		errors.Is(err, domain.ErrStaleTimestamp),
		errors.Is(err, domain.ErrFutureTimestamp),
		errors.Is(err, domain.ErrRainfallOutOfRange):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, domain.ErrInvalidWindow):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		s.logger.Error("request failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func queryInt(r *http.Request, name string) (int64, error) {
	return strconv.ParseInt(r.URL.Query().Get(name), 10, 64)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // best-effort response
}
