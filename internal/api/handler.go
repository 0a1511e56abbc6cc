// Package api serves the simulation persistence and scenario endpoints.
package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"pandemus/internal/epidemic"
	"pandemus/internal/events"
	"pandemus/internal/metrics"
	"pandemus/internal/model"
	"pandemus/internal/profiles"
	"pandemus/internal/scenario"
	"pandemus/internal/store"
	"pandemus/internal/validate"
)

const (
	serviceName  = "pandemus-api"
	maxBodyBytes = 8 << 20
)

// Handler handles HTTP requests for the pandemus API
type Handler struct {
	store      store.SimulationStore
	catalog    *profiles.Catalog
	validator  *validate.SimulationValidator
	notifier   *events.Notifier
	metrics    *metrics.Metrics
	gatherer   prometheus.Gatherer
	factorMode epidemic.FactorMode
	logger     *slog.Logger
	handler    http.Handler
}

// Option configures a Handler.
type Option func(*Handler)

// WithGatherer exposes the metrics of gatherer at /metrics.
func WithGatherer(gatherer prometheus.Gatherer) Option {
	return func(h *Handler) { h.gatherer = gatherer }
}

// WithFactorMode selects how scenario measures combine.
func WithFactorMode(mode epidemic.FactorMode) Option {
	return func(h *Handler) { h.factorMode = mode }
}

// NewHandler creates a new API handler
func NewHandler(st store.SimulationStore, catalog *profiles.Catalog, notifier *events.Notifier, m *metrics.Metrics, logger *slog.Logger, opts ...Option) (*Handler, error) {
	validator, err := validate.NewSimulationValidator()
	if err != nil {
		return nil, err
	}

	h := &Handler{
		store:     st,
		catalog:   catalog,
		validator: validator,
		notifier:  notifier,
		metrics:   m,
		gatherer:  prometheus.DefaultGatherer,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(h)
	}

	h.handler = middleware.RequestID(middleware.Recoverer(h.logRequests(h.cors(h.routes()))))
	return h, nil
}

// ServeHTTP implements http.Handler
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.handler.ServeHTTP(w, r)
}

func (h *Handler) routes() *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/api", h.handleRoot).Methods(http.MethodGet)
	r.HandleFunc("/api/simulation/create", h.handleCreateSimulation).Methods(http.MethodPost)
	r.HandleFunc("/api/simulation/list", h.handleListSimulations).Methods(http.MethodGet)
	r.HandleFunc("/api/simulation/{id}", h.handleGetSimulation).Methods(http.MethodGet)
	r.HandleFunc("/api/simulation/{id}/delete", h.handleDeleteSimulation).Methods(http.MethodDelete)
	r.HandleFunc("/api/profiles", h.handleListProfiles).Methods(http.MethodGet)
	r.HandleFunc("/api/scenario/run", h.handleRunScenario).Methods(http.MethodPost)
	r.HandleFunc("/api/scenario/compare", h.handleCompareScenarios).Methods(http.MethodPost)

	// Health endpoints
	r.HandleFunc("/healthz", h.handleHealthz).Methods(http.MethodGet)
	r.HandleFunc("/readyz", h.handleReadyz).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.HandlerFor(h.gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "Not found"})
	})
	return r
}

// cors sets the common headers and answers preflight requests.
func (h *Handler) cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (h *Handler) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		h.logger.Debug("HTTP request",
			"request_id", middleware.GetReqID(r.Context()),
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration_ms", time.Since(start).Milliseconds())
	})
}

// handleRoot handles GET /api requests
func (h *Handler) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"message": "Pandemus backend"})
}

// handleCreateSimulation handles POST /api/simulation/create requests
func (h *Handler) handleCreateSimulation(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Failed to read request body"})
		return
	}

	sim, fieldErrs, err := h.validator.Validate(body)
	if err != nil {
		h.metrics.IncrementValidationFailures()
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid JSON in request body"})
		return
	}
	if len(fieldErrs) > 0 {
		h.metrics.IncrementValidationFailures()
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{"errors": fieldErrs})
		return
	}

	created, err := h.persist(r, sim)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Internal server error"})
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{"created": created})
}

// persist stores sim and announces it.
func (h *Handler) persist(r *http.Request, sim *model.Simulation) (*model.Simulation, error) {
	created, err := h.store.Create(r.Context(), sim)
	if err != nil {
		h.logger.Error("Failed to create simulation", "error", err)
		return nil, err
	}
	h.metrics.IncrementCreated()
	h.notifier.Created(created)
	h.logger.Info("Simulation created", "simulation_id", created.ID, "days", created.Days)
	return created, nil
}

// handleListSimulations handles GET /api/simulation/list requests
func (h *Handler) handleListSimulations(w http.ResponseWriter, r *http.Request) {
	sims, err := h.store.List(r.Context())
	if err != nil {
		h.logger.Error("Failed to list simulations", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Internal server error"})
		return
	}
	if sims == nil {
		sims = []*model.Simulation{}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"simulations": sims})
}

// handleGetSimulation handles GET /api/simulation/{id} requests
func (h *Handler) handleGetSimulation(w http.ResponseWriter, r *http.Request) {
	id, fieldErrs := validate.ParseID(mux.Vars(r)["id"])
	if len(fieldErrs) > 0 {
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{"error": fieldErrs})
		return
	}

	sim, err := h.store.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "Simulation not found"})
			return
		}
		h.logger.Error("Failed to get simulation", "simulation_id", id, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"simulation": sim})
}

// handleDeleteSimulation handles DELETE /api/simulation/{id}/delete requests
func (h *Handler) handleDeleteSimulation(w http.ResponseWriter, r *http.Request) {
	id, fieldErrs := validate.ParseID(mux.Vars(r)["id"])
	if len(fieldErrs) > 0 {
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{"error": fieldErrs})
		return
	}

	deleted, err := h.store.Delete(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "Simulation does not exist"})
			return
		}
		h.logger.Error("Failed to delete simulation", "simulation_id", id, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Internal server error"})
		return
	}

	h.metrics.IncrementDeleted()
	h.notifier.Deleted(deleted)
	h.logger.Info("Simulation deleted", "simulation_id", id)
	writeJSON(w, http.StatusOK, map[string]interface{}{"deleted": deleted})
}

// handleListProfiles handles GET /api/profiles requests
func (h *Handler) handleListProfiles(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"profiles": h.catalog.List(),
		"default":  profiles.DefaultProfile,
	})
}

// handleRunScenario handles POST /api/scenario/run requests
func (h *Handler) handleRunScenario(w http.ResponseWriter, r *http.Request) {
	var req model.RunScenarioRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid JSON in request body"})
		return
	}

	start := time.Now()
	resp, err := scenario.Run(h.catalog, req, h.factorMode, h.logger)
	if err != nil {
		h.metrics.IncrementValidationFailures()
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	h.metrics.ObserveScenarioRun(resp.Summary.Profile, resp.Summary.Measure, time.Since(start).Seconds())

	if req.Save {
		record := model.FromSeries("", resp.Series)
		body, err := json.Marshal(model.CreateSimulationRequest{
			Name:      optional(req.Name),
			Days:      record.Days,
			Infected:  record.Infected,
			Dead:      record.Dead,
			Recovered: record.Recovered,
		})
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Internal server error"})
			return
		}
		// A saved scenario goes through the same checks as a posted record.
		valid, fieldErrs, err := h.validator.Validate(body)
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Internal server error"})
			return
		}
		if len(fieldErrs) > 0 {
			h.metrics.IncrementValidationFailures()
			writeJSON(w, http.StatusBadRequest, map[string]interface{}{"errors": fieldErrs})
			return
		}
		saved, err := h.persist(r, valid)
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Internal server error"})
			return
		}
		resp.Saved = saved
	}

	writeJSON(w, http.StatusOK, resp)
}

// handleCompareScenarios handles POST /api/scenario/compare requests
func (h *Handler) handleCompareScenarios(w http.ResponseWriter, r *http.Request) {
	var req model.CompareScenarioRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid JSON in request body"})
		return
	}

	summaries, err := scenario.Compare(h.catalog, req.RunScenarioRequest, req.Measures, h.factorMode, h.logger)
	if err != nil {
		h.metrics.IncrementValidationFailures()
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	for _, s := range summaries {
		h.metrics.ScenarioRuns.WithLabelValues(s.Profile, s.Measure).Inc()
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"summaries": summaries})
}

// handleHealthz handles health check requests
func (h *Handler) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"service":   serviceName,
		"status":    "healthy",
		"timestamp": time.Now().Unix(),
	})
}

// handleReadyz handles readiness check requests
func (h *Handler) handleReadyz(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Health(r.Context()); err != nil {
		h.logger.Error("Readiness check failed - store not accessible", "error", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]interface{}{
			"service": serviceName,
			"status":  "not ready",
			"error":   "store not accessible",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"service":   serviceName,
		"status":    "ready",
		"timestamp": time.Now().Unix(),
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
