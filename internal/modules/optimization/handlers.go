package optimization

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/bagelworks/meanvar/pkg/meanvar"
)

// Handler handles HTTP requests for the optimization module.
type Handler struct {
	service *Service
	log     zerolog.Logger
}

// NewHandler creates a new optimization handler.
func NewHandler(service *Service, log zerolog.Logger) *Handler {
	return &Handler{
		service: service,
		log:     log.With().Str("component", "optimization_handler").Logger(),
	}
}

// RegisterRoutes mounts the optimization routes on a router.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/optimize/mvp", h.HandleMVP)
	r.Post("/optimize/frontier", h.HandleFrontier)
	r.Post("/optimize/history", h.HandleFromHistory)
	r.Get("/optimize/last", h.HandleLastResult)
	r.Post("/portfolio/metrics", h.HandleMetrics)
}

// HandleMVP handles POST /api/optimize/mvp.
func (h *Handler) HandleMVP(w http.ResponseWriter, r *http.Request) {
	var req OptimizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	result, err := h.service.MVP(req)
	if err != nil {
		h.writeSolverError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, result)
}

// HandleFrontier handles POST /api/optimize/frontier.
func (h *Handler) HandleFrontier(w http.ResponseWriter, r *http.Request) {
	var req OptimizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	result, err := h.service.Frontier(req)
	if err != nil {
		h.writeSolverError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, result)
}

// HandleFromHistory handles POST /api/optimize/history.
func (h *Handler) HandleFromHistory(w http.ResponseWriter, r *http.Request) {
	var req HistoryOptimizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	result, err := h.service.FromHistory(req)
	if err != nil {
		h.writeSolverError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, result)
}

// HandleLastResult handles GET /api/optimize/last.
func (h *Handler) HandleLastResult(w http.ResponseWriter, r *http.Request) {
	result := h.service.LastResult()
	if result == nil {
		h.writeError(w, http.StatusNotFound, "No optimization has run yet")
		return
	}
	h.writeJSON(w, http.StatusOK, result)
}

// HandleMetrics handles POST /api/portfolio/metrics.
func (h *Handler) HandleMetrics(w http.ResponseWriter, r *http.Request) {
	var req MetricsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	result, err := h.service.PortfolioMetrics(req)
	if err != nil {
		h.writeSolverError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, result)
}

// writeSolverError maps solver failures onto HTTP statuses: malformed inputs
// are the caller's fault (400), singular or degenerate markets are
// unprocessable data (422), anything else is a server error.
func (h *Handler) writeSolverError(w http.ResponseWriter, err error) {
	var invalid *meanvar.InvalidInputError
	var singular *meanvar.SingularMatrixError
	var degenerate *meanvar.DegenerateFrontierError

	switch {
	case errors.As(err, &invalid):
		h.writeError(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &singular), errors.As(err, &degenerate):
		h.writeError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		h.log.Error().Err(err).Msg("Optimization failed")
		h.writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
