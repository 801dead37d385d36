package history

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// Handler handles HTTP requests for the history module.
type Handler struct {
	repo *Repository
	log  zerolog.Logger
}

// NewHandler creates a new history handler.
func NewHandler(repo *Repository, log zerolog.Logger) *Handler {
	return &Handler{
		repo: repo,
		log:  log.With().Str("component", "history_handler").Logger(),
	}
}

// RegisterRoutes mounts the history routes on a router.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/history/symbols", h.HandleListSymbols)
	r.Put("/history/{symbol}/prices", h.HandleSavePrices)
}

// HandleListSymbols handles GET /api/history/symbols.
func (h *Handler) HandleListSymbols(w http.ResponseWriter, r *http.Request) {
	symbols, err := h.repo.Symbols()
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list symbols")
		h.writeError(w, http.StatusInternalServerError, "Failed to list symbols")
		return
	}
	if symbols == nil {
		symbols = []string{}
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{"symbols": symbols})
}

// HandleSavePrices handles PUT /api/history/{symbol}/prices.
func (h *Handler) HandleSavePrices(w http.ResponseWriter, r *http.Request) {
	symbol := chi.URLParam(r, "symbol")

	var points []PricePoint
	if err := json.NewDecoder(r.Body).Decode(&points); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := h.repo.SavePrices(symbol, points); err != nil {
		h.log.Error().Err(err).Str("symbol", symbol).Msg("Failed to save prices")
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"symbol": symbol,
		"saved":  len(points),
	})
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
