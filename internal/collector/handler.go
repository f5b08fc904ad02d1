package collector

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/blockedby/channel-history/internal/logger"
)

// Handler handles HTTP requests for collector service
type Handler struct {
	manager  *HarvestManager
	defaults PaginationSpec
	log      *logger.Logger
}

// NewHandler creates a new handler. defaults fill fields a request omits.
func NewHandler(manager *HarvestManager, defaults PaginationSpec) *Handler {
	return &Handler{
		manager:  manager,
		defaults: defaults,
		log:      logger.Get().Component("http"),
	}
}

// Health handles GET /health
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
		"time":   time.Now().Format(time.RFC3339),
	})
}

// StartHarvest handles POST /api/v1/harvest
func (h *Handler) StartHarvest(w http.ResponseWriter, r *http.Request) {
	var req HarvestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid json: "+err.Error())
		return
	}

	if err := req.Validate(); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	job, err := h.manager.Start(r.Context(), HarvestOptions{
		Channels: req.Channels,
		Spec:     req.Spec(h.defaults),
	})
	if err != nil {
		if errors.Is(err, ErrAlreadyRunning) {
			respondError(w, http.StatusConflict, err.Error())
			return
		}
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	h.log.Info().
		Str("harvest_id", job.ID.String()).
		Strs("channels", job.Options.Channels).
		Msg("harvest started")

	respondJSON(w, http.StatusOK, HarvestResponse{
		HarvestID: job.ID.String(),
		Status:    "running",
		Channels:  job.Options.Channels,
		StartedAt: job.StartedAt,
	})
}

// StopHarvest handles DELETE /api/v1/harvest/current
func (h *Handler) StopHarvest(w http.ResponseWriter, r *http.Request) {
	h.manager.Stop()
	respondJSON(w, http.StatusOK, map[string]string{
		"message": "harvest stopped",
	})
}

// Status handles GET /api/v1/harvest/status
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	resp := map[string]interface{}{
		"status":          "idle",
		"telegram_status": h.manager.TelegramStatus(),
	}

	if current := h.manager.Current(); current != nil {
		resp["status"] = "running"
		resp["harvest_id"] = current.ID.String()
		resp["started_at"] = current.StartedAt.Format(time.RFC3339)
		resp["channels"] = current.Options.Channels
	}

	if last := h.manager.Last(); last != nil {
		resp["last_run"] = last
	}

	respondJSON(w, http.StatusOK, resp)
}

// AuthStatus handles GET /api/v1/auth/status
func (h *Handler) AuthStatus(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"telegram_status": h.manager.TelegramStatus(),
	})
}

// helper functions

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{
		"error": message,
	})
}
