package gateway

import (
	"encoding/json"
	"net/http"

	"github.com/julienschmidt/httprouter"
	"github.com/rs/zerolog/log"

	"github.com/jaymepena/debatelords/go/internal/models"
)

// StateProvider exposes the current overlay snapshot.
type StateProvider interface {
	Snapshot() models.Blob
}

// StateHandler serves read-only views of the overlay and its sessions.
type StateHandler struct {
	stateProvider     StateProvider
	connectionManager *ConnectionManager
}

// NewStateHandler creates a new state handler
func NewStateHandler(provider StateProvider, cm *ConnectionManager) *StateHandler {
	return &StateHandler{
		stateProvider:     provider,
		connectionManager: cm,
	}
}

// HandleGetState handles GET /api/state
func (h *StateHandler) HandleGetState(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	writeJSON(w, http.StatusOK, h.stateProvider.Snapshot())
}

// HandleConnectionStats handles GET /ws/stats
func (h *StateHandler) HandleConnectionStats(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	writeJSON(w, http.StatusOK, h.connectionManager.GetConnectionStats())
}

// RegisterStateRoutes registers state-related HTTP routes
func (h *StateHandler) RegisterStateRoutes(router *httprouter.Router) {
	router.GET("/api/state", h.HandleGetState)
	router.GET("/ws/stats", h.HandleConnectionStats)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to encode response")
	}
}
