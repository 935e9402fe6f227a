package donations

import (
	"encoding/json"
	"net/http"

	"github.com/julienschmidt/httprouter"
	"github.com/rs/zerolog/log"

	"github.com/jaymepena/debatelords/go/internal/models"
)

// Handler serves the donation views the overlay polls over HTTP.
type Handler struct {
	reconciler *Reconciler
	campaign   CampaignSource
	campaignID string
}

// NewHandler creates the donation HTTP handler. campaign may be nil when no
// platform credentials are configured.
func NewHandler(reconciler *Reconciler, campaign CampaignSource, campaignID string) *Handler {
	return &Handler{
		reconciler: reconciler,
		campaign:   campaign,
		campaignID: campaignID,
	}
}

// HandleCurrentDonations handles GET /current-donations
func (h *Handler) HandleCurrentDonations(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	writeJSON(w, http.StatusOK, h.reconciler.Snapshot())
}

// HandleMilestones handles GET /milestones
func (h *Handler) HandleMilestones(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	if h.campaign == nil {
		writeError(w, http.StatusServiceUnavailable, "Donation platform not configured")
		return
	}

	milestones, err := h.campaign.Milestones(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("failed to fetch milestones")
		writeError(w, http.StatusInternalServerError, "Failed to fetch milestones")
		return
	}
	if milestones == nil {
		milestones = []models.Milestone{}
	}
	writeJSON(w, http.StatusOK, milestones)
}

// HandleCampaign handles GET /campaign
func (h *Handler) HandleCampaign(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	writeJSON(w, http.StatusOK, h.reconciler.Campaign(r.Context(), h.campaign))
}

// HandleCampaignID handles GET /campaign-id
func (h *Handler) HandleCampaignID(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	writeJSON(w, http.StatusOK, map[string]string{"campaignId": h.campaignID})
}

// RegisterRoutes registers the donation routes.
func (h *Handler) RegisterRoutes(router *httprouter.Router) {
	router.GET("/current-donations", h.HandleCurrentDonations)
	router.GET("/milestones", h.HandleMilestones)
	router.GET("/campaign", h.HandleCampaign)
	router.GET("/campaign-id", h.HandleCampaignID)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to encode response")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
