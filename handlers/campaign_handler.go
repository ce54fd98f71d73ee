package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"XMarketingAPI/models"
	"XMarketingAPI/utils"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

func (h *Handler) CreateCampaign(w http.ResponseWriter, r *http.Request) {
	uid := userID(r)

	var campaign models.Campaign
	if err := json.NewDecoder(r.Body).Decode(&campaign); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	if campaign.Name == "" || campaign.Niche == "" {
		utils.RespondWithError(w, http.StatusBadRequest, "Name and niche are required")
		return
	}

	campaign.ID = uuid.New().String()
	campaign.UserID = uid
	if campaign.Status == "" {
		campaign.Status = models.CampaignActive
	}
	campaign.CreatedAt = time.Now()
	campaign.UpdatedAt = time.Now()

	if err := h.db.CreateCampaign(&campaign); err != nil {
		h.logger.WithError(err).Error("failed to create campaign")
		utils.RespondWithError(w, http.StatusInternalServerError, "Error creating campaign")
		return
	}

	utils.RespondWithJSON(w, http.StatusCreated, campaign)
}

func (h *Handler) GetCampaigns(w http.ResponseWriter, r *http.Request) {
	campaigns, err := h.db.GetUserCampaigns(userID(r))
	if err != nil {
		utils.RespondWithError(w, http.StatusInternalServerError, "Error fetching campaigns")
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, campaigns)
}

func (h *Handler) GetCampaign(w http.ResponseWriter, r *http.Request) {
	campaign, ok := h.ownedCampaign(w, r)
	if !ok {
		return
	}

	posts, _ := h.db.GetCampaignPosts(campaign.ID)
	utils.RespondWithJSON(w, http.StatusOK, map[string]interface{}{
		"campaign": campaign,
		"posts":    posts,
	})
}

func (h *Handler) UpdateCampaign(w http.ResponseWriter, r *http.Request) {
	campaign, ok := h.ownedCampaign(w, r)
	if !ok {
		return
	}

	var req struct {
		Name     *string                `json:"name"`
		Niche    *string                `json:"niche"`
		Schedule *models.ScheduleConfig `json:"schedule"`
		Status   *models.CampaignStatus `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	if req.Name != nil {
		campaign.Name = *req.Name
	}
	if req.Niche != nil {
		campaign.Niche = *req.Niche
	}
	if req.Schedule != nil {
		campaign.Schedule = *req.Schedule
	}

	statusChanged := req.Status != nil && *req.Status != campaign.Status
	if req.Status != nil {
		campaign.Status = *req.Status
	}

	if err := h.db.UpdateCampaign(campaign); err != nil {
		utils.RespondWithError(w, http.StatusInternalServerError, "Error updating campaign")
		return
	}

	// Activation schedules the campaign's draft posts; anything else
	// cancels whatever is still pending.
	if statusChanged {
		if campaign.Status == models.CampaignActive {
			if n, err := h.campaigns.ActivateCampaign(campaign.ID); err == nil {
				h.logger.WithField("campaign_id", campaign.ID).Infof("scheduled %d campaign posts", n)
			}
		} else {
			if n, err := h.campaigns.DeactivateCampaign(campaign.ID); err == nil {
				h.logger.WithField("campaign_id", campaign.ID).Infof("cancelled %d campaign posts", n)
			}
		}
	}

	utils.RespondWithJSON(w, http.StatusOK, campaign)
}

func (h *Handler) DeleteCampaign(w http.ResponseWriter, r *http.Request) {
	campaign, ok := h.ownedCampaign(w, r)
	if !ok {
		return
	}

	// Pending triggers must not outlive the campaign.
	if _, err := h.campaigns.DeactivateCampaign(campaign.ID); err != nil {
		h.logger.WithField("campaign_id", campaign.ID).WithError(err).Warn("failed to cancel campaign posts before delete")
	}

	if err := h.db.DeleteCampaign(campaign.ID); err != nil {
		utils.RespondWithError(w, http.StatusInternalServerError, "Error deleting campaign")
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, map[string]string{"message": "Campaign deleted"})
}

func (h *Handler) ownedCampaign(w http.ResponseWriter, r *http.Request) (*models.Campaign, bool) {
	campaign, err := h.db.GetCampaign(mux.Vars(r)["id"])
	if err != nil {
		utils.RespondWithError(w, http.StatusNotFound, "Campaign not found")
		return nil, false
	}

	if campaign.UserID != userID(r) {
		utils.RespondWithError(w, http.StatusForbidden, "Access denied")
		return nil, false
	}

	return campaign, true
}
