package handlers

import (
	"encoding/json"
	"net/http"

	"XMarketingAPI/models"
	"XMarketingAPI/utils"

	"github.com/gorilla/mux"
)

func (h *Handler) CreateAffiliateLink(w http.ResponseWriter, r *http.Request) {
	var req models.CreateAffiliateLinkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	if req.OriginalURL == "" {
		utils.RespondWithError(w, http.StatusBadRequest, "original_url is required")
		return
	}

	link, err := h.affiliates.CreateLink(userID(r), req)
	if err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	utils.RespondWithJSON(w, http.StatusCreated, link)
}

func (h *Handler) GetAffiliateLinks(w http.ResponseWriter, r *http.Request) {
	links, err := h.db.GetUserAffiliateLinks(userID(r))
	if err != nil {
		utils.RespondWithError(w, http.StatusInternalServerError, "Error fetching affiliate links")
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, links)
}

func (h *Handler) DeleteAffiliateLink(w http.ResponseWriter, r *http.Request) {
	link, err := h.db.GetAffiliateLink(mux.Vars(r)["id"])
	if err != nil {
		utils.RespondWithError(w, http.StatusNotFound, "Affiliate link not found")
		return
	}

	if link.UserID != userID(r) {
		utils.RespondWithError(w, http.StatusForbidden, "Access denied")
		return
	}

	if err := h.db.DeleteAffiliateLink(link.ID); err != nil {
		utils.RespondWithError(w, http.StatusInternalServerError, "Error deleting affiliate link")
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, map[string]string{"message": "Affiliate link deleted"})
}
