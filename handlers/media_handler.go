package handlers

import (
	"net/http"

	"XMarketingAPI/models"
	"XMarketingAPI/utils"

	"github.com/gorilla/mux"
)

func (h *Handler) UploadMedia(w http.ResponseWriter, r *http.Request) {
	uid := userID(r)

	file, header, err := r.FormFile("file")
	if err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "File is required")
		return
	}
	defer file.Close()

	media, err := h.storage.SaveFile(file, header, uid)
	if err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.db.CreateMedia(media); err != nil {
		h.storage.DeleteFile(media)
		utils.RespondWithError(w, http.StatusInternalServerError, "Error saving media")
		return
	}

	utils.RespondWithJSON(w, http.StatusCreated, models.UploadResponse{Media: media})
}

func (h *Handler) GetMedia(w http.ResponseWriter, r *http.Request) {
	mediaList, err := h.db.GetUserMedia(userID(r))
	if err != nil {
		utils.RespondWithError(w, http.StatusInternalServerError, "Error fetching media")
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, mediaList)
}

func (h *Handler) DeleteMedia(w http.ResponseWriter, r *http.Request) {
	media, err := h.db.GetMedia(mux.Vars(r)["id"])
	if err != nil {
		utils.RespondWithError(w, http.StatusNotFound, "Media not found")
		return
	}

	if media.UserID != userID(r) {
		utils.RespondWithError(w, http.StatusForbidden, "Access denied")
		return
	}

	if err := h.db.DeleteMedia(media.ID); err != nil {
		utils.RespondWithError(w, http.StatusInternalServerError, "Error deleting media")
		return
	}

	if err := h.storage.DeleteFile(media); err != nil {
		h.logger.WithField("media_id", media.ID).WithError(err).Warn("failed to remove media file from disk")
	}

	utils.RespondWithJSON(w, http.StatusOK, map[string]string{"message": "Media deleted"})
}
