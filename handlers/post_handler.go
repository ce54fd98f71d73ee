package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"XMarketingAPI/middleware"
	"XMarketingAPI/models"
	"XMarketingAPI/scheduler"
	"XMarketingAPI/utils"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

func userID(r *http.Request) string {
	id, _ := r.Context().Value(middleware.UserIDKey).(string)
	return id
}

// schedulerErrorMessage maps the scheduler's sentinel errors onto an HTTP
// status code and a client-safe message; anything unrecognized is a 500.
func schedulerErrorMessage(err error) (int, string) {
	switch {
	case errors.Is(err, scheduler.ErrInvalidTime):
		return http.StatusBadRequest, "Scheduled time must be in the future"
	case errors.Is(err, scheduler.ErrPostNotFound):
		return http.StatusNotFound, "Post not found"
	case errors.Is(err, scheduler.ErrAlreadyPosted):
		return http.StatusConflict, "Post has already been published"
	case errors.Is(err, scheduler.ErrNotScheduled):
		return http.StatusConflict, "Post is not scheduled"
	case errors.Is(err, scheduler.ErrSchedulingFailed):
		return http.StatusServiceUnavailable, "Scheduling failed, please retry"
	case errors.Is(err, scheduler.ErrPublishFailed):
		return http.StatusBadGateway, "Publishing failed"
	default:
		return http.StatusInternalServerError, "Internal server error"
	}
}

func respondSchedulerError(w http.ResponseWriter, err error) {
	code, message := schedulerErrorMessage(err)
	utils.RespondWithError(w, code, message)
}

func (h *Handler) CreatePost(w http.ResponseWriter, r *http.Request) {
	uid := userID(r)

	var post models.Post
	if err := json.NewDecoder(r.Body).Decode(&post); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	if post.Content == "" {
		utils.RespondWithError(w, http.StatusBadRequest, "Content is required")
		return
	}
	if len(post.Content) > models.MaxPostLength {
		utils.RespondWithError(w, http.StatusBadRequest, "Content exceeds 280 characters")
		return
	}

	if len(post.MediaIDs) > 0 {
		mediaList, err := h.db.GetMediaByIDs(post.MediaIDs)
		if err != nil || len(mediaList) != len(post.MediaIDs) {
			utils.RespondWithError(w, http.StatusBadRequest, "Invalid media IDs")
			return
		}
		for _, media := range mediaList {
			if media.UserID != uid {
				utils.RespondWithError(w, http.StatusForbidden, "Access denied to media")
				return
			}
		}
		post.Media = mediaList
	}

	if post.CampaignID != nil {
		campaign, err := h.db.GetCampaign(*post.CampaignID)
		if err != nil || campaign.UserID != uid {
			utils.RespondWithError(w, http.StatusNotFound, "Campaign not found")
			return
		}
	}

	if post.AffiliateLinkID != nil {
		if _, err := h.db.GetAffiliateLink(*post.AffiliateLinkID); err != nil {
			utils.RespondWithError(w, http.StatusNotFound, "Affiliate link not found")
			return
		}
	}

	scheduledFor := post.ScheduledFor

	post.ID = uuid.New().String()
	post.UserID = uid
	post.Status = models.StatusDraft
	post.ScheduledFor = nil
	post.RemoteID = ""
	post.CreatedAt = time.Now()
	post.UpdatedAt = time.Now()

	if err := h.db.CreatePost(&post); err != nil {
		h.logger.WithError(err).Error("failed to create post")
		utils.RespondWithError(w, http.StatusInternalServerError, "Error creating post")
		return
	}

	// Scheduling goes through the core so the trigger registration is
	// atomic with the status change. The post exists either way: a failed
	// schedule leaves it as a draft and the response says so, rather than
	// returning an error for a resource that was in fact created.
	if scheduledFor != nil {
		if err := h.core.SchedulePost(post.ID, *scheduledFor); err != nil {
			h.logger.WithField("post_id", post.ID).WithError(err).Warn("post created but scheduling failed")
			_, message := schedulerErrorMessage(err)
			utils.RespondWithJSON(w, http.StatusCreated, map[string]interface{}{
				"post":    post,
				"warning": "Post was created as a draft but not scheduled: " + message,
			})
			return
		}
		post.Status = models.StatusScheduled
		post.ScheduledFor = scheduledFor
	}

	utils.RespondWithJSON(w, http.StatusCreated, post)
}

func (h *Handler) GetPosts(w http.ResponseWriter, r *http.Request) {
	posts, err := h.db.GetUserPosts(userID(r))
	if err != nil {
		utils.RespondWithError(w, http.StatusInternalServerError, "Error fetching posts")
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, posts)
}

func (h *Handler) GetPost(w http.ResponseWriter, r *http.Request) {
	post, ok := h.ownedPost(w, r)
	if !ok {
		return
	}

	response := map[string]interface{}{"post": post}
	if post.Status == models.StatusPosted {
		if perf, err := h.db.GetPerformance(post.ID); err == nil && perf != nil {
			response["performance"] = perf
		}
	}

	utils.RespondWithJSON(w, http.StatusOK, response)
}

func (h *Handler) UpdatePost(w http.ResponseWriter, r *http.Request) {
	post, ok := h.ownedPost(w, r)
	if !ok {
		return
	}

	if post.Status == models.StatusPosted {
		utils.RespondWithError(w, http.StatusConflict, "Cannot update a published post")
		return
	}

	var req struct {
		Content  *string  `json:"content"`
		MediaIDs []string `json:"media_ids"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	if req.Content != nil {
		if *req.Content == "" || len(*req.Content) > models.MaxPostLength {
			utils.RespondWithError(w, http.StatusBadRequest, "Content must be 1-280 characters")
			return
		}
		post.Content = *req.Content
	}
	if req.MediaIDs != nil {
		post.MediaIDs = req.MediaIDs
	}

	if err := h.db.UpdatePost(post); err != nil {
		utils.RespondWithError(w, http.StatusInternalServerError, "Error updating post")
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, post)
}

func (h *Handler) DeletePost(w http.ResponseWriter, r *http.Request) {
	post, ok := h.ownedPost(w, r)
	if !ok {
		return
	}

	if post.Status == models.StatusPosted {
		utils.RespondWithError(w, http.StatusConflict, "Cannot delete a published post")
		return
	}

	// Cancelling first removes the durable trigger, so a deleted post can
	// never fire.
	if post.Status == models.StatusScheduled {
		if err := h.core.CancelPost(post.ID); err != nil {
			respondSchedulerError(w, err)
			return
		}
	}

	if err := h.db.DeletePost(post.ID); err != nil {
		utils.RespondWithError(w, http.StatusInternalServerError, "Error deleting post")
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, map[string]string{"message": "Post deleted"})
}

func (h *Handler) SchedulePost(w http.ResponseWriter, r *http.Request) {
	post, ok := h.ownedPost(w, r)
	if !ok {
		return
	}

	var req models.SchedulePostRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ScheduledFor.IsZero() {
		utils.RespondWithError(w, http.StatusBadRequest, "scheduled_for is required")
		return
	}

	if err := h.core.SchedulePost(post.ID, req.ScheduledFor); err != nil {
		respondSchedulerError(w, err)
		return
	}

	updated, err := h.db.GetPost(post.ID)
	if err != nil {
		utils.RespondWithError(w, http.StatusInternalServerError, "Error fetching post")
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, updated)
}

func (h *Handler) CancelPost(w http.ResponseWriter, r *http.Request) {
	post, ok := h.ownedPost(w, r)
	if !ok {
		return
	}

	if err := h.core.CancelPost(post.ID); err != nil {
		respondSchedulerError(w, err)
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, map[string]string{"message": "Scheduled post cancelled"})
}

func (h *Handler) PublishPostNow(w http.ResponseWriter, r *http.Request) {
	post, ok := h.ownedPost(w, r)
	if !ok {
		return
	}

	remoteID, err := h.core.PublishNow(r.Context(), post.ID)
	if err != nil {
		respondSchedulerError(w, err)
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, map[string]string{
		"message":   "Post published",
		"remote_id": remoteID,
	})
}

// ownedPost loads the post from the path and enforces ownership. On failure
// it writes the error response and returns ok=false.
func (h *Handler) ownedPost(w http.ResponseWriter, r *http.Request) (*models.Post, bool) {
	post, err := h.db.GetPost(mux.Vars(r)["id"])
	if err != nil {
		utils.RespondWithError(w, http.StatusNotFound, "Post not found")
		return nil, false
	}

	if post.UserID != userID(r) {
		utils.RespondWithError(w, http.StatusForbidden, "Access denied")
		return nil, false
	}

	return post, true
}
