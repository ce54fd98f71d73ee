package services

import (
	"errors"
	"fmt"
	"time"

	"XMarketingAPI/database"
	"XMarketingAPI/models"
	"XMarketingAPI/scheduler"

	"github.com/sirupsen/logrus"
)

// scheduleHorizon is how far ahead campaign schedules are expanded into
// concrete publish times.
const scheduleHorizon = 7

type CampaignService struct {
	db     *database.Database
	core   *scheduler.Scheduler
	logger *logrus.Logger
}

func NewCampaignService(db *database.Database, core *scheduler.Scheduler, logger *logrus.Logger) *CampaignService {
	return &CampaignService{db: db, core: core, logger: logger}
}

// GenerateScheduleTimes expands a campaign schedule config into concrete
// future publish times over the next week. Malformed time entries are logged
// and skipped.
func (s *CampaignService) GenerateScheduleTimes(cfg models.ScheduleConfig, from time.Time) []time.Time {
	step := 1
	if cfg.Frequency == "weekly" {
		step = scheduleHorizon
	}

	var out []time.Time
	base := from.Truncate(24 * time.Hour)
	for dayOffset := 0; dayOffset < scheduleHorizon; dayOffset += step {
		day := base.AddDate(0, 0, dayOffset)
		for _, entry := range cfg.Times {
			var hour, minute int
			if _, err := fmt.Sscanf(entry, "%d:%d", &hour, &minute); err != nil ||
				hour < 0 || hour > 23 || minute < 0 || minute > 59 {
				s.logger.WithField("time", entry).Warn("invalid schedule time entry, skipping")
				continue
			}

			at := time.Date(day.Year(), day.Month(), day.Day(), hour, minute, 0, 0, from.Location())
			if at.After(from) {
				out = append(out, at)
			}
		}
	}

	return out
}

// ActivateCampaign schedules every draft post in the campaign across the
// generated schedule slots, one post per slot in creation order.
func (s *CampaignService) ActivateCampaign(campaignID string) (int, error) {
	campaign, err := s.db.GetCampaign(campaignID)
	if err != nil {
		return 0, err
	}

	slots := s.GenerateScheduleTimes(campaign.Schedule, time.Now())
	if len(slots) == 0 {
		return 0, errors.New("campaign schedule produced no future publish times")
	}

	posts, err := s.db.GetCampaignPosts(campaignID)
	if err != nil {
		return 0, err
	}

	scheduled := 0
	for _, post := range posts {
		if post.Status != models.StatusDraft {
			continue
		}
		if scheduled >= len(slots) {
			break
		}
		if err := s.core.SchedulePost(post.ID, slots[scheduled]); err != nil {
			s.logger.WithFields(logrus.Fields{
				"campaign_id": campaignID,
				"post_id":     post.ID,
			}).WithError(err).Warn("failed to schedule campaign post")
			continue
		}
		scheduled++
	}

	return scheduled, nil
}

// DeactivateCampaign cancels every scheduled post in the campaign.
func (s *CampaignService) DeactivateCampaign(campaignID string) (int, error) {
	posts, err := s.db.GetCampaignPosts(campaignID)
	if err != nil {
		return 0, err
	}

	cancelled := 0
	for _, post := range posts {
		if post.Status != models.StatusScheduled {
			continue
		}
		if err := s.core.CancelPost(post.ID); err != nil {
			s.logger.WithFields(logrus.Fields{
				"campaign_id": campaignID,
				"post_id":     post.ID,
			}).WithError(err).Warn("failed to cancel campaign post")
			continue
		}
		cancelled++
	}

	return cancelled, nil
}
