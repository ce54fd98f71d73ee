package handlers

import (
	"XMarketingAPI/database"
	"XMarketingAPI/scheduler"
	"XMarketingAPI/services"

	"github.com/sirupsen/logrus"
)

type Handler struct {
	db          *database.Database
	core        *scheduler.Scheduler
	authService *services.AuthService
	campaigns   *services.CampaignService
	affiliates  *services.AffiliateService
	storage     *services.StorageService
	logger      *logrus.Logger
}

func NewHandler(
	db *database.Database,
	core *scheduler.Scheduler,
	authService *services.AuthService,
	campaigns *services.CampaignService,
	affiliates *services.AffiliateService,
	storage *services.StorageService,
	logger *logrus.Logger,
) *Handler {
	return &Handler{
		db:          db,
		core:        core,
		authService: authService,
		campaigns:   campaigns,
		affiliates:  affiliates,
		storage:     storage,
		logger:      logger,
	}
}
