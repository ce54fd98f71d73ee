package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"XMarketingAPI/config"
	"XMarketingAPI/database"
	"XMarketingAPI/gateway"
	"XMarketingAPI/handlers"
	"XMarketingAPI/middleware"
	"XMarketingAPI/scheduler"
	"XMarketingAPI/services"
	"XMarketingAPI/utils"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("failed to load configuration")
	}

	logger := utils.NewLogger(cfg.LogLevel)

	db, err := database.NewDatabase(cfg.DatabaseURL)
	if err != nil {
		logger.WithError(err).Fatal("failed to connect to database")
	}
	defer db.Close()

	storage, err := services.NewStorageService(cfg.UploadDir, cfg.BaseURL, cfg.MaxImageSize, cfg.MaxVideoSize)
	if err != nil {
		logger.WithError(err).Fatal("failed to initialize storage")
	}

	xClient := gateway.NewXClient(gateway.Config{
		BearerToken:   cfg.XBearerToken,
		APIBaseURL:    cfg.XAPIBaseURL,
		UploadBaseURL: cfg.XUploadBaseURL,
		PublishRPS:    cfg.XPublishRPS,
		PublishBurst:  cfg.XPublishBurst,
	}, logger)
	if !xClient.IsConfigured() {
		logger.Warn("X API credentials not configured, publishing will fail")
	}

	core := scheduler.New(db, xClient, logger, scheduler.Options{
		PollInterval: cfg.SchedulerPollInterval,
		Workers:      cfg.SchedulerWorkers,
	})

	// Reconcile durable state before accepting traffic: lost triggers are
	// re-registered, overdue posts are failed.
	if err := core.RecoverOnStartup(); err != nil {
		logger.WithError(err).Fatal("startup recovery failed")
	}
	core.Start()
	defer core.Stop()

	refresher := scheduler.NewMetricsRefresher(db, xClient, logger, cfg.MetricsRefreshInterval, cfg.MetricsWindow)
	if err := refresher.Start(); err != nil {
		logger.WithError(err).Fatal("failed to start metrics refresh loop")
	}
	defer refresher.Stop()

	authService := services.NewAuthService(db, []byte(cfg.JWTSecret))
	campaignService := services.NewCampaignService(db, core, logger)
	affiliateService := services.NewAffiliateService(db)

	go purgeRevocationsLoop(authService, logger)

	handler := handlers.NewHandler(db, core, authService, campaignService, affiliateService, storage, logger)
	router := setupRoutes(handler, authService, cfg)

	server := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		logger.WithField("port", cfg.Port).Info("server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Fatal("server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("server shutdown failed")
	}
}

func setupRoutes(h *handlers.Handler, authService *services.AuthService, cfg *config.Config) *mux.Router {
	r := mux.NewRouter()
	r.Use(middleware.CORS([]string{"*"}))

	limiter := middleware.NewRateLimiter(10, 20)
	authLimiter := middleware.NewRateLimiter(1, 5)

	r.HandleFunc("/health", h.HealthCheck).Methods("GET")
	r.Handle("/metrics", promhttp.Handler()).Methods("GET")

	r.HandleFunc("/api/auth/register",
		middleware.BodyLimitHandler(1<<20, authLimiter.LimitHandler(h.Register))).Methods("POST")
	r.HandleFunc("/api/auth/login",
		middleware.BodyLimitHandler(1<<20, authLimiter.LimitHandler(h.Login))).Methods("POST")

	r.PathPrefix("/uploads/").Handler(http.StripPrefix("/uploads/",
		http.FileServer(http.Dir(cfg.UploadDir))))

	// The media upload route carries its own larger body cap, so it lives on
	// its own subrouter; the default cap below would otherwise clamp uploads
	// to 1 MB.
	uploads := r.PathPrefix("/api").Subrouter()
	uploads.Use(middleware.AuthMiddleware(authService))
	uploads.Use(limiter.Limit())
	uploads.HandleFunc("/media", middleware.BodyLimitHandler(cfg.MaxVideoSize+(1<<20), h.UploadMedia)).Methods("POST")

	protected := r.PathPrefix("/api").Subrouter()
	protected.Use(middleware.AuthMiddleware(authService))
	protected.Use(limiter.Limit())
	protected.Use(middleware.BodyLimit(1 << 20))

	protected.HandleFunc("/auth/logout", h.Logout).Methods("POST")

	protected.HandleFunc("/posts", h.CreatePost).Methods("POST")
	protected.HandleFunc("/posts", h.GetPosts).Methods("GET")
	protected.HandleFunc("/posts/{id}", h.GetPost).Methods("GET")
	protected.HandleFunc("/posts/{id}", h.UpdatePost).Methods("PUT")
	protected.HandleFunc("/posts/{id}", h.DeletePost).Methods("DELETE")
	protected.HandleFunc("/posts/{id}/schedule", h.SchedulePost).Methods("PUT")
	protected.HandleFunc("/posts/{id}/cancel", h.CancelPost).Methods("POST")
	protected.HandleFunc("/posts/{id}/publish", h.PublishPostNow).Methods("POST")

	protected.HandleFunc("/campaigns", h.CreateCampaign).Methods("POST")
	protected.HandleFunc("/campaigns", h.GetCampaigns).Methods("GET")
	protected.HandleFunc("/campaigns/{id}", h.GetCampaign).Methods("GET")
	protected.HandleFunc("/campaigns/{id}", h.UpdateCampaign).Methods("PUT")
	protected.HandleFunc("/campaigns/{id}", h.DeleteCampaign).Methods("DELETE")

	protected.HandleFunc("/affiliate-links", h.CreateAffiliateLink).Methods("POST")
	protected.HandleFunc("/affiliate-links", h.GetAffiliateLinks).Methods("GET")
	protected.HandleFunc("/affiliate-links/{id}", h.DeleteAffiliateLink).Methods("DELETE")

	protected.HandleFunc("/media", h.GetMedia).Methods("GET")
	protected.HandleFunc("/media/{id}", h.DeleteMedia).Methods("DELETE")

	return r
}

// purgeRevocationsLoop trims expired token revocations once an hour.
func purgeRevocationsLoop(authService *services.AuthService, logger *logrus.Logger) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for range ticker.C {
		if n, err := authService.PurgeExpiredRevocations(); err != nil {
			logger.WithError(err).Warn("failed to purge expired token revocations")
		} else if n > 0 {
			logger.WithField("purged", n).Debug("purged expired token revocations")
		}
	}
}
