package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"XMarketingAPI/gateway"
	"XMarketingAPI/metrics"
	"XMarketingAPI/models"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// PerformanceStore is the slice of durable state the refresh loop touches.
type PerformanceStore interface {
	ListRecentlyPosted(since time.Time) ([]*models.Post, error)
	UpsertPerformance(perf *models.PostPerformance) error
}

// MetricsGateway fetches a remote engagement reading for a published post.
type MetricsGateway interface {
	FetchMetrics(ctx context.Context, remoteID string) (*models.PostMetrics, error)
}

// MetricsRefresher periodically re-polls engagement metrics for recently
// published posts and upserts one current snapshot per post. It runs at a
// lower priority than publishing: failures are logged and counted, never
// escalated, and one bad remote id never blocks the rest of the batch.
type MetricsRefresher struct {
	store   PerformanceStore
	gateway MetricsGateway
	logger  *logrus.Logger

	interval time.Duration
	window   time.Duration

	now  func() time.Time
	cron *cron.Cron
}

func NewMetricsRefresher(store PerformanceStore, gw MetricsGateway, logger *logrus.Logger, interval, window time.Duration) *MetricsRefresher {
	if interval <= 0 {
		interval = 30 * time.Minute
	}
	if window <= 0 {
		window = 7 * 24 * time.Hour
	}

	return &MetricsRefresher{
		store:    store,
		gateway:  gw,
		logger:   logger,
		interval: interval,
		window:   window,
		now:      time.Now,
		cron:     cron.New(),
	}
}

func (m *MetricsRefresher) Start() error {
	spec := fmt.Sprintf("@every %s", m.interval)
	if _, err := m.cron.AddFunc(spec, func() {
		m.RefreshAll(context.Background())
	}); err != nil {
		return err
	}

	m.cron.Start()
	m.logger.WithField("interval", m.interval.String()).Info("metrics refresh loop started")
	return nil
}

func (m *MetricsRefresher) Stop() {
	ctx := m.cron.Stop()
	<-ctx.Done()
}

// RefreshAll fetches metrics for every post published within the trailing
// window and records a fresh snapshot for each. Returns how many snapshots
// were updated.
func (m *MetricsRefresher) RefreshAll(ctx context.Context) int {
	cutoff := m.now().Add(-m.window)
	posts, err := m.store.ListRecentlyPosted(cutoff)
	if err != nil {
		m.logger.WithError(err).Error("failed to list recently posted items")
		return 0
	}

	updated := 0
	for _, post := range posts {
		if err := m.refreshOne(ctx, post); err != nil {
			metrics.SnapshotFailures.Inc()
			if errors.Is(err, gateway.ErrMetricsNotAvailable) {
				m.logger.WithFields(logrus.Fields{
					"post_id":   post.ID,
					"remote_id": post.RemoteID,
				}).Warn("remote post unavailable, skipping snapshot this cycle")
			} else {
				m.logger.WithField("post_id", post.ID).WithError(err).Warn("metrics refresh failed for post")
			}
			continue
		}
		metrics.SnapshotsRefreshed.Inc()
		updated++
	}

	m.logger.WithFields(logrus.Fields{
		"candidates": len(posts),
		"updated":    updated,
	}).Info("metrics refresh cycle complete")
	return updated
}

func (m *MetricsRefresher) refreshOne(ctx context.Context, post *models.Post) error {
	reading, err := m.gateway.FetchMetrics(ctx, post.RemoteID)
	if err != nil {
		return err
	}

	return m.store.UpsertPerformance(&models.PostPerformance{
		PostID:         post.ID,
		Impressions:    reading.Impressions,
		Likes:          reading.Likes,
		Shares:         reading.Shares,
		Replies:        reading.Replies,
		EngagementRate: EngagementRate(reading),
		RecordedAt:     m.now(),
	})
}

// EngagementRate is (likes + shares + replies) / impressions as a
// percentage. Impressions are floored at one so a post nobody has seen yet
// reports zero engagement instead of dividing by zero.
func EngagementRate(m *models.PostMetrics) float64 {
	impressions := m.Impressions
	if impressions < 1 {
		impressions = 1
	}
	total := m.Likes + m.Shares + m.Replies
	return float64(total) / float64(impressions) * 100
}
