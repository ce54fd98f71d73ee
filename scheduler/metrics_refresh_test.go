package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"XMarketingAPI/gateway"
	"XMarketingAPI/models"

	"github.com/stretchr/testify/require"
)

type fakePerformanceStore struct {
	posts     []*models.Post
	listErr   error
	upserts   []*models.PostPerformance
	upsertErr error
	cutoff    time.Time
}

func (f *fakePerformanceStore) ListRecentlyPosted(since time.Time) ([]*models.Post, error) {
	f.cutoff = since
	return f.posts, f.listErr
}

func (f *fakePerformanceStore) UpsertPerformance(perf *models.PostPerformance) error {
	if f.upsertErr != nil {
		return f.upsertErr
	}
	f.upserts = append(f.upserts, perf)
	return nil
}

type fakeMetricsGateway struct {
	readings map[string]*models.PostMetrics
	errs     map[string]error
}

func (f *fakeMetricsGateway) FetchMetrics(ctx context.Context, remoteID string) (*models.PostMetrics, error) {
	if err := f.errs[remoteID]; err != nil {
		return nil, err
	}
	reading, ok := f.readings[remoteID]
	if !ok {
		return nil, gateway.ErrMetricsNotAvailable
	}
	return reading, nil
}

func postedPost(id, remoteID string) *models.Post {
	return &models.Post{ID: id, Status: models.StatusPosted, RemoteID: remoteID}
}

func TestRefreshAllUpsertsSnapshotPerPost(t *testing.T) {
	store := &fakePerformanceStore{
		posts: []*models.Post{postedPost("a", "100"), postedPost("b", "200")},
	}
	gw := &fakeMetricsGateway{readings: map[string]*models.PostMetrics{
		"100": {Impressions: 1000, Likes: 40, Shares: 8, Replies: 2},
		"200": {Impressions: 0, Likes: 0, Shares: 0, Replies: 0},
	}}

	m := NewMetricsRefresher(store, gw, testLogger(), time.Minute, 7*24*time.Hour)
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }

	updated := m.RefreshAll(context.Background())
	require.Equal(t, 2, updated)
	require.Equal(t, now.Add(-7*24*time.Hour), store.cutoff)
	require.Len(t, store.upserts, 2)

	first := store.upserts[0]
	require.Equal(t, "a", first.PostID)
	require.Equal(t, 1000, first.Impressions)
	require.InDelta(t, 5.0, first.EngagementRate, 1e-9)
	require.Equal(t, now, first.RecordedAt)

	// A post with zero impressions reports zero engagement.
	require.Zero(t, store.upserts[1].EngagementRate)
}

func TestRefreshAllContinuesPastFailures(t *testing.T) {
	store := &fakePerformanceStore{
		posts: []*models.Post{
			postedPost("gone", "404"),
			postedPost("broken", "500"),
			postedPost("ok", "100"),
		},
	}
	gw := &fakeMetricsGateway{
		readings: map[string]*models.PostMetrics{
			"100": {Impressions: 50, Likes: 5},
		},
		errs: map[string]error{
			"404": gateway.ErrMetricsNotAvailable,
			"500": errors.New("upstream exploded"),
		},
	}

	m := NewMetricsRefresher(store, gw, testLogger(), time.Minute, time.Hour)
	updated := m.RefreshAll(context.Background())

	require.Equal(t, 1, updated)
	require.Len(t, store.upserts, 1)
	require.Equal(t, "ok", store.upserts[0].PostID)
}

func TestRefreshAllListFailureIsNonFatal(t *testing.T) {
	store := &fakePerformanceStore{listErr: errors.New("db gone")}
	m := NewMetricsRefresher(store, &fakeMetricsGateway{}, testLogger(), time.Minute, time.Hour)

	require.Zero(t, m.RefreshAll(context.Background()))
	require.Empty(t, store.upserts)
}

func TestEngagementRate(t *testing.T) {
	tests := []struct {
		name    string
		metrics models.PostMetrics
		want    float64
	}{
		{"typical", models.PostMetrics{Impressions: 1000, Likes: 40, Shares: 8, Replies: 2}, 5.0},
		{"zero impressions", models.PostMetrics{Impressions: 0, Likes: 0, Shares: 0, Replies: 0}, 0},
		{"zero impressions with engagement", models.PostMetrics{Impressions: 0, Likes: 3}, 300},
		{"no engagement", models.PostMetrics{Impressions: 500}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.InDelta(t, tt.want, EngagementRate(&tt.metrics), 1e-9)
		})
	}
}
