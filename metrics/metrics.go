package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	TriggersFired = promauto.NewCounter(prometheus.CounterOpts{
		Name: "scheduler_triggers_fired_total",
		Help: "Durable triggers claimed and dispatched to a publish worker.",
	})

	PostsPublished = promauto.NewCounter(prometheus.CounterOpts{
		Name: "scheduler_posts_published_total",
		Help: "Posts successfully published to the X API.",
	})

	PublishFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "scheduler_publish_failures_total",
		Help: "Publish attempts that failed and moved the post to failed.",
	})

	OverduePosts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "scheduler_overdue_posts_total",
		Help: "Scheduled posts found overdue at startup and marked failed.",
	})

	SnapshotsRefreshed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "metrics_snapshots_refreshed_total",
		Help: "Performance snapshots upserted by the refresh loop.",
	})

	SnapshotFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "metrics_snapshot_failures_total",
		Help: "Per-post refresh failures skipped by the refresh loop.",
	})
)
