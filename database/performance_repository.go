package database

import (
	"database/sql"

	"XMarketingAPI/models"
)

// UpsertPerformance keeps exactly one current snapshot per post, replacing
// the previous reading on every refresh.
func (d *Database) UpsertPerformance(perf *models.PostPerformance) error {
	query := `INSERT INTO post_performance (post_id, impressions, likes, shares, replies, engagement_rate, recorded_at)
			  VALUES ($1, $2, $3, $4, $5, $6, $7)
			  ON CONFLICT (post_id) DO UPDATE SET
			      impressions = EXCLUDED.impressions,
			      likes = EXCLUDED.likes,
			      shares = EXCLUDED.shares,
			      replies = EXCLUDED.replies,
			      engagement_rate = EXCLUDED.engagement_rate,
			      recorded_at = EXCLUDED.recorded_at`

	_, err := d.DB.Exec(query, perf.PostID, perf.Impressions, perf.Likes,
		perf.Shares, perf.Replies, perf.EngagementRate, perf.RecordedAt)
	return err
}

func (d *Database) GetPerformance(postID string) (*models.PostPerformance, error) {
	perf := &models.PostPerformance{}
	query := `SELECT post_id, impressions, likes, shares, replies, engagement_rate, recorded_at
			  FROM post_performance WHERE post_id = $1`

	err := d.DB.QueryRow(query, postID).Scan(&perf.PostID, &perf.Impressions,
		&perf.Likes, &perf.Shares, &perf.Replies, &perf.EngagementRate, &perf.RecordedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return perf, nil
}
