package database

import (
	"database/sql"
	"time"

	"XMarketingAPI/models"

	"github.com/lib/pq"
)

const postColumns = `id, user_id, campaign_id, affiliate_link_id, content, media_ids,
			  status, scheduled_for, posted_at, remote_id, created_at, updated_at`

func (d *Database) CreatePost(post *models.Post) error {
	query := `INSERT INTO posts (id, user_id, campaign_id, affiliate_link_id, content, media_ids, status, scheduled_for, created_at, updated_at)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err := d.DB.Exec(query, post.ID, post.UserID, post.CampaignID, post.AffiliateLinkID,
		post.Content, pq.Array(post.MediaIDs), post.Status, post.ScheduledFor,
		post.CreatedAt, post.UpdatedAt)
	return err
}

func (d *Database) UpdatePost(post *models.Post) error {
	query := `UPDATE posts SET content = $1, campaign_id = $2, affiliate_link_id = $3, media_ids = $4,
			  status = $5, scheduled_for = $6, posted_at = $7, remote_id = $8, updated_at = $9
			  WHERE id = $10`

	var remoteID sql.NullString
	if post.RemoteID != "" {
		remoteID = sql.NullString{String: post.RemoteID, Valid: true}
	}

	_, err := d.DB.Exec(query, post.Content, post.CampaignID, post.AffiliateLinkID,
		pq.Array(post.MediaIDs), post.Status, post.ScheduledFor, post.PostedAt,
		remoteID, time.Now(), post.ID)
	return err
}

func (d *Database) DeletePost(id string) error {
	_, err := d.DB.Exec(`DELETE FROM posts WHERE id = $1`, id)
	return err
}

func scanPost(scanner interface {
	Scan(dest ...interface{}) error
}) (*models.Post, error) {
	post := &models.Post{}
	var mediaIDs []string
	var remoteID sql.NullString

	err := scanner.Scan(&post.ID, &post.UserID, &post.CampaignID, &post.AffiliateLinkID,
		&post.Content, pq.Array(&mediaIDs), &post.Status, &post.ScheduledFor,
		&post.PostedAt, &remoteID, &post.CreatedAt, &post.UpdatedAt)
	if err != nil {
		return nil, err
	}

	post.MediaIDs = mediaIDs
	post.RemoteID = remoteID.String
	return post, nil
}

func (d *Database) GetPost(id string) (*models.Post, error) {
	query := `SELECT ` + postColumns + ` FROM posts WHERE id = $1`

	post, err := scanPost(d.DB.QueryRow(query, id))
	if err != nil {
		return nil, err
	}

	if len(post.MediaIDs) > 0 {
		post.Media, _ = d.GetMediaByIDs(post.MediaIDs)
	}
	return post, nil
}

func (d *Database) queryPosts(query string, args ...interface{}) ([]*models.Post, error) {
	rows, err := d.DB.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	posts := []*models.Post{}
	for rows.Next() {
		post, err := scanPost(rows)
		if err != nil {
			continue
		}
		posts = append(posts, post)
	}

	return posts, rows.Err()
}

func (d *Database) GetUserPosts(userID string) ([]*models.Post, error) {
	query := `SELECT ` + postColumns + ` FROM posts WHERE user_id = $1 ORDER BY created_at DESC`
	return d.queryPosts(query, userID)
}

func (d *Database) GetCampaignPosts(campaignID string) ([]*models.Post, error) {
	query := `SELECT ` + postColumns + ` FROM posts WHERE campaign_id = $1 ORDER BY created_at DESC`
	return d.queryPosts(query, campaignID)
}

// ListPostsByStatus returns every post currently in the given lifecycle
// status. Used by startup recovery to find scheduled posts.
func (d *Database) ListPostsByStatus(status models.PostStatus) ([]*models.Post, error) {
	query := `SELECT ` + postColumns + ` FROM posts WHERE status = $1`
	return d.queryPosts(query, status)
}

// ListRecentlyPosted returns posts published since the cutoff that carry a
// remote id, newest first. Used by the metrics refresh loop.
func (d *Database) ListRecentlyPosted(since time.Time) ([]*models.Post, error) {
	query := `SELECT ` + postColumns + ` FROM posts
			  WHERE status = $1 AND posted_at >= $2 AND remote_id IS NOT NULL
			  ORDER BY posted_at DESC`
	return d.queryPosts(query, models.StatusPosted, since)
}
