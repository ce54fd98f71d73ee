package database

import (
	"database/sql"
	"fmt"
	"time"

	"XMarketingAPI/models"
)

// The operations in this file pair a post lifecycle transition with the
// matching trigger change in one transaction, so the "scheduled ⇔ trigger
// exists" invariant holds even across a crash between the two writes.

// SchedulePost marks the post scheduled for fireAt and registers its trigger.
// Any previous trigger for the post is superseded in the same transaction.
func (d *Database) SchedulePost(postID, jobID string, fireAt time.Time) error {
	return d.withTx(func(tx *sql.Tx) error {
		res, err := tx.Exec(
			`UPDATE posts SET status = $1, scheduled_for = $2, updated_at = $3 WHERE id = $4`,
			models.StatusScheduled, fireAt, time.Now(), postID)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("post %s not found", postID)
		}

		if _, err := tx.Exec(`DELETE FROM scheduled_jobs WHERE post_id = $1`, postID); err != nil {
			return err
		}

		_, err = tx.Exec(
			`INSERT INTO scheduled_jobs (job_id, post_id, fire_at, created_at) VALUES ($1, $2, $3, $4)`,
			jobID, postID, fireAt, time.Now())
		return err
	})
}

// CancelPost marks a scheduled post cancelled and removes its trigger.
func (d *Database) CancelPost(postID string) error {
	return d.withTx(func(tx *sql.Tx) error {
		if _, err := tx.Exec(
			`UPDATE posts SET status = $1, updated_at = $2 WHERE id = $3`,
			models.StatusCancelled, time.Now(), postID); err != nil {
			return err
		}

		_, err := tx.Exec(`DELETE FROM scheduled_jobs WHERE post_id = $1`, postID)
		return err
	})
}

// MarkPostPosted records a successful publish: remote id, posted timestamp,
// posted status. Any leftover trigger is removed in the same transaction.
func (d *Database) MarkPostPosted(postID, remoteID string, postedAt time.Time) error {
	return d.withTx(func(tx *sql.Tx) error {
		if _, err := tx.Exec(
			`UPDATE posts SET status = $1, remote_id = $2, posted_at = $3, updated_at = $4 WHERE id = $5`,
			models.StatusPosted, remoteID, postedAt, time.Now(), postID); err != nil {
			return err
		}

		_, err := tx.Exec(`DELETE FROM scheduled_jobs WHERE post_id = $1`, postID)
		return err
	})
}

// MarkPostFailed moves a post to failed and removes its trigger. The remote
// id stays unset: a failed post was never published.
func (d *Database) MarkPostFailed(postID string) error {
	return d.withTx(func(tx *sql.Tx) error {
		if _, err := tx.Exec(
			`UPDATE posts SET status = $1, updated_at = $2 WHERE id = $3`,
			models.StatusFailed, time.Now(), postID); err != nil {
			return err
		}

		_, err := tx.Exec(`DELETE FROM scheduled_jobs WHERE post_id = $1`, postID)
		return err
	})
}
