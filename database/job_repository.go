package database

import (
	"database/sql"
	"time"

	"XMarketingAPI/models"
)

// PutJob registers or replaces the durable trigger identified by job.JobID.
func (d *Database) PutJob(job *models.ScheduledJob) error {
	query := `INSERT INTO scheduled_jobs (job_id, post_id, fire_at, created_at)
			  VALUES ($1, $2, $3, $4)
			  ON CONFLICT (job_id) DO UPDATE SET fire_at = EXCLUDED.fire_at`

	_, err := d.DB.Exec(query, job.JobID, job.PostID, job.FireAt, time.Now())
	return err
}

func (d *Database) RemoveJob(jobID string) error {
	_, err := d.DB.Exec(`DELETE FROM scheduled_jobs WHERE job_id = $1`, jobID)
	return err
}

// GetJob returns the trigger with the given id, or nil if none is registered.
func (d *Database) GetJob(jobID string) (*models.ScheduledJob, error) {
	job := &models.ScheduledJob{}
	query := `SELECT job_id, post_id, fire_at, created_at FROM scheduled_jobs WHERE job_id = $1`

	err := d.DB.QueryRow(query, jobID).Scan(&job.JobID, &job.PostID, &job.FireAt, &job.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return job, nil
}

// DueJobs returns all triggers whose fire time has elapsed, soonest first.
func (d *Database) DueJobs(now time.Time) ([]*models.ScheduledJob, error) {
	query := `SELECT job_id, post_id, fire_at, created_at FROM scheduled_jobs
			  WHERE fire_at <= $1 ORDER BY fire_at`

	rows, err := d.DB.Query(query, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanJobs(rows)
}

// ClaimDueJobs atomically removes and returns up to limit due triggers.
// Deleting on claim is what makes a trigger fire at most once: a second
// dispatcher pass (or a concurrent process) cannot claim the same job.
func (d *Database) ClaimDueJobs(now time.Time, limit int) ([]*models.ScheduledJob, error) {
	query := `DELETE FROM scheduled_jobs
			  WHERE job_id IN (
			      SELECT job_id FROM scheduled_jobs
			      WHERE fire_at <= $1
			      ORDER BY fire_at
			      LIMIT $2
			      FOR UPDATE SKIP LOCKED
			  )
			  RETURNING job_id, post_id, fire_at, created_at`

	rows, err := d.DB.Query(query, now, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanJobs(rows)
}

func scanJobs(rows *sql.Rows) ([]*models.ScheduledJob, error) {
	jobs := []*models.ScheduledJob{}
	for rows.Next() {
		job := &models.ScheduledJob{}
		if err := rows.Scan(&job.JobID, &job.PostID, &job.FireAt, &job.CreatedAt); err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}
