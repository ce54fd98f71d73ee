package database

import (
	"testing"
	"time"

	"XMarketingAPI/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"
)

func jobRows(jobs ...*models.ScheduledJob) *sqlmock.Rows {
	rows := sqlmock.NewRows([]string{"job_id", "post_id", "fire_at", "created_at"})
	for _, job := range jobs {
		rows.AddRow(job.JobID, job.PostID, job.FireAt, job.CreatedAt)
	}
	return rows
}

func TestPutJobUpserts(t *testing.T) {
	d, mock := newMockDatabase(t)
	fireAt := time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC)

	mock.ExpectExec(`INSERT INTO scheduled_jobs .+ ON CONFLICT \(job_id\) DO UPDATE`).
		WithArgs("post_p1", "p1", fireAt, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := d.PutJob(&models.ScheduledJob{JobID: "post_p1", PostID: "p1", FireAt: fireAt})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetJobMissingReturnsNil(t *testing.T) {
	d, mock := newMockDatabase(t)

	mock.ExpectQuery(`SELECT job_id, post_id, fire_at, created_at FROM scheduled_jobs WHERE job_id = \$1`).
		WithArgs("post_missing").
		WillReturnRows(jobRows())

	job, err := d.GetJob("post_missing")
	require.NoError(t, err)
	require.Nil(t, job)
}

func TestClaimDueJobsDeletesWhatItReturns(t *testing.T) {
	d, mock := newMockDatabase(t)
	now := time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC)
	due := &models.ScheduledJob{
		JobID:     "post_p1",
		PostID:    "p1",
		FireAt:    now.Add(-2 * time.Second),
		CreatedAt: now.Add(-time.Hour),
	}

	mock.ExpectQuery(`DELETE FROM scheduled_jobs[\s\S]+FOR UPDATE SKIP LOCKED[\s\S]+RETURNING`).
		WithArgs(now, 20).
		WillReturnRows(jobRows(due))

	jobs, err := d.ClaimDueJobs(now, 20)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	require.Equal(t, "post_p1", jobs[0].JobID)
	require.Equal(t, "p1", jobs[0].PostID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestClaimDueJobsEmpty(t *testing.T) {
	d, mock := newMockDatabase(t)
	now := time.Now()

	mock.ExpectQuery(`DELETE FROM scheduled_jobs`).
		WithArgs(now, 5).
		WillReturnRows(jobRows())

	jobs, err := d.ClaimDueJobs(now, 5)
	require.NoError(t, err)
	require.Empty(t, jobs)
}
