package scheduler

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"testing"
	"time"

	"XMarketingAPI/models"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

// fakeStore is an in-memory Store that mirrors the transactional semantics
// of the Postgres implementation: lifecycle transitions and trigger changes
// apply together or not at all.
type fakeStore struct {
	mu    sync.Mutex
	posts map[string]*models.Post
	jobs  map[string]*models.ScheduledJob

	scheduleErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		posts: make(map[string]*models.Post),
		jobs:  make(map[string]*models.ScheduledJob),
	}
}

func (f *fakeStore) addPost(post *models.Post) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.posts[post.ID] = post
}

func (f *fakeStore) GetPost(id string) (*models.Post, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	post, ok := f.posts[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *post
	return &copied, nil
}

func (f *fakeStore) ListPostsByStatus(status models.PostStatus) ([]*models.Post, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.Post
	for _, post := range f.posts {
		if post.Status == status {
			copied := *post
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (f *fakeStore) SchedulePost(postID, jobID string, fireAt time.Time) error {
	if f.scheduleErr != nil {
		return f.scheduleErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	post, ok := f.posts[postID]
	if !ok {
		return errors.New("post not found")
	}
	post.Status = models.StatusScheduled
	post.ScheduledFor = &fireAt
	for id, job := range f.jobs {
		if job.PostID == postID {
			delete(f.jobs, id)
		}
	}
	f.jobs[jobID] = &models.ScheduledJob{JobID: jobID, PostID: postID, FireAt: fireAt}
	return nil
}

func (f *fakeStore) CancelPost(postID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.posts[postID].Status = models.StatusCancelled
	f.removeJobsForPost(postID)
	return nil
}

func (f *fakeStore) MarkPostPosted(postID, remoteID string, postedAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	post := f.posts[postID]
	post.Status = models.StatusPosted
	post.RemoteID = remoteID
	post.PostedAt = &postedAt
	f.removeJobsForPost(postID)
	return nil
}

func (f *fakeStore) MarkPostFailed(postID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.posts[postID].Status = models.StatusFailed
	f.removeJobsForPost(postID)
	return nil
}

func (f *fakeStore) PutJob(job *models.ScheduledJob) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.jobs[job.JobID] = job
	return nil
}

func (f *fakeStore) RemoveJob(jobID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.jobs, jobID)
	return nil
}

func (f *fakeStore) ClaimDueJobs(now time.Time, limit int) ([]*models.ScheduledJob, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var claimed []*models.ScheduledJob
	for id, job := range f.jobs {
		if len(claimed) >= limit {
			break
		}
		if !job.FireAt.After(now) {
			claimed = append(claimed, job)
			delete(f.jobs, id)
		}
	}
	return claimed, nil
}

func (f *fakeStore) removeJobsForPost(postID string) {
	for id, job := range f.jobs {
		if job.PostID == postID {
			delete(f.jobs, id)
		}
	}
}

func (f *fakeStore) jobCountForPost(postID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, job := range f.jobs {
		if job.PostID == postID {
			n++
		}
	}
	return n
}

// checkInvariants asserts that a trigger exists exactly for scheduled posts
// and a remote id exactly for posted ones.
func (f *fakeStore) checkInvariants(t *testing.T) {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()

	triggered := make(map[string]bool)
	for _, job := range f.jobs {
		triggered[job.PostID] = true
	}

	for id, post := range f.posts {
		if post.Status == models.StatusScheduled {
			require.True(t, triggered[id], "scheduled post %s has no trigger", id)
		} else {
			require.False(t, triggered[id], "post %s in status %s still has a trigger", id, post.Status)
		}

		if post.Status == models.StatusPosted {
			require.NotEmpty(t, post.RemoteID, "posted post %s has no remote id", id)
		} else {
			require.Empty(t, post.RemoteID, "post %s in status %s has a remote id", id, post.Status)
		}
	}
}

type fakeGateway struct {
	mu       sync.Mutex
	remoteID string
	err      error
	calls    []string

	// entered/release let a test hold a publish in flight: each call signals
	// entered, then blocks until release is closed.
	entered chan struct{}
	release chan struct{}
}

func (f *fakeGateway) PublishPost(ctx context.Context, post *models.Post) (string, error) {
	f.mu.Lock()
	f.calls = append(f.calls, post.ID)
	entered, release := f.entered, f.release
	f.mu.Unlock()

	if entered != nil {
		entered <- struct{}{}
	}
	if release != nil {
		<-release
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	return f.remoteID, nil
}

func (f *fakeGateway) publishCalls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

func newTestScheduler(store *fakeStore, gw *fakeGateway) (*Scheduler, *time.Time) {
	s := New(store, gw, testLogger(), Options{PollInterval: time.Hour, Workers: 4})
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	clock := &now
	s.now = func() time.Time { return *clock }
	return s, clock
}

func draftPost(id string) *models.Post {
	return &models.Post{ID: id, UserID: "user-1", Content: "Check out this deal!", Status: models.StatusDraft}
}

func TestSchedulePostRejectsNonFutureTime(t *testing.T) {
	store := newFakeStore()
	store.addPost(draftPost("a"))
	s, clock := newTestScheduler(store, &fakeGateway{remoteID: "999"})

	err := s.SchedulePost("a", *clock)
	require.ErrorIs(t, err, ErrInvalidTime)

	err = s.SchedulePost("a", clock.Add(-time.Minute))
	require.ErrorIs(t, err, ErrInvalidTime)

	post, _ := store.GetPost("a")
	require.Equal(t, models.StatusDraft, post.Status)
	store.checkInvariants(t)
}

func TestSchedulePostNotFound(t *testing.T) {
	s, clock := newTestScheduler(newFakeStore(), &fakeGateway{})
	err := s.SchedulePost("missing", clock.Add(time.Hour))
	require.ErrorIs(t, err, ErrPostNotFound)
}

func TestSchedulePostAlreadyPosted(t *testing.T) {
	store := newFakeStore()
	post := draftPost("a")
	post.Status = models.StatusPosted
	post.RemoteID = "123"
	store.addPost(post)
	s, clock := newTestScheduler(store, &fakeGateway{})

	err := s.SchedulePost("a", clock.Add(time.Hour))
	require.ErrorIs(t, err, ErrAlreadyPosted)
}

func TestSchedulingFailureSurfacesAsRetryable(t *testing.T) {
	store := newFakeStore()
	store.addPost(draftPost("a"))
	store.scheduleErr = errors.New("connection reset")
	s, clock := newTestScheduler(store, &fakeGateway{})

	err := s.SchedulePost("a", clock.Add(time.Hour))
	require.ErrorIs(t, err, ErrSchedulingFailed)

	// The transactional store rolled back, so the post is still a draft
	// with no trigger.
	post, _ := store.GetPost("a")
	require.Equal(t, models.StatusDraft, post.Status)
	require.Zero(t, store.jobCountForPost("a"))
}

func TestRescheduleSupersedesPreviousTrigger(t *testing.T) {
	store := newFakeStore()
	store.addPost(draftPost("a"))
	s, clock := newTestScheduler(store, &fakeGateway{remoteID: "999"})

	first := clock.Add(time.Hour)
	second := clock.Add(2 * time.Hour)
	require.NoError(t, s.SchedulePost("a", first))
	require.NoError(t, s.SchedulePost("a", second))

	require.Equal(t, 1, store.jobCountForPost("a"))
	job, ok := store.jobs["post_a"]
	require.True(t, ok)
	require.Equal(t, second, job.FireAt)
	store.checkInvariants(t)
}

func TestCancelRemovesTriggerAndPreventsFire(t *testing.T) {
	store := newFakeStore()
	store.addPost(draftPost("b"))
	gw := &fakeGateway{remoteID: "999"}
	s, clock := newTestScheduler(store, gw)

	require.NoError(t, s.SchedulePost("b", clock.Add(10*time.Second)))
	require.NoError(t, s.CancelPost("b"))

	post, _ := store.GetPost("b")
	require.Equal(t, models.StatusCancelled, post.Status)
	require.Zero(t, store.jobCountForPost("b"))

	// Even well past the original fire time nothing is published.
	*clock = clock.Add(time.Minute)
	s.dispatchDue()
	s.wg.Wait()
	require.Empty(t, gw.publishCalls())

	post, _ = store.GetPost("b")
	require.Equal(t, models.StatusCancelled, post.Status)
	store.checkInvariants(t)
}

func TestCancelRequiresScheduledStatus(t *testing.T) {
	store := newFakeStore()
	store.addPost(draftPost("a"))
	s, _ := newTestScheduler(store, &fakeGateway{})

	require.ErrorIs(t, s.CancelPost("a"), ErrNotScheduled)
}

func TestDueTriggerPublishesPost(t *testing.T) {
	store := newFakeStore()
	store.addPost(draftPost("a"))
	gw := &fakeGateway{remoteID: "999"}
	s, clock := newTestScheduler(store, gw)

	fireAt := clock.Add(2 * time.Second)
	require.NoError(t, s.SchedulePost("a", fireAt))

	*clock = fireAt.Add(time.Second)
	s.dispatchDue()
	s.wg.Wait()

	post, _ := store.GetPost("a")
	require.Equal(t, models.StatusPosted, post.Status)
	require.Equal(t, "999", post.RemoteID)
	require.NotNil(t, post.PostedAt)
	require.WithinDuration(t, fireAt, *post.PostedAt, 2*time.Second)
	require.Equal(t, []string{"a"}, gw.publishCalls())
	store.checkInvariants(t)
}

func TestPublishFailureMarksPostFailedWithoutRetry(t *testing.T) {
	store := newFakeStore()
	store.addPost(draftPost("a"))
	gw := &fakeGateway{err: errors.New("boom")}
	s, clock := newTestScheduler(store, gw)

	require.NoError(t, s.SchedulePost("a", clock.Add(time.Second)))
	*clock = clock.Add(time.Minute)
	s.dispatchDue()
	s.wg.Wait()

	post, _ := store.GetPost("a")
	require.Equal(t, models.StatusFailed, post.Status)
	require.Empty(t, post.RemoteID)
	require.Len(t, gw.publishCalls(), 1)

	// No trigger left behind: another dispatch pass publishes nothing.
	s.dispatchDue()
	s.wg.Wait()
	require.Len(t, gw.publishCalls(), 1)

	// Recovery requires a fresh SchedulePost.
	require.NoError(t, s.SchedulePost("a", clock.Add(time.Hour)))
	post, _ = store.GetPost("a")
	require.Equal(t, models.StatusScheduled, post.Status)
	store.checkInvariants(t)
}

func TestFireIgnoresPostCancelledAfterClaim(t *testing.T) {
	store := newFakeStore()
	store.addPost(draftPost("a"))
	gw := &fakeGateway{remoteID: "999"}
	s, clock := newTestScheduler(store, gw)

	require.NoError(t, s.SchedulePost("a", clock.Add(time.Second)))

	// Simulate the race: the trigger was claimed, then the user cancelled
	// before the worker ran.
	require.NoError(t, store.CancelPost("a"))
	s.firePost(context.Background(), "a")

	require.Empty(t, gw.publishCalls())
	post, _ := store.GetPost("a")
	require.Equal(t, models.StatusCancelled, post.Status)
}

func TestRecoverReregistersFutureTriggers(t *testing.T) {
	store := newFakeStore()
	s, clock := newTestScheduler(store, &fakeGateway{remoteID: "999"})

	future := clock.Add(time.Hour)
	post := draftPost("a")
	post.Status = models.StatusScheduled
	post.ScheduledFor = &future
	store.addPost(post)

	// The job table is empty, as after a restart with a lost trigger.
	require.NoError(t, s.RecoverOnStartup())

	require.Equal(t, 1, store.jobCountForPost("a"))
	got, _ := store.GetPost("a")
	require.Equal(t, models.StatusScheduled, got.Status)
	store.checkInvariants(t)
}

func TestRecoverFailsOverduePosts(t *testing.T) {
	store := newFakeStore()
	gw := &fakeGateway{remoteID: "999"}
	s, clock := newTestScheduler(store, gw)

	past := clock.Add(-time.Hour)
	post := draftPost("a")
	post.Status = models.StatusScheduled
	post.ScheduledFor = &past
	store.addPost(post)

	require.NoError(t, s.RecoverOnStartup())

	got, _ := store.GetPost("a")
	require.Equal(t, models.StatusFailed, got.Status)
	require.Empty(t, got.RemoteID)
	require.Empty(t, gw.publishCalls(), "overdue posts must never be fired late")
	store.checkInvariants(t)
}

func TestPublishNowConsumesPendingTrigger(t *testing.T) {
	store := newFakeStore()
	store.addPost(draftPost("a"))
	gw := &fakeGateway{remoteID: "777"}
	s, clock := newTestScheduler(store, gw)

	require.NoError(t, s.SchedulePost("a", clock.Add(time.Hour)))

	remoteID, err := s.PublishNow(context.Background(), "a")
	require.NoError(t, err)
	require.Equal(t, "777", remoteID)

	post, _ := store.GetPost("a")
	require.Equal(t, models.StatusPosted, post.Status)
	require.Zero(t, store.jobCountForPost("a"))

	// The old trigger is gone; a later dispatch pass cannot double-publish.
	*clock = clock.Add(2 * time.Hour)
	s.dispatchDue()
	s.wg.Wait()
	require.Len(t, gw.publishCalls(), 1)
	store.checkInvariants(t)
}

func TestPublishNowWaitsForInFlightFire(t *testing.T) {
	store := newFakeStore()
	store.addPost(draftPost("a"))
	gw := &fakeGateway{
		remoteID: "999",
		entered:  make(chan struct{}, 2),
		release:  make(chan struct{}),
	}
	s, clock := newTestScheduler(store, gw)

	require.NoError(t, s.SchedulePost("a", clock.Add(time.Second)))
	*clock = clock.Add(time.Minute)
	s.dispatchDue()

	// The claimed fire now holds the per-post lock inside the gateway.
	<-gw.entered

	done := make(chan error, 1)
	go func() {
		_, err := s.PublishNow(context.Background(), "a")
		done <- err
	}()

	// Give PublishNow time to block on the lock, then let the fire finish.
	time.Sleep(20 * time.Millisecond)
	close(gw.release)

	require.ErrorIs(t, <-done, ErrAlreadyPosted)
	s.wg.Wait()

	// Exactly one publish reached the gateway.
	require.Equal(t, []string{"a"}, gw.publishCalls())
	post, _ := store.GetPost("a")
	require.Equal(t, models.StatusPosted, post.Status)
	require.Equal(t, "999", post.RemoteID)
	store.checkInvariants(t)
}

func TestFireSkipsPostRescheduledToLaterTime(t *testing.T) {
	store := newFakeStore()
	store.addPost(draftPost("a"))
	gw := &fakeGateway{remoteID: "999"}
	s, clock := newTestScheduler(store, gw)

	require.NoError(t, s.SchedulePost("a", clock.Add(time.Second)))
	*clock = clock.Add(2 * time.Second)

	// The dispatcher claims the due trigger, then a reschedule to a later
	// time lands before the worker runs.
	jobs, err := store.ClaimDueJobs(*clock, 1)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	require.NoError(t, s.SchedulePost("a", clock.Add(time.Hour)))

	s.firePost(context.Background(), "a")

	// Nothing published; the replacement trigger is still live.
	require.Empty(t, gw.publishCalls())
	post, _ := store.GetPost("a")
	require.Equal(t, models.StatusScheduled, post.Status)
	require.Equal(t, 1, store.jobCountForPost("a"))
	store.checkInvariants(t)
}

func TestPublishNowFailureMarksFailed(t *testing.T) {
	store := newFakeStore()
	store.addPost(draftPost("a"))
	s, _ := newTestScheduler(store, &fakeGateway{err: errors.New("gateway down")})

	_, err := s.PublishNow(context.Background(), "a")
	require.ErrorIs(t, err, ErrPublishFailed)

	post, _ := store.GetPost("a")
	require.Equal(t, models.StatusFailed, post.Status)
	require.Empty(t, post.RemoteID)
}

func TestPostLocksSerializeSamePost(t *testing.T) {
	locks := newPostLocks()

	var mu sync.Mutex
	active := 0
	maxActive := 0

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := locks.lock("same")
			defer unlock()

			mu.Lock()
			active++
			if active > maxActive {
				maxActive = active
			}
			mu.Unlock()

			time.Sleep(time.Millisecond)

			mu.Lock()
			active--
			mu.Unlock()
		}()
	}
	wg.Wait()

	require.Equal(t, 1, maxActive)

	locks.mu.Lock()
	require.Empty(t, locks.locks, "lock entries should be reclaimed")
	locks.mu.Unlock()
}
