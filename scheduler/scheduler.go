package scheduler

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"XMarketingAPI/metrics"
	"XMarketingAPI/models"

	"github.com/sirupsen/logrus"
)

// Store is the durable state the scheduler operates on: the content table,
// plus the trigger table. The transition methods (SchedulePost, CancelPost,
// MarkPostPosted, MarkPostFailed) must apply the post update and the trigger
// change atomically.
type Store interface {
	GetPost(id string) (*models.Post, error)
	ListPostsByStatus(status models.PostStatus) ([]*models.Post, error)

	SchedulePost(postID, jobID string, fireAt time.Time) error
	CancelPost(postID string) error
	MarkPostPosted(postID, remoteID string, postedAt time.Time) error
	MarkPostFailed(postID string) error

	PutJob(job *models.ScheduledJob) error
	RemoveJob(jobID string) error
	ClaimDueJobs(now time.Time, limit int) ([]*models.ScheduledJob, error)
}

// Gateway publishes a post remotely and returns its remote id. PublishPost
// may block on remote rate limits.
type Gateway interface {
	PublishPost(ctx context.Context, post *models.Post) (string, error)
}

type Options struct {
	PollInterval time.Duration
	Workers      int
}

// Scheduler owns the post lifecycle state machine and the dispatch loop that
// fires durable triggers. Construct one per process and wire it explicitly;
// it holds no authoritative state that is not also in the store, so a crash
// loses at most in-flight work, which RecoverOnStartup reconciles.
type Scheduler struct {
	store   Store
	gateway Gateway
	logger  *logrus.Logger

	pollInterval time.Duration
	workers      int

	// now is a seam for tests.
	now func() time.Time

	locks *postLocks
	sem   chan struct{}

	stopCh chan struct{}
	wg     sync.WaitGroup
}

func New(store Store, gateway Gateway, logger *logrus.Logger, opts Options) *Scheduler {
	if opts.PollInterval <= 0 {
		opts.PollInterval = time.Second
	}
	if opts.Workers <= 0 {
		opts.Workers = 20
	}

	return &Scheduler{
		store:        store,
		gateway:      gateway,
		logger:       logger,
		pollInterval: opts.PollInterval,
		workers:      opts.Workers,
		now:          time.Now,
		locks:        newPostLocks(),
		sem:          make(chan struct{}, opts.Workers),
		stopCh:       make(chan struct{}),
	}
}

func jobIDFor(postID string) string {
	return "post_" + postID
}

// SchedulePost registers a durable trigger to publish the post at fireAt.
// Rescheduling an already scheduled post supersedes the previous trigger.
func (s *Scheduler) SchedulePost(postID string, fireAt time.Time) error {
	if !fireAt.After(s.now()) {
		return ErrInvalidTime
	}

	post, err := s.getPost(postID)
	if err != nil {
		return err
	}
	if post.Status == models.StatusPosted {
		return ErrAlreadyPosted
	}

	if err := s.store.SchedulePost(postID, jobIDFor(postID), fireAt); err != nil {
		s.logger.WithField("post_id", postID).WithError(err).Error("schedule transaction failed")
		return fmt.Errorf("%w: %v", ErrSchedulingFailed, err)
	}

	s.logger.WithFields(logrus.Fields{
		"post_id": postID,
		"fire_at": fireAt.Format(time.RFC3339),
	}).Info("post scheduled")
	return nil
}

// CancelPost removes a scheduled post's trigger and marks it cancelled.
func (s *Scheduler) CancelPost(postID string) error {
	post, err := s.getPost(postID)
	if err != nil {
		return err
	}
	if post.Status != models.StatusScheduled {
		return ErrNotScheduled
	}

	if err := s.store.CancelPost(postID); err != nil {
		return err
	}

	s.logger.WithField("post_id", postID).Info("scheduled post cancelled")
	return nil
}

// PublishNow publishes a post immediately, bypassing its trigger. The
// per-post lock is taken before any state is read: if a claimed trigger's
// fire is in flight, PublishNow waits for it and the re-read then sees the
// post already published, so only one publish attempt ever reaches the
// gateway.
func (s *Scheduler) PublishNow(ctx context.Context, postID string) (string, error) {
	unlock := s.locks.lock(postID)
	defer unlock()

	post, err := s.getPost(postID)
	if err != nil {
		return "", err
	}
	if post.Status == models.StatusPosted {
		return "", ErrAlreadyPosted
	}

	// Remove any pending trigger so it cannot fire a second attempt.
	if err := s.store.RemoveJob(jobIDFor(postID)); err != nil {
		return "", fmt.Errorf("removing pending trigger: %w", err)
	}

	remoteID, err := s.gateway.PublishPost(ctx, post)
	if err != nil {
		metrics.PublishFailures.Inc()
		if markErr := s.store.MarkPostFailed(postID); markErr != nil {
			s.logger.WithField("post_id", postID).WithError(markErr).Error("failed to record publish failure")
		}
		return "", fmt.Errorf("%w: %v", ErrPublishFailed, err)
	}

	postedAt := s.now()
	if err := s.store.MarkPostPosted(postID, remoteID, postedAt); err != nil {
		return "", err
	}

	metrics.PostsPublished.Inc()
	s.logger.WithFields(logrus.Fields{
		"post_id":   postID,
		"remote_id": remoteID,
	}).Info("post published")
	return remoteID, nil
}

// RecoverOnStartup reconciles durable state after a restart: scheduled posts
// whose target time is still ahead get their trigger re-registered, and
// overdue ones are marked failed. Stale scheduled content is never published
// late without operator involvement.
func (s *Scheduler) RecoverOnStartup() error {
	posts, err := s.store.ListPostsByStatus(models.StatusScheduled)
	if err != nil {
		return fmt.Errorf("loading scheduled posts: %w", err)
	}

	now := s.now()
	requeued, expired := 0, 0
	for _, post := range posts {
		if post.ScheduledFor != nil && post.ScheduledFor.After(now) {
			job := &models.ScheduledJob{
				JobID:  jobIDFor(post.ID),
				PostID: post.ID,
				FireAt: *post.ScheduledFor,
			}
			if err := s.store.PutJob(job); err != nil {
				s.logger.WithField("post_id", post.ID).WithError(err).Error("failed to re-register trigger")
				continue
			}
			requeued++
			continue
		}

		if err := s.store.MarkPostFailed(post.ID); err != nil {
			s.logger.WithField("post_id", post.ID).WithError(err).Error("failed to expire overdue post")
			continue
		}
		metrics.OverduePosts.Inc()
		expired++
		s.logger.WithField("post_id", post.ID).Warn("scheduled post was overdue at startup, marked failed")
	}

	s.logger.WithFields(logrus.Fields{
		"requeued": requeued,
		"expired":  expired,
	}).Info("startup recovery complete")
	return nil
}

// Start launches the dispatch loop. Due triggers are claimed atomically and
// handed to a bounded pool of workers; triggers for different posts fire in
// parallel, while firePost's per-post lock keeps any single post serialized.
func (s *Scheduler) Start() {
	s.wg.Add(1)
	go s.dispatchLoop()
	s.logger.WithFields(logrus.Fields{
		"poll_interval": s.pollInterval.String(),
		"workers":       s.workers,
	}).Info("scheduler started")
}

// Stop halts the dispatch loop and waits for in-flight fires to finish.
func (s *Scheduler) Stop() {
	close(s.stopCh)
	s.wg.Wait()
	s.logger.Info("scheduler stopped")
}

func (s *Scheduler) dispatchLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.dispatchDue()
		}
	}
}

func (s *Scheduler) dispatchDue() {
	jobs, err := s.store.ClaimDueJobs(s.now(), s.workers)
	if err != nil {
		s.logger.WithError(err).Error("failed to claim due triggers")
		return
	}

	for _, job := range jobs {
		metrics.TriggersFired.Inc()
		s.sem <- struct{}{}
		s.wg.Add(1)
		go func(postID string) {
			defer func() {
				<-s.sem
				s.wg.Done()
			}()
			s.firePost(context.Background(), postID)
		}(job.PostID)
	}
}

// firePost is the trigger handler. It re-reads the post because the trigger
// may have been superseded between claim and execution: a concurrent cancel
// wins up to the moment the publish call is issued.
func (s *Scheduler) firePost(ctx context.Context, postID string) {
	unlock := s.locks.lock(postID)
	defer unlock()

	post, err := s.store.GetPost(postID)
	if err != nil {
		s.logger.WithField("post_id", postID).WithError(err).Error("fired trigger for unreadable post")
		return
	}
	if post.Status != models.StatusScheduled {
		s.logger.WithFields(logrus.Fields{
			"post_id": postID,
			"status":  post.Status,
		}).Debug("trigger fired for post no longer scheduled, ignoring")
		return
	}
	if post.ScheduledFor != nil && post.ScheduledFor.After(s.now()) {
		// Rescheduled to a later time after this trigger was claimed; the
		// replacement trigger owns the publish.
		s.logger.WithFields(logrus.Fields{
			"post_id": postID,
			"fire_at": post.ScheduledFor.Format(time.RFC3339),
		}).Debug("post was rescheduled after claim, deferring to the new trigger")
		return
	}

	remoteID, err := s.gateway.PublishPost(ctx, post)
	if err != nil {
		metrics.PublishFailures.Inc()
		s.logger.WithField("post_id", postID).WithError(err).Error("publish attempt failed")
		if markErr := s.store.MarkPostFailed(postID); markErr != nil {
			s.logger.WithField("post_id", postID).WithError(markErr).Error("failed to record publish failure")
		}
		return
	}

	if err := s.store.MarkPostPosted(postID, remoteID, s.now()); err != nil {
		s.logger.WithFields(logrus.Fields{
			"post_id":   postID,
			"remote_id": remoteID,
		}).WithError(err).Error("published remotely but failed to persist result")
		return
	}

	metrics.PostsPublished.Inc()
	s.logger.WithFields(logrus.Fields{
		"post_id":   postID,
		"remote_id": remoteID,
	}).Info("scheduled post published")
}

func (s *Scheduler) getPost(postID string) (*models.Post, error) {
	post, err := s.store.GetPost(postID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPostNotFound
		}
		return nil, err
	}
	return post, nil
}

// postLocks hands out one mutex per post id, so concurrent fires of the same
// post serialize without unrelated posts contending on a shared lock.
type postLocks struct {
	mu    sync.Mutex
	locks map[string]*postLock
}

type postLock struct {
	mu   sync.Mutex
	refs int
}

func newPostLocks() *postLocks {
	return &postLocks{locks: make(map[string]*postLock)}
}

func (p *postLocks) lock(id string) func() {
	p.mu.Lock()
	entry, ok := p.locks[id]
	if !ok {
		entry = &postLock{}
		p.locks[id] = entry
	}
	entry.refs++
	p.mu.Unlock()

	entry.mu.Lock()
	return func() {
		entry.mu.Unlock()
		p.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(p.locks, id)
		}
		p.mu.Unlock()
	}
}
