package scheduler

import "errors"

var (
	// ErrInvalidTime means the requested publish time is not in the future.
	ErrInvalidTime = errors.New("scheduled time must be in the future")

	// ErrPostNotFound means the post does not exist.
	ErrPostNotFound = errors.New("post not found")

	// ErrNotScheduled means the operation requires a post in scheduled status.
	ErrNotScheduled = errors.New("post is not scheduled")

	// ErrAlreadyPosted means the post has already been published and cannot
	// be scheduled again.
	ErrAlreadyPosted = errors.New("post has already been published")

	// ErrSchedulingFailed means the atomic schedule operation failed partway
	// and was rolled back. The caller may retry.
	ErrSchedulingFailed = errors.New("scheduling failed")

	// ErrPublishFailed means the publishing gateway rejected or errored on a
	// publish attempt. The post is moved to failed and is not retried
	// automatically.
	ErrPublishFailed = errors.New("publish failed")
)
