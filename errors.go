package rescuepost

import "errors"

var (
	// ErrNotFound is returned when a post, organization or media file does not exist.
	ErrNotFound = errors.New("rescuepost: not found")

	// ErrValidation wraps rejected input.
	ErrValidation = errors.New("rescuepost: validation failed")

	// ErrInvalidTransition is returned when an operation is not allowed in
	// the post's current status, for example editing a published post.
	ErrInvalidTransition = errors.New("rescuepost: invalid status transition")

	// ErrScheduleInPast is returned when a schedule time is not in the future.
	ErrScheduleInPast = errors.New("rescuepost: scheduled time must be in the future")

	// ErrPublishInProgress is returned when a publish attempt for the same
	// post is already running.
	ErrPublishInProgress = errors.New("rescuepost: publish already in progress")
)
