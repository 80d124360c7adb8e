package scheduler

import "time"

// Event is a pending publish in the scheduler heap.
type Event struct {
	// PostID is handed to the trigger callback when At is reached.
	PostID string
	// At is the wall-clock time the post is due.
	At time.Time
}

// Entry is a stored scheduled post as seen by LoadSchedules.
type Entry struct {
	PostID      string
	ScheduledAt time.Time
}
