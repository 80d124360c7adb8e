package scheduler

import (
	"container/heap"
	"context"
	"time"
)

const maxSleepCap = 60 * time.Second

// Scheduler fires Events through a callback when they come due.
type Scheduler struct {
	addChan    chan Event
	removeChan chan string
	ctx        context.Context
	done       chan struct{}
	now        func() time.Time
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithClock replaces time.Now, for tests that need a fixed "now" when
// deciding which events are due.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) {
		s.now = now
	}
}

// New creates and starts a Scheduler. onTrigger runs on the scheduler
// goroutine with the due post's ID, so it must not block for long. The
// goroutine exits when ctx is cancelled.
func New(ctx context.Context, onTrigger func(postID string), opts ...Option) *Scheduler {
	s := &Scheduler{
		addChan:    make(chan Event, 64),
		removeChan: make(chan string, 64),
		ctx:        ctx,
		done:       make(chan struct{}),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	go s.run(onTrigger)
	return s
}

// Add queues an event. An existing event for the same post is replaced.
func (s *Scheduler) Add(e Event) {
	select {
	case s.addChan <- e:
	case <-s.ctx.Done():
	}
}

// Remove cancels the pending event for postID, if any.
func (s *Scheduler) Remove(postID string) {
	select {
	case s.removeChan <- postID:
	case <-s.ctx.Done():
	}
}

// Done is closed after the scheduler goroutine has returned.
func (s *Scheduler) Done() <-chan struct{} {
	return s.done
}

func (s *Scheduler) run(onTrigger func(string)) {
	defer close(s.done)

	h := &eventHeap{}
	heap.Init(h)

	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	resetTimer := func() <-chan time.Time {
		if timer != nil {
			timer.Stop()
		}
		if h.Len() == 0 {
			return nil
		}
		dur := (*h)[0].At.Sub(s.now())
		if dur > maxSleepCap {
			dur = maxSleepCap
		}
		if dur < 0 {
			dur = 0
		}
		timer = time.NewTimer(dur)
		return timer.C
	}

	timerCh := resetTimer()

	for {
		select {
		case <-s.ctx.Done():
			return

		case e := <-s.addChan:
			heapRemove(h, e.PostID)
			heapPush(h, e)
			timerCh = resetTimer()

		case id := <-s.removeChan:
			heapRemove(h, id)
			timerCh = resetTimer()

		case <-timerCh:
			now := s.now()
			for h.Len() > 0 && !(*h)[0].At.After(now) {
				e := heapPop(h)
				onTrigger(e.PostID)
			}
			timerCh = resetTimer()
		}
	}
}

// LoadSchedules splits stored scheduled posts into those whose time has
// already passed (missed while the process was down, to be published right
// away) and those still in the future (to be added to the scheduler).
// Entries with a zero ScheduledAt are skipped.
func LoadSchedules(entries []Entry, now time.Time) (missed []string, future []Event) {
	for _, e := range entries {
		if e.ScheduledAt.IsZero() {
			continue
		}
		if !e.ScheduledAt.After(now) {
			missed = append(missed, e.PostID)
			continue
		}
		future = append(future, Event{PostID: e.PostID, At: e.ScheduledAt})
	}
	return missed, future
}
