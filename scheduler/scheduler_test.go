package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// recorder collects trigger callbacks in order.
type recorder struct {
	mu    sync.Mutex
	fired []string
}

func (r *recorder) trigger(id string) {
	r.mu.Lock()
	r.fired = append(r.fired, id)
	r.mu.Unlock()
}

func (r *recorder) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.fired...)
}

func startScheduler(t *testing.T, rec *recorder, opts ...Option) *Scheduler {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	s := New(ctx, rec.trigger, opts...)
	t.Cleanup(func() {
		cancel()
		<-s.Done()
	})
	return s
}

func TestScheduler_AddAndFire(t *testing.T) {
	rec := &recorder{}
	s := startScheduler(t, rec)

	s.Add(Event{PostID: "p1", At: time.Now().Add(50 * time.Millisecond)})

	require.Eventually(t, func() bool {
		return len(rec.snapshot()) == 1
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, []string{"p1"}, rec.snapshot())
}

func TestScheduler_PastEventFiresImmediately(t *testing.T) {
	rec := &recorder{}
	s := startScheduler(t, rec)

	s.Add(Event{PostID: "overdue", At: time.Now().Add(-time.Hour)})

	require.Eventually(t, func() bool {
		return len(rec.snapshot()) == 1
	}, time.Second, 5*time.Millisecond)
}

func TestScheduler_RemoveBeforeFire(t *testing.T) {
	rec := &recorder{}
	s := startScheduler(t, rec)

	s.Add(Event{PostID: "p2", At: time.Now().Add(300 * time.Millisecond)})
	s.Remove("p2")

	time.Sleep(500 * time.Millisecond)
	assert.Empty(t, rec.snapshot())
}

func TestScheduler_AddReplacesExisting(t *testing.T) {
	rec := &recorder{}
	s := startScheduler(t, rec)

	s.Add(Event{PostID: "p3", At: time.Now().Add(50 * time.Millisecond)})
	s.Add(Event{PostID: "p3", At: time.Now().Add(time.Hour)})

	time.Sleep(300 * time.Millisecond)
	assert.Empty(t, rec.snapshot(), "rescheduled event should not fire at the old time")
}

func TestScheduler_FiresInOrder(t *testing.T) {
	rec := &recorder{}
	s := startScheduler(t, rec)

	now := time.Now()
	s.Add(Event{PostID: "second", At: now.Add(150 * time.Millisecond)})
	s.Add(Event{PostID: "first", At: now.Add(50 * time.Millisecond)})

	require.Eventually(t, func() bool {
		return len(rec.snapshot()) == 2
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, []string{"first", "second"}, rec.snapshot())
}

func TestScheduler_StopsOnContextCancel(t *testing.T) {
	rec := &recorder{}
	ctx, cancel := context.WithCancel(context.Background())
	s := New(ctx, rec.trigger)

	s.Add(Event{PostID: "p4", At: time.Now().Add(200 * time.Millisecond)})
	cancel()

	select {
	case <-s.Done():
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop")
	}
	time.Sleep(300 * time.Millisecond)
	assert.Empty(t, rec.snapshot())

	// Add and Remove must not block after shutdown.
	s.Add(Event{PostID: "late", At: time.Now()})
	s.Remove("late")
}

func TestScheduler_UsesInjectedClock(t *testing.T) {
	rec := &recorder{}
	future := time.Now().Add(24 * time.Hour)
	s := startScheduler(t, rec, WithClock(func() time.Time { return future }))

	s.Add(Event{PostID: "tomorrow", At: future.Add(-time.Minute)})

	require.Eventually(t, func() bool {
		return len(rec.snapshot()) == 1
	}, time.Second, 5*time.Millisecond)
}

func TestLoadSchedules(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	entries := []Entry{
		{PostID: "past", ScheduledAt: now.Add(-time.Hour)},
		{PostID: "exact", ScheduledAt: now},
		{PostID: "future", ScheduledAt: now.Add(time.Hour)},
		{PostID: "unset"},
	}

	missed, future := LoadSchedules(entries, now)

	assert.ElementsMatch(t, []string{"past", "exact"}, missed)
	require.Len(t, future, 1)
	assert.Equal(t, "future", future[0].PostID)
	assert.True(t, future[0].At.Equal(now.Add(time.Hour)))
}
