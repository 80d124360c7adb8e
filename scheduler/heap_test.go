package scheduler

import (
	"testing"
	"time"
)

func TestHeapPushPopOrdering(t *testing.T) {
	h := &eventHeap{}
	base := time.Now()

	heapPush(h, Event{PostID: "late", At: base.Add(3 * time.Hour)})
	heapPush(h, Event{PostID: "early", At: base.Add(1 * time.Hour)})
	heapPush(h, Event{PostID: "middle", At: base.Add(2 * time.Hour)})

	for _, want := range []string{"early", "middle", "late"} {
		if got := heapPop(h).PostID; got != want {
			t.Errorf("pop = %s, want %s", got, want)
		}
	}
}

func TestHeapRemove(t *testing.T) {
	h := &eventHeap{}
	base := time.Now()

	heapPush(h, Event{PostID: "a", At: base.Add(1 * time.Hour)})
	heapPush(h, Event{PostID: "b", At: base.Add(2 * time.Hour)})
	heapPush(h, Event{PostID: "c", At: base.Add(3 * time.Hour)})

	if !heapRemove(h, "b") {
		t.Fatal("expected removal to succeed")
	}
	if h.Len() != 2 {
		t.Fatalf("len = %d, want 2", h.Len())
	}
	if got := heapPop(h).PostID; got != "a" {
		t.Errorf("pop = %s, want a", got)
	}
	if got := heapPop(h).PostID; got != "c" {
		t.Errorf("pop = %s, want c", got)
	}
}

func TestHeapRemoveNotFound(t *testing.T) {
	h := &eventHeap{}
	heapPush(h, Event{PostID: "a", At: time.Now()})

	if heapRemove(h, "missing") {
		t.Error("expected removal to fail")
	}
	if h.Len() != 1 {
		t.Errorf("len = %d, want 1", h.Len())
	}
}
