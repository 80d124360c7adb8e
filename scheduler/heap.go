package scheduler

import "container/heap"

// eventHeap implements container/heap.Interface, earliest At first.
type eventHeap []Event

func (h eventHeap) Len() int           { return len(h) }
func (h eventHeap) Less(i, j int) bool { return h[i].At.Before(h[j].At) }
func (h eventHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }

func (h *eventHeap) Push(x any) {
	*h = append(*h, x.(Event))
}

func (h *eventHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

func heapPush(h *eventHeap, e Event) {
	heap.Push(h, e)
}

// heapPop removes the earliest event. Panics on an empty heap.
func heapPop(h *eventHeap) Event {
	return heap.Pop(h).(Event)
}

// heapRemove drops the event for postID and reports whether it existed.
// The scheduler keeps at most one event per post.
func heapRemove(h *eventHeap, postID string) bool {
	for i, e := range *h {
		if e.PostID == postID {
			heap.Remove(h, i)
			return true
		}
	}
	return false
}
