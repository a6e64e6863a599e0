package sample

import (
	"container/heap"
	"sync"
)

// Queue is an unbounded priority queue of events ordered by timestamp.
// It is safe for concurrent Push from many producers and Pop from one consumer.
//
// Events with equal timestamps pop in the order they were pushed:
// each Push is stamped with a sequence number that breaks ties.
type Queue struct {
	mu    sync.Mutex
	items eventHeap
	seq   uint64
}

type queued struct {
	ev  Event
	seq uint64
}

type eventHeap []queued

func (h eventHeap) Len() int { return len(h) }
func (h eventHeap) Less(i, j int) bool {
	ti, tj := h[i].ev.Timestamp(), h[j].ev.Timestamp()
	if ti != tj {
		return ti < tj
	}
	return h[i].seq < h[j].seq
}
func (h eventHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h *eventHeap) Push(x any)   { *h = append(*h, x.(queued)) }
func (h *eventHeap) Pop() any {
	old := *h
	n := len(old)
	it := old[n-1]
	old[n-1] = queued{}
	*h = old[:n-1]
	return it
}

func NewQueue() *Queue {
	return &Queue{}
}

// Push adds an event. Nil events are ignored.
func (q *Queue) Push(ev Event) {
	if ev == nil {
		return
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	q.seq++
	heap.Push(&q.items, queued{ev: ev, seq: q.seq})
}

// Pop removes and returns the lowest-timestamp event.
func (q *Queue) Pop() (Event, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return nil, false
	}
	it := heap.Pop(&q.items).(queued)
	return it.ev, true
}

func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Clear drops every pending event.
func (q *Queue) Clear() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = nil
}

// DrainOrdered pops everything currently queued, in order.
// Events pushed while draining are left for the next call.
func (q *Queue) DrainOrdered() []Event {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]Event, 0, len(q.items))
	for len(q.items) > 0 {
		out = append(out, heap.Pop(&q.items).(queued).ev)
	}
	return out
}
