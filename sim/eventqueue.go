package sim

import (
	"container/heap"
	"sync"
)

// EventQueue is a queue of events ordered by the time of the events.
type EventQueue interface {
	Push(evt Event)
	Pop() Event
	Peek() Event
	Len() int
}

// NewEventQueue creates a thread-safe, heap-based EventQueue.
func NewEventQueue() EventQueue {
	q := new(eventQueueImpl)
	q.events = make(eventHeap, 0)
	heap.Init(&q.events)

	return q
}

type eventQueueImpl struct {
	sync.Mutex
	events eventHeap
}

// Push adds an event to the event queue.
func (q *eventQueueImpl) Push(evt Event) {
	q.Lock()
	heap.Push(&q.events, evt)
	q.Unlock()
}

// Pop returns the next earliest event.
func (q *eventQueueImpl) Pop() Event {
	q.Lock()
	e := heap.Pop(&q.events).(Event)
	q.Unlock()

	return e
}

// Peek returns the event in front of the queue without removing it.
func (q *eventQueueImpl) Peek() Event {
	q.Lock()
	evt := q.events[0]
	q.Unlock()

	return evt
}

// Len returns the number of events in the queue.
func (q *eventQueueImpl) Len() int {
	q.Lock()
	l := q.events.Len()
	q.Unlock()

	return l
}

type eventHeap []Event

func (h eventHeap) Len() int {
	return len(h)
}

func (h eventHeap) Less(i, j int) bool {
	return h[i].Time() < h[j].Time()
}

func (h eventHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
}

func (h *eventHeap) Push(x interface{}) {
	event := x.(Event)
	*h = append(*h, event)
}

func (h *eventHeap) Pop() interface{} {
	old := *h
	n := len(old)
	event := old[n-1]
	*h = old[0 : n-1]

	return event
}
