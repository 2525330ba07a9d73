package dispatch

import (
	"sync"
	"sync/atomic"

	"FxPulse/internal/domain/models"
)

// Queue is a bounded alert buffer. When full, a new alert evicts the oldest
// pending alert of the lowest priority not above its own; if every pending
// alert outranks it, the new alert is the one dropped.
type Queue struct {
	mu      sync.Mutex
	items   []*models.Alert // arrival order
	size    int
	dropped atomic.Int64
	ready   chan struct{}
}

func NewQueue(size int) *Queue {
	if size < 1 {
		size = 1
	}
	return &Queue{
		items: make([]*models.Alert, 0, size),
		size:  size,
		ready: make(chan struct{}, 1),
	}
}

// Push enqueues a. It returns the alert that was dropped, if any, and whether
// a itself was accepted.
func (q *Queue) Push(a *models.Alert) (dropped *models.Alert, accepted bool) {
	q.mu.Lock()
	if len(q.items) >= q.size {
		victim := -1
		for i, it := range q.items {
			if it.Priority > a.Priority {
				continue
			}
			if victim < 0 || it.Priority < q.items[victim].Priority {
				victim = i
			}
		}
		if victim < 0 {
			q.mu.Unlock()
			q.dropped.Add(1)
			return a, false
		}
		dropped = q.items[victim]
		q.items = append(q.items[:victim], q.items[victim+1:]...)
		q.dropped.Add(1)
	}
	q.items = append(q.items, a)
	q.mu.Unlock()

	select {
	case q.ready <- struct{}{}:
	default:
	}
	return dropped, true
}

// Pop removes the highest-priority alert, oldest first within a priority.
func (q *Queue) Pop() (*models.Alert, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return nil, false
	}
	best := 0
	for i, it := range q.items {
		if it.Priority > q.items[best].Priority {
			best = i
		}
	}
	a := q.items[best]
	q.items = append(q.items[:best], q.items[best+1:]...)
	return a, true
}

// Ready is signalled after a push.
func (q *Queue) Ready() <-chan struct{} { return q.ready }

func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Dropped counts alerts evicted or rejected since creation.
func (q *Queue) Dropped() int64 { return q.dropped.Load() }
