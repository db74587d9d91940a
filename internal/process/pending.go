package process

import "sync"

// PendingService is a start request waiting for its dependencies.
type PendingService struct {
	Name    string
	Depends []string
}

// PendingQueue holds services whose dependencies were not yet healthy
// at start time. Every Healthy event is an opportunity to drain it.
type PendingQueue struct {
	mu    sync.Mutex
	items []PendingService
}

// NewPendingQueue creates an empty queue.
func NewPendingQueue() *PendingQueue {
	return &PendingQueue{}
}

// Add appends a service with a snapshot of its dependency names. A
// service already queued is not added twice.
func (q *PendingQueue) Add(name string, depends []string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, item := range q.items {
		if item.Name == name {
			return
		}
	}
	q.items = append(q.items, PendingService{
		Name:    name,
		Depends: append([]string(nil), depends...),
	})
}

// Remove deletes a service from the queue.
func (q *PendingQueue) Remove(name string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = removeByName(q.items, name)
}

// TakeSatisfied atomically removes and returns every pending service
// whose dependency snapshot satisfies the predicate.
func (q *PendingQueue) TakeSatisfied(satisfied func(PendingService) bool) []PendingService {
	q.mu.Lock()
	defer q.mu.Unlock()
	var taken []PendingService
	remaining := q.items[:0]
	for _, item := range q.items {
		if satisfied(item) {
			taken = append(taken, item)
		} else {
			remaining = append(remaining, item)
		}
	}
	q.items = remaining
	return taken
}

// Contains reports whether a service is queued.
func (q *PendingQueue) Contains(name string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, item := range q.items {
		if item.Name == name {
			return true
		}
	}
	return false
}

// Len returns the number of queued services.
func (q *PendingQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

func removeByName(items []PendingService, name string) []PendingService {
	out := items[:0]
	for _, item := range items {
		if item.Name != name {
			out = append(out, item)
		}
	}
	return out
}
