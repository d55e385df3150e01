package forge

import (
	"context"
	"sync"
)

// scheduler bounds the number of concurrently running builds. Requests over
// the limit wait in FIFO order; requests over the queue capacity are rejected
// with ErrQueueFull so callers never block indefinitely.
type scheduler struct {
	mu       sync.Mutex
	active   int
	limit    int
	queueCap int
	waiters  []chan struct{}
}

func newScheduler(limit, queueCap int) *scheduler {
	if limit < 1 {
		limit = 1
	}
	return &scheduler{limit: limit, queueCap: queueCap}
}

func (s *scheduler) acquire(ctx context.Context) error {
	s.mu.Lock()
	if s.active < s.limit {
		s.active++
		s.mu.Unlock()
		return nil
	}
	if len(s.waiters) >= s.queueCap {
		s.mu.Unlock()
		return ErrQueueFull
	}
	ready := make(chan struct{})
	s.waiters = append(s.waiters, ready)
	s.mu.Unlock()

	select {
	case <-ready:
		return nil
	case <-ctx.Done():
		s.mu.Lock()
		for i, w := range s.waiters {
			if w == ready {
				s.waiters = append(s.waiters[:i], s.waiters[i+1:]...)
				s.mu.Unlock()
				return ctx.Err()
			}
		}
		s.mu.Unlock()
		// The slot was handed to us just as the context expired; give it
		// back so it reaches the next waiter.
		s.release()
		return ctx.Err()
	}
}

func (s *scheduler) release() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.waiters) > 0 {
		// Transfer the slot to the oldest waiter; active stays unchanged.
		ready := s.waiters[0]
		s.waiters = s.waiters[1:]
		close(ready)
		return
	}
	s.active--
}

// inFlight reports how many builds currently hold a slot.
func (s *scheduler) inFlight() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// queued reports how many requests are waiting for a slot.
func (s *scheduler) queued() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.waiters)
}
