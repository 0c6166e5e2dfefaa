package engine

import (
	"sync"
	"time"
)

// Scheduler runs delayed tasks keyed by job ID. Each key has at most one
// pending task; scheduling again replaces it.
type Scheduler struct {
	mu     sync.Mutex
	tasks  map[string]*task
	wg     sync.WaitGroup
	closed bool
}

type task struct {
	timer *time.Timer
}

// NewScheduler creates an empty scheduler.
func NewScheduler() *Scheduler {
	return &Scheduler{tasks: make(map[string]*task)}
}

// Schedule runs fn after d unless the task is cancelled first. It returns
// false if the scheduler has been stopped.
func (s *Scheduler) Schedule(key string, d time.Duration, fn func()) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return false
	}
	s.cancelLocked(key)

	t := &task{}
	s.wg.Add(1)
	t.timer = time.AfterFunc(d, func() {
		defer s.wg.Done()

		s.mu.Lock()
		if s.tasks[key] == t {
			delete(s.tasks, key)
		}
		s.mu.Unlock()

		fn()
	})
	s.tasks[key] = t
	return true
}

// Cancel stops the pending task for key. It reports whether a task was
// stopped before it fired.
func (s *Scheduler) Cancel(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancelLocked(key)
}

func (s *Scheduler) cancelLocked(key string) bool {
	t, ok := s.tasks[key]
	if !ok {
		return false
	}
	delete(s.tasks, key)
	if t.timer.Stop() {
		s.wg.Done()
		return true
	}
	return false
}

// Pending returns the number of tasks waiting to fire.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tasks)
}

// Wait blocks until every scheduled task, including tasks scheduled by
// running tasks, has fired or been cancelled.
func (s *Scheduler) Wait() {
	s.wg.Wait()
}

// Stop cancels all pending tasks, rejects new ones and waits for tasks
// already firing to return.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	s.closed = true
	for key := range s.tasks {
		s.cancelLocked(key)
	}
	s.mu.Unlock()

	s.wg.Wait()
}
