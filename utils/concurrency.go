package utils

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// WorkerPool runs jobs on at most maxWorkers goroutines. Job starts are
// paced by a token-bucket limiter when a rate limit is set.
type WorkerPool struct {
	slots   chan struct{}
	limiter *rate.Limiter
	wg      sync.WaitGroup
}

// NewWorkerPool creates a WorkerPool. rateLimitMs is the minimum spacing
// between job starts; zero or less runs jobs unpaced.
func NewWorkerPool(maxWorkers, rateLimitMs int) *WorkerPool {
	if maxWorkers < 1 {
		maxWorkers = 1
	}
	wp := &WorkerPool{slots: make(chan struct{}, maxWorkers)}
	if rateLimitMs > 0 {
		wp.limiter = rate.NewLimiter(rate.Every(time.Duration(rateLimitMs)*time.Millisecond), 1)
	}
	return wp
}

// Submit runs job on the pool, blocking while every worker is busy.
func (wp *WorkerPool) Submit(job func()) {
	wp.wg.Add(1)
	wp.slots <- struct{}{}

	go func() {
		defer wp.wg.Done()
		defer func() { <-wp.slots }()

		if wp.limiter != nil {
			// never fails: Background has no deadline and burst is 1
			_ = wp.limiter.Wait(context.Background())
		}
		job()
	}()
}

// Wait blocks until all submitted jobs have completed.
func (wp *WorkerPool) Wait() {
	wp.wg.Wait()
}

// Set is a set of keys safe for concurrent use.
type Set[K comparable] struct {
	mu   sync.RWMutex
	keys map[K]struct{}
}

// NewSet creates an empty Set.
func NewSet[K comparable]() *Set[K] {
	return &Set[K]{keys: make(map[K]struct{})}
}

// NewURLSet creates an empty set of listing URLs.
func NewURLSet() *Set[string] {
	return NewSet[string]()
}

// Add reports whether k was newly added.
func (s *Set[K]) Add(k K) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.keys[k]; ok {
		return false
	}
	s.keys[k] = struct{}{}
	return true
}

// Size returns the number of keys in the set.
func (s *Set[K]) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.keys)
}
