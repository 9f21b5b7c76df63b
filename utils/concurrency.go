package utils

import "sync"

// WorkerPool runs jobs on at most size goroutines at a time.
type WorkerPool struct {
	slots chan struct{}
	wg    sync.WaitGroup
}

// NewWorkerPool creates a pool with size worker slots. Sizes below one are
// raised to one.
func NewWorkerPool(size int) *WorkerPool {
	if size < 1 {
		size = 1
	}
	return &WorkerPool{slots: make(chan struct{}, size)}
}

// Submit starts job once a slot is free, blocking until then.
func (wp *WorkerPool) Submit(job func()) {
	wp.wg.Add(1)
	wp.slots <- struct{}{}

	go func() {
		defer wp.wg.Done()
		defer func() { <-wp.slots }()
		job()
	}()
}

// Wait blocks until every submitted job has returned.
func (wp *WorkerPool) Wait() {
	wp.wg.Wait()
}

// KeySet is a concurrency-safe set of strings, used to remember which
// listing paths an adapter has already queued.
type KeySet struct {
	mu   sync.Mutex
	keys map[string]struct{}
}

// NewKeySet returns an empty KeySet.
func NewKeySet() *KeySet {
	return &KeySet{keys: make(map[string]struct{})}
}

// Add reports whether key was new to the set.
func (s *KeySet) Add(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.keys[key]; ok {
		return false
	}
	s.keys[key] = struct{}{}
	return true
}
