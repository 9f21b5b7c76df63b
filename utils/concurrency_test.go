package utils

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestKeySetNoDuplicates(t *testing.T) {
	s := NewKeySet()

	if !s.Add("/huren/oosterstraat-5") {
		t.Error("first Add should return true")
	}
	if s.Add("/huren/oosterstraat-5") {
		t.Error("second Add of same key should return false")
	}
	if !s.Add("/huren/herestraat-10") {
		t.Error("Add of a different key should return true")
	}
}

func TestKeySetConcurrentAdd(t *testing.T) {
	s := NewKeySet()
	var added int64

	pool := NewWorkerPool(10)
	for i := 0; i < 100; i++ {
		pool.Submit(func() {
			if s.Add("/huren/same") {
				atomic.AddInt64(&added, 1)
			}
		})
	}
	pool.Wait()

	if added != 1 {
		t.Errorf("successful adds = %d; want 1", added)
	}
}

func TestWorkerPoolRunsEveryJob(t *testing.T) {
	pool := NewWorkerPool(0)
	var ran int64
	for i := 0; i < 5; i++ {
		pool.Submit(func() { atomic.AddInt64(&ran, 1) })
	}
	pool.Wait()

	if ran != 5 {
		t.Errorf("jobs run = %d; want 5", ran)
	}
}

func TestWorkerPoolBoundsConcurrency(t *testing.T) {
	pool := NewWorkerPool(2)
	var running, peak int64

	for i := 0; i < 10; i++ {
		pool.Submit(func() {
			n := atomic.AddInt64(&running, 1)
			for {
				p := atomic.LoadInt64(&peak)
				if n <= p || atomic.CompareAndSwapInt64(&peak, p, n) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			atomic.AddInt64(&running, -1)
		})
	}
	pool.Wait()

	if peak > 2 {
		t.Errorf("peak concurrency = %d; want <= 2", peak)
	}
}
