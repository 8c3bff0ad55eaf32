package local

import (
	"context"
	"sync"
	"time"
)

// GCScheduler drives periodic garbage collection.
type GCScheduler interface {
	Start()
	Stop()
	Started() bool
}

// noopGCScheduler is the eager policy's scheduler: eager collection happens
// synchronously inside every transaction commit, so there is nothing to
// schedule and only the started/stopped flag is tracked.
type noopGCScheduler struct {
	mu      sync.Mutex
	started bool
}

func (s *noopGCScheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.started = true
}

func (s *noopGCScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.started = false
}

func (s *noopGCScheduler) Started() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.started
}

// lruGCScheduler runs the collector sweep callback on a fixed interval in a
// background goroutine. The sweep itself, including the choice of sequence
// number upper bound, belongs to the external collector.
type lruGCScheduler struct {
	interval time.Duration
	sweep    func(ctx context.Context)

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

func newLRUScheduler(interval time.Duration, sweep func(ctx context.Context)) *lruGCScheduler {
	return &lruGCScheduler{
		interval: interval,
		sweep:    sweep,
	}
}

// Start begins the background sweep loop.
func (s *lruGCScheduler) Start() {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})
	s.mu.Unlock()

	go s.run()
}

// Stop stops the sweep loop and waits for it to finish.
func (s *lruGCScheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	close(s.stopCh)
	s.mu.Unlock()

	<-s.doneCh

	s.mu.Lock()
	s.running = false
	s.mu.Unlock()
}

// Started reports whether the sweep loop is running.
func (s *lruGCScheduler) Started() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *lruGCScheduler) run() {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	ctx := context.Background()
	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}
