package workspace

import (
	"context"
	"log"
	"time"
)

// Scheduler reclaims workspaces by age. It takes the job gate for each sweep
// so a running job's workspace is never removed.
type Scheduler struct {
	manager  *Manager
	gate     *Gate
	interval time.Duration
	maxAge   time.Duration
	stopChan chan struct{}
	done     chan struct{}
}

func NewScheduler(manager *Manager, gate *Gate, interval, maxAge time.Duration) *Scheduler {
	return &Scheduler{
		manager:  manager,
		gate:     gate,
		interval: interval,
		maxAge:   maxAge,
		stopChan: make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start runs one sweep immediately, then one per interval until Stop.
func (s *Scheduler) Start() {
	s.Sweep(context.Background())

	ticker := time.NewTicker(s.interval)
	go func() {
		defer close(s.done)
		for {
			select {
			case <-ticker.C:
				s.Sweep(context.Background())
			case <-s.stopChan:
				ticker.Stop()
				return
			}
		}
	}()

	log.Printf("[Workspace] age reclaim scheduler started (interval: %s, max age: %s)", s.interval, s.maxAge)
}

func (s *Scheduler) Stop() {
	close(s.stopChan)
	<-s.done
	log.Println("[Workspace] age reclaim scheduler stopped")
}

// Sweep removes workspaces older than the max age.
func (s *Scheduler) Sweep(ctx context.Context) ReclaimResult {
	release, err := s.gate.Acquire(ctx)
	if err != nil {
		log.Printf("[Workspace] sweep skipped: %v", err)
		return ReclaimResult{}
	}
	defer release()

	result, err := s.manager.ReclaimOlderThan(s.maxAge)
	if err != nil {
		log.Printf("[Workspace] error during sweep: %v", err)
	}
	return result
}
