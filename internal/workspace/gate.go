package workspace

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
)

// LockFileName lives in the scratch root next to the workspaces.
const LockFileName = ".vibecast.lock"

const lockRetryDelay = 100 * time.Millisecond

// Gate admits one job at a time. The channel serializes goroutines in this
// process; the file lock serializes processes sharing the scratch root.
type Gate struct {
	sem  chan struct{}
	lock *flock.Flock
}

func NewGate(scratchRoot string) *Gate {
	return &Gate{
		sem:  make(chan struct{}, 1),
		lock: flock.New(filepath.Join(scratchRoot, LockFileName)),
	}
}

// Acquire blocks until the gate is free or ctx is done. The returned release
// function must be called exactly once.
func (g *Gate) Acquire(ctx context.Context) (func(), error) {
	select {
	case g.sem <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	ok, err := g.lock.TryLockContext(ctx, lockRetryDelay)
	if err != nil || !ok {
		<-g.sem
		if err == nil {
			err = fmt.Errorf("lock %s not acquired", g.lock.Path())
		}
		return nil, fmt.Errorf("acquire job gate: %w", err)
	}

	return func() {
		if err := g.lock.Unlock(); err != nil {
			log.Printf("[Workspace] failed to release job gate: %v", err)
		}
		<-g.sem
	}, nil
}
