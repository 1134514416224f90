package scheduler

import (
	"context"
	"sync"
)

// runningGuard keeps at most one run per table in flight.
type runningGuard struct {
	mu      sync.Mutex
	running map[string]struct{}
	wg      sync.WaitGroup
}

// TryLock marks table as running. It returns false if it already is.
func (g *runningGuard) TryLock(table string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.running == nil {
		g.running = make(map[string]struct{})
	}
	if _, ok := g.running[table]; ok {
		return false
	}
	g.running[table] = struct{}{}
	g.wg.Add(1)
	return true
}

// Unlock must follow a successful TryLock.
func (g *runningGuard) Unlock(table string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.running, table)
	g.wg.Done()
}

func (g *runningGuard) Running(table string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.running[table]
	return ok
}

// WaitAll blocks until in-flight runs finish or ctx is done.
func (g *runningGuard) WaitAll(ctx context.Context) {
	done := make(chan struct{})
	go func() {
		g.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
	}
}
