// internal/gateway/pool.go
package gateway

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"
)

// Pool executes dispatch tasks with a global concurrency semaphore shared by
// all chats. The pool gives no per-chat ordering guarantee: ordering within
// a chat is only as strong as the state store's get-and-clear discipline.
type Pool struct {
	sem    *semaphore.Weighted
	active atomic.Int64

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewPool creates a Pool allowing up to maxConcurrent tasks at once.
func NewPool(maxConcurrent int64) *Pool {
	if maxConcurrent <= 0 {
		maxConcurrent = 2
	}
	return &Pool{sem: semaphore.NewWeighted(maxConcurrent)}
}

// Start initialises the pool's context. Must be called before Submit.
func (p *Pool) Start(ctx context.Context) {
	p.ctx, p.cancel = context.WithCancel(ctx)
}

// Stop cancels the pool context and waits for in-flight tasks to finish.
func (p *Pool) Stop() {
	if p.cancel != nil {
		p.cancel()
	}
	p.wg.Wait()
}

// Submit schedules a task. The task runs as soon as a semaphore slot is
// free; Submit itself never blocks on task execution.
func (p *Pool) Submit(task func(ctx context.Context)) error {
	if p.ctx == nil {
		return fmt.Errorf("pool not started")
	}
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		if err := p.sem.Acquire(p.ctx, 1); err != nil {
			return
		}
		defer p.sem.Release(1)
		p.active.Add(1)
		defer p.active.Add(-1)
		task(p.ctx)
	}()
	return nil
}

// WaitIdle blocks until no tasks are actively being processed, or the
// timeout expires. Returns true if idle, false if timed out.
func (p *Pool) WaitIdle(timeout time.Duration) bool {
	deadline := time.After(timeout)
	for {
		if p.active.Load() == 0 {
			return true
		}
		select {
		case <-deadline:
			return false
		case <-time.After(10 * time.Millisecond):
		}
	}
}
