// Package workerpool implements a bounded-queue worker pool, the unit
// the scheduler (internal/scheduler) instantiates once per pipeline
// stage (spec.md §4.4: "for each step in the expanded plan the
// scheduler instantiates a stage ... worker set: if needs_serial(),
// exactly 1 worker; otherwise thread_count workers"). Grounded on the
// teacher's pkg/workerpool/worker_pool.go (pool of reusable workers
// pulling from one bounded task channel), generalized from a single
// global pool to one pool per stage and, in place of the teacher's
// hand-rolled sync.WaitGroup + context.CancelFunc pair, built on
// golang.org/x/sync/errgroup so the first worker error cancels the
// whole pool's context, matching the idiom the pack's other pipeline
// examples use for goroutine-group lifecycle.
package workerpool

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Task is one unit of work handed to a pool worker.
type Task struct {
	ID      string
	Execute func(ctx context.Context) error
}

// Config controls pool sizing.
type Config struct {
	Workers   int
	QueueSize int
}

// Pool runs Workers goroutines pulling Tasks off a bounded channel
// until the channel is closed or the run context is canceled by a
// worker error.
type Pool struct {
	config Config
	logger *logrus.Logger

	inbox chan Task

	completed int64
	failed    int64
}

// New returns a pool sized per config. Workers<=0 default to 1 (the
// serial-stage case, spec.md §4.4).
func New(config Config, logger *logrus.Logger) *Pool {
	if config.Workers <= 0 {
		config.Workers = 1
	}
	if config.QueueSize <= 0 {
		config.QueueSize = config.Workers * 4
	}
	return &Pool{
		config: config,
		logger: logger,
		inbox:  make(chan Task, config.QueueSize),
	}
}

// Inbox exposes the bounded task channel so a caller can push work and
// close it to signal "no more tasks" (spec.md §5: backpressure is a
// full inbox blocking the sender).
func (p *Pool) Inbox() chan<- Task {
	return p.inbox
}

// Depth reports the number of tasks currently queued, used by
// pkg/backpressure to classify stage fullness.
func (p *Pool) Depth() int { return len(p.inbox) }

// Capacity reports the inbox's fixed capacity.
func (p *Pool) Capacity() int { return cap(p.inbox) }

// Run starts all workers and blocks until the inbox is closed and
// drained, or until ctx is canceled or a worker returns an error — in
// which case Run returns that error after every worker has exited.
// Run owns closing nothing; the caller closes the inbox when the
// upstream is done producing.
func (p *Pool) Run(ctx context.Context) error {
	group, gctx := errgroup.WithContext(ctx)

	for i := 0; i < p.config.Workers; i++ {
		workerID := i
		group.Go(func() error {
			return p.runWorker(gctx, workerID)
		})
	}

	if err := group.Wait(); err != nil {
		return fmt.Errorf("workerpool: %w", err)
	}
	return nil
}

func (p *Pool) runWorker(ctx context.Context, id int) error {
	for {
		select {
		case task, ok := <-p.inbox:
			if !ok {
				return nil
			}
			if err := p.execute(ctx, id, task); err != nil {
				return err
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (p *Pool) execute(ctx context.Context, workerID int, task Task) error {
	err := task.Execute(ctx)
	if err != nil {
		atomic.AddInt64(&p.failed, 1)
		if p.logger != nil {
			p.logger.WithFields(logrus.Fields{
				"worker_id": workerID,
				"task_id":   task.ID,
				"error":     err,
			}).Error("task execution failed")
		}
		return err
	}
	atomic.AddInt64(&p.completed, 1)
	return nil
}

// Stats reports the pool's lifetime completed/failed task counts.
type Stats struct {
	Completed int64
	Failed    int64
}

// Stats returns a snapshot of the pool's counters.
func (p *Pool) Stats() Stats {
	return Stats{
		Completed: atomic.LoadInt64(&p.completed),
		Failed:    atomic.LoadInt64(&p.failed),
	}
}
