package jobs

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Task is one unit of queued work. The job ID doubles as the task ID.
type Task struct {
	JobID       uuid.UUID
	SubmittedAt time.Time
}

// Executor runs a job end-to-end. Implemented by the pipeline runner.
type Executor interface {
	Run(ctx context.Context, jobID uuid.UUID) error
}

// Pool is a fixed-size worker pool pulling queued tasks off a buffered
// channel. Each task is executed by exactly one worker under a per-job
// timeout. Delivery is at-least-once; the dispatcher's idempotency check
// compensates for duplicates.
type Pool struct {
	exec    Executor
	logger  *slog.Logger
	workers int
	timeout time.Duration

	ch   chan Task
	wg   sync.WaitGroup
	once sync.Once

	mu        sync.Mutex
	producers sync.WaitGroup
	closed    bool
}

// ErrPoolClosed is returned by Enqueue once Shutdown has begun.
var ErrPoolClosed = errors.New("worker pool is shut down")

// PoolOption customizes pool construction.
type PoolOption func(*Pool)

// WithWorkers sets the number of concurrent workers.
func WithWorkers(n int) PoolOption {
	return func(p *Pool) {
		if n > 0 {
			p.workers = n
		}
	}
}

// WithQueueSize sets the buffered queue capacity.
func WithQueueSize(n int) PoolOption {
	return func(p *Pool) {
		if n > 0 {
			p.ch = make(chan Task, n)
		}
	}
}

// WithJobTimeout bounds how long a single job may run.
func WithJobTimeout(d time.Duration) PoolOption {
	return func(p *Pool) {
		if d > 0 {
			p.timeout = d
		}
	}
}

// NewPool creates and starts a worker pool.
func NewPool(exec Executor, logger *slog.Logger, opts ...PoolOption) *Pool {
	if logger == nil {
		logger = slog.Default()
	}
	p := &Pool{
		exec:    exec,
		logger:  logger,
		workers: 4,
		timeout: 15 * time.Minute,
		ch:      make(chan Task, 256),
	}
	for _, o := range opts {
		o(p)
	}
	p.start()
	return p
}

func (p *Pool) start() {
	p.once.Do(func() {
		for i := 0; i < p.workers; i++ {
			p.wg.Add(1)
			go func(workerID int) {
				defer p.wg.Done()
				p.logger.Info("worker started", "worker_id", workerID)

				for task := range p.ch {
					ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
					err := p.exec.Run(ctx, task.JobID)
					cancel()

					if err != nil {
						p.logger.Error("job failed", "worker_id", workerID, "job_id", task.JobID, "error", err)
					} else {
						p.logger.Info("job finished", "worker_id", workerID, "job_id", task.JobID)
					}
				}

				p.logger.Info("worker stopped", "worker_id", workerID)
			}(i + 1)
		}
	})
}

// Enqueue places a task on the queue, blocking when the queue is full
// until a worker frees a slot or the context expires. After Shutdown it
// returns ErrPoolClosed so the caller can surface the rejection.
func (p *Pool) Enqueue(ctx context.Context, task Task) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		p.logger.Warn("rejecting enqueue: pool is shutting down", "job_id", task.JobID)
		return ErrPoolClosed
	}
	p.producers.Add(1)
	p.mu.Unlock()
	defer p.producers.Done()

	select {
	case p.ch <- task:
		p.logger.Info("queued job", "job_id", task.JobID)
		return nil
	default:
	}

	p.logger.Warn("queue full, applying backpressure", "job_id", task.JobID)
	select {
	case p.ch <- task:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Shutdown stops accepting tasks and drains the queue, returning when all
// workers have exited or the context expires. The channel is only closed
// once every in-flight Enqueue has finished its send.
func (p *Pool) Shutdown(ctx context.Context) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	p.mu.Unlock()

	p.producers.Wait()
	close(p.ch)

	done := make(chan struct{})
	go func() { defer close(done); p.wg.Wait() }()

	select {
	case <-ctx.Done():
		p.logger.Warn("shutdown interrupted by context")
	case <-done:
		p.logger.Info("queue drained, shutdown complete")
	}
}
