package worker

import (
	"context"
	"errors"
	"sync"

	"github.com/edutalk/api/internal/model"
	"github.com/rs/zerolog/log"
)

// ErrPoolStopped is returned by Dispatch after Stop.
var ErrPoolStopped = errors.New("worker pool stopped")

// Handler processes one job.
type Handler func(ctx context.Context, jobID string) error

// Pool runs jobs on a fixed number of goroutines fed by a bounded queue.
type Pool struct {
	size  int
	queue chan string

	mu      sync.Mutex
	stopped bool
	wg      sync.WaitGroup
}

// NewPool creates a pool of size workers with room for queueSize waiting jobs.
func NewPool(size, queueSize int) *Pool {
	return &Pool{
		size:  size,
		queue: make(chan string, queueSize),
	}
}

// Start launches the workers. They exit when ctx is cancelled or the pool is
// stopped and drained.
func (p *Pool) Start(ctx context.Context, handler Handler) {
	for i := 0; i < p.size; i++ {
		p.wg.Add(1)
		go p.loop(ctx, i, handler)
	}
	log.Info().Int("workers", p.size).Int("queue", cap(p.queue)).Msg("worker pool started")
}

func (p *Pool) loop(ctx context.Context, id int, handler Handler) {
	defer p.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case jobID, ok := <-p.queue:
			if !ok {
				return
			}
			if err := handler(ctx, jobID); err != nil {
				log.Debug().Err(err).Int("worker", id).Str("job_id", jobID).Msg("job finished with error")
			}
		}
	}
}

// Dispatch enqueues a job without blocking. A full queue yields model.ErrQueueFull.
func (p *Pool) Dispatch(_ context.Context, jobID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stopped {
		return ErrPoolStopped
	}
	select {
	case p.queue <- jobID:
		return nil
	default:
		return model.ErrQueueFull
	}
}

// Pending returns the number of jobs waiting for a worker.
func (p *Pool) Pending() int {
	return len(p.queue)
}

// Stop refuses new jobs and waits until queued jobs are drained or ctx ends.
func (p *Pool) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.stopped {
		p.stopped = true
		close(p.queue)
	}
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
