package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ErrBusy is the admission backpressure signal: the queue stayed full for
// the whole bounded wait.
var ErrBusy = errors.New("worker queue is full")

// Job hands one accepted upload to the pool. The task record already
// exists in the store with status queued.
type Job struct {
	TaskID    string
	VideoPath string
}

// Pool runs a fixed number of workers over a bounded queue. Each job is
// processed end to end by exactly one worker.
type Pool struct {
	queue   chan Job
	maxWait time.Duration
	workers int
	proc    *Processor
	logger  *zap.Logger
	wg      sync.WaitGroup
}

func NewPool(workers, queueSize int, maxWait time.Duration, proc *Processor, logger *zap.Logger) *Pool {
	return &Pool{
		queue:   make(chan Job, queueSize),
		maxWait: maxWait,
		workers: workers,
		proc:    proc,
		logger:  logger,
	}
}

func (p *Pool) Start(ctx context.Context) {
	p.logger.Info("worker pool started",
		zap.Int("workers", p.workers),
		zap.Int("queue_capacity", cap(p.queue)),
	)

	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go func(id int) {
			defer p.wg.Done()
			for {
				select {
				case <-ctx.Done():
					p.logger.Info("worker shutting down", zap.Int("worker", id))
					return
				case job := <-p.queue:
					p.proc.Run(ctx, job)
				}
			}
		}(i)
	}
}

// Submit enqueues a job, waiting up to the configured bound when the
// queue is full, then rejecting with ErrBusy.
func (p *Pool) Submit(job Job) error {
	select {
	case p.queue <- job:
		return nil
	default:
	}

	timer := time.NewTimer(p.maxWait)
	defer timer.Stop()

	select {
	case p.queue <- job:
		return nil
	case <-timer.C:
		return ErrBusy
	}
}

// Wait blocks until all workers have exited after their context is done.
func (p *Pool) Wait() {
	p.wg.Wait()
}
