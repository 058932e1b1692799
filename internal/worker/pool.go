// Package worker runs metric passes in the background, outliving the request
// that submitted them.
package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/citadel-ai/langcheckchat/internal/config"

	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"
)

// Task is one unit of background work.
type Task func(ctx context.Context) error

// Job is the handle of a submitted task.
type Job struct {
	ID    uuid.UUID
	LogID int64
	Name  string

	task Task
	done chan struct{}
	once sync.Once
	err  error
}

// Done is closed once the task finished, after its last attempt.
func (j *Job) Done() <-chan struct{} { return j.done }

// Err is the task's final error. Only valid after Done is closed.
func (j *Job) Err() error { return j.err }

// Wait blocks until the job is done or ctx ends.
func (j *Job) Wait(ctx context.Context) error {
	select {
	case <-j.done:
		return j.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (j *Job) finish(err error) {
	j.once.Do(func() {
		j.err = err
		close(j.done)
	})
}

// Pool executes jobs on a bounded set of goroutines.
type Pool struct {
	pool        *ants.PoolWithFunc
	retryable   func(error) bool
	maxAttempts int
	retryDelay  time.Duration
	logger      *zap.Logger
}

// NewPool creates a pool of cfg.PoolSize workers. Tasks failing with an error
// for which retryable reports true are retried up to cfg.MaxAttempts times.
func NewPool(cfg config.WorkerConfig, retryable func(error) bool, logger *zap.Logger) (*Pool, error) {
	if cfg.PoolSize <= 0 {
		return nil, fmt.Errorf("pool size must be greater than 0")
	}
	if retryable == nil {
		retryable = func(error) bool { return false }
	}

	p := &Pool{
		retryable:   retryable,
		maxAttempts: max(cfg.MaxAttempts, 1),
		retryDelay:  cfg.RetryDelay,
		logger:      logger,
	}

	pool, err := ants.NewPoolWithFunc(cfg.PoolSize, func(args any) {
		job, ok := args.(*Job)
		if !ok {
			logger.Error("Unexpected worker argument", zap.String("type", fmt.Sprintf("%T", args)))
			return
		}
		p.run(job)
	})
	if err != nil {
		return nil, fmt.Errorf("create worker pool: %w", err)
	}
	p.pool = pool

	logger.Info("Worker pool started",
		zap.Int("size", cfg.PoolSize),
		zap.Int("max_attempts", p.maxAttempts))
	return p, nil
}

// Submit queues task for logID and returns without waiting for it to run.
// It blocks only while every worker is busy.
func (p *Pool) Submit(name string, logID int64, task Task) (*Job, error) {
	job := &Job{
		ID:    uuid.New(),
		LogID: logID,
		Name:  name,
		task:  task,
		done:  make(chan struct{}),
	}
	if err := p.pool.Invoke(job); err != nil {
		return nil, fmt.Errorf("submit %s for log %d: %w", name, logID, err)
	}

	p.logger.Debug("Job submitted",
		zap.String("job_id", job.ID.String()),
		zap.String("job", name),
		zap.Int64("log_id", logID))
	return job, nil
}

// Running is the number of workers currently executing a job.
func (p *Pool) Running() int {
	return p.pool.Running()
}

// Release stops accepting jobs and waits up to timeout for running ones.
func (p *Pool) Release(timeout time.Duration) error {
	return p.pool.ReleaseTimeout(timeout)
}

func (p *Pool) run(job *Job) {
	// Jobs are not tied to the submitting request.
	ctx := context.Background()
	logger := p.logger.With(
		zap.String("job_id", job.ID.String()),
		zap.String("job", job.Name),
		zap.Int64("log_id", job.LogID))

	var err error
	for attempt := 1; attempt <= p.maxAttempts; attempt++ {
		if attempt > 1 {
			logger.Warn("Retrying job", zap.Int("attempt", attempt), zap.Error(err))
			time.Sleep(p.retryDelay)
		}

		err = p.attempt(ctx, job)
		if err == nil || !p.retryable(err) {
			break
		}
	}

	if err != nil {
		logger.Error("Job failed", zap.Error(err))
	} else {
		logger.Debug("Job finished")
	}
	job.finish(err)
}

func (p *Pool) attempt(ctx context.Context, job *Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job panicked: %v", r)
		}
	}()
	return job.task(ctx)
}
