package metric

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/citadel-ai/langcheckchat/internal/models"
	"github.com/citadel-ai/langcheckchat/internal/repository"

	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"
)

// EntryStore is the part of the chat log store a runner needs.
type EntryStore interface {
	GetByID(ctx context.Context, id int64) (*models.ChatLog, error)
	UpdateStatus(ctx context.Context, id int64, status models.Status) error
}

// Runner computes one suite of metrics for one chat log entry.
type Runner struct {
	entries  EntryStore
	registry *Registry
	pool     *ants.PoolWithFunc
	logger   *zap.Logger
}

// computeParam carries one descriptor of a pass into the compute pool.
type computeParam struct {
	ctx  context.Context
	desc *Descriptor
	lang string
	wg   *sync.WaitGroup
	// done receives the descriptor's error, nil included.
	done func(*Descriptor, error)
}

// NewRunner creates a runner computing up to concurrency descriptors at once,
// shared by every pass. Call Release when the runner is no longer used.
func NewRunner(entries EntryStore, registry *Registry, concurrency int, logger *zap.Logger) (*Runner, error) {
	if concurrency < 1 {
		concurrency = 1
	}
	pool, err := createComputePool(concurrency)
	if err != nil {
		return nil, err
	}
	return &Runner{
		entries:  entries,
		registry: registry,
		pool:     pool,
		logger:   logger,
	}, nil
}

func createComputePool(size int) (*ants.PoolWithFunc, error) {
	pool, err := ants.NewPoolWithFunc(size, func(args any) {
		param, ok := args.(*computeParam)
		if !ok {
			panic("metric compute pool args type error")
		}
		var err error
		defer func() {
			if r := recover(); r != nil {
				err = &ComputationError{Metric: param.desc.Name(), Err: fmt.Errorf("panic: %v", r)}
			}
			param.done(param.desc, err)
			param.wg.Done()
		}()
		err = param.desc.ComputeAndStore(param.ctx, param.lang)
	})
	if err != nil {
		return nil, fmt.Errorf("create metric compute pool: %w", err)
	}
	return pool, nil
}

// Release stops the compute pool.
func (r *Runner) Release() {
	r.pool.Release()
}

// Run registers a placeholder for every metric of the suite, marks the entry
// pending, computes each metric and marks the entry done.
//
// A metric whose scorer fails keeps its NULL value and does not stop the pass.
// Missing entries and store failures are returned; after a store failure during
// computation the entry is left pending so the pass can be retried.
func (r *Runner) Run(ctx context.Context, logID int64, suite Suite) error {
	entry, err := r.entries.GetByID(ctx, logID)
	if err != nil {
		return fmt.Errorf("load entry %d: %w", logID, err)
	}

	descs, err := r.registry.Bind(entry, suite)
	if err != nil {
		return err
	}

	for _, d := range descs {
		if err := d.Register(ctx, entry.ID, entry.Language); err != nil {
			return err
		}
	}

	if err := r.entries.UpdateStatus(ctx, entry.ID, models.StatusPending); err != nil {
		return fmt.Errorf("mark entry %d pending: %w", entry.ID, err)
	}

	r.logger.Info("Computing metrics",
		zap.Int64("log_id", entry.ID),
		zap.String("suite", suite.String()),
		zap.String("language", entry.Language),
		zap.Int("descriptors", len(descs)))

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		storeErr error
		failed   int
	)
	done := func(d *Descriptor, err error) {
		if err == nil {
			return
		}
		mu.Lock()
		defer mu.Unlock()
		failed++
		if errors.Is(err, repository.ErrStoreUnavailable) && storeErr == nil {
			storeErr = err
		}
		r.logger.Warn("Metric computation failed",
			zap.Int64("log_id", entry.ID),
			zap.String("metric", d.Name()),
			zap.Error(err))
	}

	for _, d := range descs {
		wg.Add(1)
		param := &computeParam{ctx: ctx, desc: d, lang: entry.Language, wg: &wg, done: done}
		if err := r.pool.Invoke(param); err != nil {
			wg.Done()
			done(d, fmt.Errorf("schedule %s: %w", d.Name(), err))
		}
	}
	wg.Wait()

	if storeErr != nil {
		return storeErr
	}

	if err := r.entries.UpdateStatus(ctx, entry.ID, models.StatusDone); err != nil {
		return fmt.Errorf("mark entry %d done: %w", entry.ID, err)
	}

	r.logger.Info("Metrics computed",
		zap.Int64("log_id", entry.ID),
		zap.String("suite", suite.String()),
		zap.Int("failed", failed))
	return nil
}
