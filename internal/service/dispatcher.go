package service

import (
	"context"
	"fmt"

	"github.com/citadel-ai/langcheckchat/internal/metric"
	"github.com/citadel-ai/langcheckchat/internal/models"
	"github.com/citadel-ai/langcheckchat/internal/repository"
	"github.com/citadel-ai/langcheckchat/internal/worker"

	"go.uber.org/zap"
)

// SuiteRunner runs one metric pass for an entry.
type SuiteRunner interface {
	Run(ctx context.Context, logID int64, suite metric.Suite) error
}

// JobPool executes tasks in the background.
type JobPool interface {
	Submit(name string, logID int64, task worker.Task) (*worker.Job, error)
}

// Exchange is one answered chat turn waiting to be logged.
type Exchange struct {
	Request  string
	Response string
	Source   string
	Language string
	// Inline is the factual consistency computed before answering; its value may be nil.
	Inline *models.Metric
}

// Dispatcher logs exchanges and hands their metric passes to the worker pool.
type Dispatcher struct {
	chatLogs repository.ChatLogRepository
	runner   SuiteRunner
	pool     JobPool
	logger   *zap.Logger
}

func NewDispatcher(chatLogs repository.ChatLogRepository, runner SuiteRunner, pool JobPool, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{
		chatLogs: chatLogs,
		runner:   runner,
		pool:     pool,
		logger:   logger,
	}
}

// Dispatch inserts the entry together with its inline metric and submits the
// standard suite. It does not wait for the pass to run.
func (d *Dispatcher) Dispatch(ctx context.Context, ex Exchange) (*worker.Job, error) {
	entry := &models.ChatLog{
		Request:  ex.Request,
		Response: ex.Response,
		Source:   ex.Source,
		Language: ex.Language,
	}

	var inline []*models.Metric
	if ex.Inline != nil {
		inline = append(inline, ex.Inline)
	}
	if err := d.chatLogs.Create(ctx, entry, inline...); err != nil {
		return nil, fmt.Errorf("failed to log exchange: %w", err)
	}

	d.logger.Info("Exchange logged",
		zap.Int64("log_id", entry.ID),
		zap.String("language", entry.Language))

	return d.submit(entry.ID, metric.SuiteStandard)
}

// DispatchReference attaches a reference answer to an existing entry, reopens
// it and submits the reference suite. Nothing is written for an unknown entry.
func (d *Dispatcher) DispatchReference(ctx context.Context, logID int64, reference string) (*worker.Job, error) {
	if _, err := d.chatLogs.GetByID(ctx, logID); err != nil {
		return nil, err
	}
	if err := d.chatLogs.SetReference(ctx, logID, reference); err != nil {
		return nil, fmt.Errorf("failed to store reference: %w", err)
	}

	d.logger.Info("Reference stored", zap.Int64("log_id", logID))

	return d.submit(logID, metric.SuiteReference)
}

func (d *Dispatcher) submit(logID int64, suite metric.Suite) (*worker.Job, error) {
	job, err := d.pool.Submit(suite.String()+"_metrics", logID, func(ctx context.Context) error {
		return d.runner.Run(ctx, logID, suite)
	})
	if err != nil {
		// The entry is already committed and stays unscored until rerun by hand.
		d.logger.Error("Metric pass not scheduled, rerun with `langcheckchat metrics`",
			zap.Int64("log_id", logID),
			zap.String("suite", suite.String()),
			zap.Error(err))
		return nil, fmt.Errorf("failed to schedule %s metrics: %w", suite, err)
	}
	return job, nil
}
