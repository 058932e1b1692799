package main

import (
	"context"

	"github.com/citadel-ai/langcheckchat/internal/config"
	"github.com/citadel-ai/langcheckchat/internal/llm"
	"github.com/citadel-ai/langcheckchat/internal/metric"
	"github.com/citadel-ai/langcheckchat/internal/repository"
	"github.com/citadel-ai/langcheckchat/internal/scoring"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

// app holds the components shared by serve and metrics.
type app struct {
	db       *sqlx.DB
	chatLogs repository.ChatLogRepository
	metrics  repository.MetricRepository
	provider llm.Provider // RAG chat and embeddings
	judge    llm.Provider // nil unless remote metrics are enabled
	registry *metric.Registry
	runner   *metric.Runner
}

func newApp(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*app, error) {
	db, err := repository.NewDB(cfg.Database.Driver, cfg.Database.DSN, logger)
	if err != nil {
		return nil, err
	}
	if err := repository.MigrateDB(db, logger); err != nil {
		db.Close()
		return nil, err
	}

	a := &app{
		db:       db,
		chatLogs: repository.NewChatLogRepository(db, logger),
		metrics:  repository.NewMetricRepository(db, logger),
	}

	base, err := llm.NewProvider(llm.ConfigFromRemote(cfg.Remote, cfg.RAG.ChatModel, cfg.RAG.EmbeddingModel), logger)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.provider = llm.NewRateLimitedProvider(base, cfg.Remote.RequestsPerMinute, logger)

	backends := metric.Backends{Embedder: a.provider}
	if cfg.Remote.Enabled {
		if cfg.Remote.Model == cfg.RAG.ChatModel {
			backends.Judge = a.provider
		} else {
			judge, err := llm.NewProvider(llm.ConfigFromRemote(cfg.Remote, cfg.Remote.Model, cfg.RAG.EmbeddingModel), logger)
			if err != nil {
				a.Close()
				return nil, err
			}
			a.judge = llm.NewRateLimitedProvider(judge, cfg.Remote.RequestsPerMinute, logger)
			backends.Judge = a.judge
		}
	}
	if cfg.Local.Enabled {
		sidecar := scoring.NewSidecarClient(cfg.Local.ScoringServiceURL, cfg.Local.Timeout)
		if health, err := sidecar.HealthCheck(ctx); err != nil {
			logger.Warn("Scoring service unreachable, local metrics will fail until it is up",
				zap.String("url", cfg.Local.ScoringServiceURL),
				zap.Error(err))
		} else {
			logger.Info("Scoring service ready",
				zap.String("status", health.Status),
				zap.Strings("models", health.ModelsLoaded))
		}
		backends.Sidecar = sidecar
	}

	a.registry, err = metric.NewRegistry(cfg, backends, a.metrics)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.runner, err = metric.NewRunner(a.chatLogs, a.registry, cfg.Worker.MetricConcurrency, logger)
	if err != nil {
		a.Close()
		return nil, err
	}

	logger.Info("Metric registry built",
		zap.Int("standard", len(a.registry.Definitions(metric.SuiteStandard))),
		zap.Int("reference", len(a.registry.Definitions(metric.SuiteReference))),
		zap.Bool("local", cfg.Local.Enabled),
		zap.Bool("remote", cfg.Remote.Enabled))
	return a, nil
}

func (a *app) Close() {
	if a.runner != nil {
		a.runner.Release()
	}
	if a.judge != nil {
		a.judge.Close()
	}
	if a.provider != nil {
		a.provider.Close()
	}
	a.db.Close()
}
