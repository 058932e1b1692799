package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	"github.com/citadel-ai/langcheckchat/internal/handler"
	"github.com/citadel-ai/langcheckchat/internal/rag"
	"github.com/citadel-ai/langcheckchat/internal/repository"
	"github.com/citadel-ai/langcheckchat/internal/server"
	"github.com/citadel-ai/langcheckchat/internal/service"
	"github.com/citadel-ai/langcheckchat/internal/worker"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// maxChunkChars bounds the size of an indexed passage.
const maxChunkChars = 1500

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the chat server",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := setup()
		if err != nil {
			return err
		}
		defer logger.Sync()

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		logger.Info("Starting LangCheckChat...")

		a, err := newApp(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer a.Close()

		docs, err := rag.LoadDocuments(cfg.RAG.DocsDir)
		if err != nil {
			return err
		}
		index, err := rag.BuildIndex(ctx, a.provider, docs, maxChunkChars)
		if err != nil {
			return err
		}
		if index.Len() == 0 {
			logger.Warn("No documents indexed, answers will have no sources", zap.String("docs_dir", cfg.RAG.DocsDir))
		}
		logger.Info("Corpus indexed",
			zap.Int("documents", len(docs)),
			zap.Int("chunks", index.Len()))

		demo, err := rag.LoadDemoResponses(cfg.RAG.DemoResponses)
		if err != nil {
			return err
		}

		pool, err := worker.NewPool(cfg.Worker, func(err error) bool {
			return errors.Is(err, repository.ErrStoreUnavailable)
		}, logger)
		if err != nil {
			return err
		}
		defer func() {
			if err := pool.Release(cfg.Worker.ShutdownTimeout); err != nil {
				logger.Warn("Worker pool did not drain in time", zap.Error(err))
			}
		}()

		engine := rag.NewEngine(index, a.provider, a.provider, cfg.RAG.TopK, logger)
		dispatcher := service.NewDispatcher(a.chatLogs, a.runner, pool, logger)
		chat := service.NewChatService(engine, demo, a.registry, dispatcher, logger)
		results := service.NewResultService(a.chatLogs, a.metrics)

		srv := server.NewServer(cfg, handler.NewHandler(chat, dispatcher, results, logger), logger)

		logger.Info("LangCheckChat is running",
			zap.String("port", cfg.Server.Port),
			zap.Int("demo_responses", demo.Len()))

		return srv.Run(ctx, cfg.Worker.ShutdownTimeout)
	},
}
