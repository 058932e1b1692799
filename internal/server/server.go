package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"time"

	"github.com/citadel-ai/langcheckchat/internal/config"
	"github.com/citadel-ai/langcheckchat/internal/handler"
	"github.com/citadel-ai/langcheckchat/internal/middleware"

	"github.com/gin-gonic/gin"
	"github.com/rs/cors"
	"go.uber.org/zap"
)

type Server struct {
	router *gin.Engine
	srv    *http.Server
	logger *zap.Logger
}

// NewServer builds the router: API routes, the static UI when configured, and CORS.
func NewServer(cfg *config.Config, h *handler.Handler, logger *zap.Logger) *Server {
	var router *gin.Engine
	if cfg.Server.Release {
		gin.SetMode(gin.ReleaseMode)
		router = gin.New()
		router.Use(middleware.Recovery(logger), middleware.RequestLogger(logger))
	} else {
		router = gin.Default()
	}

	h.RegisterRoutes(router)

	if dir := cfg.Server.StaticDir; dir != "" {
		index := filepath.Join(dir, "index.html")
		router.StaticFile("/", index)
		router.StaticFile("/demo", index)
		router.StaticFile("/logs", filepath.Join(dir, "logs.html"))
		router.Static("/static", dir)
	}

	c := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type"},
	})

	return &Server{
		router: router,
		srv: &http.Server{
			Addr:              fmt.Sprintf(":%s", cfg.Server.Port),
			Handler:           c.Handler(router),
			ReadHeaderTimeout: 10 * time.Second,
		},
		logger: logger,
	}
}

// Handler is the CORS-wrapped router.
func (s *Server) Handler() http.Handler {
	return s.srv.Handler
}

// Run serves until ctx is cancelled, then shuts down within shutdownTimeout.
func (s *Server) Run(ctx context.Context, shutdownTimeout time.Duration) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Server starting", zap.String("address", s.srv.Addr))
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	return nil
}
