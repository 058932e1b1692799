package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/citadel-ai/langcheckchat/internal/models"
	"github.com/citadel-ai/langcheckchat/internal/repository"
	"github.com/citadel-ai/langcheckchat/internal/worker"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	logsPerPage  = 10
	maxLogsLimit = 100
)

// Version is reported by the health check.
var Version = "dev"

type ChatService interface {
	Chat(ctx context.Context, message, language string, demo bool) (*models.ChatResponse, error)
}

type ReferenceDispatcher interface {
	DispatchReference(ctx context.Context, logID int64, reference string) (*worker.Job, error)
}

type ResultService interface {
	GetFullResult(ctx context.Context, logID int64) (*models.FullResult, error)
	ListRecent(ctx context.Context, limit, offset int) ([]models.FullResult, error)
}

// Handler handles HTTP requests
type Handler struct {
	chat    ChatService
	refs    ReferenceDispatcher
	results ResultService
	logger  *zap.Logger
}

// NewHandler creates a new API handler
func NewHandler(chat ChatService, refs ReferenceDispatcher, results ResultService, logger *zap.Logger) *Handler {
	return &Handler{
		chat:    chat,
		refs:    refs,
		results: results,
		logger:  logger,
	}
}

// RegisterRoutes registers all API routes
func (h *Handler) RegisterRoutes(r *gin.Engine) {
	api := r.Group("/api")
	{
		api.POST("/chat", h.Chat)
		api.POST("/chat_demo", h.ChatDemo)
		api.POST("/ref_metric", h.ReferenceMetric)
		api.GET("/metrics/:log_id", h.GetMetrics)
		api.GET("/logs", h.GetLogs)
	}

	r.GET("/health", h.HealthCheck)
}

// Chat answers a message through RAG
func (h *Handler) Chat(c *gin.Context) {
	h.chatTurn(c, false)
}

// ChatDemo answers with a canned response when one matches
func (h *Handler) ChatDemo(c *gin.Context) {
	h.chatTurn(c, true)
}

func (h *Handler) chatTurn(c *gin.Context, demo bool) {
	var req models.ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	lang, err := models.NormalizeLanguage(req.Language)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	resp, err := h.chat.Chat(c.Request.Context(), req.Message, lang, demo)
	if err != nil {
		h.logger.Error("Chat failed", zap.Bool("demo", demo), zap.Error(err))
		h.fail(c, err, "chat failed")
		return
	}

	c.JSON(http.StatusOK, resp)
}

// ReferenceMetric stores a reference answer and schedules the reference-based metrics
func (h *Handler) ReferenceMetric(c *gin.Context) {
	var req models.ReferenceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if _, err := h.refs.DispatchReference(c.Request.Context(), req.LogID, req.Reference); err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			h.logger.Error("Failed to dispatch reference metrics", zap.Int64("log_id", req.LogID), zap.Error(err))
		}
		h.fail(c, err, "failed to schedule reference metrics")
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

// GetMetrics returns a chat log entry with every metric computed so far
func (h *Handler) GetMetrics(c *gin.Context) {
	logID, err := strconv.ParseInt(c.Param("log_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid log id"})
		return
	}

	result, err := h.results.GetFullResult(c.Request.Context(), logID)
	if err != nil {
		h.fail(c, err, "failed to get metrics")
		return
	}

	c.JSON(http.StatusOK, result)
}

// GetLogs lists recent entries, by ?page=N or by ?limit=&offset=
func (h *Handler) GetLogs(c *gin.Context) {
	limit, offset := logsPerPage, 0

	if c.Query("limit") != "" || c.Query("offset") != "" {
		var err error
		if limit, err = strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(logsPerPage))); err != nil || limit < 1 || limit > maxLogsLimit {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit (must be 1-100)"})
			return
		}
		if offset, err = strconv.Atoi(c.DefaultQuery("offset", "0")); err != nil || offset < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid offset"})
			return
		}
	} else {
		page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
		if err != nil || page < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid page"})
			return
		}
		offset = (page - 1) * logsPerPage
	}

	logs, err := h.results.ListRecent(c.Request.Context(), limit, offset)
	if err != nil {
		h.logger.Error("Failed to list logs", zap.Error(err))
		h.fail(c, err, "failed to get logs")
		return
	}

	c.JSON(http.StatusOK, gin.H{"logs": logs})
}

// HealthCheck returns service health
func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "langcheckchat",
		"version": Version,
	})
}

// fail maps store errors onto status codes; anything else is a 500 with msg.
func (h *Handler) fail(c *gin.Context, err error, msg string) {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "log not found"})
	case errors.Is(err, repository.ErrStoreUnavailable):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "store unavailable"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": msg})
	}
}
