package service

import (
	"context"

	"github.com/citadel-ai/langcheckchat/internal/models"
	"github.com/citadel-ai/langcheckchat/internal/repository"
)

// ResultService assembles chat log entries with their metrics for polling clients.
type ResultService struct {
	chatLogs repository.ChatLogRepository
	metrics  repository.MetricRepository
}

func NewResultService(chatLogs repository.ChatLogRepository, metrics repository.MetricRepository) *ResultService {
	return &ResultService{chatLogs: chatLogs, metrics: metrics}
}

// GetFullResult returns the entry with every metric row, NULL values included.
func (s *ResultService) GetFullResult(ctx context.Context, logID int64) (*models.FullResult, error) {
	entry, err := s.chatLogs.GetByID(ctx, logID)
	if err != nil {
		return nil, err
	}
	metrics, err := s.metrics.ListByLogID(ctx, logID)
	if err != nil {
		return nil, err
	}
	result := models.NewFullResult(*entry, metrics)
	return &result, nil
}

// ListRecent returns entries newest first, each with its metrics.
func (s *ResultService) ListRecent(ctx context.Context, limit, offset int) ([]models.FullResult, error) {
	entries, err := s.chatLogs.ListRecent(ctx, limit, offset)
	if err != nil {
		return nil, err
	}

	ids := make([]int64, len(entries))
	for i, e := range entries {
		ids[i] = e.ID
	}
	byLog, err := s.metrics.ListByLogIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	results := make([]models.FullResult, len(entries))
	for i, e := range entries {
		results[i] = models.NewFullResult(*e, byLog[e.ID])
	}
	return results, nil
}
