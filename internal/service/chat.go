package service

import (
	"context"
	"fmt"

	"github.com/citadel-ai/langcheckchat/internal/models"
	"github.com/citadel-ai/langcheckchat/internal/rag"
	"github.com/citadel-ai/langcheckchat/internal/scoring"

	"go.uber.org/zap"
)

// warningThreshold is the factual consistency below which an answer is flagged.
const warningThreshold = 0.5

// Answerer produces a response and its source passages for a user message.
type Answerer interface {
	Query(ctx context.Context, message, language string) (response, source string, err error)
}

// InlineScorers provides the factual consistency scorer run before answering.
type InlineScorers interface {
	Inline(language string) (name string, scorer scoring.Scorer, ok bool)
}

// ChatService answers chat messages and schedules their evaluation.
type ChatService struct {
	answerer   Answerer
	demo       *rag.DemoResponses
	inline     InlineScorers
	dispatcher *Dispatcher
	logger     *zap.Logger
}

func NewChatService(answerer Answerer, demo *rag.DemoResponses, inline InlineScorers, dispatcher *Dispatcher, logger *zap.Logger) *ChatService {
	if demo == nil {
		demo = &rag.DemoResponses{}
	}
	return &ChatService{
		answerer:   answerer,
		demo:       demo,
		inline:     inline,
		dispatcher: dispatcher,
		logger:     logger,
	}
}

// Chat answers message in language. With demo set, a canned answer is used
// when one matches. The factual consistency score is nil when it could not be
// computed, and the answer is then flagged.
func (s *ChatService) Chat(ctx context.Context, message, language string, demo bool) (*models.ChatResponse, error) {
	var (
		response, source string
		canned           *float64
		matched          bool
	)
	if demo {
		var d rag.DemoResponse
		if d, matched = s.demo.Match(message); matched {
			response, source, canned = d.ResponseMessage, d.Source, d.FactualConsistencyScore
		}
	}
	if !matched {
		var err error
		response, source, err = s.answerer.Query(ctx, message, language)
		if err != nil {
			return nil, fmt.Errorf("rag query failed: %w", err)
		}
	}

	inline := s.scoreInline(ctx, response, source, language, canned)

	job, err := s.dispatcher.Dispatch(ctx, Exchange{
		Request:  message,
		Response: response,
		Source:   source,
		Language: language,
		Inline:   inline,
	})
	if err != nil {
		return nil, err
	}

	var score *float64
	if inline != nil {
		score = inline.MetricValue
	}
	return &models.ChatResponse{
		Response: response,
		Score:    score,
		Warning:  score == nil || *score < warningThreshold,
		Source:   source,
		ID:       job.LogID,
	}, nil
}

func (s *ChatService) scoreInline(ctx context.Context, response, source, language string, canned *float64) *models.Metric {
	name, scorer, ok := s.inline.Inline(language)
	if !ok {
		return nil
	}

	m := &models.Metric{MetricName: name}
	if canned != nil {
		m.MetricValue = canned
		return m
	}

	score, err := scorer.Score(ctx, []string{response, source})
	if err != nil {
		s.logger.Warn("Inline factual consistency failed",
			zap.String("metric", name),
			zap.Error(err))
		return m
	}
	m.MetricValue = &score.Value
	m.Explanation = score.Explanation
	return m
}
