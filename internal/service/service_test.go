package service

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/citadel-ai/langcheckchat/internal/config"
	"github.com/citadel-ai/langcheckchat/internal/metric"
	"github.com/citadel-ai/langcheckchat/internal/models"
	"github.com/citadel-ai/langcheckchat/internal/rag"
	"github.com/citadel-ai/langcheckchat/internal/repository"
	"github.com/citadel-ai/langcheckchat/internal/scoring"
	"github.com/citadel-ai/langcheckchat/internal/worker"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type runCall struct {
	logID int64
	suite metric.Suite
}

type fakeRunner struct {
	mu    sync.Mutex
	calls []runCall
}

func (r *fakeRunner) Run(ctx context.Context, logID int64, suite metric.Suite) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, runCall{logID, suite})
	return nil
}

func (r *fakeRunner) recorded() []runCall {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]runCall(nil), r.calls...)
}

type fakeAnswerer struct {
	calls    int
	response string
	source   string
	err      error
}

func (a *fakeAnswerer) Query(ctx context.Context, message, language string) (string, string, error) {
	a.calls++
	return a.response, a.source, a.err
}

type fakeInline struct {
	scorer scoring.Scorer
	calls  int
}

func (f *fakeInline) Inline(language string) (string, scoring.Scorer, bool) {
	return "factual_consistency", scoring.ScorerFunc(func(ctx context.Context, inputs []string) (scoring.Score, error) {
		f.calls++
		return f.scorer.Score(ctx, inputs)
	}), true
}

func fixedScore(v float64) scoring.Scorer {
	return scoring.ScorerFunc(func(ctx context.Context, inputs []string) (scoring.Score, error) {
		return scoring.Score{Value: v}, nil
	})
}

type fixture struct {
	chatLogs   repository.ChatLogRepository
	metrics    repository.MetricRepository
	runner     *fakeRunner
	dispatcher *Dispatcher
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	db, err := repository.NewDB(repository.DriverSQLite, filepath.Join(t.TempDir(), "service.db"), zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, repository.MigrateDB(db, zap.NewNop()))
	t.Cleanup(func() { db.Close() })

	pool, err := worker.NewPool(config.WorkerConfig{PoolSize: 2, MaxAttempts: 1}, nil, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { pool.Release(time.Second) })

	f := fixture{
		chatLogs: repository.NewChatLogRepository(db, zap.NewNop()),
		metrics:  repository.NewMetricRepository(db, zap.NewNop()),
		runner:   &fakeRunner{},
	}
	f.dispatcher = NewDispatcher(f.chatLogs, f.runner, pool, zap.NewNop())
	return f
}

func waitJob(t *testing.T, job *worker.Job) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, job.Wait(ctx))
}

func TestDispatcher_Dispatch(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	value := 0.8

	job, err := f.dispatcher.Dispatch(ctx, Exchange{
		Request:  "What is LangCheck?",
		Response: "A library.",
		Source:   "docs",
		Language: models.LanguageEnglish,
		Inline:   &models.Metric{MetricName: "factual_consistency", MetricValue: &value},
	})
	require.NoError(t, err)
	waitJob(t, job)

	entry, err := f.chatLogs.GetByID(ctx, job.LogID)
	require.NoError(t, err)
	assert.Equal(t, "What is LangCheck?", entry.Request)
	assert.Equal(t, models.StatusNew, entry.Status)

	rows, err := f.metrics.ListByLogID(ctx, job.LogID)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "factual_consistency", rows[0].MetricName)
	assert.InDelta(t, 0.8, *rows[0].MetricValue, 1e-9)

	assert.Equal(t, []runCall{{job.LogID, metric.SuiteStandard}}, f.runner.recorded())
	assert.Equal(t, "standard_metrics", job.Name)
}

func TestDispatcher_DispatchReference(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	job, err := f.dispatcher.Dispatch(ctx, Exchange{Request: "q", Response: "r", Language: models.LanguageEnglish})
	require.NoError(t, err)
	waitJob(t, job)

	refJob, err := f.dispatcher.DispatchReference(ctx, job.LogID, "the reference")
	require.NoError(t, err)
	waitJob(t, refJob)

	entry, err := f.chatLogs.GetByID(ctx, job.LogID)
	require.NoError(t, err)
	require.NotNil(t, entry.Reference)
	assert.Equal(t, "the reference", *entry.Reference)
	assert.Equal(t, []runCall{
		{job.LogID, metric.SuiteStandard},
		{job.LogID, metric.SuiteReference},
	}, f.runner.recorded())
}

func TestDispatcher_DispatchReferenceUnknownEntry(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.dispatcher.DispatchReference(ctx, 999, "the reference")
	assert.ErrorIs(t, err, repository.ErrNotFound)
	assert.Empty(t, f.runner.recorded())

	entries, err := f.chatLogs.ListRecent(ctx, 10, 0)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestChatService_Answers(t *testing.T) {
	f := newFixture(t)
	answerer := &fakeAnswerer{response: "A library.", source: "docs"}
	svc := NewChatService(answerer, nil, &fakeInline{scorer: fixedScore(0.9)}, f.dispatcher, zap.NewNop())

	resp, err := svc.Chat(context.Background(), "What is LangCheck?", models.LanguageEnglish, false)
	require.NoError(t, err)

	assert.Equal(t, "A library.", resp.Response)
	assert.Equal(t, "docs", resp.Source)
	require.NotNil(t, resp.Score)
	assert.InDelta(t, 0.9, *resp.Score, 1e-9)
	assert.False(t, resp.Warning)
	assert.NotZero(t, resp.ID)
	assert.Equal(t, 1, answerer.calls)
}

func TestChatService_LowScoreWarns(t *testing.T) {
	f := newFixture(t)
	svc := NewChatService(&fakeAnswerer{response: "r"}, nil, &fakeInline{scorer: fixedScore(0.2)}, f.dispatcher, zap.NewNop())

	resp, err := svc.Chat(context.Background(), "q", models.LanguageEnglish, false)
	require.NoError(t, err)
	assert.True(t, resp.Warning)
}

func TestChatService_InlineFailure(t *testing.T) {
	f := newFixture(t)
	failing := scoring.ScorerFunc(func(ctx context.Context, inputs []string) (scoring.Score, error) {
		return scoring.Score{}, errors.New("scoring service down")
	})
	svc := NewChatService(&fakeAnswerer{response: "r", source: "s"}, nil, &fakeInline{scorer: failing}, f.dispatcher, zap.NewNop())

	resp, err := svc.Chat(context.Background(), "q", models.LanguageEnglish, false)
	require.NoError(t, err)
	assert.Nil(t, resp.Score)
	assert.True(t, resp.Warning)

	rows, err := f.metrics.ListByLogID(context.Background(), resp.ID)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "factual_consistency", rows[0].MetricName)
	assert.Nil(t, rows[0].MetricValue)
}

func TestChatService_DemoUsesCannedAnswer(t *testing.T) {
	f := newFixture(t)
	path := filepath.Join(t.TempDir(), "demo.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"What is LangCheck": {"response_message": "Canned.", "source": "canned source", "factual_consistency_score": 0.95}
	}`), 0o644))
	demo, err := rag.LoadDemoResponses(path)
	require.NoError(t, err)

	answerer := &fakeAnswerer{response: "live"}
	inline := &fakeInline{scorer: fixedScore(0.1)}
	svc := NewChatService(answerer, demo, inline, f.dispatcher, zap.NewNop())

	resp, err := svc.Chat(context.Background(), "what is langcheck, briefly?", models.LanguageEnglish, true)
	require.NoError(t, err)
	assert.Equal(t, "Canned.", resp.Response)
	assert.Equal(t, "canned source", resp.Source)
	assert.InDelta(t, 0.95, *resp.Score, 1e-9)
	assert.Zero(t, answerer.calls)
	assert.Zero(t, inline.calls)

	// a miss falls through to the live engine
	resp, err = svc.Chat(context.Background(), "something else", models.LanguageEnglish, true)
	require.NoError(t, err)
	assert.Equal(t, "live", resp.Response)
	assert.Equal(t, 1, answerer.calls)
}

func TestChatService_AnswererErrorLogsNothing(t *testing.T) {
	f := newFixture(t)
	svc := NewChatService(&fakeAnswerer{err: errors.New("provider down")}, nil, &fakeInline{scorer: fixedScore(1)}, f.dispatcher, zap.NewNop())

	_, err := svc.Chat(context.Background(), "q", models.LanguageEnglish, false)
	assert.Error(t, err)

	entries, err := f.chatLogs.ListRecent(context.Background(), 10, 0)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestResultService(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	results := NewResultService(f.chatLogs, f.metrics)

	var ids []int64
	for _, q := range []string{"first", "second"} {
		job, err := f.dispatcher.Dispatch(ctx, Exchange{Request: q, Response: "r", Language: models.LanguageEnglish})
		require.NoError(t, err)
		waitJob(t, job)
		ids = append(ids, job.LogID)
	}
	_, err := f.metrics.Register(ctx, ids[0], "request_toxicity")
	require.NoError(t, err)

	full, err := results.GetFullResult(ctx, ids[0])
	require.NoError(t, err)
	assert.Equal(t, "first", full.Request)
	require.Contains(t, full.Metrics, "request_toxicity")
	assert.Nil(t, full.Metrics["request_toxicity"].MetricValue)

	_, err = results.GetFullResult(ctx, 12345)
	assert.ErrorIs(t, err, repository.ErrNotFound)

	recent, err := results.ListRecent(ctx, 10, 0)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "second", recent[0].Request)
	assert.Empty(t, recent[0].Metrics)
	assert.Len(t, recent[1].Metrics, 1)
}

type closedPool struct{}

func (closedPool) Submit(name string, logID int64, task worker.Task) (*worker.Job, error) {
	return nil, errors.New("this pool has been closed")
}

func TestDispatcher_SubmitFailureLogsEntry(t *testing.T) {
	f := newFixture(t)
	core, logs := observer.New(zapcore.ErrorLevel)
	dispatcher := NewDispatcher(f.chatLogs, f.runner, closedPool{}, zap.New(core))
	ctx := context.Background()

	_, err := dispatcher.Dispatch(ctx, Exchange{Request: "q", Response: "r", Language: models.LanguageEnglish})
	require.Error(t, err)

	entries, err := f.chatLogs.ListRecent(ctx, 10, 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	require.Equal(t, 1, logs.Len())
	fields := logs.All()[0].ContextMap()
	assert.Equal(t, entries[0].ID, fields["log_id"])
	assert.Equal(t, "standard", fields["suite"])
}
