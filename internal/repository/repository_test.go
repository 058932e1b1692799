package repository

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/citadel-ai/langcheckchat/internal/models"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestDB(t *testing.T) *sqlx.DB {
	t.Helper()
	db, err := NewDB(DriverSQLite, filepath.Join(t.TempDir(), "test.db"), zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, MigrateDB(db, zap.NewNop()))
	t.Cleanup(func() { db.Close() })
	return db
}

func ptr[T any](v T) *T { return &v }

func TestChatLogRepository_CreateWithInlineMetric(t *testing.T) {
	db := newTestDB(t)
	logs := NewChatLogRepository(db, zap.NewNop())
	metrics := NewMetricRepository(db, zap.NewNop())
	ctx := context.Background()

	entry := &models.ChatLog{Request: "what is langcheck?", Response: "a library", Source: "docs", Language: "en"}
	inline := &models.Metric{MetricName: "factual_consistency", MetricValue: ptr(0.8)}
	require.NoError(t, logs.Create(ctx, entry, inline))
	assert.NotZero(t, entry.ID)
	assert.Equal(t, entry.ID, inline.LogID)

	got, err := logs.GetByID(ctx, entry.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusNew, got.Status)
	assert.Equal(t, "what is langcheck?", got.Request)
	assert.Nil(t, got.Reference)
	assert.False(t, got.CreatedAt.IsZero())

	rows, err := metrics.ListByLogID(ctx, entry.ID)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "factual_consistency", rows[0].MetricName)
	require.NotNil(t, rows[0].MetricValue)
	assert.InDelta(t, 0.8, *rows[0].MetricValue, 1e-9)
}

func TestChatLogRepository_NotFound(t *testing.T) {
	db := newTestDB(t)
	logs := NewChatLogRepository(db, zap.NewNop())
	ctx := context.Background()

	_, err := logs.GetByID(ctx, 42)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, logs.UpdateStatus(ctx, 42, models.StatusDone), ErrNotFound)
	assert.ErrorIs(t, logs.SetReference(ctx, 42, "ref"), ErrNotFound)
}

func TestChatLogRepository_SetReferenceReopens(t *testing.T) {
	db := newTestDB(t)
	logs := NewChatLogRepository(db, zap.NewNop())
	ctx := context.Background()

	entry := &models.ChatLog{Request: "q", Response: "a", Language: "en"}
	require.NoError(t, logs.Create(ctx, entry))
	require.NoError(t, logs.UpdateStatus(ctx, entry.ID, models.StatusDone))
	require.NoError(t, logs.SetReference(ctx, entry.ID, "the reference"))

	got, err := logs.GetByID(ctx, entry.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusNew, got.Status)
	require.NotNil(t, got.Reference)
	assert.Equal(t, "the reference", *got.Reference)
}

func TestChatLogRepository_ListRecentNewestFirst(t *testing.T) {
	db := newTestDB(t)
	logs := NewChatLogRepository(db, zap.NewNop())
	ctx := context.Background()

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		require.NoError(t, logs.Create(ctx, &models.ChatLog{
			Request:   string(rune('a' + i)),
			Response:  "r",
			Language:  "en",
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}))
	}

	page, err := logs.ListRecent(ctx, 2, 0)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, "c", page[0].Request)
	assert.Equal(t, "b", page[1].Request)

	page, err = logs.ListRecent(ctx, 2, 2)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "a", page[0].Request)
}

func TestMetricRepository_RegisterIsIdempotent(t *testing.T) {
	db := newTestDB(t)
	logs := NewChatLogRepository(db, zap.NewNop())
	metrics := NewMetricRepository(db, zap.NewNop())
	ctx := context.Background()

	entry := &models.ChatLog{Request: "q", Response: "a", Language: "en"}
	require.NoError(t, logs.Create(ctx, entry))

	id, err := metrics.Register(ctx, entry.ID, "response_toxicity")
	require.NoError(t, err)
	require.NoError(t, metrics.UpdateValue(ctx, id, ptr(0.1), nil))

	again, err := metrics.Register(ctx, entry.ID, "response_toxicity")
	require.NoError(t, err)
	assert.Equal(t, id, again)

	rows, err := metrics.ListByLogID(ctx, entry.ID)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Nil(t, rows[0].MetricValue)
}

func TestMetricRepository_UpdateValueAndExplanation(t *testing.T) {
	db := newTestDB(t)
	logs := NewChatLogRepository(db, zap.NewNop())
	metrics := NewMetricRepository(db, zap.NewNop())
	ctx := context.Background()

	entry := &models.ChatLog{Request: "q", Response: "a", Language: "ja"}
	require.NoError(t, logs.Create(ctx, entry))
	id, err := metrics.Register(ctx, entry.ID, "response_fluency_openai")
	require.NoError(t, err)

	require.NoError(t, metrics.UpdateValue(ctx, id, ptr(0.75), ptr("reads naturally")))
	assert.ErrorIs(t, metrics.UpdateValue(ctx, id+100, ptr(0.5), nil), ErrNotFound)

	rows, err := metrics.ListByLogID(ctx, entry.ID)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.NotNil(t, rows[0].Explanation)
	assert.Equal(t, "reads naturally", *rows[0].Explanation)
}

func TestMetricRepository_ListByLogIDs(t *testing.T) {
	db := newTestDB(t)
	logs := NewChatLogRepository(db, zap.NewNop())
	metrics := NewMetricRepository(db, zap.NewNop())
	ctx := context.Background()

	first := &models.ChatLog{Request: "q1", Response: "a1", Language: "en"}
	second := &models.ChatLog{Request: "q2", Response: "a2", Language: "en"}
	require.NoError(t, logs.Create(ctx, first, &models.Metric{MetricName: "factual_consistency"}))
	require.NoError(t, logs.Create(ctx, second))
	_, err := metrics.Register(ctx, second.ID, "rouge1")
	require.NoError(t, err)
	_, err = metrics.Register(ctx, second.ID, "rouge2")
	require.NoError(t, err)

	byLog, err := metrics.ListByLogIDs(ctx, []int64{first.ID, second.ID})
	require.NoError(t, err)
	assert.Len(t, byLog[first.ID], 1)
	assert.Len(t, byLog[second.ID], 2)

	empty, err := metrics.ListByLogIDs(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestStoreErrorMatchesUnavailable(t *testing.T) {
	db := newTestDB(t)
	logs := NewChatLogRepository(db, zap.NewNop())
	require.NoError(t, db.Close())

	_, err := logs.GetByID(context.Background(), 1)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrStoreUnavailable)
	assert.NotErrorIs(t, err, ErrNotFound)

	var storeErr *StoreError
	require.ErrorAs(t, err, &storeErr)
	assert.Equal(t, "get chat log", storeErr.Op)
}

func TestNewDB_CreatesSQLiteDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "data")
	db, err := NewDB(DriverSQLite, filepath.Join(dir, "chat.db"), zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestNewDB_ReportsUncreatableDirectory(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "blocker")
	require.NoError(t, os.WriteFile(blocker, []byte("not a directory"), 0o644))

	dir := filepath.Join(blocker, "data")
	_, err := NewDB(DriverSQLite, filepath.Join(dir, "chat.db"), zap.NewNop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "create database directory "+dir)
}
