package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/citadel-ai/langcheckchat/internal/models"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

type MetricRepository interface {
	// Register inserts a placeholder (NULL value) for the metric and returns its id.
	// A row that already exists for (log id, name) is reset to NULL and reused.
	Register(ctx context.Context, logID int64, name string) (int64, error)
	UpdateValue(ctx context.Context, id int64, value *float64, explanation *string) error
	ListByLogID(ctx context.Context, logID int64) ([]models.Metric, error)
	ListByLogIDs(ctx context.Context, logIDs []int64) (map[int64][]models.Metric, error)
}

type metricRepository struct {
	db     *sqlx.DB
	logger *zap.Logger
}

func NewMetricRepository(db *sqlx.DB, logger *zap.Logger) MetricRepository {
	return &metricRepository{db: db, logger: logger}
}

func upsertMetric(ctx context.Context, q sqlx.ExtContext, m *models.Metric) error {
	query := q.Rebind(`INSERT INTO metric (log_id, metric_name, metric_value, explanation)
	          VALUES (?, ?, ?, ?)
	          ON CONFLICT (log_id, metric_name)
	          DO UPDATE SET metric_value = excluded.metric_value, explanation = excluded.explanation
	          RETURNING id`)
	if err := q.QueryRowxContext(ctx, query, m.LogID, m.MetricName, m.MetricValue, m.Explanation).Scan(&m.ID); err != nil {
		return storeErr("upsert metric", err)
	}
	return nil
}

func (r *metricRepository) Register(ctx context.Context, logID int64, name string) (int64, error) {
	m := &models.Metric{LogID: logID, MetricName: name}
	if err := upsertMetric(ctx, r.db, m); err != nil {
		return 0, err
	}
	return m.ID, nil
}

func (r *metricRepository) UpdateValue(ctx context.Context, id int64, value *float64, explanation *string) error {
	query := r.db.Rebind(`UPDATE metric SET metric_value = ?, explanation = ? WHERE id = ?`)
	res, err := r.db.ExecContext(ctx, query, value, explanation, id)
	if err != nil {
		return storeErr("update metric", err)
	}
	return requireRow(res)
}

func (r *metricRepository) ListByLogID(ctx context.Context, logID int64) ([]models.Metric, error) {
	metrics := []models.Metric{}
	query := r.db.Rebind(`SELECT id, log_id, metric_name, metric_value, explanation FROM metric WHERE log_id = ? ORDER BY id`)
	if err := r.db.SelectContext(ctx, &metrics, query, logID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return metrics, nil
		}
		return nil, storeErr("list metrics", err)
	}
	return metrics, nil
}

func (r *metricRepository) ListByLogIDs(ctx context.Context, logIDs []int64) (map[int64][]models.Metric, error) {
	byLog := make(map[int64][]models.Metric, len(logIDs))
	if len(logIDs) == 0 {
		return byLog, nil
	}

	query, args, err := sqlx.In(`SELECT id, log_id, metric_name, metric_value, explanation FROM metric WHERE log_id IN (?) ORDER BY id`, logIDs)
	if err != nil {
		return nil, err
	}

	var metrics []models.Metric
	if err := r.db.SelectContext(ctx, &metrics, r.db.Rebind(query), args...); err != nil {
		return nil, storeErr("list metrics", err)
	}
	for _, m := range metrics {
		byLog[m.LogID] = append(byLog[m.LogID], m)
	}
	return byLog, nil
}
