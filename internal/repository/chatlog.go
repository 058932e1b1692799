package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/citadel-ai/langcheckchat/internal/models"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

type ChatLogRepository interface {
	// Create inserts the entry with status "new" together with any metrics
	// already known at insert time, in one transaction.
	Create(ctx context.Context, log *models.ChatLog, metrics ...*models.Metric) error
	GetByID(ctx context.Context, id int64) (*models.ChatLog, error)
	ListRecent(ctx context.Context, limit, offset int) ([]*models.ChatLog, error)
	UpdateStatus(ctx context.Context, id int64, status models.Status) error
	// SetReference stores a reference answer and reopens the entry (status "new").
	SetReference(ctx context.Context, id int64, reference string) error
}

type chatLogRepository struct {
	db     *sqlx.DB
	logger *zap.Logger
}

func NewChatLogRepository(db *sqlx.DB, logger *zap.Logger) ChatLogRepository {
	return &chatLogRepository{db: db, logger: logger}
}

const chatLogColumns = `id, request, response, source, language, reference, status, created_at`

func (r *chatLogRepository) Create(ctx context.Context, log *models.ChatLog, metrics ...*models.Metric) error {
	if log.CreatedAt.IsZero() {
		log.CreatedAt = time.Now().UTC()
	}
	log.Status = models.StatusNew

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return storeErr("begin chat log insert", err)
	}
	defer tx.Rollback()

	query := tx.Rebind(`INSERT INTO chat_log (request, response, source, language, reference, status, created_at)
	          VALUES (?, ?, ?, ?, ?, ?, ?) RETURNING id`)
	err = tx.QueryRowxContext(ctx, query, log.Request, log.Response, log.Source, log.Language,
		log.Reference, log.Status, log.CreatedAt).Scan(&log.ID)
	if err != nil {
		return storeErr("insert chat log", err)
	}

	for _, m := range metrics {
		m.LogID = log.ID
		if err := upsertMetric(ctx, tx, m); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return storeErr("commit chat log insert", err)
	}
	return nil
}

func (r *chatLogRepository) GetByID(ctx context.Context, id int64) (*models.ChatLog, error) {
	var log models.ChatLog
	query := r.db.Rebind(`SELECT ` + chatLogColumns + ` FROM chat_log WHERE id = ?`)
	err := r.db.GetContext(ctx, &log, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, storeErr("get chat log", err)
	}
	return &log, nil
}

func (r *chatLogRepository) ListRecent(ctx context.Context, limit, offset int) ([]*models.ChatLog, error) {
	logs := []*models.ChatLog{}
	query := r.db.Rebind(`SELECT ` + chatLogColumns + ` FROM chat_log ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`)
	if err := r.db.SelectContext(ctx, &logs, query, limit, offset); err != nil {
		return nil, storeErr("list chat logs", err)
	}
	return logs, nil
}

func (r *chatLogRepository) UpdateStatus(ctx context.Context, id int64, status models.Status) error {
	query := r.db.Rebind(`UPDATE chat_log SET status = ? WHERE id = ?`)
	res, err := r.db.ExecContext(ctx, query, status, id)
	if err != nil {
		return storeErr("update chat log status", err)
	}
	return requireRow(res)
}

func (r *chatLogRepository) SetReference(ctx context.Context, id int64, reference string) error {
	query := r.db.Rebind(`UPDATE chat_log SET reference = ?, status = ? WHERE id = ?`)
	res, err := r.db.ExecContext(ctx, query, reference, models.StatusNew, id)
	if err != nil {
		return storeErr("set chat log reference", err)
	}
	return requireRow(res)
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return storeErr("rows affected", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
