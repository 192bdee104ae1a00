package repository

import (
	"context"

	"github.com/churnpredict/churnd/internal/model"
	"github.com/jmoiron/sqlx"
)

// AlertsRepository persists high-risk alerts. Rows are append-only; the only
// mutation is the notifier stamping notified_at.
type AlertsRepository interface {
	Insert(ctx context.Context, a model.Alert) error
	MarkNotifiedBatch(ctx context.Context, ids []string) error
	ListRecent(ctx context.Context, limit int) ([]model.Alert, error)
}

type AlertsRepositoryImpl struct {
	db *sqlx.DB
}

func NewAlertsRepository(db *sqlx.DB) *AlertsRepositoryImpl {
	return &AlertsRepositoryImpl{db: db}
}

var _ AlertsRepository = (*AlertsRepositoryImpl)(nil)

func (r *AlertsRepositoryImpl) Insert(ctx context.Context, a model.Alert) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO alerts (id, customer_id, probability, created_at)
		VALUES (?, ?, ?, NOW())
	`, a.ID, a.CustomerID, a.Probability)
	return err
}

// MarkNotifiedBatch stamps many alerts in a single statement.
func (r *AlertsRepositoryImpl) MarkNotifiedBatch(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	const base = `UPDATE alerts SET notified_at = NOW() WHERE notified_at IS NULL AND id IN (?)`
	query, args, err := sqlx.In(base, ids)
	if err != nil {
		return err
	}
	query = r.db.Rebind(query)

	_, err = r.db.ExecContext(ctx, query, args...)
	return err
}

func (r *AlertsRepositoryImpl) ListRecent(ctx context.Context, limit int) ([]model.Alert, error) {
	if limit <= 0 || limit > 1000 {
		limit = 50
	}
	var as []model.Alert
	err := r.db.SelectContext(ctx, &as, `
		SELECT id, customer_id, probability, created_at, notified_at
		  FROM alerts
		 ORDER BY created_at DESC
		 LIMIT ?
	`, limit)
	return as, err
}
