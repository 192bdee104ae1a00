package repository

import (
	"context"

	"github.com/churnpredict/churnd/internal/model"
	"github.com/jmoiron/sqlx"
)

// CHPredictionsRepository is the append-only prediction history in ClickHouse.
type CHPredictionsRepository interface {
	Insert(ctx context.Context, p model.Prediction) error
	List(ctx context.Context, customerID int64, limit, offset int) ([]model.Prediction, error)
}

type chPredictionsRepository struct {
	ch *sqlx.DB // ClickHouse connection
}

func NewCHPredictionsRepository(ch *sqlx.DB) CHPredictionsRepository {
	return &chPredictionsRepository{ch: ch}
}

func (r *chPredictionsRepository) Insert(ctx context.Context, p model.Prediction) error {
	_, err := r.ch.ExecContext(ctx, `
		INSERT INTO churnd.predictions (id, customer_id, probability, tier, source, created_at)
		VALUES (?, ?, ?, ?, ?, now())
	`, p.ID, p.CustomerID, p.Probability, p.Tier.String(), p.Source.String())
	return err
}

func (r *chPredictionsRepository) List(ctx context.Context, customerID int64, limit, offset int) ([]model.Prediction, error) {
	if limit <= 0 || limit > 1000 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	q := `
		SELECT id, customer_id, probability, tier, source, created_at
		FROM churnd.predictions
	`
	args := []any{}

	if customerID > 0 {
		q += " WHERE customer_id = ?"
		args = append(args, customerID)
	}

	q += " ORDER BY created_at DESC LIMIT ? OFFSET ?"
	args = append(args, limit, offset)

	var rows []model.Prediction
	if err := r.ch.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, err
	}
	return rows, nil
}
