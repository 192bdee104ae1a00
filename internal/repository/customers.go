package repository

import (
	"context"
	"database/sql"

	"github.com/churnpredict/churnd/internal/model"
	"github.com/churnpredict/churnd/internal/risk"
	"github.com/jmoiron/sqlx"
)

const customerColumns = `
	id, name, surname, email, phone, address, status, registered_at,
	churn_probability, risk_tier, created_at, updated_at`

// TierCounts is the dashboard aggregate over the customers table.
type TierCounts struct {
	Total          int64   `db:"total"`
	Active         int64   `db:"active"`
	Inactive       int64   `db:"inactive"`
	Low            int64   `db:"low"`
	Medium         int64   `db:"medium"`
	High           int64   `db:"high"`
	AvgProbability float64 `db:"avg_probability"`
}

type CustomersRepository interface {
	GetByID(ctx context.Context, id int64) (*model.Customer, error)
	GetByEmail(ctx context.Context, email string) (*model.Customer, error)
	Insert(ctx context.Context, c model.Customer) (int64, error)
	// UpdateRisk writes the derived (probability, tier) pair in one
	// statement so the two can never be observed out of sync.
	UpdateRisk(ctx context.Context, id int64, probability float64, tier risk.Tier) error
	ListForScan(ctx context.Context, limit int) ([]model.Customer, error)
	ListAll(ctx context.Context) ([]model.Customer, error)
	SearchByName(ctx context.Context, q string, limit int) ([]model.Customer, error)
	Stats(ctx context.Context) (TierCounts, error)
}

type CustomersRepositoryImpl struct {
	db *sqlx.DB
}

func NewCustomersRepository(db *sqlx.DB) *CustomersRepositoryImpl {
	return &CustomersRepositoryImpl{db: db}
}

var _ CustomersRepository = (*CustomersRepositoryImpl)(nil)

func (r *CustomersRepositoryImpl) GetByID(ctx context.Context, id int64) (*model.Customer, error) {
	var c model.Customer
	err := r.db.GetContext(ctx, &c, `
		SELECT `+customerColumns+`
		  FROM customers
		 WHERE id = ? LIMIT 1
	`, id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *CustomersRepositoryImpl) GetByEmail(ctx context.Context, email string) (*model.Customer, error) {
	var c model.Customer
	err := r.db.GetContext(ctx, &c, `
		SELECT `+customerColumns+`
		  FROM customers
		 WHERE email = ? LIMIT 1
	`, email)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// Insert persists one customer and returns the generated id. Import commits
// row-at-a-time on purpose: a later row's failure must not roll back earlier
// inserts.
func (r *CustomersRepositoryImpl) Insert(ctx context.Context, c model.Customer) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO customers
		    (name, surname, email, phone, address, status, registered_at,
		     churn_probability, risk_tier, created_at, updated_at)
		VALUES
		    (?, ?, ?, ?, ?, ?, CURDATE(), ?, ?, NOW(), NOW())
	`, c.Name, c.Surname, c.Email, c.Phone, c.Address, c.Status.String(),
		c.ChurnProbability, c.RiskTier.String(),
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (r *CustomersRepositoryImpl) UpdateRisk(ctx context.Context, id int64, probability float64, tier risk.Tier) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE customers
		   SET churn_probability = ?, risk_tier = ?, updated_at = NOW()
		 WHERE id = ?
	`, probability, tier.String(), id)
	return err
}

// ListForScan returns a bounded batch for the alert scanner.
func (r *CustomersRepositoryImpl) ListForScan(ctx context.Context, limit int) ([]model.Customer, error) {
	if limit <= 0 || limit > 10000 {
		limit = 1000
	}
	var cs []model.Customer
	err := r.db.SelectContext(ctx, &cs, `
		SELECT `+customerColumns+`
		  FROM customers
		 ORDER BY id
		 LIMIT ?
	`, limit)
	return cs, err
}

// ListAll loads the full customer base for training. The customer table is
// operator-scale, not event-scale; training reads it wholesale like the
// original system did.
func (r *CustomersRepositoryImpl) ListAll(ctx context.Context) ([]model.Customer, error) {
	var cs []model.Customer
	err := r.db.SelectContext(ctx, &cs, `SELECT `+customerColumns+` FROM customers ORDER BY id`)
	return cs, err
}

// SearchByName does a fuzzy match over name and surname for the assistant.
func (r *CustomersRepositoryImpl) SearchByName(ctx context.Context, q string, limit int) ([]model.Customer, error) {
	if limit <= 0 || limit > 50 {
		limit = 5
	}
	like := "%" + q + "%"
	var cs []model.Customer
	err := r.db.SelectContext(ctx, &cs, `
		SELECT `+customerColumns+`
		  FROM customers
		 WHERE name LIKE ? OR surname LIKE ? OR CONCAT(name, ' ', surname) LIKE ?
		 ORDER BY surname, name
		 LIMIT ?
	`, like, like, like, limit)
	return cs, err
}

func (r *CustomersRepositoryImpl) Stats(ctx context.Context) (TierCounts, error) {
	var tc TierCounts
	err := r.db.GetContext(ctx, &tc, `
		SELECT COUNT(*)                              AS total,
		       COALESCE(SUM(status = 'active'), 0)   AS active,
		       COALESCE(SUM(status = 'inactive'), 0) AS inactive,
		       COALESCE(SUM(risk_tier = 'Low'), 0)   AS low,
		       COALESCE(SUM(risk_tier = 'Medium'), 0) AS medium,
		       COALESCE(SUM(risk_tier = 'High'), 0)  AS high,
		       COALESCE(AVG(churn_probability), 0)   AS avg_probability
		  FROM customers
	`)
	return tc, err
}
