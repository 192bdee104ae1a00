package cmd

import (
	"fmt"
	"log"
	"time"

	"github.com/churnpredict/churnd/internal/config"
	"github.com/churnpredict/churnd/internal/db"
	"github.com/churnpredict/churnd/internal/model"
	"github.com/churnpredict/churnd/internal/risk"
	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed the database with demo users and customers",
	RunE: func(cmd *cobra.Command, args []string) error {
		// 1) load config
		cfg, err := config.Load(cfgPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		// 2) connect MySQL
		sqlDB, err := db.NewMySQLConnection(cfg.MySQL.DSN, db.MySQLOpts{
			MaxOpenConns:    cfg.MySQL.MaxOpenConns,
			MaxIdleConns:    cfg.MySQL.MaxIdleConns,
			ConnMaxLifetime: cfg.MySQL.ConnMaxLifetime,
			ConnMaxIdleTime: cfg.MySQL.ConnMaxIdleTime,
			PingTimeout:     cfg.MySQL.PingTimeout,
		})
		if err != nil {
			return fmt.Errorf("mysql connect: %w", err)
		}
		defer sqlDB.Close()

		log.Println(">> Seeding demo users...")
		if err := seedUsers(sqlDB); err != nil {
			return err
		}

		log.Println(">> Seeding demo customers...")
		if err := seedCustomers(sqlDB); err != nil {
			return err
		}

		log.Println(">> Seed completed")
		return nil
	},
}

// seedUsers inserts deterministic demo operators (idempotent upsert on
// api_key).
func seedUsers(dbx *sqlx.DB) error {
	users := []model.User{
		{
			Username: "admin",
			FullName: "Admin Operator",
			APIKey:   "11111111111111111111111111111111",
			Role:     model.RoleAdmin,
			Status:   "active",
		},
		{
			Username: "analyst",
			FullName: "Retention Analyst",
			APIKey:   "22222222222222222222222222222222",
			Role:     model.RoleAnalyst,
			Status:   "active",
		},
		{
			Username: "suspended",
			FullName: "Former Analyst",
			APIKey:   "33333333333333333333333333333333",
			Role:     model.RoleAnalyst,
			Status:   "suspended",
		},
	}

	const q = `
INSERT INTO users
    (username, full_name, api_key, role, status, created_at, updated_at)
VALUES
    (?, ?, ?, ?, ?, ?, ?)
ON DUPLICATE KEY UPDATE
    username   = VALUES(username),
    full_name  = VALUES(full_name),
    role       = VALUES(role),
    status     = VALUES(status),
    updated_at = VALUES(updated_at)
`
	tx, err := dbx.Beginx()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	now := time.Now()
	for _, u := range users {
		if _, err := tx.Exec(q, u.Username, u.FullName, u.APIKey, u.Role.String(), u.Status, now, now); err != nil {
			return fmt.Errorf("insert user %q: %w", u.Username, err)
		}
	}

	return tx.Commit()
}

// seedCustomers inserts a small deterministic base with both labels present,
// so `churnd train` works right after seeding (idempotent upsert on email).
func seedCustomers(dbx *sqlx.DB) error {
	type row struct {
		name, surname, email, phone string
		status                      model.CustomerStatus
		probability                 float64
	}

	rows := []row{
		{"Ana", "Gomez", "ana.gomez@example.com", "", model.StatusInactive, 0.91},
		{"Luis", "Perez", "luis.perez@example.com", "600111222", model.StatusActive, 0.12},
		{"Marta", "Lopez", "marta.lopez@example.com", "600333444", model.StatusActive, 0.08},
		{"Carlos", "Diaz", "carlos.diaz@example.com", "", model.StatusInactive, 0.87},
		{"Lucia", "Sanz", "lucia.sanz@example.com", "600555666", model.StatusActive, 0.45},
		{"Pedro", "Mora", "pedro.mora@example.com", "", model.StatusInactive, 0.72},
		{"Elena", "Vega", "elena.vega@example.com", "600777888", model.StatusActive, 0.21},
		{"Jorge", "Rey", "jorge.rey@example.com", "600999000", model.StatusActive, 0.35},
	}

	const q = `
INSERT INTO customers
    (name, surname, email, phone, address, status, registered_at,
     churn_probability, risk_tier, created_at, updated_at)
VALUES
    (?, ?, ?, ?, '', ?, CURDATE(), ?, ?, NOW(), NOW())
ON DUPLICATE KEY UPDATE
    name              = VALUES(name),
    surname           = VALUES(surname),
    phone             = VALUES(phone),
    status            = VALUES(status),
    churn_probability = VALUES(churn_probability),
    risk_tier         = VALUES(risk_tier),
    updated_at        = VALUES(updated_at)
`
	tx, err := dbx.Beginx()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	for _, r := range rows {
		tier := risk.TierOf(r.probability)
		if _, err := tx.Exec(q, r.name, r.surname, r.email, r.phone,
			r.status.String(), r.probability, tier.String()); err != nil {
			return fmt.Errorf("insert customer %q: %w", r.email, err)
		}
	}

	return tx.Commit()
}
