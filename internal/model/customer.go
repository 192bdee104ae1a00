package model

import (
	"strings"
	"time"

	"github.com/churnpredict/churnd/internal/risk"
)

type CustomerStatus string

const (
	StatusActive   CustomerStatus = "active"
	StatusInactive CustomerStatus = "inactive"
)

func (s CustomerStatus) String() string { return string(s) }

func (s CustomerStatus) Valid() bool {
	return s == StatusActive || s == StatusInactive
}

// ParseCustomerStatus normalizes input; empty => active.
// Returns (value, true) if valid; otherwise (active, false).
// Spanish values from the import format map onto the canonical ones.
func ParseCustomerStatus(s string) (CustomerStatus, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "active", "activo":
		return StatusActive, true
	case "inactive", "inactivo":
		return StatusInactive, true
	default:
		return StatusActive, false
	}
}

// Customer is the DB entity persisted in the customers table.
//
// ChurnProbability and RiskTier are derived fields: RiskTier is always
// risk.TierOf(ChurnProbability) and both are written together, only by the
// risk pipeline.
type Customer struct {
	ID               int64          `db:"id"`
	Name             string         `db:"name"`
	Surname          string         `db:"surname"`
	Email            string         `db:"email"`
	Phone            string         `db:"phone"`
	Address          string         `db:"address"`
	Status           CustomerStatus `db:"status"`
	RegisteredAt     time.Time      `db:"registered_at"`
	ChurnProbability float64        `db:"churn_probability"`
	RiskTier         risk.Tier      `db:"risk_tier"`
	CreatedAt        time.Time      `db:"created_at"`
	UpdatedAt        time.Time      `db:"updated_at"`
}

// HasPhone reports whether the customer has a usable contact phone.
func (c Customer) HasPhone() bool {
	return strings.TrimSpace(c.Phone) != ""
}

// Churned is the training label: a customer counts as churned once inactive.
func (c Customer) Churned() bool {
	return c.Status == StatusInactive
}

func (c Customer) FullName() string {
	return strings.TrimSpace(c.Name + " " + c.Surname)
}
