package model

import (
	"time"

	"github.com/churnpredict/churnd/internal/risk"
)

type PredictionSource string

const (
	SourceOnDemand PredictionSource = "ondemand"
	SourceScan     PredictionSource = "scan"
)

func (s PredictionSource) String() string { return string(s) }

// Prediction is one scored inference, appended to the ClickHouse history
// table for reporting. The authoritative (probability, tier) pair lives on
// the customer row; this is an audit trail.
type Prediction struct {
	ID          string           `db:"id"          json:"id"` // ULID
	CustomerID  int64            `db:"customer_id" json:"customer_id"`
	Probability float64          `db:"probability" json:"probability"`
	Tier        risk.Tier        `db:"tier"        json:"tier"`
	Source      PredictionSource `db:"source"      json:"source"`
	CreatedAt   time.Time        `db:"created_at"  json:"created_at"`
}
