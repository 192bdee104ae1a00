package model

import "time"

// Alert is raised by the scanner when a customer's churn probability crosses
// the high-risk threshold. Rows are append-only; NotifiedAt is set once the
// notifier worker has delivered the alert downstream.
type Alert struct {
	ID          string     `db:"id"` // ULID
	CustomerID  int64      `db:"customer_id"`
	Probability float64    `db:"probability"`
	CreatedAt   time.Time  `db:"created_at"`
	NotifiedAt  *time.Time `db:"notified_at"`
}

// AlertEvent is the payload published to Kafka for every raised alert.
type AlertEvent struct {
	ID          string  `json:"id"` // alert ULID
	CustomerID  int64   `json:"customer_id"`
	Customer    string  `json:"customer"`
	Probability float64 `json:"probability"`
}
