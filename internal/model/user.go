package model

import "time"

type UserRole string

const (
	RoleAdmin   UserRole = "admin"
	RoleAnalyst UserRole = "analyst"
)

func (r UserRole) String() string { return string(r) }

func (r UserRole) Valid() bool {
	return r == RoleAdmin || r == RoleAnalyst
}

// User is an API consumer: an operator of the CRM authenticated by API key.
type User struct {
	ID        int64     `db:"id"`
	Username  string    `db:"username"`
	FullName  string    `db:"full_name"`
	APIKey    string    `db:"api_key"`
	Role      UserRole  `db:"role"`
	Status    string    `db:"status"` // active|suspended
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}
