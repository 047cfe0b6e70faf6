package entity

import "time"

type Status string

const (
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
)

// Institution is the administrative body owning one or more sites.
type Institution struct {
	ID          int64     `db:"id" json:"id"`
	Name        string    `db:"name" json:"name"`
	DaneCode    string    `db:"dane_code" json:"daneCode,omitempty"`
	PrincipalID *int64    `db:"principal_id" json:"principalId,omitempty"`
	Status      Status    `db:"status" json:"status"`
	CreatedAt   time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt   time.Time `db:"updated_at" json:"updatedAt"`
}
