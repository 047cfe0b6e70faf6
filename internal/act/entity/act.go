package entity

import "time"

// Act is an administrative resolution issued for an institution. Name
// embeds the per-institution consecutive number.
type Act struct {
	ID            int64     `db:"id" json:"id"`
	InstitutionID int64     `db:"institution_id" json:"institutionId"`
	Name          string    `db:"name" json:"name"`
	Description   string    `db:"description" json:"description,omitempty"`
	IssuedAt      time.Time `db:"issued_at" json:"issuedAt"`
	CreatedAt     time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt     time.Time `db:"updated_at" json:"updatedAt"`
}
