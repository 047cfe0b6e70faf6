package entity

import "time"

type Status string

const (
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
)

// Site is a physical campus where staff are assigned.
type Site struct {
	ID        int64     `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Address   string    `db:"address" json:"address"`
	Phone     string    `db:"phone" json:"phone,omitempty"`
	Status    Status    `db:"status" json:"status"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

func (s *Site) Active() bool { return s.Status == StatusActive }

// ShiftName is the fixed vocabulary of school shifts.
type ShiftName string

const (
	ShiftMorning   ShiftName = "morning"
	ShiftAfternoon ShiftName = "afternoon"
	ShiftSaturday  ShiftName = "saturday"
	ShiftNight     ShiftName = "night"
)

// ShiftNames lists the vocabulary in display order.
var ShiftNames = []ShiftName{ShiftMorning, ShiftAfternoon, ShiftSaturday, ShiftNight}

func (n ShiftName) Valid() bool {
	switch n {
	case ShiftMorning, ShiftAfternoon, ShiftSaturday, ShiftNight:
		return true
	default:
		return false
	}
}

type Shift struct {
	ID   int64     `db:"id" json:"id"`
	Name ShiftName `db:"name" json:"name"`
}

// SiteDetail is a site together with its linked shifts.
type SiteDetail struct {
	Site
	Shifts []Shift `json:"shifts"`
}
