package entity

import "time"

type AssignmentStatus string

const (
	AssignmentActive AssignmentStatus = "active"
	AssignmentEnded  AssignmentStatus = "ended"
)

// Assignment binds an employee to a site. At most one assignment per
// employee is active at a time.
type Assignment struct {
	ID         int64            `db:"id" json:"id"`
	EmployeeID int64            `db:"employee_id" json:"employeeId"`
	SiteID     int64            `db:"site_id" json:"siteId"`
	StartDate  time.Time        `db:"start_date" json:"startDate"`
	EndDate    *time.Time       `db:"end_date" json:"endDate,omitempty"`
	Status     AssignmentStatus `db:"status" json:"status"`
	CreatedAt  time.Time        `db:"created_at" json:"createdAt"`
	UpdatedAt  time.Time        `db:"updated_at" json:"updatedAt"`
}

// CanTransition reports whether an assignment may move from one status to
// another. Ended is terminal.
func CanTransition(from, to AssignmentStatus) bool {
	switch from {
	case AssignmentActive:
		return to == AssignmentEnded
	case AssignmentEnded:
		return false
	default:
		return false
	}
}
