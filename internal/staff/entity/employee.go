package entity

import "time"

// Role is the teaching position held by an employee.
type Role string

const (
	RoleTeacher   Role = "teacher"
	RolePrincipal Role = "principal"
)

func (r Role) Valid() bool {
	switch r {
	case RoleTeacher, RolePrincipal:
		return true
	default:
		return false
	}
}

type Status string

const (
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
)

type Employee struct {
	ID         int64     `db:"id" json:"id"`
	DocumentID string    `db:"document_id" json:"documentId"`
	FirstName  string    `db:"first_name" json:"firstName"`
	LastName   string    `db:"last_name" json:"lastName"`
	Email      string    `db:"email" json:"email"`
	Phone      string    `db:"phone" json:"phone,omitempty"`
	Role       Role      `db:"role" json:"role"`
	Status     Status    `db:"status" json:"status"`
	CreatedAt  time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt  time.Time `db:"updated_at" json:"updatedAt"`
}

func (e *Employee) Active() bool { return e.Status == StatusActive }

// AcademicRecord holds an employee's academic credentials.
type AcademicRecord struct {
	ID             int64     `db:"id" json:"id"`
	EmployeeID     int64     `db:"employee_id" json:"employeeId"`
	Degree         string    `db:"degree" json:"degree"`
	Title          string    `db:"title" json:"title"`
	Institution    string    `db:"institution" json:"institution"`
	GraduationYear *int      `db:"graduation_year" json:"graduationYear,omitempty"`
	CreatedAt      time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt      time.Time `db:"updated_at" json:"updatedAt"`
}

// Comment is a free-text observation left on an employee record.
type Comment struct {
	ID         int64     `db:"id" json:"id"`
	EmployeeID int64     `db:"employee_id" json:"employeeId"`
	AuthorID   int64     `db:"author_id" json:"authorId"`
	Body       string    `db:"body" json:"body"`
	CreatedAt  time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt  time.Time `db:"updated_at" json:"updatedAt"`
}

type EmployeeFilter struct {
	Role   Role
	Status Status
	SiteID int64
	Limit  int
	Offset int
}
