package repo

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/ovaphlow/pitchfork/service-staff-records/internal/staff/entity"
	"github.com/ovaphlow/pitchfork/service-staff-records/pkg/database"
)

const (
	employeeColumns   = `id, document_id, first_name, last_name, email, phone, role, status, created_at, updated_at`
	academicColumns   = `id, employee_id, degree, title, institution, graduation_year, created_at, updated_at`
	commentColumns    = `id, employee_id, author_id, body, created_at, updated_at`
	assignmentColumns = `id, employee_id, site_id, start_date, end_date, status, created_at, updated_at`
)

// StaffRepo covers employees and the records hanging off them.
type StaffRepo struct {
	db *sqlx.DB
}

func NewStaffRepo(db *sqlx.DB) *StaffRepo { return &StaffRepo{db: db} }

func (r *StaffRepo) CreateEmployee(ctx context.Context, e *entity.Employee) error {
	const q = `INSERT INTO employees (id, document_id, first_name, last_name, email, phone, role, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8) RETURNING created_at, updated_at`
	return database.Conn(ctx, r.db).QueryRowxContext(ctx, q,
		e.ID, e.DocumentID, e.FirstName, e.LastName, e.Email, e.Phone, e.Role, e.Status).
		Scan(&e.CreatedAt, &e.UpdatedAt)
}

func (r *StaffRepo) GetEmployee(ctx context.Context, id int64) (*entity.Employee, error) {
	var e entity.Employee
	if err := sqlx.GetContext(ctx, database.Conn(ctx, r.db), &e, `SELECT `+employeeColumns+` FROM employees WHERE id=$1`, id); err != nil {
		return nil, err
	}
	return &e, nil
}

// FindDuplicateEmployee returns any employee sharing the document id or the
// email, optionally restricted to active ones. sql.ErrNoRows means none.
func (r *StaffRepo) FindDuplicateEmployee(ctx context.Context, documentID, email string, activeOnly bool) (*entity.Employee, error) {
	const q = `SELECT ` + employeeColumns + ` FROM employees
		WHERE (document_id=$1 OR lower(email)=lower($2)) AND (NOT $3 OR status='active')
		ORDER BY created_at LIMIT 1`
	var e entity.Employee
	if err := sqlx.GetContext(ctx, database.Conn(ctx, r.db), &e, q, documentID, email, activeOnly); err != nil {
		return nil, err
	}
	return &e, nil
}

func (r *StaffRepo) ListEmployees(ctx context.Context, f entity.EmployeeFilter) ([]entity.Employee, error) {
	var (
		where []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	if f.Role != "" {
		where = append(where, "e.role="+arg(f.Role))
	}
	if f.Status != "" {
		where = append(where, "e.status="+arg(f.Status))
	}
	if f.SiteID > 0 {
		where = append(where, "EXISTS (SELECT 1 FROM assignments a WHERE a.employee_id=e.id AND a.status='active' AND a.site_id="+arg(f.SiteID)+")")
	}
	q := `SELECT ` + prefixed("e.", employeeColumns) + ` FROM employees e`
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY e.last_name, e.first_name"
	if f.Limit > 0 {
		q += " LIMIT " + arg(f.Limit)
	}
	if f.Offset > 0 {
		q += " OFFSET " + arg(f.Offset)
	}
	out := []entity.Employee{}
	err := sqlx.SelectContext(ctx, database.Conn(ctx, r.db), &out, q, args...)
	return out, err
}

func (r *StaffRepo) UpdateEmployeeStatus(ctx context.Context, id int64, status entity.Status) error {
	res, err := database.Conn(ctx, r.db).ExecContext(ctx,
		`UPDATE employees SET status=$2, updated_at=NOW() WHERE id=$1`, id, status)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (r *StaffRepo) CreateAcademicRecord(ctx context.Context, a *entity.AcademicRecord) error {
	const q = `INSERT INTO academic_records (id, employee_id, degree, title, institution, graduation_year)
		VALUES ($1, $2, $3, $4, $5, $6) RETURNING created_at, updated_at`
	return database.Conn(ctx, r.db).QueryRowxContext(ctx, q,
		a.ID, a.EmployeeID, a.Degree, a.Title, a.Institution, a.GraduationYear).
		Scan(&a.CreatedAt, &a.UpdatedAt)
}

func (r *StaffRepo) ListAcademicRecords(ctx context.Context, employeeID int64) ([]entity.AcademicRecord, error) {
	out := []entity.AcademicRecord{}
	err := sqlx.SelectContext(ctx, database.Conn(ctx, r.db), &out,
		`SELECT `+academicColumns+` FROM academic_records WHERE employee_id=$1 ORDER BY created_at`, employeeID)
	return out, err
}

func (r *StaffRepo) CreateComment(ctx context.Context, c *entity.Comment) error {
	const q = `INSERT INTO comments (id, employee_id, author_id, body)
		VALUES ($1, $2, $3, $4) RETURNING created_at, updated_at`
	return database.Conn(ctx, r.db).QueryRowxContext(ctx, q, c.ID, c.EmployeeID, c.AuthorID, c.Body).
		Scan(&c.CreatedAt, &c.UpdatedAt)
}

func (r *StaffRepo) ListComments(ctx context.Context, employeeID int64) ([]entity.Comment, error) {
	out := []entity.Comment{}
	err := sqlx.SelectContext(ctx, database.Conn(ctx, r.db), &out,
		`SELECT `+commentColumns+` FROM comments WHERE employee_id=$1 ORDER BY created_at`, employeeID)
	return out, err
}

func (r *StaffRepo) CreateAssignment(ctx context.Context, a *entity.Assignment) error {
	const q = `INSERT INTO assignments (id, employee_id, site_id, start_date, end_date, status)
		VALUES ($1, $2, $3, $4, $5, $6) RETURNING created_at, updated_at`
	return database.Conn(ctx, r.db).QueryRowxContext(ctx, q,
		a.ID, a.EmployeeID, a.SiteID, a.StartDate, a.EndDate, a.Status).
		Scan(&a.CreatedAt, &a.UpdatedAt)
}

// GetActiveAssignment locks and returns the employee's active assignment.
func (r *StaffRepo) GetActiveAssignment(ctx context.Context, employeeID int64) (*entity.Assignment, error) {
	var a entity.Assignment
	q := `SELECT ` + assignmentColumns + ` FROM assignments WHERE employee_id=$1 AND status='active'`
	if _, ok := database.TxFrom(ctx); ok {
		q += ` FOR UPDATE`
	}
	if err := sqlx.GetContext(ctx, database.Conn(ctx, r.db), &a, q, employeeID); err != nil {
		return nil, err
	}
	return &a, nil
}

// EndAssignment closes an active assignment. sql.ErrNoRows means it was
// not active any more.
func (r *StaffRepo) EndAssignment(ctx context.Context, id int64, endDate time.Time) error {
	res, err := database.Conn(ctx, r.db).ExecContext(ctx,
		`UPDATE assignments SET status='ended', end_date=$2, updated_at=NOW() WHERE id=$1 AND status='active'`, id, endDate)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (r *StaffRepo) ListAssignments(ctx context.Context, employeeID int64) ([]entity.Assignment, error) {
	out := []entity.Assignment{}
	err := sqlx.SelectContext(ctx, database.Conn(ctx, r.db), &out,
		`SELECT `+assignmentColumns+` FROM assignments WHERE employee_id=$1 ORDER BY start_date DESC, created_at DESC`, employeeID)
	return out, err
}

func prefixed(p, cols string) string {
	parts := strings.Split(cols, ", ")
	for i := range parts {
		parts[i] = p + parts[i]
	}
	return strings.Join(parts, ", ")
}
