package staff

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"

	"github.com/ovaphlow/pitchfork/service-staff-records/internal/apperr"
	"github.com/ovaphlow/pitchfork/service-staff-records/internal/site"
	siteentity "github.com/ovaphlow/pitchfork/service-staff-records/internal/site/entity"
	"github.com/ovaphlow/pitchfork/service-staff-records/internal/staff/entity"
	"github.com/ovaphlow/pitchfork/service-staff-records/pkg/database"
	"github.com/ovaphlow/pitchfork/service-staff-records/pkg/utilities"
)

type Repository interface {
	CreateEmployee(ctx context.Context, e *entity.Employee) error
	GetEmployee(ctx context.Context, id int64) (*entity.Employee, error)
	FindDuplicateEmployee(ctx context.Context, documentID, email string, activeOnly bool) (*entity.Employee, error)
	ListEmployees(ctx context.Context, f entity.EmployeeFilter) ([]entity.Employee, error)
	UpdateEmployeeStatus(ctx context.Context, id int64, status entity.Status) error
	CreateAcademicRecord(ctx context.Context, a *entity.AcademicRecord) error
	ListAcademicRecords(ctx context.Context, employeeID int64) ([]entity.AcademicRecord, error)
	CreateComment(ctx context.Context, c *entity.Comment) error
	ListComments(ctx context.Context, employeeID int64) ([]entity.Comment, error)
	CreateAssignment(ctx context.Context, a *entity.Assignment) error
	GetActiveAssignment(ctx context.Context, employeeID int64) (*entity.Assignment, error)
	EndAssignment(ctx context.Context, id int64, endDate time.Time) error
	ListAssignments(ctx context.Context, employeeID int64) ([]entity.Assignment, error)
}

// Sites resolves site ids; *site.Service satisfies it.
type Sites interface {
	Find(ctx context.Context, id int64) (*siteentity.Site, error)
}

var (
	ErrEmployeeNotFound       = apperr.New(apperr.KindNotFound, "employee not found")
	ErrDuplicateEmployee      = apperr.New(apperr.KindConflict, "an employee with this document or email already exists")
	ErrNoActiveAssignment     = apperr.New(apperr.KindConflict, "employee has no active assignment")
	ErrActiveAssignmentExists = apperr.New(apperr.KindConflict, "employee already has an active assignment")
	ErrSameSite               = apperr.New(apperr.KindBadRequest, "destination site is the current site")
	ErrAlreadyInactive        = apperr.New(apperr.KindConflict, "employee is already inactive")
	ErrAlreadyActive          = apperr.New(apperr.KindConflict, "employee is already active")
)

// Service runs the employee workflows. Every multi-step operation is one
// transaction: either all its rows persist or none do.
type Service struct {
	repo  Repository
	sites Sites
	tx    database.Transactor
	now   func() time.Time
}

func NewService(repo Repository, sites Sites, tx database.Transactor) *Service {
	return &Service{repo: repo, sites: sites, tx: tx, now: time.Now}
}

type EmployeeInput struct {
	DocumentID string      `json:"documentId"`
	FirstName  string      `json:"firstName"`
	LastName   string      `json:"lastName"`
	Email      string      `json:"email"`
	Phone      string      `json:"phone,omitempty"`
	Role       entity.Role `json:"role"`
}

func (in EmployeeInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.DocumentID, validation.Required, validation.Length(4, 20), is.Alphanumeric),
		validation.Field(&in.FirstName, validation.Required, validation.RuneLength(1, 100)),
		validation.Field(&in.LastName, validation.Required, validation.RuneLength(1, 100)),
		validation.Field(&in.Email, validation.Required, is.Email),
		validation.Field(&in.Phone, validation.Length(0, 30)),
		validation.Field(&in.Role, validation.Required, validation.In(entity.RoleTeacher, entity.RolePrincipal)),
	)
}

func (in EmployeeInput) normalize() EmployeeInput {
	in.DocumentID = strings.TrimSpace(in.DocumentID)
	in.FirstName = strings.TrimSpace(in.FirstName)
	in.LastName = strings.TrimSpace(in.LastName)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.Phone = strings.TrimSpace(in.Phone)
	return in
}

type AcademicInput struct {
	Degree         string `json:"degree"`
	Title          string `json:"title"`
	Institution    string `json:"institution,omitempty"`
	GraduationYear *int   `json:"graduationYear,omitempty"`
}

func (in AcademicInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Degree, validation.Required, validation.RuneLength(1, 100)),
		validation.Field(&in.Title, validation.Required, validation.RuneLength(1, 200)),
		validation.Field(&in.Institution, validation.RuneLength(0, 200)),
		validation.Field(&in.GraduationYear, validation.Min(1950), validation.Max(2100)),
	)
}

type CreateWithSiteInput struct {
	Employee  EmployeeInput  `json:"employee"`
	Academic  *AcademicInput `json:"academic,omitempty"`
	Comment   string         `json:"comment,omitempty"`
	SiteID    int64          `json:"siteId"`
	StartDate *time.Time     `json:"startDate,omitempty"`
	AuthorID  int64          `json:"-"`
}

func (in CreateWithSiteInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Employee),
		validation.Field(&in.Academic),
		validation.Field(&in.Comment, validation.RuneLength(0, 2000)),
		validation.Field(&in.SiteID, validation.Required, validation.Min(int64(1))),
	)
}

// EmployeeDetail is an employee with the records attached to it.
type EmployeeDetail struct {
	Employee    entity.Employee         `json:"employee"`
	Academic    []entity.AcademicRecord `json:"academicRecords"`
	Comments    []entity.Comment        `json:"comments"`
	Assignments []entity.Assignment     `json:"assignments,omitempty"`
	Assignment  *entity.Assignment      `json:"activeAssignment,omitempty"`
	Site        *siteentity.Site        `json:"site,omitempty"`
}

// CreateWithSite registers an employee, optional academic record and
// comment, and assigns the employee to an active site. The site must exist
// and be active. No other employee may share the document id or email.
func (s *Service) CreateWithSite(ctx context.Context, in CreateWithSiteInput) (*EmployeeDetail, error) {
	in.Employee = in.Employee.normalize()
	out := &EmployeeDetail{Academic: []entity.AcademicRecord{}, Comments: []entity.Comment{}}

	err := s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		st, err := s.activeSite(ctx, in.SiteID)
		if err != nil {
			return err
		}

		emp, rec, err := s.Register(ctx, in.Employee, in.Academic, false)
		if err != nil {
			return err
		}
		out.Employee = *emp
		if rec != nil {
			out.Academic = append(out.Academic, *rec)
		}

		if body := strings.TrimSpace(in.Comment); body != "" {
			c := &entity.Comment{ID: utilities.NewID(), EmployeeID: emp.ID, AuthorID: in.AuthorID, Body: body}
			if err := s.repo.CreateComment(ctx, c); err != nil {
				return fmt.Errorf("create comment: %w", err)
			}
			out.Comments = append(out.Comments, *c)
		}

		start := s.today()
		if in.StartDate != nil {
			start = day(*in.StartDate)
		}
		a, err := s.Assign(ctx, emp.ID, st.ID, start)
		if err != nil {
			return err
		}
		out.Assignment = a
		out.Site = st
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Register inserts an employee and optional academic record inside the
// transaction carried by ctx. With activeOnly set only active employees
// count as duplicates.
func (s *Service) Register(ctx context.Context, in EmployeeInput, academic *AcademicInput, activeOnly bool) (*entity.Employee, *entity.AcademicRecord, error) {
	in = in.normalize()
	if _, err := s.repo.FindDuplicateEmployee(ctx, in.DocumentID, in.Email, activeOnly); err == nil {
		return nil, nil, ErrDuplicateEmployee
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, nil, fmt.Errorf("check duplicate employee: %w", err)
	}

	emp := &entity.Employee{
		ID:         utilities.NewID(),
		DocumentID: in.DocumentID,
		FirstName:  in.FirstName,
		LastName:   in.LastName,
		Email:      in.Email,
		Phone:      in.Phone,
		Role:       in.Role,
		Status:     entity.StatusActive,
	}
	if err := s.repo.CreateEmployee(ctx, emp); err != nil {
		if database.IsUniqueViolation(err) {
			return nil, nil, ErrDuplicateEmployee
		}
		return nil, nil, fmt.Errorf("create employee: %w", err)
	}

	if academic == nil {
		return emp, nil, nil
	}
	rec := &entity.AcademicRecord{
		ID:             utilities.NewID(),
		EmployeeID:     emp.ID,
		Degree:         strings.TrimSpace(academic.Degree),
		Title:          strings.TrimSpace(academic.Title),
		Institution:    strings.TrimSpace(academic.Institution),
		GraduationYear: academic.GraduationYear,
	}
	if err := s.repo.CreateAcademicRecord(ctx, rec); err != nil {
		return nil, nil, fmt.Errorf("create academic record: %w", err)
	}
	return emp, rec, nil
}

// activeAssignmentIndex is the partial unique index allowing one active
// assignment per employee.
const activeAssignmentIndex = "uq_assignments_one_active"

// Assign opens an active assignment inside the transaction carried by ctx.
func (s *Service) Assign(ctx context.Context, employeeID, siteID int64, start time.Time) (*entity.Assignment, error) {
	a := &entity.Assignment{
		ID:         utilities.NewID(),
		EmployeeID: employeeID,
		SiteID:     siteID,
		StartDate:  day(start),
		Status:     entity.AssignmentActive,
	}
	if err := s.repo.CreateAssignment(ctx, a); err != nil {
		if database.IsUniqueViolation(err) && database.ConstraintName(err) == activeAssignmentIndex {
			return nil, ErrActiveAssignmentExists
		}
		return nil, fmt.Errorf("create assignment: %w", err)
	}
	return a, nil
}

type TransferInput struct {
	SiteID int64      `json:"siteId"`
	Date   *time.Time `json:"date,omitempty"`
}

func (in TransferInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.SiteID, validation.Required, validation.Min(int64(1))),
	)
}

type TransferResult struct {
	Previous entity.Assignment `json:"previous"`
	Current  entity.Assignment `json:"current"`
}

// Transfer ends the employee's active assignment and opens one at another
// active site on the same date.
func (s *Service) Transfer(ctx context.Context, employeeID int64, in TransferInput) (*TransferResult, error) {
	var out TransferResult
	err := s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		if _, err := s.employee(ctx, employeeID); err != nil {
			return err
		}
		cur, err := s.activeAssignment(ctx, employeeID)
		if err != nil {
			return err
		}
		dst, err := s.activeSite(ctx, in.SiteID)
		if err != nil {
			return err
		}
		if dst.ID == cur.SiteID {
			return ErrSameSite
		}

		date := s.today()
		if in.Date != nil {
			date = day(*in.Date)
		}
		if date.Before(cur.StartDate) {
			return apperr.Validation(map[string]string{"date": "must not precede the current assignment start"})
		}
		if err := s.end(ctx, cur, date); err != nil {
			return err
		}
		next, err := s.Assign(ctx, employeeID, dst.ID, date)
		if err != nil {
			return err
		}
		out.Previous = *cur
		out.Current = *next
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// FinalizeAssignment ends the active assignment without opening another.
func (s *Service) FinalizeAssignment(ctx context.Context, employeeID int64, date *time.Time) (*entity.Assignment, error) {
	var out *entity.Assignment
	err := s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		if _, err := s.employee(ctx, employeeID); err != nil {
			return err
		}
		cur, err := s.activeAssignment(ctx, employeeID)
		if err != nil {
			return err
		}
		end := s.today()
		if date != nil {
			end = day(*date)
		}
		if end.Before(cur.StartDate) {
			return apperr.Validation(map[string]string{"date": "must not precede the current assignment start"})
		}
		if err := s.end(ctx, cur, end); err != nil {
			return err
		}
		out = cur
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Deactivate marks the employee inactive and ends any active assignment.
func (s *Service) Deactivate(ctx context.Context, employeeID int64) (*entity.Employee, error) {
	var out *entity.Employee
	err := s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		emp, err := s.employee(ctx, employeeID)
		if err != nil {
			return err
		}
		if !emp.Active() {
			return ErrAlreadyInactive
		}
		cur, err := s.repo.GetActiveAssignment(ctx, employeeID)
		switch {
		case err == nil:
			if err := s.end(ctx, cur, s.today()); err != nil {
				return err
			}
		case !errors.Is(err, sql.ErrNoRows):
			return fmt.Errorf("load active assignment: %w", err)
		}
		if err := s.repo.UpdateEmployeeStatus(ctx, employeeID, entity.StatusInactive); err != nil {
			return fmt.Errorf("deactivate employee: %w", err)
		}
		emp.Status = entity.StatusInactive
		out = emp
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Reactivate restores an inactive employee. It fails when another active
// employee has taken the document id or email meanwhile.
func (s *Service) Reactivate(ctx context.Context, employeeID int64) (*entity.Employee, error) {
	var out *entity.Employee
	err := s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		emp, err := s.employee(ctx, employeeID)
		if err != nil {
			return err
		}
		if emp.Active() {
			return ErrAlreadyActive
		}
		other, err := s.repo.FindDuplicateEmployee(ctx, emp.DocumentID, emp.Email, true)
		if err == nil && other.ID != emp.ID {
			return ErrDuplicateEmployee
		}
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("check duplicate employee: %w", err)
		}
		if err := s.repo.UpdateEmployeeStatus(ctx, employeeID, entity.StatusActive); err != nil {
			if database.IsUniqueViolation(err) {
				return ErrDuplicateEmployee
			}
			return fmt.Errorf("reactivate employee: %w", err)
		}
		emp.Status = entity.StatusActive
		out = emp
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Get returns the employee with records, assignment history and the
// current site.
func (s *Service) Get(ctx context.Context, employeeID int64) (*EmployeeDetail, error) {
	emp, err := s.employee(ctx, employeeID)
	if err != nil {
		return nil, err
	}
	out := &EmployeeDetail{Employee: *emp}
	if out.Academic, err = s.repo.ListAcademicRecords(ctx, employeeID); err != nil {
		return nil, fmt.Errorf("list academic records: %w", err)
	}
	if out.Comments, err = s.repo.ListComments(ctx, employeeID); err != nil {
		return nil, fmt.Errorf("list comments: %w", err)
	}
	if out.Assignments, err = s.repo.ListAssignments(ctx, employeeID); err != nil {
		return nil, fmt.Errorf("list assignments: %w", err)
	}
	for i := range out.Assignments {
		if out.Assignments[i].Status != entity.AssignmentActive {
			continue
		}
		a := out.Assignments[i]
		out.Assignment = &a
		if st, err := s.sites.Find(ctx, a.SiteID); err == nil {
			out.Site = st
		} else if !errors.Is(err, site.ErrSiteNotFound) {
			return nil, err
		}
		break
	}
	return out, nil
}

func (s *Service) List(ctx context.Context, f entity.EmployeeFilter) ([]entity.Employee, error) {
	if f.Limit <= 0 || f.Limit > 200 {
		f.Limit = 50
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	return s.repo.ListEmployees(ctx, f)
}

func (s *Service) employee(ctx context.Context, id int64) (*entity.Employee, error) {
	emp, err := s.repo.GetEmployee(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrEmployeeNotFound
		}
		return nil, fmt.Errorf("load employee: %w", err)
	}
	return emp, nil
}

func (s *Service) activeAssignment(ctx context.Context, employeeID int64) (*entity.Assignment, error) {
	a, err := s.repo.GetActiveAssignment(ctx, employeeID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNoActiveAssignment
		}
		return nil, fmt.Errorf("load active assignment: %w", err)
	}
	return a, nil
}

func (s *Service) activeSite(ctx context.Context, id int64) (*siteentity.Site, error) {
	st, err := s.sites.Find(ctx, id)
	if err != nil {
		return nil, err
	}
	if !st.Active() {
		return nil, site.ErrSiteInactive
	}
	return st, nil
}

func (s *Service) end(ctx context.Context, a *entity.Assignment, date time.Time) error {
	if !entity.CanTransition(a.Status, entity.AssignmentEnded) {
		return ErrNoActiveAssignment
	}
	if err := s.repo.EndAssignment(ctx, a.ID, date); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNoActiveAssignment
		}
		return fmt.Errorf("end assignment: %w", err)
	}
	a.Status = entity.AssignmentEnded
	a.EndDate = &date
	return nil
}

func (s *Service) today() time.Time { return day(s.now()) }

// day truncates t to its calendar date in UTC; assignment dates carry no
// time of day.
func day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
