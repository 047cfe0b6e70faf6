package institution

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"

	"github.com/ovaphlow/pitchfork/service-staff-records/internal/apperr"
	"github.com/ovaphlow/pitchfork/service-staff-records/internal/institution/entity"
	"github.com/ovaphlow/pitchfork/service-staff-records/internal/site"
	siteentity "github.com/ovaphlow/pitchfork/service-staff-records/internal/site/entity"
	"github.com/ovaphlow/pitchfork/service-staff-records/internal/staff"
	staffentity "github.com/ovaphlow/pitchfork/service-staff-records/internal/staff/entity"
	"github.com/ovaphlow/pitchfork/service-staff-records/pkg/database"
	"github.com/ovaphlow/pitchfork/service-staff-records/pkg/utilities"
)

type Repository interface {
	CreateInstitution(ctx context.Context, in *entity.Institution) error
	GetInstitution(ctx context.Context, id int64) (*entity.Institution, error)
	ListInstitutions(ctx context.Context) ([]entity.Institution, error)
	HasSite(ctx context.Context, institutionID, siteID int64) (bool, error)
	LinkSite(ctx context.Context, institutionID, siteID int64) error
	InstitutionSites(ctx context.Context, institutionID int64) ([]siteentity.Site, error)
}

// Staff is the part of *staff.Service used to register the principal.
type Staff interface {
	Register(ctx context.Context, in staff.EmployeeInput, academic *staff.AcademicInput, activeOnly bool) (*staffentity.Employee, *staffentity.AcademicRecord, error)
	Assign(ctx context.Context, employeeID, siteID int64, start time.Time) (*staffentity.Assignment, error)
}

// Sites is the part of *site.Service used to create and attach sites.
type Sites interface {
	Insert(ctx context.Context, in site.CreateInput) (*siteentity.SiteDetail, int, error)
	Find(ctx context.Context, id int64) (*siteentity.Site, error)
}

var (
	ErrInstitutionNotFound  = apperr.New(apperr.KindNotFound, "institution not found")
	ErrDuplicateInstitution = apperr.New(apperr.KindConflict, "an institution with this name already exists")
	ErrNotPrincipal         = apperr.New(apperr.KindBadRequest, "employee role must be principal")
)

type Service struct {
	repo  Repository
	staff Staff
	sites Sites
	tx    database.Transactor
	now   func() time.Time
}

func NewService(repo Repository, employees Staff, sites Sites, tx database.Transactor) *Service {
	return &Service{repo: repo, staff: employees, sites: sites, tx: tx, now: time.Now}
}

type InstitutionInput struct {
	Name     string `json:"name"`
	DaneCode string `json:"daneCode,omitempty"`
}

func (in InstitutionInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Name, validation.Required, validation.RuneLength(2, 150)),
		validation.Field(&in.DaneCode, validation.Length(0, 20)),
	)
}

type RectorCompleteInput struct {
	Employee        staff.EmployeeInput  `json:"employee"`
	Academic        *staff.AcademicInput `json:"academic,omitempty"`
	Institution     InstitutionInput     `json:"institution"`
	Sites           []site.CreateInput   `json:"sites,omitempty"`
	ExistingSiteIDs []int64              `json:"existingSiteIds,omitempty"`
	StartDate       *time.Time           `json:"startDate,omitempty"`
}

func (in RectorCompleteInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Employee),
		validation.Field(&in.Academic),
		validation.Field(&in.Institution),
		validation.Field(&in.Sites, validation.By(func(interface{}) error {
			if len(in.Sites)+len(in.ExistingSiteIDs) == 0 {
				return errors.New("at least one new or existing site is required")
			}
			return nil
		})),
		validation.Field(&in.ExistingSiteIDs, validation.By(func(interface{}) error {
			for _, id := range in.ExistingSiteIDs {
				if id <= 0 {
					return errors.New("ids must be positive")
				}
			}
			return nil
		})),
	)
}

type RectorSummary struct {
	SitesCreated       int `json:"sitesCreated"`
	SitesAttached      int `json:"sitesAttached"`
	AssignmentsCreated int `json:"assignmentsCreated"`
	ShiftsLinked       int `json:"shiftsLinked"`
}

type RectorResult struct {
	Principal   staffentity.Employee        `json:"principal"`
	Academic    *staffentity.AcademicRecord `json:"academicRecord,omitempty"`
	Institution entity.Institution          `json:"institution"`
	Sites       []siteentity.SiteDetail     `json:"sites"`
	Assignment  *staffentity.Assignment     `json:"assignment,omitempty"`
	Summary     RectorSummary               `json:"summary"`
}

// CreateRectorComplete registers a principal, the institution they lead
// and its sites in one transaction. New sites come with their shifts;
// existing sites are attached by id and must be active. The principal
// holds a single active assignment, at the first site processed.
func (s *Service) CreateRectorComplete(ctx context.Context, in RectorCompleteInput) (*RectorResult, error) {
	if in.Employee.Role != staffentity.RolePrincipal {
		return nil, ErrNotPrincipal
	}
	start := s.now()
	if in.StartDate != nil {
		start = *in.StartDate
	}

	out := &RectorResult{Sites: []siteentity.SiteDetail{}}
	err := s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		emp, rec, err := s.staff.Register(ctx, in.Employee, in.Academic, true)
		if err != nil {
			return err
		}
		out.Principal = *emp
		out.Academic = rec

		inst := &entity.Institution{
			ID:          utilities.NewID(),
			Name:        strings.TrimSpace(in.Institution.Name),
			DaneCode:    strings.TrimSpace(in.Institution.DaneCode),
			PrincipalID: &emp.ID,
			Status:      entity.StatusActive,
		}
		if err := s.repo.CreateInstitution(ctx, inst); err != nil {
			if database.IsUniqueViolation(err) {
				return ErrDuplicateInstitution
			}
			return fmt.Errorf("create institution: %w", err)
		}
		out.Institution = *inst

		assign := func(siteID int64) error {
			if out.Assignment != nil {
				return nil
			}
			a, err := s.staff.Assign(ctx, emp.ID, siteID, start)
			if err != nil {
				return err
			}
			out.Assignment = a
			out.Summary.AssignmentsCreated++
			return nil
		}

		for _, si := range in.Sites {
			d, linked, err := s.sites.Insert(ctx, si)
			if err != nil {
				return err
			}
			if err := s.link(ctx, inst.ID, d.ID); err != nil {
				return err
			}
			if err := assign(d.ID); err != nil {
				return err
			}
			out.Sites = append(out.Sites, *d)
			out.Summary.SitesCreated++
			out.Summary.ShiftsLinked += linked
		}

		seen := map[int64]bool{}
		for _, id := range in.ExistingSiteIDs {
			if seen[id] {
				continue
			}
			seen[id] = true
			st, err := s.sites.Find(ctx, id)
			if err != nil {
				return err
			}
			if !st.Active() {
				return site.ErrSiteInactive
			}
			if err := s.link(ctx, inst.ID, st.ID); err != nil {
				return err
			}
			if err := assign(st.ID); err != nil {
				return err
			}
			out.Sites = append(out.Sites, siteentity.SiteDetail{Site: *st, Shifts: []siteentity.Shift{}})
			out.Summary.SitesAttached++
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Service) link(ctx context.Context, institutionID, siteID int64) error {
	linked, err := s.repo.HasSite(ctx, institutionID, siteID)
	if err != nil {
		return fmt.Errorf("check institution site: %w", err)
	}
	if linked {
		return nil
	}
	if err := s.repo.LinkSite(ctx, institutionID, siteID); err != nil {
		return fmt.Errorf("link institution site: %w", err)
	}
	return nil
}

type InstitutionDetail struct {
	entity.Institution
	Sites []siteentity.Site `json:"sites"`
}

func (s *Service) Get(ctx context.Context, id int64) (*InstitutionDetail, error) {
	inst, err := s.repo.GetInstitution(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrInstitutionNotFound
		}
		return nil, fmt.Errorf("load institution: %w", err)
	}
	sites, err := s.repo.InstitutionSites(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load institution sites: %w", err)
	}
	return &InstitutionDetail{Institution: *inst, Sites: sites}, nil
}

func (s *Service) List(ctx context.Context) ([]entity.Institution, error) {
	return s.repo.ListInstitutions(ctx)
}
