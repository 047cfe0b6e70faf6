package site

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"

	"github.com/ovaphlow/pitchfork/service-staff-records/internal/apperr"
	"github.com/ovaphlow/pitchfork/service-staff-records/internal/site/entity"
	"github.com/ovaphlow/pitchfork/service-staff-records/pkg/database"
	"github.com/ovaphlow/pitchfork/service-staff-records/pkg/utilities"
)

type Repository interface {
	CreateSite(ctx context.Context, s *entity.Site) error
	GetSite(ctx context.Context, id int64) (*entity.Site, error)
	ListSites(ctx context.Context) ([]entity.Site, error)
	DeleteSite(ctx context.Context, id int64) error
	CountActiveAssignments(ctx context.Context, siteID int64) (int, error)
	ListShifts(ctx context.Context) ([]entity.Shift, error)
	GetShiftByName(ctx context.Context, name entity.ShiftName) (*entity.Shift, error)
	SiteShifts(ctx context.Context, siteID int64) ([]entity.Shift, error)
	HasSiteShift(ctx context.Context, siteID, shiftID int64) (bool, error)
	LinkShift(ctx context.Context, siteID, shiftID int64) error
}

var (
	ErrSiteNotFound             = apperr.New(apperr.KindNotFound, "site not found")
	ErrSiteInactive             = apperr.New(apperr.KindBadRequest, "site is inactive")
	ErrShiftNotFound            = apperr.New(apperr.KindNotFound, "shift not found")
	ErrSiteHasActiveAssignments = apperr.New(apperr.KindConflict, "site has active assignments")
)

// Service manages sites and their shifts.
type Service struct {
	repo Repository
	tx   database.Transactor
}

func NewService(repo Repository, tx database.Transactor) *Service {
	return &Service{repo: repo, tx: tx}
}

type CreateInput struct {
	Name    string             `json:"name"`
	Address string             `json:"address"`
	Phone   string             `json:"phone,omitempty"`
	Shifts  []entity.ShiftName `json:"shifts,omitempty"`
}

func (in CreateInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Name, validation.Required, validation.Length(2, 150)),
		validation.Field(&in.Address, validation.Length(0, 250)),
		validation.Field(&in.Phone, validation.Length(0, 30)),
		validation.Field(&in.Shifts, validation.By(validShifts)),
	)
}

func validShifts(v interface{}) error {
	names, _ := v.([]entity.ShiftName)
	for _, n := range names {
		if !n.Valid() {
			return fmt.Errorf("%q is not one of morning, afternoon, saturday, night", n)
		}
	}
	return nil
}

// Create stores a site with its shifts as one unit.
func (s *Service) Create(ctx context.Context, in CreateInput) (*entity.SiteDetail, error) {
	var out *entity.SiteDetail
	err := s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		d, _, err := s.Insert(ctx, in)
		out = d
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Insert creates the site and links the requested shifts. It joins the
// transaction carried by ctx and reports how many shift links were made.
func (s *Service) Insert(ctx context.Context, in CreateInput) (*entity.SiteDetail, int, error) {
	site := &entity.Site{
		ID:      utilities.NewID(),
		Name:    strings.TrimSpace(in.Name),
		Address: strings.TrimSpace(in.Address),
		Phone:   strings.TrimSpace(in.Phone),
		Status:  entity.StatusActive,
	}
	if err := s.repo.CreateSite(ctx, site); err != nil {
		return nil, 0, fmt.Errorf("create site: %w", err)
	}
	linked, err := s.LinkShifts(ctx, site.ID, in.Shifts)
	if err != nil {
		return nil, 0, err
	}
	shifts, err := s.repo.SiteShifts(ctx, site.ID)
	if err != nil {
		return nil, 0, fmt.Errorf("load site shifts: %w", err)
	}
	return &entity.SiteDetail{Site: *site, Shifts: shifts}, linked, nil
}

// LinkShifts resolves each shift by name and links it to the site unless
// already linked. An unknown name fails with ErrShiftNotFound.
func (s *Service) LinkShifts(ctx context.Context, siteID int64, names []entity.ShiftName) (int, error) {
	linked := 0
	for _, name := range names {
		shift, err := s.repo.GetShiftByName(ctx, name)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return 0, apperr.Wrap(apperr.KindNotFound, ErrShiftNotFound.Msg+": "+string(name), ErrShiftNotFound)
			}
			return 0, fmt.Errorf("lookup shift %q: %w", name, err)
		}
		exists, err := s.repo.HasSiteShift(ctx, siteID, shift.ID)
		if err != nil {
			return 0, fmt.Errorf("check site shift: %w", err)
		}
		if exists {
			continue
		}
		if err := s.repo.LinkShift(ctx, siteID, shift.ID); err != nil {
			return 0, fmt.Errorf("link shift: %w", err)
		}
		linked++
	}
	return linked, nil
}

// Find returns the bare site row or ErrSiteNotFound.
func (s *Service) Find(ctx context.Context, id int64) (*entity.Site, error) {
	site, err := s.repo.GetSite(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSiteNotFound
		}
		return nil, fmt.Errorf("load site: %w", err)
	}
	return site, nil
}

func (s *Service) Get(ctx context.Context, id int64) (*entity.SiteDetail, error) {
	site, err := s.Find(ctx, id)
	if err != nil {
		return nil, err
	}
	shifts, err := s.repo.SiteShifts(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load site shifts: %w", err)
	}
	return &entity.SiteDetail{Site: *site, Shifts: shifts}, nil
}

func (s *Service) List(ctx context.Context) ([]entity.Site, error) {
	return s.repo.ListSites(ctx)
}

func (s *Service) Shifts(ctx context.Context) ([]entity.Shift, error) {
	return s.repo.ListShifts(ctx)
}

// Delete physically removes a site that no active assignment references.
func (s *Service) Delete(ctx context.Context, id int64) error {
	return s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		if _, err := s.Find(ctx, id); err != nil {
			return err
		}
		n, err := s.repo.CountActiveAssignments(ctx, id)
		if err != nil {
			return fmt.Errorf("count assignments: %w", err)
		}
		if n > 0 {
			return ErrSiteHasActiveAssignments
		}
		if err := s.repo.DeleteSite(ctx, id); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrSiteNotFound
			}
			return fmt.Errorf("delete site: %w", err)
		}
		return nil
	})
}
