package act

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-staff-records/internal/act/entity"
	"github.com/ovaphlow/pitchfork/service-staff-records/internal/apperr"
	"github.com/ovaphlow/pitchfork/service-staff-records/internal/institution"
	instentity "github.com/ovaphlow/pitchfork/service-staff-records/internal/institution/entity"
	"github.com/ovaphlow/pitchfork/service-staff-records/internal/metrics"
	"github.com/ovaphlow/pitchfork/service-staff-records/pkg/database"
	"github.com/ovaphlow/pitchfork/service-staff-records/pkg/utilities"
)

const (
	namePrefixFormat = "Resolution I.E. %s-"
	maxSequence      = 9999
	maxAttempts      = 3
)

type Repository interface {
	LockInstitution(ctx context.Context, id int64) (*instentity.Institution, error)
	LastActName(ctx context.Context, institutionID int64, prefix string) (string, error)
	CreateAct(ctx context.Context, a *entity.Act) error
	GetAct(ctx context.Context, id int64) (*entity.Act, error)
	ListActs(ctx context.Context, institutionID int64) ([]entity.Act, error)
	DeleteAct(ctx context.Context, id int64) error
}

var (
	ErrActNotFound        = apperr.New(apperr.KindNotFound, "act not found")
	ErrSequenceExhausted  = apperr.New(apperr.KindConflict, "act numbering for this institution is exhausted")
	ErrSequenceContention = apperr.New(apperr.KindConflict, "could not allocate an act number, try again")
)

type Service struct {
	repo    Repository
	tx      database.Transactor
	logger  *zap.SugaredLogger
	metrics *metrics.Registry
	now     func() time.Time
}

func NewService(repo Repository, tx database.Transactor, logger *zap.SugaredLogger, m *metrics.Registry) *Service {
	return &Service{repo: repo, tx: tx, logger: logger, metrics: m, now: time.Now}
}

type CreateInput struct {
	InstitutionID int64      `json:"institutionId"`
	Description   string     `json:"description,omitempty"`
	IssuedAt      *time.Time `json:"issuedAt,omitempty"`
}

func (in CreateInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.InstitutionID, validation.Required, validation.Min(int64(1))),
		validation.Field(&in.Description, validation.RuneLength(0, 2000)),
	)
}

// NamePrefix is the common prefix of every act name of an institution.
func NamePrefix(institutionName string) string {
	return fmt.Sprintf(namePrefixFormat, institutionName)
}

// NextName derives the name following last, the greatest existing name with
// prefix. An empty last starts the sequence at 0001.
func NextName(prefix, last string) (string, error) {
	seq := 0
	if last != "" {
		suffix, ok := strings.CutPrefix(last, prefix)
		if !ok {
			return "", fmt.Errorf("act name %q lacks prefix %q", last, prefix)
		}
		n, err := strconv.Atoi(suffix)
		if err != nil || n < 0 {
			return "", fmt.Errorf("act name %q has non-numeric suffix", last)
		}
		seq = n
	}
	if seq >= maxSequence {
		return "", ErrSequenceExhausted
	}
	return fmt.Sprintf("%s%04d", prefix, seq+1), nil
}

// Create issues the next act of an institution. The institution row is
// locked while the number is computed; a unique violation on the name
// still triggers a recompute, up to maxAttempts times.
func (s *Service) Create(ctx context.Context, in CreateInput) (*entity.Act, error) {
	issued := s.now()
	if in.IssuedAt != nil {
		issued = *in.IssuedAt
	}

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		a := &entity.Act{
			ID:            utilities.NewID(),
			InstitutionID: in.InstitutionID,
			Description:   strings.TrimSpace(in.Description),
			IssuedAt:      issued,
		}
		err := s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
			inst, err := s.repo.LockInstitution(ctx, in.InstitutionID)
			if err != nil {
				if errors.Is(err, sql.ErrNoRows) {
					return institution.ErrInstitutionNotFound
				}
				return fmt.Errorf("lock institution: %w", err)
			}
			prefix := NamePrefix(inst.Name)
			last, err := s.repo.LastActName(ctx, inst.ID, prefix)
			if err != nil {
				return fmt.Errorf("find last act: %w", err)
			}
			if a.Name, err = NextName(prefix, last); err != nil {
				return err
			}
			return s.repo.CreateAct(ctx, a)
		})
		if err == nil {
			return a, nil
		}
		if !database.IsUniqueViolation(err) {
			return nil, err
		}
		s.metrics.ActRetry()
		s.logger.Warnw("act name collision, retrying", "institution_id", in.InstitutionID, "name", a.Name, "attempt", attempt)
	}
	return nil, ErrSequenceContention
}

func (s *Service) List(ctx context.Context, institutionID int64) ([]entity.Act, error) {
	return s.repo.ListActs(ctx, institutionID)
}

func (s *Service) Get(ctx context.Context, id int64) (*entity.Act, error) {
	a, err := s.repo.GetAct(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrActNotFound
		}
		return nil, fmt.Errorf("load act: %w", err)
	}
	return a, nil
}

func (s *Service) Delete(ctx context.Context, id int64) error {
	if err := s.repo.DeleteAct(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrActNotFound
		}
		return fmt.Errorf("delete act: %w", err)
	}
	return nil
}
