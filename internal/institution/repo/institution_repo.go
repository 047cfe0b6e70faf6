package repo

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/ovaphlow/pitchfork/service-staff-records/internal/institution/entity"
	siteentity "github.com/ovaphlow/pitchfork/service-staff-records/internal/site/entity"
	"github.com/ovaphlow/pitchfork/service-staff-records/pkg/database"
)

const institutionColumns = `id, name, dane_code, principal_id, status, created_at, updated_at`

type InstitutionRepo struct {
	db *sqlx.DB
}

func NewInstitutionRepo(db *sqlx.DB) *InstitutionRepo { return &InstitutionRepo{db: db} }

func (r *InstitutionRepo) CreateInstitution(ctx context.Context, in *entity.Institution) error {
	const q = `INSERT INTO institutions (id, name, dane_code, principal_id, status)
		VALUES ($1, $2, $3, $4, $5) RETURNING created_at, updated_at`
	return database.Conn(ctx, r.db).QueryRowxContext(ctx, q, in.ID, in.Name, in.DaneCode, in.PrincipalID, in.Status).
		Scan(&in.CreatedAt, &in.UpdatedAt)
}

func (r *InstitutionRepo) GetInstitution(ctx context.Context, id int64) (*entity.Institution, error) {
	var in entity.Institution
	if err := sqlx.GetContext(ctx, database.Conn(ctx, r.db), &in, `SELECT `+institutionColumns+` FROM institutions WHERE id=$1`, id); err != nil {
		return nil, err
	}
	return &in, nil
}

func (r *InstitutionRepo) ListInstitutions(ctx context.Context) ([]entity.Institution, error) {
	out := []entity.Institution{}
	err := sqlx.SelectContext(ctx, database.Conn(ctx, r.db), &out, `SELECT `+institutionColumns+` FROM institutions ORDER BY name`)
	return out, err
}

func (r *InstitutionRepo) HasSite(ctx context.Context, institutionID, siteID int64) (bool, error) {
	var ok bool
	err := sqlx.GetContext(ctx, database.Conn(ctx, r.db), &ok,
		`SELECT EXISTS (SELECT 1 FROM institution_sites WHERE institution_id=$1 AND site_id=$2)`, institutionID, siteID)
	return ok, err
}

func (r *InstitutionRepo) LinkSite(ctx context.Context, institutionID, siteID int64) error {
	_, err := database.Conn(ctx, r.db).ExecContext(ctx,
		`INSERT INTO institution_sites (institution_id, site_id) VALUES ($1, $2)`, institutionID, siteID)
	return err
}

func (r *InstitutionRepo) InstitutionSites(ctx context.Context, institutionID int64) ([]siteentity.Site, error) {
	out := []siteentity.Site{}
	err := sqlx.SelectContext(ctx, database.Conn(ctx, r.db), &out,
		`SELECT s.id, s.name, s.address, s.phone, s.status, s.created_at, s.updated_at
		FROM sites s JOIN institution_sites l ON l.site_id = s.id
		WHERE l.institution_id=$1 ORDER BY s.name`, institutionID)
	return out, err
}
