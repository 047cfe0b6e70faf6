package repo

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"

	"github.com/ovaphlow/pitchfork/service-staff-records/internal/site/entity"
	"github.com/ovaphlow/pitchfork/service-staff-records/pkg/database"
)

const siteColumns = `id, name, address, phone, status, created_at, updated_at`

// SiteRepo stores sites, the shift vocabulary and the site-shift links.
type SiteRepo struct {
	db *sqlx.DB
}

func NewSiteRepo(db *sqlx.DB) *SiteRepo { return &SiteRepo{db: db} }

func (r *SiteRepo) CreateSite(ctx context.Context, s *entity.Site) error {
	const q = `INSERT INTO sites (id, name, address, phone, status)
		VALUES ($1, $2, $3, $4, $5) RETURNING created_at, updated_at`
	return database.Conn(ctx, r.db).QueryRowxContext(ctx, q, s.ID, s.Name, s.Address, s.Phone, s.Status).
		Scan(&s.CreatedAt, &s.UpdatedAt)
}

func (r *SiteRepo) GetSite(ctx context.Context, id int64) (*entity.Site, error) {
	var s entity.Site
	if err := sqlx.GetContext(ctx, database.Conn(ctx, r.db), &s, `SELECT `+siteColumns+` FROM sites WHERE id=$1`, id); err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *SiteRepo) ListSites(ctx context.Context) ([]entity.Site, error) {
	out := []entity.Site{}
	err := sqlx.SelectContext(ctx, database.Conn(ctx, r.db), &out, `SELECT `+siteColumns+` FROM sites ORDER BY name`)
	return out, err
}

// DeleteSite physically removes a site; links cascade in the schema.
func (r *SiteRepo) DeleteSite(ctx context.Context, id int64) error {
	res, err := database.Conn(ctx, r.db).ExecContext(ctx, `DELETE FROM sites WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (r *SiteRepo) CountActiveAssignments(ctx context.Context, siteID int64) (int, error) {
	var n int
	err := sqlx.GetContext(ctx, database.Conn(ctx, r.db), &n,
		`SELECT COUNT(*) FROM assignments WHERE site_id=$1 AND status='active'`, siteID)
	return n, err
}

func (r *SiteRepo) ListShifts(ctx context.Context) ([]entity.Shift, error) {
	out := []entity.Shift{}
	err := sqlx.SelectContext(ctx, database.Conn(ctx, r.db), &out, `SELECT id, name FROM shifts ORDER BY id`)
	return out, err
}

func (r *SiteRepo) GetShiftByName(ctx context.Context, name entity.ShiftName) (*entity.Shift, error) {
	var s entity.Shift
	if err := sqlx.GetContext(ctx, database.Conn(ctx, r.db), &s, `SELECT id, name FROM shifts WHERE name=$1`, name); err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *SiteRepo) SiteShifts(ctx context.Context, siteID int64) ([]entity.Shift, error) {
	out := []entity.Shift{}
	err := sqlx.SelectContext(ctx, database.Conn(ctx, r.db), &out,
		`SELECT sh.id, sh.name FROM shifts sh JOIN site_shifts ss ON ss.shift_id = sh.id WHERE ss.site_id=$1 ORDER BY sh.id`, siteID)
	return out, err
}

func (r *SiteRepo) HasSiteShift(ctx context.Context, siteID, shiftID int64) (bool, error) {
	var ok bool
	err := sqlx.GetContext(ctx, database.Conn(ctx, r.db), &ok,
		`SELECT EXISTS (SELECT 1 FROM site_shifts WHERE site_id=$1 AND shift_id=$2)`, siteID, shiftID)
	return ok, err
}

func (r *SiteRepo) LinkShift(ctx context.Context, siteID, shiftID int64) error {
	_, err := database.Conn(ctx, r.db).ExecContext(ctx,
		`INSERT INTO site_shifts (site_id, shift_id) VALUES ($1, $2)`, siteID, shiftID)
	return err
}
