package repo

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"github.com/ovaphlow/pitchfork/service-staff-records/internal/act/entity"
	instentity "github.com/ovaphlow/pitchfork/service-staff-records/internal/institution/entity"
	"github.com/ovaphlow/pitchfork/service-staff-records/pkg/database"
)

const actColumns = `id, institution_id, name, description, issued_at, created_at, updated_at`

type ActRepo struct {
	db *sqlx.DB
}

func NewActRepo(db *sqlx.DB) *ActRepo { return &ActRepo{db: db} }

// LockInstitution loads the institution row with FOR UPDATE so concurrent
// act numbering for it is serialized until the transaction ends.
func (r *ActRepo) LockInstitution(ctx context.Context, id int64) (*instentity.Institution, error) {
	var in instentity.Institution
	const q = `SELECT id, name, dane_code, principal_id, status, created_at, updated_at
		FROM institutions WHERE id=$1 FOR UPDATE`
	if err := sqlx.GetContext(ctx, database.Conn(ctx, r.db), &in, q, id); err != nil {
		return nil, err
	}
	return &in, nil
}

// LastActName returns the greatest act name with the given prefix for the
// institution, or "" when there is none.
func (r *ActRepo) LastActName(ctx context.Context, institutionID int64, prefix string) (string, error) {
	var name string
	const q = `SELECT name FROM acts
		WHERE institution_id=$1 AND left(name, char_length($2)) = $2
		ORDER BY name DESC LIMIT 1`
	err := sqlx.GetContext(ctx, database.Conn(ctx, r.db), &name, q, institutionID, prefix)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return name, err
}

func (r *ActRepo) CreateAct(ctx context.Context, a *entity.Act) error {
	const q = `INSERT INTO acts (id, institution_id, name, description, issued_at)
		VALUES ($1, $2, $3, $4, $5) RETURNING created_at, updated_at`
	return database.Conn(ctx, r.db).QueryRowxContext(ctx, q, a.ID, a.InstitutionID, a.Name, a.Description, a.IssuedAt).
		Scan(&a.CreatedAt, &a.UpdatedAt)
}

func (r *ActRepo) GetAct(ctx context.Context, id int64) (*entity.Act, error) {
	var a entity.Act
	if err := sqlx.GetContext(ctx, database.Conn(ctx, r.db), &a, `SELECT `+actColumns+` FROM acts WHERE id=$1`, id); err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *ActRepo) ListActs(ctx context.Context, institutionID int64) ([]entity.Act, error) {
	out := []entity.Act{}
	err := sqlx.SelectContext(ctx, database.Conn(ctx, r.db), &out,
		`SELECT `+actColumns+` FROM acts WHERE institution_id=$1 ORDER BY name`, institutionID)
	return out, err
}

func (r *ActRepo) DeleteAct(ctx context.Context, id int64) error {
	res, err := database.Conn(ctx, r.db).ExecContext(ctx, `DELETE FROM acts WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return nil
}
