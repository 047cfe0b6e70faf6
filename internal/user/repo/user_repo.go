package repo

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/ovaphlow/pitchfork/service-staff-records/internal/user/entity"
	"github.com/ovaphlow/pitchfork/service-staff-records/pkg/database"
)

const userColumns = `id, name, email, password_hash, role, status, last_login_at, created_at, updated_at`

// UserRepo provides data access for users table using sqlx.
type UserRepo struct {
	db *sqlx.DB
}

func NewUserRepo(db *sqlx.DB) *UserRepo { return &UserRepo{db: db} }

// Create inserts a new user row. The caller assigns the ID.
func (r *UserRepo) Create(ctx context.Context, u *entity.User) error {
	const q = `INSERT INTO users (id, name, email, password_hash, role, status)
		VALUES ($1, $2, $3, $4, $5, $6) RETURNING created_at, updated_at`
	row := database.Conn(ctx, r.db).QueryRowxContext(ctx, q, u.ID, u.Name, u.Email, u.PasswordHash, u.Role, u.Status)
	return row.Scan(&u.CreatedAt, &u.UpdatedAt)
}

// GetByEmail returns a user matched by email (case-insensitive due to citext) or sql.ErrNoRows.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*entity.User, error) {
	var u entity.User
	if err := sqlx.GetContext(ctx, database.Conn(ctx, r.db), &u, `SELECT `+userColumns+` FROM users WHERE email=$1`, email); err != nil {
		return nil, err
	}
	return &u, nil
}

// GetByID fetches a full user row.
func (r *UserRepo) GetByID(ctx context.Context, id int64) (*entity.User, error) {
	var u entity.User
	if err := sqlx.GetContext(ctx, database.Conn(ctx, r.db), &u, `SELECT `+userColumns+` FROM users WHERE id=$1`, id); err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *UserRepo) List(ctx context.Context) ([]entity.User, error) {
	out := []entity.User{}
	err := sqlx.SelectContext(ctx, database.Conn(ctx, r.db), &out, `SELECT `+userColumns+` FROM users ORDER BY created_at DESC`)
	return out, err
}

// TouchLogin records a successful authentication.
func (r *UserRepo) TouchLogin(ctx context.Context, id int64) error {
	_, err := database.Conn(ctx, r.db).ExecContext(ctx, `UPDATE users SET last_login_at=NOW(), updated_at=NOW() WHERE id=$1`, id)
	return err
}
