package repo

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
)

// BlacklistRepo persists blacklisted token hashes in token_blacklist.
type BlacklistRepo struct {
	db *sqlx.DB
}

func NewBlacklistRepo(db *sqlx.DB) *BlacklistRepo {
	return &BlacklistRepo{db: db}
}

func (r *BlacklistRepo) Insert(ctx context.Context, tokenHash string, expiresAt *time.Time) error {
	const q = `INSERT INTO token_blacklist (token_hash, expires_at) VALUES ($1, $2)
		ON CONFLICT (token_hash) DO UPDATE SET expires_at = EXCLUDED.expires_at`
	_, err := r.db.ExecContext(ctx, q, tokenHash, expiresAt)
	return err
}

func (r *BlacklistRepo) Exists(ctx context.Context, tokenHash string) (bool, error) {
	var ok bool
	err := r.db.GetContext(ctx, &ok, `SELECT EXISTS (SELECT 1 FROM token_blacklist WHERE token_hash = $1)`, tokenHash)
	return ok, err
}

func (r *BlacklistRepo) Delete(ctx context.Context, tokenHash string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM token_blacklist WHERE token_hash = $1`, tokenHash)
	return err
}

// DeleteExpired removes rows whose expiry is before now and returns how many.
func (r *BlacklistRepo) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM token_blacklist WHERE expires_at IS NOT NULL AND expires_at < $1`, now)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
