package auth

import (
	"context"
	"fmt"
	"time"
)

// BlacklistStore is a table keyed by token hash; repo.BlacklistRepo
// implements it on Postgres.
type BlacklistStore interface {
	Insert(ctx context.Context, tokenHash string, expiresAt *time.Time) error
	Exists(ctx context.Context, tokenHash string) (bool, error)
	Delete(ctx context.Context, tokenHash string) error
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// StoreBlacklist keeps entries in a database table so they survive
// restarts and are shared between instances.
type StoreBlacklist struct {
	store BlacklistStore
	now   func() time.Time
}

func NewStoreBlacklist(store BlacklistStore) *StoreBlacklist {
	return &StoreBlacklist{store: store, now: time.Now}
}

func (b *StoreBlacklist) Add(ctx context.Context, token string, expiresAt *time.Time) error {
	if err := b.store.Insert(ctx, tokenKey(token), expiresAt); err != nil {
		return fmt.Errorf("insert blacklist entry: %w", err)
	}
	return nil
}

func (b *StoreBlacklist) IsBlacklisted(ctx context.Context, token string) (bool, error) {
	return b.store.Exists(ctx, tokenKey(token))
}

func (b *StoreBlacklist) Remove(ctx context.Context, token string) error {
	return b.store.Delete(ctx, tokenKey(token))
}

func (b *StoreBlacklist) Sweep(ctx context.Context) (int, error) {
	n, err := b.store.DeleteExpired(ctx, b.now())
	return int(n), err
}
