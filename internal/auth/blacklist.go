package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"
)

// Blacklist records tokens that must be rejected although their signature
// and expiry are still valid. Entries with a known expiry are dropped by
// Sweep once that expiry has passed.
type Blacklist interface {
	Add(ctx context.Context, token string, expiresAt *time.Time) error
	IsBlacklisted(ctx context.Context, token string) (bool, error)
	Remove(ctx context.Context, token string) error
	Sweep(ctx context.Context) (int, error)
}

// tokenKey is the fixed-size key under which a token is stored.
func tokenKey(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// MemoryBlacklist keeps entries in process memory. It is not shared
// between instances and is lost on restart.
type MemoryBlacklist struct {
	mu      sync.RWMutex
	entries map[string]*time.Time
	now     func() time.Time
}

func NewMemoryBlacklist() *MemoryBlacklist {
	return &MemoryBlacklist{entries: map[string]*time.Time{}, now: time.Now}
}

func (b *MemoryBlacklist) Add(_ context.Context, token string, expiresAt *time.Time) error {
	var exp *time.Time
	if expiresAt != nil {
		t := *expiresAt
		exp = &t
	}
	b.mu.Lock()
	b.entries[tokenKey(token)] = exp
	b.mu.Unlock()
	return nil
}

func (b *MemoryBlacklist) IsBlacklisted(_ context.Context, token string) (bool, error) {
	b.mu.RLock()
	_, ok := b.entries[tokenKey(token)]
	b.mu.RUnlock()
	return ok, nil
}

func (b *MemoryBlacklist) Remove(_ context.Context, token string) error {
	b.mu.Lock()
	delete(b.entries, tokenKey(token))
	b.mu.Unlock()
	return nil
}

// Sweep drops every entry whose expiry is in the past. Entries without an
// expiry are kept until removed.
func (b *MemoryBlacklist) Sweep(_ context.Context) (int, error) {
	now := b.now()
	b.mu.Lock()
	defer b.mu.Unlock()
	removed := 0
	for k, exp := range b.entries {
		if exp != nil && exp.Before(now) {
			delete(b.entries, k)
			removed++
		}
	}
	return removed, nil
}

// Len reports the number of entries held.
func (b *MemoryBlacklist) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.entries)
}
