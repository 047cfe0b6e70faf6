package auth_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/ovaphlow/pitchfork/service-staff-records/internal/apperr"
	"github.com/ovaphlow/pitchfork/service-staff-records/internal/auth"
	"github.com/ovaphlow/pitchfork/service-staff-records/internal/testutil/memstore"
	"github.com/ovaphlow/pitchfork/service-staff-records/internal/user"
	"github.com/ovaphlow/pitchfork/service-staff-records/internal/user/entity"
)

type fixture struct {
	store  *memstore.Store
	users  *user.UserService
	tokens *auth.TokenService
	bl     *auth.MemoryBlacklist
	svc    *auth.Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memstore.New()
	users := user.NewUserService(store, user.BcryptHasher{Cost: bcrypt.MinCost})
	bl := auth.NewMemoryBlacklist()
	tokens, err := auth.NewTokenService(auth.TokenConfig{
		AccessSecret:  "access-secret",
		AccessTTL:     time.Hour,
		RefreshSecret: "refresh-secret",
		RefreshTTL:    24 * time.Hour,
	}, bl, zap.NewNop().Sugar(), nil)
	require.NoError(t, err)
	return &fixture{
		store:  store,
		users:  users,
		tokens: tokens,
		bl:     bl,
		svc:    auth.NewService(tokens, users, zap.NewNop().Sugar()),
	}
}

func (f *fixture) addUser(t *testing.T, email string, role entity.Role) *entity.User {
	t.Helper()
	u, err := f.users.Create(context.Background(), user.CreateInput{
		Name: "Test User", Email: email, Password: "correct-horse", Role: role,
	})
	require.NoError(t, err)
	return u
}

func TestLoginIssuesVerifiablePair(t *testing.T) {
	f := newFixture(t)
	u := f.addUser(t, "admin@school.edu", entity.RoleAdmin)
	ctx := context.Background()

	res, err := f.svc.Login(ctx, "  ADMIN@school.edu ", "correct-horse")
	require.NoError(t, err)
	assert.Equal(t, u.ID, res.User.ID)
	assert.NotEmpty(t, res.Token)
	assert.NotEmpty(t, res.RefreshToken)

	id, err := f.tokens.VerifyAccessToken(ctx, res.Token)
	require.NoError(t, err)
	assert.Equal(t, entity.RoleAdmin, id.Role)
	assert.Equal(t, 1, f.store.Calls("TouchLogin"))
}

func TestLoginFailuresAreIndistinguishable(t *testing.T) {
	f := newFixture(t)
	u := f.addUser(t, "gestor@school.edu", entity.RoleGestor)
	f.addUser(t, "off@school.edu", entity.RoleGestor)
	off, err := f.store.GetByEmail(context.Background(), "off@school.edu")
	require.NoError(t, err)
	f.store.SetUserStatus(off.ID, entity.StatusInactive)

	cases := map[string][2]string{
		"unknown email":  {"nobody@school.edu", "correct-horse"},
		"wrong password": {u.Email, "wrong"},
		"inactive":       {"off@school.edu", "correct-horse"},
	}
	for name, c := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := f.svc.Login(context.Background(), c[0], c[1])
			assert.ErrorIs(t, err, auth.ErrInvalidCredentials)
			assert.Equal(t, apperr.KindUnauthorized, apperr.KindOf(err))
		})
	}
}

func TestRefreshRotatesAndRevokes(t *testing.T) {
	f := newFixture(t)
	f.addUser(t, "admin@school.edu", entity.RoleAdmin)
	ctx := context.Background()
	res, err := f.svc.Login(ctx, "admin@school.edu", "correct-horse")
	require.NoError(t, err)

	pair, err := f.svc.Refresh(ctx, res.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, res.RefreshToken, pair.RefreshToken)
	_, err = f.tokens.VerifyAccessToken(ctx, pair.Token)
	require.NoError(t, err)

	_, err = f.svc.Refresh(ctx, res.RefreshToken)
	assert.ErrorIs(t, err, auth.ErrTokenBlacklisted)
}

func TestRefreshPicksUpRoleChange(t *testing.T) {
	f := newFixture(t)
	u := f.addUser(t, "admin@school.edu", entity.RoleAdmin)
	ctx := context.Background()
	res, err := f.svc.Login(ctx, "admin@school.edu", "correct-horse")
	require.NoError(t, err)

	f.store.SetUserRole(u.ID, entity.RoleGestor)
	pair, err := f.svc.Refresh(ctx, res.RefreshToken)
	require.NoError(t, err)
	id, err := f.tokens.VerifyAccessToken(ctx, pair.Token)
	require.NoError(t, err)
	assert.Equal(t, entity.RoleGestor, id.Role)
}

func TestRefreshRejectsInactiveAccount(t *testing.T) {
	f := newFixture(t)
	u := f.addUser(t, "admin@school.edu", entity.RoleAdmin)
	ctx := context.Background()
	res, err := f.svc.Login(ctx, "admin@school.edu", "correct-horse")
	require.NoError(t, err)

	f.store.SetUserStatus(u.ID, entity.StatusInactive)
	_, err = f.svc.Refresh(ctx, res.RefreshToken)
	assert.ErrorIs(t, err, auth.ErrAccountUnavailable)
}

func TestRefreshRejectsAccessToken(t *testing.T) {
	f := newFixture(t)
	f.addUser(t, "admin@school.edu", entity.RoleAdmin)
	ctx := context.Background()
	res, err := f.svc.Login(ctx, "admin@school.edu", "correct-horse")
	require.NoError(t, err)

	_, err = f.svc.Refresh(ctx, res.Token)
	assert.ErrorIs(t, err, auth.ErrTokenMalformed)
}

func TestLogoutBlacklistsBothTokens(t *testing.T) {
	f := newFixture(t)
	f.addUser(t, "admin@school.edu", entity.RoleAdmin)
	ctx := context.Background()
	res, err := f.svc.Login(ctx, "admin@school.edu", "correct-horse")
	require.NoError(t, err)

	out, err := f.svc.Logout(ctx, res.Token, res.RefreshToken)
	require.NoError(t, err)
	assert.False(t, out.Partial)
	assert.Equal(t, 2, f.bl.Len())

	_, err = f.tokens.VerifyAccessToken(ctx, res.Token)
	assert.ErrorIs(t, err, auth.ErrTokenBlacklisted)
	_, err = f.svc.Refresh(ctx, res.RefreshToken)
	assert.ErrorIs(t, err, auth.ErrTokenBlacklisted)
}

func TestLogoutWithoutTokenFails(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Logout(context.Background(), "", "")
	assert.ErrorIs(t, err, auth.ErrMissingToken)
}

func TestLogoutOfAlreadyInvalidTokenSucceeds(t *testing.T) {
	f := newFixture(t)
	out, err := f.svc.Logout(context.Background(), "not-a-jwt", "")
	require.NoError(t, err)
	assert.False(t, out.Partial)
	assert.Zero(t, f.bl.Len())
}

type downBlacklist struct{}

func (downBlacklist) Add(context.Context, string, *time.Time) error       { return assert.AnError }
func (downBlacklist) IsBlacklisted(context.Context, string) (bool, error) { return false, assert.AnError }
func (downBlacklist) Remove(context.Context, string) error                { return assert.AnError }
func (downBlacklist) Sweep(context.Context) (int, error)                  { return 0, assert.AnError }

func TestLogoutReportsPartialWhenStoreFails(t *testing.T) {
	tokens, err := auth.NewTokenService(auth.TokenConfig{AccessSecret: "a", RefreshSecret: "r"}, downBlacklist{}, zap.NewNop().Sugar(), nil)
	require.NoError(t, err)
	svc := auth.NewService(tokens, nil, zap.NewNop().Sugar())
	access, err := tokens.IssueAccessToken(auth.Identity{ID: 1, Email: "a@school.edu", Role: entity.RoleAdmin})
	require.NoError(t, err)

	out, err := svc.Logout(context.Background(), access, "")
	require.NoError(t, err)
	assert.True(t, out.Partial)
}
