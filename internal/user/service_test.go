package user_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/ovaphlow/pitchfork/service-staff-records/internal/testutil/memstore"
	"github.com/ovaphlow/pitchfork/service-staff-records/internal/user"
	"github.com/ovaphlow/pitchfork/service-staff-records/internal/user/entity"
	"github.com/ovaphlow/pitchfork/service-staff-records/pkg/database"
)

func newService() (*user.UserService, *memstore.Store) {
	store := memstore.New()
	return user.NewUserService(store, user.BcryptHasher{Cost: bcrypt.MinCost}), store
}

func validInput() user.CreateInput {
	return user.CreateInput{Name: "Ana Gómez", Email: "Ana@School.edu ", Password: "s3cret-pass", Role: entity.RoleGestor}
}

func TestCreateNormalizesAndHashes(t *testing.T) {
	svc, _ := newService()
	u, err := svc.Create(context.Background(), validInput())
	require.NoError(t, err)
	assert.Equal(t, "ana@school.edu", u.Email)
	assert.Equal(t, entity.StatusActive, u.Status)
	assert.NotEqual(t, "s3cret-pass", u.PasswordHash)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte("s3cret-pass")))
}

func TestCreateRejectsDuplicateEmail(t *testing.T) {
	svc, store := newService()
	ctx := context.Background()
	_, err := svc.Create(ctx, validInput())
	require.NoError(t, err)

	in := validInput()
	in.Email = "ANA@school.edu"
	_, err = svc.Create(ctx, in)
	assert.ErrorIs(t, err, user.ErrDuplicateEmail)

	// a race lost at insert time maps to the same error
	in.Email = "other@school.edu"
	store.FailNext("Create", database.ErrUniqueViolation)
	_, err = svc.Create(ctx, in)
	assert.ErrorIs(t, err, user.ErrDuplicateEmail)
}

func TestCreateInputValidation(t *testing.T) {
	tests := []struct {
		name  string
		edit  func(*user.CreateInput)
		valid bool
	}{
		{"ok", func(*user.CreateInput) {}, true},
		{"bad email", func(in *user.CreateInput) { in.Email = "nope" }, false},
		{"short password", func(in *user.CreateInput) { in.Password = "short" }, false},
		{"unknown role", func(in *user.CreateInput) { in.Role = "teacher" }, false},
		{"missing name", func(in *user.CreateInput) { in.Name = "" }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := validInput()
			in.Email = "ana@school.edu"
			tt.edit(&in)
			err := in.Validate()
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestAuthenticate(t *testing.T) {
	svc, store := newService()
	ctx := context.Background()
	created, err := svc.Create(ctx, validInput())
	require.NoError(t, err)

	u, err := svc.Authenticate(ctx, "ana@school.edu", "s3cret-pass")
	require.NoError(t, err)
	assert.Equal(t, created.ID, u.ID)

	_, err = svc.Authenticate(ctx, "ana@school.edu", "wrong")
	assert.ErrorIs(t, err, user.ErrBadCredentials)
	_, err = svc.Authenticate(ctx, "ghost@school.edu", "s3cret-pass")
	assert.ErrorIs(t, err, user.ErrBadCredentials)
	_, err = svc.Authenticate(ctx, "", "s3cret-pass")
	assert.ErrorIs(t, err, user.ErrBadCredentials)

	store.SetUserStatus(created.ID, entity.StatusInactive)
	_, err = svc.Authenticate(ctx, "ana@school.edu", "s3cret-pass")
	assert.ErrorIs(t, err, user.ErrBadCredentials)
}

func TestAuthenticateSurfacesStoreErrors(t *testing.T) {
	svc, store := newService()
	boom := errors.New("db down")
	store.FailNext("GetByEmail", boom)
	_, err := svc.Authenticate(context.Background(), "ana@school.edu", "x")
	assert.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, user.ErrBadCredentials)
}

func TestGet(t *testing.T) {
	svc, _ := newService()
	_, err := svc.Get(context.Background(), 99)
	assert.ErrorIs(t, err, user.ErrUserNotFound)
}

// countingHasher fails the first Hash call and counts the work done after.
type countingHasher struct {
	failFirst bool
	hashes    int
	verifies  int
}

func (h *countingHasher) Hash(pw string) (string, error) {
	h.hashes++
	if h.failFirst {
		h.failFirst = false
		return "", errors.New("entropy exhausted")
	}
	return "hashed:" + pw, nil
}

func (h *countingHasher) Verify(hash, pw string) bool {
	h.verifies++
	return hash == "hashed:"+pw
}

func TestUnknownEmailStillPaysForAHash(t *testing.T) {
	t.Run("with dummy hash", func(t *testing.T) {
		h := &countingHasher{}
		svc := user.NewUserService(memstore.New(), h)
		_, err := svc.Authenticate(context.Background(), "ghost@school.edu", "x")
		assert.ErrorIs(t, err, user.ErrBadCredentials)
		assert.Equal(t, 1, h.verifies)
	})

	t.Run("dummy hash failed at construction", func(t *testing.T) {
		h := &countingHasher{failFirst: true}
		svc := user.NewUserService(memstore.New(), h)
		require.Equal(t, 1, h.hashes)

		_, err := svc.Authenticate(context.Background(), "ghost@school.edu", "x")
		assert.ErrorIs(t, err, user.ErrBadCredentials)
		assert.Equal(t, 2, h.hashes)
		assert.Zero(t, h.verifies)
	})
}
