package act_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-staff-records/internal/act"
	"github.com/ovaphlow/pitchfork/service-staff-records/internal/institution"
	instentity "github.com/ovaphlow/pitchfork/service-staff-records/internal/institution/entity"
	"github.com/ovaphlow/pitchfork/service-staff-records/internal/metrics"
	"github.com/ovaphlow/pitchfork/service-staff-records/internal/testutil/memstore"
	"github.com/ovaphlow/pitchfork/service-staff-records/pkg/database"
)

func newService(t *testing.T) (*act.Service, *memstore.Store, int64) {
	t.Helper()
	store := memstore.New()
	inst := &instentity.Institution{ID: 100, Name: "San José", Status: instentity.StatusActive}
	require.NoError(t, store.CreateInstitution(context.Background(), inst))
	return act.NewService(store, store, zap.NewNop().Sugar(), metrics.NewRegistry()), store, inst.ID
}

func TestCreateNumbersSequentially(t *testing.T) {
	svc, _, instID := newService(t)
	ctx := context.Background()

	first, err := svc.Create(ctx, act.CreateInput{InstitutionID: instID, Description: "apertura"})
	require.NoError(t, err)
	assert.Equal(t, "Resolution I.E. San José-0001", first.Name)

	second, err := svc.Create(ctx, act.CreateInput{InstitutionID: instID})
	require.NoError(t, err)
	assert.Equal(t, "Resolution I.E. San José-0002", second.Name)

	acts, err := svc.List(ctx, instID)
	require.NoError(t, err)
	assert.Len(t, acts, 2)
}

func TestCreateContinuesFromHighestExisting(t *testing.T) {
	svc, store, instID := newService(t)
	store.InsertActName(instID, 1, "Resolution I.E. San José-0009")
	store.InsertActName(instID, 2, "Resolution I.E. San José-0041")

	a, err := svc.Create(context.Background(), act.CreateInput{InstitutionID: instID})
	require.NoError(t, err)
	assert.Equal(t, "Resolution I.E. San José-0042", a.Name)
}

func TestCreateIgnoresOtherInstitutionsSharingPrefix(t *testing.T) {
	svc, store, instID := newService(t)
	other := &instentity.Institution{ID: 200, Name: "San José Norte", Status: instentity.StatusActive}
	require.NoError(t, store.CreateInstitution(context.Background(), other))
	store.InsertActName(other.ID, 1, "Resolution I.E. San José Norte-0007")

	a, err := svc.Create(context.Background(), act.CreateInput{InstitutionID: instID})
	require.NoError(t, err)
	assert.Equal(t, "Resolution I.E. San José-0001", a.Name)
}

func TestCreateRetriesOnNameCollision(t *testing.T) {
	svc, store, instID := newService(t)
	store.FailNext("CreateAct", database.ErrUniqueViolation)

	a, err := svc.Create(context.Background(), act.CreateInput{InstitutionID: instID})
	require.NoError(t, err)
	assert.Equal(t, "Resolution I.E. San José-0001", a.Name)
	assert.Equal(t, 2, store.Calls("CreateAct"))
}

func TestCreateGivesUpAfterRepeatedCollisions(t *testing.T) {
	svc, store, instID := newService(t)
	for i := 0; i < 3; i++ {
		store.FailNext("CreateAct", database.ErrUniqueViolation)
	}

	_, err := svc.Create(context.Background(), act.CreateInput{InstitutionID: instID})
	assert.ErrorIs(t, err, act.ErrSequenceContention)
	assert.Equal(t, 3, store.Calls("CreateAct"))
	assert.Zero(t, store.Counts().Acts)
}

func TestCreateDoesNotRetryOtherErrors(t *testing.T) {
	svc, store, instID := newService(t)
	boom := errors.New("connection reset")
	store.FailNext("CreateAct", boom)

	_, err := svc.Create(context.Background(), act.CreateInput{InstitutionID: instID})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, store.Calls("CreateAct"))
}

func TestCreateUnknownInstitution(t *testing.T) {
	svc, _, _ := newService(t)
	_, err := svc.Create(context.Background(), act.CreateInput{InstitutionID: 999})
	assert.ErrorIs(t, err, institution.ErrInstitutionNotFound)
}

func TestCreateExhaustedSequence(t *testing.T) {
	svc, store, instID := newService(t)
	store.InsertActName(instID, 1, "Resolution I.E. San José-9999")
	_, err := svc.Create(context.Background(), act.CreateInput{InstitutionID: instID})
	assert.ErrorIs(t, err, act.ErrSequenceExhausted)
}

func TestNextName(t *testing.T) {
	prefix := act.NamePrefix("Simón Bolívar")
	tests := []struct {
		last    string
		want    string
		wantErr bool
	}{
		{"", "Resolution I.E. Simón Bolívar-0001", false},
		{prefix + "0001", "Resolution I.E. Simón Bolívar-0002", false},
		{prefix + "0099", "Resolution I.E. Simón Bolívar-0100", false},
		{prefix + "9998", "Resolution I.E. Simón Bolívar-9999", false},
		{prefix + "9999", "", true},
		{prefix + "abc", "", true},
		{"Resolution I.E. Otra-0001", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.last, func(t *testing.T) {
			got, err := act.NextName(prefix, tt.last)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestGetAndDelete(t *testing.T) {
	svc, _, instID := newService(t)
	ctx := context.Background()
	a, err := svc.Create(ctx, act.CreateInput{InstitutionID: instID})
	require.NoError(t, err)

	got, err := svc.Get(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, a.Name, got.Name)

	require.NoError(t, svc.Delete(ctx, a.ID))
	_, err = svc.Get(ctx, a.ID)
	assert.ErrorIs(t, err, act.ErrActNotFound)
	assert.ErrorIs(t, svc.Delete(ctx, a.ID), act.ErrActNotFound)
}
