package site_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ovaphlow/pitchfork/service-staff-records/internal/site"
	"github.com/ovaphlow/pitchfork/service-staff-records/internal/site/entity"
	staffentity "github.com/ovaphlow/pitchfork/service-staff-records/internal/staff/entity"
	"github.com/ovaphlow/pitchfork/service-staff-records/internal/testutil/memstore"
)

func newService() (*site.Service, *memstore.Store) {
	store := memstore.New()
	return site.NewService(store, store), store
}

func TestCreateLinksShiftsOnce(t *testing.T) {
	svc, store := newService()
	d, err := svc.Create(context.Background(), site.CreateInput{
		Name:    " Sede Centro ",
		Address: "Calle 9",
		Shifts:  []entity.ShiftName{entity.ShiftMorning, entity.ShiftNight, entity.ShiftMorning},
	})
	require.NoError(t, err)
	assert.Equal(t, "Sede Centro", d.Name)
	assert.Equal(t, entity.StatusActive, d.Status)
	require.Len(t, d.Shifts, 2)
	assert.Equal(t, 2, store.Counts().SiteShifts)
}

func TestCreateUnknownShiftLeavesNoSite(t *testing.T) {
	svc, store := newService()
	store.DropShift(entity.ShiftNight)

	_, err := svc.Create(context.Background(), site.CreateInput{
		Name: "Sede Centro", Shifts: []entity.ShiftName{entity.ShiftMorning, entity.ShiftNight},
	})
	require.ErrorIs(t, err, site.ErrShiftNotFound)
	assert.Zero(t, store.Counts().Sites)
	assert.Zero(t, store.Counts().SiteShifts)
}

func TestCreateInputRejectsUnknownShiftName(t *testing.T) {
	in := site.CreateInput{Name: "Sede", Shifts: []entity.ShiftName{"evening"}}
	err := in.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "evening")
}

func TestShifts(t *testing.T) {
	svc, _ := newService()
	shifts, err := svc.Shifts(context.Background())
	require.NoError(t, err)
	require.Len(t, shifts, 4)
	assert.Equal(t, entity.ShiftMorning, shifts[0].Name)
}

func TestDeleteGuardsActiveAssignments(t *testing.T) {
	ctx := context.Background()
	svc, store := newService()
	d, err := svc.Create(ctx, site.CreateInput{Name: "Sede Centro", Shifts: []entity.ShiftName{entity.ShiftMorning}})
	require.NoError(t, err)

	emp := &staffentity.Employee{ID: 1, DocumentID: "1", Email: "a@b.co", Role: staffentity.RoleTeacher, Status: staffentity.StatusActive}
	require.NoError(t, store.CreateEmployee(ctx, emp))
	a := &staffentity.Assignment{ID: 10, EmployeeID: 1, SiteID: d.ID, StartDate: time.Now(), Status: staffentity.AssignmentActive}
	require.NoError(t, store.CreateAssignment(ctx, a))

	err = svc.Delete(ctx, d.ID)
	assert.ErrorIs(t, err, site.ErrSiteHasActiveAssignments)
	assert.Equal(t, 1, store.Counts().Sites)

	require.NoError(t, store.EndAssignment(ctx, a.ID, time.Now()))
	require.NoError(t, svc.Delete(ctx, d.ID))
	c := store.Counts()
	assert.Zero(t, c.Sites)
	assert.Zero(t, c.SiteShifts)
	assert.Zero(t, c.Assignments)

	err = svc.Delete(ctx, d.ID)
	assert.ErrorIs(t, err, site.ErrSiteNotFound)
}

func TestFind(t *testing.T) {
	svc, _ := newService()
	_, err := svc.Find(context.Background(), 5)
	assert.ErrorIs(t, err, site.ErrSiteNotFound)
}
