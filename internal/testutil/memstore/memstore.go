// Package memstore is an in-memory stand-in for the Postgres repositories.
// It honours the same unique constraints as the migrations, rolls back by
// snapshot and lets tests inject failures per operation.
package memstore

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/lib/pq"

	actentity "github.com/ovaphlow/pitchfork/service-staff-records/internal/act/entity"
	instentity "github.com/ovaphlow/pitchfork/service-staff-records/internal/institution/entity"
	siteentity "github.com/ovaphlow/pitchfork/service-staff-records/internal/site/entity"
	staffentity "github.com/ovaphlow/pitchfork/service-staff-records/internal/staff/entity"
	userentity "github.com/ovaphlow/pitchfork/service-staff-records/internal/user/entity"
	"github.com/ovaphlow/pitchfork/service-staff-records/pkg/database"
)

type pair [2]int64

type state struct {
	users            map[int64]userentity.User
	employees        map[int64]staffentity.Employee
	academic         map[int64]staffentity.AcademicRecord
	comments         map[int64]staffentity.Comment
	assignments      map[int64]staffentity.Assignment
	sites            map[int64]siteentity.Site
	shifts           map[int64]siteentity.Shift
	siteShifts       map[pair]bool
	institutions     map[int64]instentity.Institution
	institutionSites map[pair]bool
	acts             map[int64]actentity.Act
}

func newState() state {
	return state{
		users:            map[int64]userentity.User{},
		employees:        map[int64]staffentity.Employee{},
		academic:         map[int64]staffentity.AcademicRecord{},
		comments:         map[int64]staffentity.Comment{},
		assignments:      map[int64]staffentity.Assignment{},
		sites:            map[int64]siteentity.Site{},
		shifts:           map[int64]siteentity.Shift{},
		siteShifts:       map[pair]bool{},
		institutions:     map[int64]instentity.Institution{},
		institutionSites: map[pair]bool{},
		acts:             map[int64]actentity.Act{},
	}
}

func cloneMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func (s state) clone() state {
	return state{
		users:            cloneMap(s.users),
		employees:        cloneMap(s.employees),
		academic:         cloneMap(s.academic),
		comments:         cloneMap(s.comments),
		assignments:      cloneMap(s.assignments),
		sites:            cloneMap(s.sites),
		shifts:           cloneMap(s.shifts),
		siteShifts:       cloneMap(s.siteShifts),
		institutions:     cloneMap(s.institutions),
		institutionSites: cloneMap(s.institutionSites),
		acts:             cloneMap(s.acts),
	}
}

type txKey struct{}

// Store implements every repository interface plus database.Transactor.
// Transactions are serialized; writes made outside a transaction while
// another one is open are lost if that transaction rolls back.
type Store struct {
	txMu sync.Mutex

	mu       sync.Mutex
	st       state
	faults   map[string][]error
	calls    map[string]int
	Now      func() time.Time
	shiftSeq int64
}

// New returns a store seeded with the four standard shifts.
func New() *Store {
	s := &Store{
		st:     newState(),
		faults: map[string][]error{},
		calls:  map[string]int{},
		Now:    time.Now,
	}
	for _, n := range siteentity.ShiftNames {
		s.shiftSeq++
		s.st.shifts[s.shiftSeq] = siteentity.Shift{ID: s.shiftSeq, Name: n}
	}
	return s
}

// DropShift removes a shift from the vocabulary.
func (s *Store) DropShift(name siteentity.ShiftName) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, sh := range s.st.shifts {
		if sh.Name == name {
			delete(s.st.shifts, id)
		}
	}
}

// FailNext makes the next call to op return err. Calls queue up.
func (s *Store) FailNext(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.faults[op] = append(s.faults[op], err)
}

// Calls reports how many times op has been invoked.
func (s *Store) Calls(op string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[op]
}

// enter records the call and returns a queued fault. Callers hold mu.
func (s *Store) enter(op string) error {
	s.calls[op]++
	q := s.faults[op]
	if len(q) == 0 {
		return nil
	}
	s.faults[op] = q[1:]
	return q[0]
}

func (s *Store) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	if ctx.Value(txKey{}) != nil {
		return fn(ctx)
	}
	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.Lock()
	snap := s.st.clone()
	s.mu.Unlock()

	rollback := func() {
		s.mu.Lock()
		s.st = snap
		s.mu.Unlock()
	}
	defer func() {
		if p := recover(); p != nil {
			rollback()
			panic(p)
		}
	}()
	if err := fn(context.WithValue(ctx, txKey{}, true)); err != nil {
		rollback()
		return err
	}
	return nil
}

var _ database.Transactor = (*Store)(nil)

// uniqueErr mimics what lib/pq returns for a unique violation.
func uniqueErr(constraint string) error {
	return &pq.Error{
		Code:       "23505",
		Message:    fmt.Sprintf("duplicate key value violates unique constraint %q", constraint),
		Constraint: constraint,
	}
}

func fkErr(constraint string) error {
	return fmt.Errorf("foreign key violation: %s", constraint)
}

// Counts is a row count per table.
type Counts struct {
	Users, Employees, AcademicRecords, Comments, Assignments int
	Sites, SiteShifts, Institutions, InstitutionSites, Acts  int
}

func (s *Store) Counts() Counts {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Counts{
		Users:            len(s.st.users),
		Employees:        len(s.st.employees),
		AcademicRecords:  len(s.st.academic),
		Comments:         len(s.st.comments),
		Assignments:      len(s.st.assignments),
		Sites:            len(s.st.sites),
		SiteShifts:       len(s.st.siteShifts),
		Institutions:     len(s.st.institutions),
		InstitutionSites: len(s.st.institutionSites),
		Acts:             len(s.st.acts),
	}
}

// ActiveAssignments returns the active assignments of an employee.
func (s *Store) ActiveAssignments(employeeID int64) []staffentity.Assignment {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []staffentity.Assignment
	for _, a := range s.st.assignments {
		if a.EmployeeID == employeeID && a.Status == staffentity.AssignmentActive {
			out = append(out, a)
		}
	}
	return out
}

// ---- users

func (s *Store) Create(_ context.Context, u *userentity.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("Create"); err != nil {
		return err
	}
	for _, o := range s.st.users {
		if strings.EqualFold(o.Email, u.Email) {
			return uniqueErr("users_email_key")
		}
	}
	u.CreatedAt, u.UpdatedAt = s.Now(), s.Now()
	s.st.users[u.ID] = *u
	return nil
}

func (s *Store) GetByEmail(_ context.Context, email string) (*userentity.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("GetByEmail"); err != nil {
		return nil, err
	}
	for _, u := range s.st.users {
		if strings.EqualFold(u.Email, email) {
			return &u, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (s *Store) GetByID(_ context.Context, id int64) (*userentity.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("GetByID"); err != nil {
		return nil, err
	}
	u, ok := s.st.users[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &u, nil
}

func (s *Store) List(_ context.Context) ([]userentity.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("List"); err != nil {
		return nil, err
	}
	out := make([]userentity.User, 0, len(s.st.users))
	for _, u := range s.st.users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) TouchLogin(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("TouchLogin"); err != nil {
		return err
	}
	u, ok := s.st.users[id]
	if !ok {
		return sql.ErrNoRows
	}
	now := s.Now()
	u.LastLoginAt = &now
	u.UpdatedAt = now
	s.st.users[id] = u
	return nil
}

// SetUserStatus changes an account's status directly.
func (s *Store) SetUserStatus(id int64, status userentity.Status) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.st.users[id]; ok {
		u.Status = status
		s.st.users[id] = u
	}
}

// SetUserRole changes an account's role directly.
func (s *Store) SetUserRole(id int64, role userentity.Role) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.st.users[id]; ok {
		u.Role = role
		s.st.users[id] = u
	}
}

// ---- sites and shifts

func (s *Store) CreateSite(_ context.Context, site *siteentity.Site) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("CreateSite"); err != nil {
		return err
	}
	site.CreatedAt, site.UpdatedAt = s.Now(), s.Now()
	s.st.sites[site.ID] = *site
	return nil
}

func (s *Store) GetSite(_ context.Context, id int64) (*siteentity.Site, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("GetSite"); err != nil {
		return nil, err
	}
	st, ok := s.st.sites[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &st, nil
}

func (s *Store) ListSites(_ context.Context) ([]siteentity.Site, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("ListSites"); err != nil {
		return nil, err
	}
	out := make([]siteentity.Site, 0, len(s.st.sites))
	for _, st := range s.st.sites {
		out = append(out, st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *Store) DeleteSite(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("DeleteSite"); err != nil {
		return err
	}
	if _, ok := s.st.sites[id]; !ok {
		return sql.ErrNoRows
	}
	delete(s.st.sites, id)
	for aid, a := range s.st.assignments {
		if a.SiteID == id {
			delete(s.st.assignments, aid)
		}
	}
	for k := range s.st.siteShifts {
		if k[0] == id {
			delete(s.st.siteShifts, k)
		}
	}
	for k := range s.st.institutionSites {
		if k[1] == id {
			delete(s.st.institutionSites, k)
		}
	}
	return nil
}

// SetSiteStatus changes a site's status directly.
func (s *Store) SetSiteStatus(id int64, status siteentity.Status) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if st, ok := s.st.sites[id]; ok {
		st.Status = status
		s.st.sites[id] = st
	}
}

func (s *Store) CountActiveAssignments(_ context.Context, siteID int64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("CountActiveAssignments"); err != nil {
		return 0, err
	}
	n := 0
	for _, a := range s.st.assignments {
		if a.SiteID == siteID && a.Status == staffentity.AssignmentActive {
			n++
		}
	}
	return n, nil
}

func (s *Store) ListShifts(_ context.Context) ([]siteentity.Shift, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("ListShifts"); err != nil {
		return nil, err
	}
	return s.sortedShifts(func(siteentity.Shift) bool { return true }), nil
}

func (s *Store) sortedShifts(keep func(siteentity.Shift) bool) []siteentity.Shift {
	out := []siteentity.Shift{}
	for _, sh := range s.st.shifts {
		if keep(sh) {
			out = append(out, sh)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *Store) GetShiftByName(_ context.Context, name siteentity.ShiftName) (*siteentity.Shift, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("GetShiftByName"); err != nil {
		return nil, err
	}
	for _, sh := range s.st.shifts {
		if sh.Name == name {
			return &sh, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (s *Store) SiteShifts(_ context.Context, siteID int64) ([]siteentity.Shift, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("SiteShifts"); err != nil {
		return nil, err
	}
	return s.sortedShifts(func(sh siteentity.Shift) bool { return s.st.siteShifts[pair{siteID, sh.ID}] }), nil
}

func (s *Store) HasSiteShift(_ context.Context, siteID, shiftID int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("HasSiteShift"); err != nil {
		return false, err
	}
	return s.st.siteShifts[pair{siteID, shiftID}], nil
}

func (s *Store) LinkShift(_ context.Context, siteID, shiftID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("LinkShift"); err != nil {
		return err
	}
	k := pair{siteID, shiftID}
	if s.st.siteShifts[k] {
		return uniqueErr("site_shifts_pkey")
	}
	s.st.siteShifts[k] = true
	return nil
}

// ---- employees

func (s *Store) CreateEmployee(_ context.Context, e *staffentity.Employee) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("CreateEmployee"); err != nil {
		return err
	}
	if e.Status == staffentity.StatusActive {
		if err := s.activeEmployeeConflict(e.ID, e.DocumentID, e.Email); err != nil {
			return err
		}
	}
	e.CreatedAt, e.UpdatedAt = s.Now(), s.Now()
	s.st.employees[e.ID] = *e
	return nil
}

func (s *Store) GetEmployee(_ context.Context, id int64) (*staffentity.Employee, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("GetEmployee"); err != nil {
		return nil, err
	}
	e, ok := s.st.employees[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &e, nil
}

func (s *Store) FindDuplicateEmployee(_ context.Context, documentID, email string, activeOnly bool) (*staffentity.Employee, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("FindDuplicateEmployee"); err != nil {
		return nil, err
	}
	var found *staffentity.Employee
	for _, e := range s.st.employees {
		if e.DocumentID != documentID && !strings.EqualFold(e.Email, email) {
			continue
		}
		if activeOnly && e.Status != staffentity.StatusActive {
			continue
		}
		if found == nil || e.CreatedAt.Before(found.CreatedAt) {
			e := e
			found = &e
		}
	}
	if found == nil {
		return nil, sql.ErrNoRows
	}
	return found, nil
}

func (s *Store) ListEmployees(_ context.Context, f staffentity.EmployeeFilter) ([]staffentity.Employee, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("ListEmployees"); err != nil {
		return nil, err
	}
	out := []staffentity.Employee{}
	for _, e := range s.st.employees {
		if f.Role != "" && e.Role != f.Role {
			continue
		}
		if f.Status != "" && e.Status != f.Status {
			continue
		}
		if f.SiteID > 0 && !s.assignedTo(e.ID, f.SiteID) {
			continue
		}
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].LastName != out[j].LastName {
			return out[i].LastName < out[j].LastName
		}
		return out[i].FirstName < out[j].FirstName
	})
	if f.Offset > 0 {
		if f.Offset >= len(out) {
			return []staffentity.Employee{}, nil
		}
		out = out[f.Offset:]
	}
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (s *Store) assignedTo(employeeID, siteID int64) bool {
	for _, a := range s.st.assignments {
		if a.EmployeeID == employeeID && a.SiteID == siteID && a.Status == staffentity.AssignmentActive {
			return true
		}
	}
	return false
}

func (s *Store) UpdateEmployeeStatus(_ context.Context, id int64, status staffentity.Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("UpdateEmployeeStatus"); err != nil {
		return err
	}
	e, ok := s.st.employees[id]
	if !ok {
		return sql.ErrNoRows
	}
	if status == staffentity.StatusActive {
		if err := s.activeEmployeeConflict(id, e.DocumentID, e.Email); err != nil {
			return err
		}
	}
	e.Status = status
	e.UpdatedAt = s.Now()
	s.st.employees[id] = e
	return nil
}

// activeEmployeeConflict mirrors the partial unique indexes on employees.
func (s *Store) activeEmployeeConflict(id int64, documentID, email string) error {
	for _, o := range s.st.employees {
		if o.ID == id || o.Status != staffentity.StatusActive {
			continue
		}
		if o.DocumentID == documentID {
			return uniqueErr("uq_employees_active_document")
		}
		if strings.EqualFold(o.Email, email) {
			return uniqueErr("uq_employees_active_email")
		}
	}
	return nil
}

func (s *Store) CreateAcademicRecord(_ context.Context, a *staffentity.AcademicRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("CreateAcademicRecord"); err != nil {
		return err
	}
	if _, ok := s.st.employees[a.EmployeeID]; !ok {
		return fkErr("academic_records_employee_id_fkey")
	}
	a.CreatedAt, a.UpdatedAt = s.Now(), s.Now()
	s.st.academic[a.ID] = *a
	return nil
}

func (s *Store) ListAcademicRecords(_ context.Context, employeeID int64) ([]staffentity.AcademicRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("ListAcademicRecords"); err != nil {
		return nil, err
	}
	out := []staffentity.AcademicRecord{}
	for _, a := range s.st.academic {
		if a.EmployeeID == employeeID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) CreateComment(_ context.Context, c *staffentity.Comment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("CreateComment"); err != nil {
		return err
	}
	if _, ok := s.st.employees[c.EmployeeID]; !ok {
		return fkErr("comments_employee_id_fkey")
	}
	c.CreatedAt, c.UpdatedAt = s.Now(), s.Now()
	s.st.comments[c.ID] = *c
	return nil
}

func (s *Store) ListComments(_ context.Context, employeeID int64) ([]staffentity.Comment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("ListComments"); err != nil {
		return nil, err
	}
	out := []staffentity.Comment{}
	for _, c := range s.st.comments {
		if c.EmployeeID == employeeID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// ---- assignments

func (s *Store) CreateAssignment(_ context.Context, a *staffentity.Assignment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("CreateAssignment"); err != nil {
		return err
	}
	if _, ok := s.st.employees[a.EmployeeID]; !ok {
		return fkErr("assignments_employee_id_fkey")
	}
	if _, ok := s.st.sites[a.SiteID]; !ok {
		return fkErr("assignments_site_id_fkey")
	}
	if a.Status == staffentity.AssignmentActive {
		for _, o := range s.st.assignments {
			if o.EmployeeID == a.EmployeeID && o.Status == staffentity.AssignmentActive {
				return uniqueErr("uq_assignments_one_active")
			}
		}
	}
	a.CreatedAt, a.UpdatedAt = s.Now(), s.Now()
	s.st.assignments[a.ID] = *a
	return nil
}

func (s *Store) GetActiveAssignment(_ context.Context, employeeID int64) (*staffentity.Assignment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("GetActiveAssignment"); err != nil {
		return nil, err
	}
	for _, a := range s.st.assignments {
		if a.EmployeeID == employeeID && a.Status == staffentity.AssignmentActive {
			return &a, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (s *Store) EndAssignment(_ context.Context, id int64, endDate time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("EndAssignment"); err != nil {
		return err
	}
	a, ok := s.st.assignments[id]
	if !ok || a.Status != staffentity.AssignmentActive {
		return sql.ErrNoRows
	}
	a.Status = staffentity.AssignmentEnded
	a.EndDate = &endDate
	a.UpdatedAt = s.Now()
	s.st.assignments[id] = a
	return nil
}

func (s *Store) ListAssignments(_ context.Context, employeeID int64) ([]staffentity.Assignment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("ListAssignments"); err != nil {
		return nil, err
	}
	out := []staffentity.Assignment{}
	for _, a := range s.st.assignments {
		if a.EmployeeID == employeeID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].StartDate.Equal(out[j].StartDate) {
			return out[i].StartDate.After(out[j].StartDate)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

// ---- institutions

func (s *Store) CreateInstitution(_ context.Context, in *instentity.Institution) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("CreateInstitution"); err != nil {
		return err
	}
	for _, o := range s.st.institutions {
		if strings.EqualFold(o.Name, in.Name) {
			return uniqueErr("institutions_name_key")
		}
	}
	if in.PrincipalID != nil {
		if _, ok := s.st.employees[*in.PrincipalID]; !ok {
			return fkErr("institutions_principal_id_fkey")
		}
	}
	in.CreatedAt, in.UpdatedAt = s.Now(), s.Now()
	s.st.institutions[in.ID] = *in
	return nil
}

func (s *Store) GetInstitution(_ context.Context, id int64) (*instentity.Institution, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("GetInstitution"); err != nil {
		return nil, err
	}
	in, ok := s.st.institutions[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &in, nil
}

func (s *Store) ListInstitutions(_ context.Context) ([]instentity.Institution, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("ListInstitutions"); err != nil {
		return nil, err
	}
	out := make([]instentity.Institution, 0, len(s.st.institutions))
	for _, in := range s.st.institutions {
		out = append(out, in)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *Store) HasSite(_ context.Context, institutionID, siteID int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("HasSite"); err != nil {
		return false, err
	}
	return s.st.institutionSites[pair{institutionID, siteID}], nil
}

func (s *Store) LinkSite(_ context.Context, institutionID, siteID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("LinkSite"); err != nil {
		return err
	}
	if _, ok := s.st.institutions[institutionID]; !ok {
		return fkErr("institution_sites_institution_id_fkey")
	}
	if _, ok := s.st.sites[siteID]; !ok {
		return fkErr("institution_sites_site_id_fkey")
	}
	k := pair{institutionID, siteID}
	if s.st.institutionSites[k] {
		return uniqueErr("institution_sites_pkey")
	}
	s.st.institutionSites[k] = true
	return nil
}

func (s *Store) InstitutionSites(_ context.Context, institutionID int64) ([]siteentity.Site, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("InstitutionSites"); err != nil {
		return nil, err
	}
	out := []siteentity.Site{}
	for k := range s.st.institutionSites {
		if k[0] == institutionID {
			out = append(out, s.st.sites[k[1]])
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// ---- acts

func (s *Store) LockInstitution(ctx context.Context, id int64) (*instentity.Institution, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("LockInstitution"); err != nil {
		return nil, err
	}
	in, ok := s.st.institutions[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &in, nil
}

func (s *Store) LastActName(_ context.Context, institutionID int64, prefix string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("LastActName"); err != nil {
		return "", err
	}
	last := ""
	for _, a := range s.st.acts {
		if a.InstitutionID == institutionID && strings.HasPrefix(a.Name, prefix) && a.Name > last {
			last = a.Name
		}
	}
	return last, nil
}

func (s *Store) CreateAct(_ context.Context, a *actentity.Act) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("CreateAct"); err != nil {
		return err
	}
	if _, ok := s.st.institutions[a.InstitutionID]; !ok {
		return fkErr("acts_institution_id_fkey")
	}
	for _, o := range s.st.acts {
		if o.Name == a.Name {
			return uniqueErr("acts_name_key")
		}
	}
	a.CreatedAt, a.UpdatedAt = s.Now(), s.Now()
	s.st.acts[a.ID] = *a
	return nil
}

// InsertActName stores an act row directly, bypassing numbering.
func (s *Store) InsertActName(institutionID, id int64, name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.acts[id] = actentity.Act{ID: id, InstitutionID: institutionID, Name: name, IssuedAt: s.Now()}
}

func (s *Store) GetAct(_ context.Context, id int64) (*actentity.Act, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("GetAct"); err != nil {
		return nil, err
	}
	a, ok := s.st.acts[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &a, nil
}

func (s *Store) ListActs(_ context.Context, institutionID int64) ([]actentity.Act, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("ListActs"); err != nil {
		return nil, err
	}
	out := []actentity.Act{}
	for _, a := range s.st.acts {
		if a.InstitutionID == institutionID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *Store) DeleteAct(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("DeleteAct"); err != nil {
		return err
	}
	if _, ok := s.st.acts[id]; !ok {
		return sql.ErrNoRows
	}
	delete(s.st.acts, id)
	return nil
}
