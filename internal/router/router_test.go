package router_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/ovaphlow/pitchfork/service-staff-records/internal/act"
	"github.com/ovaphlow/pitchfork/service-staff-records/internal/auth"
	"github.com/ovaphlow/pitchfork/service-staff-records/internal/institution"
	"github.com/ovaphlow/pitchfork/service-staff-records/internal/metrics"
	"github.com/ovaphlow/pitchfork/service-staff-records/internal/router"
	"github.com/ovaphlow/pitchfork/service-staff-records/internal/site"
	"github.com/ovaphlow/pitchfork/service-staff-records/internal/staff"
	"github.com/ovaphlow/pitchfork/service-staff-records/internal/testutil/memstore"
	"github.com/ovaphlow/pitchfork/service-staff-records/internal/user"
	"github.com/ovaphlow/pitchfork/service-staff-records/internal/user/entity"
)

type app struct {
	h     http.Handler
	users *user.UserService
	store *memstore.Store
}

func newApp(t *testing.T) *app {
	t.Helper()
	lg := zap.NewNop().Sugar()
	store := memstore.New()
	reg := metrics.NewRegistry()

	users := user.NewUserService(store, user.BcryptHasher{Cost: bcrypt.MinCost})
	sites := site.NewService(store, store)
	employees := staff.NewService(store, sites, store)
	institutions := institution.NewService(store, employees, sites, store)
	acts := act.NewService(store, store, lg, reg)
	tokens, err := auth.NewTokenService(auth.TokenConfig{AccessSecret: "a-secret", RefreshSecret: "r-secret"}, auth.NewMemoryBlacklist(), lg, reg)
	require.NoError(t, err)

	h := router.New(router.Deps{
		Logger:       lg,
		Metrics:      reg,
		Tokens:       tokens,
		Auth:         auth.NewHandler(auth.NewService(tokens, users, lg), lg),
		Users:        user.NewHandler(users, lg),
		Employees:    staff.NewHandler(employees, lg),
		Institutions: institution.NewHandler(institutions, lg),
		Acts:         act.NewHandler(acts, lg),
		Sites:        site.NewHandler(sites, lg),
	})
	return &app{h: h, users: users, store: store}
}

func (a *app) login(t *testing.T, role entity.Role) string {
	t.Helper()
	email := fmt.Sprintf("%s@school.edu", role)
	_, err := a.users.Create(context.Background(), user.CreateInput{Name: "User", Email: email, Password: "password-123", Role: role})
	require.NoError(t, err)
	rec, env := a.do(t, http.MethodPost, "/auth/login", "", map[string]string{"email": email, "password": "password-123"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	return env.Data["token"].(string)
}

type envelope struct {
	OK     bool           `json:"ok"`
	Msg    string         `json:"msg"`
	Data   map[string]any `json:"data"`
	Errors []any          `json:"errors"`
}

func (a *app) do(t *testing.T, method, path, token string, body any) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	a.h.ServeHTTP(rec, req)
	var env envelope
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		// data may be an array; only objects are decoded into Data
		_ = json.Unmarshal(rec.Body.Bytes(), &env)
	}
	return rec, env
}

func TestHealthAndMetrics(t *testing.T) {
	a := newApp(t)
	rec, env := a.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, env.OK)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))

	rec, _ = a.do(t, http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `http_requests_total{method="GET",route="/health",status="200"} 1`)
}

func TestRequestIDIsEchoed(t *testing.T) {
	a := newApp(t)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	rec := httptest.NewRecorder()
	a.h.ServeHTTP(rec, req)
	assert.Equal(t, "abc-123", rec.Header().Get("X-Request-ID"))
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	a := newApp(t)
	for _, path := range []string{"/employees", "/institutions", "/sites", "/shifts", "/users", "/acts?institutionId=1"} {
		rec, env := a.do(t, http.MethodGet, path, "", nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, path)
		assert.Equal(t, "unauthorized", env.Msg, path)
	}
}

func TestRoleGuards(t *testing.T) {
	a := newApp(t)
	gestor := a.login(t, entity.RoleGestor)

	rec, _ := a.do(t, http.MethodGet, "/users", gestor, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	rec, _ = a.do(t, http.MethodPost, "/institutions/rector-complete", gestor, map[string]any{})
	assert.Equal(t, http.StatusForbidden, rec.Code)
	rec, _ = a.do(t, http.MethodDelete, "/employees/1", gestor, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec, _ = a.do(t, http.MethodGet, "/shifts", gestor, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestEmployeeLifecycleOverHTTP(t *testing.T) {
	a := newApp(t)
	admin := a.login(t, entity.RoleAdmin)

	rec, env := a.do(t, http.MethodPost, "/sites", admin, map[string]any{"name": "Sede Norte", "address": "Calle 1", "shifts": []string{"morning"}})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	north := int64(env.Data["id"].(float64))
	rec, env = a.do(t, http.MethodPost, "/sites", admin, map[string]any{"name": "Sede Sur", "address": "Calle 2"})
	require.Equal(t, http.StatusCreated, rec.Code)
	south := int64(env.Data["id"].(float64))

	rec, env = a.do(t, http.MethodPost, "/employees/with-site", admin, map[string]any{
		"employee": map[string]any{
			"documentId": "1001", "firstName": "Laura", "lastName": "Pérez",
			"email": "laura@school.edu", "role": "teacher",
		},
		"comment":   "joined mid-year",
		"siteId":    north,
		"startDate": time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC),
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	emp := env.Data["employee"].(map[string]any)
	empID := int64(emp["id"].(float64))
	comments := env.Data["comments"].([]any)
	require.Len(t, comments, 1)
	assert.NotZero(t, comments[0].(map[string]any)["authorId"])

	rec, env = a.do(t, http.MethodPost, fmt.Sprintf("/employees/%d/transfer", empID), admin, map[string]any{"siteId": south})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, float64(south), env.Data["current"].(map[string]any)["siteId"])

	rec, env = a.do(t, http.MethodPost, fmt.Sprintf("/employees/%d/transfer", empID), admin, map[string]any{"siteId": south})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, staff.ErrSameSite.Msg, env.Msg)

	rec, _ = a.do(t, http.MethodDelete, fmt.Sprintf("/sites/%d", south), admin, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec, _ = a.do(t, http.MethodPost, fmt.Sprintf("/employees/%d/finalize-assignment", empID), admin, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec, _ = a.do(t, http.MethodDelete, fmt.Sprintf("/sites/%d", south), admin, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, _ = a.do(t, http.MethodGet, "/employees/abc", admin, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec, _ = a.do(t, http.MethodGet, "/employees/999", admin, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRectorCompleteAndActsOverHTTP(t *testing.T) {
	a := newApp(t)
	admin := a.login(t, entity.RoleAdmin)

	rec, env := a.do(t, http.MethodPost, "/institutions/rector-complete", admin, map[string]any{
		"employee": map[string]any{
			"documentId": "3003", "firstName": "Carmen", "lastName": "Díaz",
			"email": "carmen@school.edu", "role": "principal",
		},
		"institution": map[string]any{"name": "Santa Ana"},
		"sites":       []map[string]any{{"name": "Sede Única", "address": "Cra 1", "shifts": []string{"morning", "night"}}},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	inst := env.Data["institution"].(map[string]any)
	instID := int64(inst["id"].(float64))
	summary := env.Data["summary"].(map[string]any)
	assert.Equal(t, float64(2), summary["shiftsLinked"])

	for _, want := range []string{"Resolution I.E. Santa Ana-0001", "Resolution I.E. Santa Ana-0002"} {
		rec, env = a.do(t, http.MethodPost, "/acts", admin, map[string]any{"institutionId": instID})
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		assert.Equal(t, want, env.Data["name"])
	}

	rec, _ = a.do(t, http.MethodGet, fmt.Sprintf("/acts?institutionId=%d", instID), admin, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Santa Ana-0002")
}

func TestUnknownRoute(t *testing.T) {
	a := newApp(t)
	rec, env := a.do(t, http.MethodGet, "/nope", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.False(t, env.OK)
}
