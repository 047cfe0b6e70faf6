package auth_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-staff-records/internal/auth"
	"github.com/ovaphlow/pitchfork/service-staff-records/internal/user/entity"
	"github.com/ovaphlow/pitchfork/service-staff-records/internal/web"
)

func (f *fixture) router() http.Handler {
	lg := zap.NewNop().Sugar()
	h := auth.NewHandler(f.svc, lg)
	authn := auth.Authenticate(f.tokens, lg, nil)

	r := chi.NewRouter()
	r.Post("/auth/login", h.Login)
	r.Post("/auth/refresh", h.Refresh)
	r.Post("/auth/logout", h.Logout)
	r.With(authn).Get("/auth/me", h.Me)
	r.With(authn, auth.RequireRoles(lg, entity.RoleSuperAdmin)).Get("/admin-only", func(w http.ResponseWriter, r *http.Request) {
		web.OK(w, http.StatusOK, "", nil)
	})
	return r
}

func do(t *testing.T, h http.Handler, method, path, token string, body any) (*httptest.ResponseRecorder, map[string]any) {
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
	h.ServeHTTP(rec, req)
	var env map[string]any
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	}
	return rec, env
}

func login(t *testing.T, h http.Handler) (string, string) {
	t.Helper()
	rec, env := do(t, h, http.MethodPost, "/auth/login", "", map[string]string{
		"email": "admin@school.edu", "password": "correct-horse",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	data := env["data"].(map[string]any)
	return data["token"].(string), data["refreshToken"].(string)
}

func TestLoginEndpointShape(t *testing.T) {
	f := newFixture(t)
	f.addUser(t, "admin@school.edu", entity.RoleAdmin)
	h := f.router()

	rec, env := do(t, h, http.MethodPost, "/auth/login", "", map[string]string{
		"email": "admin@school.edu", "password": "correct-horse",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, env["ok"])
	data := env["data"].(map[string]any)
	assert.NotEmpty(t, data["token"])
	assert.NotEmpty(t, data["refreshToken"])
	usuario := data["usuario"].(map[string]any)
	assert.Equal(t, "admin@school.edu", usuario["email"])
	assert.NotContains(t, usuario, "passwordHash")
	assert.NotContains(t, rec.Body.String(), "$2a$")
}

func TestLoginEndpointRejects(t *testing.T) {
	f := newFixture(t)
	f.addUser(t, "admin@school.edu", entity.RoleAdmin)
	h := f.router()

	rec, env := do(t, h, http.MethodPost, "/auth/login", "", map[string]string{
		"email": "admin@school.edu", "password": "nope",
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, false, env["ok"])
	assert.Equal(t, "invalid credentials", env["msg"])

	rec, env = do(t, h, http.MethodPost, "/auth/login", "", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.NotEmpty(t, env["errors"])
}

func TestLogoutThenMeIsUnauthorized(t *testing.T) {
	f := newFixture(t)
	f.addUser(t, "admin@school.edu", entity.RoleAdmin)
	h := f.router()
	access, refresh := login(t, h)

	rec, env := do(t, h, http.MethodGet, "/auth/me", access, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "admin@school.edu", env["data"].(map[string]any)["email"])

	rec, _ = do(t, h, http.MethodPost, "/auth/logout", access, map[string]string{"refreshToken": refresh})
	require.Equal(t, http.StatusOK, rec.Code)

	rec, env = do(t, h, http.MethodGet, "/auth/me", access, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "unauthorized", env["msg"])

	rec, _ = do(t, h, http.MethodPost, "/auth/refresh", "", map[string]string{"refreshToken": refresh})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLogoutRequiresBearer(t *testing.T) {
	f := newFixture(t)
	h := f.router()

	rec, env := do(t, h, http.MethodPost, "/auth/logout", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "missing bearer token", env["msg"])

	// an already-invalid token still logs out cleanly
	rec, _ = do(t, h, http.MethodPost, "/auth/logout", "expired.or.garbage", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAuthenticateRejectionsLookAlike(t *testing.T) {
	f := newFixture(t)
	h := f.router()

	for _, header := range []string{"", "Basic abc", "Bearer garbage"} {
		req := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, header)
		assert.True(t, strings.Contains(rec.Body.String(), `"msg":"unauthorized"`), header)
	}
}

func TestRequireRolesForbidsOtherRoles(t *testing.T) {
	f := newFixture(t)
	f.addUser(t, "admin@school.edu", entity.RoleAdmin)
	h := f.router()
	access, _ := login(t, h)

	rec, env := do(t, h, http.MethodGet, "/admin-only", access, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "forbidden", env["msg"])
}

func TestRefreshEndpoint(t *testing.T) {
	f := newFixture(t)
	f.addUser(t, "admin@school.edu", entity.RoleAdmin)
	h := f.router()
	_, refresh := login(t, h)

	rec, env := do(t, h, http.MethodPost, "/auth/refresh", "", map[string]string{"refreshToken": refresh})
	require.Equal(t, http.StatusOK, rec.Code)
	data := env["data"].(map[string]any)
	assert.NotEmpty(t, data["token"])
	assert.NotEqual(t, refresh, data["refreshToken"])
}
