package server

import (
	"io"
	"net/http"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"logistics-backend/internal/events"
	"logistics-backend/internal/models"
	"logistics-backend/internal/testutil"
)

type testEnv struct {
	app      *fiber.App
	db       *gorm.DB
	events   *events.MemoryPublisher
	admin    models.User
	adminTok string
	buyerTok string
	storeTok string
}

func setup(t *testing.T) *testEnv {
	t.Helper()
	db := testutil.NewDB(t)
	cfg := testutil.Config()

	admin := testutil.SeedUser(t, db, "admin@example.com", models.RoleAdmin)
	buyer := testutil.SeedUser(t, db, "buyer@example.com", models.RoleBuyer)
	store := testutil.SeedUser(t, db, "store@example.com", models.RoleWarehouse)

	return &testEnv{
		app:      New(cfg),
		db:       db,
		events:   testutil.UseMemoryPublisher(t),
		admin:    admin,
		adminTok: testutil.Token(t, cfg, admin),
		buyerTok: testutil.Token(t, cfg, buyer),
		storeTok: testutil.Token(t, cfg, store),
	}
}

func TestHealth(t *testing.T) {
	env := setup(t)

	resp := testutil.Do(t, env.app, http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]string
	testutil.Decode(t, resp, &body)
	assert.Equal(t, "ok", body["status"])
}

func TestMetricsEndpoint(t *testing.T) {
	env := setup(t)

	for i := 0; i < 10; i++ {
		testutil.Do(t, env.app, http.MethodGet, "/health", "", nil).Body.Close()
		testutil.Do(t, env.app, http.MethodPost, "/api/suppliers", env.buyerTok, map[string]any{"name": "S" + idStr(uint(i))}).Body.Close()
		testutil.Do(t, env.app, http.MethodDelete, "/api/suppliers/999", env.adminTok, nil).Body.Close()
	}

	resp := testutil.Do(t, env.app, http.MethodGet, "/metrics", "", nil)
	testutil.RequireStatus(t, resp, http.StatusOK)
	raw, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	assert.Contains(t, string(raw), `http_requests_total{method="POST",path="/api/suppliers",status="201"}`)
}

func TestRegisterAdminOnlyOnce(t *testing.T) {
	testutil.NewDB(t)
	app := New(testutil.Config())

	body := map[string]string{"name": "Root", "email": "Root@Example.com", "password": "long-enough"}
	resp := testutil.Do(t, app, http.MethodPost, "/api/auth/register-admin", "", body)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var user map[string]any
	testutil.Decode(t, resp, &user)
	assert.Equal(t, "root@example.com", user["email"])
	assert.Equal(t, "admin", user["role"])

	resp = testutil.Do(t, app, http.MethodPost, "/api/auth/register-admin", "", body)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestLogin(t *testing.T) {
	env := setup(t)

	resp := testutil.Do(t, env.app, http.MethodPost, "/api/auth/login", "", map[string]string{
		"email": "ADMIN@example.com", "password": testutil.Password,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var out struct {
		Token string         `json:"token"`
		User  map[string]any `json:"user"`
	}
	testutil.Decode(t, resp, &out)
	require.NotEmpty(t, out.Token)
	assert.Equal(t, "admin", out.User["role"])

	resp = testutil.Do(t, env.app, http.MethodGet, "/api/auth/me", out.Token, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = testutil.Do(t, env.app, http.MethodPost, "/api/auth/login", "", map[string]string{
		"email": "admin@example.com", "password": "wrong-password",
	})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestDisabledUserCannotLogin(t *testing.T) {
	env := setup(t)
	require.NoError(t, env.db.Model(&models.User{}).Where("email = ?", "buyer@example.com").Update("active", false).Error)

	resp := testutil.Do(t, env.app, http.MethodPost, "/api/auth/login", "", map[string]string{
		"email": "buyer@example.com", "password": testutil.Password,
	})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestRoutesRequireTokenAndRole(t *testing.T) {
	env := setup(t)

	resp := testutil.Do(t, env.app, http.MethodGet, "/api/suppliers", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = testutil.Do(t, env.app, http.MethodGet, "/api/suppliers", "not-a-token", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = testutil.Do(t, env.app, http.MethodPost, "/api/suppliers", env.storeTok, map[string]string{"name": "ACME"})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = testutil.Do(t, env.app, http.MethodGet, "/api/users", env.buyerTok, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = testutil.Do(t, env.app, http.MethodGet, "/api/users", env.adminTok, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestUserManagement(t *testing.T) {
	env := setup(t)

	resp := testutil.Do(t, env.app, http.MethodPost, "/api/users", env.adminTok, map[string]string{
		"name": "Dana", "email": "dana@example.com", "password": "password-1", "role": "buyer",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = testutil.Do(t, env.app, http.MethodPost, "/api/users", env.adminTok, map[string]string{
		"name": "Dana 2", "email": "dana@example.com", "password": "password-1", "role": "buyer",
	})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp = testutil.Do(t, env.app, http.MethodPost, "/api/users", env.adminTok, map[string]string{
		"name": "Eve", "email": "eve@example.com", "password": "password-1", "role": "root",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = testutil.Do(t, env.app, http.MethodDelete, "/api/users/"+idStr(env.admin.ID), env.adminTok, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode, "admins cannot delete themselves")
}

func TestUnknownRouteReturnsJSONError(t *testing.T) {
	env := setup(t)

	resp := testutil.Do(t, env.app, http.MethodGet, "/nope", "", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.NotEmpty(t, testutil.ErrorMessage(t, resp))
}
