// Package testutil wires an in-memory SQLite database and request helpers for tests.
package testutil

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"logistics-backend/internal/auth"
	"logistics-backend/internal/cache"
	"logistics-backend/internal/config"
	"logistics-backend/internal/database"
	"logistics-backend/internal/events"
	"logistics-backend/internal/logger"
	"logistics-backend/internal/models"
)

const Password = "secret-password"

// NewDB opens a fresh in-memory database, migrates it and installs it as database.DB
// for the duration of the test.
func NewDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	// every connection to :memory: is its own database
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, database.Migrate(db))

	prev := database.DB
	database.DB = db
	t.Cleanup(func() {
		database.DB = prev
		_ = sqlDB.Close()
	})
	return db
}

// Config returns a test configuration and applies its log level, since tests never go
// through main.
func Config() *config.Config {
	cfg := &config.Config{
		HTTPPort:          "0",
		JWTSecret:         strings.Repeat("k", 40),
		CORSOrigins:       "*",
		Environment:       "test",
		LogLevel:          "error",
		DashboardCacheTTL: time.Minute,
	}
	logger.SetLevel(cfg.LogLevel)
	return cfg
}

// UseRedis points the cache at an in-process Redis for the duration of the test.
func UseRedis(t *testing.T) *miniredis.Miniredis {
	t.Helper()
	mr := miniredis.RunT(t)
	prev := cache.Client
	cache.Client = redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = cache.Client.Close()
		cache.Client = prev
	})
	return mr
}

// UseMemoryPublisher captures movement events for the duration of the test.
func UseMemoryPublisher(t *testing.T) *events.MemoryPublisher {
	t.Helper()
	p := &events.MemoryPublisher{}
	prev := events.Default
	events.Default = p
	t.Cleanup(func() { events.Default = prev })
	return p
}

func SeedUser(t *testing.T, db *gorm.DB, email string, role models.UserRole) models.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(Password), bcrypt.MinCost)
	require.NoError(t, err)

	u := models.User{
		Name:         strings.Split(email, "@")[0],
		Email:        email,
		PasswordHash: string(hash),
		Role:         role,
		Active:       true,
	}
	require.NoError(t, db.Create(&u).Error)
	return u
}

func Token(t *testing.T, cfg *config.Config, u models.User) string {
	t.Helper()
	tok, err := auth.GenerateToken(cfg.JWTSecret, &u)
	require.NoError(t, err)
	return tok
}

func SeedSupplier(t *testing.T, db *gorm.DB, name string) models.Supplier {
	t.Helper()
	s := models.Supplier{Name: name, Active: true}
	require.NoError(t, db.Create(&s).Error)
	return s
}

// SeedProduct creates a product with no stock. Stock must come from movements.
func SeedProduct(t *testing.T, db *gorm.DB, code string, minStock float64, cost string) models.Product {
	t.Helper()
	p := models.Product{
		Code:     code,
		Name:     "Product " + code,
		Unit:     "und",
		MinStock: minStock,
		UnitCost: decimal.RequireFromString(cost),
		Active:   true,
	}
	require.NoError(t, db.Create(&p).Error)
	return p
}

// Do sends a JSON request through app.Test. A nil body sends none.
func Do(t *testing.T, app *fiber.App, method, path, token string, body any) *http.Response {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

// Decode reads a JSON response into dst and closes the body.
func Decode(t *testing.T, resp *http.Response, dst any) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(dst))
}

// ErrorMessage returns the "error" field of an error response.
func ErrorMessage(t *testing.T, resp *http.Response) string {
	t.Helper()
	var body struct {
		Error string `json:"error"`
	}
	Decode(t, resp, &body)
	return body.Error
}

// RequireStatus fails the test with the response body when the status differs.
func RequireStatus(t *testing.T, resp *http.Response, want int) {
	t.Helper()
	if resp.StatusCode == want {
		return
	}
	raw, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	t.Fatalf("expected status %d, got %d: %s", want, resp.StatusCode, raw)
}
