package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"truuo/internal/cache"
	"truuo/internal/config"
	"truuo/internal/database"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const testPassword = "Passw0rd!"

type testEnv struct {
	srv *Server
	app *fiber.App
	mr  *miniredis.Miniredis
	rdb *redis.Client
}

func setupSQLiteDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, database.Migrate(db))
	return db
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	t.Setenv("APP_ENV", "test")

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	prev := cache.GetClient()
	cache.SetClient(rdb)
	t.Cleanup(func() { cache.SetClient(prev) })

	cfg := &config.Config{
		JWTSecret:       "test-secret-that-is-at-least-32-characters",
		AllowedOrigins:  "http://localhost:3000",
		Env:             "test",
		StatsTTLSeconds: 30,
	}
	srv, err := NewServerWithDeps(cfg, setupSQLiteDB(t), rdb)
	require.NoError(t, err)
	require.NoError(t, srv.LoadFeed(context.Background()))

	return &testEnv{srv: srv, app: srv.App(), mr: mr, rdb: rdb}
}

// do sends a JSON request and decodes the JSON response into out, if given.
func (e *testEnv) do(t *testing.T, method, path, token string, body any, out any) int {
	t.Helper()
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := e.app.Test(req, -1)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

type authResponse struct {
	Token string `json:"token"`
	User  struct {
		ID           string  `json:"id"`
		PrimaryEmail string  `json:"primary_email"`
		DisplayName  *string `json:"display_name"`
	} `json:"user"`
}

func (e *testEnv) signup(t *testing.T, email, displayName string) authResponse {
	t.Helper()
	var out authResponse
	status := e.do(t, http.MethodPost, "/api/auth/signup", "", fiber.Map{
		"email":        email,
		"password":     testPassword,
		"display_name": displayName,
	}, &out)
	require.Equal(t, http.StatusCreated, status)
	require.NotEmpty(t, out.Token)
	return out
}
