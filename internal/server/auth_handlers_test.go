package server

import (
	"net/http"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignupAndLogin(t *testing.T) {
	env := newTestEnv(t)

	created := env.signup(t, "Sarah@Example.com", "Sarah Chen")
	assert.Equal(t, "sarah@example.com", created.User.PrimaryEmail)
	require.NotNil(t, created.User.DisplayName)
	assert.Equal(t, "Sarah Chen", *created.User.DisplayName)

	var login authResponse
	status := env.do(t, http.MethodPost, "/api/auth/login", "", fiber.Map{
		"email":    "sarah@example.com",
		"password": testPassword,
	}, &login)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, created.User.ID, login.User.ID)
	assert.NotEmpty(t, login.Token)
}

func TestSignupRejections(t *testing.T) {
	env := newTestEnv(t)
	env.signup(t, "taken@example.com", "")

	tests := []struct {
		name string
		body fiber.Map
		want int
		code string
	}{
		{"duplicate", fiber.Map{"email": "taken@example.com", "password": testPassword}, http.StatusConflict, "CONFLICT"},
		{"weak password", fiber.Map{"email": "new@example.com", "password": "short"}, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"bad email", fiber.Map{"email": "not-an-email", "password": testPassword}, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"missing fields", fiber.Map{}, http.StatusBadRequest, "VALIDATION_ERROR"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out map[string]any
			status := env.do(t, http.MethodPost, "/api/auth/signup", "", tt.body, &out)
			assert.Equal(t, tt.want, status)
			assert.Equal(t, tt.code, out["code"])
		})
	}
}

func TestLoginInvalidCredentials(t *testing.T) {
	env := newTestEnv(t)
	env.signup(t, "user@example.com", "")

	for _, body := range []fiber.Map{
		{"email": "user@example.com", "password": "Wr0ngPassword"},
		{"email": "nobody@example.com", "password": testPassword},
	} {
		var out map[string]any
		status := env.do(t, http.MethodPost, "/api/auth/login", "", body, &out)
		assert.Equal(t, http.StatusUnauthorized, status)
		assert.Equal(t, "Invalid credentials", out["error"])
	}
}

func TestMeAndLogout(t *testing.T) {
	env := newTestEnv(t)
	created := env.signup(t, "me@example.com", "Me")

	var me map[string]any
	assert.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/api/auth/me", created.Token, nil, &me))
	assert.Equal(t, created.User.ID, me["id"])
	assert.NotContains(t, me, "password")

	assert.Equal(t, http.StatusUnauthorized, env.do(t, http.MethodGet, "/api/auth/me", "", nil, nil))
	assert.Equal(t, http.StatusUnauthorized, env.do(t, http.MethodGet, "/api/auth/me", "garbage", nil, nil))

	assert.Equal(t, http.StatusOK, env.do(t, http.MethodPost, "/api/auth/logout", created.Token, nil, nil))

	var out map[string]any
	assert.Equal(t, http.StatusUnauthorized, env.do(t, http.MethodGet, "/api/auth/me", created.Token, nil, &out))
	assert.Equal(t, "Token has been revoked", out["error"])
}

func TestIssueWSTicket(t *testing.T) {
	env := newTestEnv(t)
	created := env.signup(t, "ws@example.com", "")

	var out struct {
		Ticket    string `json:"ticket"`
		ExpiresIn int    `json:"expires_in"`
	}
	require.Equal(t, http.StatusOK, env.do(t, http.MethodPost, "/api/ws/ticket", created.Token, nil, &out))
	assert.Len(t, out.Ticket, 32)
	assert.Equal(t, 60, out.ExpiresIn)

	stored, err := env.mr.Get("ws_ticket:" + out.Ticket)
	require.NoError(t, err)
	assert.Equal(t, created.User.ID, stored)

	assert.Equal(t, http.StatusUnauthorized, env.do(t, http.MethodPost, "/api/ws/ticket", "", nil, nil))
}
