package middleware

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/DartinBot/Khyrie-sub002/internal/auth"
	"github.com/DartinBot/Khyrie-sub002/internal/models"
)

type fakeRevoker struct {
	revoked map[string]bool
	err     error
}

func (f *fakeRevoker) Revoke(_ context.Context, id string, _ time.Time) error {
	f.revoked[id] = true
	return nil
}

func (f *fakeRevoker) IsRevoked(_ context.Context, id string) (bool, error) {
	return f.revoked[id], f.err
}

func newApp(tokens *auth.Issuer, revoker auth.Revoker) *fiber.App {
	app := fiber.New()
	app.Get("/me", Auth(tokens, revoker, zap.NewNop()), func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"id": c.Locals(LocalUserID), "role": c.Locals(LocalUserRole)})
	})
	app.Get("/admin", Auth(tokens, revoker, zap.NewNop()), RequireRole(models.UserRoleAdmin), func(c *fiber.Ctx) error {
		return c.SendString("welcome")
	})
	return app
}

func issue(t *testing.T, tokens *auth.Issuer, role models.UserRole) (string, *auth.Claims) {
	t.Helper()
	token, claims, err := tokens.Issue(&models.User{ID: uuid.New(), Username: "sam", Role: role})
	require.NoError(t, err)
	return token, claims
}

func get(t *testing.T, app *fiber.App, path, token string) (int, string) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := app.Test(req)
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, string(body)
}

func TestAuth(t *testing.T) {
	tokens := auth.NewIssuer("secret", "fitclub-api", time.Hour, nil)
	revoker := &fakeRevoker{revoked: map[string]bool{}}
	app := newApp(tokens, revoker)
	token, claims := issue(t, tokens, models.UserRoleUser)

	t.Run("missing header", func(t *testing.T) {
		status, body := get(t, app, "/me", "")
		assert.Equal(t, fiber.StatusUnauthorized, status)
		assert.Contains(t, body, "missing or invalid authorization header")
	})

	t.Run("forged token", func(t *testing.T) {
		forged, _ := issue(t, auth.NewIssuer("attacker", "fitclub-api", time.Hour, nil), models.UserRoleAdmin)
		status, _ := get(t, app, "/me", forged)
		assert.Equal(t, fiber.StatusUnauthorized, status)
	})

	t.Run("valid token", func(t *testing.T) {
		status, body := get(t, app, "/me", token)
		assert.Equal(t, fiber.StatusOK, status)
		assert.Contains(t, body, claims.Subject)
	})

	t.Run("revoked token", func(t *testing.T) {
		revoker.revoked[claims.ID] = true
		status, body := get(t, app, "/me", token)
		assert.Equal(t, fiber.StatusUnauthorized, status)
		assert.Contains(t, body, "revoked")
	})
}

func TestAuthFailsClosedWhenRevocationUnavailable(t *testing.T) {
	tokens := auth.NewIssuer("secret", "fitclub-api", time.Hour, nil)
	app := newApp(tokens, &fakeRevoker{revoked: map[string]bool{}, err: errors.New("redis down")})
	token, _ := issue(t, tokens, models.UserRoleUser)

	status, _ := get(t, app, "/me", token)
	assert.Equal(t, fiber.StatusServiceUnavailable, status)
}

func TestRequireRole(t *testing.T) {
	tokens := auth.NewIssuer("secret", "fitclub-api", time.Hour, nil)
	app := newApp(tokens, nil)

	userToken, _ := issue(t, tokens, models.UserRoleUser)
	status, body := get(t, app, "/admin", userToken)
	assert.Equal(t, fiber.StatusForbidden, status)
	assert.Contains(t, body, "insufficient permissions")

	adminToken, _ := issue(t, tokens, models.UserRoleAdmin)
	status, body = get(t, app, "/admin", adminToken)
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "welcome", body)
}

func TestPreflight(t *testing.T) {
	app := fiber.New()
	app.Use(Preflight())
	app.Get("/api/clubs", func(c *fiber.Ctx) error { return c.SendString("clubs") })

	req := httptest.NewRequest(http.MethodOptions, "/api/anything/at/all", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)

	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Empty(t, body)
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
	assert.Contains(t, resp.Header.Get("Access-Control-Allow-Methods"), "PATCH")

	status, got := get(t, app, "/api/clubs", "")
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "clubs", got)
}
