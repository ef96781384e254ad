package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/amirphl/Orochi-Audience-Sync/app/services"
	"github.com/amirphl/Orochi-Audience-Sync/utils"
	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuthMiddleware_Authenticate(t *testing.T) {
	tokens, err := services.NewTokenService(time.Hour, "audience-sync", "audience-sync-api", "test-secret")
	require.NoError(t, err)
	expiredTokens, err := services.NewTokenService(time.Nanosecond, "audience-sync", "audience-sync-api", "test-secret")
	require.NoError(t, err)

	producer, err := tokens.GenerateToken("pipeline", utils.RoleProducer)
	require.NoError(t, err)
	admin, err := tokens.GenerateToken("operator", utils.RoleAdmin)
	require.NoError(t, err)
	expired, err := expiredTokens.GenerateToken("pipeline", utils.RoleProducer)
	require.NoError(t, err)
	time.Sleep(5 * time.Millisecond)

	auth := NewAuthMiddleware(tokens)
	app := fiber.New()
	app.Get("/sync", auth.Authenticate(utils.RoleProducer, utils.RoleAdmin), func(c fiber.Ctx) error {
		return c.SendString(c.Locals("subject").(string))
	})
	app.Get("/admin", auth.Authenticate(utils.RoleAdmin), func(c fiber.Ctx) error {
		return c.SendStatus(fiber.StatusNoContent)
	})

	tests := []struct {
		name   string
		path   string
		header string
		status int
	}{
		{name: "producer on sync", path: "/sync", header: "Bearer " + producer, status: http.StatusOK},
		{name: "admin on sync", path: "/sync", header: "Bearer " + admin, status: http.StatusOK},
		{name: "admin on admin", path: "/admin", header: "Bearer " + admin, status: http.StatusNoContent},
		{name: "producer on admin", path: "/admin", header: "Bearer " + producer, status: http.StatusForbidden},
		{name: "missing header", path: "/sync", status: http.StatusUnauthorized},
		{name: "wrong scheme", path: "/sync", header: "Basic abc", status: http.StatusUnauthorized},
		{name: "garbage token", path: "/sync", header: "Bearer not-a-jwt", status: http.StatusUnauthorized},
		{name: "expired token", path: "/sync", header: "Bearer " + expired, status: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			resp, err := app.Test(req)
			require.NoError(t, err)
			assert.Equal(t, tt.status, resp.StatusCode)
		})
	}
}
