package middleware

import (
	"net/http"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGatewayAuthMiddleware(t *testing.T) {
	t.Setenv("ECOQUEST_SERVICE_TOKEN", "secret-token")

	app := fiber.New()
	app.Use(GatewayAuthMiddleware())
	app.Get("/ping", func(c *fiber.Ctx) error { return c.SendString("pong") })

	tests := []struct {
		name       string
		authHeader string
		wantStatus int
	}{
		{name: "bearer token", authHeader: "Bearer secret-token", wantStatus: http.StatusOK},
		{name: "raw token", authHeader: "secret-token", wantStatus: http.StatusOK},
		{name: "wrong token", authHeader: "Bearer nope", wantStatus: http.StatusUnauthorized},
		{name: "missing header", authHeader: "", wantStatus: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := http.NewRequest("GET", "/ping", nil)
			require.NoError(t, err)
			if tt.authHeader != "" {
				req.Header.Set("Authorization", tt.authHeader)
			}
			resp, err := app.Test(req, -1)
			require.NoError(t, err)
			assert.Equal(t, tt.wantStatus, resp.StatusCode)
		})
	}
}

func TestUserContextMiddleware(t *testing.T) {
	app := fiber.New()
	app.Use(UserContextMiddleware())
	app.Get("/s/whoami", func(c *fiber.Ctx) error {
		roles, _ := c.Locals("user_roles").([]string)
		return c.JSON(fiber.Map{
			"user_id": c.Locals("user_id"),
			"roles":   roles,
		})
	})
	app.Get("/open", func(c *fiber.Ctx) error { return c.SendString("ok") })

	t.Run("secured route requires user id", func(t *testing.T) {
		req, err := http.NewRequest("GET", "/s/whoami", nil)
		require.NoError(t, err)
		resp, err := app.Test(req, -1)
		require.NoError(t, err)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("secured route passes with user id", func(t *testing.T) {
		req, err := http.NewRequest("GET", "/s/whoami", nil)
		require.NoError(t, err)
		req.Header.Set("X-User-ID", "u1")
		req.Header.Set("X-User-Roles", "student, admin")
		resp, err := app.Test(req, -1)
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})

	t.Run("open route passes without user id", func(t *testing.T) {
		req, err := http.NewRequest("GET", "/open", nil)
		require.NoError(t, err)
		resp, err := app.Test(req, -1)
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})
}
