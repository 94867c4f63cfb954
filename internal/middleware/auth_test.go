package middleware

import (
	"net/http/httptest"
	"testing"
	"time"

	"go-chainwatch/internal/config"
	"go-chainwatch/pkg/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestApp(cfg *config.Config) *fiber.App {
	app := fiber.New()
	app.Get("/me", AuthMiddleware(cfg), func(c *fiber.Ctx) error {
		claims := c.Locals(utils.AnalystClaimsKey).(*utils.AnalystClaims)
		return c.SendString(claims.AnalystID)
	})
	return app
}

func mustToken(t *testing.T, secret string) string {
	t.Helper()
	issuer, err := utils.NewTokenIssuer(secret)
	require.NoError(t, err)
	token, err := issuer.Issue("analyst-7", nil, time.Hour)
	require.NoError(t, err)
	return token
}

func TestAuthMiddleware(t *testing.T) {
	cfg := &config.Config{JWTSecret: "prod-super-secret"}
	token := mustToken(t, cfg.JWTSecret)
	defaultSigned := mustToken(t, "secret")

	tests := []struct {
		name   string
		cfg    *config.Config
		target string
		header string
		want   int
	}{
		{name: "Missing Header", cfg: cfg, target: "/me", want: fiber.StatusUnauthorized},
		{name: "Malformed Header", cfg: cfg, target: "/me", header: "Token abc", want: fiber.StatusUnauthorized},
		{name: "Invalid Token", cfg: cfg, target: "/me", header: "Bearer nope", want: fiber.StatusUnauthorized},
		{name: "Token Signed With Other Secret", cfg: cfg, target: "/me", header: "Bearer " + defaultSigned, want: fiber.StatusUnauthorized},
		{name: "Bearer Token", cfg: cfg, target: "/me", header: "Bearer " + token, want: fiber.StatusOK},
		{name: "Query Token", cfg: cfg, target: "/me?token=" + token, want: fiber.StatusOK},
		{name: "Skip Auth", cfg: &config.Config{SkipAuth: true}, target: "/me", want: fiber.StatusOK},
		{name: "Missing Secret", cfg: &config.Config{}, target: "/me", header: "Bearer " + token, want: fiber.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", tt.target, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			resp, err := newTestApp(tt.cfg).Test(req)
			require.NoError(t, err)
			assert.Equal(t, tt.want, resp.StatusCode)
		})
	}
}
