package middleware

import (
	"strings"

	"go-chainwatch/internal/config"
	"go-chainwatch/pkg/utils"

	"github.com/gofiber/fiber/v2"
)

// AuthMiddleware validates analyst JWTs signed with cfg.JWTSecret and
// injects the claims into context.
func AuthMiddleware(cfg *config.Config) fiber.Handler {
	if cfg.SkipAuth {
		return func(c *fiber.Ctx) error {
			c.Locals(utils.AnalystClaimsKey, &utils.AnalystClaims{
				AnalystID: "dev-analyst",
				Roles:     []string{"analyst"},
			})
			return c.Next()
		}
	}

	issuer, err := utils.NewTokenIssuer(cfg.JWTSecret)
	if err != nil {
		return func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "Authentication is not configured",
			})
		}
	}

	return func(c *fiber.Ctx) error {
		token, ok := bearerToken(c)
		if !ok {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Authorization header required",
			})
		}

		claims, err := issuer.Validate(token)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Invalid token",
			})
		}

		c.Locals(utils.AnalystClaimsKey, claims)
		return c.Next()
	}
}

// bearerToken reads "Authorization: Bearer <token>". Browsers cannot set
// headers on websocket upgrades, so a token query parameter is accepted too.
func bearerToken(c *fiber.Ctx) (string, bool) {
	authHeader := c.Get(fiber.HeaderAuthorization)
	if strings.HasPrefix(authHeader, "Bearer ") && len(authHeader) > 7 {
		return authHeader[7:], true
	}
	if token := c.Query("token"); token != "" {
		return token, true
	}
	return "", false
}
