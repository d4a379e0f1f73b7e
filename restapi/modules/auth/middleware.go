package auth

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// RequireAuth rejects requests without a valid bearer token. With disabled set
// every request passes, which is meant for local setups.
func RequireAuth(disabled bool, verifier *Verifier, logger *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if disabled {
			return c.Next()
		}

		if verifier == nil {
			logger.Error("Authentication enabled but no JWT verifier configured")
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": ErrTokenInvalid.Error(),
			})
		}

		claims, err := verifier.Verify(c.Get(fiber.HeaderAuthorization))
		if err != nil {
			logger.Warn("Rejected request", zap.String("path", c.Path()), zap.Error(err))
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": err.Error(),
			})
		}

		email, _ := claims["email"].(string)
		logger.Info("Successfully authenticated user using JWT", zap.String("email", email))
		c.Locals("email", email)
		return c.Next()
	}
}
