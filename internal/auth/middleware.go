package auth

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/newslens/backend/pkg/logger"
)

const (
	ContextUserID   = "user_id"
	ContextUsername = "username"
)

// Middleware authenticates requests via the Authorization Bearer header
// and stores the user identity in the fiber context locals.
func (s *Service) Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		header := c.Get("Authorization")
		if header == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Authorization header required",
			})
		}

		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Authorization header format must be Bearer <token>",
			})
		}

		claims, err := s.VerifyToken(parts[1])
		if err != nil {
			if errors.Is(err, jwt.ErrTokenExpired) {
				return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
					"error": "Token expired",
				})
			}
			logger.Debug("Token verification failed", zap.Error(err))
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Invalid token",
			})
		}

		c.Locals(ContextUserID, claims.UserID)
		c.Locals(ContextUsername, claims.Username)

		return c.Next()
	}
}

// UserID returns the authenticated user id stored by Middleware.
func UserID(c *fiber.Ctx) string {
	id, _ := c.Locals(ContextUserID).(string)
	return id
}
