// Package middleware contains HTTP middleware functions for request processing
package middleware

import (
	"errors"
	"slices"
	"strings"

	"github.com/amirphl/Orochi-Audience-Sync/app/dto"
	"github.com/amirphl/Orochi-Audience-Sync/app/services"
	"github.com/gofiber/fiber/v3"
)

// AuthMiddleware handles JWT token validation for protected endpoints
type AuthMiddleware struct {
	tokenService services.TokenService
}

// NewAuthMiddleware creates a new authentication middleware
func NewAuthMiddleware(tokenService services.TokenService) *AuthMiddleware {
	return &AuthMiddleware{
		tokenService: tokenService,
	}
}

// Authenticate validates the bearer token and admits only the given roles
func (m *AuthMiddleware) Authenticate(roles ...string) fiber.Handler {
	return func(c fiber.Ctx) error {
		authHeader := c.Get("Authorization")
		if authHeader == "" {
			return unauthorized(c, fiber.StatusUnauthorized, "Authorization header is required", "MISSING_AUTHORIZATION_HEADER")
		}

		if !strings.HasPrefix(authHeader, "Bearer ") {
			return unauthorized(c, fiber.StatusUnauthorized, "Invalid authorization header format. Expected 'Bearer <token>'", "INVALID_AUTHORIZATION_FORMAT")
		}

		token := strings.TrimPrefix(authHeader, "Bearer ")
		if token == "" {
			return unauthorized(c, fiber.StatusUnauthorized, "Access token is required", "MISSING_ACCESS_TOKEN")
		}

		claims, err := m.tokenService.ValidateToken(token)
		if err != nil {
			if errors.Is(err, services.ErrTokenExpired) {
				return unauthorized(c, fiber.StatusUnauthorized, "Access token has expired", "TOKEN_EXPIRED")
			}
			if errors.Is(err, services.ErrTokenInvalid) {
				return unauthorized(c, fiber.StatusUnauthorized, "Invalid access token", "TOKEN_INVALID")
			}
			return unauthorized(c, fiber.StatusUnauthorized, "Token validation failed", "TOKEN_VALIDATION_FAILED")
		}

		if len(roles) > 0 && !slices.Contains(roles, claims.Role) {
			return unauthorized(c, fiber.StatusForbidden, "Insufficient permissions", "FORBIDDEN")
		}

		// Store caller information in context for downstream handlers
		c.Locals("subject", claims.Subject)
		c.Locals("role", claims.Role)
		c.Locals("token_id", claims.TokenID)
		c.Locals("token_claims", claims)

		return c.Next()
	}
}

func unauthorized(c fiber.Ctx, status int, message, code string) error {
	return c.Status(status).JSON(dto.APIResponse{
		Success: false,
		Message: message,
		Error:   dto.ErrorDetail{Code: code},
	})
}
