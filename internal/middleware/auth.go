package middleware

import (
	"context"
	"strings"

	"devlink/internal/models"
	"devlink/internal/token"

	"github.com/gofiber/fiber/v2"
)

// Locals keys set by the auth gateway.
const (
	LocalUserID   = "userID"
	LocalUsername = "username"
)

// TokenVerifier is the part of the token service the gateway needs.
type TokenVerifier interface {
	VerifyAccess(tokenString string) (*token.AccessClaims, error)
}

// AuthGateway guards protected routes with an access token.
type AuthGateway struct {
	tokens TokenVerifier
}

// NewAuthGateway builds a gateway over the given verifier.
func NewAuthGateway(tokens TokenVerifier) *AuthGateway {
	return &AuthGateway{tokens: tokens}
}

// Required rejects requests without a valid bearer token with 401 and stops the chain.
func (g *AuthGateway) Required() fiber.Handler {
	return func(c *fiber.Ctx) error {
		tokenString := bearerToken(c)
		if tokenString == "" {
			return models.NewUnauthorizedError("Token required")
		}
		return g.authenticate(c, tokenString)
	}
}

// WebSocket accepts the token from the `token` query parameter as well,
// since browsers cannot set headers on the upgrade request.
func (g *AuthGateway) WebSocket() fiber.Handler {
	return func(c *fiber.Ctx) error {
		tokenString := bearerToken(c)
		if tokenString == "" {
			tokenString = c.Query("token")
		}
		if tokenString == "" {
			return models.NewUnauthorizedError("Token required")
		}
		return g.authenticate(c, tokenString)
	}
}

func (g *AuthGateway) authenticate(c *fiber.Ctx, tokenString string) error {
	claims, err := g.tokens.VerifyAccess(tokenString)
	if err != nil {
		return &models.AppError{
			Code:    models.CodeUnauthorized,
			Message: "Invalid or expired token",
			Err:     err,
		}
	}

	c.Locals(LocalUserID, claims.UserID)
	c.Locals(LocalUsername, claims.Username)
	ctx := context.WithValue(c.UserContext(), UserIDKey, claims.UserID)
	c.SetUserContext(ctx)

	return c.Next()
}

func bearerToken(c *fiber.Ctx) string {
	authHeader := c.Get(fiber.HeaderAuthorization)
	if authHeader == "" {
		return ""
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

// CurrentUserID returns the authenticated caller. Only valid behind Required or WebSocket.
func CurrentUserID(c *fiber.Ctx) uint {
	id, _ := c.Locals(LocalUserID).(uint)
	return id
}

// CurrentUsername returns the username carried by the access token.
func CurrentUsername(c *fiber.Ctx) string {
	name, _ := c.Locals(LocalUsername).(string)
	return name
}
