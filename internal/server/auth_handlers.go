package server

import (
	"time"

	"devlink/internal/service"
	"devlink/internal/token"

	"github.com/gofiber/fiber/v2"
)

const refreshCookieName = "refreshToken"

// Register handles POST /api/auth/register
func (s *Server) Register(c *fiber.Ctx) error {
	var req service.RegisterInput
	if err := bindJSON(c, &req); err != nil {
		return err
	}
	if _, err := s.authService.Register(c.UserContext(), req); err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": "User registered successfully",
	})
}

// Login handles POST /api/auth/login. The refresh token travels only in an
// HttpOnly cookie.
func (s *Server) Login(c *fiber.Ctx) error {
	var req service.LoginInput
	if err := bindJSON(c, &req); err != nil {
		return err
	}
	res, err := s.authService.Login(c.UserContext(), req)
	if err != nil {
		return err
	}

	s.setRefreshCookie(c, res.RefreshToken, time.Now().Add(token.RefreshTTL))
	return c.JSON(fiber.Map{
		"accessToken": res.AccessToken,
		"user": fiber.Map{
			"id":       res.User.ID,
			"username": res.User.Username,
			"email":    res.User.Email,
		},
	})
}

// Me handles GET /api/auth/me
func (s *Server) Me(c *fiber.Ctx) error {
	user, err := s.authService.Me(c.UserContext(), currentUser(c))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"id":       user.ID,
		"username": user.Username,
		"email":    user.Email,
	})
}

// RefreshToken handles POST /api/auth/refresh-token
func (s *Server) RefreshToken(c *fiber.Ctx) error {
	accessToken, err := s.authService.Refresh(c.UserContext(), c.Cookies(refreshCookieName))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"accessToken": accessToken})
}

// Logout handles POST /api/auth/logout. It always clears the cookie.
func (s *Server) Logout(c *fiber.Ctx) error {
	refresh := c.Cookies(refreshCookieName)
	s.setRefreshCookie(c, "", time.Unix(0, 0))
	if err := s.authService.Logout(c.UserContext(), refresh); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"message": "Logged out successfully"})
}

func (s *Server) setRefreshCookie(c *fiber.Ctx, value string, expires time.Time) {
	maxAge := int(token.RefreshTTL / time.Second)
	if value == "" {
		maxAge = -1
	}
	c.Cookie(&fiber.Cookie{
		Name:     refreshCookieName,
		Value:    value,
		Path:     "/",
		Expires:  expires,
		MaxAge:   maxAge,
		HTTPOnly: true,
		Secure:   s.config.IsProduction(),
		SameSite: fiber.CookieSameSiteStrictMode,
	})
}
