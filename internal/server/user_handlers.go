package server

import (
	"devlink/internal/middleware"
	"devlink/internal/service"

	"github.com/gofiber/fiber/v2"
)

// GetUsers handles GET /api/users
func (s *Server) GetUsers(c *fiber.Ctx) error {
	users, err := s.userService.ListUsers(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(users)
}

// GetUser handles GET /api/users/:id
func (s *Server) GetUser(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	profile, err := s.userService.GetProfile(c.UserContext(), id)
	if err != nil {
		return err
	}
	return c.JSON(profile)
}

// UpdateUser handles PUT /api/users/:id
func (s *Server) UpdateUser(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	var req service.UpdateProfileInput
	if err := bindJSON(c, &req); err != nil {
		return err
	}
	req.ActorID = currentUser(c)
	req.TargetID = id

	user, err := s.userService.UpdateProfile(c.UserContext(), req)
	if err != nil {
		return err
	}
	return c.JSON(user)
}

// DeleteUser handles DELETE /api/users/:id
func (s *Server) DeleteUser(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	if err := s.userService.DeleteUser(c.UserContext(), currentUser(c), id); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"message": "User deleted successfully"})
}

// FollowUser handles POST /api/users/:id/follow
func (s *Server) FollowUser(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	if err := s.userService.Follow(c.UserContext(), currentUser(c), middleware.CurrentUsername(c), id); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"message": "User followed successfully"})
}

// UnfollowUser handles POST /api/users/:id/unfollow
func (s *Server) UnfollowUser(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	if err := s.userService.Unfollow(c.UserContext(), currentUser(c), id); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"message": "User unfollowed successfully"})
}

// GetFollowers handles GET /api/users/:id/followers
func (s *Server) GetFollowers(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	users, err := s.userService.Followers(c.UserContext(), id)
	if err != nil {
		return err
	}
	return c.JSON(users)
}

// GetFollowing handles GET /api/users/:id/following
func (s *Server) GetFollowing(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	users, err := s.userService.Following(c.UserContext(), id)
	if err != nil {
		return err
	}
	return c.JSON(users)
}
