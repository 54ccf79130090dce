package server

import (
	"devlink/internal/service"

	"github.com/gofiber/fiber/v2"
)

// CreatePost handles POST /api/posts
func (s *Server) CreatePost(c *fiber.Ctx) error {
	var req service.CreatePostInput
	if err := bindJSON(c, &req); err != nil {
		return err
	}
	req.UserID = currentUser(c)

	post, err := s.postService.CreatePost(c.UserContext(), req)
	if err != nil {
		return err
	}
	return success(c, fiber.StatusCreated, fiber.Map{"data": post})
}

// GetPosts handles GET /api/posts
func (s *Server) GetPosts(c *fiber.Ctx) error {
	posts, err := s.postService.ListPosts(c.UserContext())
	if err != nil {
		return err
	}
	return success(c, fiber.StatusOK, fiber.Map{"data": posts})
}

// GetUserPosts handles GET /api/posts/users/:id
func (s *Server) GetUserPosts(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	posts, err := s.postService.ListUserPosts(c.UserContext(), id)
	if err != nil {
		return err
	}
	return success(c, fiber.StatusOK, fiber.Map{"data": posts})
}

// GetPost handles GET /api/posts/:id
func (s *Server) GetPost(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	post, err := s.postService.GetPost(c.UserContext(), id)
	if err != nil {
		return err
	}
	return success(c, fiber.StatusOK, fiber.Map{"data": post})
}

// UpdatePost handles PUT /api/posts/:id
func (s *Server) UpdatePost(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	var req service.UpdatePostInput
	if err := bindJSON(c, &req); err != nil {
		return err
	}
	req.UserID = currentUser(c)
	req.PostID = id

	post, err := s.postService.UpdatePost(c.UserContext(), req)
	if err != nil {
		return err
	}
	return success(c, fiber.StatusOK, fiber.Map{"data": post})
}

// DeletePost handles DELETE /api/posts/:id
func (s *Server) DeletePost(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	if err := s.postService.DeletePost(c.UserContext(), currentUser(c), id); err != nil {
		return err
	}
	return success(c, fiber.StatusOK, fiber.Map{"message": "Post deleted successfully"})
}

// LikePost handles POST /api/posts/:id/like
func (s *Server) LikePost(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	if err := s.likeService.Like(c.UserContext(), currentUser(c), id); err != nil {
		return err
	}
	return success(c, fiber.StatusCreated, fiber.Map{"message": "Post liked successfully"})
}

// UnlikePost handles POST /api/posts/:id/unlike
func (s *Server) UnlikePost(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	if err := s.likeService.Unlike(c.UserContext(), currentUser(c), id); err != nil {
		return err
	}
	return success(c, fiber.StatusOK, fiber.Map{"message": "Post unliked successfully"})
}

// GetPostLikes handles GET /api/posts/:id/likes
func (s *Server) GetPostLikes(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	likes, err := s.likeService.ListLikes(c.UserContext(), id)
	if err != nil {
		return err
	}
	return success(c, fiber.StatusOK, fiber.Map{"likes": likes})
}
