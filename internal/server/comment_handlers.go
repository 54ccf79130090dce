package server

import (
	"devlink/internal/service"

	"github.com/gofiber/fiber/v2"
)

// CreateComment handles POST /api/comments
func (s *Server) CreateComment(c *fiber.Ctx) error {
	var req service.AddCommentInput
	if err := bindJSON(c, &req); err != nil {
		return err
	}
	req.UserID = currentUser(c)

	comment, err := s.commentService.AddComment(c.UserContext(), req)
	if err != nil {
		return err
	}
	return success(c, fiber.StatusCreated, fiber.Map{
		"message": "Comment added successfully",
		"comment": comment,
	})
}

// GetComments handles GET /api/comments/:postId
func (s *Server) GetComments(c *fiber.Ctx) error {
	postID, err := parseID(c, "postId")
	if err != nil {
		return err
	}
	comments, err := s.commentService.ListComments(c.UserContext(), postID)
	if err != nil {
		return err
	}
	return success(c, fiber.StatusOK, fiber.Map{"comments": comments})
}

// DeleteComment handles DELETE /api/comments/:id
func (s *Server) DeleteComment(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	if err := s.commentService.DeleteComment(c.UserContext(), currentUser(c), id); err != nil {
		return err
	}
	return success(c, fiber.StatusOK, fiber.Map{"message": "Comment deleted successfully"})
}
