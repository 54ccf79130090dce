package server

import (
	"io"

	"devlink/internal/models"
	"devlink/internal/service"

	"github.com/gofiber/fiber/v2"
)

// GetNotifications handles GET /api/notifications
func (s *Server) GetNotifications(c *fiber.Ctx) error {
	notes, err := s.notificationService.List(c.UserContext(), currentUser(c))
	if err != nil {
		return err
	}
	return success(c, fiber.StatusOK, fiber.Map{"data": notes})
}

// MarkNotificationsRead handles POST /api/notifications/mark-as-read
func (s *Server) MarkNotificationsRead(c *fiber.Ctx) error {
	if _, err := s.notificationService.MarkAllRead(c.UserContext(), currentUser(c)); err != nil {
		return err
	}
	return success(c, fiber.StatusOK, fiber.Map{"message": "Notifications marked as read"})
}

// Search handles GET /api/search?query=
func (s *Server) Search(c *fiber.Ctx) error {
	result, err := s.searchService.Search(c.UserContext(), c.Query("query"))
	if err != nil {
		return err
	}
	return c.JSON(result)
}

// UploadProfilePicture handles POST /api/upload/profile
func (s *Server) UploadProfilePicture(c *fiber.Ctx) error {
	content, err := readImage(c)
	if err != nil {
		return err
	}
	url, err := s.uploadService.UploadProfilePicture(c.UserContext(), service.UploadInput{
		UserID:  currentUser(c),
		Content: content,
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"url": url})
}

// UploadPostImage handles POST /api/upload/post. The optional `content`
// form field becomes the post text.
func (s *Server) UploadPostImage(c *fiber.Ctx) error {
	content, err := readImage(c)
	if err != nil {
		return err
	}
	res, err := s.uploadService.UploadPostImage(c.UserContext(), service.UploadInput{
		UserID:  currentUser(c),
		Content: content,
		Caption: c.FormValue("content"),
	})
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(res)
}

func readImage(c *fiber.Ctx) ([]byte, error) {
	file, err := c.FormFile("image")
	if err != nil {
		return nil, models.NewValidationError("No file uploaded")
	}
	src, err := file.Open()
	if err != nil {
		return nil, models.NewValidationError("Unable to read uploaded file")
	}
	defer func() { _ = src.Close() }()

	content, err := io.ReadAll(src)
	if err != nil {
		return nil, models.NewValidationError("Unable to read uploaded file")
	}
	return content, nil
}
