package server

import (
	"devlink/internal/service"

	"github.com/gofiber/fiber/v2"
)

// CreateChat handles POST /api/chat. It returns the existing chat for the
// pair when there is one.
func (s *Server) CreateChat(c *fiber.Ctx) error {
	var req service.CreateChatInput
	if err := bindJSON(c, &req); err != nil {
		return err
	}
	req.ActorID = currentUser(c)

	chat, err := s.chatService.CreateOrFetch(c.UserContext(), req)
	if err != nil {
		return err
	}
	return c.JSON(chat)
}

// GetChats handles GET /api/chat/:userId
func (s *Server) GetChats(c *fiber.Ctx) error {
	userID, err := parseID(c, "userId")
	if err != nil {
		return err
	}
	chats, err := s.chatService.ListChats(c.UserContext(), currentUser(c), userID)
	if err != nil {
		return err
	}
	return c.JSON(chats)
}

// SendMessage handles POST /api/message
func (s *Server) SendMessage(c *fiber.Ctx) error {
	var req service.SendMessageInput
	if err := bindJSON(c, &req); err != nil {
		return err
	}
	req.SenderID = currentUser(c)

	msg, err := s.chatService.SendMessage(c.UserContext(), req)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(msg)
}

// GetMessages handles GET /api/message/:chatId
func (s *Server) GetMessages(c *fiber.Ctx) error {
	chatID, err := parseID(c, "chatId")
	if err != nil {
		return err
	}
	msgs, err := s.chatService.ListMessages(c.UserContext(), currentUser(c), chatID)
	if err != nil {
		return err
	}
	return c.JSON(msgs)
}
