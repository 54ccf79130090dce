package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"devlink/internal/middleware"
	"devlink/internal/models"
	"devlink/internal/notifications"
	"devlink/internal/observability"
	"devlink/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

// SetupWebSocketRoutes configures the realtime listener. Clients connect
// to /ws?token=<accessToken>.
func (s *Server) SetupWebSocketRoutes(app *fiber.App) {
	app.Get("/health/live", s.LivenessCheck)

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws", s.auth.WebSocket(), s.WebSocketHandler())

	app.Use(s.NotFound)
}

// WebSocketHandler registers the connection with the hub and dispatches
// inbound events until the peer leaves.
func (s *Server) WebSocketHandler() fiber.Handler {
	return websocket.New(func(conn *websocket.Conn) {
		userID, _ := conn.Locals(middleware.LocalUserID).(uint)
		username, _ := conn.Locals(middleware.LocalUsername).(string)

		client := notifications.NewClient(s.hub, conn, userID, username)
		if err := s.hub.Register(client); err != nil {
			if frame, encErr := notifications.Encode(notifications.EventError, fiber.Map{"message": err.Error()}); encErr == nil {
				_ = conn.WriteMessage(websocket.TextMessage, frame)
			}
			_ = conn.Close()
			return
		}
		client.IncomingHandler = s.handleSocketEvent

		go client.WritePump()
		client.ReadPump(s.hub.Logger())
	})
}

func (s *Server) handleSocketEvent(c *notifications.Client, raw []byte) {
	ctx := context.WithValue(s.shutdownCtx, middleware.UserIDKey, c.UserID)

	var evt notifications.Event
	if err := json.Unmarshal(raw, &evt); err != nil || evt.Event == "" {
		observability.WebSocketEventsTotal.WithLabelValues("invalid").Inc()
		sendSocketError(c, "Invalid message format")
		return
	}

	switch evt.Event {
	case notifications.EventJoinChat:
		observability.WebSocketEventsTotal.WithLabelValues(evt.Event).Inc()
		s.joinChat(ctx, c, evt.Data)
	case notifications.EventLeaveChat:
		observability.WebSocketEventsTotal.WithLabelValues(evt.Event).Inc()
		chatID, err := decodeChatID(evt.Data)
		if err != nil {
			sendSocketError(c, errorMessage(err))
			return
		}
		_ = s.hub.Leave(c.ID, notifications.ChatRoom(chatID))
	case notifications.EventSendMessage:
		observability.WebSocketEventsTotal.WithLabelValues(evt.Event).Inc()
		s.sendSocketMessage(ctx, c, evt.Data)
	default:
		observability.WebSocketEventsTotal.WithLabelValues("unknown").Inc()
		sendSocketError(c, "Unknown event "+strconv.Quote(evt.Event))
	}
}

// joinChat subscribes the connection to a chat room it is a member of.
func (s *Server) joinChat(ctx context.Context, c *notifications.Client, data json.RawMessage) {
	chatID, err := decodeChatID(data)
	if err != nil {
		sendSocketError(c, errorMessage(err))
		return
	}
	if _, err := s.chatService.EnsureParticipant(ctx, chatID, c.UserID); err != nil {
		sendSocketError(c, errorMessage(err))
		return
	}
	room := notifications.ChatRoom(chatID)
	if !s.hub.InRoom(c.ID, room) {
		if err := s.hub.Join(c.ID, room); err != nil {
			sendSocketError(c, err.Error())
			return
		}
	}
	if frame, err := notifications.Encode(notifications.EventJoinedChat, fiber.Map{"chatId": chatID}); err == nil {
		c.TrySend(frame)
	}
}

func (s *Server) sendSocketMessage(ctx context.Context, c *notifications.Client, data json.RawMessage) {
	var in service.SendMessageInput
	if err := json.Unmarshal(data, &in); err != nil {
		sendSocketError(c, "Chat ID and message content are required")
		return
	}
	in.SenderID = c.UserID

	allowed, err := s.rateLimiter.Check(ctx, "send_message", fmt.Sprintf("user:%d", c.UserID), 30, time.Minute)
	if err == nil && !allowed {
		sendSocketError(c, "Rate limit exceeded. Please wait a moment.")
		return
	}

	// The service broadcasts receive_message to the room after persisting.
	if _, err := s.chatService.SendMessage(ctx, in); err != nil {
		sendSocketError(c, errorMessage(err))
	}
}

// decodeChatID accepts a bare number, a numeric string or {"chatId": n}.
func decodeChatID(data json.RawMessage) (uint, error) {
	invalid := models.NewValidationError("Invalid chat ID")
	if len(data) == 0 {
		return 0, invalid
	}

	var wrapped struct {
		ChatID json.RawMessage `json:"chatId"`
	}
	if strings.HasPrefix(strings.TrimSpace(string(data)), "{") {
		if err := json.Unmarshal(data, &wrapped); err != nil || len(wrapped.ChatID) == 0 {
			return 0, invalid
		}
		data = wrapped.ChatID
	}

	var n uint64
	if err := json.Unmarshal(data, &n); err == nil && n > 0 {
		return uint(n), nil
	}
	var str string
	if err := json.Unmarshal(data, &str); err == nil {
		if n, err := strconv.ParseUint(strings.TrimSpace(str), 10, 32); err == nil && n > 0 {
			return uint(n), nil
		}
	}
	return 0, invalid
}

// errorMessage exposes AppError messages and hides anything internal.
func errorMessage(err error) string {
	var appErr *models.AppError
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return "Internal server error"
}

func sendSocketError(c *notifications.Client, message string) {
	if frame, err := notifications.Encode(notifications.EventError, fiber.Map{"message": message}); err == nil {
		c.TrySend(frame)
	}
}
