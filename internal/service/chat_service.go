package service

import (
	"context"
	"log/slog"
	"strings"

	"devlink/internal/middleware"
	"devlink/internal/models"
	"devlink/internal/notifications"
	"devlink/internal/observability"
	"devlink/internal/repository"

	"go.opentelemetry.io/otel/attribute"
)

const maxMessageLen = 5000

type CreateChatInput struct {
	ActorID uint `json:"-"`
	UserID  uint `json:"userId"`
}

type SendMessageInput struct {
	SenderID uint   `json:"-"`
	ChatID   uint   `json:"chatId"`
	Content  string `json:"content"`
}

type ChatService struct {
	users    repository.UserRepository
	chats    repository.ChatRepository
	realtime notifications.Broadcaster
}

func NewChatService(users repository.UserRepository, chats repository.ChatRepository, realtime notifications.Broadcaster) *ChatService {
	return &ChatService{users: users, chats: chats, realtime: realtime}
}

// CreateOrFetch returns the chat between the actor and in.UserID, creating it
// when the pair has none yet.
func (s *ChatService) CreateOrFetch(ctx context.Context, in CreateChatInput) (*models.Chat, error) {
	if in.UserID == 0 {
		return nil, models.NewValidationError("User ID is required")
	}
	if in.UserID == in.ActorID {
		return nil, models.NewValidationError("You cannot start a chat with yourself")
	}
	if _, err := s.users.GetByID(ctx, in.UserID); err != nil {
		return nil, err
	}

	chat, created, err := s.chats.FindOrCreate(ctx, in.ActorID, in.UserID)
	if err != nil {
		return nil, err
	}
	if created {
		middleware.Logger.InfoContext(ctx, "chat created",
			slog.Uint64("chat_id", uint64(chat.ID)),
			slog.Uint64("user_id", uint64(in.ActorID)),
		)
	}
	return chat, nil
}

// ListChats returns every chat of userID, newest first. Only the user may list them.
func (s *ChatService) ListChats(ctx context.Context, actorID, userID uint) ([]*models.Chat, error) {
	if actorID != userID {
		return nil, models.NewForbiddenError("You can only view your own chats")
	}
	return s.chats.ListForUser(ctx, userID)
}

// EnsureParticipant loads the chat and checks userID belongs to it.
func (s *ChatService) EnsureParticipant(ctx context.Context, chatID, userID uint) (*models.Chat, error) {
	chat, err := s.chats.GetByID(ctx, chatID)
	if err != nil {
		return nil, err
	}
	if !chat.HasParticipant(userID) {
		return nil, models.NewForbiddenError("You are not a participant in this chat")
	}
	return chat, nil
}

// SendMessage persists the message, then pushes it to the chat room.
func (s *ChatService) SendMessage(ctx context.Context, in SendMessageInput) (_ *models.Message, err error) {
	ctx, span := observability.StartSpan(ctx, "chat", "send_message",
		attribute.Int64("chat.id", int64(in.ChatID)),
		attribute.Int64("user.id", int64(in.SenderID)),
	)
	defer func() { observability.EndSpan(span, err) }()

	in.Content = strings.TrimSpace(in.Content)
	if in.ChatID == 0 || in.Content == "" {
		return nil, models.NewValidationError("Chat ID and message content are required")
	}
	if len(in.Content) > maxMessageLen {
		return nil, models.NewValidationError("content must be at most 5000 characters")
	}
	if _, err := s.EnsureParticipant(ctx, in.ChatID, in.SenderID); err != nil {
		return nil, err
	}

	msg := &models.Message{ChatID: in.ChatID, SenderID: in.SenderID, Content: in.Content}
	if err := s.chats.CreateMessage(ctx, msg); err != nil {
		return nil, err
	}

	if s.realtime != nil {
		if err := s.realtime.BroadcastToChat(ctx, in.ChatID, notifications.EventReceiveMessage, msg); err != nil {
			middleware.Logger.WarnContext(ctx, "failed to broadcast message",
				slog.Uint64("chat_id", uint64(in.ChatID)),
				slog.String("error", err.Error()),
			)
		}
	}
	return msg, nil
}

func (s *ChatService) ListMessages(ctx context.Context, userID, chatID uint) ([]*models.Message, error) {
	if _, err := s.EnsureParticipant(ctx, chatID, userID); err != nil {
		return nil, err
	}
	return s.chats.ListMessages(ctx, chatID)
}
