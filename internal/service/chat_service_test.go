package service

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"devlink/internal/models"
	"devlink/internal/notifications"
	"devlink/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

func TestChatService_CreateOrFetch(t *testing.T) {
	f := newFixture(t)
	svc := NewChatService(f.users, f.chats, f.realtime)
	ctx := context.Background()

	ada := testutil.CreateUser(t, f.db, "ada")
	bob := testutil.CreateUser(t, f.db, "bob")

	_, err := svc.CreateOrFetch(ctx, CreateChatInput{ActorID: ada.ID})
	assertCode(t, err, models.CodeValidation, "User ID is required")

	_, err = svc.CreateOrFetch(ctx, CreateChatInput{ActorID: ada.ID, UserID: ada.ID})
	assertCode(t, err, models.CodeValidation, "You cannot start a chat with yourself")

	_, err = svc.CreateOrFetch(ctx, CreateChatInput{ActorID: ada.ID, UserID: 999})
	assertCode(t, err, models.CodeNotFound, "User not found")

	first, err := svc.CreateOrFetch(ctx, CreateChatInput{ActorID: ada.ID, UserID: bob.ID})
	require.NoError(t, err)
	require.Len(t, first.Users, 2)

	again, err := svc.CreateOrFetch(ctx, CreateChatInput{ActorID: bob.ID, UserID: ada.ID})
	require.NoError(t, err)
	assert.Equal(t, first.ID, again.ID)
}

func TestChatService_SendMessage(t *testing.T) {
	f := newFixture(t)
	svc := NewChatService(f.users, f.chats, f.realtime)
	ctx := context.Background()

	ada := testutil.CreateUser(t, f.db, "ada")
	bob := testutil.CreateUser(t, f.db, "bob")
	eve := testutil.CreateUser(t, f.db, "eve")

	chat, err := svc.CreateOrFetch(ctx, CreateChatInput{ActorID: ada.ID, UserID: bob.ID})
	require.NoError(t, err)

	_, err = svc.SendMessage(ctx, SendMessageInput{SenderID: ada.ID, ChatID: chat.ID, Content: "  "})
	assertCode(t, err, models.CodeValidation, "Chat ID and message content are required")

	_, err = svc.SendMessage(ctx, SendMessageInput{SenderID: ada.ID, Content: "hi"})
	assertCode(t, err, models.CodeValidation, "Chat ID and message content are required")

	_, err = svc.SendMessage(ctx, SendMessageInput{SenderID: ada.ID, ChatID: chat.ID, Content: strings.Repeat("a", 5001)})
	assertCode(t, err, models.CodeValidation, "")

	_, err = svc.SendMessage(ctx, SendMessageInput{SenderID: ada.ID, ChatID: 999, Content: "hi"})
	assertCode(t, err, models.CodeNotFound, "Chat not found")

	_, err = svc.SendMessage(ctx, SendMessageInput{SenderID: eve.ID, ChatID: chat.ID, Content: "hi"})
	assertCode(t, err, models.CodeForbidden, "You are not a participant in this chat")
	assert.Empty(t, f.realtime.recorded())

	msg, err := svc.SendMessage(ctx, SendMessageInput{SenderID: ada.ID, ChatID: chat.ID, Content: "hello"})
	require.NoError(t, err)
	require.NotNil(t, msg.Sender)
	assert.Equal(t, "ada", msg.Sender.Username)

	calls := f.realtime.recorded()
	require.Len(t, calls, 1)
	assert.Equal(t, "chat", calls[0].Room)
	assert.Equal(t, chat.ID, calls[0].ID)
	assert.Equal(t, notifications.EventReceiveMessage, calls[0].Event)
	assert.Same(t, msg, calls[0].Data)

	_, err = svc.SendMessage(ctx, SendMessageInput{SenderID: bob.ID, ChatID: chat.ID, Content: "hey"})
	require.NoError(t, err)

	msgs, err := svc.ListMessages(ctx, bob.ID, chat.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "hello", msgs[0].Content)
	assert.Equal(t, "hey", msgs[1].Content)

	_, err = svc.ListMessages(ctx, eve.ID, chat.ID)
	assertCode(t, err, models.CodeForbidden, "")
}

func TestChatService_ListChatsSelfOnly(t *testing.T) {
	f := newFixture(t)
	svc := NewChatService(f.users, f.chats, nil)
	ctx := context.Background()

	ada := testutil.CreateUser(t, f.db, "ada")
	bob := testutil.CreateUser(t, f.db, "bob")
	_, err := svc.CreateOrFetch(ctx, CreateChatInput{ActorID: ada.ID, UserID: bob.ID})
	require.NoError(t, err)

	_, err = svc.ListChats(ctx, bob.ID, ada.ID)
	assertCode(t, err, models.CodeForbidden, "You can only view your own chats")

	chats, err := svc.ListChats(ctx, ada.ID, ada.ID)
	require.NoError(t, err)
	require.Len(t, chats, 1)
	assert.Len(t, chats[0].Users, 2)
}

func TestNotificationService(t *testing.T) {
	f := newFixture(t)
	users := NewUserService(f.users, f.followers, nil, nil)
	svc := NewNotificationService(f.notes)
	ctx := context.Background()

	ada := testutil.CreateUser(t, f.db, "ada")
	bob := testutil.CreateUser(t, f.db, "bob")
	cy := testutil.CreateUser(t, f.db, "cy")
	require.NoError(t, users.Follow(ctx, bob.ID, bob.Username, ada.ID))
	require.NoError(t, users.Follow(ctx, cy.ID, cy.Username, ada.ID))

	notes, err := svc.List(ctx, ada.ID)
	require.NoError(t, err)
	require.Len(t, notes, 2)
	assert.Equal(t, "cy started following you", notes[0].Message)
	assert.False(t, notes[0].IsRead)

	n, err := svc.MarkAllRead(ctx, ada.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	notes, err = svc.List(ctx, ada.ID)
	require.NoError(t, err)
	for _, note := range notes {
		assert.True(t, note.IsRead)
	}
}

func TestSearchService(t *testing.T) {
	f := newFixture(t)
	svc := NewSearchService(f.users, f.posts)
	ctx := context.Background()

	ada := testutil.CreateUser(t, f.db, "ada")
	testutil.CreateUser(t, f.db, "bob")
	testutil.CreatePost(t, f.db, ada.ID, "Learning GO generics")

	_, err := svc.Search(ctx, "   ")
	assertCode(t, err, models.CodeValidation, "Query parameter is required")

	res, err := svc.Search(ctx, "ADA")
	require.NoError(t, err)
	require.Len(t, res.Users, 1)
	assert.Equal(t, "ada", res.Users[0].Username)
	assert.Empty(t, res.Posts)

	res, err = svc.Search(ctx, "go")
	require.NoError(t, err)
	assert.Empty(t, res.Users)
	require.Len(t, res.Posts, 1)
	assert.Equal(t, "Learning GO generics", res.Posts[0].Content)
}

func TestSearchService_ReturnsEveryMatch(t *testing.T) {
	f := newFixture(t)
	svc := NewSearchService(f.users, f.posts)
	ctx := context.Background()

	for i := 0; i < 60; i++ {
		user := testutil.CreateUser(t, f.db, fmt.Sprintf("gopher%02d", i))
		testutil.CreatePost(t, f.db, user.ID, fmt.Sprintf("gopher post %d", i))
	}
	testutil.CreateUser(t, f.db, "rustacean")

	res, err := svc.Search(ctx, "gopher")
	require.NoError(t, err)
	assert.Len(t, res.Users, 60)
	assert.Len(t, res.Posts, 60)
}

func TestChatService_SendMessageIsTraced(t *testing.T) {
	recorder := recordSpans(t)
	f := newFixture(t)
	svc := NewChatService(f.users, f.chats, f.realtime)
	ctx := context.Background()

	ada := testutil.CreateUser(t, f.db, "ada")
	bob := testutil.CreateUser(t, f.db, "bob")
	eve := testutil.CreateUser(t, f.db, "eve")
	chat, err := svc.CreateOrFetch(ctx, CreateChatInput{ActorID: ada.ID, UserID: bob.ID})
	require.NoError(t, err)

	_, err = svc.SendMessage(ctx, SendMessageInput{SenderID: ada.ID, ChatID: chat.ID, Content: "traced"})
	require.NoError(t, err)
	_, err = svc.SendMessage(ctx, SendMessageInput{SenderID: eve.ID, ChatID: chat.ID, Content: "intruder"})
	assertCode(t, err, models.CodeForbidden, "")

	spans := spanNamed(t, recorder, "chat.send_message")
	require.Len(t, spans, 2)
	assert.Equal(t, codes.Unset, spans[0].Status().Code)
	assert.Equal(t, codes.Error, spans[1].Status().Code)
	assert.Contains(t, spans[0].Attributes(), attribute.Int64("chat.id", int64(chat.ID)))
}
