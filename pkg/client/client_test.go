package client_test

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"testing"
	"time"

	"devlink/internal/config"
	"devlink/internal/server"
	"devlink/internal/storage"
	"devlink/internal/testutil"
	"devlink/pkg/client"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stack struct {
	httpURL string
	wsURL   string
}

func listen(t *testing.T, app *fiber.App) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() { _ = app.Listener(ln) }()
	t.Cleanup(func() { _ = app.Shutdown() })
	return ln.Addr().String()
}

func startStack(t *testing.T) stack {
	t.Helper()
	cfg := &config.Config{
		Port:           "0",
		WSPort:         "1",
		AccessSecret:   "client-access-secret-0123456789abcdef",
		RefreshSecret:  "client-refresh-secret-0123456789abcdef",
		DBDriver:       "sqlite",
		AllowedOrigins: "*",
		Env:            "test",
		StorageDriver:  "local",
		UploadDir:      t.TempDir(),
		UploadBaseURL:  "/uploads",
		UploadMaxMB:    1,
	}
	store, err := storage.NewLocalStorage(cfg.UploadDir, cfg.UploadBaseURL)
	require.NoError(t, err)

	srv, err := server.NewServer(cfg, testutil.NewTestDB(t), nil, store)
	require.NoError(t, err)
	t.Cleanup(func() { _ = srv.Hub().Shutdown(context.Background()) })

	return stack{
		httpURL: "http://" + listen(t, srv.App()),
		wsURL:   "ws://" + listen(t, srv.WSApp()),
	}
}

func newClient(t *testing.T, st stack) *client.Client {
	t.Helper()
	c, err := client.New(st.httpURL)
	require.NoError(t, err)
	return c
}

func TestClient_SessionLifecycle(t *testing.T) {
	st := startStack(t)
	ctx := context.Background()
	c := newClient(t, st)

	require.NoError(t, c.Register(ctx, "grace", "grace@example.com", "hopper123"))
	err := c.Register(ctx, "grace2", "grace@example.com", "hopper123")
	require.True(t, client.IsStatus(err, http.StatusBadRequest), err)

	_, err = c.Me(ctx)
	require.True(t, client.IsStatus(err, http.StatusUnauthorized), err)

	user, err := c.Login(ctx, "grace@example.com", "hopper123")
	require.NoError(t, err)
	assert.Equal(t, "grace", user.Username)
	require.NotEmpty(t, c.AccessToken())

	me, err := c.Me(ctx)
	require.NoError(t, err)
	assert.Equal(t, user.ID, me.ID)

	require.NoError(t, c.Refresh(ctx))
	_, err = c.Me(ctx)
	require.NoError(t, err)

	require.NoError(t, c.Logout(ctx))
	assert.Empty(t, c.AccessToken())
	err = c.Refresh(ctx)
	assert.True(t, client.IsStatus(err, http.StatusUnauthorized), err)
}

func TestClient_RealtimeChat(t *testing.T) {
	st := startStack(t)
	ctx := context.Background()

	alice := newClient(t, st)
	require.NoError(t, alice.Register(ctx, "alice", "alice@example.com", "secret123"))
	aliceUser, err := alice.Login(ctx, "alice@example.com", "secret123")
	require.NoError(t, err)

	bob := newClient(t, st)
	require.NoError(t, bob.Register(ctx, "bob", "bob@example.com", "secret123"))
	bobUser, err := bob.Login(ctx, "bob@example.com", "secret123")
	require.NoError(t, err)

	chat, err := alice.OpenChat(ctx, bobUser.ID)
	require.NoError(t, err)

	_, err = bob.Dial(ctx, "ws://127.0.0.1:1")
	require.Error(t, err)

	sock, err := bob.Dial(ctx, st.wsURL)
	require.NoError(t, err)
	t.Cleanup(func() { _ = sock.Close() })

	require.NoError(t, sock.JoinChat(chat.ID))
	evt := nextEvent(t, sock, "joined_chat")
	assert.JSONEq(t, `{"chatId":`+itoa(chat.ID)+`}`, string(evt.Data))

	sent, err := alice.SendMessage(ctx, chat.ID, "ping")
	require.NoError(t, err)

	var got client.Message
	require.NoError(t, json.Unmarshal(nextEvent(t, sock, "receive_message").Data, &got))
	assert.Equal(t, sent.ID, got.ID)
	assert.Equal(t, aliceUser.ID, got.SenderID)

	require.NoError(t, sock.Send(chat.ID, "pong"))
	require.NoError(t, json.Unmarshal(nextEvent(t, sock, "receive_message").Data, &got))
	assert.Equal(t, "pong", got.Content)

	history, err := alice.Messages(ctx, chat.ID)
	require.NoError(t, err)
	require.Len(t, history, 2)
}

func TestClient_DialRequiresLogin(t *testing.T) {
	c, err := client.New("http://127.0.0.1:1")
	require.NoError(t, err)
	_, err = c.Dial(context.Background(), "ws://127.0.0.1:1")
	assert.ErrorIs(t, err, client.ErrNotLoggedIn)
}

func nextEvent(t *testing.T, sock *client.Socket, name string) *client.Event {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		evt, err := sock.Next(time.Until(deadline))
		require.NoError(t, err)
		if evt.Event == name {
			return evt
		}
	}
	require.FailNow(t, "timed out waiting for "+name)
	return nil
}

func itoa(n uint) string {
	b, _ := json.Marshal(n)
	return string(b)
}
