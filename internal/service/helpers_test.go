package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"devlink/internal/cache"
	"devlink/internal/models"
	"devlink/internal/observability"
	"devlink/internal/repository"
	"devlink/internal/testutil"
	"devlink/internal/token"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"gorm.io/gorm"
)

// pushed is one call recorded by fakeBroadcaster.
type pushed struct {
	Room  string
	ID    uint
	Event string
	Data  any
}

type fakeBroadcaster struct {
	mu    sync.Mutex
	calls []pushed
	err   error
}

func (f *fakeBroadcaster) BroadcastToChat(_ context.Context, chatID uint, event string, data any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, pushed{Room: "chat", ID: chatID, Event: event, Data: data})
	return f.err
}

func (f *fakeBroadcaster) NotifyUser(_ context.Context, userID uint, event string, data any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, pushed{Room: "user", ID: userID, Event: event, Data: data})
	return f.err
}

func (f *fakeBroadcaster) recorded() []pushed {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]pushed(nil), f.calls...)
}

// fixture wires real repositories over an in-memory database.
type fixture struct {
	db        *gorm.DB
	users     repository.UserRepository
	posts     repository.PostRepository
	comments  repository.CommentRepository
	likes     repository.LikeRepository
	followers repository.FollowerRepository
	notes     repository.NotificationRepository
	chats     repository.ChatRepository
	realtime  *fakeBroadcaster
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := testutil.NewTestDB(t)
	return &fixture{
		db:        db,
		users:     repository.NewUserRepository(db),
		posts:     repository.NewPostRepository(db),
		comments:  repository.NewCommentRepository(db),
		likes:     repository.NewLikeRepository(db),
		followers: repository.NewFollowerRepository(db),
		notes:     repository.NewNotificationRepository(db),
		chats:     repository.NewChatRepository(db),
		realtime:  &fakeBroadcaster{},
	}
}

func newTestTokens(t *testing.T) *token.Service {
	t.Helper()
	tokens, err := token.NewService("access-secret-for-tests-0123456789", "refresh-secret-for-tests-0123456789")
	require.NoError(t, err)
	return tokens
}

func newTestCache(t *testing.T) (*cache.Cache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return cache.New(client), mr
}

func assertCode(t *testing.T, err error, code, message string) {
	t.Helper()
	require.Error(t, err)
	var appErr *models.AppError
	require.True(t, errors.As(err, &appErr), "expected AppError, got %T: %v", err, err)
	assert.Equal(t, code, appErr.Code)
	if message != "" {
		assert.Equal(t, message, appErr.Message)
	}
}

// recordSpans points the service tracer at an in-memory recorder for the test.
func recordSpans(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	previous := observability.Tracer
	observability.Tracer = tp.Tracer("service-test")
	t.Cleanup(func() { observability.Tracer = previous })
	return recorder
}

func spanNamed(t *testing.T, recorder *tracetest.SpanRecorder, name string) []sdktrace.ReadOnlySpan {
	t.Helper()
	var out []sdktrace.ReadOnlySpan
	for _, span := range recorder.Ended() {
		if span.Name() == name {
			out = append(out, span)
		}
	}
	return out
}
