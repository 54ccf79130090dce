// Package observability provides logging, metrics, and tracing.
package observability

import (
	"context"
	"log/slog"
	"os"
)

var wsBase = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

// WSLogger provides structured logging for WebSocket operations.
type WSLogger struct {
	hubName string
	logger  *slog.Logger
}

// NewWSLogger creates a new WSLogger for the given hub.
func NewWSLogger(hubName string) *WSLogger {
	return &WSLogger{hubName: hubName, logger: wsBase}
}

// WithLogger swaps the sink, mostly for tests.
func (l *WSLogger) WithLogger(logger *slog.Logger) *WSLogger {
	return &WSLogger{hubName: l.hubName, logger: logger}
}

// LogConnect logs a WebSocket connection event.
func (l *WSLogger) LogConnect(ctx context.Context, connID string, userID uint) {
	l.logger.InfoContext(ctx, "websocket connected",
		slog.String("hub", l.hubName),
		slog.String("conn_id", connID),
		slog.Uint64("user_id", uint64(userID)),
	)
}

// LogDisconnect logs a WebSocket disconnection event.
func (l *WSLogger) LogDisconnect(ctx context.Context, connID string, userID uint, rooms int) {
	l.logger.InfoContext(ctx, "websocket disconnected",
		slog.String("hub", l.hubName),
		slog.String("conn_id", connID),
		slog.Uint64("user_id", uint64(userID)),
		slog.Int("rooms_left", rooms),
	)
}

// LogRoom logs a join or leave.
func (l *WSLogger) LogRoom(ctx context.Context, connID, room, action string) {
	l.logger.DebugContext(ctx, "websocket room "+action,
		slog.String("hub", l.hubName),
		slog.String("conn_id", connID),
		slog.String("room", room),
	)
}

// LogError logs a failure while handling a socket.
func (l *WSLogger) LogError(ctx context.Context, connID string, err error, operation string) {
	l.logger.ErrorContext(ctx, "websocket error",
		slog.String("hub", l.hubName),
		slog.String("conn_id", connID),
		slog.String("operation", operation),
		slog.String("error", err.Error()),
	)
}
