package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"

	"devlink/internal/middleware"
	"devlink/internal/observability"
)

// Event names on the websocket wire.
const (
	EventJoinChat       = "join_chat"
	EventLeaveChat      = "leave_chat"
	EventSendMessage    = "send_message"
	EventReceiveMessage = "receive_message"
	EventNotification   = "notification"
	EventJoinedChat     = "joined_chat"
	EventError          = "error"
)

// Event is the JSON frame exchanged with websocket clients.
type Event struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Encode builds a frame for event carrying data.
func Encode(event string, data any) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", event, err)
	}
	return json.Marshal(Event{Event: event, Data: raw})
}

// Broadcaster is the fan-out surface services depend on.
type Broadcaster interface {
	BroadcastToChat(ctx context.Context, chatID uint, event string, data any) error
	NotifyUser(ctx context.Context, userID uint, event string, data any) error
}

// Realtime routes events to hub rooms, through Redis when a subscriber is
// running so every instance delivers to its own members exactly once.
type Realtime struct {
	hub      *Hub
	notifier *Notifier
	viaRedis atomic.Bool
}

// NewRealtime wires a hub to an optional notifier.
func NewRealtime(hub *Hub, notifier *Notifier) *Realtime {
	return &Realtime{hub: hub, notifier: notifier}
}

// Hub returns the local hub.
func (r *Realtime) Hub() *Hub { return r.hub }

// StartWiring subscribes to Redis and forwards messages to matching rooms.
// Without Redis it does nothing and delivery stays in-process.
func (r *Realtime) StartWiring(ctx context.Context) error {
	if !r.notifier.Enabled() {
		return nil
	}
	err := r.notifier.StartPatternSubscriber(ctx, func(channel, payload string) {
		if !strings.HasPrefix(channel, chatRoomPrefix) && !strings.HasPrefix(channel, userRoomPrefix) {
			middleware.Logger.Warn("invalid realtime channel", slog.String("channel", channel))
			return
		}
		r.hub.Broadcast(channel, []byte(payload))
	})
	if err != nil {
		return err
	}
	r.viaRedis.Store(true)
	return nil
}

func (r *Realtime) BroadcastToChat(ctx context.Context, chatID uint, event string, data any) error {
	return r.publish(ctx, ChatRoom(chatID), event, data)
}

func (r *Realtime) NotifyUser(ctx context.Context, userID uint, event string, data any) error {
	return r.publish(ctx, UserRoom(userID), event, data)
}

func (r *Realtime) publish(ctx context.Context, room, event string, data any) error {
	payload, err := Encode(event, data)
	if err != nil {
		return err
	}

	if r.viaRedis.Load() {
		err := r.notifier.Publish(ctx, room, payload)
		if err == nil {
			observability.RealtimeBroadcasts.WithLabelValues(event, "redis").Inc()
			return nil
		}
		middleware.Logger.WarnContext(ctx, "redis publish failed, delivering locally",
			slog.String("room", room),
			slog.String("error", err.Error()),
		)
	}

	r.hub.Broadcast(room, payload)
	observability.RealtimeBroadcasts.WithLabelValues(event, "local").Inc()
	return nil
}
