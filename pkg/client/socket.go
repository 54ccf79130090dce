package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Event is a realtime frame.
type Event struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// ErrNotLoggedIn is returned by Dial before a successful Login.
var ErrNotLoggedIn = errors.New("devlink: not logged in")

// Socket is an authenticated realtime connection. Writes are serialized;
// reads must come from a single goroutine.
type Socket struct {
	conn *websocket.Conn
	wmu  sync.Mutex
}

// Dial connects to the realtime listener at wsURL (e.g. ws://localhost:5001)
// with the current access token.
func (c *Client) Dial(ctx context.Context, wsURL string) (*Socket, error) {
	tok := c.AccessToken()
	if tok == "" {
		return nil, ErrNotLoggedIn
	}
	u, err := url.Parse(wsURL)
	if err != nil {
		return nil, fmt.Errorf("parse ws url: %w", err)
	}
	u.Path = "/ws"
	u.RawQuery = url.Values{"token": {tok}}.Encode()

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		if resp != nil {
			return nil, &APIError{Status: resp.StatusCode, Message: err.Error()}
		}
		return nil, err
	}
	return &Socket{conn: conn}, nil
}

// Emit sends an event with data.
func (s *Socket) Emit(event string, data any) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return err
	}
	frame, err := json.Marshal(Event{Event: event, Data: raw})
	if err != nil {
		return err
	}
	s.wmu.Lock()
	defer s.wmu.Unlock()
	_ = s.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return s.conn.WriteMessage(websocket.TextMessage, frame)
}

// JoinChat subscribes to a chat room.
func (s *Socket) JoinChat(chatID uint) error {
	return s.Emit("join_chat", map[string]uint{"chatId": chatID})
}

// LeaveChat unsubscribes from a chat room.
func (s *Socket) LeaveChat(chatID uint) error {
	return s.Emit("leave_chat", map[string]uint{"chatId": chatID})
}

// Send posts a message through the socket.
func (s *Socket) Send(chatID uint, content string) error {
	return s.Emit("send_message", map[string]any{"chatId": chatID, "content": content})
}

// Next blocks for the next frame or until timeout elapses.
func (s *Socket) Next(timeout time.Duration) (*Event, error) {
	if err := s.conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		return nil, err
	}
	_, raw, err := s.conn.ReadMessage()
	if err != nil {
		return nil, err
	}
	var evt Event
	if err := json.Unmarshal(raw, &evt); err != nil {
		return nil, fmt.Errorf("decode frame: %w", err)
	}
	return &evt, nil
}

// Close sends a close frame and releases the connection.
func (s *Socket) Close() error {
	s.wmu.Lock()
	_ = s.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
	s.wmu.Unlock()
	return s.conn.Close()
}
