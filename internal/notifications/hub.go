// Package notifications provides real-time delivery over websockets, with
// optional Redis pub/sub fan-out across instances.
package notifications

import (
	"context"
	"errors"
	"strconv"
	"sync"

	"devlink/internal/observability"
)

const (
	// Max connections per user
	maxConnsPerUser = 12
	// Max total connections
	maxTotalConns = 10000

	chatRoomPrefix = "chat:room:"
	userRoomPrefix = "notifications:user:"
)

var (
	ErrHubClosed         = errors.New("hub is shut down")
	ErrServerConnLimit   = errors.New("server connection limit reached")
	ErrUserConnLimit     = errors.New("user connection limit reached")
	ErrUnknownConnection = errors.New("unknown connection")
	ErrDuplicateClientID = errors.New("connection id already registered")
)

// ChatRoom names the room (and Redis channel) for a chat.
func ChatRoom(chatID uint) string {
	return chatRoomPrefix + strconv.FormatUint(uint64(chatID), 10)
}

// UserRoom names the room (and Redis channel) every socket of a user joins.
func UserRoom(userID uint) string {
	return userRoomPrefix + strconv.FormatUint(uint64(userID), 10)
}

// Hub tracks live connections and their room memberships.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*Client
	rooms   map[string]map[*Client]struct{}
	joined  map[*Client]map[string]struct{}
	perUser map[uint]int
	closed  bool
	logger  *observability.WSLogger
}

// NewHub creates an empty hub. It is constructed once and injected.
func NewHub() *Hub {
	h := &Hub{
		clients: make(map[string]*Client),
		rooms:   make(map[string]map[*Client]struct{}),
		joined:  make(map[*Client]map[string]struct{}),
		perUser: make(map[uint]int),
	}
	h.logger = observability.NewWSLogger(h.Name())
	return h
}

// Name returns a human-readable identifier for this hub.
func (h *Hub) Name() string { return "realtime" }

// Logger exposes the hub's websocket logger to connection handlers.
func (h *Hub) Logger() *observability.WSLogger { return h.logger }

// Register admits the client and joins it to its user room.
func (h *Hub) Register(client *Client) error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return ErrHubClosed
	}
	if len(h.clients) >= maxTotalConns {
		h.mu.Unlock()
		return ErrServerConnLimit
	}
	if h.perUser[client.UserID] >= maxConnsPerUser {
		h.mu.Unlock()
		return ErrUserConnLimit
	}
	if _, exists := h.clients[client.ID]; exists {
		h.mu.Unlock()
		return ErrDuplicateClientID
	}

	h.clients[client.ID] = client
	h.perUser[client.UserID]++
	h.joinLocked(client, UserRoom(client.UserID))
	h.mu.Unlock()

	observability.WebSocketConnectionsTotal.Inc()
	h.logger.LogConnect(context.Background(), client.ID, client.UserID)
	return nil
}

// UnregisterClient drops every membership of the client and closes its send
// channel. Calling it twice is a no-op.
func (h *Hub) UnregisterClient(client *Client) {
	h.mu.Lock()
	if h.clients[client.ID] != client {
		h.mu.Unlock()
		return
	}
	rooms := len(h.joined[client])
	for room := range h.joined[client] {
		h.removeFromRoomLocked(client, room)
	}
	delete(h.joined, client)
	delete(h.clients, client.ID)
	if h.perUser[client.UserID]--; h.perUser[client.UserID] <= 0 {
		delete(h.perUser, client.UserID)
	}
	close(client.Send)
	h.mu.Unlock()

	observability.WebSocketConnectionsTotal.Dec()
	h.logger.LogDisconnect(context.Background(), client.ID, client.UserID, rooms)
}

// Join adds the connection to room. Joining twice is a no-op.
func (h *Hub) Join(connID, room string) error {
	h.mu.Lock()
	client, ok := h.clients[connID]
	if !ok {
		h.mu.Unlock()
		return ErrUnknownConnection
	}
	h.joinLocked(client, room)
	h.mu.Unlock()

	h.logger.LogRoom(context.Background(), connID, room, "join")
	return nil
}

// Leave removes the connection from room.
func (h *Hub) Leave(connID, room string) error {
	h.mu.Lock()
	client, ok := h.clients[connID]
	if !ok {
		h.mu.Unlock()
		return ErrUnknownConnection
	}
	h.removeFromRoomLocked(client, room)
	delete(h.joined[client], room)
	h.mu.Unlock()

	h.logger.LogRoom(context.Background(), connID, room, "leave")
	return nil
}

func (h *Hub) joinLocked(client *Client, room string) {
	members, ok := h.rooms[room]
	if !ok {
		members = make(map[*Client]struct{})
		h.rooms[room] = members
	}
	members[client] = struct{}{}

	rooms, ok := h.joined[client]
	if !ok {
		rooms = make(map[string]struct{})
		h.joined[client] = rooms
	}
	rooms[room] = struct{}{}
}

func (h *Hub) removeFromRoomLocked(client *Client, room string) {
	members, ok := h.rooms[room]
	if !ok {
		return
	}
	delete(members, client)
	if len(members) == 0 {
		delete(h.rooms, room)
	}
}

// Broadcast queues payload for every connection currently in room and
// returns how many accepted it. Delivery is best effort.
func (h *Hub) Broadcast(room string, payload []byte) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	delivered := 0
	for client := range h.rooms[room] {
		if client.TrySend(payload) {
			delivered++
		}
	}
	return delivered
}

// InRoom reports whether the connection has joined room.
func (h *Hub) InRoom(connID, room string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	client, ok := h.clients[connID]
	if !ok {
		return false
	}
	_, joined := h.joined[client][room]
	return joined
}

// ClientCount returns the number of registered connections.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Shutdown closes every send channel; each write pump then sends a close
// frame and releases its connection. Later registrations are refused.
func (h *Hub) Shutdown(_ context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil
	}
	h.closed = true

	for _, client := range h.clients {
		close(client.Send)
		observability.WebSocketConnectionsTotal.Dec()
	}
	h.clients = make(map[string]*Client)
	h.rooms = make(map[string]map[*Client]struct{})
	h.joined = make(map[*Client]map[string]struct{})
	h.perUser = make(map[uint]int)
	return nil
}
