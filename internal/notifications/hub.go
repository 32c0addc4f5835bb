package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"truuo/internal/models"
	"truuo/internal/observability"

	"github.com/gofiber/websocket/v2"
	"github.com/redis/go-redis/v9"
)

const (
	// Max connections per user
	maxConnsPerUser = 12
	// Max total connections
	maxTotalConns = 10000
)

var (
	ErrHubClosed       = errors.New("hub is shut down")
	ErrServerConnLimit = errors.New("server connection limit reached")
	ErrUserConnLimit   = errors.New("user connection limit reached")
)

// Hub maps user IDs to their open feed streams.
type Hub struct {
	mu         sync.RWMutex
	conns      map[string]map[*Client]struct{}
	totalConns int
	closed     bool
	presence   *Presence
}

// NewHub creates a hub. With a Redis client presence is shared across
// instances.
func NewHub(rdb *redis.Client) *Hub {
	return &Hub{
		conns:    make(map[string]map[*Client]struct{}),
		presence: NewPresence(rdb),
	}
}

// Register a connection for a given userID. Returns the Client or error if limits exceeded.
func (h *Hub) Register(userID string, conn *websocket.Conn) (*Client, error) {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil, ErrHubClosed
	}
	if h.totalConns >= maxTotalConns {
		h.mu.Unlock()
		return nil, ErrServerConnLimit
	}

	m, ok := h.conns[userID]
	if !ok {
		m = make(map[*Client]struct{})
		h.conns[userID] = m
	}
	if len(m) >= maxConnsPerUser {
		h.mu.Unlock()
		return nil, ErrUserConnLimit
	}

	client := newClient(h, conn, userID)
	client.OnActivity = func(uid string) {
		h.presence.Touch(context.Background(), uid)
	}
	m[client] = struct{}{}
	h.totalConns++
	h.mu.Unlock()

	observability.WebSocketConnectionsTotal.Inc()
	h.presence.Register(context.Background(), userID)
	return client, nil
}

// UnregisterClient removes client and closes its send buffer. Calling it
// twice is harmless.
func (h *Hub) UnregisterClient(client *Client) {
	h.mu.Lock()
	removed := false
	if m, ok := h.conns[client.UserID]; ok {
		if _, exists := m[client]; exists {
			delete(m, client)
			h.totalConns--
			removed = true
			close(client.Send)
		}
		if len(m) == 0 {
			delete(h.conns, client.UserID)
		}
	}
	h.mu.Unlock()

	if removed {
		observability.WebSocketConnectionsTotal.Dec()
		h.presence.Unregister(context.Background(), client.UserID)
	}
}

// BroadcastAll sends message to every connected websocket client.
func (h *Hub) BroadcastAll(message []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, clients := range h.conns {
		for c := range clients {
			c.TrySend(message)
		}
	}
}

// PublishFeedEvent delivers ev to this instance's clients only. It stands
// in for the Redis notifier when no Redis is configured.
func (h *Hub) PublishFeedEvent(_ context.Context, ev models.FeedEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal feed event: %w", err)
	}
	h.BroadcastAll(payload)
	return nil
}

// OnlineUsers is the number of distinct users holding a feed stream.
func (h *Hub) OnlineUsers(ctx context.Context) int64 {
	return int64(len(h.presence.OnlineUserIDs(ctx)))
}

// IsOnline reports whether a user currently has at least one active feed stream.
func (h *Hub) IsOnline(ctx context.Context, userID string) bool {
	return h.presence.IsOnline(ctx, userID)
}

// ClientCount is the number of connections held by this instance.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.totalConns
}

// StartWiring connects the Notifier to this hub so events published by
// any instance reach local clients.
func (h *Hub) StartWiring(ctx context.Context, n *Notifier) error {
	return n.StartFeedSubscriber(ctx, func(payload string) {
		h.BroadcastAll([]byte(payload))
	})
}

// Shutdown gracefully closes all websocket connections
func (h *Hub) Shutdown(_ context.Context) error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil
	}
	h.closed = true
	conns := h.conns
	h.conns = make(map[string]map[*Client]struct{})
	h.totalConns = 0
	h.mu.Unlock()

	// Closing a send buffer makes the client's WritePump send the close
	// frame and drop the connection.
	for userID, userConns := range conns {
		for client := range userConns {
			close(client.Send)
			observability.WebSocketConnectionsTotal.Dec()
			h.presence.Unregister(context.Background(), userID)
		}
	}
	return nil
}
