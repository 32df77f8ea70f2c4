package websocket

import (
	"context"
	"encoding/json"
	"sync"

	"chatsync-be/internal/pkg/logger"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const clusterChannel = "cluster_events"

type clusterMessage struct {
	Origin       string          `json:"origin"`
	TargetUserID string          `json:"target_user_id"`
	Message      json.RawMessage `json:"message"`
}

type Hub struct {
	// Registered clients: UserID -> connections (multi-device)
	clients map[uuid.UUID][]*Client

	register   chan *Client
	unregister chan *Client

	// Guards clients. Client.Send is only written under RLock and only closed
	// under Lock after removal, so a send never hits a closed channel.
	mu sync.RWMutex

	// Redis connection for cross-instance fanout; nil runs single-instance.
	rdb *redis.Client

	// instanceID tags our own cluster messages so we skip them on the way back.
	instanceID string

	logger logger.ILogger
}

func NewHub(rdb *redis.Client, log logger.ILogger) *Hub {
	return &Hub{
		register:   make(chan *Client),
		unregister: make(chan *Client),
		clients:    make(map[uuid.UUID][]*Client),
		rdb:        rdb,
		instanceID: uuid.NewString(),
		logger:     log,
	}
}

func (h *Hub) Run(ctx context.Context) {
	if h.rdb != nil {
		go h.subscribeToRedis(ctx)
	}

	for {
		select {
		case <-ctx.Done():
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.UserID] = append(h.clients[client.UserID], client)
			h.mu.Unlock()
			h.logger.Info("Hub", "Client registered", map[string]interface{}{"user_id": client.UserID, "conn_id": client.ID})

		case client := <-h.unregister:
			h.remove(client)
		}
	}
}

func (h *Hub) remove(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	clients, ok := h.clients[client.UserID]
	if !ok {
		return
	}
	for i, c := range clients {
		if c == client {
			h.clients[client.UserID] = append(clients[:i], clients[i+1:]...)
			close(client.Send)
			break
		}
	}
	if len(h.clients[client.UserID]) == 0 {
		delete(h.clients, client.UserID)
	}
	h.logger.Info("Hub", "Client unregistered", map[string]interface{}{"user_id": client.UserID, "conn_id": client.ID})
}

// push must be called with h.mu held (read or write).
func (h *Hub) push(client *Client, data []byte) bool {
	select {
	case client.Send <- data:
		return true
	default:
		h.logger.Warn("Hub", "Client Send buffer full, dropping connection", map[string]interface{}{"user_id": client.UserID, "conn_id": client.ID})
		go func() { h.unregister <- client }()
		return false
	}
}

// SendToConnection delivers to exactly one live connection on this instance.
// It reports false when the connection is gone; the frame is dropped.
func (h *Hub) SendToConnection(userID, connID uuid.UUID, data []byte) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, client := range h.clients[userID] {
		if client.ID == connID {
			return h.push(client, data)
		}
	}
	return false
}

// SendToUser delivers to every connection of the user, here and on other instances.
func (h *Hub) SendToUser(userID uuid.UUID, data []byte) {
	h.deliverLocal(userID, data)

	if h.rdb != nil {
		payload, _ := json.Marshal(clusterMessage{
			Origin:       h.instanceID,
			TargetUserID: userID.String(),
			Message:      data,
		})
		if err := h.rdb.Publish(context.Background(), clusterChannel, payload).Err(); err != nil {
			h.logger.Warn("Hub", "Redis publish failed", map[string]interface{}{"error": err})
		}
	}
}

func (h *Hub) deliverLocal(userID uuid.UUID, data []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, client := range h.clients[userID] {
		h.push(client, data)
	}
}

// ConnectionCount reports live connections for a user on this instance.
func (h *Hub) ConnectionCount(userID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[userID])
}

// Connections reports live connections on this instance across all users.
func (h *Hub) Connections() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for _, conns := range h.clients {
		n += len(conns)
	}
	return n
}

// Clustered reports whether activity pushes fan out through Redis.
func (h *Hub) Clustered() bool {
	return h.rdb != nil
}

func (h *Hub) subscribeToRedis(ctx context.Context) {
	// Every instance subscribes to one channel and filters by local users.
	pubsub := h.rdb.Subscribe(ctx, clusterChannel)
	go func() {
		<-ctx.Done()
		pubsub.Close()
	}()

	for msg := range pubsub.Channel() {
		h.handleClusterMessage([]byte(msg.Payload))
	}
}

func (h *Hub) handleClusterMessage(raw []byte) {
	var payload clusterMessage
	if err := json.Unmarshal(raw, &payload); err != nil {
		h.logger.Warn("Hub", "Redis msg parse error", map[string]interface{}{"error": err})
		return
	}
	if payload.Origin == h.instanceID {
		return
	}

	uid, err := uuid.Parse(payload.TargetUserID)
	if err != nil {
		return
	}
	h.deliverLocal(uid, payload.Message)
}
