package websocket

import (
	"context"

	"chatsync-be/internal/entity"
	"chatsync-be/pkg/realtime"

	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
)

// SendHandler accepts a user message arriving on connID. Returned errors are
// reported back to that connection as `failed` frames.
type SendHandler interface {
	HandleSend(ctx context.Context, userID, connID uuid.UUID, payload realtime.SendPayload) (*entity.Message, error)
}

// ServeWs runs one connection until the peer goes away.
func ServeWs(hub *Hub, c *websocket.Conn, userID uuid.UUID, handler SendHandler) {
	client := newClient(hub, c, userID, handler)
	hub.register <- client

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go client.writePump()
	client.readPump(ctx) // runs in the handler goroutine
}

func newClient(hub *Hub, c *websocket.Conn, userID uuid.UUID, handler SendHandler) *Client {
	return &Client{
		Hub:     hub,
		Conn:    c,
		ID:      uuid.New(),
		UserID:  userID,
		Send:    make(chan []byte, 256),
		handler: handler,
	}
}
