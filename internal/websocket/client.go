package websocket

import (
	"context"
	"time"

	"chatsync-be/pkg/apperror"
	"chatsync-be/pkg/realtime"

	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
)

// Client is a middleman between the websocket connection and the hub.
type Client struct {
	Hub *Hub

	Conn *websocket.Conn

	// ID identifies this connection; replies are addressed to it.
	ID uuid.UUID

	UserID uuid.UUID

	// Buffered channel of outbound frames. Closed by the hub only.
	Send chan []byte

	handler SendHandler
}

// readPump reads `send` frames and hands them to the handler one at a time, so
// sends on one connection are persisted in the order they were written.
func (c *Client) readPump(ctx context.Context) {
	defer func() {
		c.Hub.unregister <- c
		c.Conn.Close()
	}()
	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.Hub.logger.Warn("Client", "Unexpected close", map[string]interface{}{"conn_id": c.ID, "error": err})
			}
			return
		}
		c.dispatch(ctx, raw)
	}
}

func (c *Client) dispatch(ctx context.Context, raw []byte) {
	env, err := realtime.Decode(raw)
	if err != nil {
		c.reject(uuid.Nil, "", apperror.Validation("malformed frame"))
		return
	}
	if env.Type != realtime.EventSend {
		c.reject(uuid.Nil, "", apperror.Validation("unsupported event type: "+string(env.Type)))
		return
	}

	payload, err := realtime.DecodeData[realtime.SendPayload](env)
	if err != nil {
		c.reject(uuid.Nil, "", apperror.Validation("malformed send payload"))
		return
	}

	if _, err := c.handler.HandleSend(ctx, c.UserID, c.ID, payload); err != nil {
		c.Hub.logger.Debug("Client", "Send rejected", map[string]interface{}{"conn_id": c.ID, "chat_id": payload.ChatId, "error": err})
		c.reject(payload.ChatId, payload.ClientMessageId, err)
	}
}

// reject answers on this connection with a `failed` frame. The connection stays open.
func (c *Client) reject(chatID uuid.UUID, clientMessageID string, err error) {
	kind := apperror.KindOf(err)
	reason := err.Error()
	if kind == apperror.KindInternal {
		reason = "internal error"
	}

	frame, encErr := realtime.Encode(realtime.EventFailed, realtime.FailedPayload{
		ChatId:          chatID,
		ClientMessageId: clientMessageID,
		Kind:            string(kind),
		Reason:          reason,
	})
	if encErr != nil {
		return
	}
	c.Hub.SendToConnection(c.UserID, c.ID, frame)
}

// writePump writes each queued frame as its own websocket message and keeps
// the connection alive with pings.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel.
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
