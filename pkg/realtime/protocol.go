// Package realtime defines the application-level messages exchanged over the
// websocket channel. Both the server hub and the client channel speak it.
package realtime

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type EventType string

const (
	// client -> server
	EventSend EventType = "send"

	// server -> client
	EventReply    EventType = "reply"
	EventFailed   EventType = "failed"
	EventActivity EventType = "activity"
)

// Envelope wraps every frame on the channel.
type Envelope struct {
	Type EventType       `json:"type"`
	Data json.RawMessage `json:"data"`
}

type SendPayload struct {
	ChatId          uuid.UUID `json:"chatId"`
	Content         string    `json:"content"`
	ClientMessageId string    `json:"clientMessageId,omitempty"`
}

type ReplyPayload struct {
	ChatId          uuid.UUID `json:"chatId"`
	MessageId       uuid.UUID `json:"messageId"`
	Seq             int64     `json:"seq"`
	Content         string    `json:"content"`
	ClientMessageId string    `json:"clientMessageId,omitempty"`
}

// FailedPayload reports a send that will never produce a reply.
type FailedPayload struct {
	ChatId          uuid.UUID `json:"chatId"`
	ClientMessageId string    `json:"clientMessageId,omitempty"`
	Kind            string    `json:"kind"`
	Reason          string    `json:"reason"`
}

type ActivityPayload struct {
	ChatId       uuid.UUID `json:"chatId"`
	LastActivity time.Time `json:"lastActivity"`
}

func Encode(t EventType, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", t, err)
	}
	return json.Marshal(Envelope{Type: t, Data: data})
}

func Decode(raw []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("unmarshal envelope: %w", err)
	}
	if env.Type == "" {
		return nil, fmt.Errorf("envelope missing type")
	}
	return &env, nil
}

// DecodeData unmarshals the envelope payload into T.
func DecodeData[T any](env *Envelope) (T, error) {
	var out T
	if len(env.Data) == 0 {
		return out, fmt.Errorf("%s event has no data", env.Type)
	}
	if err := json.Unmarshal(env.Data, &out); err != nil {
		return out, fmt.Errorf("unmarshal %s payload: %w", env.Type, err)
	}
	return out, nil
}
