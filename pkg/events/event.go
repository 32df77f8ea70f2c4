package events

import (
	"time"

	"github.com/google/uuid"
)

const (
	TypeChatCreated  = "CHAT_CREATED"
	TypeChatActivity = "CHAT_ACTIVITY"
)

// Event defines the contract for all system events.
type Event interface {
	// EventType returns the unique code for this event (e.g., "CHAT_ACTIVITY").
	EventType() string

	// Payload returns the data associated with the event.
	Payload() map[string]interface{}

	// Timestamp returns when the event occurred.
	Timestamp() time.Time
}

type BaseEvent struct {
	Type       string
	Data       map[string]interface{}
	OccurredAt time.Time
}

func (e BaseEvent) EventType() string {
	return e.Type
}

func (e BaseEvent) Payload() map[string]interface{} {
	return e.Data
}

func (e BaseEvent) Timestamp() time.Time {
	return e.OccurredAt
}

func NewChatCreated(userId, chatId uuid.UUID, title string, at time.Time) BaseEvent {
	return BaseEvent{
		Type: TypeChatCreated,
		Data: map[string]interface{}{
			"user_id":       userId.String(),
			"chat_id":       chatId.String(),
			"title":         title,
			"last_activity": at.Format(time.RFC3339Nano),
		},
		OccurredAt: at,
	}
}

func NewChatActivity(userId, chatId uuid.UUID, lastActivity time.Time) BaseEvent {
	return BaseEvent{
		Type: TypeChatActivity,
		Data: map[string]interface{}{
			"user_id":       userId.String(),
			"chat_id":       chatId.String(),
			"last_activity": lastActivity.Format(time.RFC3339Nano),
		},
		OccurredAt: lastActivity,
	}
}

// ChatRef pulls the ids and activity time back out of a decoded chat event payload.
func ChatRef(e Event) (userId, chatId uuid.UUID, lastActivity time.Time, ok bool) {
	p := e.Payload()
	u, _ := p["user_id"].(string)
	c, _ := p["chat_id"].(string)
	a, _ := p["last_activity"].(string)

	var err error
	if userId, err = uuid.Parse(u); err != nil {
		return uuid.Nil, uuid.Nil, time.Time{}, false
	}
	if chatId, err = uuid.Parse(c); err != nil {
		return uuid.Nil, uuid.Nil, time.Time{}, false
	}
	if lastActivity, err = time.Parse(time.RFC3339Nano, a); err != nil {
		return uuid.Nil, uuid.Nil, time.Time{}, false
	}
	return userId, chatId, lastActivity, true
}
