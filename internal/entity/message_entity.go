package entity

import (
	"time"

	"github.com/google/uuid"
)

type MessageRole string

const (
	MessageRoleUser      MessageRole = "user"
	MessageRoleAssistant MessageRole = "assistant"
)

func (r MessageRole) IsValid() bool {
	return r == MessageRoleUser || r == MessageRoleAssistant
}

// Message is immutable once appended. Seq is the arrival position inside the chat.
type Message struct {
	Id              uuid.UUID
	ChatId          uuid.UUID
	Seq             int64
	Role            MessageRole
	Content         string
	ClientMessageId string
	CreatedAt       time.Time
}
