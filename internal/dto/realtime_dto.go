package dto

import (
	"github.com/google/uuid"
)

// SendChatRequest is the validated form of a realtime `send` event.
type SendChatRequest struct {
	ChatId          uuid.UUID `validate:"required"`
	Content         string    `validate:"required,max=32000"`
	ClientMessageId string    `validate:"max=64"`
}

// ReplyJob is published once a user message is persisted; the reply consumer
// turns it into an assistant message and a `reply` event.
type ReplyJob struct {
	UserId          uuid.UUID `json:"user_id"`
	ConnId          uuid.UUID `json:"conn_id"`
	ChatId          uuid.UUID `json:"chat_id"`
	UserMessageId   uuid.UUID `json:"user_message_id"`
	UserMessageSeq  int64     `json:"user_message_seq"`
	ClientMessageId string    `json:"client_message_id,omitempty"`
}
