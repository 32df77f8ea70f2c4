package dto

import (
	"time"

	"github.com/google/uuid"
)

type CreateChatRequest struct {
	Title string `json:"title" validate:"required,max=200"`
}

type ChatResponse struct {
	Id           uuid.UUID  `json:"id"`
	Title        string     `json:"title"`
	LastActivity time.Time  `json:"last_activity"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    *time.Time `json:"updated_at"`
}

type CreateChatResponse struct {
	Chat *ChatResponse `json:"chat"`
}

type ListChatsRequest struct {
	Limit  int `query:"limit" validate:"gte=0,lte=200"`
	Offset int `query:"offset" validate:"gte=0"`
}

type ListChatsResponse struct {
	Chats []*ChatResponse `json:"chats"`
	// NextOffset is set when the page was full; pass it back as offset.
	NextOffset *int `json:"next_offset,omitempty"`
}

type GetMessagesRequest struct {
	ChatId   uuid.UUID `json:"-"`
	AfterSeq int64     `query:"after_seq" validate:"gte=0"`
	Limit    int       `query:"limit" validate:"gte=0,lte=200"`
}

type MessageResponse struct {
	Id              uuid.UUID `json:"id"`
	Seq             int64     `json:"seq"`
	Role            string    `json:"role"`
	Content         string    `json:"content"`
	ClientMessageId string    `json:"client_message_id,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

type GetMessagesResponse struct {
	Messages []*MessageResponse `json:"messages"`
	// NextCursor is set when the page was full; pass it back as after_seq.
	NextCursor *int64 `json:"next_cursor,omitempty"`
}
