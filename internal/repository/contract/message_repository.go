package contract

import (
	"context"

	"chatsync-be/internal/entity"

	"github.com/google/uuid"
)

type MessageRepository interface {
	// Append assigns Seq (next position in the chat) and persists the message.
	// Callers serialize appends per chat by holding the chat row lock.
	Append(ctx context.Context, message *entity.Message) error
	// ListByChat returns messages with seq > afterSeq in arrival order. limit <= 0 means all.
	ListByChat(ctx context.Context, chatId uuid.UUID, afterSeq int64, limit int) ([]*entity.Message, error)
	// ListRecent returns the last n messages in arrival order.
	ListRecent(ctx context.Context, chatId uuid.UUID, n int) ([]*entity.Message, error)
}
