package contract

import (
	"context"
	"time"

	"chatsync-be/internal/entity"

	"github.com/google/uuid"
)

type ChatRepository interface {
	Create(ctx context.Context, chat *entity.Chat) error
	// FindByID returns nil, nil when the chat does not exist.
	FindByID(ctx context.Context, id uuid.UUID) (*entity.Chat, error)
	// FindByIDForUpdate locks the chat row until the surrounding transaction ends.
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*entity.Chat, error)
	FindAllByUser(ctx context.Context, userId uuid.UUID, limit, offset int) ([]*entity.Chat, error)
	// TouchActivity moves last_activity forward to at, never backward. Reports
	// false when the chat is absent.
	TouchActivity(ctx context.Context, id uuid.UUID, at time.Time) (bool, error)
}
