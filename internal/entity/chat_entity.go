package entity

import (
	"time"

	"github.com/google/uuid"
)

type Chat struct {
	Id           uuid.UUID
	UserId       uuid.UUID
	Title        string
	LastActivity time.Time
	CreatedAt    time.Time
	UpdatedAt    *time.Time
}

// IsOwnedBy reports whether userId owns the chat.
func (c *Chat) IsOwnedBy(userId uuid.UUID) bool {
	return c.UserId == userId
}
