package model

import (
	"time"

	"github.com/google/uuid"
)

type Chat struct {
	Id           uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	UserId       uuid.UUID `gorm:"type:uuid;not null;index:idx_chats_user_activity,priority:1"`
	Title        string    `gorm:"type:text;not null"`
	LastActivity time.Time `gorm:"not null;index:idx_chats_user_activity,priority:2,sort:desc"`
	CreatedAt    time.Time `gorm:"autoCreateTime"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime"`
}

func (Chat) TableName() string {
	return "chats"
}
