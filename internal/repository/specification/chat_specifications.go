package specification

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type UserOwnedBy struct {
	UserID uuid.UUID
}

func (s UserOwnedBy) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("user_id = ?", s.UserID)
}

type ByChatID struct {
	ChatID uuid.UUID
}

func (s ByChatID) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("chat_id = ?", s.ChatID)
}

// AfterSeq is the forward cursor over a chat's message log.
type AfterSeq struct {
	Seq int64
}

func (s AfterSeq) Apply(db *gorm.DB) *gorm.DB {
	if s.Seq <= 0 {
		return db
	}
	return db.Where("seq > ?", s.Seq)
}
