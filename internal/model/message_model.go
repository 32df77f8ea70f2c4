package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type MessageMetadata struct {
	ClientMessageId string `json:"client_message_id,omitempty"`
}

type Message struct {
	Id        uuid.UUID                           `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	ChatId    uuid.UUID                           `gorm:"type:uuid;not null;uniqueIndex:idx_chat_messages_chat_seq,priority:1"`
	Seq       int64                               `gorm:"not null;uniqueIndex:idx_chat_messages_chat_seq,priority:2"`
	Role      string                              `gorm:"type:varchar(20);not null"`
	Content   string                              `gorm:"type:text;not null"`
	Metadata  datatypes.JSONType[MessageMetadata] `gorm:"type:jsonb;not null;default:'{}'"`
	CreatedAt time.Time                           `gorm:"autoCreateTime"`
}

func (Message) TableName() string {
	return "chat_messages"
}
