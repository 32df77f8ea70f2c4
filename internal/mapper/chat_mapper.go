package mapper

import (
	"time"

	"chatsync-be/internal/entity"
	"chatsync-be/internal/model"

	"gorm.io/datatypes"
)

type ChatMapper struct{}

func NewChatMapper() *ChatMapper {
	return &ChatMapper{}
}

// Chat Mappers

func (m *ChatMapper) ChatToEntity(c *model.Chat) *entity.Chat {
	if c == nil {
		return nil
	}

	var updatedAt *time.Time
	if !c.UpdatedAt.IsZero() {
		t := c.UpdatedAt
		updatedAt = &t
	}

	return &entity.Chat{
		Id:           c.Id,
		UserId:       c.UserId,
		Title:        c.Title,
		LastActivity: c.LastActivity,
		CreatedAt:    c.CreatedAt,
		UpdatedAt:    updatedAt,
	}
}

func (m *ChatMapper) ChatToModel(c *entity.Chat) *model.Chat {
	if c == nil {
		return nil
	}

	var updatedAt time.Time
	if c.UpdatedAt != nil {
		updatedAt = *c.UpdatedAt
	}

	return &model.Chat{
		Id:           c.Id,
		UserId:       c.UserId,
		Title:        c.Title,
		LastActivity: c.LastActivity,
		CreatedAt:    c.CreatedAt,
		UpdatedAt:    updatedAt,
	}
}

func (m *ChatMapper) ChatsToEntities(models []*model.Chat) []*entity.Chat {
	entities := make([]*entity.Chat, len(models))
	for i, c := range models {
		entities[i] = m.ChatToEntity(c)
	}
	return entities
}

// Message Mappers

func (m *ChatMapper) MessageToEntity(msg *model.Message) *entity.Message {
	if msg == nil {
		return nil
	}

	return &entity.Message{
		Id:              msg.Id,
		ChatId:          msg.ChatId,
		Seq:             msg.Seq,
		Role:            entity.MessageRole(msg.Role),
		Content:         msg.Content,
		ClientMessageId: msg.Metadata.Data().ClientMessageId,
		CreatedAt:       msg.CreatedAt,
	}
}

func (m *ChatMapper) MessageToModel(msg *entity.Message) *model.Message {
	if msg == nil {
		return nil
	}

	return &model.Message{
		Id:      msg.Id,
		ChatId:  msg.ChatId,
		Seq:     msg.Seq,
		Role:    string(msg.Role),
		Content: msg.Content,
		Metadata: datatypes.NewJSONType(model.MessageMetadata{
			ClientMessageId: msg.ClientMessageId,
		}),
		CreatedAt: msg.CreatedAt,
	}
}

func (m *ChatMapper) MessagesToEntities(models []*model.Message) []*entity.Message {
	entities := make([]*entity.Message, len(models))
	for i, msg := range models {
		entities[i] = m.MessageToEntity(msg)
	}
	return entities
}
