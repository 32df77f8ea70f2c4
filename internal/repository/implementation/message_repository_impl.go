package implementation

import (
	"context"

	"chatsync-be/internal/entity"
	"chatsync-be/internal/mapper"
	"chatsync-be/internal/model"
	"chatsync-be/internal/repository/contract"
	"chatsync-be/internal/repository/scope"
	"chatsync-be/internal/repository/specification"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type MessageRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.ChatMapper
}

func NewMessageRepository(db *gorm.DB) contract.MessageRepository {
	return &MessageRepositoryImpl{
		db:     db,
		mapper: mapper.NewChatMapper(),
	}
}

func (r *MessageRepositoryImpl) Append(ctx context.Context, message *entity.Message) error {
	var lastSeq int64
	err := specification.Apply(r.db.WithContext(ctx).Model(&model.Message{}),
		specification.ByChatID{ChatID: message.ChatId},
	).Select("COALESCE(MAX(seq), 0)").Scan(&lastSeq).Error
	if err != nil {
		return err
	}

	message.Seq = lastSeq + 1
	m := r.mapper.MessageToModel(message)
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		return err
	}
	*message = *r.mapper.MessageToEntity(m)
	return nil
}

func (r *MessageRepositoryImpl) ListByChat(ctx context.Context, chatId uuid.UUID, afterSeq int64, limit int) ([]*entity.Message, error) {
	var models []*model.Message
	query := specification.Apply(r.db.WithContext(ctx).Scopes(scope.OrderBySeqAsc),
		specification.ByChatID{ChatID: chatId},
		specification.AfterSeq{Seq: afterSeq},
		specification.Pagination{Limit: limit},
	)
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}
	return r.mapper.MessagesToEntities(models), nil
}

func (r *MessageRepositoryImpl) ListRecent(ctx context.Context, chatId uuid.UUID, n int) ([]*entity.Message, error) {
	var models []*model.Message
	query := specification.Apply(r.db.WithContext(ctx).Scopes(scope.OrderBySeqDesc),
		specification.ByChatID{ChatID: chatId},
		specification.Pagination{Limit: n},
	)
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}

	// newest-first from the query, callers want arrival order
	for i, j := 0, len(models)-1; i < j; i, j = i+1, j-1 {
		models[i], models[j] = models[j], models[i]
	}
	return r.mapper.MessagesToEntities(models), nil
}
