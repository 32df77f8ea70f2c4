package implementation

import (
	"context"
	"errors"
	"time"

	"chatsync-be/internal/entity"
	"chatsync-be/internal/mapper"
	"chatsync-be/internal/model"
	"chatsync-be/internal/repository/contract"
	"chatsync-be/internal/repository/scope"
	"chatsync-be/internal/repository/specification"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ChatRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.ChatMapper
}

func NewChatRepository(db *gorm.DB) contract.ChatRepository {
	return &ChatRepositoryImpl{
		db:     db,
		mapper: mapper.NewChatMapper(),
	}
}

func (r *ChatRepositoryImpl) Create(ctx context.Context, chat *entity.Chat) error {
	m := r.mapper.ChatToModel(chat)
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		return err
	}
	*chat = *r.mapper.ChatToEntity(m)
	return nil
}

func (r *ChatRepositoryImpl) findOne(db *gorm.DB, specs ...specification.Specification) (*entity.Chat, error) {
	var m model.Chat
	if err := specification.Apply(db, specs...).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return r.mapper.ChatToEntity(&m), nil
}

func (r *ChatRepositoryImpl) FindByID(ctx context.Context, id uuid.UUID) (*entity.Chat, error) {
	return r.findOne(r.db.WithContext(ctx), specification.ByID{ID: id})
}

func (r *ChatRepositoryImpl) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*entity.Chat, error) {
	return r.findOne(r.db.WithContext(ctx).Scopes(scope.LockForUpdate), specification.ByID{ID: id})
}

func (r *ChatRepositoryImpl) FindAllByUser(ctx context.Context, userId uuid.UUID, limit, offset int) ([]*entity.Chat, error) {
	var models []*model.Chat
	query := specification.Apply(r.db.WithContext(ctx).Scopes(scope.OrderByActivityDesc),
		specification.UserOwnedBy{UserID: userId},
		specification.Pagination{Limit: limit, Offset: offset},
	)
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}
	return r.mapper.ChatsToEntities(models), nil
}

func (r *ChatRepositoryImpl) TouchActivity(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&model.Chat{}).
		Where("id = ?", id).
		Update("last_activity", gorm.Expr("GREATEST(last_activity, ?)", at))
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
