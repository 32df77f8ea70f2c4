package unitofwork

import (
	"context"
	"errors"

	"chatsync-be/internal/repository/contract"
	"chatsync-be/internal/repository/implementation"

	"gorm.io/gorm"
)

var ErrTxActive = errors.New("unit of work: transaction already started")

type UnitOfWorkImpl struct {
	db *gorm.DB
	// tx is non-nil only between Begin and Commit/Rollback
	tx *gorm.DB
}

func NewUnitOfWork(db *gorm.DB) UnitOfWork {
	return &UnitOfWorkImpl{db: db}
}

func (u *UnitOfWorkImpl) conn() *gorm.DB {
	if u.tx != nil {
		return u.tx
	}
	return u.db
}

func (u *UnitOfWorkImpl) Begin(ctx context.Context) error {
	if u.tx != nil {
		return ErrTxActive
	}
	tx := u.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return tx.Error
	}
	u.tx = tx
	return nil
}

func (u *UnitOfWorkImpl) Commit() error {
	if u.tx == nil {
		return errors.New("unit of work: commit without begin")
	}
	tx := u.tx
	u.tx = nil
	return tx.Commit().Error
}

func (u *UnitOfWorkImpl) Rollback() error {
	if u.tx == nil {
		return nil
	}
	tx := u.tx
	u.tx = nil
	return tx.Rollback().Error
}

func (u *UnitOfWorkImpl) ChatRepository() contract.ChatRepository {
	return implementation.NewChatRepository(u.conn())
}

func (u *UnitOfWorkImpl) MessageRepository() contract.MessageRepository {
	return implementation.NewMessageRepository(u.conn())
}
