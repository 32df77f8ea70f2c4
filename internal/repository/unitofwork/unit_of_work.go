package unitofwork

import (
	"context"
	"fmt"

	"chatsync-be/internal/repository/contract"
)

// RepositoryFactory hands out a fresh UnitOfWork per request or per realtime event.
type RepositoryFactory interface {
	NewUnitOfWork(ctx context.Context) UnitOfWork
}

// UnitOfWork groups repositories over one connection. Between Begin and
// Commit/Rollback every repository it returns runs inside the transaction.
type UnitOfWork interface {
	Begin(ctx context.Context) error
	Commit() error
	// Rollback is a no-op once the transaction has been committed.
	Rollback() error

	ChatRepository() contract.ChatRepository
	MessageRepository() contract.MessageRepository
}

// InTransaction runs fn between Begin and Commit. An error or a panic in fn
// rolls the transaction back.
func InTransaction(ctx context.Context, uow UnitOfWork, fn func(uow UnitOfWork) error) (err error) {
	if err := uow.Begin(ctx); err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			uow.Rollback()
			panic(p)
		}
	}()

	if err := fn(uow); err != nil {
		uow.Rollback()
		return err
	}
	return uow.Commit()
}
