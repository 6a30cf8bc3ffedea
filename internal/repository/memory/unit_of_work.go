package memory

import (
	"context"
	"fmt"

	"hiring-chat-be/internal/repository/contract"
	"hiring-chat-be/internal/repository/unitofwork"
)

type UnitOfWork struct {
	store   *ChatStore
	journal *journal
}

func NewUnitOfWork(store *ChatStore) unitofwork.UnitOfWork {
	return &UnitOfWork{store: store}
}

func (u *UnitOfWork) Begin(ctx context.Context) error {
	if u.journal != nil {
		return fmt.Errorf("transaction already started")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	u.store.txMu.Lock()
	u.journal = &journal{}
	return nil
}

func (u *UnitOfWork) Commit() error {
	if u.journal == nil {
		return fmt.Errorf("no transaction to commit")
	}
	u.journal = nil
	u.store.txMu.Unlock()
	return nil
}

func (u *UnitOfWork) Rollback() error {
	if u.journal == nil {
		return fmt.Errorf("no transaction to rollback")
	}
	u.store.mu.Lock()
	for i := len(u.journal.undo) - 1; i >= 0; i-- {
		u.journal.undo[i]()
	}
	u.store.mu.Unlock()

	u.journal = nil
	u.store.txMu.Unlock()
	return nil
}

func (u *UnitOfWork) ConversationRepository() contract.ConversationRepository {
	return &ConversationRepository{store: u.store, journal: u.journal}
}

func (u *UnitOfWork) MessageRepository() contract.MessageRepository {
	return &MessageRepository{store: u.store, journal: u.journal}
}

type RepositoryFactory struct {
	store *ChatStore
}

func NewRepositoryFactory(store *ChatStore) unitofwork.RepositoryFactory {
	return &RepositoryFactory{store: store}
}

func (f *RepositoryFactory) NewUnitOfWork(ctx context.Context) unitofwork.UnitOfWork {
	return NewUnitOfWork(f.store)
}
